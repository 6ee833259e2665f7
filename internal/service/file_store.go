package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pastpapers/pkg/cloudinary"
)

// FileStore keeps uploaded paper files and returns the URL they are served from.
type FileStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Remove(ctx context.Context, url string) error
}

// CloudinaryStore stores files as Cloudinary raw assets.
type CloudinaryStore struct {
	client cloudinary.Client
	folder string
}

func NewCloudinaryStore(client cloudinary.Client, folder string) *CloudinaryStore {
	return &CloudinaryStore{client: client, folder: folder}
}

func (s *CloudinaryStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	res, err := s.client.UploadDocument(ctx, r, s.folder, name)
	if err != nil {
		return "", fmt.Errorf("upload to cloudinary: %w", err)
	}
	return res.URL, nil
}

func (s *CloudinaryStore) Remove(ctx context.Context, url string) error {
	return s.client.DeleteByURL(ctx, url)
}

// LocalStore writes files under dir; they are served by the router at prefix.
type LocalStore struct {
	dir    string
	prefix string
}

func NewLocalStore(dir, prefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{dir: dir, prefix: strings.TrimSuffix(prefix, "/")}, nil
}

func (s *LocalStore) Save(_ context.Context, name string, r io.Reader) (string, error) {
	name = filepath.Base(name)
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return s.prefix + "/" + name, nil
}

func (s *LocalStore) Remove(_ context.Context, url string) error {
	if !strings.HasPrefix(url, s.prefix+"/") {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, filepath.Base(url)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
