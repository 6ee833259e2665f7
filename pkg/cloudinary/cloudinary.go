package cloudinary

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// Client stores documents (past-paper PDFs) as Cloudinary raw assets.
type Client interface {
	UploadDocument(ctx context.Context, file io.Reader, folder, publicID string) (*UploadResult, error)
	DeleteByURL(ctx context.Context, url string) error
}

type UploadResult struct {
	URL      string
	PublicID string
	Bytes    int
}

const resourceRaw = "raw"

type clientImpl struct {
	cloudName string
	uploader  *uploader.API
}

// NewClientFromParams builds a Client from Cloudinary cloud name, API key, and secret.
func NewClientFromParams(cloudName, apiKey, apiSecret string) (Client, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &clientImpl{cloudName: cloudName, uploader: up}, nil
}

func (c *clientImpl) UploadDocument(ctx context.Context, file io.Reader, folder, publicID string) (*UploadResult, error) {
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: resourceRaw,
	})
	if err != nil {
		return nil, err
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary: %s", result.Error.Message)
	}
	return &UploadResult{URL: result.SecureURL, PublicID: result.PublicID, Bytes: result.Bytes}, nil
}

// DeleteByURL destroys the raw asset behind a delivery URL. URLs that do not
// belong to this cloud are ignored.
func (c *clientImpl) DeleteByURL(ctx context.Context, rawURL string) error {
	publicID, ok := PublicIDFromURL(c.cloudName, rawURL)
	if !ok {
		return nil
	}
	_, err := c.uploader.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceRaw,
	})
	return err
}

// PublicIDFromURL extracts the public id from a raw delivery URL of the form
// https://res.cloudinary.com/<cloud>/raw/upload/v123/<folder>/<id>. Raw public
// ids keep their file extension.
func PublicIDFromURL(cloudName, rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host != "res.cloudinary.com" {
		return "", false
	}
	prefix := "/" + cloudName + "/" + resourceRaw + "/upload/"
	if !strings.HasPrefix(u.Path, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(u.Path, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 2 && isVersion(parts[0]) {
		rest = parts[1]
	}
	rest = path.Clean(rest)
	if rest == "." || rest == "" {
		return "", false
	}
	return rest, true
}

func isVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
