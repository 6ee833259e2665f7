package service

import (
	"context"
	"errors"
	"strings"

	"pastpapers/config"
	"pastpapers/internal/auth"
	"pastpapers/internal/domain"
	"pastpapers/internal/models"
	"pastpapers/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailExists    = errors.New("email already registered")
	ErrUsernameExists = errors.New("username already taken")
	ErrInvalidCreds   = errors.New("invalid username or password")
	ErrNotAdmin       = errors.New("admin access required")
)

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type AuthService struct {
	cfg      *config.JWTConfig
	userRepo *repository.UserRepository
}

func NewAuthService(cfg *config.JWTConfig, userRepo *repository.UserRepository) *AuthService {
	return &AuthService{cfg: cfg, userRepo: userRepo}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, *auth.TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)

	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, nil, ErrEmailExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}
	_, err = s.userRepo.GetByUsername(ctx, username)
	if err == nil {
		return nil, nil, ErrUsernameExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}
	u := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         domain.RoleCustomer,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, nil, err
	}
	pair, err := auth.GeneratePair(s.cfg, u.ID, u.Email, u.Role)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

// Login accepts a username or an email address as identifier.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*models.User, *auth.TokenPair, error) {
	u, err := s.userRepo.GetByLogin(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCreds
		}
		return nil, nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCreds
	}
	pair, err := auth.GeneratePair(s.cfg, u.ID, u.Email, u.Role)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

// AdminLogin is Login restricted to ADMIN accounts.
func (s *AuthService) AdminLogin(ctx context.Context, identifier, password string) (*models.User, *auth.TokenPair, error) {
	u, pair, err := s.Login(ctx, identifier, password)
	if err != nil {
		return nil, nil, err
	}
	if !u.IsAdmin() {
		return nil, nil, ErrNotAdmin
	}
	return u, pair, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	userID, err := auth.ParseRefreshToken(s.cfg, refreshToken)
	if err != nil {
		return nil, err
	}
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	return auth.GeneratePair(s.cfg, u.ID, u.Email, u.Role)
}

func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}
