package service

import (
	"errors"
	"strings"

	"salonshop/config"
	"salonshop/internal/auth"
	"salonshop/internal/domain"
	"salonshop/internal/models"
	"salonshop/internal/repository"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailExists  = errors.New("email already registered")
	ErrInvalidCreds = errors.New("invalid email or password")
	ErrInvalidRole  = errors.New("role must be CUSTOMER, ADMIN or DRIVER")
	ErrWeakPassword = errors.New("password must be at least 8 characters")
)

const minPasswordLen = 8

type AuthService struct {
	cfg      *config.Config
	userRepo *repository.UserRepository
}

func NewAuthService(cfg *config.Config, userRepo *repository.UserRepository) *AuthService {
	return &AuthService{cfg: cfg, userRepo: userRepo}
}

// Register creates a customer account and signs the user in.
func (s *AuthService) Register(name, email, phone, password string) (*models.User, string, string, error) {
	u, err := s.CreateUser(name, email, phone, password, domain.RoleCustomer)
	if err != nil {
		return nil, "", "", err
	}
	access, refresh, err := s.issue(u)
	return u, access, refresh, err
}

// CreateUser stores a new account with the given role. Admins use it to add drivers.
func (s *AuthService) CreateUser(name, email, phone, password, role string) (*models.User, error) {
	if role != domain.RoleCustomer && role != domain.RoleAdmin && role != domain.RoleDriver {
		return nil, ErrInvalidRole
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := s.userRepo.GetByEmail(email)
	if err == nil {
		return nil, ErrEmailExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		Phone:        strings.TrimSpace(phone),
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.userRepo.Create(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AuthService) Login(email, password string) (*models.User, string, string, error) {
	u, err := s.userRepo.GetByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", "", ErrInvalidCreds
		}
		return nil, "", "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", "", ErrInvalidCreds
	}
	access, refresh, err := s.issue(u)
	return u, access, refresh, err
}

func (s *AuthService) RefreshToken(refreshToken string) (access, refresh string, err error) {
	userID, err := auth.ParseRefreshToken(&s.cfg.JWT, refreshToken)
	if err != nil {
		return "", "", err
	}
	u, err := s.userRepo.GetByID(userID)
	if err != nil {
		return "", "", auth.ErrInvalidToken
	}
	return s.issue(u)
}

func (s *AuthService) UpdateDeviceToken(userID uint, token string) error {
	return s.userRepo.UpdateFCMToken(userID, strings.TrimSpace(token))
}

// SeedAdmin makes sure the configured admin account exists.
func (s *AuthService) SeedAdmin() error {
	if s.cfg.Admin.Email == "" || s.cfg.Admin.Password == "" {
		return nil
	}
	_, err := s.userRepo.GetByEmail(strings.ToLower(s.cfg.Admin.Email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if _, err := s.CreateUser("Administrator", s.cfg.Admin.Email, "", s.cfg.Admin.Password, domain.RoleAdmin); err != nil {
		return err
	}
	log.Info().Str("email", s.cfg.Admin.Email).Msg("[AUTH] seeded admin account")
	return nil
}

func (s *AuthService) issue(u *models.User) (string, string, error) {
	access, err := auth.GenerateAccessToken(&s.cfg.JWT, u.ID, u.Email, u.Role)
	if err != nil {
		return "", "", err
	}
	refresh, err := auth.GenerateRefreshToken(&s.cfg.JWT, u.ID)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
