package repository

import (
	"salonshop/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(u *models.User) error {
	return r.db.Create(u).Error
}

func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var u models.User
	err := r.db.First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var u models.User
	err := r.db.Where("email = ?", email).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) UpdateFCMToken(id uint, token string) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Update("fcm_token", token).Error
}

// FCMTokensByRole returns the non-empty device tokens of every user with role.
func (r *UserRepository) FCMTokensByRole(role string) ([]string, error) {
	var tokens []string
	err := r.db.Model(&models.User{}).
		Where("role = ? AND fcm_token <> ''", role).
		Pluck("fcm_token", &tokens).Error
	return tokens, err
}
