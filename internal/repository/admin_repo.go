package repository

import (
	"salonshop/internal/models"

	"gorm.io/gorm"
)

// AdminRepository backs staff account management on the admin portal.
type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// ListUsers returns users with an optional role filter and pagination.
func (r *AdminRepository) ListUsers(role string, page, limit int) ([]models.User, int64, error) {
	q := r.db.Model(&models.User{})
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	err := q.Order("created_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&users).Error
	return users, total, err
}

// UpdateUser updates specific fields on a user.
func (r *AdminRepository) UpdateUser(id uint, updates map[string]interface{}) error {
	res := r.db.Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
