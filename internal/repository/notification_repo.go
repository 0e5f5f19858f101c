package repository

import (
	"salonshop/internal/models"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(n *models.AdminNotification) error {
	return r.db.Create(n).Error
}

func (r *NotificationRepository) List(unreadOnly bool, limit, offset int) ([]models.AdminNotification, int64, error) {
	q := r.db.Model(&models.AdminNotification{})
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.AdminNotification
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

func (r *NotificationRepository) CountUnread() (int64, error) {
	var n int64
	err := r.db.Model(&models.AdminNotification{}).Where("read_at IS NULL").Count(&n).Error
	return n, err
}

func (r *NotificationRepository) MarkRead(id uint) error {
	return r.db.Model(&models.AdminNotification{}).Where("id = ? AND read_at IS NULL", id).Update("read_at", gorm.Expr("NOW()")).Error
}

func (r *NotificationRepository) MarkAllRead() error {
	return r.db.Model(&models.AdminNotification{}).Where("read_at IS NULL").Update("read_at", gorm.Expr("NOW()")).Error
}
