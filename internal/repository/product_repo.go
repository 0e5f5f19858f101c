package repository

import (
	"salonshop/internal/models"

	"gorm.io/gorm"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(p *models.Product) error {
	return r.db.Create(p).Error
}

func (r *ProductRepository) GetByID(id uint) (*models.Product, error) {
	var p models.Product
	err := r.db.First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByIDs returns the active products among ids, keyed by ID.
func (r *ProductRepository) GetByIDs(ids []uint) (map[uint]models.Product, error) {
	var list []models.Product
	if err := r.db.Where("id IN ? AND active = ?", ids, true).Find(&list).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]models.Product, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}

// List returns active products, newest first.
func (r *ProductRepository) List(page, limit int) ([]models.Product, int64, error) {
	q := r.db.Model(&models.Product{}).Where("active = ?", true)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Product
	err := q.Order("created_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

func (r *ProductRepository) Update(p *models.Product) error {
	return r.db.Save(p).Error
}

func (r *ProductRepository) Delete(id uint) error {
	return r.db.Delete(&models.Product{}, id).Error
}
