package repository

import (
	"errors"

	"github.com/benefit-next/internal/models"

	"gorm.io/gorm"
)

// AssociationRepository 协会数据访问接口
type AssociationRepository interface {
	GetByID(id uint) (*models.Association, error)
	ListByIDs(ids []uint) ([]models.Association, error)
	Create(association *models.Association) error
	WithTx(tx *gorm.DB) *GormAssociationRepository
}

// GormAssociationRepository GORM 实现
type GormAssociationRepository struct {
	db *gorm.DB
}

// NewAssociationRepository 创建协会仓库
func NewAssociationRepository(db *gorm.DB) *GormAssociationRepository {
	return &GormAssociationRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAssociationRepository) WithTx(tx *gorm.DB) *GormAssociationRepository {
	if tx == nil {
		return r
	}
	return &GormAssociationRepository{db: tx}
}

// GetByID 根据ID获取协会
func (r *GormAssociationRepository) GetByID(id uint) (*models.Association, error) {
	var association models.Association
	if err := r.db.First(&association, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &association, nil
}

// ListByIDs 批量获取协会
func (r *GormAssociationRepository) ListByIDs(ids []uint) ([]models.Association, error) {
	if len(ids) == 0 {
		return []models.Association{}, nil
	}
	var associations []models.Association
	if err := r.db.Where("id IN ?", ids).Find(&associations).Error; err != nil {
		return nil, err
	}
	return associations, nil
}

// Create 创建协会
func (r *GormAssociationRepository) Create(association *models.Association) error {
	return r.db.Create(association).Error
}
