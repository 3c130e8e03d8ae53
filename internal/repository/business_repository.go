package repository

import (
	"errors"

	"github.com/benefit-next/internal/constants"
	"github.com/benefit-next/internal/models"

	"gorm.io/gorm"
)

// BusinessRepository 商户数据访问接口
type BusinessRepository interface {
	GetByID(id uint) (*models.Business, error)
	ListByIDs(ids []uint) ([]models.Business, error)
	ListActiveIDsByAssociation(associationID uint) ([]uint, error)
	ListIDsAfter(afterID uint, limit int) ([]uint, error)
	List(filter BusinessListFilter) ([]models.Business, int64, error)
	Create(business *models.Business) error
	Update(business *models.Business) error
	UpdateActiveBenefitCount(id uint, count int64) error
	WithTx(tx *gorm.DB) *GormBusinessRepository
}

// GormBusinessRepository GORM 实现
type GormBusinessRepository struct {
	db *gorm.DB
}

// NewBusinessRepository 创建商户仓库
func NewBusinessRepository(db *gorm.DB) *GormBusinessRepository {
	return &GormBusinessRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBusinessRepository) WithTx(tx *gorm.DB) *GormBusinessRepository {
	if tx == nil {
		return r
	}
	return &GormBusinessRepository{db: tx}
}

// GetByID 根据ID获取商户
func (r *GormBusinessRepository) GetByID(id uint) (*models.Business, error) {
	var business models.Business
	if err := r.db.First(&business, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &business, nil
}

// ListByIDs 批量获取商户
func (r *GormBusinessRepository) ListByIDs(ids []uint) ([]models.Business, error) {
	if len(ids) == 0 {
		return []models.Business{}, nil
	}
	var businesses []models.Business
	if err := r.db.Where("id IN ?", ids).Find(&businesses).Error; err != nil {
		return nil, err
	}
	return businesses, nil
}

// ListActiveIDsByAssociation 反查声明关联到指定协会的有效商户
func (r *GormBusinessRepository) ListActiveIDsByAssociation(associationID uint) ([]uint, error) {
	if associationID == 0 {
		return []uint{}, nil
	}
	query := r.db.Model(&models.Business{}).Where("status = ?", constants.BusinessStatusActive)
	query = idArrayContains(query, "association_ids", associationID)
	var ids []uint
	if err := query.Order("id asc").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ListIDsAfter 按主键游标分页返回商户ID
func (r *GormBusinessRepository) ListIDsAfter(afterID uint, limit int) ([]uint, error) {
	if limit <= 0 {
		limit = 200
	}
	var ids []uint
	if err := r.db.Model(&models.Business{}).
		Where("id > ?", afterID).
		Order("id asc").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// List 获取商户列表
func (r *GormBusinessRepository) List(filter BusinessListFilter) ([]models.Business, int64, error) {
	query := r.db.Model(&models.Business{})
	if filter.AssociationID > 0 {
		query = idArrayContains(query, "association_ids", filter.AssociationID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)
	var businesses []models.Business
	if err := query.Order("id desc").Find(&businesses).Error; err != nil {
		return nil, 0, err
	}
	return businesses, total, nil
}

// Create 创建商户
func (r *GormBusinessRepository) Create(business *models.Business) error {
	return r.db.Create(business).Error
}

// Update 更新商户
func (r *GormBusinessRepository) Update(business *models.Business) error {
	return r.db.Save(business).Error
}

// UpdateActiveBenefitCount 写入有效权益数（派生值）
func (r *GormBusinessRepository) UpdateActiveBenefitCount(id uint, count int64) error {
	return r.db.Model(&models.Business{}).
		Where("id = ?", id).
		UpdateColumn("active_benefit_count", count).Error
}
