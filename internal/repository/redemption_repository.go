package repository

import (
	"github.com/benefit-next/internal/constants"
	"github.com/benefit-next/internal/models"

	"gorm.io/gorm"
)

// RedemptionRepository 核销记录数据访问接口
type RedemptionRepository interface {
	Create(redemption *models.Redemption) error
	CountByMemberAndBenefit(memberID, benefitID uint) (int64, error)
	List(filter RedemptionListFilter) ([]models.Redemption, int64, error)
	ListAll(filter RedemptionListFilter) ([]models.Redemption, error)
	ListBenefitIDsByMember(memberID uint) ([]uint, error)
	WithTx(tx *gorm.DB) *GormRedemptionRepository
}

// GormRedemptionRepository GORM 实现
type GormRedemptionRepository struct {
	db *gorm.DB
}

// NewRedemptionRepository 创建核销记录仓库
func NewRedemptionRepository(db *gorm.DB) *GormRedemptionRepository {
	return &GormRedemptionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRedemptionRepository) WithTx(tx *gorm.DB) *GormRedemptionRepository {
	if tx == nil {
		return r
	}
	return &GormRedemptionRepository{db: tx}
}

// Create 写入核销记录
func (r *GormRedemptionRepository) Create(redemption *models.Redemption) error {
	return r.db.Create(redemption).Error
}

// CountByMemberAndBenefit 统计会员对某权益的成功核销次数
func (r *GormRedemptionRepository) CountByMemberAndBenefit(memberID, benefitID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.Redemption{}).
		Where("member_id = ? AND benefit_id = ? AND status = ?", memberID, benefitID, constants.RedemptionStatusCompleted).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// List 分页查询核销记录
func (r *GormRedemptionRepository) List(filter RedemptionListFilter) ([]models.Redemption, int64, error) {
	query := r.applyFilter(r.db.Model(&models.Redemption{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)
	var redemptions []models.Redemption
	if err := query.Order("created_at desc, id desc").Find(&redemptions).Error; err != nil {
		return nil, 0, err
	}
	return redemptions, total, nil
}

// ListAll 不分页查询核销记录，供统计使用
func (r *GormRedemptionRepository) ListAll(filter RedemptionListFilter) ([]models.Redemption, error) {
	query := r.applyFilter(r.db.Model(&models.Redemption{}), filter)
	var redemptions []models.Redemption
	if err := query.Order("id asc").Find(&redemptions).Error; err != nil {
		return nil, err
	}
	return redemptions, nil
}

// ListBenefitIDsByMember 返回会员核销过的权益ID（去重）
func (r *GormRedemptionRepository) ListBenefitIDsByMember(memberID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.Model(&models.Redemption{}).
		Where("member_id = ?", memberID).
		Distinct("benefit_id").
		Order("benefit_id asc").
		Pluck("benefit_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormRedemptionRepository) applyFilter(query *gorm.DB, filter RedemptionListFilter) *gorm.DB {
	if filter.MemberID > 0 {
		query = query.Where("member_id = ?", filter.MemberID)
	}
	if filter.BusinessID > 0 {
		query = query.Where("business_id = ?", filter.BusinessID)
	}
	if filter.AssociationID > 0 {
		query = query.Where("association_id = ?", filter.AssociationID)
	}
	if filter.BenefitID > 0 {
		query = query.Where("benefit_id = ?", filter.BenefitID)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}
	return query
}
