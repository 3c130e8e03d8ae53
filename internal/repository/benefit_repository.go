package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/benefit-next/internal/constants"
	"github.com/benefit-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BenefitRepository 权益数据访问接口
type BenefitRepository interface {
	GetByID(id uint) (*models.Benefit, error)
	GetByIDForUpdate(id uint) (*models.Benefit, error)
	ListByIDs(ids []uint) ([]models.Benefit, error)
	ListActiveByAssociation(associationID uint) ([]models.Benefit, error)
	ListActiveByBusinessIDs(businessIDs []uint) ([]models.Benefit, error)
	ListActiveByAccessMode(accessMode string, limit int) ([]models.Benefit, error)
	ListActiveAfter(afterID uint, limit int) ([]models.Benefit, error)
	ListByScope(scope BenefitScope) ([]models.Benefit, error)
	List(filter BenefitListFilter) ([]models.Benefit, int64, error)
	CountActiveByBusiness(businessID uint) (int64, error)
	Create(benefit *models.Benefit) error
	Update(benefit *models.Benefit) error
	ConsumeSlot(id uint, now time.Time) (bool, error)
	TransitionStatus(id uint, from, to string, now time.Time) (bool, error)
	WithTx(tx *gorm.DB) *GormBenefitRepository
}

// GormBenefitRepository GORM 实现
type GormBenefitRepository struct {
	db *gorm.DB
}

// NewBenefitRepository 创建权益仓库
func NewBenefitRepository(db *gorm.DB) *GormBenefitRepository {
	return &GormBenefitRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBenefitRepository) WithTx(tx *gorm.DB) *GormBenefitRepository {
	if tx == nil {
		return r
	}
	return &GormBenefitRepository{db: tx}
}

// GetByID 根据ID获取权益
func (r *GormBenefitRepository) GetByID(id uint) (*models.Benefit, error) {
	var benefit models.Benefit
	if err := r.db.First(&benefit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &benefit, nil
}

// GetByIDForUpdate 加锁读取权益（sqlite 下忽略锁子句，由写事务串行化）
func (r *GormBenefitRepository) GetByIDForUpdate(id uint) (*models.Benefit, error) {
	var benefit models.Benefit
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&benefit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &benefit, nil
}

// ListByIDs 批量获取权益
func (r *GormBenefitRepository) ListByIDs(ids []uint) ([]models.Benefit, error) {
	if len(ids) == 0 {
		return []models.Benefit{}, nil
	}
	var benefits []models.Benefit
	if err := r.db.Where("id IN ?", ids).Order("id asc").Find(&benefits).Error; err != nil {
		return nil, err
	}
	return benefits, nil
}

// ListActiveByAssociation 查询可达协会列表包含指定协会的有效权益
func (r *GormBenefitRepository) ListActiveByAssociation(associationID uint) ([]models.Benefit, error) {
	if associationID == 0 {
		return []models.Benefit{}, nil
	}
	query := r.db.Model(&models.Benefit{}).Where("status = ?", constants.BenefitStatusActive)
	query = idArrayContains(query, "association_ids", associationID)
	var benefits []models.Benefit
	if err := query.Order("created_at desc, id desc").Find(&benefits).Error; err != nil {
		return nil, err
	}
	return benefits, nil
}

// ListActiveByBusinessIDs 查询一批商户的有效权益，批大小由调用方控制
func (r *GormBenefitRepository) ListActiveByBusinessIDs(businessIDs []uint) ([]models.Benefit, error) {
	if len(businessIDs) == 0 {
		return []models.Benefit{}, nil
	}
	var benefits []models.Benefit
	if err := r.db.Where("status = ? AND business_id IN ?", constants.BenefitStatusActive, businessIDs).
		Order("created_at desc, id desc").
		Find(&benefits).Error; err != nil {
		return nil, err
	}
	return benefits, nil
}

// ListActiveByAccessMode 查询指定访问方式的有效权益，limit <= 0 表示不限制
func (r *GormBenefitRepository) ListActiveByAccessMode(accessMode string, limit int) ([]models.Benefit, error) {
	query := r.db.Where("status = ? AND access_mode = ?", constants.BenefitStatusActive, accessMode).
		Order("created_at desc, id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var benefits []models.Benefit
	if err := query.Find(&benefits).Error; err != nil {
		return nil, err
	}
	return benefits, nil
}

// ListActiveAfter 按主键游标分页返回有效权益
func (r *GormBenefitRepository) ListActiveAfter(afterID uint, limit int) ([]models.Benefit, error) {
	if limit <= 0 {
		limit = 200
	}
	var benefits []models.Benefit
	if err := r.db.Where("status = ? AND id > ?", constants.BenefitStatusActive, afterID).
		Order("id asc").
		Limit(limit).
		Find(&benefits).Error; err != nil {
		return nil, err
	}
	return benefits, nil
}

// ListByScope 查询统计范围内的全部权益（不区分状态）
func (r *GormBenefitRepository) ListByScope(scope BenefitScope) ([]models.Benefit, error) {
	query := r.db.Model(&models.Benefit{})
	switch {
	case scope.BusinessID > 0:
		query = query.Where("business_id = ?", scope.BusinessID)
	case scope.AssociationID > 0:
		query = idArrayContains(query, "association_ids", scope.AssociationID)
	default:
		if len(scope.IDs) == 0 {
			return []models.Benefit{}, nil
		}
		query = query.Where("id IN ?", scope.IDs)
	}
	var benefits []models.Benefit
	if err := query.Order("id asc").Find(&benefits).Error; err != nil {
		return nil, err
	}
	return benefits, nil
}

// List 管理端权益列表
func (r *GormBenefitRepository) List(filter BenefitListFilter) ([]models.Benefit, int64, error) {
	query := r.db.Model(&models.Benefit{})
	if filter.BusinessID > 0 {
		query = query.Where("business_id = ?", filter.BusinessID)
	}
	if filter.AssociationID > 0 {
		query = idArrayContains(query, "association_ids", filter.AssociationID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if mode := strings.TrimSpace(filter.AccessMode); mode != "" {
		query = query.Where("access_mode = ?", mode)
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		query = query.Where("category = ?", category)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		condition, argCount := buildLikeCondition(r.db, []string{"title", "description", "business_name"})
		query = query.Where(condition, repeatLikeArgs("%"+search+"%", argCount)...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)
	var benefits []models.Benefit
	if err := query.Order("id desc").Find(&benefits).Error; err != nil {
		return nil, 0, err
	}
	return benefits, total, nil
}

// CountActiveByBusiness 统计商户当前有效权益数
func (r *GormBenefitRepository) CountActiveByBusiness(businessID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.Benefit{}).
		Where("business_id = ? AND status = ?", businessID, constants.BenefitStatusActive).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create 创建权益
func (r *GormBenefitRepository) Create(benefit *models.Benefit) error {
	return r.db.Create(benefit).Error
}

// Update 更新权益
func (r *GormBenefitRepository) Update(benefit *models.Benefit) error {
	return r.db.Save(benefit).Error
}

// ConsumeSlot 原子占用一个使用名额：仅当权益有效且未达总上限时 used_count + 1，
// 达到上限时同一条语句内切换为 exhausted。返回是否占用成功。
func (r *GormBenefitRepository) ConsumeSlot(id uint, now time.Time) (bool, error) {
	result := r.db.Model(&models.Benefit{}).
		Where("id = ? AND status = ?", id, constants.BenefitStatusActive).
		Where("usage_limit = 0 OR used_count < usage_limit").
		UpdateColumns(map[string]interface{}{
			"used_count": gorm.Expr("used_count + ?", 1),
			"status": gorm.Expr(
				"CASE WHEN usage_limit > 0 AND used_count + 1 >= usage_limit THEN ? ELSE status END",
				constants.BenefitStatusExhausted,
			),
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TransitionStatus 条件更新状态（仅当当前状态为 from），返回是否发生变更
func (r *GormBenefitRepository) TransitionStatus(id uint, from, to string, now time.Time) (bool, error) {
	result := r.db.Model(&models.Benefit{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(map[string]interface{}{
			"status":     to,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
