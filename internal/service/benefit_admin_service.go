package service

import (
	"context"
	"strings"
	"time"

	"github.com/benefit-next/internal/constants"
	"github.com/benefit-next/internal/logger"
	"github.com/benefit-next/internal/models"
	"github.com/benefit-next/internal/notify"
	"github.com/benefit-next/internal/repository"

	cr "github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var benefitValidate = validator.New()

// BenefitInput 创建/编辑权益参数
type BenefitInput struct {
	Title          string       `json:"title" validate:"required,max=200"`
	Description    string       `json:"description" validate:"max=4000"`
	Category       string       `json:"category" validate:"max=64"`
	DiscountType   string       `json:"discount_type" validate:"required,oneof=percentage fixed free_item"`
	DiscountValue  models.Money `json:"discount_value"`
	StartsAt       time.Time    `json:"starts_at" validate:"required"`
	EndsAt         time.Time    `json:"ends_at" validate:"required,gtfield=StartsAt"`
	AccessMode     string       `json:"access_mode" validate:"required,oneof=public association direct"`
	BusinessID     uint         `json:"business_id" validate:"required"`
	AssociationIDs []uint       `json:"association_ids"`
	PerMemberLimit int          `json:"per_member_limit" validate:"gte=0"`
	UsageLimit     int          `json:"usage_limit" validate:"gte=0"`
	Tags           []string     `json:"tags" validate:"max=20,dive,max=32"`
	IsFeatured     bool         `json:"is_featured"`
}

// BenefitAdminService 权益管理（创建、编辑、下架、重新上架）
type BenefitAdminService struct {
	benefitRepo  repository.BenefitRepository
	businessRepo repository.BusinessRepository
	benefits     *BenefitService
	counter      *CounterService
	now          func() time.Time
}

// NewBenefitAdminService 创建权益管理服务
func NewBenefitAdminService(
	benefitRepo repository.BenefitRepository,
	businessRepo repository.BusinessRepository,
	benefits *BenefitService,
	counter *CounterService,
) *BenefitAdminService {
	return &BenefitAdminService{
		benefitRepo:  benefitRepo,
		businessRepo: businessRepo,
		benefits:     benefits,
		counter:      counter,
		now:          time.Now,
	}
}

// List 管理端权益列表
func (s *BenefitAdminService) List(filter repository.BenefitListFilter) ([]models.Benefit, int64, error) {
	rows, total, err := s.benefitRepo.List(filter)
	if err != nil {
		return nil, 0, storageError(err, "list benefits")
	}
	return rows, total, nil
}

// Get 获取单个权益
func (s *BenefitAdminService) Get(id uint) (*models.Benefit, error) {
	if id == 0 {
		return nil, ErrBenefitNotFound
	}
	benefit, err := s.benefitRepo.GetByID(id)
	if err != nil {
		return nil, storageError(err, "load benefit")
	}
	if benefit == nil {
		return nil, ErrBenefitNotFound
	}
	return benefit, nil
}

// Create 创建权益，初始状态为 active
func (s *BenefitAdminService) Create(ctx context.Context, input BenefitInput) (*models.Benefit, error) {
	input = normalizeBenefitInput(input)
	if err := validateBenefitInput(input); err != nil {
		return nil, err
	}
	business, err := s.loadActiveBusiness(input.BusinessID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	benefit := &models.Benefit{Status: constants.BenefitStatusActive, CreatedAt: now}
	applyBenefitInput(benefit, input, business)
	benefit.UpdatedAt = now
	if err := s.benefitRepo.Create(benefit); err != nil {
		return nil, storageError(err, "create benefit")
	}

	logger.Infow("benefit_created",
		"benefit_id", benefit.ID,
		"business_id", benefit.BusinessID,
		"access_mode", benefit.AccessMode,
	)
	s.afterMutation(ctx, benefit, benefit.BusinessID)
	return benefit, nil
}

// Update 编辑权益。已使用次数保持不变；总上限调整后按上限重新判定 active/exhausted。
func (s *BenefitAdminService) Update(ctx context.Context, id uint, input BenefitInput) (*models.Benefit, error) {
	if id == 0 {
		return nil, ErrBenefitNotFound
	}
	input = normalizeBenefitInput(input)
	if err := validateBenefitInput(input); err != nil {
		return nil, err
	}
	business, err := s.loadActiveBusiness(input.BusinessID)
	if err != nil {
		return nil, err
	}

	var (
		updated     *models.Benefit
		oldBusiness uint
	)
	now := s.now()
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		benefitRepo := s.benefitRepo.WithTx(tx)
		benefit, err := benefitRepo.GetByIDForUpdate(id)
		if err != nil {
			return storageError(err, "load benefit")
		}
		if benefit == nil {
			return ErrBenefitNotFound
		}
		oldBusiness = benefit.BusinessID
		applyBenefitInput(benefit, input, business)
		benefit.UpdatedAt = now
		switch {
		case benefit.Status == constants.BenefitStatusActive && benefit.CapReached():
			benefit.Status = constants.BenefitStatusExhausted
		case benefit.Status == constants.BenefitStatusExhausted && !benefit.CapReached():
			benefit.Status = constants.BenefitStatusActive
		}
		if err := benefitRepo.Update(benefit); err != nil {
			return storageError(err, "update benefit")
		}
		updated = benefit
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("benefit_updated",
		"benefit_id", updated.ID,
		"business_id", updated.BusinessID,
		"previous_business_id", oldBusiness,
		"status", updated.Status,
	)
	s.afterMutation(ctx, updated, oldBusiness)
	return updated, nil
}

// Deactivate 下架权益（软删除），已下架时直接返回
func (s *BenefitAdminService) Deactivate(ctx context.Context, id uint) (*models.Benefit, error) {
	benefit, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if benefit.Status == constants.BenefitStatusInactive {
		return benefit, nil
	}
	if err := s.transition(benefit, constants.BenefitStatusInactive); err != nil {
		return nil, err
	}
	logger.Infow("benefit_deactivated", "benefit_id", benefit.ID, "business_id", benefit.BusinessID)
	s.afterMutation(ctx, benefit, benefit.BusinessID)
	return benefit, nil
}

// Reactivate 重新上架：仅当仍在有效期内且总上限未满
func (s *BenefitAdminService) Reactivate(ctx context.Context, id uint) (*models.Benefit, error) {
	benefit, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if benefit.Status == constants.BenefitStatusActive {
		return benefit, nil
	}
	now := s.now()
	if !now.Before(benefit.EndsAt) {
		return nil, validationError(ErrBenefitStateInvalid, "benefit %d ended at %s", benefit.ID, benefit.EndsAt.Format(time.RFC3339))
	}
	if benefit.CapReached() {
		return nil, validationError(ErrBenefitStateInvalid, "benefit %d usage limit reached", benefit.ID)
	}
	if _, err := s.loadActiveBusiness(benefit.BusinessID); err != nil {
		return nil, err
	}
	if err := s.transition(benefit, constants.BenefitStatusActive); err != nil {
		return nil, err
	}
	logger.Infow("benefit_reactivated", "benefit_id", benefit.ID, "business_id", benefit.BusinessID)
	s.afterMutation(ctx, benefit, benefit.BusinessID)
	return benefit, nil
}

func (s *BenefitAdminService) transition(benefit *models.Benefit, to string) error {
	now := s.now()
	changed, err := s.benefitRepo.TransitionStatus(benefit.ID, benefit.Status, to, now)
	if err != nil {
		return storageError(err, "transition benefit status")
	}
	if !changed {
		// 状态已被并发修改
		return validationError(ErrBenefitStateInvalid, "benefit %d is no longer %s", benefit.ID, benefit.Status)
	}
	benefit.Status = to
	benefit.UpdatedAt = now
	return nil
}

func (s *BenefitAdminService) loadActiveBusiness(id uint) (*models.Business, error) {
	business, err := s.businessRepo.GetByID(id)
	if err != nil {
		return nil, storageError(err, "load business")
	}
	if business == nil {
		return nil, ErrBusinessNotFound
	}
	if business.Status != constants.BusinessStatusActive {
		return nil, ErrBusinessInactive
	}
	return business, nil
}

// afterMutation 清缓存、通知订阅方并同步商户计数；归属变更时两个商户都同步
func (s *BenefitAdminService) afterMutation(ctx context.Context, benefit *models.Benefit, previousBusinessID uint) {
	if s.benefits != nil {
		s.benefits.Invalidate(ctx, notify.Event{
			Type:       constants.BenefitEventChanged,
			BenefitID:  benefit.ID,
			BusinessID: benefit.BusinessID,
		})
	}
	if s.counter == nil {
		return
	}
	s.counter.ScheduleSync(ctx, benefit.BusinessID, "benefit_mutation")
	if previousBusinessID > 0 && previousBusinessID != benefit.BusinessID {
		s.counter.ScheduleSync(ctx, previousBusinessID, "benefit_ownership_change")
	}
}

func normalizeBenefitInput(input BenefitInput) BenefitInput {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Category = strings.TrimSpace(input.Category)
	input.DiscountType = strings.ToLower(strings.TrimSpace(input.DiscountType))
	input.AccessMode = strings.ToLower(strings.TrimSpace(input.AccessMode))
	tags := make([]string, 0, len(input.Tags))
	for _, tag := range input.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	input.Tags = tags
	input.AssociationIDs = []uint(models.IDList(input.AssociationIDs).Normalize())
	return input
}

func validateBenefitInput(input BenefitInput) error {
	if err := benefitValidate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if cr.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return validationError(ErrBenefitInvalid, "field %s failed on %s", first.Field(), first.Tag())
		}
		return validationError(ErrBenefitInvalid, "%v", err)
	}
	value := input.DiscountValue.Decimal
	switch input.DiscountType {
	case constants.DiscountTypePercentage:
		if !value.IsPositive() || value.GreaterThan(hundred) {
			return validationError(ErrBenefitInvalid, "percentage must be within (0, 100]")
		}
	case constants.DiscountTypeFixed:
		if !value.IsPositive() {
			return validationError(ErrBenefitInvalid, "fixed discount must be positive")
		}
	}
	if input.AccessMode == constants.AccessModeAssociation && len(input.AssociationIDs) == 0 {
		return validationError(ErrBenefitInvalid, "association benefits need at least one association")
	}
	return nil
}

func applyBenefitInput(benefit *models.Benefit, input BenefitInput, business *models.Business) {
	benefit.Title = input.Title
	benefit.Description = input.Description
	benefit.Category = input.Category
	benefit.DiscountType = input.DiscountType
	benefit.DiscountValue = models.NewMoneyFromDecimal(input.DiscountValue.Decimal)
	benefit.StartsAt = input.StartsAt
	benefit.EndsAt = input.EndsAt
	benefit.AccessMode = input.AccessMode
	benefit.BusinessID = business.ID
	benefit.BusinessName = business.Name
	benefit.AssociationIDs = models.IDList(input.AssociationIDs)
	benefit.PerMemberLimit = input.PerMemberLimit
	benefit.UsageLimit = input.UsageLimit
	benefit.Tags = models.StringArray(input.Tags)
	benefit.IsFeatured = input.IsFeatured
}
