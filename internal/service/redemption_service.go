package service

import (
	"context"
	"time"

	"github.com/benefit-next/internal/constants"
	"github.com/benefit-next/internal/logger"
	"github.com/benefit-next/internal/metrics"
	"github.com/benefit-next/internal/models"
	"github.com/benefit-next/internal/notify"
	"github.com/benefit-next/internal/repository"

	cr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RedeemInput 核销参数
type RedeemInput struct {
	BenefitID      uint
	MemberID       uint
	MemberName     string
	MemberDocument string
	BusinessID     uint
	AssociationID  uint
	OriginalAmount *models.Money
}

// RedemptionListInput 核销记录分页查询
type RedemptionListInput struct {
	Page     int
	PageSize int
}

// RedemptionService 权益核销
type RedemptionService struct {
	benefitRepo     repository.BenefitRepository
	redemptionRepo  repository.RedemptionRepository
	memberRepo      repository.MemberRepository
	associationRepo repository.AssociationRepository
	affiliation     *AffiliationService
	benefits        *BenefitService
	counter         *CounterService
	now             func() time.Time
}

// NewRedemptionService 创建核销服务
func NewRedemptionService(
	benefitRepo repository.BenefitRepository,
	redemptionRepo repository.RedemptionRepository,
	memberRepo repository.MemberRepository,
	associationRepo repository.AssociationRepository,
	affiliation *AffiliationService,
	benefits *BenefitService,
	counter *CounterService,
) *RedemptionService {
	return &RedemptionService{
		benefitRepo:     benefitRepo,
		redemptionRepo:  redemptionRepo,
		memberRepo:      memberRepo,
		associationRepo: associationRepo,
		affiliation:     affiliation,
		benefits:        benefits,
		counter:         counter,
		now:             time.Now,
	}
}

// Redeem 核销一次权益。前置条件按顺序校验，每项失败返回对应错误：
// 权益存在且有效、处于有效期、未达总上限、未达每人上限、会员有权访问。
// 核销记录写入与使用次数递增（及达到上限时的 exhausted 切换）在同一事务内完成。
func (s *RedemptionService) Redeem(ctx context.Context, input RedeemInput) (*models.Redemption, error) {
	if input.BenefitID == 0 || input.MemberID == 0 {
		metrics.ObserveRedemption("invalid")
		return nil, ErrRedeemInvalid
	}
	if input.OriginalAmount != nil && input.OriginalAmount.Decimal.IsNegative() {
		metrics.ObserveRedemption("invalid")
		return nil, validationError(ErrRedeemInvalid, "original amount must not be negative")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		redemption *models.Redemption
		exhausted  bool
		businessID uint
		discount   Discount
	)
	now := s.now()
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		benefitRepo := s.benefitRepo.WithTx(tx)
		redemptionRepo := s.redemptionRepo.WithTx(tx)

		benefit, err := benefitRepo.GetByIDForUpdate(input.BenefitID)
		if err != nil {
			return storageError(err, "load benefit")
		}
		if err := checkBenefitRedeemable(benefit, input, now); err != nil {
			return err
		}

		if benefit.PerMemberLimit > 0 {
			used, err := redemptionRepo.CountByMemberAndBenefit(input.MemberID, benefit.ID)
			if err != nil {
				return storageError(err, "count member redemptions")
			}
			if used >= int64(benefit.PerMemberLimit) {
				return ErrBenefitPerMemberLimit
			}
		}

		member, err := s.memberRepo.WithTx(tx).GetByID(input.MemberID)
		if err != nil {
			return storageError(err, "load member")
		}
		if member == nil {
			return ErrMemberNotFound
		}
		if member.Status != "" && member.Status != constants.MemberStatusActive {
			return ErrMemberInactive
		}
		aff, err := s.affiliation.WithTx(tx).ResolveMember(member, input.AssociationID)
		if err != nil {
			return err
		}
		if !memberCanAccess(benefit, aff) {
			return ErrBenefitAccessDenied
		}

		discount, err = DiscountFromBenefit(benefit)
		if err != nil {
			return err
		}
		amount := discount.Apply(input.OriginalAmount)
		record := &models.Redemption{
			RedemptionNo:   uuid.NewString(),
			BenefitID:      benefit.ID,
			BenefitTitle:   benefit.Title,
			MemberID:       member.ID,
			MemberName:     firstNonEmpty(input.MemberName, member.Name),
			MemberDocument: firstNonEmpty(input.MemberDocument, member.DocumentNumber),
			BusinessID:     benefit.BusinessID,
			BusinessName:   benefit.BusinessName,
			DiscountAmount: amount,
			OriginalAmount: input.OriginalAmount,
			FinalAmount:    finalAmount(input.OriginalAmount, amount),
			Status:         constants.RedemptionStatusCompleted,
			CreatedAt:      now,
		}
		if aff.AssociationID > 0 {
			assocID := aff.AssociationID
			record.AssociationID = &assocID
			association, err := s.associationRepo.WithTx(tx).GetByID(assocID)
			if err != nil {
				return storageError(err, "load association")
			}
			if association != nil {
				record.AssociationName = association.Name
			}
		}
		if err := redemptionRepo.Create(record); err != nil {
			return storageError(err, "create redemption")
		}

		// 条件递增：并发下最后一个名额只会被一个事务占用
		consumed, err := benefitRepo.ConsumeSlot(benefit.ID, now)
		if err != nil {
			return storageError(err, "consume benefit slot")
		}
		if !consumed {
			return ErrBenefitUsageLimit
		}

		redemption = record
		businessID = benefit.BusinessID
		exhausted = benefit.UsageLimit > 0 && benefit.UsedCount+1 >= benefit.UsageLimit
		return nil
	})
	if err != nil {
		metrics.ObserveRedemption(redemptionOutcome(err))
		if cr.Is(err, ErrStorage) {
			logger.Errorw("benefit_redeem_storage_failed",
				"benefit_id", input.BenefitID,
				"member_id", input.MemberID,
				"error", err,
			)
		}
		return nil, err
	}

	metrics.ObserveRedemption("success")
	logger.Infow("benefit_redeemed",
		"redemption_no", redemption.RedemptionNo,
		"benefit_id", redemption.BenefitID,
		"member_id", redemption.MemberID,
		"business_id", redemption.BusinessID,
		"discount", describeDiscount(discount),
		"discount_amount", redemption.DiscountAmount.String(),
		"exhausted", exhausted,
	)

	if s.benefits != nil {
		s.benefits.Invalidate(ctx, notify.Event{
			Type:       constants.BenefitEventRedeemed,
			BenefitID:  redemption.BenefitID,
			BusinessID: businessID,
		})
	}
	if exhausted && s.counter != nil {
		s.counter.ScheduleSync(ctx, businessID, constants.BenefitStatusExhausted)
	}
	return redemption, nil
}

// ListByMember 会员核销记录
func (s *RedemptionService) ListByMember(memberID uint, input RedemptionListInput) ([]models.Redemption, int64, error) {
	if memberID == 0 {
		return nil, 0, ErrMemberInvalid
	}
	rows, total, err := s.redemptionRepo.List(repository.RedemptionListFilter{
		MemberID: memberID,
		Page:     input.Page,
		PageSize: input.PageSize,
	})
	if err != nil {
		return nil, 0, storageError(err, "list member redemptions")
	}
	return rows, total, nil
}

// ListByBusiness 商户核销记录
func (s *RedemptionService) ListByBusiness(businessID uint, input RedemptionListInput) ([]models.Redemption, int64, error) {
	if businessID == 0 {
		return nil, 0, ErrBusinessNotFound
	}
	rows, total, err := s.redemptionRepo.List(repository.RedemptionListFilter{
		BusinessID: businessID,
		Page:       input.Page,
		PageSize:   input.PageSize,
	})
	if err != nil {
		return nil, 0, storageError(err, "list business redemptions")
	}
	return rows, total, nil
}

// checkBenefitRedeemable 校验前三项前置条件：存在且有效、有效期、总上限
func checkBenefitRedeemable(benefit *models.Benefit, input RedeemInput, now time.Time) error {
	if benefit == nil {
		return ErrBenefitNotFound
	}
	switch benefit.Status {
	case constants.BenefitStatusActive:
	case constants.BenefitStatusExpired:
		return ErrBenefitExpired
	case constants.BenefitStatusExhausted:
		return ErrBenefitUsageLimit
	default:
		return ErrBenefitInactive
	}
	if input.BusinessID > 0 && input.BusinessID != benefit.BusinessID {
		return ErrBenefitBusinessMismatch
	}
	if now.Before(benefit.StartsAt) {
		return ErrBenefitNotStarted
	}
	if !now.Before(benefit.EndsAt) {
		return ErrBenefitExpired
	}
	if benefit.CapReached() {
		return ErrBenefitUsageLimit
	}
	return nil
}

// memberCanAccess 公开权益、协会匹配、商户在可达集合内，或无协会会员使用直接访问权益
func memberCanAccess(benefit *models.Benefit, aff AffiliationSet) bool {
	switch benefit.AccessMode {
	case constants.AccessModePublic:
		return true
	case constants.AccessModeDirect:
		if !aff.HasAssociation() {
			return true
		}
	}
	if aff.HasAssociation() && benefit.AssociationIDs.Contains(aff.AssociationID) {
		return true
	}
	return aff.Contains(benefit.BusinessID)
}

func redemptionOutcome(err error) string {
	switch {
	case cr.Is(err, ErrNotFound):
		return "not_found"
	case cr.Is(err, ErrExpired):
		return "expired"
	case cr.Is(err, ErrCapReached):
		return "cap_reached"
	case cr.Is(err, ErrAccessDenied):
		return "access_denied"
	case cr.Is(err, ErrValidation):
		return "invalid"
	case cr.Is(err, ErrStorage):
		return "storage_error"
	default:
		return "error"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
