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
)

// ExpireReport 过期巡检结果
type ExpireReport struct {
	Scanned   int    `json:"scanned"`
	Expired   int    `json:"expired"`
	Exhausted int    `json:"exhausted"`
	Failed    int    `json:"failed"`
	FailedIDs []uint `json:"failed_ids,omitempty"`
}

// MaintenanceService 批量维护任务：过期巡检与计数重算
type MaintenanceService struct {
	benefitRepo repository.BenefitRepository
	benefits    *BenefitService
	counter     *CounterService
	pageSize    int
}

// NewMaintenanceService 创建维护服务
func NewMaintenanceService(
	benefitRepo repository.BenefitRepository,
	benefits *BenefitService,
	counter *CounterService,
	pageSize int,
) *MaintenanceService {
	if pageSize <= 0 {
		pageSize = defaultResyncPageSize
	}
	return &MaintenanceService{
		benefitRepo: benefitRepo,
		benefits:    benefits,
		counter:     counter,
		pageSize:    pageSize,
	}
}

// ExpireDue 将已到期的 active 权益切换为 expired，已达总上限的切换为 exhausted。
// 每条记录独立更新，失败记录后继续；结束后同步受影响商户的计数并清一次缓存。
func (s *MaintenanceService) ExpireDue(ctx context.Context, now time.Time) (ExpireReport, error) {
	report := ExpireReport{}
	touched := make(map[uint]struct{})
	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			s.finish(ctx, report, touched)
			return report, err
		}
		page, err := s.benefitRepo.ListActiveAfter(afterID, s.pageSize)
		if err != nil {
			s.finish(ctx, report, touched)
			return report, storageError(err, "list active benefits")
		}
		if len(page) == 0 {
			break
		}
		for i := range page {
			benefit := &page[i]
			report.Scanned++
			target := dueStatus(benefit, now)
			if target == "" {
				continue
			}
			changed, err := s.benefitRepo.TransitionStatus(benefit.ID, constants.BenefitStatusActive, target, now)
			if err != nil {
				report.Failed++
				report.FailedIDs = append(report.FailedIDs, benefit.ID)
				logger.Warnw("benefit_expire_item_failed",
					"benefit_id", benefit.ID,
					"target_status", target,
					"error", err,
				)
				continue
			}
			if !changed {
				continue
			}
			metrics.ObserveMaintenanceTransition(target)
			touched[benefit.BusinessID] = struct{}{}
			if target == constants.BenefitStatusExpired {
				report.Expired++
			} else {
				report.Exhausted++
			}
		}
		afterID = page[len(page)-1].ID
		if len(page) < s.pageSize {
			break
		}
	}
	s.finish(ctx, report, touched)
	return report, nil
}

// ResyncCounters 全量重算商户计数
func (s *MaintenanceService) ResyncCounters(ctx context.Context) (ResyncReport, error) {
	return s.counter.ResyncAll(ctx)
}

// finish 在调用方取消后仍需完成，已切换状态的商户计数必须同步
func (s *MaintenanceService) finish(ctx context.Context, report ExpireReport, touched map[uint]struct{}) {
	ctx = context.WithoutCancel(ctx)
	logger.Infow("benefit_expire_sweep_completed",
		"scanned", report.Scanned,
		"expired", report.Expired,
		"exhausted", report.Exhausted,
		"failed", report.Failed,
	)
	if len(touched) == 0 {
		return
	}
	if s.counter != nil {
		for businessID := range touched {
			if _, err := s.counter.SyncBusiness(ctx, businessID); err != nil {
				logger.Warnw("benefit_expire_counter_sync_failed", "business_id", businessID, "error", err)
			}
		}
	}
	if s.benefits != nil {
		s.benefits.Invalidate(ctx, notify.Event{Type: constants.BenefitEventChanged})
	}
}

// dueStatus 返回应切换到的状态，无需切换时返回空
func dueStatus(benefit *models.Benefit, now time.Time) string {
	if !now.Before(benefit.EndsAt) {
		return constants.BenefitStatusExpired
	}
	if benefit.CapReached() {
		return constants.BenefitStatusExhausted
	}
	return ""
}
