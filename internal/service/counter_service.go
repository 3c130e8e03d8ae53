package service

import (
	"context"

	"github.com/benefit-next/internal/logger"
	"github.com/benefit-next/internal/metrics"
	"github.com/benefit-next/internal/queue"
	"github.com/benefit-next/internal/repository"
)

const defaultResyncPageSize = 200

// ResyncReport 全量重算结果
type ResyncReport struct {
	Processed int    `json:"processed"`
	Updated   int    `json:"updated"`
	Failed    int    `json:"failed"`
	FailedIDs []uint `json:"failed_ids,omitempty"`
}

// CounterService 维护商户的有效权益数（派生值）
type CounterService struct {
	businessRepo repository.BusinessRepository
	benefitRepo  repository.BenefitRepository
	queueClient  *queue.Client
	pageSize     int
}

// NewCounterService 创建计数同步服务，queueClient 为空或未启用时同步执行
func NewCounterService(
	businessRepo repository.BusinessRepository,
	benefitRepo repository.BenefitRepository,
	queueClient *queue.Client,
	pageSize int,
) *CounterService {
	if pageSize <= 0 {
		pageSize = defaultResyncPageSize
	}
	return &CounterService{
		businessRepo: businessRepo,
		benefitRepo:  benefitRepo,
		queueClient:  queueClient,
		pageSize:     pageSize,
	}
}

// SyncBusiness 按权威记录重算并写入商户有效权益数。幂等，可并发调用，后写覆盖。
func (s *CounterService) SyncBusiness(ctx context.Context, businessID uint) (int64, error) {
	if businessID == 0 {
		return 0, ErrBusinessNotFound
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count, err := s.benefitRepo.CountActiveByBusiness(businessID)
	if err != nil {
		metrics.ObserveCounterSync(false)
		return 0, storageError(err, "count active benefits")
	}
	if err := s.businessRepo.UpdateActiveBenefitCount(businessID, count); err != nil {
		metrics.ObserveCounterSync(false)
		return 0, storageError(err, "update active benefit count")
	}
	metrics.ObserveCounterSync(true)
	logger.Debugw("benefit_counter_synced", "business_id", businessID, "active_benefit_count", count)
	return count, nil
}

// ResyncAll 分页重算全部商户，单个商户失败记录后继续
func (s *CounterService) ResyncAll(ctx context.Context) (ResyncReport, error) {
	report := ResyncReport{}
	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		ids, err := s.businessRepo.ListIDsAfter(afterID, s.pageSize)
		if err != nil {
			return report, storageError(err, "list businesses")
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			report.Processed++
			if _, err := s.SyncBusiness(ctx, id); err != nil {
				report.Failed++
				report.FailedIDs = append(report.FailedIDs, id)
				logger.Warnw("benefit_counter_resync_item_failed", "business_id", id, "error", err)
				continue
			}
			report.Updated++
		}
		afterID = ids[len(ids)-1]
		if len(ids) < s.pageSize {
			break
		}
	}
	logger.Infow("benefit_counter_resync_completed",
		"processed", report.Processed,
		"updated", report.Updated,
		"failed", report.Failed,
	)
	return report, nil
}

// ScheduleSync 安排一次计数同步：队列可用时异步执行，否则立即同步执行。
// 失败只记录日志，不向调用方返回。
func (s *CounterService) ScheduleSync(ctx context.Context, businessID uint, reason string) {
	if businessID == 0 {
		return
	}
	if s.queueClient != nil && s.queueClient.Enabled() {
		err := s.queueClient.EnqueueCounterSync(queue.CounterSyncPayload{BusinessID: businessID, Reason: reason})
		if err == nil {
			return
		}
		logger.Warnw("benefit_counter_sync_enqueue_failed", "business_id", businessID, "reason", reason, "error", err)
	}
	if _, err := s.SyncBusiness(ctx, businessID); err != nil {
		logger.Warnw("benefit_counter_sync_failed", "business_id", businessID, "reason", reason, "error", err)
	}
}
