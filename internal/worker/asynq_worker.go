package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/benefit-next/internal/logger"
	"github.com/benefit-next/internal/provider"
	"github.com/benefit-next/internal/queue"
	"github.com/benefit-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
	now func() time.Time
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
		now:       time.Now,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskBenefitCounterSync, c.handleCounterSync)
	mux.HandleFunc(queue.TaskBenefitExpireSweep, c.handleExpireSweep)
	mux.HandleFunc(queue.TaskBenefitCounterResync, c.handleCounterResync)
}

func (c *Consumer) handleCounterSync(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_counter_sync_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CounterSyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_counter_sync_unmarshal_failed", "error", err)
		return err
	}
	if payload.BusinessID == 0 {
		logger.Debugw("worker_counter_sync_skip_invalid_payload", "business_id", payload.BusinessID)
		return nil
	}
	if c.CounterService == nil {
		logger.Warnw("worker_counter_sync_skip_service_nil", "business_id", payload.BusinessID)
		return nil
	}
	count, err := c.CounterService.SyncBusiness(ctx, payload.BusinessID)
	if err != nil {
		switch {
		case service.IsClass(err, service.ErrNotFound):
			logger.Debugw("worker_counter_sync_skip_not_found", "business_id", payload.BusinessID)
			return nil
		default:
			logger.Warnw("worker_counter_sync_failed",
				"business_id", payload.BusinessID,
				"reason", payload.Reason,
				"error", err,
			)
			return err
		}
	}
	logger.Debugw("worker_counter_sync_done",
		"business_id", payload.BusinessID,
		"reason", payload.Reason,
		"active_benefit_count", count,
	)
	return nil
}

func (c *Consumer) handleExpireSweep(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_expire_sweep_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ExpireSweepPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			logger.Warnw("worker_expire_sweep_unmarshal_failed", "error", err)
			return err
		}
	}
	if c.MaintenanceService == nil {
		logger.Warnw("worker_expire_sweep_skip_service_nil")
		return nil
	}
	at := c.now()
	if payload.At != nil {
		at = *payload.At
	}
	report, err := c.MaintenanceService.ExpireDue(ctx, at)
	if err != nil {
		logger.Warnw("worker_expire_sweep_failed", "at", at, "error", err)
		return err
	}
	logger.Infow("worker_expire_sweep_done",
		"scanned", report.Scanned,
		"expired", report.Expired,
		"exhausted", report.Exhausted,
		"failed", report.Failed,
	)
	return nil
}

func (c *Consumer) handleCounterResync(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_counter_resync_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CounterResyncPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			logger.Warnw("worker_counter_resync_unmarshal_failed", "error", err)
			return err
		}
	}
	if c.CounterService == nil {
		logger.Warnw("worker_counter_resync_skip_service_nil")
		return nil
	}
	report, err := c.CounterService.ResyncAll(ctx)
	if err != nil {
		logger.Warnw("worker_counter_resync_failed", "trigger", payload.Trigger, "error", err)
		return err
	}
	if report.Failed > 0 {
		logger.Warnw("worker_counter_resync_partial",
			"trigger", payload.Trigger,
			"failed", report.Failed,
			"failed_ids", report.FailedIDs,
		)
	}
	return nil
}
