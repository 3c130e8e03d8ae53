package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/benefit-next/internal/config"
	"github.com/benefit-next/internal/logger"
	"github.com/benefit-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Service 异步队列服务（可选携带维护任务调度器）
type Service struct {
	name      string
	server    *asynq.Server
	mux       *asynq.ServeMux
	consumer  *Consumer
	scheduler *asynq.Scheduler
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, maintenance *config.MaintenanceConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)

	svc := &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}
	if maintenance != nil && maintenance.SchedulerEnabled {
		scheduler, err := newMaintenanceScheduler(opt, maintenance)
		if err != nil {
			return nil, err
		}
		svc.scheduler = scheduler
	}
	return svc, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	_ = ctx
	if s.scheduler != nil {
		if err := s.scheduler.Start(); err != nil {
			return err
		}
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	if s.scheduler != nil {
		s.scheduler.Shutdown()
	}
	s.server.Shutdown()
	return nil
}

// scheduledTask 维护任务的 cron 注册项
type scheduledTask struct {
	name string
	spec string
	task func() (*asynq.Task, error)
}

func maintenanceSchedule(cfg *config.MaintenanceConfig) []scheduledTask {
	return []scheduledTask{
		{
			name: queue.TaskBenefitExpireSweep,
			spec: strings.TrimSpace(cfg.ExpireSweepCron),
			task: func() (*asynq.Task, error) {
				return queue.NewExpireSweepTask(queue.ExpireSweepPayload{})
			},
		},
		{
			name: queue.TaskBenefitCounterResync,
			spec: strings.TrimSpace(cfg.ResyncCron),
			task: func() (*asynq.Task, error) {
				return queue.NewCounterResyncTask(queue.CounterResyncPayload{Trigger: "cron"})
			},
		},
	}
}

func newMaintenanceScheduler(opt asynq.RedisClientOpt, cfg *config.MaintenanceConfig) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.Local})
	for _, item := range maintenanceSchedule(cfg) {
		// cron 为空表示不调度该任务
		if item.spec == "" {
			continue
		}
		task, err := item.task()
		if err != nil {
			return nil, err
		}
		entryID, err := scheduler.Register(item.spec, task, asynq.Queue(queue.MaintenanceQueue), asynq.MaxRetry(1))
		if err != nil {
			return nil, err
		}
		logger.Infow("worker_maintenance_task_scheduled", "task", item.name, "cron", item.spec, "entry_id", entryID)
	}
	return scheduler, nil
}
