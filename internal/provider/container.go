package provider

import (
	"context"

	"github.com/benefit-next/internal/cache"
	"github.com/benefit-next/internal/config"
	"github.com/benefit-next/internal/logger"
	"github.com/benefit-next/internal/models"
	"github.com/benefit-next/internal/notify"
	"github.com/benefit-next/internal/queue"
	"github.com/benefit-next/internal/repository"
	"github.com/benefit-next/internal/service"
)

const benefitEventsChannel = "benefit_events"

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Hub         *notify.Hub

	// Repositories
	AssociationRepo repository.AssociationRepository
	BusinessRepo    repository.BusinessRepository
	MemberRepo      repository.MemberRepository
	BenefitRepo     repository.BenefitRepository
	RedemptionRepo  repository.RedemptionRepository

	// Services
	AffiliationService  *service.AffiliationService
	BenefitCatalog      *service.BenefitCatalog
	BenefitService      *service.BenefitService
	CounterService      *service.CounterService
	RedemptionService   *service.RedemptionService
	StatsService        *service.StatsService
	BenefitAdminService *service.BenefitAdminService
	MaintenanceService  *service.MaintenanceService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Hub:         notify.NewHub(cfg.Benefit.SubscriptionBufferSize),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	// 3. 多实例事件广播
	c.initEventBridge()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AssociationRepo = repository.NewAssociationRepository(db)
	c.BusinessRepo = repository.NewBusinessRepository(db)
	c.MemberRepo = repository.NewMemberRepository(db)
	c.BenefitRepo = repository.NewBenefitRepository(db)
	c.RedemptionRepo = repository.NewRedemptionRepository(db)
}

func (c *Container) initServices() {
	benefitCfg := c.Config.Benefit

	affiliationCache := cache.New[service.AffiliationKey, service.AffiliationSet](
		"affiliation", benefitCfg.ListCacheTTL(), benefitCfg.ListCacheMaxEntries,
	)
	listCache := cache.New[service.BenefitListKey, []service.AvailableBenefit](
		"benefit_list", benefitCfg.ListCacheTTL(), benefitCfg.ListCacheMaxEntries,
	)
	statsCache := cache.New[service.StatsScope, *service.StatsSummary](
		"stats", benefitCfg.StatsCacheTTL(), benefitCfg.ListCacheMaxEntries,
	)

	c.AffiliationService = service.NewAffiliationService(c.MemberRepo, c.BusinessRepo, affiliationCache)
	c.BenefitCatalog = service.NewBenefitCatalog(c.BenefitRepo, service.CatalogOptions{
		PublicFallbackLimit: benefitCfg.PublicFallbackLimit,
		InQueryBatchSize:    benefitCfg.InQueryBatchSize,
	})
	c.BenefitService = service.NewBenefitService(
		c.AffiliationService,
		c.BenefitCatalog,
		listCache,
		c.Hub,
		service.BenefitListOptions{
			DefaultLimit: benefitCfg.DefaultListLimit,
			Windows: service.EligibilityWindows{
				New:      benefitCfg.NewWindow(),
				Expiring: benefitCfg.ExpiringWindow(),
			},
		},
	)
	c.CounterService = service.NewCounterService(c.BusinessRepo, c.BenefitRepo, c.QueueClient, c.Config.Maintenance.PageSize)
	c.RedemptionService = service.NewRedemptionService(
		c.BenefitRepo,
		c.RedemptionRepo,
		c.MemberRepo,
		c.AssociationRepo,
		c.AffiliationService,
		c.BenefitService,
		c.CounterService,
	)
	c.StatsService = service.NewStatsService(
		c.BenefitRepo,
		c.RedemptionRepo,
		c.BusinessRepo,
		c.AssociationRepo,
		c.MemberRepo,
		statsCache,
		benefitCfg.StatsTopBenefits,
	)
	c.BenefitService.RegisterPurger(c.StatsService)
	c.BenefitAdminService = service.NewBenefitAdminService(c.BenefitRepo, c.BusinessRepo, c.BenefitService, c.CounterService)
	c.MaintenanceService = service.NewMaintenanceService(c.BenefitRepo, c.BenefitService, c.CounterService, c.Config.Maintenance.PageSize)
}

func (c *Container) initEventBridge() {
	if !cache.Enabled() {
		return
	}
	channel := cache.BuildKey(benefitEventsChannel)
	if err := c.Hub.StartBridge(context.Background(), cache.Client(), channel); err != nil {
		logger.Warnw("provider_init_event_bridge_failed", "channel", channel, "error", err)
	}
}

// Close 释放容器持有的外部连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.Hub != nil {
		c.Hub.StopBridge()
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warnw("provider_close_queue_client_failed", "error", err)
		}
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}
