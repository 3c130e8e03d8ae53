package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/benefit-next/internal/cache"
	"github.com/benefit-next/internal/constants"
	"github.com/benefit-next/internal/models"
	"github.com/benefit-next/internal/notify"
	"github.com/benefit-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type benefitEngineEnv struct {
	db              *gorm.DB
	now             time.Time
	benefitRepo     *repository.GormBenefitRepository
	businessRepo    *repository.GormBusinessRepository
	memberRepo      *repository.GormMemberRepository
	associationRepo *repository.GormAssociationRepository
	redemptionRepo  *repository.GormRedemptionRepository
	hub             *notify.Hub
	affiliation     *AffiliationService
	catalog         *BenefitCatalog
	benefits        *BenefitService
	counter         *CounterService
	redemptions     *RedemptionService
	stats           *StatsService
	admin           *BenefitAdminService
	maintenance     *MaintenanceService
}

func setupBenefitEngineTest(t *testing.T) *benefitEngineEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:benefit_engine_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.AutoMigrateWith(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	// 内存库共享缓存模式下并发写会触发表锁，串行化连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	models.DB = db

	env := &benefitEngineEnv{
		db:              db,
		now:             time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC),
		benefitRepo:     repository.NewBenefitRepository(db),
		businessRepo:    repository.NewBusinessRepository(db),
		memberRepo:      repository.NewMemberRepository(db),
		associationRepo: repository.NewAssociationRepository(db),
		redemptionRepo:  repository.NewRedemptionRepository(db),
		hub:             notify.NewHub(8),
	}
	clock := func() time.Time { return env.now }

	affCache := cache.NewMemoryCache[AffiliationKey, AffiliationSet](time.Minute, 100).WithClock(clock)
	listCache := cache.NewMemoryCache[BenefitListKey, []AvailableBenefit](time.Minute, 100).WithClock(clock)
	statsCache := cache.NewMemoryCache[StatsScope, *StatsSummary](time.Minute, 100).WithClock(clock)

	env.affiliation = NewAffiliationService(env.memberRepo, env.businessRepo, affCache)
	env.catalog = NewBenefitCatalog(env.benefitRepo, CatalogOptions{})
	env.benefits = NewBenefitService(env.affiliation, env.catalog, listCache, env.hub, BenefitListOptions{})
	env.benefits.now = clock
	env.counter = NewCounterService(env.businessRepo, env.benefitRepo, nil, 2)
	env.redemptions = NewRedemptionService(
		env.benefitRepo,
		env.redemptionRepo,
		env.memberRepo,
		env.associationRepo,
		env.affiliation,
		env.benefits,
		env.counter,
	)
	env.redemptions.now = clock
	env.stats = NewStatsService(
		env.benefitRepo,
		env.redemptionRepo,
		env.businessRepo,
		env.associationRepo,
		env.memberRepo,
		statsCache,
		3,
	)
	env.stats.now = clock
	env.benefits.RegisterPurger(env.stats)
	env.admin = NewBenefitAdminService(env.benefitRepo, env.businessRepo, env.benefits, env.counter)
	env.admin.now = clock
	env.maintenance = NewMaintenanceService(env.benefitRepo, env.benefits, env.counter, 2)
	return env
}

func (env *benefitEngineEnv) seedAssociation(t *testing.T, name string) *models.Association {
	t.Helper()
	row := &models.Association{Name: name, Status: constants.AssociationStatusActive}
	if err := env.db.Create(row).Error; err != nil {
		t.Fatalf("create association failed: %v", err)
	}
	return row
}

func (env *benefitEngineEnv) seedBusiness(t *testing.T, name string, associationIDs ...uint) *models.Business {
	t.Helper()
	row := &models.Business{
		Name:           name,
		Category:       "general",
		Status:         constants.BusinessStatusActive,
		AssociationIDs: models.IDList(associationIDs),
	}
	if err := env.db.Create(row).Error; err != nil {
		t.Fatalf("create business failed: %v", err)
	}
	return row
}

func (env *benefitEngineEnv) seedMember(t *testing.T, name string, associationID uint, directBusinessIDs ...uint) *models.Member {
	t.Helper()
	row := &models.Member{
		Name:              name,
		DocumentNumber:    "DOC-" + name,
		Status:            constants.MemberStatusActive,
		DirectBusinessIDs: models.IDList(directBusinessIDs),
	}
	if associationID > 0 {
		row.AssociationID = &associationID
	}
	if err := env.db.Create(row).Error; err != nil {
		t.Fatalf("create member failed: %v", err)
	}
	return row
}

// seedBenefit 以默认值（公开、10% 折扣、昨天开始、30 天后结束）创建权益，mutate 可覆盖字段
func (env *benefitEngineEnv) seedBenefit(t *testing.T, business *models.Business, mutate func(b *models.Benefit)) *models.Benefit {
	t.Helper()
	row := &models.Benefit{
		Title:         "Benefit of " + business.Name,
		Description:   "member discount",
		Category:      "food",
		DiscountType:  constants.DiscountTypePercentage,
		DiscountValue: models.NewMoneyFromInt(10),
		StartsAt:      env.now.Add(-24 * time.Hour),
		EndsAt:        env.now.Add(30 * 24 * time.Hour),
		Status:        constants.BenefitStatusActive,
		AccessMode:    constants.AccessModePublic,
		BusinessID:    business.ID,
		BusinessName:  business.Name,
		CreatedAt:     env.now.Add(-time.Hour),
	}
	if mutate != nil {
		mutate(row)
	}
	if err := env.db.Create(row).Error; err != nil {
		t.Fatalf("create benefit failed: %v", err)
	}
	return row
}

func (env *benefitEngineEnv) reloadBenefit(t *testing.T, id uint) *models.Benefit {
	t.Helper()
	var row models.Benefit
	if err := env.db.First(&row, id).Error; err != nil {
		t.Fatalf("reload benefit failed: %v", err)
	}
	return &row
}

func (env *benefitEngineEnv) reloadBusiness(t *testing.T, id uint) *models.Business {
	t.Helper()
	var row models.Business
	if err := env.db.First(&row, id).Error; err != nil {
		t.Fatalf("reload business failed: %v", err)
	}
	return &row
}

func moneyOf(raw string) models.Money {
	return models.NewMoneyFromDecimal(decimal.RequireFromString(raw))
}

func benefitIDs(items []AvailableBenefit) []uint {
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}
