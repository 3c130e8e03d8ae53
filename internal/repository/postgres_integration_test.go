//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/benefit-next/internal/constants"
	"github.com/benefit-next/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.Redemption{},
		&models.Benefit{},
		&models.Member{},
		&models.Business{},
		&models.Association{},
	}
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := models.AutoMigrateWith(db); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestPostgresBenefitListSearchIsCaseInsensitive(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	now := time.Now()

	business := &models.Business{Name: "Cafe", Status: constants.BusinessStatusActive}
	if err := db.Create(business).Error; err != nil {
		t.Fatalf("create business failed: %v", err)
	}
	benefits := []models.Benefit{
		{Title: "Espresso Deal", DiscountType: constants.DiscountTypeFixed, DiscountValue: models.NewMoneyFromInt(2), StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour), Status: constants.BenefitStatusActive, AccessMode: constants.AccessModeAssociation, AssociationIDs: models.IDList{11}, BusinessID: business.ID},
		{Title: "Tea Time", DiscountType: constants.DiscountTypeFixed, DiscountValue: models.NewMoneyFromInt(1), StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour), Status: constants.BenefitStatusActive, AccessMode: constants.AccessModeAssociation, AssociationIDs: models.IDList{1}, BusinessID: business.ID},
	}
	if err := db.Create(&benefits).Error; err != nil {
		t.Fatalf("create benefits failed: %v", err)
	}

	repo := NewBenefitRepository(db)
	rows, total, err := repo.List(BenefitListFilter{Page: 1, PageSize: 10, Search: "espresso"})
	if err != nil {
		t.Fatalf("list benefits failed: %v", err)
	}
	if total != 1 || len(rows) != 1 || rows[0].Title != "Espresso Deal" {
		t.Fatalf("unexpected search result: total=%d rows=%+v", total, rows)
	}

	scoped, err := repo.ListActiveByAssociation(1)
	if err != nil {
		t.Fatalf("list by association failed: %v", err)
	}
	if len(scoped) != 1 || scoped[0].Title != "Tea Time" {
		t.Fatalf("association 1 should not match 11, got %+v", scoped)
	}
}

func TestPostgresConsumeSlotAndPerMemberCount(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	now := time.Now()

	benefit := &models.Benefit{
		Title:         "Gym Pass",
		DiscountType:  constants.DiscountTypeFreeItem,
		StartsAt:      now.Add(-time.Hour),
		EndsAt:        now.Add(time.Hour),
		Status:        constants.BenefitStatusActive,
		AccessMode:    constants.AccessModePublic,
		UsageLimit:    1,
		BusinessID:    1,
		DiscountValue: models.NewMoneyFromInt(0),
	}
	if err := db.Create(benefit).Error; err != nil {
		t.Fatalf("create benefit failed: %v", err)
	}

	repo := NewBenefitRepository(db)
	ok, err := repo.ConsumeSlot(benefit.ID, now)
	if err != nil || !ok {
		t.Fatalf("first consume should succeed: ok=%v err=%v", ok, err)
	}
	ok, err = repo.ConsumeSlot(benefit.ID, now)
	if err != nil || ok {
		t.Fatalf("second consume should be rejected: ok=%v err=%v", ok, err)
	}

	redemptionRepo := NewRedemptionRepository(db)
	if err := redemptionRepo.Create(&models.Redemption{
		RedemptionNo: "RD-PG-1",
		BenefitID:    benefit.ID,
		MemberID:     7,
		BusinessID:   1,
		Status:       constants.RedemptionStatusCompleted,
	}); err != nil {
		t.Fatalf("create redemption failed: %v", err)
	}
	count, err := redemptionRepo.CountByMemberAndBenefit(7, benefit.ID)
	if err != nil || count != 1 {
		t.Fatalf("per member count want 1 got %d err=%v", count, err)
	}
}
