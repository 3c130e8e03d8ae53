package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/benefit-next/internal/config"
	"github.com/benefit-next/internal/constants"
	"github.com/benefit-next/internal/models"
	"github.com/benefit-next/internal/provider"
	"github.com/benefit-next/internal/queue"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

func setupWorkerTest(t *testing.T) (*Consumer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	models.DB = db

	container := provider.NewContainer(&config.Config{})
	t.Cleanup(container.Close)
	return NewConsumer(container), db
}

func seedWorkerBusiness(t *testing.T, db *gorm.DB, staleCount int) *models.Business {
	t.Helper()
	row := &models.Business{Name: "Cafe", Status: constants.BusinessStatusActive, ActiveBenefitCount: staleCount}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("create business failed: %v", err)
	}
	return row
}

func seedWorkerBenefit(t *testing.T, db *gorm.DB, business *models.Business, startsAt, endsAt time.Time) *models.Benefit {
	t.Helper()
	row := &models.Benefit{
		Title:         "Coffee",
		DiscountType:  constants.DiscountTypePercentage,
		DiscountValue: models.NewMoneyFromInt(10),
		StartsAt:      startsAt,
		EndsAt:        endsAt,
		Status:        constants.BenefitStatusActive,
		AccessMode:    constants.AccessModePublic,
		BusinessID:    business.ID,
		BusinessName:  business.Name,
	}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("create benefit failed: %v", err)
	}
	return row
}

func activeCount(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var row models.Business
	if err := db.First(&row, id).Error; err != nil {
		t.Fatalf("reload business failed: %v", err)
	}
	return row.ActiveBenefitCount
}

func TestRegisterNilSafe(t *testing.T) {
	var consumer *Consumer
	consumer.Register(asynq.NewServeMux())
	NewConsumer(nil).Register(nil)
}

func TestHandleCounterSync(t *testing.T) {
	consumer, db := setupWorkerTest(t)
	ctx := context.Background()
	now := time.Now()
	business := seedWorkerBusiness(t, db, 7)
	seedWorkerBenefit(t, db, business, now.Add(-time.Hour), now.Add(time.Hour))

	task, err := queue.NewCounterSyncTask(queue.CounterSyncPayload{BusinessID: business.ID, Reason: "test"})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := consumer.handleCounterSync(ctx, task); err != nil {
		t.Fatalf("handle counter sync failed: %v", err)
	}
	if got := activeCount(t, db, business.ID); got != 1 {
		t.Fatalf("expected active count 1, got %d", got)
	}

	missing, _ := queue.NewCounterSyncTask(queue.CounterSyncPayload{BusinessID: 9999})
	if err := consumer.handleCounterSync(ctx, missing); err != nil {
		t.Fatalf("missing business should be skipped, got %v", err)
	}
	empty, _ := queue.NewCounterSyncTask(queue.CounterSyncPayload{})
	if err := consumer.handleCounterSync(ctx, empty); err != nil {
		t.Fatalf("zero business id should be skipped, got %v", err)
	}
	broken := asynq.NewTask(queue.TaskBenefitCounterSync, []byte("{"))
	if err := consumer.handleCounterSync(ctx, broken); err == nil {
		t.Fatalf("expected unmarshal error")
	}
}

func TestHandleExpireSweepUsesPayloadTime(t *testing.T) {
	consumer, db := setupWorkerTest(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC)
	consumer.now = func() time.Time { return at.Add(-48 * time.Hour) }
	business := seedWorkerBusiness(t, db, 0)
	benefit := seedWorkerBenefit(t, db, business, at.Add(-72*time.Hour), at.Add(-time.Hour))

	// 按执行时刻（两天前）判断尚未到期
	if err := consumer.handleExpireSweep(ctx, asynq.NewTask(queue.TaskBenefitExpireSweep, nil)); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	var row models.Benefit
	db.First(&row, benefit.ID)
	if row.Status != constants.BenefitStatusActive {
		t.Fatalf("expected active before end, got %s", row.Status)
	}

	body, _ := json.Marshal(queue.ExpireSweepPayload{At: &at})
	if err := consumer.handleExpireSweep(ctx, asynq.NewTask(queue.TaskBenefitExpireSweep, body)); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	db.First(&row, benefit.ID)
	if row.Status != constants.BenefitStatusExpired {
		t.Fatalf("expected expired, got %s", row.Status)
	}
}

func TestHandleCounterResync(t *testing.T) {
	consumer, db := setupWorkerTest(t)
	ctx := context.Background()
	now := time.Now()
	first := seedWorkerBusiness(t, db, 5)
	second := seedWorkerBusiness(t, db, 5)
	seedWorkerBenefit(t, db, first, now.Add(-time.Hour), now.Add(time.Hour))

	task, _ := queue.NewCounterResyncTask(queue.CounterResyncPayload{Trigger: "test"})
	if err := consumer.handleCounterResync(ctx, task); err != nil {
		t.Fatalf("resync failed: %v", err)
	}
	if activeCount(t, db, first.ID) != 1 || activeCount(t, db, second.ID) != 0 {
		t.Fatalf("expected counts 1 and 0 after resync")
	}
}

func TestMaintenanceScheduleSkipsEmptyCron(t *testing.T) {
	items := maintenanceSchedule(&config.MaintenanceConfig{ExpireSweepCron: " @every 1m ", ResyncCron: ""})
	if len(items) != 2 {
		t.Fatalf("expected two schedule entries, got %d", len(items))
	}
	if items[0].spec != "@every 1m" || items[1].spec != "" {
		t.Fatalf("unexpected specs: %q %q", items[0].spec, items[1].spec)
	}
	for _, item := range items {
		task, err := item.task()
		if err != nil {
			t.Fatalf("build %s failed: %v", item.name, err)
		}
		if task.Type() != item.name {
			t.Fatalf("expected task type %s, got %s", item.name, task.Type())
		}
	}
}

func TestNewServiceRequiresQueue(t *testing.T) {
	if _, err := NewService(&config.QueueConfig{Enabled: false}, nil, &Consumer{}); err == nil {
		t.Fatalf("expected error for disabled queue")
	}
	if _, err := NewService(&config.QueueConfig{Enabled: true}, nil, nil); err == nil {
		t.Fatalf("expected error for nil consumer")
	}
}
