package main

import (
	"context"
	"time"

	"github.com/benefit-next/internal/config"
	"github.com/benefit-next/internal/constants"
	"github.com/benefit-next/internal/logger"
	"github.com/benefit-next/internal/models"
	"github.com/benefit-next/internal/provider"
	"github.com/benefit-next/internal/service"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	var existing int64
	if err := models.DB.Model(&models.Association{}).Count(&existing).Error; err != nil {
		stdLog.Fatalf("Failed to inspect database: %v", err)
	}
	if existing > 0 {
		logger.Infow("seed_skipped_existing_data", "associations", existing)
		return
	}

	// 队列与推送在种子数据场景下不需要
	cfg.Queue.Enabled = false
	container := provider.NewContainer(cfg)
	defer container.Close()
	ctx := context.Background()

	// 添加协会
	associations := []models.Association{
		{Name: "Chamber of Commerce", Status: constants.AssociationStatusActive},
		{Name: "Retail Guild", Status: constants.AssociationStatusActive},
	}
	for i := range associations {
		if err := container.AssociationRepo.Create(&associations[i]); err != nil {
			stdLog.Fatalf("Failed to create association: %v", err)
		}
	}
	chamber, union := associations[0].ID, associations[1].ID

	// 添加商户
	businesses := []models.Business{
		{Name: "Blue Cafe", Category: "food", Status: constants.BusinessStatusActive, AssociationIDs: models.IDList{chamber}},
		{Name: "Iron Gym", Category: "fitness", Status: constants.BusinessStatusActive, AssociationIDs: models.IDList{chamber, union}},
		{Name: "Page Books", Category: "education", Status: constants.BusinessStatusActive, AssociationIDs: models.IDList{union}},
		{Name: "Corner Cinema", Category: "entertainment", Status: constants.BusinessStatusActive},
	}
	for i := range businesses {
		if err := container.BusinessRepo.Create(&businesses[i]); err != nil {
			stdLog.Fatalf("Failed to create business: %v", err)
		}
	}
	cafe, gym, books, cinema := businesses[0].ID, businesses[1].ID, businesses[2].ID, businesses[3].ID

	// 添加会员
	members := []models.Member{
		{Name: "Ana Souza", DocumentNumber: "DOC-1001", Email: "ana@example.com", AssociationID: &chamber, Status: constants.MemberStatusActive},
		{Name: "Bruno Lima", DocumentNumber: "DOC-1002", Email: "bruno@example.com", AssociationID: &union, Status: constants.MemberStatusActive},
		{Name: "Carla Dias", DocumentNumber: "DOC-1003", Email: "carla@example.com", DirectBusinessIDs: models.IDList{cinema}, Status: constants.MemberStatusActive},
	}
	for i := range members {
		if err := container.MemberRepo.Create(&members[i]); err != nil {
			stdLog.Fatalf("Failed to create member: %v", err)
		}
	}

	// 添加权益
	now := time.Now()
	money := func(raw string) models.Money {
		return models.NewMoneyFromDecimal(decimal.RequireFromString(raw))
	}
	inputs := []service.BenefitInput{
		{
			Title:         "10% off any coffee",
			Description:   "Valid for hot and iced drinks",
			Category:      "food",
			DiscountType:  constants.DiscountTypePercentage,
			DiscountValue: money("10"),
			StartsAt:      now.Add(-24 * time.Hour),
			EndsAt:        now.AddDate(0, 3, 0),
			AccessMode:    constants.AccessModePublic,
			BusinessID:    cafe,
			IsFeatured:    true,
			Tags:          []string{"coffee", "breakfast"},
		},
		{
			Title:          "Free first month",
			Category:       "fitness",
			DiscountType:   constants.DiscountTypeFreeItem,
			StartsAt:       now.Add(-24 * time.Hour),
			EndsAt:         now.AddDate(0, 1, 0),
			AccessMode:     constants.AccessModeAssociation,
			AssociationIDs: []uint{chamber, union},
			BusinessID:     gym,
			PerMemberLimit: 1,
			UsageLimit:     50,
		},
		{
			Title:          "$5 off textbooks",
			Category:       "education",
			DiscountType:   constants.DiscountTypeFixed,
			DiscountValue:  money("5"),
			StartsAt:       now.Add(-2 * time.Hour),
			EndsAt:         now.Add(5 * 24 * time.Hour),
			AccessMode:     constants.AccessModeAssociation,
			AssociationIDs: []uint{union},
			BusinessID:     books,
			PerMemberLimit: 3,
		},
		{
			Title:         "2x1 Tuesday tickets",
			Category:      "entertainment",
			DiscountType:  constants.DiscountTypePercentage,
			DiscountValue: money("50"),
			StartsAt:      now.Add(-24 * time.Hour),
			EndsAt:        now.AddDate(0, 2, 0),
			AccessMode:    constants.AccessModeDirect,
			BusinessID:    cinema,
		},
	}
	for _, input := range inputs {
		benefit, err := container.BenefitAdminService.Create(ctx, input)
		if err != nil {
			stdLog.Fatalf("Failed to create benefit %q: %v", input.Title, err)
		}
		logger.Infow("seed_benefit_created", "benefit_id", benefit.ID, "title", benefit.Title)
	}

	logger.Infow("seed_completed",
		"associations", len(associations),
		"businesses", len(businesses),
		"members", len(members),
		"benefits", len(inputs),
	)
}
