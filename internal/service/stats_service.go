package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/benefit-next/internal/cache"
	"github.com/benefit-next/internal/constants"
	"github.com/benefit-next/internal/logger"
	"github.com/benefit-next/internal/metrics"
	"github.com/benefit-next/internal/models"
	"github.com/benefit-next/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	defaultStatsTopBenefits = 5
	statsHistogramMonths    = 12
	statsMonthLayout        = "2006-01"
	uncategorizedKey        = "uncategorized"
)

// StatsScope 统计范围
type StatsScope struct {
	Kind string `json:"kind"`
	ID   uint   `json:"id"`
}

// CacheKey 实现 cache.Key
func (s StatsScope) CacheKey() string {
	return fmt.Sprintf("stats:%s:%d", s.Kind, s.ID)
}

// MonthUsage 单月使用量
type MonthUsage struct {
	Month       string       `json:"month"`
	Redemptions int          `json:"redemptions"`
	Savings     models.Money `json:"savings"`
}

// BenefitUsage 单个权益的使用量
type BenefitUsage struct {
	BenefitID   uint         `json:"benefit_id"`
	Title       string       `json:"title"`
	Redemptions int          `json:"redemptions"`
	Savings     models.Money `json:"savings"`
}

// StatsBreakdown 分组统计
type StatsBreakdown struct {
	Key         string       `json:"key"`
	Name        string       `json:"name,omitempty"`
	Benefits    int          `json:"benefits"`
	Redemptions int          `json:"redemptions"`
	Savings     models.Money `json:"savings"`
}

// StatsSummary 统计结果
type StatsSummary struct {
	Scope            StatsScope       `json:"scope"`
	TotalBenefits    int              `json:"total_benefits"`
	BenefitsByStatus map[string]int   `json:"benefits_by_status"`
	TotalRedemptions int              `json:"total_redemptions"`
	MonthRedemptions int              `json:"month_redemptions"`
	TotalSavings     models.Money     `json:"total_savings"`
	MonthSavings     models.Money     `json:"month_savings"`
	UsageByMonth     []MonthUsage     `json:"usage_by_month"`
	TopBenefits      []BenefitUsage   `json:"top_benefits"`
	ByCategory       []StatsBreakdown `json:"by_category"`
	ByBusiness       []StatsBreakdown `json:"by_business"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

// StatsService 统计聚合（只读）
type StatsService struct {
	benefitRepo     repository.BenefitRepository
	redemptionRepo  repository.RedemptionRepository
	businessRepo    repository.BusinessRepository
	associationRepo repository.AssociationRepository
	memberRepo      repository.MemberRepository
	cache           cache.Cache[StatsScope, *StatsSummary]
	topN            int
	now             func() time.Time
}

// NewStatsService 创建统计服务，statsCache 可为空
func NewStatsService(
	benefitRepo repository.BenefitRepository,
	redemptionRepo repository.RedemptionRepository,
	businessRepo repository.BusinessRepository,
	associationRepo repository.AssociationRepository,
	memberRepo repository.MemberRepository,
	statsCache cache.Cache[StatsScope, *StatsSummary],
	topN int,
) *StatsService {
	if topN <= 0 {
		topN = defaultStatsTopBenefits
	}
	return &StatsService{
		benefitRepo:     benefitRepo,
		redemptionRepo:  redemptionRepo,
		businessRepo:    businessRepo,
		associationRepo: associationRepo,
		memberRepo:      memberRepo,
		cache:           statsCache,
		topN:            topN,
		now:             time.Now,
	}
}

// GetStats 读取范围内的权益与核销记录并聚合，结果短期缓存
func (s *StatsService) GetStats(ctx context.Context, scope StatsScope) (*StatsSummary, error) {
	scope.Kind = strings.ToLower(strings.TrimSpace(scope.Kind))
	if scope.ID == 0 {
		return nil, ErrStatsScopeInvalid
	}
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, scope)
		if err != nil {
			logger.Warnw("stats_cache_get_failed", "scope", scope.Kind, "id", scope.ID, "error", err)
		}
		metrics.ObserveCacheLookup("stats", ok)
		if ok && cached != nil {
			return cached, nil
		}
	}

	var (
		generation uint64
		cacheable  bool
	)
	if s.cache != nil {
		generation, cacheable = readGeneration(ctx, s.cache, "stats")
	}

	benefits, redemptions, err := s.load(scope)
	if err != nil {
		return nil, err
	}
	summary := SummarizeStats(scope, benefits, redemptions, s.now(), s.topN)

	if cacheable {
		storeIfGeneration(ctx, s.cache, "stats", scope, summary, generation)
	}
	return summary, nil
}

// Purge 实现 cache.Purger
func (s *StatsService) Purge(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Purge(ctx)
}

func (s *StatsService) load(scope StatsScope) ([]models.Benefit, []models.Redemption, error) {
	var (
		benefitScope     repository.BenefitScope
		redemptionFilter repository.RedemptionListFilter
	)
	switch scope.Kind {
	case constants.StatsScopeBusiness:
		business, err := s.businessRepo.GetByID(scope.ID)
		if err != nil {
			return nil, nil, storageError(err, "load business")
		}
		if business == nil {
			return nil, nil, ErrBusinessNotFound
		}
		benefitScope.BusinessID = scope.ID
		redemptionFilter.BusinessID = scope.ID
	case constants.StatsScopeAssociation:
		association, err := s.associationRepo.GetByID(scope.ID)
		if err != nil {
			return nil, nil, storageError(err, "load association")
		}
		if association == nil {
			return nil, nil, ErrAssociationNotFound
		}
		benefitScope.AssociationID = scope.ID
		redemptionFilter.AssociationID = scope.ID
	case constants.StatsScopeMember:
		member, err := s.memberRepo.GetByID(scope.ID)
		if err != nil {
			return nil, nil, storageError(err, "load member")
		}
		if member == nil {
			return nil, nil, ErrMemberNotFound
		}
		ids, err := s.redemptionRepo.ListBenefitIDsByMember(scope.ID)
		if err != nil {
			return nil, nil, storageError(err, "list member benefit ids")
		}
		benefitScope.IDs = ids
		redemptionFilter.MemberID = scope.ID
	default:
		return nil, nil, validationError(ErrStatsScopeInvalid, "unknown scope %q", scope.Kind)
	}

	benefits, err := s.benefitRepo.ListByScope(benefitScope)
	if err != nil {
		return nil, nil, storageError(err, "list scope benefits")
	}
	redemptions, err := s.redemptionRepo.ListAll(redemptionFilter)
	if err != nil {
		return nil, nil, storageError(err, "list scope redemptions")
	}
	return benefits, redemptions, nil
}

type usageAcc struct {
	benefits    int
	redemptions int
	savings     decimal.Decimal
	name        string
}

// SummarizeStats 纯聚合：不访问存储，相同输入得到相同输出
func SummarizeStats(scope StatsScope, benefits []models.Benefit, redemptions []models.Redemption, now time.Time, topN int) *StatsSummary {
	summary := &StatsSummary{
		Scope:            scope,
		TotalBenefits:    len(benefits),
		BenefitsByStatus: make(map[string]int),
		TotalRedemptions: len(redemptions),
		GeneratedAt:      now,
	}
	for _, status := range []string{
		constants.BenefitStatusActive,
		constants.BenefitStatusInactive,
		constants.BenefitStatusExpired,
		constants.BenefitStatusExhausted,
	} {
		summary.BenefitsByStatus[status] = 0
	}

	benefitByID := make(map[uint]models.Benefit, len(benefits))
	categories := make(map[string]*usageAcc)
	businesses := make(map[uint]*usageAcc)
	for _, b := range benefits {
		benefitByID[b.ID] = b
		summary.BenefitsByStatus[b.Status]++
		accFor(categories, categoryKey(b.Category)).benefits++
		bizAcc := accForID(businesses, b.BusinessID)
		bizAcc.benefits++
		if bizAcc.name == "" {
			bizAcc.name = b.BusinessName
		}
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	months := make([]MonthUsage, statsHistogramMonths)
	monthIndex := make(map[string]int, statsHistogramMonths)
	monthSavings := make([]decimal.Decimal, statsHistogramMonths)
	for i := 0; i < statsHistogramMonths; i++ {
		key := monthStart.AddDate(0, i-statsHistogramMonths+1, 0).Format(statsMonthLayout)
		months[i].Month = key
		monthIndex[key] = i
	}

	total := decimal.Zero
	current := decimal.Zero
	perBenefit := make(map[uint]*usageAcc)
	for _, r := range redemptions {
		amount := r.DiscountAmount.Decimal
		total = total.Add(amount)
		createdAt := r.CreatedAt.In(now.Location())
		if !createdAt.Before(monthStart) {
			current = current.Add(amount)
			summary.MonthRedemptions++
		}
		if idx, ok := monthIndex[createdAt.Format(statsMonthLayout)]; ok {
			months[idx].Redemptions++
			monthSavings[idx] = monthSavings[idx].Add(amount)
		}

		benefitAcc := accForID(perBenefit, r.BenefitID)
		benefitAcc.redemptions++
		benefitAcc.savings = benefitAcc.savings.Add(amount)
		if benefitAcc.name == "" {
			benefitAcc.name = r.BenefitTitle
		}

		category := uncategorizedKey
		if b, ok := benefitByID[r.BenefitID]; ok {
			category = categoryKey(b.Category)
			if b.Title != "" {
				benefitAcc.name = b.Title
			}
		}
		catAcc := accFor(categories, category)
		catAcc.redemptions++
		catAcc.savings = catAcc.savings.Add(amount)

		bizAcc := accForID(businesses, r.BusinessID)
		bizAcc.redemptions++
		bizAcc.savings = bizAcc.savings.Add(amount)
		if bizAcc.name == "" {
			bizAcc.name = r.BusinessName
		}
	}
	for i := range months {
		months[i].Savings = models.NewMoneyFromDecimal(monthSavings[i])
	}
	summary.UsageByMonth = months
	summary.TotalSavings = models.NewMoneyFromDecimal(total)
	summary.MonthSavings = models.NewMoneyFromDecimal(current)
	summary.TopBenefits = topBenefits(perBenefit, topN)
	summary.ByCategory = breakdownByKey(categories)
	summary.ByBusiness = breakdownByID(businesses)
	return summary
}

func topBenefits(perBenefit map[uint]*usageAcc, topN int) []BenefitUsage {
	items := make([]BenefitUsage, 0, len(perBenefit))
	for id, acc := range perBenefit {
		items = append(items, BenefitUsage{
			BenefitID:   id,
			Title:       acc.name,
			Redemptions: acc.redemptions,
			Savings:     models.NewMoneyFromDecimal(acc.savings),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Redemptions != items[j].Redemptions {
			return items[i].Redemptions > items[j].Redemptions
		}
		return items[i].BenefitID < items[j].BenefitID
	})
	if topN > 0 && len(items) > topN {
		items = items[:topN]
	}
	return items
}

func breakdownByKey(groups map[string]*usageAcc) []StatsBreakdown {
	items := make([]StatsBreakdown, 0, len(groups))
	for key, acc := range groups {
		items = append(items, toBreakdown(key, acc))
	}
	sortBreakdown(items)
	return items
}

func breakdownByID(groups map[uint]*usageAcc) []StatsBreakdown {
	items := make([]StatsBreakdown, 0, len(groups))
	for id, acc := range groups {
		items = append(items, toBreakdown(fmt.Sprintf("%d", id), acc))
	}
	sortBreakdown(items)
	return items
}

func toBreakdown(key string, acc *usageAcc) StatsBreakdown {
	return StatsBreakdown{
		Key:         key,
		Name:        acc.name,
		Benefits:    acc.benefits,
		Redemptions: acc.redemptions,
		Savings:     models.NewMoneyFromDecimal(acc.savings),
	}
}

func sortBreakdown(items []StatsBreakdown) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Redemptions != items[j].Redemptions {
			return items[i].Redemptions > items[j].Redemptions
		}
		if items[i].Benefits != items[j].Benefits {
			return items[i].Benefits > items[j].Benefits
		}
		return items[i].Key < items[j].Key
	})
}

func accFor(groups map[string]*usageAcc, key string) *usageAcc {
	acc, ok := groups[key]
	if !ok {
		acc = &usageAcc{savings: decimal.Zero}
		groups[key] = acc
	}
	return acc
}

func accForID(groups map[uint]*usageAcc, id uint) *usageAcc {
	acc, ok := groups[id]
	if !ok {
		acc = &usageAcc{savings: decimal.Zero}
		groups[id] = acc
	}
	return acc
}

func categoryKey(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return uncategorizedKey
	}
	return category
}
