package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/benefit-next/internal/constants"
)

// BenefitFilter 列表查询条件
type BenefitFilter struct {
	Category     string `json:"category,omitempty"`
	BusinessID   uint   `json:"business_id,omitempty"`
	FeaturedOnly bool   `json:"featured_only,omitempty"`
	Search       string `json:"search,omitempty"`
	NewOnly      bool   `json:"new_only,omitempty"`
	ExpiringSoon bool   `json:"expiring_soon,omitempty"`
}

func (f BenefitFilter) cacheKey() string {
	return fmt.Sprintf("c=%s|b=%d|f=%t|s=%s|n=%t|e=%t",
		strings.ToLower(strings.TrimSpace(f.Category)),
		f.BusinessID,
		f.FeaturedOnly,
		strings.ToLower(strings.TrimSpace(f.Search)),
		f.NewOnly,
		f.ExpiringSoon,
	)
}

// EligibilityWindows “新上架”与“即将到期”的判定窗口
type EligibilityWindows struct {
	New      time.Duration
	Expiring time.Duration
}

// DefaultEligibilityWindows 默认均为 7 天
func DefaultEligibilityWindows() EligibilityWindows {
	return EligibilityWindows{New: constants.BenefitNewWindow, Expiring: constants.BenefitExpiringWindow}
}

// FilterEligible 使用默认窗口过滤候选权益
func FilterEligible(candidates []AvailableBenefit, filter BenefitFilter, limit int, now time.Time) []AvailableBenefit {
	return FilterEligibleWithWindows(candidates, filter, limit, now, DefaultEligibilityWindows())
}

// FilterEligibleWithWindows 纯函数：不修改入参，相同输入得到相同输出。
// 过滤顺序：已过期、未开始、总上限已满、关键字、新上架/即将到期、分类/商户/推荐。
// 排序：推荐优先，其次按创建时间倒序；limit <= 0 表示不截断。
func FilterEligibleWithWindows(candidates []AvailableBenefit, filter BenefitFilter, limit int, now time.Time, windows EligibilityWindows) []AvailableBenefit {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	category := strings.TrimSpace(filter.Category)
	newSince := now.Add(-windows.New)
	expiringBy := now.Add(windows.Expiring)

	result := make([]AvailableBenefit, 0, len(candidates))
	for _, item := range candidates {
		if !item.EndsAt.After(now) {
			continue
		}
		if item.StartsAt.After(now) {
			continue
		}
		if item.CapReached() {
			continue
		}
		if search != "" && !matchesSearch(item, search) {
			continue
		}
		if filter.NewOnly && item.CreatedAt.Before(newSince) {
			continue
		}
		if filter.ExpiringSoon && item.EndsAt.After(expiringBy) {
			continue
		}
		if category != "" && !strings.EqualFold(item.Category, category) {
			continue
		}
		if filter.BusinessID > 0 && item.BusinessID != filter.BusinessID {
			continue
		}
		if filter.FeaturedOnly && !item.IsFeatured {
			continue
		}
		result = append(result, item)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].IsFeatured != result[j].IsFeatured {
			return result[i].IsFeatured
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func matchesSearch(item AvailableBenefit, needle string) bool {
	fields := []string{item.Title, item.Description, item.BusinessName, item.Category}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	for _, tag := range item.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}
