package service

import (
	"context"
	"fmt"
	"time"

	"github.com/benefit-next/internal/cache"
	"github.com/benefit-next/internal/constants"
	"github.com/benefit-next/internal/logger"
	"github.com/benefit-next/internal/metrics"
	"github.com/benefit-next/internal/notify"
)

const defaultBenefitListLimit = 50

// BenefitListKey 可用权益列表的缓存键
type BenefitListKey struct {
	MemberID      uint
	AssociationID uint
	Filter        string
	Limit         int
}

// CacheKey 实现 cache.Key
func (k BenefitListKey) CacheKey() string {
	return fmt.Sprintf("benefits:list:%d:%d:%d:%s", k.MemberID, k.AssociationID, k.Limit, k.Filter)
}

// ListAvailableInput 可用权益查询参数
type ListAvailableInput struct {
	MemberID      uint
	AssociationID uint
	Filter        BenefitFilter
	Limit         int
}

// BenefitListOptions 列表默认参数
type BenefitListOptions struct {
	DefaultLimit int
	Windows      EligibilityWindows
}

// BenefitService 会员可用权益查询与变更订阅
type BenefitService struct {
	affiliation *AffiliationService
	catalog     *BenefitCatalog
	listCache   cache.Cache[BenefitListKey, []AvailableBenefit]
	hub         *notify.Hub
	opts        BenefitListOptions
	now         func() time.Time
	purgers     []cache.Purger
}

// NewBenefitService 创建权益查询服务，listCache 与 hub 可为空
func NewBenefitService(
	affiliation *AffiliationService,
	catalog *BenefitCatalog,
	listCache cache.Cache[BenefitListKey, []AvailableBenefit],
	hub *notify.Hub,
	opts BenefitListOptions,
) *BenefitService {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = defaultBenefitListLimit
	}
	if opts.Windows.New <= 0 || opts.Windows.Expiring <= 0 {
		opts.Windows = DefaultEligibilityWindows()
	}
	return &BenefitService{
		affiliation: affiliation,
		catalog:     catalog,
		listCache:   listCache,
		hub:         hub,
		opts:        opts,
		now:         time.Now,
	}
}

// ListAvailable 查询会员当前可见的权益：关联解析 → 目录读取 → 资格过滤，结果按参数缓存。
// 数据源失败时降级为更小的结果集，不返回错误。
func (s *BenefitService) ListAvailable(ctx context.Context, input ListAvailableInput) ([]AvailableBenefit, error) {
	if input.MemberID == 0 {
		return nil, ErrMemberInvalid
	}
	limit := input.Limit
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}
	key := BenefitListKey{
		MemberID:      input.MemberID,
		AssociationID: input.AssociationID,
		Filter:        input.Filter.cacheKey(),
		Limit:         limit,
	}
	if s.listCache != nil {
		cached, ok, err := s.listCache.Get(ctx, key)
		if err != nil {
			logger.Warnw("benefit_list_cache_get_failed", "member_id", input.MemberID, "error", err)
		}
		metrics.ObserveCacheLookup("benefit_list", ok)
		if ok {
			return cached, nil
		}
	}

	var (
		generation uint64
		cacheable  bool
	)
	if s.listCache != nil {
		generation, cacheable = readGeneration(ctx, s.listCache, "benefit_list")
	}

	aff := s.affiliation.Resolve(ctx, input.MemberID, input.AssociationID)
	candidates := s.catalog.Read(ctx, aff)
	result := FilterEligibleWithWindows(candidates, input.Filter, limit, s.now(), s.opts.Windows)

	if cacheable {
		storeIfGeneration(ctx, s.listCache, "benefit_list", key, result, generation)
	}
	return result, nil
}

// readGeneration 回源前读取缓存代号，读取失败时本次结果不写缓存
func readGeneration[K cache.Key, V any](ctx context.Context, c cache.Cache[K, V], name string) (uint64, bool) {
	generation, err := c.Generation(ctx)
	if err != nil {
		logger.Warnw("cache_generation_read_failed", "cache", name, "error", err)
		return 0, false
	}
	return generation, true
}

// storeIfGeneration 回源期间发生过清空时丢弃结果
func storeIfGeneration[K cache.Key, V any](ctx context.Context, c cache.Cache[K, V], name string, key K, value V, generation uint64) {
	stored, err := c.SetIfGeneration(ctx, key, value, generation)
	if err != nil {
		logger.Warnw("cache_set_failed", "cache", name, "error", err)
		return
	}
	if !stored {
		logger.Debugw("cache_set_skipped_stale", "cache", name)
	}
}

// Subscribe 订阅会员可用权益变化：立即推送一次当前列表，之后每次变更推送刷新后的列表。
// 推送为尽力而为；返回的订阅取消后不再回调。
func (s *BenefitService) Subscribe(ctx context.Context, memberID, associationID uint, callback func([]AvailableBenefit)) (*notify.Subscription, error) {
	if memberID == 0 {
		return nil, ErrMemberInvalid
	}
	if callback == nil {
		return nil, validationError(ErrValidation, "subscription callback is required")
	}
	if s.hub == nil {
		return nil, validationError(ErrValidation, "subscriptions disabled")
	}
	sub := s.hub.Subscribe()
	input := ListAvailableInput{MemberID: memberID, AssociationID: associationID}

	go func() {
		defer sub.Cancel()
		deliver := func() {
			list, err := s.ListAvailable(ctx, input)
			if err != nil {
				logger.Warnw("benefit_subscription_refresh_failed", "member_id", memberID, "error", err)
				return
			}
			callback(list)
		}
		deliver()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.Done():
				return
			case _, ok := <-sub.Events():
				if !ok {
					return
				}
				deliver()
			}
		}
	}()
	return sub, nil
}

// RegisterPurger 注册随权益变更一并清空的其它缓存（如统计缓存），需在启动阶段调用
func (s *BenefitService) RegisterPurger(p cache.Purger) {
	if p == nil {
		return
	}
	s.purgers = append(s.purgers, p)
}

// Invalidate 清空全部列表、关联及已注册的缓存并通知订阅方
func (s *BenefitService) Invalidate(ctx context.Context, event notify.Event) {
	if s.listCache != nil {
		if err := s.listCache.Purge(ctx); err != nil {
			logger.Warnw("benefit_list_cache_purge_failed", "error", err)
		}
	}
	for _, p := range s.purgers {
		if err := p.Purge(ctx); err != nil {
			logger.Warnw("benefit_cache_purge_failed", "error", err)
		}
	}
	if s.affiliation != nil {
		if err := s.affiliation.Purge(ctx); err != nil {
			logger.Warnw("affiliation_cache_purge_failed", "error", err)
		}
	}
	if s.hub != nil {
		if event.Type == "" {
			event.Type = constants.BenefitEventChanged
		}
		s.hub.Publish(ctx, event)
	}
}
