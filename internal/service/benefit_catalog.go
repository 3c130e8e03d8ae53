package service

import (
	"context"

	"github.com/benefit-next/internal/constants"
	"github.com/benefit-next/internal/logger"
	"github.com/benefit-next/internal/metrics"
	"github.com/benefit-next/internal/models"
	"github.com/benefit-next/internal/repository"

	"golang.org/x/sync/errgroup"
)

// BenefitOrigin 权益进入候选集的来源，仅随结果携带，不写回权益记录
type BenefitOrigin string

const (
	OriginAssociation BenefitOrigin = constants.BenefitOriginAssociation
	OriginAffiliated  BenefitOrigin = constants.BenefitOriginAffiliated
	OriginPublic      BenefitOrigin = constants.BenefitOriginPublic
	OriginDirect      BenefitOrigin = constants.BenefitOriginDirect
)

// AvailableBenefit 带来源标记的候选权益
type AvailableBenefit struct {
	models.Benefit
	Origin BenefitOrigin `json:"origin"`
}

// CatalogOptions 目录读取参数
type CatalogOptions struct {
	PublicFallbackLimit int
	InQueryBatchSize    int
}

// BenefitCatalog 从三个相互独立的来源读取候选权益并去重
type BenefitCatalog struct {
	benefitRepo repository.BenefitRepository
	opts        CatalogOptions
}

// NewBenefitCatalog 创建目录读取器
func NewBenefitCatalog(benefitRepo repository.BenefitRepository, opts CatalogOptions) *BenefitCatalog {
	if opts.PublicFallbackLimit <= 0 {
		opts.PublicFallbackLimit = constants.PublicFallbackLimitDefault
	}
	if opts.InQueryBatchSize <= 0 {
		opts.InQueryBatchSize = constants.InQueryBatchSizeDefault
	}
	return &BenefitCatalog{benefitRepo: benefitRepo, opts: opts}
}

type catalogSource struct {
	name   string
	origin BenefitOrigin
	fetch  func() ([]models.Benefit, error)
}

// Read 读取候选权益。仅查询 active 状态，有效期与上限交由资格过滤处理。
// 单个来源失败只记录日志并跳过，不影响其它来源。
func (c *BenefitCatalog) Read(ctx context.Context, aff AffiliationSet) []AvailableBenefit {
	sources := c.sources(aff)
	results := make([][]models.Benefit, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				logger.Debugw("benefit_catalog_source_skipped", "source", src.name, "error", err)
				return nil
			}
			items, err := src.fetch()
			if err != nil {
				metrics.ObserveCatalogSourceFailure(src.name)
				logger.Warnw("benefit_catalog_source_failed",
					"source", src.name,
					"member_id", aff.MemberID,
					"association_id", aff.AssociationID,
					"error", err,
				)
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	// 拼接顺序固定为来源顺序，与完成先后无关
	seen := make(map[uint]struct{})
	merged := make([]AvailableBenefit, 0)
	for i, items := range results {
		for _, item := range items {
			if _, ok := seen[item.ID]; ok {
				continue
			}
			seen[item.ID] = struct{}{}
			merged = append(merged, AvailableBenefit{Benefit: item, Origin: sources[i].origin})
		}
	}
	return merged
}

func (c *BenefitCatalog) sources(aff AffiliationSet) []catalogSource {
	if aff.HasAssociation() {
		return []catalogSource{
			{
				name:   "association",
				origin: OriginAssociation,
				fetch: func() ([]models.Benefit, error) {
					return c.benefitRepo.ListActiveByAssociation(aff.AssociationID)
				},
			},
			{
				name:   "affiliated_business",
				origin: OriginAffiliated,
				fetch: func() ([]models.Benefit, error) {
					return c.listByBusinesses(aff.BusinessIDs)
				},
			},
			{
				name:   "public",
				origin: OriginPublic,
				fetch: func() ([]models.Benefit, error) {
					return c.benefitRepo.ListActiveByAccessMode(constants.AccessModePublic, c.opts.PublicFallbackLimit)
				},
			},
		}
	}
	return []catalogSource{
		{
			name:   "public",
			origin: OriginPublic,
			fetch: func() ([]models.Benefit, error) {
				return c.benefitRepo.ListActiveByAccessMode(constants.AccessModePublic, 0)
			},
		},
		{
			name:   "direct",
			origin: OriginDirect,
			fetch: func() ([]models.Benefit, error) {
				return c.benefitRepo.ListActiveByAccessMode(constants.AccessModeDirect, 0)
			},
		},
		{
			name:   "affiliated_business",
			origin: OriginAffiliated,
			fetch: func() ([]models.Benefit, error) {
				return c.listByBusinesses(aff.DirectBusinessIDs)
			},
		},
	}
}

// listByBusinesses 按批查询商户权益，任一批失败即视为该来源失败
func (c *BenefitCatalog) listByBusinesses(businessIDs []uint) ([]models.Benefit, error) {
	result := make([]models.Benefit, 0)
	for _, batch := range repository.ChunkIDs(businessIDs, c.opts.InQueryBatchSize) {
		items, err := c.benefitRepo.ListActiveByBusinessIDs(batch)
		if err != nil {
			return nil, err
		}
		result = append(result, items...)
	}
	return result, nil
}
