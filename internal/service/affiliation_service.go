package service

import (
	"context"
	"fmt"

	"github.com/benefit-next/internal/cache"
	"github.com/benefit-next/internal/logger"
	"github.com/benefit-next/internal/metrics"
	"github.com/benefit-next/internal/models"
	"github.com/benefit-next/internal/repository"

	"gorm.io/gorm"
)

// AffiliationKey 可达商户集合的缓存键
type AffiliationKey struct {
	MemberID      uint
	AssociationID uint
}

// CacheKey 实现 cache.Key
func (k AffiliationKey) CacheKey() string {
	return fmt.Sprintf("affiliation:%d:%d", k.MemberID, k.AssociationID)
}

// AffiliationSet 会员可访问的商户集合
type AffiliationSet struct {
	MemberID      uint `json:"member_id"`
	AssociationID uint `json:"association_id"`
	// ProfileLoaded 为 false 表示会员资料读取失败或不存在，结果已降级
	ProfileLoaded          bool   `json:"profile_loaded"`
	DirectBusinessIDs      []uint `json:"direct_business_ids"`
	AssociationBusinessIDs []uint `json:"association_business_ids"`
	BusinessIDs            []uint `json:"business_ids"`
}

// HasAssociation 是否关联协会
func (s AffiliationSet) HasAssociation() bool {
	return s.AssociationID > 0
}

// Contains 判断商户是否在可达集合内
func (s AffiliationSet) Contains(businessID uint) bool {
	for _, id := range s.BusinessIDs {
		if id == businessID {
			return true
		}
	}
	return false
}

// AffiliationService 解析会员 → 协会 → 商户的三层关联
type AffiliationService struct {
	memberRepo   repository.MemberRepository
	businessRepo repository.BusinessRepository
	cache        cache.Cache[AffiliationKey, AffiliationSet]
}

// NewAffiliationService 创建关联解析服务，affCache 可为空
func NewAffiliationService(
	memberRepo repository.MemberRepository,
	businessRepo repository.BusinessRepository,
	affCache cache.Cache[AffiliationKey, AffiliationSet],
) *AffiliationService {
	return &AffiliationService{
		memberRepo:   memberRepo,
		businessRepo: businessRepo,
		cache:        affCache,
	}
}

// Resolve 计算会员可访问的商户集合，从不返回错误。
// 协会一律取自会员资料，associationID 仅作提示，与资料不符时忽略。
// 会员资料读取失败或不存在时降级为空集合；协会反查失败时忽略该来源。
func (s *AffiliationService) Resolve(ctx context.Context, memberID, associationID uint) AffiliationSet {
	key := AffiliationKey{MemberID: memberID, AssociationID: associationID}
	var (
		generation uint64
		cacheable  bool
	)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			logger.Warnw("affiliation_cache_get_failed", "member_id", memberID, "error", err)
		}
		metrics.ObserveCacheLookup("affiliation", ok)
		if ok {
			return cached
		}
		generation, cacheable = readGeneration(ctx, s.cache, "affiliation")
	}

	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		logger.Warnw("affiliation_member_read_failed", "member_id", memberID, "error", err)
		return AffiliationSet{MemberID: memberID}
	}
	if member == nil {
		logger.Debugw("affiliation_member_not_found", "member_id", memberID)
		return AffiliationSet{MemberID: memberID}
	}
	if associationID > 0 && associationID != memberAssociation(member) {
		logger.Debugw("affiliation_association_hint_ignored",
			"member_id", memberID,
			"association_id", associationID,
		)
	}

	set, err := s.build(member)
	if err != nil {
		// 反查失败时结果不完整，不写缓存
		logger.Warnw("affiliation_association_lookup_failed",
			"member_id", memberID,
			"association_id", set.AssociationID,
			"error", err,
		)
		return set
	}
	if cacheable {
		storeIfGeneration(ctx, s.cache, "affiliation", key, set, generation)
	}
	return set
}

// ResolveMember 基于已读取的会员资料计算集合。
// associationID 非 0 且与会员所属协会不一致（含未加入协会）时返回 ErrBenefitAccessDenied；
// 反查失败时返回存储错误。
func (s *AffiliationService) ResolveMember(member *models.Member, associationID uint) (AffiliationSet, error) {
	if member == nil {
		return AffiliationSet{}, ErrMemberNotFound
	}
	if associationID > 0 && associationID != memberAssociation(member) {
		return AffiliationSet{}, ErrBenefitAccessDenied
	}
	set, err := s.build(member)
	if err != nil {
		return AffiliationSet{}, storageError(err, "list association businesses")
	}
	return set, nil
}

// WithTx 返回绑定事务的副本，副本不读写缓存
func (s *AffiliationService) WithTx(tx *gorm.DB) *AffiliationService {
	if tx == nil {
		return s
	}
	return &AffiliationService{
		memberRepo:   s.memberRepo.WithTx(tx),
		businessRepo: s.businessRepo.WithTx(tx),
	}
}

// Purge 清空关联缓存
func (s *AffiliationService) Purge(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Purge(ctx)
}

func (s *AffiliationService) build(member *models.Member) (AffiliationSet, error) {
	set := AffiliationSet{
		MemberID:          member.ID,
		AssociationID:     memberAssociation(member),
		ProfileLoaded:     true,
		DirectBusinessIDs: []uint(member.DirectBusinessIDs.Normalize()),
	}
	var lookupErr error
	if set.AssociationID > 0 {
		ids, err := s.businessRepo.ListActiveIDsByAssociation(set.AssociationID)
		if err != nil {
			lookupErr = err
		} else {
			set.AssociationBusinessIDs = ids
		}
	}
	set.BusinessIDs = unionIDs(set.AssociationBusinessIDs, set.DirectBusinessIDs)
	return set, lookupErr
}

// memberAssociation 会员所属协会，未加入时为 0
func memberAssociation(member *models.Member) uint {
	if member != nil && member.AssociationID != nil {
		return *member.AssociationID
	}
	return 0
}

// unionIDs 合并并去重，保持首次出现顺序
func unionIDs(groups ...[]uint) []uint {
	seen := make(map[uint]struct{})
	result := make([]uint, 0)
	for _, group := range groups {
		for _, id := range group {
			if id == 0 {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			result = append(result, id)
		}
	}
	return result
}
