package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benefit-next/internal/cache"
	"github.com/benefit-next/internal/constants"
	"github.com/benefit-next/internal/models"
	"github.com/benefit-next/internal/notify"
	"github.com/benefit-next/internal/repository"
)

type failingAssociationBenefitRepo struct {
	*repository.GormBenefitRepository
}

func (r failingAssociationBenefitRepo) ListActiveByAssociation(uint) ([]models.Benefit, error) {
	return nil, errors.New("association index unavailable")
}

// redeemingBenefitRepo 在首次读取公开权益后执行一次回调，模拟列表回源期间发生核销
type redeemingBenefitRepo struct {
	*repository.GormBenefitRepository
	once  sync.Once
	after func()
}

func (r *redeemingBenefitRepo) ListActiveByAccessMode(accessMode string, limit int) ([]models.Benefit, error) {
	items, err := r.GormBenefitRepository.ListActiveByAccessMode(accessMode, limit)
	if accessMode == constants.AccessModePublic {
		r.once.Do(r.after)
	}
	return items, err
}

type failingMemberRepo struct {
	*repository.GormMemberRepository
}

func (r failingMemberRepo) GetByID(uint) (*models.Member, error) {
	return nil, errors.New("member store unavailable")
}

func TestAssociationMemberSeesAffiliatedBusinessBenefit(t *testing.T) {
	env := setupBenefitEngineTest(t)
	ctx := context.Background()
	assoc := env.seedAssociation(t, "Engineers")
	linked := env.seedBusiness(t, "Gym", assoc.ID)
	unlinked := env.seedBusiness(t, "Spa")
	member := env.seedMember(t, "ana", assoc.ID)
	benefit := env.seedBenefit(t, linked, func(b *models.Benefit) {
		b.AccessMode = constants.AccessModeAssociation
	})
	env.seedBenefit(t, unlinked, func(b *models.Benefit) {
		b.AccessMode = constants.AccessModeAssociation
	})

	list, err := env.benefits.ListAvailable(ctx, ListAvailableInput{MemberID: member.ID})
	if err != nil {
		t.Fatalf("list available failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != benefit.ID {
		t.Fatalf("expected linked business benefit only, got %v", benefitIDs(list))
	}
	if list[0].Origin != OriginAffiliated {
		t.Fatalf("expected affiliated origin, got %s", list[0].Origin)
	}
}

func TestNotStartedBenefitExcludedFromList(t *testing.T) {
	env := setupBenefitEngineTest(t)
	business := env.seedBusiness(t, "Cafe")
	member := env.seedMember(t, "ana", 0)
	env.seedBenefit(t, business, func(b *models.Benefit) {
		b.StartsAt = env.now.Add(24 * time.Hour)
	})
	current := env.seedBenefit(t, business, nil)

	list, err := env.benefits.ListAvailable(context.Background(), ListAvailableInput{MemberID: member.ID})
	if err != nil {
		t.Fatalf("list available failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != current.ID {
		t.Fatalf("expected only started benefit, got %v", benefitIDs(list))
	}
}

func TestCatalogDeduplicatesAcrossSources(t *testing.T) {
	env := setupBenefitEngineTest(t)
	assoc := env.seedAssociation(t, "Engineers")
	business := env.seedBusiness(t, "Gym", assoc.ID)
	member := env.seedMember(t, "ana", assoc.ID)
	shared := env.seedBenefit(t, business, func(b *models.Benefit) {
		b.AssociationIDs = models.IDList{assoc.ID}
	})

	aff := env.affiliation.Resolve(context.Background(), member.ID, 0)
	got := env.catalog.Read(context.Background(), aff)
	if len(got) != 1 || got[0].ID != shared.ID {
		t.Fatalf("expected benefit %d exactly once, got %v", shared.ID, benefitIDs(got))
	}
	if got[0].Origin != OriginAssociation {
		t.Fatalf("expected first source to win, got %s", got[0].Origin)
	}
}

func TestCatalogWithoutAssociationReadsDirectSources(t *testing.T) {
	env := setupBenefitEngineTest(t)
	direct := env.seedBusiness(t, "Cafe")
	other := env.seedBusiness(t, "Spa")
	member := env.seedMember(t, "ana", 0, direct.ID)
	public := env.seedBenefit(t, other, nil)
	directMode := env.seedBenefit(t, other, func(b *models.Benefit) {
		b.AccessMode = constants.AccessModeDirect
	})
	owned := env.seedBenefit(t, direct, func(b *models.Benefit) {
		b.AccessMode = constants.AccessModeAssociation
	})
	env.seedBenefit(t, other, func(b *models.Benefit) {
		b.AccessMode = constants.AccessModeAssociation
	})
	env.seedBenefit(t, other, func(b *models.Benefit) {
		b.Status = constants.BenefitStatusInactive
	})

	aff := env.affiliation.Resolve(context.Background(), member.ID, 0)
	got := env.catalog.Read(context.Background(), aff)
	origins := make(map[uint]BenefitOrigin)
	for _, item := range got {
		origins[item.ID] = item.Origin
	}
	want := map[uint]BenefitOrigin{
		public.ID:     OriginPublic,
		directMode.ID: OriginDirect,
		owned.ID:      OriginAffiliated,
	}
	if len(origins) != len(want) {
		t.Fatalf("expected %v, got %v", want, origins)
	}
	for id, origin := range want {
		if origins[id] != origin {
			t.Fatalf("benefit %d: expected origin %s, got %s", id, origin, origins[id])
		}
	}
}

func TestCatalogBatchesBusinessLookups(t *testing.T) {
	env := setupBenefitEngineTest(t)
	assoc := env.seedAssociation(t, "Engineers")
	member := env.seedMember(t, "ana", assoc.ID)
	for i := 0; i < 23; i++ {
		business := env.seedBusiness(t, "Shop", assoc.ID)
		env.seedBenefit(t, business, func(b *models.Benefit) {
			b.AccessMode = constants.AccessModeAssociation
		})
	}

	aff := env.affiliation.Resolve(context.Background(), member.ID, 0)
	if len(aff.BusinessIDs) != 23 {
		t.Fatalf("expected 23 affiliated businesses, got %d", len(aff.BusinessIDs))
	}
	got := env.catalog.Read(context.Background(), aff)
	if len(got) != 23 {
		t.Fatalf("expected benefits from every batch, got %d", len(got))
	}
}

func TestCatalogSourceFailureDegrades(t *testing.T) {
	env := setupBenefitEngineTest(t)
	assoc := env.seedAssociation(t, "Engineers")
	business := env.seedBusiness(t, "Gym", assoc.ID)
	member := env.seedMember(t, "ana", assoc.ID)
	affiliated := env.seedBenefit(t, business, func(b *models.Benefit) {
		b.AccessMode = constants.AccessModeAssociation
	})

	catalog := NewBenefitCatalog(failingAssociationBenefitRepo{env.benefitRepo}, CatalogOptions{})
	aff := env.affiliation.Resolve(context.Background(), member.ID, 0)
	got := catalog.Read(context.Background(), aff)
	if len(got) != 1 || got[0].ID != affiliated.ID {
		t.Fatalf("expected remaining sources to answer, got %v", benefitIDs(got))
	}
}

func TestAffiliationResolve(t *testing.T) {
	env := setupBenefitEngineTest(t)
	ctx := context.Background()
	assoc := env.seedAssociation(t, "Engineers")
	gym := env.seedBusiness(t, "Gym", assoc.ID)
	cafe := env.seedBusiness(t, "Cafe")
	closed := env.seedBusiness(t, "Closed", assoc.ID)
	env.db.Model(closed).Update("status", constants.BusinessStatusInactive)
	member := env.seedMember(t, "ana", assoc.ID, cafe.ID, gym.ID)

	set := env.affiliation.Resolve(ctx, member.ID, 0)
	if !set.ProfileLoaded || set.AssociationID != assoc.ID {
		t.Fatalf("unexpected affiliation set: %+v", set)
	}
	if len(set.BusinessIDs) != 2 || !set.Contains(gym.ID) || !set.Contains(cafe.ID) || set.Contains(closed.ID) {
		t.Fatalf("expected deduplicated {gym, cafe}, got %v", set.BusinessIDs)
	}

	hinted := env.affiliation.Resolve(ctx, member.ID, 777)
	if hinted.AssociationID != assoc.ID || len(hinted.BusinessIDs) != 2 {
		t.Fatalf("expected profile association to win over hint, got %+v", hinted)
	}

	degraded := NewAffiliationService(failingMemberRepo{env.memberRepo}, env.businessRepo, nil).Resolve(ctx, member.ID, 0)
	if degraded.ProfileLoaded || len(degraded.BusinessIDs) != 0 {
		t.Fatalf("expected empty degraded set, got %+v", degraded)
	}
	missing := env.affiliation.Resolve(ctx, 9999, assoc.ID)
	if missing.ProfileLoaded || missing.HasAssociation() || len(missing.BusinessIDs) != 0 {
		t.Fatalf("expected empty set for missing member, got %+v", missing)
	}
}

func TestListAvailableIgnoresAssociationHint(t *testing.T) {
	env := setupBenefitEngineTest(t)
	ctx := context.Background()
	foreign := env.seedAssociation(t, "Doctors")
	business := env.seedBusiness(t, "Clinic")
	env.seedBenefit(t, business, func(b *models.Benefit) {
		b.AccessMode = constants.AccessModeAssociation
		b.AssociationIDs = models.IDList{foreign.ID}
	})
	member := env.seedMember(t, "ana", 0)

	for _, memberID := range []uint{member.ID, 9999} {
		list, err := env.benefits.ListAvailable(ctx, ListAvailableInput{MemberID: memberID, AssociationID: foreign.ID})
		if err != nil {
			t.Fatalf("list available failed: %v", err)
		}
		if len(list) != 0 {
			t.Fatalf("member %d must not see association benefits through a hint, got %v", memberID, benefitIDs(list))
		}
	}
}

func TestListAvailableDegradesToPublicWhenProfileUnreadable(t *testing.T) {
	env := setupBenefitEngineTest(t)
	assoc := env.seedAssociation(t, "Engineers")
	business := env.seedBusiness(t, "Gym", assoc.ID)
	member := env.seedMember(t, "ana", assoc.ID)
	public := env.seedBenefit(t, business, nil)
	env.seedBenefit(t, business, func(b *models.Benefit) {
		b.AccessMode = constants.AccessModeAssociation
	})

	affiliation := NewAffiliationService(failingMemberRepo{env.memberRepo}, env.businessRepo, nil)
	svc := NewBenefitService(affiliation, env.catalog, nil, nil, BenefitListOptions{})
	svc.now = func() time.Time { return env.now }
	list, err := svc.ListAvailable(context.Background(), ListAvailableInput{MemberID: member.ID})
	if err != nil {
		t.Fatalf("list available failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != public.ID {
		t.Fatalf("expected public-only list, got %v", benefitIDs(list))
	}
}

func TestListAvailableCachesUntilInvalidated(t *testing.T) {
	env := setupBenefitEngineTest(t)
	ctx := context.Background()
	business := env.seedBusiness(t, "Cafe")
	member := env.seedMember(t, "ana", 0)
	env.seedBenefit(t, business, nil)
	input := ListAvailableInput{MemberID: member.ID}

	first, err := env.benefits.ListAvailable(ctx, input)
	if err != nil || len(first) != 1 {
		t.Fatalf("expected one benefit, got %d err=%v", len(first), err)
	}
	env.seedBenefit(t, business, nil)
	cached, _ := env.benefits.ListAvailable(ctx, input)
	if len(cached) != 1 {
		t.Fatalf("expected cached result, got %d", len(cached))
	}

	env.benefits.Invalidate(ctx, notify.Event{})
	fresh, _ := env.benefits.ListAvailable(ctx, input)
	if len(fresh) != 2 {
		t.Fatalf("expected fresh result after invalidation, got %d", len(fresh))
	}

	if _, err := env.benefits.ListAvailable(ctx, ListAvailableInput{}); !IsClass(err, ErrMemberInvalid) {
		t.Fatalf("expected member invalid, got %v", err)
	}
}

func TestSubscribeDeliversInitialAndRefreshedLists(t *testing.T) {
	env := setupBenefitEngineTest(t)
	business := env.seedBusiness(t, "Cafe")
	member := env.seedMember(t, "ana", 0)
	env.seedBenefit(t, business, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := make(chan []AvailableBenefit, 4)
	sub, err := env.benefits.Subscribe(ctx, member.ID, 0, func(list []AvailableBenefit) {
		updates <- list
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	waitList := func() []AvailableBenefit {
		select {
		case list := <-updates:
			return list
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for subscription update")
			return nil
		}
	}
	if initial := waitList(); len(initial) != 1 {
		t.Fatalf("expected initial list of 1, got %d", len(initial))
	}

	if _, err := env.admin.Create(context.Background(), BenefitInput{
		Title:         "Second",
		DiscountType:  constants.DiscountTypeFreeItem,
		StartsAt:      env.now.Add(-time.Hour),
		EndsAt:        env.now.Add(time.Hour),
		AccessMode:    constants.AccessModePublic,
		BusinessID:    business.ID,
		DiscountValue: moneyOf("0"),
	}); err != nil {
		t.Fatalf("create benefit failed: %v", err)
	}
	if refreshed := waitList(); len(refreshed) != 2 {
		t.Fatalf("expected refreshed list of 2, got %d", len(refreshed))
	}

	sub.Cancel()
	if env.hub.Size() != 0 {
		t.Fatalf("expected subscription removed from hub")
	}
}

func TestListAvailableDoesNotCacheListReadBeforeRedemption(t *testing.T) {
	env := setupBenefitEngineTest(t)
	ctx := context.Background()
	business := env.seedBusiness(t, "Cafe")
	member := env.seedMember(t, "ana", 0)
	benefit := env.seedBenefit(t, business, func(b *models.Benefit) {
		b.UsageLimit = 1
	})

	listCache := cache.NewMemoryCache[BenefitListKey, []AvailableBenefit](time.Minute, 100)
	repo := &redeemingBenefitRepo{GormBenefitRepository: env.benefitRepo}
	svc := NewBenefitService(env.affiliation, NewBenefitCatalog(repo, CatalogOptions{}), listCache, nil, BenefitListOptions{})
	svc.now = func() time.Time { return env.now }
	redemptions := NewRedemptionService(
		env.benefitRepo,
		env.redemptionRepo,
		env.memberRepo,
		env.associationRepo,
		env.affiliation,
		svc,
		env.counter,
	)
	redemptions.now = svc.now

	var redeemErr error
	repo.after = func() {
		_, redeemErr = redemptions.Redeem(ctx, RedeemInput{BenefitID: benefit.ID, MemberID: member.ID})
	}

	input := ListAvailableInput{MemberID: member.ID}
	inFlight, err := svc.ListAvailable(ctx, input)
	if err != nil {
		t.Fatalf("list available failed: %v", err)
	}
	if redeemErr != nil {
		t.Fatalf("redeem during list failed: %v", redeemErr)
	}
	if len(inFlight) != 1 {
		t.Fatalf("in-flight list should still hold the benefit read before redemption, got %v", benefitIDs(inFlight))
	}
	reloaded, _ := env.benefitRepo.GetByID(benefit.ID)
	if reloaded.Status != constants.BenefitStatusExhausted {
		t.Fatalf("expected exhausted benefit, got %s", reloaded.Status)
	}

	after, err := svc.ListAvailable(ctx, input)
	if err != nil {
		t.Fatalf("list available failed: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("exhausted benefit must not be served from cache, got %v", benefitIDs(after))
	}
}
