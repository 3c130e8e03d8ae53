package public

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benefit-next/internal/config"
	"github.com/benefit-next/internal/constants"
	"github.com/benefit-next/internal/models"
	"github.com/benefit-next/internal/notify"
	"github.com/benefit-next/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

type publicTestEnv struct {
	db        *gorm.DB
	container *provider.Container
	engine    *gin.Engine
}

func setupPublicHandlerTest(t *testing.T) *publicTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:public_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	h := New(container)
	r := gin.New()
	r.GET("/members/:member_id/benefits", h.ListMemberBenefits)
	r.GET("/members/:member_id/benefits/stream", h.StreamMemberBenefits)
	r.GET("/members/:member_id/redemptions", h.ListMemberRedemptions)
	r.POST("/benefits/:id/redeem", h.RedeemBenefit)
	r.GET("/businesses/:business_id/redemptions", h.ListBusinessRedemptions)
	r.GET("/stats", h.GetStats)
	return &publicTestEnv{db: db, container: container, engine: r}
}

func (env *publicTestEnv) seed(t *testing.T, usageLimit int) (*models.Business, *models.Member, *models.Benefit) {
	t.Helper()
	now := time.Now()
	business := &models.Business{Name: "Cafe", Category: "food", Status: constants.BusinessStatusActive}
	if err := env.db.Create(business).Error; err != nil {
		t.Fatalf("create business failed: %v", err)
	}
	member := &models.Member{Name: "Ana", DocumentNumber: "DOC-1", Status: constants.MemberStatusActive}
	if err := env.db.Create(member).Error; err != nil {
		t.Fatalf("create member failed: %v", err)
	}
	benefit := &models.Benefit{
		Title:         "Coffee 10%",
		Category:      "food",
		DiscountType:  constants.DiscountTypePercentage,
		DiscountValue: models.NewMoneyFromInt(10),
		StartsAt:      now.Add(-time.Hour),
		EndsAt:        now.Add(48 * time.Hour),
		Status:        constants.BenefitStatusActive,
		AccessMode:    constants.AccessModePublic,
		UsageLimit:    usageLimit,
		BusinessID:    business.ID,
		BusinessName:  business.Name,
	}
	if err := env.db.Create(benefit).Error; err != nil {
		t.Fatalf("create benefit failed: %v", err)
	}
	return business, member, benefit
}

func (env *publicTestEnv) do(t *testing.T, method, path string, body interface{}) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("%s %s: http status want 200 got %d", method, path, w.Code)
	}
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v (%s)", err, w.Body.String())
	}
	return resp
}

func TestListMemberBenefits(t *testing.T) {
	env := setupPublicHandlerTest(t)
	_, member, benefit := env.seed(t, 0)

	resp := env.do(t, http.MethodGet, fmt.Sprintf("/members/%d/benefits?category=FOOD", member.ID), nil)
	if resp.StatusCode != 0 {
		t.Fatalf("status_code want 0 got %d (%s)", resp.StatusCode, resp.Msg)
	}
	var items []struct {
		ID     uint   `json:"id"`
		Origin string `json:"origin"`
	}
	if err := json.Unmarshal(resp.Data, &items); err != nil {
		t.Fatalf("unmarshal items failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != benefit.ID {
		t.Fatalf("expected benefit %d, got %+v", benefit.ID, items)
	}

	if resp := env.do(t, http.MethodGet, "/members/abc/benefits", nil); resp.StatusCode != 400 {
		t.Fatalf("invalid member id want 400 got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, fmt.Sprintf("/members/%d/benefits?business_id=x", member.ID), nil); resp.StatusCode != 400 {
		t.Fatalf("invalid business filter want 400 got %d", resp.StatusCode)
	}
}

func TestRedeemBenefitMapsErrors(t *testing.T) {
	env := setupPublicHandlerTest(t)
	business, member, benefit := env.seed(t, 1)
	path := fmt.Sprintf("/benefits/%d/redeem", benefit.ID)

	resp := env.do(t, http.MethodPost, path, gin.H{
		"member_id":       member.ID,
		"business_id":     business.ID,
		"original_amount": "20.00",
	})
	if resp.StatusCode != 0 {
		t.Fatalf("first redeem want 0 got %d (%s)", resp.StatusCode, resp.Msg)
	}
	var redemption models.Redemption
	if err := json.Unmarshal(resp.Data, &redemption); err != nil {
		t.Fatalf("unmarshal redemption failed: %v", err)
	}
	if redemption.DiscountAmount.String() != "2.00" || redemption.RedemptionNo == "" {
		t.Fatalf("unexpected redemption: %+v", redemption)
	}

	cases := []struct {
		name string
		path string
		body gin.H
		want int
	}{
		{"cap reached", path, gin.H{"member_id": member.ID}, 409},
		{"missing member", path, gin.H{}, 400},
		{"unknown benefit", "/benefits/9999/redeem", gin.H{"member_id": member.ID}, 404},
		{"bad benefit id", "/benefits/0/redeem", gin.H{"member_id": member.ID}, 400},
	}
	for _, tc := range cases {
		if resp := env.do(t, http.MethodPost, tc.path, tc.body); resp.StatusCode != tc.want {
			t.Fatalf("%s: status_code want %d got %d (%s)", tc.name, tc.want, resp.StatusCode, resp.Msg)
		}
	}

	history := env.do(t, http.MethodGet, fmt.Sprintf("/members/%d/redemptions?page=1&page_size=10", member.ID), nil)
	if history.StatusCode != 0 {
		t.Fatalf("history status_code want 0 got %d", history.StatusCode)
	}
	byBusiness := env.do(t, http.MethodGet, fmt.Sprintf("/businesses/%d/redemptions", business.ID), nil)
	var rows []models.Redemption
	if err := json.Unmarshal(byBusiness.Data, &rows); err != nil {
		t.Fatalf("unmarshal business history failed: %v", err)
	}
	if len(rows) != 1 || rows[0].MemberID != member.ID {
		t.Fatalf("expected one business redemption, got %+v", rows)
	}
}

func TestGetStats(t *testing.T) {
	env := setupPublicHandlerTest(t)
	business, _, _ := env.seed(t, 0)

	resp := env.do(t, http.MethodGet, fmt.Sprintf("/stats?scope=business&id=%d", business.ID), nil)
	if resp.StatusCode != 0 {
		t.Fatalf("status_code want 0 got %d (%s)", resp.StatusCode, resp.Msg)
	}
	var summary struct {
		TotalBenefits int `json:"total_benefits"`
	}
	if err := json.Unmarshal(resp.Data, &summary); err != nil {
		t.Fatalf("unmarshal summary failed: %v", err)
	}
	if summary.TotalBenefits != 1 {
		t.Fatalf("expected one benefit in scope, got %d", summary.TotalBenefits)
	}

	cases := map[string]int{
		"/stats?scope=galaxy&id=1":   400,
		"/stats?scope=business":      400,
		"/stats?scope=business&id=9": 404,
	}
	for path, want := range cases {
		if resp := env.do(t, http.MethodGet, path, nil); resp.StatusCode != want {
			t.Fatalf("%s: status_code want %d got %d", path, want, resp.StatusCode)
		}
	}
}

func TestStreamMemberBenefits(t *testing.T) {
	env := setupPublicHandlerTest(t)
	_, member, _ := env.seed(t, 0)
	srv := httptest.NewServer(env.engine)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/members/%d/benefits/stream", srv.URL, member.ID), nil)
	if err != nil {
		t.Fatalf("build request failed: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream failed: %v", err)
	}
	defer resp.Body.Close()
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	reader := bufio.NewReader(resp.Body)
	nextEvent := func() string {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream failed: %v", err)
			}
			if strings.HasPrefix(line, "event:") {
				return strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			}
		}
	}

	if got := nextEvent(); got != "benefits" {
		t.Fatalf("initial event want benefits got %s", got)
	}
	env.container.BenefitService.Invalidate(context.Background(), notify.Event{Type: constants.BenefitEventChanged})
	if got := nextEvent(); got != "benefits" {
		t.Fatalf("change event want benefits got %s", got)
	}
}
