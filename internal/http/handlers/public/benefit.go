package public

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/benefit-next/internal/http/handlers/shared"
	"github.com/benefit-next/internal/http/response"
	"github.com/benefit-next/internal/service"

	"github.com/gin-gonic/gin"
)

const streamHeartbeatInterval = 25 * time.Second

// ListMemberBenefits 查询会员当前可用权益
func (h *Handler) ListMemberBenefits(c *gin.Context) {
	memberID, ok := getMemberID(c)
	if !ok {
		return
	}
	associationID, ok := shared.QueryUint(c, "association_id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	businessID, ok := shared.QueryUint(c, "business_id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.business_id_invalid", nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	list, err := h.BenefitService.ListAvailable(c.Request.Context(), service.ListAvailableInput{
		MemberID:      memberID,
		AssociationID: associationID,
		Limit:         limit,
		Filter: service.BenefitFilter{
			Category:     strings.TrimSpace(c.Query("category")),
			BusinessID:   businessID,
			FeaturedOnly: shared.QueryBool(c, "featured"),
			Search:       strings.TrimSpace(c.Query("search")),
			NewOnly:      shared.QueryBool(c, "new"),
			ExpiringSoon: shared.QueryBool(c, "expiring"),
		},
	})
	if err != nil {
		respondBenefitListError(c, err)
		return
	}
	response.Success(c, list)
}

// StreamMemberBenefits 以 SSE 推送会员可用权益列表：连接建立时推送一次，之后每次变更推送最新列表
func (h *Handler) StreamMemberBenefits(c *gin.Context) {
	memberID, ok := getMemberID(c)
	if !ok {
		return
	}
	associationID, ok := shared.QueryUint(c, "association_id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// 只保留最新一次列表，慢客户端不会阻塞推送方
	updates := make(chan []service.AvailableBenefit, 1)
	sub, err := h.BenefitService.Subscribe(ctx, memberID, associationID, func(list []service.AvailableBenefit) {
		select {
		case updates <- list:
			return
		default:
		}
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- list:
		default:
		}
	})
	if err != nil {
		if service.IsClass(err, service.ErrMemberInvalid) {
			respondError(c, response.CodeBadRequest, "error.member_id_invalid", nil)
			return
		}
		respondError(c, response.CodeUnavailable, "error.subscription_unavailable", err)
		return
	}
	defer sub.Cancel()

	log := requestLog(c)
	log.Debugw("benefit_stream_open", "member_id", memberID, "subscription_id", sub.ID)
	defer log.Debugw("benefit_stream_closed", "member_id", memberID, "subscription_id", sub.ID)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(streamHeartbeatInterval)
	defer heartbeat.Stop()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-sub.Done():
			return false
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case list := <-updates:
			c.SSEvent("benefits", list)
			return true
		}
	})
}
