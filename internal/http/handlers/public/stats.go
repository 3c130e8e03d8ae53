package public

import (
	"strings"

	"github.com/benefit-next/internal/http/handlers/shared"
	"github.com/benefit-next/internal/http/response"
	"github.com/benefit-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetStats 按商户/协会/会员范围查询权益统计
func (h *Handler) GetStats(c *gin.Context) {
	id, ok := shared.QueryUint(c, "id")
	if !ok || id == 0 {
		respondError(c, response.CodeBadRequest, "error.stats_scope_invalid", nil)
		return
	}
	summary, err := h.StatsService.GetStats(c.Request.Context(), service.StatsScope{
		Kind: strings.TrimSpace(c.Query("scope")),
		ID:   id,
	})
	if err != nil {
		respondStatsError(c, err)
		return
	}
	response.Success(c, summary)
}
