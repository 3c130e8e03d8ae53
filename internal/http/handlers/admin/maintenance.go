package admin

import (
	"time"

	"github.com/benefit-next/internal/http/handlers/shared"
	"github.com/benefit-next/internal/http/response"
	"github.com/benefit-next/internal/queue"

	"github.com/gin-gonic/gin"
)

// RunExpireSweep 执行过期/耗尽巡检；async=true 且队列可用时投递到维护队列
func (h *Handler) RunExpireSweep(c *gin.Context) {
	now := time.Now()
	if shared.QueryBool(c, "async") && h.QueueClient != nil && h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueExpireSweep(queue.ExpireSweepPayload{At: &now}); err != nil {
			respondError(c, response.CodeInternal, "error.maintenance_failed", err)
			return
		}
		response.Success(c, gin.H{"queued": true})
		return
	}
	report, err := h.MaintenanceService.ExpireDue(c.Request.Context(), now)
	if err != nil {
		respondError(c, response.CodeInternal, "error.maintenance_failed", err)
		return
	}
	requestLog(c).Infow("admin_expire_sweep_done", "expired", report.Expired, "exhausted", report.Exhausted, "failed", report.Failed)
	response.Success(c, report)
}

// ResyncCounters 全量重算商户有效权益数
func (h *Handler) ResyncCounters(c *gin.Context) {
	if shared.QueryBool(c, "async") && h.QueueClient != nil && h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueCounterResync(queue.CounterResyncPayload{Trigger: "admin"}); err != nil {
			respondError(c, response.CodeInternal, "error.maintenance_failed", err)
			return
		}
		response.Success(c, gin.H{"queued": true})
		return
	}
	report, err := h.MaintenanceService.ResyncCounters(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "error.maintenance_failed", err)
		return
	}
	response.Success(c, report)
}

// ResyncBusinessCounter 重算单个商户的有效权益数
func (h *Handler) ResyncBusinessCounter(c *gin.Context) {
	id, ok := shared.ParseIDParam(c, "id", "error.business_id_invalid")
	if !ok {
		return
	}
	business, err := h.BusinessRepo.GetByID(id)
	if err != nil {
		respondError(c, response.CodeInternal, "error.maintenance_failed", err)
		return
	}
	if business == nil {
		respondError(c, response.CodeNotFound, "error.business_not_found", nil)
		return
	}
	count, err := h.CounterService.SyncBusiness(c.Request.Context(), id)
	if err != nil {
		respondError(c, response.CodeInternal, "error.maintenance_failed", err)
		return
	}
	response.Success(c, gin.H{
		"business_id":          id,
		"active_benefit_count": count,
	})
}
