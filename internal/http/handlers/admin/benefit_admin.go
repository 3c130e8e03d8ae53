package admin

import (
	"strings"

	"github.com/benefit-next/internal/http/handlers/shared"
	"github.com/benefit-next/internal/http/response"
	"github.com/benefit-next/internal/repository"
	"github.com/benefit-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListBenefits 获取后台权益列表
func (h *Handler) ListBenefits(c *gin.Context) {
	page, pageSize := shared.PaginationQuery(c)
	businessID, ok := shared.QueryUint(c, "business_id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.business_id_invalid", nil)
		return
	}
	associationID, ok := shared.QueryUint(c, "association_id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}

	rows, total, err := h.BenefitAdminService.List(repository.BenefitListFilter{
		Page:          page,
		PageSize:      pageSize,
		BusinessID:    businessID,
		AssociationID: associationID,
		Status:        strings.TrimSpace(c.Query("status")),
		AccessMode:    strings.TrimSpace(c.Query("access_mode")),
		Category:      strings.TrimSpace(c.Query("category")),
		Search:        strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.benefit_list_failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.NewPagination(page, pageSize, total))
}

// GetBenefit 获取后台权益详情
func (h *Handler) GetBenefit(c *gin.Context) {
	id, ok := shared.ParseIDParam(c, "id", "error.benefit_id_invalid")
	if !ok {
		return
	}
	benefit, err := h.BenefitAdminService.Get(id)
	if err != nil {
		respondBenefitAdminError(c, err)
		return
	}
	response.Success(c, benefit)
}

// CreateBenefit 创建权益
func (h *Handler) CreateBenefit(c *gin.Context) {
	var req service.BenefitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	benefit, err := h.BenefitAdminService.Create(c.Request.Context(), req)
	if err != nil {
		respondBenefitAdminError(c, err)
		return
	}
	response.Success(c, benefit)
}

// UpdateBenefit 编辑权益
func (h *Handler) UpdateBenefit(c *gin.Context) {
	id, ok := shared.ParseIDParam(c, "id", "error.benefit_id_invalid")
	if !ok {
		return
	}
	var req service.BenefitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	benefit, err := h.BenefitAdminService.Update(c.Request.Context(), id, req)
	if err != nil {
		respondBenefitAdminError(c, err)
		return
	}
	response.Success(c, benefit)
}

// DeactivateBenefit 下架权益（不删除记录）
func (h *Handler) DeactivateBenefit(c *gin.Context) {
	id, ok := shared.ParseIDParam(c, "id", "error.benefit_id_invalid")
	if !ok {
		return
	}
	benefit, err := h.BenefitAdminService.Deactivate(c.Request.Context(), id)
	if err != nil {
		respondBenefitAdminError(c, err)
		return
	}
	response.Success(c, benefit)
}

// ReactivateBenefit 重新上架权益
func (h *Handler) ReactivateBenefit(c *gin.Context) {
	id, ok := shared.ParseIDParam(c, "id", "error.benefit_id_invalid")
	if !ok {
		return
	}
	benefit, err := h.BenefitAdminService.Reactivate(c.Request.Context(), id)
	if err != nil {
		respondBenefitAdminError(c, err)
		return
	}
	response.Success(c, benefit)
}
