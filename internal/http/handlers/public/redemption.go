package public

import (
	"strings"

	"github.com/benefit-next/internal/http/handlers/shared"
	"github.com/benefit-next/internal/http/response"
	"github.com/benefit-next/internal/models"
	"github.com/benefit-next/internal/service"

	"github.com/gin-gonic/gin"
)

// RedeemBenefitRequest 核销权益请求
type RedeemBenefitRequest struct {
	MemberID       uint          `json:"member_id" binding:"required"`
	MemberName     string        `json:"member_name"`
	MemberDocument string        `json:"member_document"`
	BusinessID     uint          `json:"business_id"`
	AssociationID  uint          `json:"association_id"`
	OriginalAmount *models.Money `json:"original_amount"`
}

// RedeemBenefit 核销权益
func (h *Handler) RedeemBenefit(c *gin.Context) {
	benefitID, ok := shared.ParseIDParam(c, "id", "error.benefit_id_invalid")
	if !ok {
		return
	}
	var req RedeemBenefitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	redemption, err := h.RedemptionService.Redeem(c.Request.Context(), service.RedeemInput{
		BenefitID:      benefitID,
		MemberID:       req.MemberID,
		MemberName:     strings.TrimSpace(req.MemberName),
		MemberDocument: strings.TrimSpace(req.MemberDocument),
		BusinessID:     req.BusinessID,
		AssociationID:  req.AssociationID,
		OriginalAmount: req.OriginalAmount,
	})
	if err != nil {
		respondRedeemError(c, err)
		return
	}
	response.Success(c, redemption)
}

// ListMemberRedemptions 会员核销记录
func (h *Handler) ListMemberRedemptions(c *gin.Context) {
	memberID, ok := getMemberID(c)
	if !ok {
		return
	}
	page, pageSize := shared.PaginationQuery(c)
	rows, total, err := h.RedemptionService.ListByMember(memberID, service.RedemptionListInput{Page: page, PageSize: pageSize})
	if err != nil {
		respondRedemptionListError(c, err)
		return
	}
	response.SuccessWithPage(c, rows, response.NewPagination(page, pageSize, total))
}

// ListBusinessRedemptions 商户核销记录
func (h *Handler) ListBusinessRedemptions(c *gin.Context) {
	businessID, ok := getBusinessID(c)
	if !ok {
		return
	}
	page, pageSize := shared.PaginationQuery(c)
	rows, total, err := h.RedemptionService.ListByBusiness(businessID, service.RedemptionListInput{Page: page, PageSize: pageSize})
	if err != nil {
		respondRedemptionListError(c, err)
		return
	}
	response.SuccessWithPage(c, rows, response.NewPagination(page, pageSize, total))
}
