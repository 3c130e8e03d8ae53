package public

import (
	"github.com/benefit-next/internal/http/handlers/shared"
	"github.com/benefit-next/internal/http/response"
	"github.com/benefit-next/internal/service"

	"github.com/gin-gonic/gin"
)

type mappedHandlerError = shared.MappedError

var memberErrorRules = []mappedHandlerError{
	{Target: service.ErrMemberInvalid, Code: response.CodeBadRequest, Key: "error.member_id_invalid"},
	{Target: service.ErrMemberNotFound, Code: response.CodeNotFound, Key: "error.member_not_found"},
}

var redeemErrorRules = []mappedHandlerError{
	{Target: service.ErrRedeemInvalid, Code: response.CodeBadRequest, Key: "error.redeem_invalid"},
	{Target: service.ErrBenefitNotFound, Code: response.CodeNotFound, Key: "error.benefit_not_found"},
	{Target: service.ErrBenefitInactive, Code: response.CodeNotFound, Key: "error.benefit_inactive"},
	{Target: service.ErrBusinessNotFound, Code: response.CodeNotFound, Key: "error.business_not_found"},
	{Target: service.ErrAssociationNotFound, Code: response.CodeNotFound, Key: "error.association_not_found"},
	{Target: service.ErrBenefitBusinessMismatch, Code: response.CodeBadRequest, Key: "error.benefit_business_mismatch"},
	{Target: service.ErrBenefitNotStarted, Code: response.CodeBadRequest, Key: "error.benefit_not_started"},
	{Target: service.ErrBenefitExpired, Code: response.CodeGone, Key: "error.benefit_expired"},
	{Target: service.ErrBenefitUsageLimit, Code: response.CodeConflict, Key: "error.benefit_usage_limit"},
	{Target: service.ErrBenefitPerMemberLimit, Code: response.CodeConflict, Key: "error.benefit_per_member_limit"},
	{Target: service.ErrMemberInactive, Code: response.CodeForbidden, Key: "error.member_inactive"},
	{Target: service.ErrBenefitAccessDenied, Code: response.CodeForbidden, Key: "error.benefit_access_denied"},
}

var statsErrorRules = []mappedHandlerError{
	{Target: service.ErrStatsScopeInvalid, Code: response.CodeBadRequest, Key: "error.stats_scope_invalid"},
	{Target: service.ErrBusinessNotFound, Code: response.CodeNotFound, Key: "error.business_not_found"},
	{Target: service.ErrAssociationNotFound, Code: response.CodeNotFound, Key: "error.association_not_found"},
	{Target: service.ErrMemberNotFound, Code: response.CodeNotFound, Key: "error.member_not_found"},
}

var businessErrorRules = []mappedHandlerError{
	{Target: service.ErrBusinessNotFound, Code: response.CodeNotFound, Key: "error.business_not_found"},
}

func respondBenefitListError(c *gin.Context, err error) {
	shared.RespondWithMappedError(c, err, memberErrorRules, response.CodeInternal, "error.benefit_list_failed")
}

func respondRedeemError(c *gin.Context, err error) {
	shared.RespondWithMappedError(c, err, shared.ConcatMappedErrors(redeemErrorRules, memberErrorRules), response.CodeInternal, "error.redeem_failed")
}

func respondRedemptionListError(c *gin.Context, err error) {
	shared.RespondWithMappedError(c, err, shared.ConcatMappedErrors(memberErrorRules, businessErrorRules), response.CodeInternal, "error.redemption_list_failed")
}

func respondStatsError(c *gin.Context, err error) {
	shared.RespondWithMappedError(c, err, statsErrorRules, response.CodeInternal, "error.stats_failed")
}
