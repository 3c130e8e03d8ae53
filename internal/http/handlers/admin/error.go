package admin

import (
	handlershared "github.com/benefit-next/internal/http/handlers/shared"
	"github.com/benefit-next/internal/http/response"
	"github.com/benefit-next/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

var benefitAdminErrorRules = []handlershared.MappedError{
	{Target: service.ErrBenefitNotFound, Code: response.CodeNotFound, Key: "error.benefit_not_found"},
	{Target: service.ErrBenefitInvalid, Code: response.CodeBadRequest, Key: "error.benefit_invalid"},
	{Target: service.ErrBenefitStateInvalid, Code: response.CodeConflict, Key: "error.benefit_state_invalid"},
	{Target: service.ErrBusinessNotFound, Code: response.CodeNotFound, Key: "error.business_not_found"},
	{Target: service.ErrBusinessInactive, Code: response.CodeBadRequest, Key: "error.business_inactive"},
}

// respondBenefitAdminError 校验错误直接回传明细，便于管理端定位字段
func respondBenefitAdminError(c *gin.Context, err error) {
	if service.IsClass(err, service.ErrBenefitInvalid) {
		handlershared.RespondErrorWithMsg(c, response.CodeBadRequest, err.Error(), nil)
		return
	}
	handlershared.RespondWithMappedError(c, err, benefitAdminErrorRules, response.CodeInternal, "error.benefit_save_failed")
}
