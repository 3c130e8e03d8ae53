package public

import (
	handlershared "github.com/benefit-next/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

func getMemberID(c *gin.Context) (uint, bool) {
	return handlershared.ParseIDParam(c, "member_id", "error.member_id_invalid")
}

func getBusinessID(c *gin.Context) (uint, bool) {
	return handlershared.ParseIDParam(c, "business_id", "error.business_id_invalid")
}
