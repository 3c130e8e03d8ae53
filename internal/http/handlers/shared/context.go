package shared

import (
	"strconv"
	"strings"

	"github.com/benefit-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ParseIDParam 读取路径中的正整数 ID，非法时直接写出错误响应。
func ParseIDParam(c *gin.Context, name, invalidKey string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id == 0 {
		RespondError(c, response.CodeBadRequest, invalidKey, nil)
		return 0, false
	}
	return uint(id), true
}

// QueryUint 读取可选的非负整数查询参数，缺省返回 0。
func QueryUint(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, true
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(value), true
}

// QueryBool 读取布尔查询参数，无法解析时视为 false。
func QueryBool(c *gin.Context, name string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(c.Query(name)))
	return err == nil && value
}
