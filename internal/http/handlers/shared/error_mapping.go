package shared

import (
	"github.com/benefit-next/internal/http/response"
	"github.com/benefit-next/internal/service"

	"github.com/gin-gonic/gin"
)

// MappedError 定义业务错误到接口错误响应的映射关系。
type MappedError struct {
	Target error
	Code   int
	Key    string
}

// classRules 具体错误未命中时按错误分类兜底
var classRules = []MappedError{
	{Target: service.ErrNotFound, Code: response.CodeNotFound, Key: "error.benefit_not_found"},
	{Target: service.ErrExpired, Code: response.CodeGone, Key: "error.benefit_expired"},
	{Target: service.ErrCapReached, Code: response.CodeConflict, Key: "error.benefit_usage_limit"},
	{Target: service.ErrAccessDenied, Code: response.CodeForbidden, Key: "error.benefit_access_denied"},
	{Target: service.ErrValidation, Code: response.CodeBadRequest, Key: "error.bad_request"},
}

// RespondWithMappedError 依次匹配具体规则与分类规则；存储失败及未知错误按 fallback 返回并记录日志。
func RespondWithMappedError(c *gin.Context, err error, rules []MappedError, fallbackCode int, fallbackKey string) {
	if !service.IsClass(err, service.ErrStorage) {
		for _, group := range [][]MappedError{rules, classRules} {
			for _, rule := range group {
				if service.IsClass(err, rule.Target) {
					RespondError(c, rule.Code, rule.Key, nil)
					return
				}
			}
		}
	}
	RespondError(c, fallbackCode, fallbackKey, err)
}

// ConcatMappedErrors 合并多组映射规则
func ConcatMappedErrors(groups ...[]MappedError) []MappedError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]MappedError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}
