package public

import "github.com/benefit-next/internal/provider"

// Handler 会员/商户侧接口处理器入口
// 说明：该处理器仅用于权益查询、核销、历史与统计 API。
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
