package models

import (
	"time"

	"github.com/benefit-next/internal/constants"
)

// Benefit 商户发布的会员权益
type Benefit struct {
	ID             uint        `gorm:"primarykey" json:"id"`                                        // 主键
	Title          string      `gorm:"not null" json:"title"`                                       // 标题
	Description    string      `gorm:"type:text" json:"description"`                                // 描述
	Category       string      `gorm:"index" json:"category"`                                       // 分类
	DiscountType   string      `gorm:"not null" json:"discount_type"`                               // 折扣类型（percentage/fixed/free_item）
	DiscountValue  Money       `gorm:"type:decimal(20,2);not null;default:0" json:"discount_value"` // 折扣数值（百分比或固定金额）
	StartsAt       time.Time   `gorm:"index;not null" json:"starts_at"`                             // 生效时间（含）
	EndsAt         time.Time   `gorm:"index;not null" json:"ends_at"`                               // 失效时间（不含）
	Status         string      `gorm:"index;not null;default:active" json:"status"`                 // 状态（active/inactive/expired/exhausted）
	AccessMode     string      `gorm:"index;not null;default:public" json:"access_mode"`            // 访问方式（public/association/direct）
	BusinessID     uint        `gorm:"index;not null" json:"business_id"`                           // 所属商户
	BusinessName   string      `json:"business_name"`                                               // 商户名称快照
	AssociationIDs IDList      `gorm:"type:text" json:"association_ids"`                            // 可达协会ID集合（JSON数组）
	PerMemberLimit int         `gorm:"not null;default:0" json:"per_member_limit"`                  // 每位会员使用上限（0 表示不限制）
	UsageLimit     int         `gorm:"not null;default:0" json:"usage_limit"`                       // 总使用上限（0 表示不限制）
	UsedCount      int         `gorm:"not null;default:0" json:"used_count"`                        // 已使用次数
	Tags           StringArray `gorm:"type:text" json:"tags"`                                       // 标签
	IsFeatured     bool        `gorm:"index;not null;default:false" json:"is_featured"`             // 是否推荐
	CreatedAt      time.Time   `gorm:"index" json:"created_at"`                                     // 创建时间
	UpdatedAt      time.Time   `gorm:"index" json:"updated_at"`                                     // 更新时间
}

// TableName 指定表名
func (Benefit) TableName() string {
	return "benefits"
}

// InWindow 判断 now 是否落在 [StartsAt, EndsAt) 内
func (b *Benefit) InWindow(now time.Time) bool {
	return !now.Before(b.StartsAt) && now.Before(b.EndsAt)
}

// CapReached 判断总使用上限是否已满
func (b *Benefit) CapReached() bool {
	return b.UsageLimit > 0 && b.UsedCount >= b.UsageLimit
}

// IsActive 是否处于可用状态
func (b *Benefit) IsActive() bool {
	return b.Status == constants.BenefitStatusActive
}
