package models

import "time"

// Business 商户
type Business struct {
	ID                 uint      `gorm:"primarykey" json:"id"`                           // 主键
	Name               string    `gorm:"not null" json:"name"`                           // 名称
	LogoURL            string    `gorm:"type:varchar(500)" json:"logo_url"`              // 标志
	Category           string    `gorm:"index" json:"category"`                          // 行业分类
	Status             string    `gorm:"index;not null;default:active" json:"status"`    // 状态（active/inactive）
	AssociationIDs     IDList    `gorm:"type:text" json:"association_ids"`               // 所属协会ID集合（JSON数组）
	ActiveBenefitCount int       `gorm:"not null;default:0" json:"active_benefit_count"` // 有效权益数（派生值，由计数同步维护）
	CreatedAt          time.Time `gorm:"index" json:"created_at"`                        // 创建时间
	UpdatedAt          time.Time `gorm:"index" json:"updated_at"`                        // 更新时间
}

// TableName 指定表名
func (Business) TableName() string {
	return "businesses"
}
