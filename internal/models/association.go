package models

import "time"

// Association 协会
type Association struct {
	ID        uint      `gorm:"primarykey" json:"id"`                        // 主键
	Name      string    `gorm:"not null" json:"name"`                        // 名称
	LogoURL   string    `gorm:"type:varchar(500)" json:"logo_url"`           // 标志
	Status    string    `gorm:"index;not null;default:active" json:"status"` // 状态（active/inactive）
	CreatedAt time.Time `gorm:"index" json:"created_at"`                     // 创建时间
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`                     // 更新时间
}

// TableName 指定表名
func (Association) TableName() string {
	return "associations"
}
