package models

import "time"

// Member 会员
type Member struct {
	ID                uint      `gorm:"primarykey" json:"id"`                        // 主键
	Name              string    `gorm:"not null" json:"name"`                        // 姓名
	DocumentNumber    string    `gorm:"index" json:"document_number"`                // 证件号
	Email             string    `gorm:"index" json:"email"`                          // 邮箱
	AssociationID     *uint     `gorm:"index" json:"association_id"`                 // 所属协会（可为空）
	DirectBusinessIDs IDList    `gorm:"type:text" json:"direct_business_ids"`        // 直接关联的商户ID集合（JSON数组）
	Status            string    `gorm:"index;not null;default:active" json:"status"` // 状态
	CreatedAt         time.Time `gorm:"index" json:"created_at"`                     // 创建时间
	UpdatedAt         time.Time `gorm:"index" json:"updated_at"`                     // 更新时间
}

// TableName 指定表名
func (Member) TableName() string {
	return "members"
}
