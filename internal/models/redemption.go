package models

import "time"

// Redemption 权益核销记录（只追加，不修改）
type Redemption struct {
	ID              uint      `gorm:"primarykey" json:"id"`                                         // 主键
	RedemptionNo    string    `gorm:"uniqueIndex;not null" json:"redemption_no"`                    // 核销单号
	BenefitID       uint      `gorm:"index;not null" json:"benefit_id"`                             // 权益ID
	BenefitTitle    string    `json:"benefit_title"`                                                // 权益标题快照
	MemberID        uint      `gorm:"index;not null" json:"member_id"`                              // 会员ID
	MemberName      string    `json:"member_name"`                                                  // 会员姓名快照
	MemberDocument  string    `json:"member_document"`                                              // 会员证件号快照
	BusinessID      uint      `gorm:"index;not null" json:"business_id"`                            // 商户ID
	BusinessName    string    `json:"business_name"`                                                // 商户名称快照
	AssociationID   *uint     `gorm:"index" json:"association_id"`                                  // 协会ID（可为空）
	AssociationName string    `json:"association_name"`                                             // 协会名称快照
	DiscountAmount  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"` // 优惠金额
	OriginalAmount  *Money    `gorm:"type:decimal(20,2)" json:"original_amount"`                    // 原始金额（可选）
	FinalAmount     *Money    `gorm:"type:decimal(20,2)" json:"final_amount"`                       // 实付金额（可选）
	Status          string    `gorm:"index;not null" json:"status"`                                 // 状态
	CreatedAt       time.Time `gorm:"index" json:"created_at"`                                      // 核销时间
}

// TableName 指定表名
func (Redemption) TableName() string {
	return "redemptions"
}
