package repository

import "time"

// BenefitListFilter 管理端权益列表的过滤条件
type BenefitListFilter struct {
	Page          int
	PageSize      int
	BusinessID    uint
	AssociationID uint
	Status        string
	AccessMode    string
	Category      string
	Search        string
}

// BusinessListFilter 商户列表的过滤条件
type BusinessListFilter struct {
	Page          int
	PageSize      int
	AssociationID uint
	Status        string
}

// RedemptionListFilter 核销记录列表的过滤条件
type RedemptionListFilter struct {
	Page          int
	PageSize      int
	MemberID      uint
	BusinessID    uint
	AssociationID uint
	BenefitID     uint
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

// BenefitScope 统计范围内的权益筛选，三者互斥
type BenefitScope struct {
	BusinessID    uint
	AssociationID uint
	IDs           []uint
}
