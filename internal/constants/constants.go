package constants

import "time"

// 权益状态常量
const (
	BenefitStatusActive    = "active"
	BenefitStatusInactive  = "inactive"
	BenefitStatusExpired   = "expired"
	BenefitStatusExhausted = "exhausted"
)

// 权益访问方式常量
const (
	AccessModePublic      = "public"
	AccessModeAssociation = "association"
	AccessModeDirect      = "direct"
)

// 折扣类型常量
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
	DiscountTypeFreeItem   = "free_item"
)

// 权益来源常量（仅用于列表排序与审计，不落库）
const (
	BenefitOriginAssociation = "association"
	BenefitOriginAffiliated  = "affiliated_business"
	BenefitOriginPublic      = "public"
	BenefitOriginDirect      = "direct"
)

// 商户/协会/会员状态常量
const (
	BusinessStatusActive      = "active"
	BusinessStatusInactive    = "inactive"
	AssociationStatusActive   = "active"
	AssociationStatusInactive = "inactive"
	MemberStatusActive        = "active"
	MemberStatusInactive      = "inactive"
)

// 核销记录状态常量
const (
	RedemptionStatusCompleted = "completed"
)

// 统计范围常量
const (
	StatsScopeBusiness    = "business"
	StatsScopeAssociation = "association"
	StatsScopeMember      = "member"
)

// 权益列表时间窗口
const (
	BenefitNewWindow      = 7 * 24 * time.Hour
	BenefitExpiringWindow = 7 * 24 * time.Hour
)

// 存储端 IN 查询单批上限
const InQueryBatchSizeDefault = 10

// 公开权益补充数量上限
const PublicFallbackLimitDefault = 20

// 队列常量
const (
	QueueDefault             = "default"
	QueueMaintenance         = "maintenance"
	TaskBenefitCounterSync   = "benefit:counter_sync"
	TaskBenefitExpireSweep   = "benefit:expire_sweep"
	TaskBenefitCounterResync = "benefit:counter_resync"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "bn"
)

// 通知事件类型常量
const (
	BenefitEventChanged  = "benefit_changed"
	BenefitEventRedeemed = "benefit_redeemed"
)
