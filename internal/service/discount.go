package service

import (
	"fmt"

	"github.com/benefit-next/internal/constants"
	"github.com/benefit-next/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Discount 折扣计算。每种折扣只携带自身需要的字段。
type Discount interface {
	Kind() string
	// Apply 计算优惠金额；original 为空表示未提供交易金额
	Apply(original *models.Money) models.Money
}

// PercentageDiscount 按比例折扣，Rate 为百分数（10 表示 10%）
type PercentageDiscount struct {
	Rate decimal.Decimal
}

// FixedDiscount 固定金额折扣
type FixedDiscount struct {
	Amount decimal.Decimal
}

// FreeItemDiscount 赠品/免单
type FreeItemDiscount struct{}

// Kind 折扣类型
func (PercentageDiscount) Kind() string { return constants.DiscountTypePercentage }

// Kind 折扣类型
func (FixedDiscount) Kind() string { return constants.DiscountTypeFixed }

// Kind 折扣类型
func (FreeItemDiscount) Kind() string { return constants.DiscountTypeFreeItem }

// Apply original × rate / 100；未提供金额时为 0
func (d PercentageDiscount) Apply(original *models.Money) models.Money {
	if original == nil {
		return models.NewMoneyFromDecimal(decimal.Zero)
	}
	return models.NewMoneyFromDecimal(original.Decimal.Mul(d.Rate).Div(hundred))
}

// Apply min(fixed, original)；未提供金额时为固定值
func (d FixedDiscount) Apply(original *models.Money) models.Money {
	if original == nil {
		return models.NewMoneyFromDecimal(d.Amount)
	}
	return models.NewMoneyFromDecimal(decimal.Min(d.Amount, original.Decimal))
}

// Apply 全额优惠；未提供金额时为 0
func (FreeItemDiscount) Apply(original *models.Money) models.Money {
	if original == nil {
		return models.NewMoneyFromDecimal(decimal.Zero)
	}
	return models.NewMoneyFromDecimal(original.Decimal)
}

// DiscountFromBenefit 根据权益的折扣类型构造对应折扣
func DiscountFromBenefit(benefit *models.Benefit) (Discount, error) {
	if benefit == nil {
		return nil, ErrBenefitNotFound
	}
	switch benefit.DiscountType {
	case constants.DiscountTypePercentage:
		return PercentageDiscount{Rate: benefit.DiscountValue.Decimal}, nil
	case constants.DiscountTypeFixed:
		return FixedDiscount{Amount: benefit.DiscountValue.Decimal}, nil
	case constants.DiscountTypeFreeItem:
		return FreeItemDiscount{}, nil
	default:
		return nil, validationError(ErrBenefitInvalid, "unknown discount type %q", benefit.DiscountType)
	}
}

// finalAmount 计算实付金额，不低于 0；未提供原始金额时为空
func finalAmount(original *models.Money, discount models.Money) *models.Money {
	if original == nil {
		return nil
	}
	final := original.Decimal.Sub(discount.Decimal)
	if final.IsNegative() {
		final = decimal.Zero
	}
	return models.NewMoneyFromDecimal(final).Ptr()
}

func describeDiscount(d Discount) string {
	switch v := d.(type) {
	case PercentageDiscount:
		return fmt.Sprintf("%s%%", v.Rate.String())
	case FixedDiscount:
		return v.Amount.StringFixed(2)
	default:
		return d.Kind()
	}
}
