package service

import (
	cr "github.com/cockroachdb/errors"
)

// 错误分类，调用方可用 IsClass 判断具体错误属于哪一类
var (
	ErrNotFound     = cr.New("not found")
	ErrExpired      = cr.New("outside validity window")
	ErrCapReached   = cr.New("redemption cap reached")
	ErrAccessDenied = cr.New("access denied")
	ErrValidation   = cr.New("validation failed")
	ErrStorage      = cr.New("storage failure")
)

// 资源不存在
var (
	ErrBenefitNotFound     = classify(cr.New("benefit not found"), ErrNotFound)
	ErrBenefitInactive     = classify(cr.New("benefit inactive"), ErrNotFound)
	ErrMemberNotFound      = classify(cr.New("member not found"), ErrNotFound)
	ErrBusinessNotFound    = classify(cr.New("business not found"), ErrNotFound)
	ErrAssociationNotFound = classify(cr.New("association not found"), ErrNotFound)
)

// 有效期
var (
	ErrBenefitNotStarted = classify(cr.New("benefit not started"), ErrExpired)
	ErrBenefitExpired    = classify(cr.New("benefit expired"), ErrExpired)
)

// 使用上限
var (
	ErrBenefitUsageLimit     = classify(cr.New("benefit usage limit reached"), ErrCapReached)
	ErrBenefitPerMemberLimit = classify(cr.New("benefit per member limit reached"), ErrCapReached)
)

// 访问权限
var (
	ErrBenefitAccessDenied = classify(cr.New("member not entitled to benefit"), ErrAccessDenied)
	ErrMemberInactive      = classify(cr.New("member inactive"), ErrAccessDenied)
)

// 参数校验
var (
	ErrRedeemInvalid           = classify(cr.New("redeem request invalid"), ErrValidation)
	ErrBenefitBusinessMismatch = classify(cr.New("benefit belongs to another business"), ErrValidation)
	ErrBenefitInvalid          = classify(cr.New("benefit input invalid"), ErrValidation)
	ErrBenefitStateInvalid     = classify(cr.New("benefit state transition invalid"), ErrValidation)
	ErrStatsScopeInvalid       = classify(cr.New("stats scope invalid"), ErrValidation)
	ErrMemberInvalid           = classify(cr.New("member id invalid"), ErrValidation)
	ErrBusinessInactive        = classify(cr.New("business inactive"), ErrValidation)
)

func classify(err, class error) error {
	return cr.Mark(err, class)
}

// IsClass 判断错误是否属于指定分类或等于指定错误
func IsClass(err, target error) bool {
	return cr.Is(err, target)
}

// storageError 包装存储层错误：保留原始错误与调用栈，并标记为可重试的存储失败
func storageError(err error, op string) error {
	if err == nil {
		return nil
	}
	if cr.Is(err, ErrStorage) {
		return err
	}
	return cr.Mark(cr.Wrap(err, op), ErrStorage)
}

// validationError 生成带明细的校验错误
func validationError(base error, format string, args ...interface{}) error {
	return cr.Mark(cr.Wrapf(base, format, args...), ErrValidation)
}
