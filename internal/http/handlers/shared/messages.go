package shared

// messages 错误码对应的提示文案
var messages = map[string]string{
	"error.bad_request":               "invalid request",
	"error.internal":                  "internal error",
	"error.member_id_invalid":         "member id is invalid",
	"error.benefit_id_invalid":        "benefit id is invalid",
	"error.business_id_invalid":       "business id is invalid",
	"error.member_not_found":          "member not found",
	"error.member_inactive":           "member is inactive",
	"error.benefit_not_found":         "benefit not found",
	"error.benefit_inactive":          "benefit is no longer available",
	"error.business_not_found":        "business not found",
	"error.business_inactive":         "business is inactive",
	"error.association_not_found":     "association not found",
	"error.benefit_not_started":       "benefit has not started yet",
	"error.benefit_expired":           "benefit has expired",
	"error.benefit_usage_limit":       "benefit redemption limit reached",
	"error.benefit_per_member_limit":  "member redemption limit reached for this benefit",
	"error.benefit_access_denied":     "member is not entitled to this benefit",
	"error.benefit_business_mismatch": "benefit belongs to another business",
	"error.benefit_invalid":           "benefit input is invalid",
	"error.benefit_state_invalid":     "benefit cannot change to the requested state",
	"error.redeem_invalid":            "redeem request is invalid",
	"error.redeem_failed":             "redeem failed, please retry",
	"error.benefit_list_failed":       "failed to list benefits",
	"error.benefit_save_failed":       "failed to save benefit",
	"error.redemption_list_failed":    "failed to list redemptions",
	"error.stats_scope_invalid":       "stats scope is invalid",
	"error.stats_failed":              "failed to load stats",
	"error.subscription_unavailable":  "subscriptions are unavailable",
	"error.maintenance_failed":        "maintenance task failed",
	"error.rate_limit_unavailable":    "rate limiter unavailable",
	"error.rate_limited":              "too many requests, retry in %d seconds",
}

// Message 按错误码取提示文案，未登记时原样返回错误码
func Message(key string) string {
	if msg, ok := messages[key]; ok {
		return msg
	}
	return key
}
