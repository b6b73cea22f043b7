package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeTemplateTitleEmpty        = "TEMPLATE_TITLE_EMPTY"
	CodeTemplateStampTotalInvalid = "TEMPLATE_STAMP_TOTAL_INVALID"
	CodeTemplateLimitInvalid      = "TEMPLATE_LIMIT_INVALID"
	CodeTemplateWindowInvalid     = "TEMPLATE_WINDOW_INVALID"
	CodeTemplateCompanyMissing    = "TEMPLATE_COMPANY_MISSING"
	CodeRuleKindUnknown           = "RULE_KIND_UNKNOWN"
	CodeRuleConfigInvalid         = "RULE_CONFIG_INVALID"
	CodeRuleTemplateEmpty         = "RULE_TEMPLATE_EMPTY"
	CodeRewardNameEmpty           = "REWARD_NAME_EMPTY"
	CodeRewardStampInvalid        = "REWARD_STAMP_NO_INVALID"
	CodeRewardStockInvalid        = "REWARD_STOCK_INVALID"
	CodeEventSourceIDEmpty        = "EVENT_SOURCE_ID_EMPTY"
	CodeEventUserEmpty            = "EVENT_USER_EMPTY"
	CodeEventTemplateEmpty        = "EVENT_TEMPLATE_EMPTY"
	CodeEventAmountInvalid        = "EVENT_AMOUNT_INVALID"
	CodeEventTimeMissing          = "EVENT_TIME_MISSING"
	CodeRequestInvalid            = "REQUEST_INVALID"
	CodeTemplateInactive          = "TEMPLATE_INACTIVE"
	CodeTemplateOutsideWindow     = "TEMPLATE_OUTSIDE_WINDOW"
	CodePerUserLimitReached       = "PER_USER_LIMIT_REACHED"
	CodeEmissionLimitReached      = "EMISSION_LIMIT_REACHED"
	CodeConcurrencyConflict       = "CONCURRENCY_CONFLICT"
	CodeStampRangeExceeded        = "STAMP_RANGE_EXCEEDED"
	CodeRewardNotUnlocked         = "REWARD_NOT_UNLOCKED"
	CodeRewardAlreadyRedeemed     = "REWARD_ALREADY_REDEEMED"
	CodeRewardStockExhausted      = "REWARD_STOCK_EXHAUSTED"
	CodeTokenInvalid              = "TOKEN_INVALID"
	CodeTokenAlreadyUsed          = "TOKEN_ALREADY_USED"
	CodeNotFound                  = "NOT_FOUND"
)

var enUS = map[Code]string{
	CodeTemplateTitleEmpty:        "Card title is required.",
	CodeTemplateStampTotalInvalid: "Stamp total must be at least 1.",
	CodeTemplateLimitInvalid:      "Card limits must be positive.",
	CodeTemplateWindowInvalid:     "Card validity window end must come after its start.",
	CodeTemplateCompanyMissing:    "Card owner company is required.",
	CodeRuleKindUnknown:           "Unknown rule kind {{.Kind}}.",
	CodeRuleConfigInvalid:         "Rule configuration is invalid: {{.Reason}}.",
	CodeRuleTemplateEmpty:         "Rule must belong to a card template.",
	CodeRewardNameEmpty:           "Reward name is required.",
	CodeRewardStampInvalid:        "Reward stamp number must fall within the card.",
	CodeRewardStockInvalid:        "Reward stock must not be negative.",
	CodeEventSourceIDEmpty:        "Event idempotency key is required.",
	CodeEventUserEmpty:            "Event user reference is required.",
	CodeEventTemplateEmpty:        "Event card template reference is required.",
	CodeEventAmountInvalid:        "Event amount must not be negative.",
	CodeEventTimeMissing:          "Event time is required.",
	CodeRequestInvalid:            "The request body could not be read.",
	CodeTemplateInactive:          "This card is no longer being issued.",
	CodeTemplateOutsideWindow:     "This card is outside its validity window.",
	CodePerUserLimitReached:       "You already hold the maximum number of these cards.",
	CodeEmissionLimitReached:      "All cards of this kind have been issued.",
	CodeConcurrencyConflict:       "The card was updated concurrently; please retry.",
	CodeStampRangeExceeded:        "The card cannot hold more stamps.",
	CodeRewardNotUnlocked:         "This reward is not unlocked yet.",
	CodeRewardAlreadyRedeemed:     "This reward was already redeemed on this card.",
	CodeRewardStockExhausted:      "This reward is out of stock.",
	CodeTokenInvalid:              "The redemption code is not valid.",
	CodeTokenAlreadyUsed:          "The redemption code was already used.",
	CodeNotFound:                  "The requested record was not found.",
}
