package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeRequestInvalid represents a malformed API request body.
	CodeRequestInvalid Code = "REQUEST_INVALID"

	// Template configuration errors
	CodeTemplateTitleEmpty        Code = "TEMPLATE_TITLE_EMPTY"
	CodeTemplateStampTotalInvalid Code = "TEMPLATE_STAMP_TOTAL_INVALID"
	CodeTemplateLimitInvalid      Code = "TEMPLATE_LIMIT_INVALID"
	CodeTemplateWindowInvalid     Code = "TEMPLATE_WINDOW_INVALID"
	CodeTemplateCompanyMissing    Code = "TEMPLATE_COMPANY_MISSING"

	// Rule configuration errors
	CodeRuleKindUnknown    Code = "RULE_KIND_UNKNOWN"
	CodeRuleConfigInvalid  Code = "RULE_CONFIG_INVALID"
	CodeRuleTemplateEmpty  Code = "RULE_TEMPLATE_EMPTY"
	CodeRewardNameEmpty    Code = "REWARD_NAME_EMPTY"
	CodeRewardStampInvalid Code = "REWARD_STAMP_NO_INVALID"
	CodeRewardStockInvalid Code = "REWARD_STOCK_INVALID"

	// Event ingestion errors
	CodeEventSourceIDEmpty Code = "EVENT_SOURCE_ID_EMPTY"
	CodeEventUserEmpty     Code = "EVENT_USER_EMPTY"
	CodeEventTemplateEmpty Code = "EVENT_TEMPLATE_EMPTY"
	CodeEventAmountInvalid Code = "EVENT_AMOUNT_INVALID"
	CodeEventTimeMissing   Code = "EVENT_TIME_MISSING"

	// Issuance limit outcomes
	CodeTemplateInactive      Code = "TEMPLATE_INACTIVE"
	CodeTemplateOutsideWindow Code = "TEMPLATE_OUTSIDE_WINDOW"
	CodePerUserLimitReached   Code = "PER_USER_LIMIT_REACHED"
	CodeEmissionLimitReached  Code = "EMISSION_LIMIT_REACHED"

	// Progression errors
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"
	CodeStampRangeExceeded  Code = "STAMP_RANGE_EXCEEDED"

	// Redemption outcomes
	CodeRewardNotUnlocked     Code = "REWARD_NOT_UNLOCKED"
	CodeRewardAlreadyRedeemed Code = "REWARD_ALREADY_REDEEMED"
	CodeRewardStockExhausted  Code = "REWARD_STOCK_EXHAUSTED"
	CodeTokenInvalid          Code = "TOKEN_INVALID"
	CodeTokenAlreadyUsed      Code = "TOKEN_ALREADY_USED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeRequestInvalid,
		CodeTemplateTitleEmpty,
		CodeTemplateStampTotalInvalid,
		CodeTemplateLimitInvalid,
		CodeTemplateWindowInvalid,
		CodeTemplateCompanyMissing,
		CodeRuleKindUnknown,
		CodeRuleConfigInvalid,
		CodeRuleTemplateEmpty,
		CodeRewardNameEmpty,
		CodeRewardStampInvalid,
		CodeRewardStockInvalid,
		CodeEventSourceIDEmpty,
		CodeEventUserEmpty,
		CodeEventTemplateEmpty,
		CodeEventAmountInvalid,
		CodeEventTimeMissing,
		CodeTokenInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeTemplateInactive,
		CodeTemplateOutsideWindow,
		CodePerUserLimitReached,
		CodeEmissionLimitReached,
		CodeStampRangeExceeded,
		CodeRewardNotUnlocked,
		CodeRewardStockExhausted,
		CodeTokenAlreadyUsed:
		return codes.FailedPrecondition

	// Aborted - optimistic concurrency lost the race after retries
	case CodeConcurrencyConflict:
		return codes.Aborted

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodeRewardAlreadyRedeemed:
		return codes.AlreadyExists

	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to HTTP status codes for the JSON API.
func (c Code) HTTPStatus() int {
	switch c.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusUnprocessableEntity
	case codes.Aborted:
		return http.StatusConflict
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
