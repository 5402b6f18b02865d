package service

import (
	"errors"
	"github.com/PayRam/go-fundraising/response"
)

type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindState          ErrorKind = "state"
	KindAuthorization  ErrorKind = "authorization"
	KindNotFound       ErrorKind = "not_found"
	KindInfrastructure ErrorKind = "infrastructure"
)

// Error is a named condition surfaced to callers. Sentinels are compared with errors.Is.
type Error struct {
	Code    string
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

var (
	ErrTooManyActiveCampaigns = newError(KindValidation, "TOO_MANY_ACTIVE_CAMPAIGNS", "tenant already has the maximum number of active campaigns")
	ErrInvalidDateRange       = newError(KindValidation, "INVALID_DATE_RANGE", "start date must be before end date")
	ErrEmptyGoals             = newError(KindValidation, "EMPTY_GOALS", "campaign must define at least one goal")
	ErrInvalidGoal            = newError(KindValidation, "INVALID_GOAL", "goal quantities must be positive and prices non-negative")
	ErrInvalidFrequency       = newError(KindValidation, "INVALID_FREQUENCY", "frequency must be weekly, biweekly or monthly")
	ErrInvalidQuantity        = newError(KindValidation, "INVALID_QUANTITY", "donation quantity must be positive")
	ErrInvalidTargetAmount    = newError(KindValidation, "INVALID_TARGET_AMOUNT", "target amount cannot be negative")
	ErrInvalidFamilies        = newError(KindValidation, "INVALID_FAMILIES", "family counts cannot be negative")

	ErrNotDraft                = newError(KindState, "NOT_DRAFT", "campaign is not in draft")
	ErrNoGoals                 = newError(KindState, "NO_GOALS", "campaign has no goals")
	ErrNoTitle                 = newError(KindState, "NO_TITLE", "campaign has no title")
	ErrNotActive               = newError(KindState, "NOT_ACTIVE", "campaign is not active")
	ErrAlreadyCompleted        = newError(KindState, "ALREADY_COMPLETED", "campaign is already completed")
	ErrCampaignCompleted       = newError(KindState, "CAMPAIGN_COMPLETED", "completed campaigns cannot be modified")
	ErrCampaignCancelled       = newError(KindState, "CAMPAIGN_CANCELLED", "cancelled campaigns cannot be edited")
	ErrCampaignNotActive       = newError(KindState, "CAMPAIGN_NOT_ACTIVE", "campaign is not accepting donations")
	ErrInvalidStatusTransition = newError(KindState, "INVALID_STATUS_TRANSITION", "status transition is not allowed")
	ErrConcurrentUpdate        = newError(KindState, "CONCURRENT_UPDATE", "campaign was modified concurrently, retry the request")

	ErrInsufficientPermissions = newError(KindAuthorization, "INSUFFICIENT_PERMISSIONS", "insufficient permissions")

	ErrNotFound = newError(KindNotFound, "NOT_FOUND", "campaign not found")

	ErrMissingTenant = newError(KindInfrastructure, "MISSING_TENANT", "tenant identifier is required")
)

// ToErrorResponse maps err to its stable code. Unnamed errors are reported as
// INTERNAL_ERROR; their text is only exposed when devMode is set.
func ToErrorResponse(err error, devMode bool) response.ErrorResponse {
	var named *Error
	if errors.As(err, &named) && named.Kind != KindInfrastructure {
		return response.ErrorResponse{Code: named.Code, Message: named.Message}
	}
	res := response.ErrorResponse{Code: "INTERNAL_ERROR", Message: "internal error"}
	if devMode && err != nil {
		res.Detail = err.Error()
	}
	return res
}
