package domain

import (
	"fmt"

	"github.com/nexusengine/liveauction/internal/money"
)

// ErrorCode enumerates the closed set of admission-path error kinds from
// SPEC_FULL.md §4.1/§6. These are kinds, not Go error types with distinct
// shapes — every failure path produces an *AdmissionError carrying one of
// these codes plus an optional details payload for UI presentation.
type ErrorCode string

const (
	ErrNotFound          ErrorCode = "AUCTION_NOT_FOUND"
	ErrInvalidAmount     ErrorCode = "INVALID_BID_AMOUNT"
	ErrNotActive         ErrorCode = "AUCTION_NOT_ACTIVE"
	ErrEnded             ErrorCode = "AUCTION_ENDED"
	ErrSellerCannotBid   ErrorCode = "SELLER_CANNOT_BID"
	ErrTooLow            ErrorCode = "BID_TOO_LOW"
	ErrRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrAlreadyFinal      ErrorCode = "ALREADY_FINAL"
	ErrNotEnded          ErrorCode = "NOT_ENDED"
)

// TooLowDetails is the structured payload for ErrTooLow, matching the
// BID_REJECTED wire shape in SPEC_FULL.md §6.
type TooLowDetails struct {
	CurrentBid  money.Amount `json:"current_bid"`
	MinimumBid  money.Amount `json:"minimum_bid"`
	YourBid     money.Amount `json:"your_bid"`
	IsFirstBid  bool         `json:"is_first_bid"`
}

// AdmissionError is returned by the hot-state primitives and surfaced
// verbatim (code + message + optional details) to the originating client.
type AdmissionError struct {
	Code    ErrorCode
	Message string
	Details interface{}
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds a plain AdmissionError with no structured details.
func NewError(code ErrorCode, message string) *AdmissionError {
	return &AdmissionError{Code: code, Message: message}
}
