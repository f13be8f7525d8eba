// Package validation is the stateless gate every transaction request passes
// before dispatch. Checks are applied in a fixed order and the first failure
// wins; the gate has no side effects.
package validation

import (
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/events"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/utils"
)

// minorUnitExponent is the smallest currency exponent accepted (cents).
const minorUnitExponent = -2

// Error is a request rejection raised before any side effect. No
// compensation is ever needed for a validation failure.
type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Message
}

// ValidatedRequest wraps a request that passed the gate. It can only be
// obtained through Validate, so downstream code never sees a half-checked
// event.
type ValidatedRequest struct {
	req events.TransactionRequest
}

// Request returns the underlying request.
func (v ValidatedRequest) Request() events.TransactionRequest {
	return v.req
}

// Validate applies the gate rules in order: amount, source account format,
// transfer destination, event id format. True event-id uniqueness is the
// idempotency ledger's job, not the gate's.
func Validate(req events.TransactionRequest) (ValidatedRequest, *Error) {
	if !req.Amount.IsPositive() {
		return ValidatedRequest{}, &Error{Field: "amount", Message: "amount must be greater than zero"}
	}
	if req.Amount.Exponent() < minorUnitExponent {
		return ValidatedRequest{}, &Error{Field: "amount", Message: "amount has more precision than the currency minor unit"}
	}
	if !utils.ValidateAccountNumber(req.SourceAccount) {
		return ValidatedRequest{}, &Error{Field: "sourceAccount", Message: "invalid account number format"}
	}
	if req.Type == events.TypeTransfer {
		if req.DestinationAccount == "" {
			return ValidatedRequest{}, &Error{Field: "destinationAccount", Message: "destination account is required for transfers"}
		}
		if !utils.ValidateAccountNumber(req.DestinationAccount) {
			return ValidatedRequest{}, &Error{Field: "destinationAccount", Message: "invalid account number format"}
		}
		if req.DestinationAccount == req.SourceAccount {
			return ValidatedRequest{}, &Error{Field: "destinationAccount", Message: "destination account must differ from source account"}
		}
	}
	if req.EventID == "" {
		return ValidatedRequest{}, &Error{Field: "eventId", Message: "event id is required"}
	}
	if !utils.ValidateEventID(req.EventID) {
		return ValidatedRequest{}, &Error{Field: "eventId", Message: "event id must be a UUID"}
	}
	return ValidatedRequest{req: req}, nil
}
