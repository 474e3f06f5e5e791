package domain

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, classified per the error-handling design: every
// error the compliance pipeline returns wraps exactly one of these so the
// HTTP boundary can map it to a status code and response shape with
// errors.Is, without string-matching messages.
var (
	// ErrValidation covers rejected input: bad direction, non-positive
	// shares, unknown fund/security/ticker, malformed or forbidden rule
	// expressions.
	ErrValidation = errors.New("validation error")

	// ErrAvailability covers business-logical refusals: insufficient
	// cash, insufficient shares, zero-cash trading.
	ErrAvailability = errors.New("availability error")

	// ErrEvaluation covers cases where the compliance engine cannot
	// reach a verdict: missing price, null shares-outstanding on a
	// for-each match, zero denominator.
	ErrEvaluation = errors.New("evaluation error")

	// ErrConflict covers state-machine refusals: override/cancel on a
	// trade in a forbidden state, double-attach of a rule to a fund,
	// re-overriding an already-overridden alert.
	ErrConflict = errors.New("conflict error")

	// ErrNotFound covers missing entities by id.
	ErrNotFound = errors.New("not found")

	// ErrInternal covers writer failures and unexpected exceptions.
	ErrInternal = errors.New("internal error")
)

// FieldError is one field-level validation failure, reported alongside
// ErrValidation where the caller can attribute it to a specific input.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError carries one or more FieldErrors plus a top-level message.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError with no field-level detail.
func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}

// NewFieldValidationError builds a ValidationError carrying field errors.
func NewFieldValidationError(msg string, fields ...FieldError) error {
	return &ValidationError{Message: msg, Fields: fields}
}

// AvailabilityError carries the remedial guidance spec.md §4.6 requires:
// e.g. shortfall amount and maximum affordable share count.
type AvailabilityError struct {
	Message string
}

func (e *AvailabilityError) Error() string { return e.Message }
func (e *AvailabilityError) Unwrap() error { return ErrAvailability }

// NewAvailabilityError builds an AvailabilityError from a formatted message.
func NewAvailabilityError(format string, args ...any) error {
	return &AvailabilityError{Message: fmt.Sprintf(format, args...)}
}

// EvaluationError reports that a single rule could not be decided.
type EvaluationError struct {
	RuleID  int64
	Message string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("rule %d: %s", e.RuleID, e.Message)
}
func (e *EvaluationError) Unwrap() error { return ErrEvaluation }

// NewEvaluationError builds an EvaluationError for the given rule.
func NewEvaluationError(ruleID int64, format string, args ...any) error {
	return &EvaluationError{RuleID: ruleID, Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports a state-machine refusal.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }
func (e *ConflictError) Unwrap() error { return ErrConflict }

// NewConflictError builds a ConflictError from a formatted message.
func NewConflictError(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing entity by id.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError builds a NotFoundError for the given entity/id.
func NewNotFoundError(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: id}
}
