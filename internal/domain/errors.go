package domain

import "fmt"

// Error types for consistent error handling across the service.

// ErrNotFound indicates a resource was not found or is not owned by the caller.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in a record store or upstream call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a malformed or missing field.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInvalidAmount indicates a non-positive monetary value.
type ErrInvalidAmount struct {
	Field  string
	Amount float64
}

func (e *ErrInvalidAmount) Error() string {
	return fmt.Sprintf("invalid amount on '%s': %.2f must be greater than zero", e.Field, e.Amount)
}

// ErrDuplicateBudget indicates a budget already exists for the same
// category, period and start date.
type ErrDuplicateBudget struct {
	Category  string
	Period    string
	StartDate string
}

func (e *ErrDuplicateBudget) Error() string {
	return fmt.Sprintf("a %s budget for '%s' starting %s already exists", e.Period, e.Category, e.StartDate)
}

// ErrInvalidTransition indicates a state change the entity does not allow.
type ErrInvalidTransition struct {
	Resource string
	From     string
	To       string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Resource, e.From, e.To)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict indicates a resource already exists (e.g. e-mail taken).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}
