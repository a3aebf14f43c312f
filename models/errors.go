package models

import (
	"fmt"
	"strings"
)

// ValidationErrors collects every syntactic problem with a request instead of
// stopping at the first one. The API layer returns the full list.
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return strings.Join(v, "; ")
}

func (v ValidationErrors) Messages() []string {
	return []string(v)
}

// NotFoundError is returned when a referenced resource does not exist for the
// requesting company, or has been soft-deleted / deactivated.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found or inactive", e.Resource)
}

// InsufficientQuantityError carries the available balance so callers can show
// the user how much stock the source warehouse actually holds.
type InsufficientQuantityError struct {
	WarehouseName string
	Available     int
	Requested     int
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("insufficient quantity in warehouse %q: available %d, requested %d",
		e.WarehouseName, e.Available, e.Requested)
}

// InternalError wraps unexpected persistence failures after validation passed.
// The underlying cause is logged, not exposed to API clients.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return "stock transfer failed due to an internal error"
}

func (e *InternalError) Unwrap() error {
	return e.Err
}
