/*
errors.go - Centralized error taxonomy for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is/errors.As; the api package maps these to
  HTTP status codes.

ERROR CATEGORIES:
  1. Not found        - entity or referenced parent missing
  2. Unauthorized     - permission gate denied the mutation
  3. Validation       - bad input or inactive/missing reference
  4. Confirmation     - cascade execute called without explicit confirm
  5. Restore state    - restoring a child under a still-trashed parent

PROPAGATION RULES:
  Validation and authorization errors surface before any store write.
  Recalculation failures while cascading upward are logged to the
  operational channel and never returned: the leaf change stays applied
  and a later retrigger converges stale ancestors.

SEE ALSO:
  - recalc.go: logged-not-propagated ancestor failures
  - cascade.go: confirmation and restore-state checks
*/
package engine

import (
	"errors"
	"fmt"

	"github.com/warp/budget-engine/budget"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEntityNotFound is returned when an entity or a referenced
	// parent does not exist. Store implementations return this from Get.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrUnauthorized is returned when the permission gate denies a
	// mutating operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation is returned for invalid input or an inactive or
	// missing reference, checked before any store write.
	ErrValidation = errors.New("validation failed")

	// ErrConfirmationRequired is returned when a cascade execute is
	// called without confirmed=true. Defends against destructive calls
	// that bypass the preview step.
	ErrConfirmationRequired = errors.New("confirmation required")

	// ErrInvalidRestoreState is returned when restoring an entity whose
	// parent is still in trash. The parent must be restored first.
	ErrInvalidRestoreState = errors.New("invalid restore state")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type NotFoundError struct {
	Type budget.EntityType
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Type, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrEntityNotFound }

type UnauthorizedError struct {
	ActorID  string
	Action   string
	Resource budget.EntityType
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("actor %q may not %s %s", e.ActorID, e.Action, e.Resource)
}

func (e *UnauthorizedError) Unwrap() error { return ErrUnauthorized }

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type ConfirmationRequiredError struct {
	Type budget.EntityType
	ID   string
}

func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("cascade delete of %s %q requires explicit confirmation", e.Type, e.ID)
}

func (e *ConfirmationRequiredError) Unwrap() error { return ErrConfirmationRequired }

type InvalidRestoreStateError struct {
	Type       budget.EntityType
	ID         string
	ParentType budget.EntityType
	ParentID   string
}

func (e *InvalidRestoreStateError) Error() string {
	return fmt.Sprintf("cannot restore %s %q: parent %s %q is still in trash",
		e.Type, e.ID, e.ParentType, e.ParentID)
}

func (e *InvalidRestoreStateError) Unwrap() error { return ErrInvalidRestoreState }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrEntityNotFound) }

// IsClientError reports whether the error is due to invalid caller input
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConfirmationRequired) ||
		errors.Is(err, ErrInvalidRestoreState)
}
