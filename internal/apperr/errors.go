// Package apperr defines the error taxonomy shared by the authorization,
// ordering, and lifecycle components. A single tagged Error type replaces
// per-entity error classes; callers match on Kind (via errors.Is against
// the Kind sentinels) to build a user-facing response.
package apperr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind classifies an Error. The set is closed: every error the engine
// returns carries exactly one of these.
type Kind string

const (
	KindNotFound               Kind = "not_found"
	KindInactive               Kind = "inactive"
	KindNotAMember             Kind = "not_a_member"
	KindUnexpectedRole         Kind = "unexpected_role"
	KindModificationNotAllowed Kind = "modification_not_allowed"
	KindInvalidOrder           Kind = "invalid_order"
	KindUnsupportedVisibility  Kind = "unsupported_visibility"
	KindUnsupportedPermission  Kind = "unsupported_permission"
	KindOrderConflict          Kind = "order_conflict"
)

// EntityKind names the hierarchy level an error refers to.
type EntityKind string

const (
	EntityUser       EntityKind = "user"
	EntityAccount    EntityKind = "account"
	EntityWorkspace  EntityKind = "workspace"
	EntityMembership EntityKind = "membership"
	EntitySpace      EntityKind = "space"
	EntityFolder     EntityKind = "folder"
	EntityList       EntityKind = "list"
	EntityTask       EntityKind = "task"
)

// Error is the tagged error type for the whole engine.
type Error struct {
	Kind   Kind
	Entity EntityKind
	ID     uuid.UUID

	// NotAMember / ModificationNotAllowed context.
	UserID      uuid.UUID
	WorkspaceID uuid.UUID

	// UnexpectedRole / UnsupportedVisibility context.
	Value string

	// InvalidOrder context: requested position and the valid upper bound.
	Requested int
	ValidMax  int
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
	case KindInactive:
		return fmt.Sprintf("%s %s is inactive", e.Entity, e.ID)
	case KindNotAMember:
		return fmt.Sprintf("user %s is not a member of workspace %s", e.UserID, e.WorkspaceID)
	case KindUnexpectedRole:
		return fmt.Sprintf("unexpected role %q", e.Value)
	case KindModificationNotAllowed:
		return fmt.Sprintf("modification not allowed for user %s", e.UserID)
	case KindInvalidOrder:
		return fmt.Sprintf("invalid order %d, valid range [1, %d]", e.Requested, e.ValidMax)
	case KindUnsupportedVisibility:
		return fmt.Sprintf("unsupported visibility %q", e.Value)
	case KindUnsupportedPermission:
		return fmt.Sprintf("unsupported permission level %q", e.Value)
	case KindOrderConflict:
		return "concurrent reorder invalidated the order snapshot"
	default:
		return string(e.Kind)
	}
}

// Is lets errors.Is match any *Error of the same Kind, so callers can
// write errors.Is(err, apperr.ErrOrderConflict) without caring about the
// payload fields.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Kind sentinels for errors.Is matching.
var (
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrInactive               = &Error{Kind: KindInactive}
	ErrNotAMember             = &Error{Kind: KindNotAMember}
	ErrUnexpectedRole         = &Error{Kind: KindUnexpectedRole}
	ErrModificationNotAllowed = &Error{Kind: KindModificationNotAllowed}
	ErrInvalidOrder           = &Error{Kind: KindInvalidOrder}
	ErrUnsupportedVisibility  = &Error{Kind: KindUnsupportedVisibility}
	ErrUnsupportedPermission  = &Error{Kind: KindUnsupportedPermission}
	ErrOrderConflict          = &Error{Kind: KindOrderConflict}
)

func NotFound(entity EntityKind, id uuid.UUID) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id}
}

func Inactive(entity EntityKind, id uuid.UUID) *Error {
	return &Error{Kind: KindInactive, Entity: entity, ID: id}
}

func NotAMember(userID, workspaceID uuid.UUID) *Error {
	return &Error{Kind: KindNotAMember, UserID: userID, WorkspaceID: workspaceID}
}

func UnexpectedRole(role string) *Error {
	return &Error{Kind: KindUnexpectedRole, Value: role}
}

func ModificationNotAllowed(userID uuid.UUID) *Error {
	return &Error{Kind: KindModificationNotAllowed, UserID: userID}
}

func InvalidOrder(requested, validMax int) *Error {
	return &Error{Kind: KindInvalidOrder, Requested: requested, ValidMax: validMax}
}

func UnsupportedVisibility(value string) *Error {
	return &Error{Kind: KindUnsupportedVisibility, Value: value}
}

func UnsupportedPermission(value string) *Error {
	return &Error{Kind: KindUnsupportedPermission, Value: value}
}

func OrderConflict() *Error {
	return &Error{Kind: KindOrderConflict}
}

// Retryable reports whether the caller may retry the operation.
// OrderConflict is the only transient kind; everything else is terminal
// for the current call.
func Retryable(err error) bool {
	return errors.Is(err, ErrOrderConflict)
}
