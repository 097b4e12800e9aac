package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesOnKind(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name     string
		err      error
		sentinel *Error
	}{
		{"not found", NotFound(EntitySpace, id), ErrNotFound},
		{"inactive", Inactive(EntityList, id), ErrInactive},
		{"not a member", NotAMember(id, uuid.New()), ErrNotAMember},
		{"unexpected role", UnexpectedRole("superuser"), ErrUnexpectedRole},
		{"modification not allowed", ModificationNotAllowed(id), ErrModificationNotAllowed},
		{"invalid order", InvalidOrder(9, 3), ErrInvalidOrder},
		{"unsupported visibility", UnsupportedVisibility("hidden"), ErrUnsupportedVisibility},
		{"unsupported permission", UnsupportedPermission("superuser"), ErrUnsupportedPermission},
		{"order conflict", OrderConflict(), ErrOrderConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			for _, other := range tests {
				if other.sentinel != tt.sentinel {
					assert.NotErrorIs(t, tt.err, other.sentinel)
				}
			}
		})
	}
}

func TestErrorsIsMatchesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("reorder space: %w", OrderConflict())
	assert.ErrorIs(t, err, ErrOrderConflict)

	var tagged *Error
	assert.True(t, errors.As(err, &tagged))
	assert.Equal(t, KindOrderConflict, tagged.Kind)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(OrderConflict()))
	assert.False(t, Retryable(InvalidOrder(5, 3)))
	assert.False(t, Retryable(NotFound(EntityTask, uuid.New())))
	assert.False(t, Retryable(errors.New("plain")))
	assert.False(t, Retryable(nil))
}

func TestErrorMessages(t *testing.T) {
	id := uuid.New()
	assert.Contains(t, NotFound(EntityFolder, id).Error(), "folder")
	assert.Contains(t, NotFound(EntityFolder, id).Error(), id.String())
	assert.Contains(t, InvalidOrder(7, 4).Error(), "[1, 4]")
	assert.Contains(t, UnexpectedRole("root").Error(), `"root"`)
	assert.Contains(t, UnsupportedPermission("superuser").Error(), `"superuser"`)
}
