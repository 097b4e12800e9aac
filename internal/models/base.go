package models

import "github.com/google/uuid"

// ensureID assigns a fresh UUID when the model is created without one,
// so inserts work the same on databases without a server-side default.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// Custom types to match PostgreSQL enums
type MembershipRole string
type PermissionLevel string
type Visibility string

const (
	// Membership Roles
	RoleOwner  MembershipRole = "owner"
	RoleAdmin  MembershipRole = "admin"
	RoleMember MembershipRole = "member"
	RoleGuest  MembershipRole = "guest"

	// Object-level permission grants
	PermissionView     PermissionLevel = "view"
	PermissionComment  PermissionLevel = "comment"
	PermissionFullEdit PermissionLevel = "full_edit"

	// Visibility values accepted at the API boundary
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// roleRank orders roles for privilege comparison: Owner > Admin > Member > Guest.
var roleRank = map[MembershipRole]int{
	RoleGuest:  1,
	RoleMember: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// AtLeast reports whether r carries at least the privilege of other.
// Unknown roles rank below Guest.
func (r MembershipRole) AtLeast(other MembershipRole) bool {
	return roleRank[r] >= roleRank[other]
}

// Valid reports whether r is one of the four known roles.
func (r MembershipRole) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Valid reports whether p is a known grant level.
func (p PermissionLevel) Valid() bool {
	switch p {
	case PermissionView, PermissionComment, PermissionFullEdit:
		return true
	}
	return false
}

// Valid reports whether v is a known visibility value.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Private converts the API-boundary visibility value to the stored flag.
func (v Visibility) Private() bool {
	return v == VisibilityPrivate
}
