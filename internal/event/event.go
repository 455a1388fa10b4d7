// Package event delivers typed notifications about organization
// lifecycle changes to registered handlers. Dispatch runs after the
// triggering mutation has committed: a failing handler stops later
// handlers but never rolls back persisted state.
package event

import (
	organizationdomain "github.com/smallbiznis/membrane/internal/organization/domain"
	userdomain "github.com/smallbiznis/membrane/internal/user/domain"
)

// Kind identifies an event type.
type Kind string

const (
	OrganizationCreated  Kind = "organization.created"
	MemberJoined         Kind = "member.joined"
	MemberRemoved        Kind = "member.removed"
	RoleChanged          Kind = "role.changed"
	OwnershipTransferred Kind = "ownership.transferred"
	MemberInvited        Kind = "member.invited"
)

// Context carries event data. Only the fields relevant to the event kind
// are populated; absent fields stay nil. Treat values as read-only after
// construction.
type Context struct {
	Kind Kind

	Organization *organizationdomain.Organization
	User         *userdomain.User
	Membership   *organizationdomain.Membership
	Invitation   *organizationdomain.Invitation

	InvitedBy *userdomain.User
	RemovedBy *userdomain.User
	ChangedBy *userdomain.User

	OldRole string
	NewRole string

	OldOwner *organizationdomain.Membership
	NewOwner *organizationdomain.Membership

	Metadata map[string]any
}
