package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Service exposes the organization action API. Every method resolves the
// acting user from the explicit actorID argument when non-zero, falling
// back to the request context; failing both yields ErrMissingActor.
type Service interface {
	// CreateOrganization is the bootstrap path: it creates the
	// organization together with its single initial owner membership.
	CreateOrganization(ctx context.Context, ownerID snowflake.ID, req CreateOrganizationRequest) (*Organization, error)
	GetOrganization(ctx context.Context, orgID snowflake.ID) (*Organization, error)
	DeleteOrganization(ctx context.Context, actorID, orgID snowflake.ID) error

	// AddMember is idempotent: adding an existing member returns the
	// stored membership unchanged and does not update its role.
	AddMember(ctx context.Context, actorID, orgID, userID snowflake.ID, roleName string) (*Membership, error)
	RemoveMember(ctx context.Context, actorID, orgID, userID snowflake.ID) error
	ChangeRole(ctx context.Context, actorID, orgID, userID snowflake.ID, to string) (*Membership, error)
	TransferOwnership(ctx context.Context, actorID, orgID, targetID snowflake.ID) (*Membership, error)
	ListMembers(ctx context.Context, actorID, orgID snowflake.ID) ([]Membership, error)

	SendInvite(ctx context.Context, actorID, orgID snowflake.ID, req InviteRequest) (*Invitation, error)
	AcceptInvite(ctx context.Context, userID snowflake.ID, tokenValue string, opts AcceptOptions) (*Membership, error)
	ResendInvite(ctx context.Context, actorID, inviteID snowflake.ID) (*Invitation, error)
	ListInvitations(ctx context.Context, actorID, orgID snowflake.ID) ([]Invitation, error)
}

type CreateOrganizationRequest struct {
	Name     string
	Metadata map[string]any
}

type InviteRequest struct {
	Email string
	Role  string
}

// AcceptOptions tweaks invitation acceptance. SkipEmailCheck bypasses
// the registered-email match, for flows where the token alone is proof.
type AcceptOptions struct {
	SkipEmailCheck bool
}

var (
	ErrInvalidName               = errors.New("invalid_name")
	ErrInvalidRole               = errors.New("invalid_role")
	ErrInvalidEmail              = errors.New("invalid_email")
	ErrMissingActor              = errors.New("missing_actor")
	ErrNotAMember                = errors.New("not_a_member")
	ErrNotAuthorized             = errors.New("not_authorized")
	ErrNotFound                  = errors.New("not_found")
	ErrOwnerConflict             = errors.New("owner_conflict")
	ErrNoOwnerPresent            = errors.New("no_owner_present")
	ErrCannotRemoveOwner         = errors.New("cannot_remove_owner")
	ErrCannotDemoteOwner         = errors.New("cannot_demote_owner")
	ErrCannotTransferToNonAdmin  = errors.New("cannot_transfer_to_non_admin")
	ErrAlreadyAMember            = errors.New("already_a_member")
	ErrCannotInviteAsOwner       = errors.New("cannot_invite_as_owner")
	ErrCannotAcceptAsOwner       = errors.New("cannot_accept_as_owner")
	ErrEmailMismatch             = errors.New("email_mismatch")
	ErrInvitationExpired         = errors.New("invitation_expired")
	ErrInvitationAlreadyAccepted = errors.New("invitation_already_accepted")
)
