package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository abstracts persistence for the organization aggregate.
// Finders return (nil, nil) when the row does not exist; create and
// update surface unique-constraint violations unchanged so the service
// can resolve races idempotently.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id snowflake.ID) (*Organization, error)
	DeleteOrganization(ctx context.Context, id snowflake.ID) error

	CreateMembership(ctx context.Context, m *Membership) error
	GetMembership(ctx context.Context, orgID, userID snowflake.ID) (*Membership, error)
	GetOwner(ctx context.Context, orgID snowflake.ID) (*Membership, error)
	UpdateMembershipRole(ctx context.Context, id snowflake.ID, role string) error
	DeleteMembership(ctx context.Context, id snowflake.ID) error
	ListMemberships(ctx context.Context, orgID snowflake.ID) ([]Membership, error)
	CountOwners(ctx context.Context, orgID snowflake.ID) (int64, error)

	CreateInvitation(ctx context.Context, inv *Invitation) error
	UpdateInvitation(ctx context.Context, inv *Invitation) error
	GetInvitation(ctx context.Context, id snowflake.ID) (*Invitation, error)
	GetInvitationByToken(ctx context.Context, tokenValue string) (*Invitation, error)
	FindOpenInvitation(ctx context.Context, orgID snowflake.ID, email string) (*Invitation, error)
	ListInvitations(ctx context.Context, orgID snowflake.ID) ([]Invitation, error)
}
