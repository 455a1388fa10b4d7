// Package domain contains the organization aggregate: the tenant itself,
// its memberships, and its invitations.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Organization represents a tenant. The slug is generated once at
// creation and never changed by later renames.
type Organization struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name      string            `gorm:"type:text;not null" json:"name"`
	Slug      string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// Membership represents a durable (organization, user, role) grant.
// A user holds at most one membership per organization, and an
// organization holds at most one membership with the owner role. The
// one-owner rule is backed by a partial unique index in the postgres
// migrations; gorm tags cannot express it, so schemas built from the
// model rely on the service enforcing it.
type Membership struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_memberships_org_user,priority:1" json:"organization_id"`
	UserID      snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_memberships_org_user,priority:2" json:"user_id"`
	Role        string        `gorm:"type:text;not null" json:"role"`
	InvitedByID *snowflake.ID `gorm:"column:invited_by_id;index" json:"invited_by_id,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Membership) TableName() string { return "memberships" }

// InvitationStatus is derived from the stored timestamps, never persisted.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation is a pending email-scoped offer of membership. InvitedByID
// is a weak reference: it becomes nil when the inviting user is deleted.
// A nil ExpiresAt means the invitation never expires. At most one open
// invitation exists per (organization, email); like the one-owner rule,
// the partial unique index behind it lives in the postgres migrations
// only.
type Invitation struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;index" json:"organization_id"`
	Email       string        `gorm:"type:text;not null" json:"email"`
	InvitedByID *snowflake.ID `gorm:"column:invited_by_id;index" json:"invited_by_id,omitempty"`
	Role        string        `gorm:"type:text;not null" json:"role"`
	Token       string        `gorm:"type:text;not null;uniqueIndex:ux_invitations_token" json:"-"`
	ExpiresAt   *time.Time    `gorm:"column:expires_at" json:"expires_at,omitempty"`
	AcceptedAt  *time.Time    `gorm:"column:accepted_at" json:"accepted_at,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "invitations" }

// Accepted reports whether the invitation has been accepted. Acceptance
// is terminal and wins over expiry.
func (i Invitation) Accepted() bool { return i.AcceptedAt != nil }

// Expired reports whether the invitation has passed its expiry without
// being accepted. Expiry is recoverable via resend.
func (i Invitation) Expired(now time.Time) bool {
	if i.Accepted() {
		return false
	}
	return i.ExpiresAt != nil && !i.ExpiresAt.After(now)
}

// Pending reports whether the invitation is still open for acceptance.
func (i Invitation) Pending(now time.Time) bool {
	return !i.Accepted() && !i.Expired(now)
}

// Status derives the lifecycle state from the stored timestamps.
func (i Invitation) Status(now time.Time) InvitationStatus {
	switch {
	case i.Accepted():
		return InvitationAccepted
	case i.Expired(now):
		return InvitationExpired
	default:
		return InvitationPending
	}
}

// NormalizeEmail trims and lowercases an invitation email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
