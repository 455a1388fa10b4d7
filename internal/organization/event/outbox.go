// Package event persists dispatched organization events to an outbox
// table for downstream consumers.
package event

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/membrane/internal/event"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrganizationEvent is one outbox row. Published is flipped by whatever
// relay drains the table.
type OrganizationEvent struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID      `gorm:"not null;index" json:"org_id"`
	EventType string            `gorm:"type:text;not null" json:"event_type"`
	Payload   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"payload"`
	Published bool              `gorm:"not null;default:false" json:"published"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OrganizationEvent) TableName() string { return "organization_events" }

// Outbox records dispatched events durably.
type Outbox struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewOutbox(db *gorm.DB, genID *snowflake.Node) *Outbox {
	return &Outbox{db: db, genID: genID}
}

// Record writes the event to the outbox. It runs after the triggering
// transaction committed, so a write failure here surfaces to the
// dispatcher without touching the committed mutation.
func (o *Outbox) Record(ctx context.Context, ev event.Context) error {
	orgID := snowflake.ID(0)
	payload := datatypes.JSONMap{}

	if ev.Organization != nil {
		orgID = ev.Organization.ID
		payload["organization_id"] = ev.Organization.ID.String()
	}
	if ev.Membership != nil {
		if orgID == 0 {
			orgID = ev.Membership.OrgID
		}
		payload["organization_id"] = ev.Membership.OrgID.String()
		payload["user_id"] = ev.Membership.UserID.String()
		payload["role"] = ev.Membership.Role
	}
	if ev.Invitation != nil {
		if orgID == 0 {
			orgID = ev.Invitation.OrgID
		}
		payload["invitation_id"] = ev.Invitation.ID.String()
		payload["email"] = ev.Invitation.Email
		payload["invite_role"] = ev.Invitation.Role
	}
	if ev.OldOwner != nil {
		if orgID == 0 {
			orgID = ev.OldOwner.OrgID
		}
		payload["old_owner_user_id"] = ev.OldOwner.UserID.String()
	}
	if ev.NewOwner != nil {
		payload["new_owner_user_id"] = ev.NewOwner.UserID.String()
	}
	if ev.OldRole != "" {
		payload["old_role"] = ev.OldRole
	}
	if ev.NewRole != "" {
		payload["new_role"] = ev.NewRole
	}

	row := &OrganizationEvent{
		ID:        o.genID.Generate(),
		OrgID:     orgID,
		EventType: string(ev.Kind),
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	return o.db.WithContext(ctx).Create(row).Error
}

// RegisterAll subscribes the outbox to every organization event kind.
func (o *Outbox) RegisterAll(dispatcher *event.Dispatcher) {
	for _, kind := range []event.Kind{
		event.OrganizationCreated,
		event.MemberJoined,
		event.MemberRemoved,
		event.RoleChanged,
		event.OwnershipTransferred,
		event.MemberInvited,
	} {
		dispatcher.Register(kind, o.Record)
	}
}
