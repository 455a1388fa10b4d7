package event

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/membrane/internal/event"
	"github.com/smallbiznis/membrane/internal/organization/domain"
	"github.com/smallbiznis/membrane/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOutbox(t *testing.T) *Outbox {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&OrganizationEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewOutbox(conn, node)
}

func TestOutboxRecordsMembershipEvent(t *testing.T) {
	outbox := newTestOutbox(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	orgID := node.Generate()
	userID := node.Generate()

	err = outbox.Record(context.Background(), event.Context{
		Kind: event.MemberJoined,
		Membership: &domain.Membership{
			ID:     node.Generate(),
			OrgID:  orgID,
			UserID: userID,
			Role:   "member",
		},
	})
	require.NoError(t, err)

	var rows []OrganizationEvent
	require.NoError(t, outbox.db.Find(&rows).Error)
	require.Len(t, rows, 1)

	assert.Equal(t, orgID, rows[0].OrgID)
	assert.Equal(t, string(event.MemberJoined), rows[0].EventType)
	assert.False(t, rows[0].Published)
	assert.Equal(t, userID.String(), rows[0].Payload["user_id"])
	assert.Equal(t, "member", rows[0].Payload["role"])
}

func TestOutboxSubscribesToAllKinds(t *testing.T) {
	outbox := newTestOutbox(t)
	dispatcher := event.NewDispatcher()
	outbox.RegisterAll(dispatcher)

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	orgID := node.Generate()

	for _, kind := range []event.Kind{
		event.OrganizationCreated,
		event.MemberRemoved,
		event.RoleChanged,
	} {
		err := dispatcher.Dispatch(context.Background(), event.Context{
			Kind:         kind,
			Organization: &domain.Organization{ID: orgID, Name: "Acme", Slug: "acme"},
		})
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, outbox.db.Model(&OrganizationEvent{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}
