package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/membrane/internal/actor"
	"github.com/smallbiznis/membrane/internal/clock"
	"github.com/smallbiznis/membrane/internal/config"
	"github.com/smallbiznis/membrane/internal/event"
	"github.com/smallbiznis/membrane/internal/organization/domain"
	"github.com/smallbiznis/membrane/internal/organization/repository"
	"github.com/smallbiznis/membrane/internal/role"
	"github.com/smallbiznis/membrane/internal/token"
	userdomain "github.com/smallbiznis/membrane/internal/user/domain"
	userrepository "github.com/smallbiznis/membrane/internal/user/repository"
	"github.com/smallbiznis/membrane/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type testEnv struct {
	svc        domain.Service
	repo       domain.Repository
	users      userdomain.Repository
	clk        *clock.FakeClock
	node       *snowflake.Node
	dispatcher *event.Dispatcher
	db         *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)

	err = conn.AutoMigrate(
		&userdomain.User{},
		&domain.Organization{},
		&domain.Membership{},
		&domain.Invitation{},
	)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	ttl := 72 * time.Hour
	cfg := config.Config{
		InvitationTTL:     &ttl,
		DefaultInviteRole: role.Member,
	}

	repo := repository.NewRepository(conn)
	users := userrepository.NewRepository(conn)
	dispatcher := event.NewDispatcher()
	clk := clock.NewFakeClock(time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC))

	svc := NewService(ServiceParam{
		DB:         conn,
		Log:        zap.NewNop(),
		Cfg:        cfg,
		Repo:       repo,
		Users:      users,
		Roles:      role.NewRegistry(),
		Tokens:     token.New(),
		Clock:      clk,
		GenID:      node,
		Dispatcher: dispatcher,
	})

	return &testEnv{
		svc:        svc,
		repo:       repo,
		users:      users,
		clk:        clk,
		node:       node,
		dispatcher: dispatcher,
		db:         conn,
	}
}

func (e *testEnv) createUser(t *testing.T, email string) *userdomain.User {
	t.Helper()
	u := &userdomain.User{
		ID:         e.node.Generate(),
		ExternalID: uuid.NewString(),
		Email:      email,
		Metadata:   datatypes.JSONMap{},
		CreatedAt:  e.clk.Now(),
		UpdatedAt:  e.clk.Now(),
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *testEnv) createOrg(t *testing.T, ownerID snowflake.ID, name string) *domain.Organization {
	t.Helper()
	org, err := e.svc.CreateOrganization(context.Background(), ownerID, domain.CreateOrganizationRequest{Name: name})
	require.NoError(t, err)
	return org
}

func (e *testEnv) ownerCount(t *testing.T, orgID snowflake.ID) int64 {
	t.Helper()
	n, err := e.repo.CountOwners(context.Background(), orgID)
	require.NoError(t, err)
	return n
}

func TestCreateOrganizationBootstrapsOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "alice@acme.test")

	org, err := env.svc.CreateOrganization(ctx, owner.ID, domain.CreateOrganizationRequest{Name: "Acme Corp"})
	require.NoError(t, err)
	assert.Equal(t, "acme-corp", org.Slug)

	m, err := env.repo.GetMembership(ctx, org.ID, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, role.Owner, m.Role)
	assert.Equal(t, int64(1), env.ownerCount(t, org.ID))
}

func TestCreateOrganizationRejectsBlankName(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "alice@acme.test")

	_, err := env.svc.CreateOrganization(context.Background(), owner.ID, domain.CreateOrganizationRequest{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestCreateOrganizationSlugCollisionGetsSuffix(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "alice@acme.test")

	first, err := env.svc.CreateOrganization(ctx, owner.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	second, err := env.svc.CreateOrganization(ctx, owner.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	assert.Equal(t, "acme", first.Slug)
	assert.NotEqual(t, first.Slug, second.Slug)
	assert.Contains(t, second.Slug, "acme-")
}

func TestCreateOrganizationRequiresActor(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.CreateOrganization(context.Background(), 0, domain.CreateOrganizationRequest{Name: "Acme"})
	assert.ErrorIs(t, err, domain.ErrMissingActor)
}

func TestActorFallsBackToContext(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "alice@acme.test")

	ctx := actor.WithUser(context.Background(), owner.ID)
	org, err := env.svc.CreateOrganization(ctx, 0, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	m, err := env.repo.GetOwner(context.Background(), org.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, owner.ID, m.UserID)
}

func TestAddMemberIdempotentKeepsRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "alice@acme.test")
	bob := env.createUser(t, "bob@acme.test")
	org := env.createOrg(t, owner.ID, "Acme")

	first, err := env.svc.AddMember(ctx, owner.ID, org.ID, bob.ID, role.Member)
	require.NoError(t, err)
	assert.Equal(t, role.Member, first.Role)

	// Second call with a different role returns the same row unchanged.
	second, err := env.svc.AddMember(ctx, owner.ID, org.ID, bob.ID, role.Viewer)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, role.Member, second.Role)
}

func TestAddMemberDefaultsToMemberRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "alice@acme.test")
	bob := env.createUser(t, "bob@acme.test")
	org := env.createOrg(t, owner.ID, "Acme")

	m, err := env.svc.AddMember(ctx, owner.ID, org.ID, bob.ID, "")
	require.NoError(t, err)
	assert.Equal(t, role.Member, m.Role)
}

func TestAddMemberRejectsOwnerRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "alice@acme.test")
	bob := env.createUser(t, "bob@acme.test")
	org := env.createOrg(t, owner.ID, "Acme")

	_, err := env.svc.AddMember(ctx, owner.ID, org.ID, bob.ID, role.Owner)
	assert.ErrorIs(t, err, domain.ErrOwnerConflict)
	assert.Equal(t, int64(1), env.ownerCount(t, org.ID))
}

func TestAddMemberRejectsUnknownRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "alice@acme.test")
	bob := env.createUser(t, "bob@acme.test")
	org := env.createOrg(t, owner.ID, "Acme")

	_, err := env.svc.AddMember(ctx, owner.ID, org.ID, bob.ID, "superuser")
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestAddMemberAuthorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "alice@acme.test")
	bob := env.createUser(t, "bob@acme.test")
	carol := env.createUser(t, "carol@acme.test")
	outsider := env.createUser(t, "mallory@acme.test")
	org := env.createOrg(t, owner.ID, "Acme")

	_, err := env.svc.AddMember(ctx, owner.ID, org.ID, bob.ID, role.Viewer)
	require.NoError(t, err)

	// A viewer cannot manage members.
	_, err = env.svc.AddMember(ctx, bob.ID, org.ID, carol.ID, role.Member)
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	// A non-member cannot act at all.
	_, err = env.svc.AddMember(ctx, outsider.ID, org.ID, carol.ID, role.Member)
	assert.ErrorIs(t, err, domain.ErrNotAMember)
}

func TestRemoveMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "alice@acme.test")
	bob := env.createUser(t, "bob@acme.test")
	org := env.createOrg(t, owner.ID, "Acme")

	_, err := env.svc.AddMember(ctx, owner.ID, org.ID, bob.ID, role.Member)
	require.NoError(t, err)

	var removed *domain.Membership
	env.dispatcher.Register(event.MemberRemoved, func(ctx context.Context, ev event.Context) error {
		removed = ev.Membership
		return nil
	})

	require.NoError(t, env.svc.RemoveMember(ctx, owner.ID, org.ID, bob.ID))

	m, err := env.repo.GetMembership(ctx, org.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, m)
	require.NotNil(t, removed)
	assert.Equal(t, bob.ID, removed.UserID)
}

func TestRemoveMemberAbsentIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "alice@acme.test")
	bob := env.createUser(t, "bob@acme.test")
	org := env.createOrg(t, owner.ID, "Acme")

	var fired bool
	env.dispatcher.Register(event.MemberRemoved, func(ctx context.Context, ev event.Context) error {
		fired = true
		return nil
	})

	assert.NoError(t, env.svc.RemoveMember(ctx, owner.ID, org.ID, bob.ID))
	assert.False(t, fired)
}

func TestRemoveOwnerFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "alice@acme.test")
	org := env.createOrg(t, owner.ID, "Acme")

	err := env.svc.RemoveMember(ctx, owner.ID, org.ID, owner.ID)
	assert.ErrorIs(t, err, domain.ErrCannotRemoveOwner)
	assert.Equal(t, int64(1), env.ownerCount(t, org.ID))
}

func TestChangeRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "alice@acme.test")
	bob := env.createUser(t, "bob@acme.test")
	org := env.createOrg(t, owner.ID, "Acme")

	_, err := env.svc.AddMember(ctx, owner.ID, org.ID, bob.ID, role.Member)
	require.NoError(t, err)

	var oldRole, newRole string
	env.dispatcher.Register(event.RoleChanged, func(ctx context.Context, ev event.Context) error {
		oldRole, newRole = ev.OldRole, ev.NewRole
		return nil
	})

	m, err := env.svc.ChangeRole(ctx, owner.ID, org.ID, bob.ID, role.Admin)
	require.NoError(t, err)
	assert.Equal(t, role.Admin, m.Role)
	assert.Equal(t, role.Member, oldRole)
	assert.Equal(t, role.Admin, newRole)

	stored, err := env.repo.GetMembership(ctx, org.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, role.Admin, stored.Role)
}

func TestChangeRoleSameRoleIsSilentNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "alice@acme.test")
	bob := env.createUser(t, "bob@acme.test")
	org := env.createOrg(t, owner.ID, "Acme")

	_, err := env.svc.AddMember(ctx, owner.ID, org.ID, bob.ID, role.Member)
	require.NoError(t, err)

	var fired bool
	env.dispatcher.Register(event.RoleChanged, func(ctx context.Context, ev event.Context) error {
		fired = true
		return nil
	})

	m, err := env.svc.ChangeRole(ctx, owner.ID, org.ID, bob.ID, role.Member)
	require.NoError(t, err)
	assert.Equal(t, role.Member, m.Role)
	assert.False(t, fired)
}

func TestChangeRoleGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "alice@acme.test")
	bob := env.createUser(t, "bob@acme.test")
	stranger := env.createUser(t, "carol@acme.test")
	org := env.createOrg(t, owner.ID, "Acme")

	_, err := env.svc.AddMember(ctx, owner.ID, org.ID, bob.ID, role.Member)
	require.NoError(t, err)

	_, err = env.svc.ChangeRole(ctx, owner.ID, org.ID, stranger.ID, role.Admin)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.svc.ChangeRole(ctx, owner.ID, org.ID, bob.ID, "superuser")
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	// Owner role is only reachable through ownership transfer.
	_, err = env.svc.ChangeRole(ctx, owner.ID, org.ID, bob.ID, role.Owner)
	assert.ErrorIs(t, err, domain.ErrOwnerConflict)

	_, err = env.svc.ChangeRole(ctx, owner.ID, org.ID, owner.ID, role.Admin)
	assert.ErrorIs(t, err, domain.ErrCannotDemoteOwner)
}

func TestTransferOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@acme.test")
	bob := env.createUser(t, "bob@acme.test")
	org := env.createOrg(t, alice.ID, "Acme")

	_, err := env.svc.AddMember(ctx, alice.ID, org.ID, bob.ID, role.Admin)
	require.NoError(t, err)

	var oldOwner, newOwner *domain.Membership
	env.dispatcher.Register(event.OwnershipTransferred, func(ctx context.Context, ev event.Context) error {
		oldOwner, newOwner = ev.OldOwner, ev.NewOwner
		return nil
	})

	m, err := env.svc.TransferOwnership(ctx, alice.ID, org.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, role.Owner, m.Role)
	assert.Equal(t, bob.ID, m.UserID)

	aliceM, err := env.repo.GetMembership(ctx, org.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, role.Admin, aliceM.Role)
	assert.Equal(t, int64(1), env.ownerCount(t, org.ID))

	require.NotNil(t, oldOwner)
	require.NotNil(t, newOwner)
	assert.Equal(t, alice.ID, oldOwner.UserID)
	assert.Equal(t, bob.ID, newOwner.UserID)
}

func TestTransferOwnershipRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@acme.test")
	bob := env.createUser(t, "bob@acme.test")
	org := env.createOrg(t, alice.ID, "Acme")

	_, err := env.svc.AddMember(ctx, alice.ID, org.ID, bob.ID, role.Admin)
	require.NoError(t, err)

	_, err = env.svc.TransferOwnership(ctx, alice.ID, org.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), env.ownerCount(t, org.ID))

	// Alice was demoted to admin, so Bob can hand ownership straight back.
	_, err = env.svc.TransferOwnership(ctx, bob.ID, org.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), env.ownerCount(t, org.ID))

	owner, err := env.repo.GetOwner(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, owner.UserID)

	bobM, err := env.repo.GetMembership(ctx, org.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, role.Admin, bobM.Role)
}

func TestTransferOwnershipToSelfIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@acme.test")
	org := env.createOrg(t, alice.ID, "Acme")

	m, err := env.svc.TransferOwnership(ctx, alice.ID, org.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, role.Owner, m.Role)
	assert.Equal(t, int64(1), env.ownerCount(t, org.ID))
}

func TestTransferOwnershipGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@acme.test")
	bob := env.createUser(t, "bob@acme.test")
	carol := env.createUser(t, "carol@acme.test")
	stranger := env.createUser(t, "mallory@acme.test")
	org := env.createOrg(t, alice.ID, "Acme")

	_, err := env.svc.AddMember(ctx, alice.ID, org.ID, bob.ID, role.Admin)
	require.NoError(t, err)
	_, err = env.svc.AddMember(ctx, alice.ID, org.ID, carol.ID, role.Member)
	require.NoError(t, err)

	// Only the current owner may transfer, admin is not enough.
	_, err = env.svc.TransferOwnership(ctx, bob.ID, org.ID, carol.ID)
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	// Non-members cannot transfer at all.
	_, err = env.svc.TransferOwnership(ctx, stranger.ID, org.ID, bob.ID)
	assert.ErrorIs(t, err, domain.ErrNotAMember)

	_, err = env.svc.TransferOwnership(ctx, alice.ID, org.ID, stranger.ID)
	assert.ErrorIs(t, err, domain.ErrNotAMember)

	// Target must hold at least the admin role.
	_, err = env.svc.TransferOwnership(ctx, alice.ID, org.ID, carol.ID)
	assert.ErrorIs(t, err, domain.ErrCannotTransferToNonAdmin)

	assert.Equal(t, int64(1), env.ownerCount(t, org.ID))
}

func TestTransferOwnershipNoOwnerPresent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@acme.test")
	bob := env.createUser(t, "bob@acme.test")
	org := env.createOrg(t, alice.ID, "Acme")

	_, err := env.svc.AddMember(ctx, alice.ID, org.ID, bob.ID, role.Admin)
	require.NoError(t, err)

	// Simulate a degenerate row written outside the action API.
	owner, err := env.repo.GetOwner(ctx, org.ID)
	require.NoError(t, err)
	require.NoError(t, env.repo.UpdateMembershipRole(ctx, owner.ID, role.Admin))

	_, err = env.svc.TransferOwnership(ctx, alice.ID, org.ID, bob.ID)
	assert.ErrorIs(t, err, domain.ErrNoOwnerPresent)
}

func TestListMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@acme.test")
	bob := env.createUser(t, "bob@acme.test")
	outsider := env.createUser(t, "mallory@acme.test")
	org := env.createOrg(t, alice.ID, "Acme")

	_, err := env.svc.AddMember(ctx, alice.ID, org.ID, bob.ID, role.Viewer)
	require.NoError(t, err)

	// Viewers can list, non-members cannot.
	members, err := env.svc.ListMembers(ctx, bob.ID, org.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = env.svc.ListMembers(ctx, outsider.ID, org.ID)
	assert.ErrorIs(t, err, domain.ErrNotAMember)
}

func TestDeleteOrganization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@acme.test")
	bob := env.createUser(t, "bob@acme.test")
	org := env.createOrg(t, alice.ID, "Acme")

	_, err := env.svc.AddMember(ctx, alice.ID, org.ID, bob.ID, role.Admin)
	require.NoError(t, err)

	// Admins cannot delete, only the owner can.
	err = env.svc.DeleteOrganization(ctx, bob.ID, org.ID)
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	require.NoError(t, env.svc.DeleteOrganization(ctx, alice.ID, org.ID))

	_, err = env.svc.GetOrganization(ctx, org.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	m, err := env.repo.GetMembership(ctx, org.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestCustomRoleParticipates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice@acme.test")
	bob := env.createUser(t, "bob@acme.test")
	org := env.createOrg(t, alice.ID, "Acme")

	svc := env.svc.(*service)
	require.NoError(t, svc.roles.Register(role.Descriptor{
		Name:     "auditor",
		Inherits: role.Member,
	}))

	m, err := env.svc.AddMember(ctx, alice.ID, org.ID, bob.ID, "auditor")
	require.NoError(t, err)
	assert.Equal(t, "auditor", m.Role)

	// Auditors inherit view from the viewer tier below member.
	members, err := env.svc.ListMembers(ctx, bob.ID, org.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}
