package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/membrane/internal/actor"
	"github.com/smallbiznis/membrane/internal/clock"
	"github.com/smallbiznis/membrane/internal/config"
	"github.com/smallbiznis/membrane/internal/event"
	"github.com/smallbiznis/membrane/internal/organization/domain"
	"github.com/smallbiznis/membrane/internal/role"
	"github.com/smallbiznis/membrane/internal/token"
	userdomain "github.com/smallbiznis/membrane/internal/user/domain"
	"github.com/smallbiznis/membrane/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// maxTokenAttempts bounds the retry loop around token-uniqueness
// collisions. Exhausting it means the random source is broken.
const maxTokenAttempts = 5

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	Repo       domain.Repository
	Users      userdomain.Repository
	Roles      *role.Registry
	Tokens     token.Issuer
	Clock      clock.Clock
	GenID      *snowflake.Node
	Dispatcher *event.Dispatcher
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        config.Config
	repo       domain.Repository
	users      userdomain.Repository
	roles      *role.Registry
	tokens     token.Issuer
	clock      clock.Clock
	genID      *snowflake.Node
	dispatcher *event.Dispatcher
}

func NewService(p ServiceParam) domain.Service {
	return &service{
		db:         p.DB,
		log:        p.Log,
		cfg:        p.Cfg,
		repo:       p.Repo,
		users:      p.Users,
		roles:      p.Roles,
		tokens:     p.Tokens,
		clock:      p.Clock,
		genID:      p.GenID,
		dispatcher: p.Dispatcher,
	}
}

// resolveActor prefers the explicit argument; a zero ID falls back to
// the ambient request context.
func (s *service) resolveActor(ctx context.Context, actorID snowflake.ID) (snowflake.ID, error) {
	if actorID != 0 {
		return actorID, nil
	}
	if id, ok := actor.UserFromContext(ctx); ok && id != 0 {
		return id, nil
	}
	return 0, domain.ErrMissingActor
}

// requireCapability loads the actor's membership and checks the
// capability before any mutation proceeds.
func (s *service) requireCapability(ctx context.Context, actorID, orgID snowflake.ID, cap role.Capability) (*domain.Membership, error) {
	m, err := s.repo.GetMembership(ctx, orgID, actorID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrNotAMember
	}
	if !s.roles.Can(m.Role, cap) {
		return nil, domain.ErrNotAuthorized
	}
	return m, nil
}

// dispatch fires an event after the mutation committed. Handler failures
// are logged, never propagated: already-committed state must not appear
// rolled back. Callers needing joint atomicity wrap mutation and
// handlers in one transaction themselves.
func (s *service) dispatch(ctx context.Context, ev event.Context) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, ev); err != nil {
		s.log.Warn("event handler failed",
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
	}
}

func (s *service) CreateOrganization(ctx context.Context, ownerID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	ownerID, err := s.resolveActor(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now().UTC()
	org := &domain.Organization{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      slug.Make(name),
		Metadata:  datatypes.JSONMap(req.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if org.Metadata == nil {
		org.Metadata = datatypes.JSONMap{}
	}

	var membership *domain.Membership
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := s.createWithUniqueSlug(ctx, repo, org); err != nil {
			return err
		}

		membership = &domain.Membership{
			ID:        s.genID.Generate(),
			OrgID:     org.ID,
			UserID:    ownerID,
			Role:      role.Owner,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return repo.CreateMembership(ctx, membership)
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, event.Context{
		Kind:         event.OrganizationCreated,
		Organization: org,
		Membership:   membership,
	})

	return org, nil
}

// createWithUniqueSlug retries a slug collision once with a random
// suffix; the slug never changes again after creation.
func (s *service) createWithUniqueSlug(ctx context.Context, repo domain.Repository, org *domain.Organization) error {
	err := repo.CreateOrganization(ctx, org)
	if !db.IsDuplicateKeyErr(err) {
		return err
	}

	suffix, tokenErr := s.tokens.Generate()
	if tokenErr != nil {
		return tokenErr
	}
	org.Slug = fmt.Sprintf("%s-%s", org.Slug, strings.ToLower(suffix[:8]))
	return repo.CreateOrganization(ctx, org)
}

func (s *service) GetOrganization(ctx context.Context, orgID snowflake.ID) (*domain.Organization, error) {
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}
	return org, nil
}

func (s *service) DeleteOrganization(ctx context.Context, actorID, orgID snowflake.ID) error {
	actorID, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return err
	}
	if _, err := s.requireCapability(ctx, actorID, orgID, role.CapDeleteOrganization); err != nil {
		return err
	}
	return s.repo.DeleteOrganization(ctx, orgID)
}

func (s *service) AddMember(ctx context.Context, actorID, orgID, userID snowflake.ID, roleName string) (*domain.Membership, error) {
	actorID, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireCapability(ctx, actorID, orgID, role.CapManageMembers); err != nil {
		return nil, err
	}

	if roleName == "" {
		roleName = role.Member
	}
	if !s.roles.Valid(roleName) {
		return nil, domain.ErrInvalidRole
	}
	// Organizations get their single owner through the bootstrap path.
	if roleName == role.Owner {
		return nil, domain.ErrOwnerConflict
	}

	// Idempotent: an existing membership is returned unchanged. The role
	// argument is deliberately NOT applied to it.
	existing, err := s.repo.GetMembership(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now().UTC()
	m := &domain.Membership{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		Role:      roleName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.repo.CreateMembership(ctx, m)
	if db.IsDuplicateKeyErr(err) {
		// Lost the race on ux_memberships_org_user: someone added the
		// user first. Re-fetch and return their row unchanged.
		winner, fetchErr := s.repo.GetMembership(ctx, orgID, userID)
		if fetchErr != nil {
			return nil, fetchErr
		}
		if winner != nil {
			return winner, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (s *service) RemoveMember(ctx context.Context, actorID, orgID, userID snowflake.ID) error {
	actorID, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return err
	}
	if _, err := s.requireCapability(ctx, actorID, orgID, role.CapManageMembers); err != nil {
		return err
	}

	m, err := s.repo.GetMembership(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if m == nil {
		return nil
	}
	if m.Role == role.Owner {
		return domain.ErrCannotRemoveOwner
	}

	if err := s.repo.DeleteMembership(ctx, m.ID); err != nil {
		return err
	}

	removedBy, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		s.log.Warn("load removing user", zap.Error(err))
	}
	s.dispatch(ctx, event.Context{
		Kind:       event.MemberRemoved,
		Membership: m,
		RemovedBy:  removedBy,
	})
	return nil
}

func (s *service) ChangeRole(ctx context.Context, actorID, orgID, userID snowflake.ID, to string) (*domain.Membership, error) {
	actorID, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireCapability(ctx, actorID, orgID, role.CapManageMembers); err != nil {
		return nil, err
	}

	m, err := s.repo.GetMembership(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrNotFound
	}
	if !s.roles.Valid(to) {
		return nil, domain.ErrInvalidRole
	}
	// The owner role is only reachable through ownership transfer.
	if to == role.Owner {
		return nil, domain.ErrOwnerConflict
	}
	if m.Role == role.Owner {
		return nil, domain.ErrCannotDemoteOwner
	}
	if m.Role == to {
		return m, nil
	}

	oldRole := m.Role
	if err := s.repo.UpdateMembershipRole(ctx, m.ID, to); err != nil {
		return nil, err
	}
	m.Role = to

	changedBy, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		s.log.Warn("load changing user", zap.Error(err))
	}
	s.dispatch(ctx, event.Context{
		Kind:       event.RoleChanged,
		Membership: m,
		ChangedBy:  changedBy,
		OldRole:    oldRole,
		NewRole:    to,
	})
	return m, nil
}

func (s *service) TransferOwnership(ctx context.Context, actorID, orgID, targetID snowflake.ID) (*domain.Membership, error) {
	actorID, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	owner, err := s.repo.GetOwner(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, domain.ErrNoOwnerPresent
	}
	if _, err := s.requireCapability(ctx, actorID, orgID, role.CapTransferOwnership); err != nil {
		return nil, err
	}
	// The capability alone is not enough: only the current owner may give
	// ownership away, whatever grants a custom role carries.
	if owner.UserID != actorID {
		return nil, domain.ErrNotAuthorized
	}
	if owner.UserID == targetID {
		return owner, nil
	}

	target, err := s.repo.GetMembership(ctx, orgID, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, domain.ErrNotAMember
	}
	if !s.roles.AtLeast(target.Role, role.Admin) {
		return nil, domain.ErrCannotTransferToNonAdmin
	}

	// Demote before promote so the one-owner index never sees two rows.
	// Both updates commit together or not at all.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateMembershipRole(ctx, owner.ID, role.Admin); err != nil {
			return err
		}
		return repo.UpdateMembershipRole(ctx, target.ID, role.Owner)
	})
	if err != nil {
		return nil, err
	}

	oldOwner := *owner
	owner.Role = role.Admin
	target.Role = role.Owner

	s.dispatch(ctx, event.Context{
		Kind:     event.OwnershipTransferred,
		OldOwner: &oldOwner,
		NewOwner: target,
	})
	return target, nil
}

func (s *service) ListMembers(ctx context.Context, actorID, orgID snowflake.ID) ([]domain.Membership, error) {
	actorID, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireCapability(ctx, actorID, orgID, role.CapViewOrganization); err != nil {
		return nil, err
	}
	return s.repo.ListMemberships(ctx, orgID)
}
