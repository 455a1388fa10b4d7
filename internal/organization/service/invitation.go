package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/membrane/internal/event"
	"github.com/smallbiznis/membrane/internal/organization/domain"
	"github.com/smallbiznis/membrane/internal/role"
	userdomain "github.com/smallbiznis/membrane/internal/user/domain"
	"github.com/smallbiznis/membrane/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *service) SendInvite(ctx context.Context, actorID, orgID snowflake.ID, req domain.InviteRequest) (*domain.Invitation, error) {
	actorID, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireCapability(ctx, actorID, orgID, role.CapInviteMembers); err != nil {
		return nil, err
	}

	roleName := strings.TrimSpace(req.Role)
	if roleName == "" {
		roleName = s.cfg.DefaultInviteRole
	}
	if !s.roles.Valid(roleName) {
		return nil, domain.ErrInvalidRole
	}
	if roleName == role.Owner {
		return nil, domain.ErrCannotInviteAsOwner
	}

	email := domain.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidEmail
	}

	// The email may already belong to an enrolled member.
	if existingUser, err := s.users.GetByEmail(ctx, email); err != nil {
		return nil, err
	} else if existingUser != nil {
		m, err := s.repo.GetMembership(ctx, orgID, existingUser.ID)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return nil, domain.ErrAlreadyAMember
		}
	}

	now := s.clock.Now().UTC()

	open, err := s.repo.FindOpenInvitation(ctx, orgID, email)
	if err != nil {
		return nil, err
	}
	if open != nil {
		// A pending invitation is returned as-is: no token rotation, no
		// expiry extension. An expired one is reactivated.
		if open.Pending(now) {
			return open, nil
		}
		if err := s.reactivate(ctx, s.repo, open, now); err != nil {
			return nil, err
		}
		s.dispatchInvited(ctx, orgID, actorID, open)
		return open, nil
	}

	inv := &domain.Invitation{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		Email:       email,
		InvitedByID: &actorID,
		Role:        roleName,
		ExpiresAt:   s.inviteExpiry(now),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.createInvitationWithToken(ctx, inv); err != nil {
		if winner, fetchErr := s.repo.FindOpenInvitation(ctx, orgID, email); fetchErr == nil && winner != nil {
			// Lost the one-pending-invite race; the winner's invitation
			// is the idempotent result.
			return winner, nil
		}
		return nil, err
	}

	s.dispatchInvited(ctx, orgID, actorID, inv)
	return inv, nil
}

func (s *service) AcceptInvite(ctx context.Context, userID snowflake.ID, tokenValue string, opts domain.AcceptOptions) (*domain.Membership, error) {
	userID, err := s.resolveActor(ctx, userID)
	if err != nil {
		return nil, err
	}

	inv, err := s.repo.GetInvitationByToken(ctx, strings.TrimSpace(tokenValue))
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}

	if !opts.SkipEmailCheck && !strings.EqualFold(user.Email, inv.Email) {
		return nil, domain.ErrEmailMismatch
	}
	// Creation-time validation rejects owner invites; keep the guard for
	// rows written outside this service.
	if inv.Role == role.Owner {
		return nil, domain.ErrCannotAcceptAsOwner
	}

	now := s.clock.Now().UTC()

	if inv.Accepted() {
		// Historical-integrity guard: a consumed invitation only ever
		// points at the membership it granted. If that membership was
		// removed later, acceptance is not silently re-granted.
		m, err := s.repo.GetMembership(ctx, inv.OrgID, userID)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, domain.ErrInvitationAlreadyAccepted
		}
		return m, nil
	}

	if inv.Expired(now) {
		return nil, domain.ErrInvitationExpired
	}

	// Membership acquired through another path: consume the invitation
	// without duplicating the row.
	existing, err := s.repo.GetMembership(ctx, inv.OrgID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		inv.AcceptedAt = &now
		inv.UpdatedAt = now
		if err := s.repo.UpdateInvitation(ctx, inv); err != nil {
			return nil, err
		}
		return existing, nil
	}

	m := &domain.Membership{
		ID:          s.genID.Generate(),
		OrgID:       inv.OrgID,
		UserID:      userID,
		Role:        inv.Role,
		InvitedByID: inv.InvitedByID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateMembership(ctx, m); err != nil {
			return err
		}
		inv.AcceptedAt = &now
		inv.UpdatedAt = now
		return repo.UpdateInvitation(ctx, inv)
	})
	if db.IsDuplicateKeyErr(err) {
		// Lost the race against another enrolment path. Consume the
		// invitation and hand back the winning membership.
		winner, fetchErr := s.repo.GetMembership(ctx, inv.OrgID, userID)
		if fetchErr != nil {
			return nil, fetchErr
		}
		if winner != nil {
			inv.AcceptedAt = &now
			inv.UpdatedAt = now
			if err := s.repo.UpdateInvitation(ctx, inv); err != nil {
				return nil, err
			}
			return winner, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	org, err := s.repo.GetOrganization(ctx, inv.OrgID)
	if err != nil {
		s.log.Warn("load organization for event", zap.Error(err))
	}
	invitedBy := s.loadInviter(ctx, inv)
	s.dispatch(ctx, event.Context{
		Kind:         event.MemberJoined,
		Organization: org,
		User:         user,
		Membership:   m,
		Invitation:   inv,
		InvitedBy:    invitedBy,
	})
	return m, nil
}

func (s *service) ResendInvite(ctx context.Context, actorID, inviteID snowflake.ID) (*domain.Invitation, error) {
	actorID, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	inv, err := s.repo.GetInvitation(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if _, err := s.requireCapability(ctx, actorID, inv.OrgID, role.CapInviteMembers); err != nil {
		return nil, err
	}
	if inv.Accepted() {
		return nil, domain.ErrInvitationAlreadyAccepted
	}

	now := s.clock.Now().UTC()
	if err := s.reactivate(ctx, s.repo, inv, now); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *service) ListInvitations(ctx context.Context, actorID, orgID snowflake.ID) ([]domain.Invitation, error) {
	actorID, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireCapability(ctx, actorID, orgID, role.CapInviteMembers); err != nil {
		return nil, err
	}
	return s.repo.ListInvitations(ctx, orgID)
}

// reactivate rotates the token and resets the expiry window. This is the
// designed recovery path for expired invitations.
func (s *service) reactivate(ctx context.Context, repo domain.Repository, inv *domain.Invitation, now time.Time) error {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		tok, err := s.tokens.Generate()
		if err != nil {
			return err
		}
		inv.Token = tok
		inv.ExpiresAt = s.inviteExpiry(now)
		inv.UpdatedAt = now

		err = repo.UpdateInvitation(ctx, inv)
		if db.IsDuplicateKeyErr(err) {
			continue
		}
		return err
	}
	return fmt.Errorf("invitation token collisions exhausted after %d attempts", maxTokenAttempts)
}

// createInvitationWithToken persists a fresh invitation, regenerating
// the token on a uniqueness collision up to maxTokenAttempts.
func (s *service) createInvitationWithToken(ctx context.Context, inv *domain.Invitation) error {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		tok, err := s.tokens.Generate()
		if err != nil {
			return err
		}
		inv.Token = tok

		err = s.repo.CreateInvitation(ctx, inv)
		if db.IsDuplicateKeyErr(err) {
			// Could be the token index or the pending-invite index; the
			// caller disambiguates by re-fetching the open invitation.
			if open, fetchErr := s.repo.FindOpenInvitation(ctx, inv.OrgID, inv.Email); fetchErr == nil && open != nil && open.ID != inv.ID {
				return err
			}
			continue
		}
		return err
	}
	return fmt.Errorf("invitation token collisions exhausted after %d attempts", maxTokenAttempts)
}

func (s *service) inviteExpiry(now time.Time) *time.Time {
	if s.cfg.InvitationTTL == nil {
		return nil
	}
	expires := now.Add(*s.cfg.InvitationTTL)
	return &expires
}

func (s *service) loadInviter(ctx context.Context, inv *domain.Invitation) *userdomain.User {
	if inv.InvitedByID == nil {
		return nil
	}
	user, err := s.users.GetByID(ctx, *inv.InvitedByID)
	if err != nil {
		s.log.Warn("load inviting user", zap.Error(err))
		return nil
	}
	return user
}

func (s *service) dispatchInvited(ctx context.Context, orgID, actorID snowflake.ID, inv *domain.Invitation) {
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		s.log.Warn("load organization for event", zap.Error(err))
	}
	invitedBy, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		s.log.Warn("load inviting user", zap.Error(err))
	}
	s.dispatch(ctx, event.Context{
		Kind:         event.MemberInvited,
		Organization: org,
		Invitation:   inv,
		InvitedBy:    invitedBy,
	})
}
