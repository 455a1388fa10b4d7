package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/membrane/internal/organization/domain"
	"github.com/smallbiznis/membrane/internal/role"
	"github.com/smallbiznis/membrane/pkg/db"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) domain.Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateOrganization(ctx context.Context, org *domain.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

func (r *repository) GetOrganization(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error
	if db.IsNotFoundErr(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// DeleteOrganization removes the organization and cascades to its
// memberships and invitations in one transaction, mirroring the
// foreign-key cascade enforced by the SQL migrations.
func (r *repository) DeleteOrganization(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("org_id = ?", id).Delete(&domain.Invitation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("org_id = ?", id).Delete(&domain.Membership{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Organization{}, "id = ?", id).Error
	})
}

func (r *repository) CreateMembership(ctx context.Context, m *domain.Membership) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *repository) GetMembership(ctx context.Context, orgID, userID snowflake.ID) (*domain.Membership, error) {
	var m domain.Membership
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&m).Error
	if db.IsNotFoundErr(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) GetOwner(ctx context.Context, orgID snowflake.ID) (*domain.Membership, error) {
	var m domain.Membership
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND role = ?", orgID, role.Owner).
		First(&m).Error
	if db.IsNotFoundErr(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) UpdateMembershipRole(ctx context.Context, id snowflake.ID, role string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Membership{}).
		Where("id = ?", id).
		Update("role", role).Error
}

func (r *repository) DeleteMembership(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Delete(&domain.Membership{}, "id = ?", id).Error
}

func (r *repository) ListMemberships(ctx context.Context, orgID snowflake.ID) ([]domain.Membership, error) {
	var members []domain.Membership
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) CountOwners(ctx context.Context, orgID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Membership{}).
		Where("org_id = ? AND role = ?", orgID, role.Owner).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *repository) UpdateInvitation(ctx context.Context, inv *domain.Invitation) error {
	return r.db.WithContext(ctx).Save(inv).Error
}

func (r *repository) GetInvitation(ctx context.Context, id snowflake.ID) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).First(&inv, "id = ?", id).Error
	if db.IsNotFoundErr(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) GetInvitationByToken(ctx context.Context, tokenValue string) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).Where("token = ?", tokenValue).First(&inv).Error
	if db.IsNotFoundErr(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// FindOpenInvitation returns the non-accepted invitation for the
// (organization, email) pair, expired or not. The caller decides between
// the idempotent return and the reactivation path.
func (r *repository) FindOpenInvitation(ctx context.Context, orgID snowflake.ID, email string) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND lower(email) = ? AND accepted_at IS NULL", orgID, domain.NormalizeEmail(email)).
		First(&inv).Error
	if db.IsNotFoundErr(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) ListInvitations(ctx context.Context, orgID snowflake.ID) ([]domain.Invitation, error) {
	var invites []domain.Invitation
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&invites).Error
	if err != nil {
		return nil, err
	}
	return invites, nil
}
