// Package seed bootstraps a default organization with its single owner
// for first-run deployments.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	organizationdomain "github.com/smallbiznis/membrane/internal/organization/domain"
	"github.com/smallbiznis/membrane/internal/role"
	userdomain "github.com/smallbiznis/membrane/internal/user/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultOrgName    = "Main"
	defaultOrgSlug    = "main"
	defaultAdminEmail = "admin@membrane.local"
	defaultAdminName  = "Membrane Admin"
)

// EnsureDefaultOrg seeds the default organization and its owner. This is
// the bootstrap path that gives an organization its one initial owner;
// the action API never creates owner memberships directly.
func EnsureDefaultOrg(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var org organizationdomain.Organization
		err := tx.Where("slug = ?", defaultOrgSlug).First(&org).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()

		var admin userdomain.User
		err = tx.Where("email = ?", defaultAdminEmail).First(&admin).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			admin = userdomain.User{
				ID:          node.Generate(),
				ExternalID:  uuid.NewString(),
				Email:       defaultAdminEmail,
				DisplayName: defaultAdminName,
				Metadata:    datatypes.JSONMap{},
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			err = tx.Create(&admin).Error
		}
		if err != nil {
			return err
		}

		org = organizationdomain.Organization{
			ID:        node.Generate(),
			Name:      defaultOrgName,
			Slug:      defaultOrgSlug,
			Metadata:  datatypes.JSONMap{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&org).Error; err != nil {
			return err
		}

		owner := organizationdomain.Membership{
			ID:        node.Generate(),
			OrgID:     org.ID,
			UserID:    admin.ID,
			Role:      role.Owner,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.Create(&owner).Error
	})
}
