package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/exportflow_backend/config"
	"bitbucket.org/mmdatafocus/exportflow_backend/utils"
	"gorm.io/gorm"
)

// Profile links a user to an organization with a role. Every authorization
// check in the request path goes through the caller's profile.
type Profile struct {
	ID             int         `gorm:"primary_key" json:"id"`
	OrganizationId string      `gorm:"uniqueIndex:idx_org_user;size:36;not null" json:"organization_id"`
	UserId         int         `gorm:"uniqueIndex:idx_org_user;index;not null" json:"user_id"`
	Role           ProfileRole `gorm:"type:enum('Owner','Admin','Member');default:Member" json:"role"`
	IsActive       *bool       `gorm:"not null;default:true" json:"is_active"`
	User           *User       `gorm:"foreignKey:UserId" json:"user,omitempty"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p Profile) GetOrganizationId() string { return p.OrganizationId }

type NewTeamMember struct {
	Email    string      `json:"email" binding:"required,email"`
	Name     string      `json:"name" binding:"required"`
	Password string      `json:"password" binding:"required,min=8"`
	Role     ProfileRole `json:"role" binding:"required"`
}

// GetActiveProfile resolves the caller's membership in an organization.
// Used by the session middleware to establish tenant scope.
func GetActiveProfile(ctx context.Context, organizationId string, userId int) (*Profile, error) {
	db := config.GetDB()
	var profile Profile
	err := db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", organizationId, userId).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New("not a member of this organization")
	}
	if err != nil {
		return nil, err
	}
	if profile.IsActive != nil && !*profile.IsActive {
		return nil, errors.New("membership is deactivated")
	}
	return &profile, nil
}

// requireManagerRole checks the caller's profile role from context.
func requireManagerRole(ctx context.Context) error {
	role, ok := utils.GetProfileRoleFromContext(ctx)
	if !ok || !ProfileRole(role).CanManage() {
		return errors.New("owner or admin role is required")
	}
	return nil
}

// AddTeamMember creates (or reuses) the user account and attaches it to the
// organization with the given role.
func AddTeamMember(ctx context.Context, input *NewTeamMember) (*Profile, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if err := requireManagerRole(ctx); err != nil {
		return nil, err
	}
	if input.Role == ProfileRoleOwner {
		return nil, errors.New("ownership cannot be granted to a new member")
	}
	switch input.Role {
	case ProfileRoleAdmin, ProfileRoleMember:
	default:
		return nil, errors.New("invalid role")
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))

	db := config.GetDB()
	var profile Profile
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user User
		err := tx.Where("email = ?", email).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			hashed, herr := utils.HashPassword(input.Password)
			if herr != nil {
				return herr
			}
			user = User{
				Email:        email,
				Name:         input.Name,
				PasswordHash: string(hashed),
				IsActive:     utils.NewTrue(),
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&Profile{}).
			Where("organization_id = ? AND user_id = ?", organizationId, user.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errors.New("user is already a member")
		}

		profile = Profile{
			OrganizationId: organizationId,
			UserId:         user.ID,
			Role:           input.Role,
			IsActive:       utils.NewTrue(),
		}
		return tx.Create(&profile).Error
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func UpdateProfileRole(ctx context.Context, profileId int, role ProfileRole) (*Profile, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if err := requireManagerRole(ctx); err != nil {
		return nil, err
	}
	switch role {
	case ProfileRoleAdmin, ProfileRoleMember:
	default:
		return nil, errors.New("invalid role")
	}

	profile, err := utils.FetchModel[Profile](ctx, organizationId, profileId)
	if err != nil {
		return nil, err
	}
	if profile.Role == ProfileRoleOwner {
		return nil, errors.New("owner role cannot be changed")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(profile).Update("role", role).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

func ToggleActiveProfile(ctx context.Context, profileId int, isActive bool) (*Profile, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if err := requireManagerRole(ctx); err != nil {
		return nil, err
	}

	profile, err := utils.FetchModel[Profile](ctx, organizationId, profileId)
	if err != nil {
		return nil, err
	}
	if profile.Role == ProfileRoleOwner {
		return nil, errors.New("owner cannot be deactivated")
	}

	return ToggleActiveModel[Profile](ctx, organizationId, profileId, isActive)
}

func ListTeam(ctx context.Context) ([]*Profile, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	db := config.GetDB()
	var results []*Profile
	err := db.WithContext(ctx).
		Where("organization_id = ?", organizationId).
		Preload("User").
		Order("created_at").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListUserOrganizations returns every organization the user belongs to, for
// the workspace switcher after signin.
func ListUserOrganizations(ctx context.Context, userId int) ([]*Organization, error) {
	db := config.GetDB()
	var results []*Organization
	err := db.WithContext(ctx).
		Joins("JOIN profiles ON profiles.organization_id = organizations.id").
		Where("profiles.user_id = ? AND profiles.is_active = ?", userId, true).
		Order("organizations.name").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
