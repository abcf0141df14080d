package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/exportflow_backend/config"
	"bitbucket.org/mmdatafocus/exportflow_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Organization struct {
	ID          uuid.UUID `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName string    `gorm:"size:100" json:"contact_name"`
	Email       string    `gorm:"size:255" json:"email"`
	Phone       string    `gorm:"size:20" json:"phone"`
	Address     string    `gorm:"type:text" json:"address"`
	Country     string    `gorm:"size:100" json:"country"`
	City        string    `gorm:"size:100" json:"city"`
	Timezone    string    `gorm:"size:50" json:"timezone"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrganization struct {
	Name        string `json:"name" binding:"required"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email" binding:"required"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Country     string `json:"country"`
	City        string `json:"city"`
	Timezone    string `json:"timezone"`
}

func (organization *Organization) StoreRedis() error {
	return config.SetRedisObject("Organization:"+fmt.Sprint(organization.ID), organization, 0)
}

func (organization *Organization) RemoveRedis() error {
	return config.RemoveRedisKey("Organization:" + fmt.Sprint(organization.ID))
}

// CreateOrganization creates the tenant and bootstraps everything a fresh
// organization needs: the owner's profile, a copy of the default workflow
// template, and a trial subscription. The caller's user id becomes the owner.
func CreateOrganization(ctx context.Context, input *NewOrganization) (*Organization, error) {

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, errors.New("user id is required")
	}
	if !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email")
	}

	organization := Organization{
		ID:          uuid.New(),
		Name:        input.Name,
		ContactName: input.ContactName,
		Email:       input.Email,
		Phone:       input.Phone,
		Address:     input.Address,
		Country:     input.Country,
		City:        input.City,
		Timezone:    input.Timezone,
		IsActive:    utils.NewTrue(),
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&organization).Error; err != nil {
			return err
		}

		organizationId := organization.ID.String()

		profile := Profile{
			OrganizationId: organizationId,
			UserId:         userId,
			Role:           ProfileRoleOwner,
			IsActive:       utils.NewTrue(),
		}
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}

		if err := seedDefaultWorkflow(tx, organizationId); err != nil {
			return err
		}

		return createTrialSubscription(tx, organizationId)
	})
	if err != nil {
		return nil, err
	}

	if err := organization.StoreRedis(); err != nil {
		return nil, err
	}
	return &organization, nil
}

func GetOrganization(ctx context.Context) (*Organization, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	var organization *Organization
	exists, err := config.GetRedisObject("Organization:"+organizationId, &organization)
	if err != nil {
		return nil, err
	}
	if exists {
		return organization, nil
	}

	db := config.GetDB()
	organization = &Organization{}
	if err := db.WithContext(ctx).First(organization, "id = ?", organizationId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if err := organization.StoreRedis(); err != nil {
		return nil, err
	}
	return organization, nil
}

func UpdateOrganization(ctx context.Context, input *NewOrganization) (*Organization, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email")
	}

	db := config.GetDB()
	var organization Organization
	if err := db.WithContext(ctx).First(&organization, "id = ?", organizationId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	err := db.WithContext(ctx).Model(&organization).Updates(map[string]interface{}{
		"Name":        input.Name,
		"ContactName": input.ContactName,
		"Email":       input.Email,
		"Phone":       input.Phone,
		"Address":     input.Address,
		"Country":     input.Country,
		"City":        input.City,
		"Timezone":    input.Timezone,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := organization.StoreRedis(); err != nil {
		return nil, err
	}
	return &organization, nil
}
