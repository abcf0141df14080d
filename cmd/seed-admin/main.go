// seed-admin creates or updates the platform admin account and seeds the
// shared default workflow template (organization_id = "") that new
// organizations are copied from.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/exportflow_backend/config"
	"bitbucket.org/mmdatafocus/exportflow_backend/models"
	"bitbucket.org/mmdatafocus/exportflow_backend/utils"
	"gorm.io/gorm"
)

const (
	adminEmail = "admin@exportflow.io"
	adminName  = "ExportFlow Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "SEED_ADMIN_PASSWORD is required")
		os.Exit(1)
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("email = ?", adminEmail).First(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
		os.Exit(1)
	}
	if err == gorm.ErrRecordNotFound {
		u := models.User{
			Email:        adminEmail,
			Name:         adminName,
			PasswordHash: hashedStr,
			IsActive:     utils.NewTrue(),
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: email=%q\n", adminEmail)
	} else {
		if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", adminEmail).Updates(map[string]any{
			"password_hash": hashedStr,
			"name":          adminName,
			"is_active":     utils.NewTrue(),
		}).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated admin user: email=%q\n", adminEmail)
	}

	if err := models.SeedWorkflowTemplate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed workflow template: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Shared workflow template is in place")
}
