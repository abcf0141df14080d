package models

import (
	"bitbucket.org/mmdatafocus/exportflow_backend/config"
)

// MigrateTable runs gorm auto-migration for every model. Called once at boot.
func MigrateTable() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&Organization{},
		&User{},
		&Profile{},
		&WorkflowStage{},
		&WorkflowSubStage{},
		&ExportOrder{},
		&Item{},
		&ItemStageAllocation{},
		&ItemMovementHistory{},
		&Subscription{},
		&BillingInvoice{},
		&PackagingReminder{},
	)
}
