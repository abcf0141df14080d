package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/exportflow_backend/config"
	"bitbucket.org/mmdatafocus/exportflow_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PackagingReminder is an outbox row: the dispatcher writes one per stale
// packaging allocation, then publishes it to Pub/Sub and flips the status.
// The unique index on item+stage+entered-at makes a rescan idempotent.
type PackagingReminder struct {
	ID             int            `gorm:"primary_key" json:"id"`
	OrganizationId string         `gorm:"index;size:36;not null" json:"organization_id"`
	ItemId         int            `gorm:"uniqueIndex:idx_reminder_entry;not null" json:"item_id"`
	StageId        int            `gorm:"uniqueIndex:idx_reminder_entry;not null" json:"stage_id"`
	Quantity       int            `gorm:"not null" json:"quantity"`
	StageEnteredAt time.Time      `gorm:"uniqueIndex:idx_reminder_entry;not null" json:"stage_entered_at"`
	Status         ReminderStatus `gorm:"type:enum('Pending','Published');default:Pending;index" json:"status"`
	PublishedAt    *time.Time     `json:"published_at"`
	CorrelationId  string         `gorm:"size:36" json:"correlation_id"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (r PackagingReminder) GetOrganizationId() string { return r.OrganizationId }

// RecordPackagingReminder inserts the outbox row if no reminder exists yet for
// this exact stage entry. Returns the row and whether it was newly created.
func RecordPackagingReminder(tx *gorm.DB, reminder *PackagingReminder) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(reminder)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListPendingReminders returns unpublished outbox rows across all
// organizations, oldest first. Dispatcher-only: runs with tenant scope skipped.
func ListPendingReminders(ctx context.Context, limit int) ([]*PackagingReminder, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	db := config.GetDB()
	var results []*PackagingReminder
	err := db.WithContext(ctx).
		Where("status = ?", ReminderStatusPending).
		Order("created_at").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// MarkReminderPublished flips the outbox row after a successful publish.
// Conditional on Pending so two dispatcher instances cannot double-flip.
func MarkReminderPublished(ctx context.Context, reminderId int) error {
	now := time.Now()
	db := config.GetDB()
	res := db.WithContext(ctx).Model(&PackagingReminder{}).
		Where("id = ? AND status = ?", reminderId, ReminderStatusPending).
		Updates(map[string]interface{}{
			"Status":      ReminderStatusPublished,
			"PublishedAt": &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("reminder is not pending")
	}
	return nil
}

// ListPackagingReminders lists an organization's reminders for the dashboard,
// newest first.
func ListPackagingReminders(ctx context.Context, status *ReminderStatus) ([]*PackagingReminder, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("organization_id = ?", organizationId)
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	var results []*PackagingReminder
	err := dbCtx.Order("created_at DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
