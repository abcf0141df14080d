package workflow

import (
	"context"
	"os"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/exportflow_backend/config"
	"bitbucket.org/mmdatafocus/exportflow_backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReminderDispatcher turns stale packaging allocations into reminder events.
// Transactional-outbox: a scan pass writes PackagingReminder rows for
// quantity that has sat at a packaging stage past the threshold, and a
// dispatch pass publishes pending rows to Pub/Sub. Either pass can crash and
// rerun without duplicating reminders.
type ReminderDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize    int
	PollInterval time.Duration
	Threshold    time.Duration
}

func NewReminderDispatcher(db *gorm.DB, logger *logrus.Logger) *ReminderDispatcher {
	return &ReminderDispatcher{
		DB:           db,
		Logger:       logger,
		DispatcherID: uuid.NewString(),
		BatchSize:    100,
		PollInterval: time.Minute,
		Threshold:    reminderThreshold(),
	}
}

func reminderThreshold() time.Duration {
	if v := os.Getenv("REMINDER_THRESHOLD_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			return time.Duration(hours) * time.Hour
		}
	}
	return 24 * time.Hour
}

func (d *ReminderDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.scanOnce(ctx)
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// stalePackagingRow is one allocation sitting at a packaging stage, joined
// with what the reminder message needs.
type stalePackagingRow struct {
	OrganizationId string
	ItemId         int
	Sku            string
	StageId        int
	SubStageId     *int
	StageName      string
	Quantity       int
}

// scanOnce writes an outbox row for every packaging allocation older than the
// threshold. Packaging stages are matched by the is_packaging flag, not by
// name; organizations rename their stages. The unique index on
// item+stage+entered-at deduplicates rescans.
func (d *ReminderDispatcher) scanOnce(ctx context.Context) {
	db := d.DB
	if db == nil {
		return
	}

	var rows []stalePackagingRow
	err := db.WithContext(ctx).
		Model(&models.ItemStageAllocation{}).
		Select(`item_stage_allocations.organization_id,
			item_stage_allocations.item_id,
			items.sku,
			item_stage_allocations.stage_id,
			item_stage_allocations.sub_stage_id,
			workflow_stages.name AS stage_name,
			item_stage_allocations.quantity`).
		Joins("JOIN workflow_stages ON workflow_stages.id = item_stage_allocations.stage_id").
		Joins("JOIN items ON items.id = item_stage_allocations.item_id").
		Where("workflow_stages.is_packaging = ?", true).
		Limit(d.BatchSize).
		Scan(&rows).Error
	if err != nil {
		config.LogError(d.Logger, "reminderDispatcher.go", "scanOnce", "ListPackagingAllocations", nil, err)
		return
	}

	cutoff := time.Now().Add(-d.Threshold)
	for _, row := range rows {
		enteredAt, err := models.StageEnteredAt(db.WithContext(ctx), row.OrganizationId, row.ItemId, row.StageId, row.SubStageId)
		if err != nil {
			config.LogError(d.Logger, "reminderDispatcher.go", "scanOnce", "StageEnteredAt", row, err)
			continue
		}
		if enteredAt == nil || enteredAt.After(cutoff) {
			continue
		}

		reminder := models.PackagingReminder{
			OrganizationId: row.OrganizationId,
			ItemId:         row.ItemId,
			StageId:        row.StageId,
			Quantity:       row.Quantity,
			StageEnteredAt: *enteredAt,
			Status:         models.ReminderStatusPending,
			CorrelationId:  uuid.NewString(),
		}
		created, err := models.RecordPackagingReminder(db.WithContext(ctx), &reminder)
		if err != nil {
			config.LogError(d.Logger, "reminderDispatcher.go", "scanOnce", "RecordPackagingReminder", row, err)
			continue
		}
		if created {
			d.Logger.WithFields(logrus.Fields{
				"dispatcher_id":   d.DispatcherID,
				"organization_id": row.OrganizationId,
				"item_id":         row.ItemId,
				"stage_id":        row.StageId,
				"quantity":        row.Quantity,
			}).Info("packaging reminder recorded")
		}
	}
}

// dispatchOnce publishes pending outbox rows. MarkReminderPublished is
// conditional on Pending, so two dispatcher instances racing on the same row
// publish at-least-once but flip it exactly once.
func (d *ReminderDispatcher) dispatchOnce(ctx context.Context) {
	pending, err := models.ListPendingReminders(ctx, d.BatchSize)
	if err != nil {
		config.LogError(d.Logger, "reminderDispatcher.go", "dispatchOnce", "ListPendingReminders", nil, err)
		return
	}

	for _, reminder := range pending {
		msg := d.buildMessage(ctx, reminder)
		msgId, err := config.PublishReminder(ctx, msg)
		if err != nil {
			config.LogError(d.Logger, "reminderDispatcher.go", "dispatchOnce", "PublishReminder", reminder.ID, err)
			continue
		}
		if err := models.MarkReminderPublished(ctx, reminder.ID); err != nil {
			config.LogError(d.Logger, "reminderDispatcher.go", "dispatchOnce", "MarkReminderPublished", reminder.ID, err)
			continue
		}
		d.Logger.WithFields(logrus.Fields{
			"dispatcher_id":     d.DispatcherID,
			"reminder_id":       reminder.ID,
			"pubsub_message_id": msgId,
		}).Info("packaging reminder published")
	}
}

func (d *ReminderDispatcher) buildMessage(ctx context.Context, reminder *models.PackagingReminder) config.ReminderMessage {
	msg := config.ReminderMessage{
		ID:             reminder.ID,
		OrganizationId: reminder.OrganizationId,
		ItemId:         reminder.ItemId,
		StageId:        reminder.StageId,
		Quantity:       reminder.Quantity,
		StageEnteredAt: reminder.StageEnteredAt,
		CorrelationId:  reminder.CorrelationId,
	}
	// enrichment is best-effort; the consumer can resolve names itself
	var item models.Item
	if err := d.DB.WithContext(ctx).First(&item, reminder.ItemId).Error; err == nil {
		msg.Sku = item.Sku
	}
	var stage models.WorkflowStage
	if err := d.DB.WithContext(ctx).First(&stage, reminder.StageId).Error; err == nil {
		msg.StageName = stage.Name
	}
	return msg
}
