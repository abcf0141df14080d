package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/exportflow_backend/config"
	"bitbucket.org/mmdatafocus/exportflow_backend/utils"
	"gorm.io/gorm"
)

// ItemMovementHistory is the append-only ledger of quantity transitions.
// FromStageId is null only for the first hop out of an item's unallocated
// pool. A non-null ReworkReason marks a rework hop; null marks forward
// progress.
type ItemMovementHistory struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"index;size:36;not null" json:"organization_id"`
	ItemId         int       `gorm:"index;not null" json:"item_id"`
	FromStageId    *int      `gorm:"index" json:"from_stage_id"`
	FromSubStageId *int      `json:"from_sub_stage_id"`
	ToStageId      int       `gorm:"index;not null" json:"to_stage_id"`
	ToSubStageId   *int      `json:"to_sub_stage_id"`
	Quantity       int       `gorm:"not null" json:"quantity"`
	ReworkReason   *string   `gorm:"size:500" json:"rework_reason"`
	MovedBy        int       `gorm:"index;not null" json:"moved_by"`
	MovedAt        time.Time `gorm:"autoCreateTime;index" json:"moved_at"`
}

func (h ItemMovementHistory) GetOrganizationId() string { return h.OrganizationId }

func ListItemMovements(ctx context.Context, itemId int) ([]*ItemMovementHistory, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	db := config.GetDB()
	var results []*ItemMovementHistory
	err := db.WithContext(ctx).
		Where("organization_id = ? AND item_id = ?", organizationId, itemId).
		Order("moved_at DESC, id DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListReworkMovements lists rework hops across the organization, newest first,
// for bottleneck reporting.
func ListReworkMovements(ctx context.Context, limit int) ([]*ItemMovementHistory, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	db := config.GetDB()
	var results []*ItemMovementHistory
	err := db.WithContext(ctx).
		Where("organization_id = ? AND rework_reason IS NOT NULL", organizationId).
		Order("moved_at DESC, id DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// StageEnteredAt returns when quantity last arrived at the given position for
// an item: the MovedAt of the most recent history entry whose destination
// matches. This is the source of truth for "how long has this been sitting
// here" (packaging reminders, bottleneck views).
func StageEnteredAt(tx *gorm.DB, organizationId string, itemId int, stageId int, subStageId *int) (*time.Time, error) {
	var entry ItemMovementHistory
	q := tx.Where("organization_id = ? AND item_id = ? AND to_stage_id = ?", organizationId, itemId, stageId)
	if subStageId == nil {
		q = q.Where("to_sub_stage_id IS NULL")
	} else {
		q = q.Where("to_sub_stage_id = ?", *subStageId)
	}
	err := q.Order("moved_at DESC, id DESC").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry.MovedAt, nil
}
