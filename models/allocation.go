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

// ItemStageAllocation records how many units of an item currently sit at a
// (stage, sub-stage) position. One row per item+position; rows never hold
// zero quantity (they are deleted instead).
type ItemStageAllocation struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"index;size:36;not null" json:"organization_id"`
	ItemId         int       `gorm:"uniqueIndex:idx_item_position;not null" json:"item_id"`
	StageId        int       `gorm:"uniqueIndex:idx_item_position;index;not null" json:"stage_id"`
	SubStageId     *int      `gorm:"uniqueIndex:idx_item_position;index" json:"sub_stage_id"`
	Quantity       int       `gorm:"not null" json:"quantity"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a ItemStageAllocation) GetOrganizationId() string { return a.OrganizationId }

// FetchAllocationForUpdate loads the allocation row at a position with a row
// lock, so concurrent movers of the same allocation serialize inside the
// transaction. Returns nil (no error) when the item has nothing at the position.
func FetchAllocationForUpdate(tx *gorm.DB, organizationId string, itemId int, stageId int, subStageId *int) (*ItemStageAllocation, error) {
	var alloc ItemStageAllocation
	q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("organization_id = ? AND item_id = ? AND stage_id = ?", organizationId, itemId, stageId)
	if subStageId == nil {
		q = q.Where("sub_stage_id IS NULL")
	} else {
		q = q.Where("sub_stage_id = ?", *subStageId)
	}
	err := q.First(&alloc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &alloc, nil
}

// DecrementAllocation reduces the row by quantity with a conditional update so
// a concurrent move that already drained the row surfaces as zero rows
// affected instead of a negative ledger. Deletes the row when it reaches zero.
func DecrementAllocation(tx *gorm.DB, alloc *ItemStageAllocation, quantity int) (bool, error) {
	res := tx.Model(&ItemStageAllocation{}).
		Where("id = ? AND quantity >= ?", alloc.ID, quantity).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", quantity))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	// no zero-quantity rows persist
	if err := tx.Where("id = ? AND quantity = 0", alloc.ID).
		Delete(&ItemStageAllocation{}).Error; err != nil {
		return false, err
	}
	return true, nil
}

// IncrementAllocation merges quantity into the destination row, creating it if
// the item has nothing there yet.
func IncrementAllocation(tx *gorm.DB, organizationId string, itemId int, stageId int, subStageId *int, quantity int) error {
	alloc, err := FetchAllocationForUpdate(tx, organizationId, itemId, stageId, subStageId)
	if err != nil {
		return err
	}
	if alloc == nil {
		return tx.Create(&ItemStageAllocation{
			OrganizationId: organizationId,
			ItemId:         itemId,
			StageId:        stageId,
			SubStageId:     subStageId,
			Quantity:       quantity,
		}).Error
	}
	return tx.Model(&ItemStageAllocation{}).
		Where("id = ?", alloc.ID).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", quantity)).Error
}

// AllocatedQuantity sums all allocation rows of an item.
func AllocatedQuantity(tx *gorm.DB, organizationId string, itemId int) (int, error) {
	var total *int
	err := tx.Model(&ItemStageAllocation{}).
		Where("organization_id = ? AND item_id = ?", organizationId, itemId).
		Select("sum(quantity)").Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return utils.DereferencePtr(total), nil
}

// NewPoolQuantity is the quantity of an item that has not entered the
// workflow yet: total minus everything currently allocated.
func NewPoolQuantity(tx *gorm.DB, organizationId string, item *Item) (int, error) {
	allocated, err := AllocatedQuantity(tx, organizationId, item.ID)
	if err != nil {
		return 0, err
	}
	return item.TotalQuantity - allocated, nil
}

func ListItemAllocations(ctx context.Context, itemId int) ([]*ItemStageAllocation, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	db := config.GetDB()
	var results []*ItemStageAllocation
	err := db.WithContext(ctx).
		Where("organization_id = ? AND item_id = ?", organizationId, itemId).
		Order("stage_id, sub_stage_id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListStageAllocations returns every allocation currently sitting at a stage,
// for stage dashboards and the packaging-reminder scan.
func ListStageAllocations(ctx context.Context, stageId int) ([]*ItemStageAllocation, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	db := config.GetDB()
	var results []*ItemStageAllocation
	err := db.WithContext(ctx).
		Where("organization_id = ? AND stage_id = ?", organizationId, stageId).
		Order("item_id, sub_stage_id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
