package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/exportflow_backend/config"
	"bitbucket.org/mmdatafocus/exportflow_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Item is one SKU line of an export order. TotalQuantity is immutable after
// creation; RemainingQuantity only decreases, when quantity reaches the
// terminal stage.
type Item struct {
	ID                int             `gorm:"primary_key" json:"id"`
	OrganizationId    string          `gorm:"index;size:36;not null" json:"organization_id"`
	OrderId           int             `gorm:"index;not null" json:"order_id"`
	Sku               string          `gorm:"size:100;not null" json:"sku" binding:"required"`
	Name              string          `gorm:"size:255" json:"name"`
	TotalQuantity     int             `gorm:"not null" json:"total_quantity" binding:"required"`
	RemainingQuantity int             `gorm:"not null" json:"remaining_quantity"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	Status            ItemStatus      `gorm:"type:enum('New','InProgress','Completed');default:New" json:"status"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i Item) GetOrganizationId() string { return i.OrganizationId }

type NewItem struct {
	OrderId       int    `json:"order_id" binding:"required"`
	Sku           string `json:"sku" binding:"required"`
	Name          string `json:"name"`
	TotalQuantity int    `json:"total_quantity" binding:"required,gt=0"`
	UnitPrice     string `json:"unit_price"`
}

func CreateItem(ctx context.Context, input *NewItem) (*Item, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	if input.TotalQuantity <= 0 {
		return nil, errors.New("total quantity must be a positive integer")
	}
	// check if order is not owned by other organization
	if err := utils.ValidateResourceId[ExportOrder](ctx, organizationId, input.OrderId); err != nil {
		return nil, errors.New("order not found")
	}

	unitPrice := decimal.Zero
	if input.UnitPrice != "" {
		var err error
		unitPrice, err = utils.ParseDecimal(input.UnitPrice)
		if err != nil {
			return nil, errors.New("invalid unit price")
		}
	}

	item := Item{
		OrganizationId:    organizationId,
		OrderId:           input.OrderId,
		Sku:               input.Sku,
		Name:              input.Name,
		TotalQuantity:     input.TotalQuantity,
		RemainingQuantity: input.TotalQuantity,
		UnitPrice:         unitPrice,
		Status:            ItemStatusNew,
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

type UpdateItemInput struct {
	Sku       string `json:"sku" binding:"required"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
}

// UpdateItem edits descriptive fields only. TotalQuantity is immutable;
// RemainingQuantity and Status belong to the reconciler.
func UpdateItem(ctx context.Context, id int, input *UpdateItemInput) (*Item, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	item, err := utils.FetchModel[Item](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"Sku":  input.Sku,
		"Name": input.Name,
	}
	if input.UnitPrice != "" {
		unitPrice, err := utils.ParseDecimal(input.UnitPrice)
		if err != nil {
			return nil, errors.New("invalid unit price")
		}
		updates["UnitPrice"] = unitPrice
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(item).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Item](id); err != nil {
		return nil, err
	}
	return item, nil
}

func DeleteItem(ctx context.Context, id int) (*Item, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	item, err := utils.FetchModel[Item](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&ItemMovementHistory{}).
		Where("organization_id = ? AND item_id = ?", organizationId, id).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("item has movement history")
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("organization_id = ? AND item_id = ?", organizationId, id).
			Delete(&ItemStageAllocation{}).Error; err != nil {
			return err
		}
		return tx.Delete(item).Error
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Item](id); err != nil {
		return nil, err
	}
	return item, nil
}

// GetItem reads through the redis cache. Writers that touch the item row
// (edits, deletes, movements) evict the entry.
func GetItem(ctx context.Context, id int) (*Item, error) {
	return GetResource[Item](ctx, id)
}

func ListItems(ctx context.Context, orderId *int, status *ItemStatus) ([]*Item, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	db := config.GetDB()
	var results []*Item

	dbCtx := db.WithContext(ctx).Where("organization_id = ?", organizationId)
	if orderId != nil && *orderId > 0 {
		dbCtx = dbCtx.Where("order_id = ?", *orderId)
	}
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	err := dbCtx.Order("created_at DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FetchItemForUpdate loads an item with a row lock inside a movement
// transaction.
func FetchItemForUpdate(tx *gorm.DB, organizationId string, id int) (*Item, error) {
	var item Item
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("organization_id = ?", organizationId).
		First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CompleteItemQuantity decrements RemainingQuantity after a forward move into
// the terminal stage. Conditional so a concurrent completion cannot push the
// remainder negative; flips Status to Completed at zero.
func CompleteItemQuantity(tx *gorm.DB, item *Item, quantity int) (bool, error) {
	res := tx.Model(&Item{}).
		Where("id = ? AND remaining_quantity >= ?", item.ID, quantity).
		UpdateColumn("remaining_quantity", gorm.Expr("remaining_quantity - ?", quantity))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if err := tx.Model(&Item{}).
		Where("id = ? AND remaining_quantity = 0", item.ID).
		Update("status", ItemStatusCompleted).Error; err != nil {
		return false, err
	}
	return true, nil
}

// MarkItemInProgress is called on the first hop out of the new pool.
func MarkItemInProgress(tx *gorm.DB, itemId int) error {
	return tx.Model(&Item{}).
		Where("id = ? AND status = ?", itemId, ItemStatusNew).
		Update("status", ItemStatusInProgress).Error
}
