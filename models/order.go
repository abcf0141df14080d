package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/exportflow_backend/config"
	"bitbucket.org/mmdatafocus/exportflow_backend/utils"
)

type ExportOrder struct {
	ID                 int         `gorm:"primary_key" json:"id"`
	OrganizationId     string      `gorm:"index;size:36;not null" json:"organization_id"`
	OrderNumber        string      `gorm:"size:50;not null" json:"order_number" binding:"required"`
	BuyerName          string      `gorm:"size:100;not null" json:"buyer_name" binding:"required"`
	DestinationCountry string      `gorm:"size:100" json:"destination_country"`
	Status             OrderStatus `gorm:"type:enum('Open','InProgress','Shipped','Closed');default:Open" json:"status"`
	ShipmentDate       *time.Time  `json:"shipment_date"`
	Notes              string      `gorm:"type:text" json:"notes"`
	Items              []*Item     `gorm:"foreignKey:OrderId" json:"items,omitempty"`
	CreatedAt          time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o ExportOrder) GetOrganizationId() string { return o.OrganizationId }

type NewExportOrder struct {
	OrderNumber        string     `json:"order_number" binding:"required"`
	BuyerName          string     `json:"buyer_name" binding:"required"`
	DestinationCountry string     `json:"destination_country"`
	ShipmentDate       *time.Time `json:"shipment_date"`
	Notes              string     `json:"notes"`
}

func (input *NewExportOrder) validate(ctx context.Context, organizationId string, id int) error {
	return utils.ValidateUnique[ExportOrder](ctx, organizationId, "order_number", input.OrderNumber, id)
}

func CreateExportOrder(ctx context.Context, input *NewExportOrder) (*ExportOrder, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	if err := input.validate(ctx, organizationId, 0); err != nil {
		return nil, err
	}

	order := ExportOrder{
		OrganizationId:     organizationId,
		OrderNumber:        input.OrderNumber,
		BuyerName:          input.BuyerName,
		DestinationCountry: input.DestinationCountry,
		Status:             OrderStatusOpen,
		ShipmentDate:       input.ShipmentDate,
		Notes:              input.Notes,
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func UpdateExportOrder(ctx context.Context, id int, input *NewExportOrder) (*ExportOrder, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	if err := input.validate(ctx, organizationId, id); err != nil {
		return nil, err
	}

	order, err := utils.FetchModel[ExportOrder](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(order).Updates(map[string]interface{}{
		"OrderNumber":        input.OrderNumber,
		"BuyerName":          input.BuyerName,
		"DestinationCountry": input.DestinationCountry,
		"ShipmentDate":       input.ShipmentDate,
		"Notes":              input.Notes,
	}).Error
	if err != nil {
		return nil, err
	}
	return order, nil
}

func UpdateExportOrderStatus(ctx context.Context, id int, status OrderStatus) (*ExportOrder, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	switch status {
	case OrderStatusOpen, OrderStatusInProgress, OrderStatusShipped, OrderStatusClosed:
	default:
		return nil, errors.New("invalid order status")
	}

	order, err := utils.FetchModel[ExportOrder](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(order).Update("status", status).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func DeleteExportOrder(ctx context.Context, id int) (*ExportOrder, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	order, err := utils.FetchModel[ExportOrder](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	// orders with items cannot be deleted; items own ledger rows
	var count int64
	if err := db.WithContext(ctx).Model(&Item{}).
		Where("order_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("order has items")
	}

	if err := db.WithContext(ctx).Delete(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func GetExportOrder(ctx context.Context, id int) (*ExportOrder, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	return utils.FetchModel[ExportOrder](ctx, organizationId, id, "Items")
}

func ListExportOrders(ctx context.Context, status *OrderStatus, buyerName *string) ([]*ExportOrder, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	db := config.GetDB()
	var results []*ExportOrder

	dbCtx := db.WithContext(ctx).Where("organization_id = ?", organizationId)
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if buyerName != nil && len(*buyerName) > 0 {
		dbCtx = dbCtx.Where("buyer_name LIKE ?", "%"+*buyerName+"%")
	}
	err := dbCtx.Order("created_at DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
