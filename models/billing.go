package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/exportflow_backend/config"
	"bitbucket.org/mmdatafocus/exportflow_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Subscription struct {
	ID               int                `gorm:"primary_key" json:"id"`
	OrganizationId   string             `gorm:"uniqueIndex;size:36;not null" json:"organization_id"`
	Plan             SubscriptionPlan   `gorm:"type:enum('Trial','Standard','Premium');default:Trial" json:"plan"`
	Status           SubscriptionStatus `gorm:"type:enum('Trialing','Active','PastDue','Canceled');default:Trialing" json:"status"`
	MonthlyPrice     decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"monthly_price"`
	CurrentPeriodEnd time.Time          `json:"current_period_end"`
	CreatedAt        time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s Subscription) GetOrganizationId() string { return s.OrganizationId }

type BillingInvoice struct {
	ID             int             `gorm:"primary_key" json:"id"`
	OrganizationId string          `gorm:"index;size:36;not null" json:"organization_id"`
	InvoiceNumber  string          `gorm:"size:50;not null" json:"invoice_number"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Status         InvoiceStatus   `gorm:"type:enum('Issued','Paid','Overdue');default:Issued" json:"status"`
	DueDate        time.Time       `json:"due_date"`
	PaidAt         *time.Time      `json:"paid_at"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (i BillingInvoice) GetOrganizationId() string { return i.OrganizationId }

const trialDays = 14

func planPrice(plan SubscriptionPlan) decimal.Decimal {
	switch plan {
	case SubscriptionPlanStandard:
		return decimal.NewFromInt(49)
	case SubscriptionPlanPremium:
		return decimal.NewFromInt(99)
	default:
		return decimal.Zero
	}
}

func createTrialSubscription(tx *gorm.DB, organizationId string) error {
	subscription := Subscription{
		OrganizationId:   organizationId,
		Plan:             SubscriptionPlanTrial,
		Status:           SubscriptionStatusTrialing,
		MonthlyPrice:     decimal.Zero,
		CurrentPeriodEnd: time.Now().AddDate(0, 0, trialDays),
	}
	return tx.Create(&subscription).Error
}

func GetSubscription(ctx context.Context) (*Subscription, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	db := config.GetDB()
	var subscription Subscription
	err := db.WithContext(ctx).
		Where("organization_id = ?", organizationId).
		First(&subscription).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

// ChangeSubscriptionPlan switches the plan, activates the subscription and
// issues the first invoice of the new period. Payment capture is external;
// this only tracks the ledger.
func ChangeSubscriptionPlan(ctx context.Context, plan SubscriptionPlan) (*Subscription, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if err := requireManagerRole(ctx); err != nil {
		return nil, err
	}
	switch plan {
	case SubscriptionPlanStandard, SubscriptionPlanPremium:
	default:
		return nil, errors.New("invalid plan")
	}

	subscription, err := GetSubscription(ctx)
	if err != nil {
		return nil, err
	}

	price := planPrice(plan)
	periodEnd := time.Now().AddDate(0, 1, 0)

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(subscription).Updates(map[string]interface{}{
			"Plan":             plan,
			"Status":           SubscriptionStatusActive,
			"MonthlyPrice":     price,
			"CurrentPeriodEnd": periodEnd,
		}).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&BillingInvoice{}).
			Where("organization_id = ?", organizationId).
			Count(&count).Error; err != nil {
			return err
		}
		invoice := BillingInvoice{
			OrganizationId: organizationId,
			InvoiceNumber:  fmt.Sprintf("INV-%s-%04d", time.Now().Format("200601"), count+1),
			Amount:         price,
			Status:         InvoiceStatusIssued,
			DueDate:        time.Now().AddDate(0, 0, 7),
		}
		return tx.Create(&invoice).Error
	})
	if err != nil {
		return nil, err
	}

	subscription.Plan = plan
	subscription.Status = SubscriptionStatusActive
	subscription.MonthlyPrice = price
	subscription.CurrentPeriodEnd = periodEnd
	if err := utils.RemoveRedisList[BillingInvoice](organizationId); err != nil {
		return nil, err
	}
	return subscription, nil
}

func CancelSubscription(ctx context.Context) (*Subscription, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if err := requireManagerRole(ctx); err != nil {
		return nil, err
	}

	subscription, err := GetSubscription(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(subscription).
		Update("status", SubscriptionStatusCanceled).Error; err != nil {
		return nil, err
	}
	subscription.Status = SubscriptionStatusCanceled
	return subscription, nil
}

func MarkInvoicePaid(ctx context.Context, invoiceId int) (*BillingInvoice, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if err := requireManagerRole(ctx); err != nil {
		return nil, err
	}

	invoice, err := utils.FetchModel[BillingInvoice](ctx, organizationId, invoiceId)
	if err != nil {
		return nil, err
	}
	if invoice.Status == InvoiceStatusPaid {
		return nil, errors.New("invoice already paid")
	}

	now := time.Now()
	db := config.GetDB()
	err = db.WithContext(ctx).Model(invoice).Updates(map[string]interface{}{
		"Status": InvoiceStatusPaid,
		"PaidAt": &now,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[BillingInvoice](organizationId); err != nil {
		return nil, err
	}
	return invoice, nil
}

// ListBillingInvoices reads through the redis list cache; the invoice writers
// evict it.
func ListBillingInvoices(ctx context.Context) ([]*BillingInvoice, error) {
	return ListAllResource[BillingInvoice](ctx, "created_at DESC")
}
