package models

type ItemStatus string

const (
	ItemStatusNew        ItemStatus = "New"
	ItemStatusInProgress ItemStatus = "InProgress"
	ItemStatusCompleted  ItemStatus = "Completed"
)

type OrderStatus string

const (
	OrderStatusOpen       OrderStatus = "Open"
	OrderStatusInProgress OrderStatus = "InProgress"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusClosed     OrderStatus = "Closed"
)

type ProfileRole string

const (
	ProfileRoleOwner  ProfileRole = "Owner"
	ProfileRoleAdmin  ProfileRole = "Admin"
	ProfileRoleMember ProfileRole = "Member"
)

// CanManage reports whether the role may change workflow settings,
// team membership and billing.
func (r ProfileRole) CanManage() bool {
	return r == ProfileRoleOwner || r == ProfileRoleAdmin
}

type SubscriptionPlan string

const (
	SubscriptionPlanTrial    SubscriptionPlan = "Trial"
	SubscriptionPlanStandard SubscriptionPlan = "Standard"
	SubscriptionPlanPremium  SubscriptionPlan = "Premium"
)

type SubscriptionStatus string

const (
	SubscriptionStatusTrialing SubscriptionStatus = "Trialing"
	SubscriptionStatusActive   SubscriptionStatus = "Active"
	SubscriptionStatusPastDue  SubscriptionStatus = "PastDue"
	SubscriptionStatusCanceled SubscriptionStatus = "Canceled"
)

type InvoiceStatus string

const (
	InvoiceStatusIssued  InvoiceStatus = "Issued"
	InvoiceStatusPaid    InvoiceStatus = "Paid"
	InvoiceStatusOverdue InvoiceStatus = "Overdue"
)

type ReminderStatus string

const (
	ReminderStatusPending   ReminderStatus = "Pending"
	ReminderStatusPublished ReminderStatus = "Published"
)
