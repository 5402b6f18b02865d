package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"time"
)

type BaseModel struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"index" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Tenant is an isolated organization. The table is global: it is the registry the
// scheduled jobs iterate over, so it carries no tenant_id of its own.
type Tenant struct {
	ID        string    `gorm:"primaryKey;size:100" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Status    string    `gorm:"size:50;default:'active';index" json:"status"` // active, suspended
	Timezone  string    `gorm:"size:64" json:"timezone"`                     // IANA name, empty means the deployment default
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Tenant) TableName() string {
	return "tenants"
}

const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
)

// Product is an entry of the shared catalog. Global table.
type Product struct {
	BaseModel
	Key          string           `gorm:"size:100;not null;uniqueIndex" json:"key"`
	Name         string           `gorm:"size:255;not null" json:"name"`
	Unit         string           `gorm:"size:50;not null" json:"unit"`
	DefaultPrice *decimal.Decimal `gorm:"type:decimal(38,18)" json:"defaultPrice"`
}

func (Product) TableName() string {
	return "products"
}

const (
	RoleSuperAdmin  = "super_admin"
	RoleAdmin       = "admin"
	RoleCoordinator = "coordinator"
	RoleVolunteer   = "volunteer"
	RoleSystem      = "system"
)

type User struct {
	BaseModel
	TenantID    string  `gorm:"size:100;not null;index" json:"tenantId"`
	Name        string  `gorm:"size:255;not null" json:"name"`
	Role        string  `gorm:"size:50;not null;index" json:"role"`
	Email       *string `gorm:"size:255" json:"email"`
	Phone       *string `gorm:"size:50" json:"phone"`
	DeviceToken *string `gorm:"size:255" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// Contribution is one applied donation item. Rows are append-only and form the
// ledger the progress sync rebuilds current_progress from.
type Contribution struct {
	BaseModel
	TenantID   string          `gorm:"size:100;not null;index" json:"tenantId"`
	CampaignID uint            `gorm:"not null;index" json:"campaignId"`
	DonationID string          `gorm:"size:36;not null;index" json:"donationId"`
	ProductKey string          `gorm:"size:100;not null;index" json:"productKey"`
	Quantity   decimal.Decimal `gorm:"type:decimal(38,18);not null" json:"quantity"`
	Unit       string          `gorm:"size:50" json:"unit"`
	OccurredAt time.Time       `gorm:"not null;index" json:"occurredAt"`
}

func (Contribution) TableName() string {
	return "campaign_contributions"
}

const (
	ReportKindWeekly  = "weekly"
	ReportKindMonthly = "monthly"
)

// TenantReport marks a periodic report as dispatched for one tenant and period.
type TenantReport struct {
	BaseModel
	TenantID       string          `gorm:"size:100;not null;uniqueIndex:idx_tenant_report_period" json:"tenantId"`
	Kind           string          `gorm:"size:20;not null;uniqueIndex:idx_tenant_report_period" json:"kind"`
	PeriodStart    time.Time       `gorm:"not null;uniqueIndex:idx_tenant_report_period" json:"periodStart"`
	PeriodEnd      time.Time       `gorm:"not null" json:"periodEnd"`
	CampaignsCount int64           `json:"campaignsCount"`
	RaisedAmount   decimal.Decimal `gorm:"type:decimal(38,18)" json:"raisedAmount"`
	TargetFamilies int64           `json:"targetFamilies"`
	Sent           int             `json:"sent"`
	Failed         int             `json:"failed"`
}

func (TenantReport) TableName() string {
	return "tenant_reports"
}
