package service

import (
	"context"
	"github.com/PayRam/go-fundraising/models"
	"github.com/PayRam/go-fundraising/request"
	"github.com/PayRam/go-fundraising/response"
	"time"
)

// Actor is the already-verified identity behind an inbound call.
type Actor struct {
	UserID   uint
	TenantID string
	Role     string
}

// SystemActor is used by scheduled jobs acting without an inbound request.
func SystemActor(tenantID string) Actor {
	return Actor{TenantID: tenantID, Role: models.RoleSystem}
}

// CampaignService handles campaign lifecycle, donations and reads
type CampaignService interface {
	CreateCampaign(ctx context.Context, actor Actor, req request.CreateCampaignRequest) (*models.Campaign, error)
	GetCampaign(ctx context.Context, tenantID string, id uint) (*models.Campaign, error)
	ListCampaigns(ctx context.Context, tenantID string, req request.GetCampaignsRequest) (*response.CampaignList, error)
	UpdateCampaign(ctx context.Context, actor Actor, id uint, req request.UpdateCampaignRequest) (*models.Campaign, error)
	ActivateCampaign(ctx context.Context, actor Actor, id uint) (*models.Campaign, error)
	CompleteCampaign(ctx context.Context, actor Actor, id uint) (*models.Campaign, *response.CompletionReport, error)
	CancelCampaign(ctx context.Context, actor Actor, id uint, reason *string) (*models.Campaign, error)
	ProcessDonation(ctx context.Context, tenantID string, id uint, items []request.DonationItem) (*models.Campaign, error)
	RecordFamiliesHelped(ctx context.Context, actor Actor, id uint, count int) (*models.Campaign, error)
	GetProductProgress(ctx context.Context, tenantID string, id uint) ([]models.ProductProgress, error)
	RecalculateProgress(ctx context.Context, tenantID string, id uint) (*models.Campaign, error)
	Dashboard(ctx context.Context, tenantID string) (*response.Dashboard, error)
}

// Job names reported in JobResult and used to register and invoke the jobs.
const (
	JobProgressSync        = "progress-sync"
	JobExpirationSweep     = "expiration-sweep"
	JobExpirationReminders = "expiration-reminders"
	JobWeeklyReport        = "weekly-report"
	JobMonthlyReport       = "monthly-report"
)

type JobResult struct {
	Job       string `json:"job"`
	Tenants   int    `json:"tenants"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

// Worker runs the reconciliation jobs. Every job is safe to invoke out of band.
type Worker interface {
	SyncProgress(ctx context.Context) (JobResult, error)
	SweepExpired(ctx context.Context) (JobResult, error)
	SendExpirationReminders(ctx context.Context) (JobResult, error)
	SendWeeklyReports(ctx context.Context) (JobResult, error)
	SendMonthlyReports(ctx context.Context) (JobResult, error)
}

// Cache is a best-effort accelerator; the store stays the source of truth.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

const (
	EventCampaignActivated = "campaign_activated"
	EventCampaignCompleted = "campaign_completed"
	EventCampaignCancelled = "campaign_cancelled"
	EventMilestoneReached  = "campaign_milestone"
	EventCampaignsExpired  = "campaigns_expired"
	EventExpirationNotice  = "campaign_expiring"
	EventWeeklyReport      = "weekly_report"
	EventMonthlyReport     = "monthly_report"
)

type Recipient struct {
	UserID      uint
	Name        string
	Email       *string
	Phone       *string
	DeviceToken *string
}

type Notification struct {
	TenantID     string
	EventType    string
	Recipients   []Recipient
	TemplateData map[string]interface{}
}

type DispatchResult struct {
	Sent   int
	Failed int
}

// Messenger delivers notifications. Failures never abort the triggering operation.
type Messenger interface {
	Dispatch(ctx context.Context, n Notification) (DispatchResult, error)
}
