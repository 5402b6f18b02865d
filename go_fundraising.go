package go_fundraising

import (
	db2 "github.com/PayRam/go-fundraising/internal/db"
	"github.com/PayRam/go-fundraising/internal/serviceimpl"
	"github.com/PayRam/go-fundraising/response"
	"github.com/PayRam/go-fundraising/service"
	"gorm.io/gorm"
	"log"
	"time"
)

type FundraisingService struct {
	Campaigns service.CampaignService
	Worker    service.Worker
	DevMode   bool
}

type options struct {
	cfg     serviceimpl.Config
	devMode bool
}

type Option func(*options)

// WithCache replaces the in-process cache, e.g. with a shared one.
func WithCache(c service.Cache) Option {
	return func(o *options) { o.cfg.Cache = c }
}

func WithMessenger(m service.Messenger) Option {
	return func(o *options) { o.cfg.Messenger = m }
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.cfg.Logger = l }
}

// WithClock overrides time.Now for every time-dependent decision.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.cfg.Now = now }
}

// WithLocation sets the timezone used for tenants without one of their own.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.cfg.Location = loc }
}

func WithCacheTTL(campaign, dashboard time.Duration) Option {
	return func(o *options) {
		o.cfg.CampaignTTL = campaign
		o.cfg.DashboardTTL = dashboard
	}
}

// WithJobLimits bounds each tenant's share of a job run and the number of tenants
// processed at once.
func WithJobLimits(tenantTimeout time.Duration, concurrency int) Option {
	return func(o *options) {
		o.cfg.TenantJobTimeout = tenantTimeout
		o.cfg.JobConcurrency = concurrency
	}
}

func WithDevMode(dev bool) Option {
	return func(o *options) { o.devMode = dev }
}

// NewFundraisingService migrates db and wires the campaign service and the worker.
func NewFundraisingService(db *gorm.DB, opts ...Option) *FundraisingService {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	db2.Migrate(db)
	campaigns := serviceimpl.NewCampaignService(db, o.cfg)
	return &FundraisingService{
		Campaigns: campaigns,
		Worker:    serviceimpl.NewWorkerService(db, campaigns, o.cfg),
		DevMode:   o.devMode,
	}
}

// ErrorResponse maps err to the stable code and message exposed to callers.
func (f *FundraisingService) ErrorResponse(err error) response.ErrorResponse {
	return service.ToErrorResponse(err, f.DevMode)
}
