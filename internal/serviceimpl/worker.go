package serviceimpl

import (
	"context"
	"errors"
	"fmt"
	"github.com/PayRam/go-fundraising/internal/tenant"
	"github.com/PayRam/go-fundraising/models"
	"github.com/PayRam/go-fundraising/service"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"log"
	"sync"
	"time"
)

const reminderWindowDays = 3

type worker struct {
	DB          *gorm.DB
	campaigns   *campaignService
	notifier    *notifier
	logger      *log.Logger
	now         func() time.Time
	location    *time.Location
	timeout     time.Duration
	concurrency int
}

var _ service.Worker = &worker{}

func NewWorkerService(db *gorm.DB, campaigns *campaignService, cfg Config) service.Worker {
	cfg = cfg.withDefaults()
	return &worker{
		DB:          db,
		campaigns:   campaigns,
		notifier:    campaigns.notifier,
		logger:      cfg.Logger,
		now:         cfg.Now,
		location:    cfg.Location,
		timeout:     cfg.TenantJobTimeout,
		concurrency: cfg.JobConcurrency,
	}
}

// tenantJob processes one tenant and reports how many items it handled and how many failed.
type tenantJob func(ctx context.Context, scope *tenant.Scope, t models.Tenant) (processed, failed int)

// forEachTenant runs fn for every active tenant with a bounded fan-out. Each tenant
// gets its own deadline; a failing or panicking tenant never stops the others.
func (w *worker) forEachTenant(ctx context.Context, job string, fn tenantJob) (service.JobResult, error) {
	result := service.JobResult{Job: job}
	tenants, err := tenant.ActiveTenants(ctx, w.DB)
	if err != nil {
		return result, err
	}
	result.Tenants = len(tenants)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, w.concurrency)
	)
	for _, t := range tenants {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(t models.Tenant) {
			defer wg.Done()
			defer func() { <-sem }()

			processed, failed := 0, 0
			defer func() {
				if r := recover(); r != nil {
					w.logger.Printf("job=%s tenant=%s: panic: %v", job, t.ID, r)
					failed++
				}
				mu.Lock()
				result.Processed += processed
				result.Failed += failed
				mu.Unlock()
			}()

			tctx, cancel := context.WithTimeout(ctx, w.timeout)
			defer cancel()
			scope, err := tenant.New(w.DB, t.ID)
			if err != nil {
				w.logger.Printf("job=%s tenant=%s: %v", job, t.ID, err)
				failed++
				return
			}
			processed, failed = fn(tctx, scope.WithContext(tctx), t)
			if tctx.Err() == context.DeadlineExceeded {
				w.logger.Printf("job=%s tenant=%s: deadline exceeded after %s", job, t.ID, w.timeout)
			}
		}(t)
	}
	wg.Wait()

	w.logger.Printf("job=%s finished: tenants=%d processed=%d failed=%d", job, result.Tenants, result.Processed, result.Failed)
	return result, ctx.Err()
}

func (w *worker) tenantLocation(t models.Tenant) *time.Location {
	if t.Timezone == "" {
		return w.location
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		w.logger.Printf("tenant=%s: unknown timezone %q, using %s", t.ID, t.Timezone, w.location)
		return w.location
	}
	return loc
}

func activeCampaigns(scope *tenant.Scope) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	if err := scope.Find(&campaigns, tenant.Eq("status", models.CampaignStatusActive)); err != nil {
		return nil, fmt.Errorf("failed to list active campaigns: %w", err)
	}
	return campaigns, nil
}

// SyncProgress rebuilds every active campaign's progress from its ledger and
// completes those that have met their target. Processed counts corrected campaigns.
func (w *worker) SyncProgress(ctx context.Context) (service.JobResult, error) {
	return w.forEachTenant(ctx, service.JobProgressSync, func(ctx context.Context, scope *tenant.Scope, t models.Tenant) (int, int) {
		campaigns, err := activeCampaigns(scope)
		if err != nil {
			w.logger.Printf("job=%s tenant=%s: %v", service.JobProgressSync, t.ID, err)
			return 0, 1
		}
		processed, failed := 0, 0
		for _, c := range campaigns {
			if ctx.Err() != nil {
				break
			}
			_, changed, err := w.campaigns.recalculate(ctx, scope, c.ID)
			if err != nil {
				w.logger.Printf("job=%s tenant=%s campaign=%d: %v", service.JobProgressSync, t.ID, c.ID, err)
				failed++
				continue
			}
			if changed {
				processed++
			}
		}
		return processed, failed
	})
}

// SweepExpired completes every active campaign past its end date and sends one
// aggregated notice per tenant.
func (w *worker) SweepExpired(ctx context.Context) (service.JobResult, error) {
	return w.forEachTenant(ctx, service.JobExpirationSweep, func(ctx context.Context, scope *tenant.Scope, t models.Tenant) (int, int) {
		campaigns, err := activeCampaigns(scope)
		if err != nil {
			w.logger.Printf("job=%s tenant=%s: %v", service.JobExpirationSweep, t.ID, err)
			return 0, 1
		}

		now := w.now()
		actor := service.SystemActor(t.ID)
		var closed []map[string]interface{}
		failed := 0
		for i := range campaigns {
			c := &campaigns[i]
			if !c.IsExpired(now) {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			completed, _, err := w.campaigns.completeCampaign(ctx, scope, actor, c.ID, false)
			if errors.Is(err, service.ErrNotActive) {
				continue
			}
			if err != nil {
				w.logger.Printf("job=%s tenant=%s campaign=%d: %v", service.JobExpirationSweep, t.ID, c.ID, err)
				failed++
				continue
			}
			closed = append(closed, campaignData(completed))
		}

		if len(closed) > 0 {
			w.notifier.notify(ctx, scope, service.EventCampaignsExpired, map[string]interface{}{
				"count":     len(closed),
				"campaigns": closed,
			}, campaignAudience, nil)
		}
		return len(closed), failed
	})
}

// SendExpirationReminders notifies about active campaigns ending within three days,
// at most once per campaign per tenant-local day.
func (w *worker) SendExpirationReminders(ctx context.Context) (service.JobResult, error) {
	return w.forEachTenant(ctx, service.JobExpirationReminders, func(ctx context.Context, scope *tenant.Scope, t models.Tenant) (int, int) {
		campaigns, err := activeCampaigns(scope)
		if err != nil {
			w.logger.Printf("job=%s tenant=%s: %v", service.JobExpirationReminders, t.ID, err)
			return 0, 1
		}

		loc := w.tenantLocation(t)
		now := w.now()
		today := startOfDay(now, loc)
		processed, failed := 0, 0
		for i := range campaigns {
			c := &campaigns[i]
			days := c.DaysRemaining(now)
			if days < 1 || days > reminderWindowDays {
				continue
			}
			if c.LastReminderAt != nil && !c.LastReminderAt.Before(today) {
				continue
			}
			if ctx.Err() != nil {
				break
			}

			err := w.campaigns.store.update(scope, c, map[string]interface{}{"last_reminder_at": now})
			if errors.Is(err, service.ErrConcurrentUpdate) {
				continue
			}
			if err != nil {
				w.logger.Printf("job=%s tenant=%s campaign=%d: %v", service.JobExpirationReminders, t.ID, c.ID, err)
				failed++
				continue
			}
			w.campaigns.invalidate(ctx, t.ID, c.ID)

			data := campaignData(c)
			data["daysRemaining"] = days
			w.notifier.notify(ctx, scope, service.EventExpirationNotice, data, campaignAudience, c.CreatedBy)
			processed++
		}
		return processed, failed
	})
}

// SendWeeklyReports reports on the seven tenant-local days before today.
func (w *worker) SendWeeklyReports(ctx context.Context) (service.JobResult, error) {
	return w.forEachTenant(ctx, service.JobWeeklyReport, func(ctx context.Context, scope *tenant.Scope, t models.Tenant) (int, int) {
		end := startOfDay(w.now(), w.tenantLocation(t))
		return w.sendReport(ctx, scope, models.ReportKindWeekly, end.AddDate(0, 0, -7), end)
	})
}

// SendMonthlyReports reports on the previous tenant-local calendar month.
func (w *worker) SendMonthlyReports(ctx context.Context) (service.JobResult, error) {
	return w.forEachTenant(ctx, service.JobMonthlyReport, func(ctx context.Context, scope *tenant.Scope, t models.Tenant) (int, int) {
		today := startOfDay(w.now(), w.tenantLocation(t))
		end := today.AddDate(0, 0, 1-today.Day())
		return w.sendReport(ctx, scope, models.ReportKindMonthly, end.AddDate(0, -1, 0), end)
	})
}

// sendReport aggregates the campaigns created in [start, end) and dispatches them to
// the tenant administrators. The report row is claimed before dispatch, so a period is
// reported at most once however often the job runs.
func (w *worker) sendReport(ctx context.Context, scope *tenant.Scope, kind string, start, end time.Time) (int, int) {
	job := service.JobWeeklyReport
	event := service.EventWeeklyReport
	if kind == models.ReportKindMonthly {
		job = service.JobMonthlyReport
		event = service.EventMonthlyReport
	}

	var created []models.Campaign
	err := scope.Table(&models.Campaign{}).
		Where("campaigns.created_at >= ? AND campaigns.created_at < ?", start, end).
		Find(&created).Error
	if err != nil {
		w.logger.Printf("job=%s tenant=%s: failed to aggregate campaigns: %v", job, scope.TenantID(), err)
		return 0, 1
	}

	report := &models.TenantReport{
		Kind:           kind,
		PeriodStart:    start.UTC(),
		PeriodEnd:      end.UTC(),
		CampaignsCount: int64(len(created)),
		RaisedAmount:   decimal.Zero,
	}
	for _, c := range created {
		report.RaisedAmount = report.RaisedAmount.Add(c.RaisedAmount)
		report.TargetFamilies += int64(c.TargetFamilies)
	}

	inserted, err := scope.CreateIfAbsent(report)
	if err != nil {
		w.logger.Printf("job=%s tenant=%s: failed to record report: %v", job, scope.TenantID(), err)
		return 0, 1
	}
	if !inserted {
		return 0, 0
	}

	result := w.notifier.notify(ctx, scope, event, map[string]interface{}{
		"kind":           kind,
		"periodStart":    start,
		"periodEnd":      end,
		"campaignsCount": report.CampaignsCount,
		"raisedAmount":   report.RaisedAmount.String(),
		"targetFamilies": report.TargetFamilies,
	}, reportAudience, nil)

	if _, err := scope.Update(&models.TenantReport{}, report.ID, map[string]interface{}{
		"sent":   result.Sent,
		"failed": result.Failed,
	}); err != nil {
		w.logger.Printf("job=%s tenant=%s: failed to record delivery tally: %v", job, scope.TenantID(), err)
	}
	return 1, 0
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
