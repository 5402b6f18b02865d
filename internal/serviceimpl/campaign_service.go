package serviceimpl

import (
	"context"
	"encoding/json"
	"github.com/PayRam/go-fundraising/internal/cache"
	"github.com/PayRam/go-fundraising/internal/tenant"
	"github.com/PayRam/go-fundraising/models"
	"github.com/PayRam/go-fundraising/request"
	"github.com/PayRam/go-fundraising/response"
	"github.com/PayRam/go-fundraising/service"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"log"
	"math"
	"strings"
	"time"
)

const maxActiveCampaigns = 3

// Config carries the collaborators shared by the campaign service and the worker.
type Config struct {
	Cache            service.Cache
	Messenger        service.Messenger
	Logger           *log.Logger
	Now              func() time.Time
	Location         *time.Location
	CampaignTTL      time.Duration
	DashboardTTL     time.Duration
	TenantJobTimeout time.Duration
	JobConcurrency   int
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	if c.Cache == nil {
		c.Cache = cache.NewMemory()
	}
	if c.Messenger == nil {
		c.Messenger = noopMessenger{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.CampaignTTL <= 0 {
		c.CampaignTTL = 5 * time.Minute
	}
	if c.DashboardTTL <= 0 {
		c.DashboardTTL = time.Minute
	}
	if c.TenantJobTimeout <= 0 {
		c.TenantJobTimeout = 30 * time.Second
	}
	if c.JobConcurrency <= 0 {
		c.JobConcurrency = 4
	}
	return c
}

type noopMessenger struct{}

func (noopMessenger) Dispatch(_ context.Context, n service.Notification) (service.DispatchResult, error) {
	return service.DispatchResult{Sent: len(n.Recipients)}, nil
}

type campaignService struct {
	DB          *gorm.DB
	store       *campaignStore
	cache       service.Cache
	fence       *cacheFence
	aggregator  *aggregatorService
	notifier    *notifier
	logger      *log.Logger
	now         func() time.Time
	campaignTTL time.Duration
}

var _ service.CampaignService = &campaignService{}

func NewCampaignService(db *gorm.DB, cfg Config) *campaignService {
	cfg = cfg.withDefaults()
	c := cache.NewBestEffort(cfg.Cache, cfg.Logger)
	fence := newCacheFence(c)
	return &campaignService{
		DB:          db,
		store:       newCampaignStore(cfg.Now, cfg.Logger),
		cache:       c,
		fence:       fence,
		aggregator:  newAggregatorService(db, fence, cfg.Now, cfg.DashboardTTL),
		notifier:    &notifier{messenger: cfg.Messenger, logger: cfg.Logger},
		logger:      cfg.Logger,
		now:         cfg.Now,
		campaignTTL: cfg.CampaignTTL,
	}
}

func (s *campaignService) scope(ctx context.Context, tenantID string) (*tenant.Scope, error) {
	scope, err := tenant.New(s.DB, tenantID)
	if err != nil {
		return nil, err
	}
	return scope.WithContext(ctx), nil
}

// invalidate drops the cached campaign and the tenant dashboard.
func (s *campaignService) invalidate(ctx context.Context, tenantID string, id uint) {
	keys := []string{cache.DashboardKey(tenantID)}
	if id != 0 {
		keys = append(keys, cache.CampaignKey(tenantID, id))
	}
	s.fence.invalidate(ctx, keys...)
}

func validateGoals(goals models.Goals) error {
	if len(goals) == 0 {
		return service.ErrEmptyGoals
	}
	for key, goal := range goals {
		if strings.TrimSpace(key) == "" || !goal.Needed.IsPositive() {
			return service.ErrInvalidGoal
		}
		if goal.EstimatedPrice != nil && goal.EstimatedPrice.IsNegative() {
			return service.ErrInvalidGoal
		}
	}
	return nil
}

// priceGoals fills missing estimated prices from the shared product catalog. Goals
// whose product is not in the catalog, or has no default price, stay unpriced.
func priceGoals(scope *tenant.Scope, goals models.Goals) (models.Goals, error) {
	var missing []string
	for key, goal := range goals {
		if goal.EstimatedPrice == nil {
			missing = append(missing, key)
		}
	}
	priced := make(models.Goals, len(goals))
	for key, goal := range goals {
		priced[key] = goal
	}
	if len(missing) == 0 {
		return priced, nil
	}

	var products []models.Product
	if err := scope.Find(&products, tenant.QueryCondition{Field: "key", Operator: "IN", Value: missing}); err != nil {
		return nil, err
	}
	for _, p := range products {
		goal := priced[p.Key]
		if p.DefaultPrice != nil {
			price := *p.DefaultPrice
			goal.EstimatedPrice = &price
		}
		if goal.Unit == "" {
			goal.Unit = p.Unit
		}
		priced[p.Key] = goal
	}
	return priced, nil
}

func (s *campaignService) CreateCampaign(ctx context.Context, actor service.Actor, req request.CreateCampaignRequest) (*models.Campaign, error) {
	scope, err := s.scope(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	if !can(actor, capCreateCampaign) {
		return nil, service.ErrInsufficientPermissions
	}

	status := models.CampaignStatusDraft
	if req.Status != nil {
		status = *req.Status
	}
	if status != models.CampaignStatusDraft && status != models.CampaignStatusActive {
		return nil, service.ErrInvalidStatusTransition
	}
	if status == models.CampaignStatusActive && !can(actor, capActivateCampaign) {
		return nil, service.ErrInsufficientPermissions
	}

	campaign := &models.Campaign{
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Frequency:      req.Frequency,
		Status:         status,
		TargetFamilies: req.TargetFamilies,
	}
	if actor.UserID != 0 {
		createdBy := actor.UserID
		campaign.CreatedBy = &createdBy
	}
	if req.StartDate != nil {
		campaign.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		campaign.EndDate = *req.EndDate
	}

	err = scope.Transaction(func(tx *tenant.Scope) error {
		active, err := tx.Count(&models.Campaign{}, tenant.Eq("status", models.CampaignStatusActive))
		if err != nil {
			return err
		}
		if active >= maxActiveCampaigns {
			return service.ErrTooManyActiveCampaigns
		}

		if campaign.Frequency != "" && !models.IsValidFrequency(campaign.Frequency) {
			return service.ErrInvalidFrequency
		}
		goals, err := priceGoals(tx, req.Goals)
		if err != nil {
			return err
		}
		campaign.Goals = datatypes.NewJSONType(goals)
		s.store.applyDefaults(campaign, req.TargetAmount)

		if !campaign.StartDate.Before(campaign.EndDate) {
			return service.ErrInvalidDateRange
		}
		if err := validateGoals(goals); err != nil {
			return err
		}
		if req.TargetAmount != nil && req.TargetAmount.IsNegative() {
			return service.ErrInvalidTargetAmount
		}
		if req.TargetFamilies < 0 {
			return service.ErrInvalidFamilies
		}
		if status == models.CampaignStatusActive && campaign.Title == "" {
			return service.ErrNoTitle
		}
		return s.store.create(tx, campaign)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, actor.TenantID, 0)
	s.logger.Printf("tenant=%s campaign=%d created as %s by user %d", actor.TenantID, campaign.ID, campaign.Status, actor.UserID)
	if campaign.Status == models.CampaignStatusActive {
		s.notifier.notify(ctx, scope, service.EventCampaignActivated, campaignData(campaign), campaignAudience, campaign.CreatedBy)
	}
	return campaign, nil
}

// GetCampaign reads through the cache.
func (s *campaignService) GetCampaign(ctx context.Context, tenantID string, id uint) (*models.Campaign, error) {
	scope, err := s.scope(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	key := cache.CampaignKey(tenantID, id)
	gen := s.fence.generation()
	if raw, ok, _ := s.cache.Get(ctx, key); ok {
		var cached models.Campaign
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
	}

	campaign, err := s.store.load(scope, id)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(campaign); err == nil {
		s.fence.fill(ctx, gen, key, raw, s.campaignTTL)
	}
	return campaign, nil
}

func (s *campaignService) ListCampaigns(ctx context.Context, tenantID string, req request.GetCampaignsRequest) (*response.CampaignList, error) {
	scope, err := s.scope(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var campaigns []models.Campaign
	total, err := scope.FindPage(&campaigns, func(query *gorm.DB) *gorm.DB {
		return request.ApplyGetCampaignRequest(req, query)
	}, req.PaginationConditions)
	if err != nil {
		return nil, err
	}

	limit := req.PaginationConditions.EffectiveLimit()
	offset := req.PaginationConditions.EffectiveOffset()
	return &response.CampaignList{
		Campaigns: campaigns,
		Pagination: response.Pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: int64(offset+len(campaigns)) < total,
		},
	}, nil
}

// UpdateCampaign applies field edits and an optional status change in one transaction.
func (s *campaignService) UpdateCampaign(ctx context.Context, actor service.Actor, id uint, req request.UpdateCampaignRequest) (*models.Campaign, error) {
	scope, err := s.scope(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}

	var updated *models.Campaign
	var previous string
	err = scope.Transaction(func(tx *tenant.Scope) error {
		c, err := s.store.load(tx, id)
		if err != nil {
			return err
		}
		if !isCreator(actor, c) && !can(actor, capEditAnyCampaign) {
			return service.ErrInsufficientPermissions
		}
		if c.Status == models.CampaignStatusCompleted {
			return service.ErrCampaignCompleted
		}
		previous = c.Status

		targetStatus := c.Status
		if req.Status != nil && *req.Status != c.Status {
			if !models.CanTransition(c.Status, *req.Status) {
				return service.ErrInvalidStatusTransition
			}
			targetStatus = *req.Status
			if err := s.authorizeTransition(actor, c, targetStatus); err != nil {
				return err
			}
		}

		if req.HasFieldChanges() {
			if c.Status == models.CampaignStatusCancelled {
				return service.ErrCampaignCancelled
			}
			updates, err := s.fieldUpdates(tx, c, req)
			if err != nil {
				return err
			}
			if err := s.store.update(tx, c, updates); err != nil {
				return err
			}
		}

		switch targetStatus {
		case previous:
			updated, err = s.store.load(tx, id)
		case models.CampaignStatusActive:
			updated, err = s.store.activate(tx, id)
		case models.CampaignStatusCompleted:
			updated, err = s.store.complete(tx, id)
		case models.CampaignStatusCancelled:
			updated, err = s.store.cancel(tx, id, req.CancelReason)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, actor.TenantID, id)
	if updated.Status != previous {
		s.logger.Printf("tenant=%s campaign=%d moved %s -> %s by user %d", actor.TenantID, id, previous, updated.Status, actor.UserID)
		if updated.Status == models.CampaignStatusCompleted {
			s.notifyCompleted(ctx, scope, updated)
		} else {
			s.notifier.notify(ctx, scope, statusEvent(updated.Status), campaignData(updated), campaignAudience, updated.CreatedBy)
		}
	}
	return updated, nil
}

func (s *campaignService) authorizeTransition(actor service.Actor, c *models.Campaign, to string) error {
	var allowed bool
	switch to {
	case models.CampaignStatusActive:
		allowed = can(actor, capActivateCampaign)
	case models.CampaignStatusCompleted:
		allowed = can(actor, capCompleteCampaign)
	case models.CampaignStatusCancelled:
		allowed = can(actor, capCancelCampaign) || isCreator(actor, c)
	}
	if !allowed {
		return service.ErrInsufficientPermissions
	}
	return nil
}

func statusEvent(status string) string {
	if status == models.CampaignStatusActive {
		return service.EventCampaignActivated
	}
	return service.EventCampaignCancelled
}

// fieldUpdates validates the edits in req against c and returns the column updates.
// Changing goals recomputes the target (unless overridden) and the raised amount.
func (s *campaignService) fieldUpdates(tx *tenant.Scope, c *models.Campaign, req request.UpdateCampaignRequest) (map[string]interface{}, error) {
	updates := map[string]interface{}{}

	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Frequency != nil {
		if !models.IsValidFrequency(*req.Frequency) {
			return nil, service.ErrInvalidFrequency
		}
		updates["frequency"] = *req.Frequency
	}

	start, end := c.StartDate, c.EndDate
	if req.StartDate != nil {
		start = *req.StartDate
		updates["start_date"] = start
	}
	if req.EndDate != nil {
		end = *req.EndDate
		updates["end_date"] = end
	}
	if !start.Before(end) {
		return nil, service.ErrInvalidDateRange
	}

	if req.TargetFamilies != nil {
		if *req.TargetFamilies < 0 {
			return nil, service.ErrInvalidFamilies
		}
		updates["target_families"] = *req.TargetFamilies
	}

	if req.Goals != nil {
		if err := validateGoals(req.Goals); err != nil {
			return nil, err
		}
		goals, err := priceGoals(tx, req.Goals)
		if err != nil {
			return nil, err
		}
		updates["goals"] = datatypes.NewJSONType(goals)
		updates["target_amount"] = models.CalculateTargetAmount(goals)
		updates["raised_amount"] = models.CalculateRaisedAmount(goals, c.ProgressMap())
	}
	if req.TargetAmount != nil {
		if req.TargetAmount.IsNegative() {
			return nil, service.ErrInvalidTargetAmount
		}
		updates["target_amount"] = *req.TargetAmount
	}
	return updates, nil
}

func (s *campaignService) ActivateCampaign(ctx context.Context, actor service.Actor, id uint) (*models.Campaign, error) {
	scope, err := s.scope(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	if !can(actor, capActivateCampaign) {
		return nil, service.ErrInsufficientPermissions
	}

	campaign, err := s.store.activate(scope, id)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, actor.TenantID, id)
	s.logger.Printf("tenant=%s campaign=%d activated by user %d", actor.TenantID, id, actor.UserID)
	s.notifier.notify(ctx, scope, service.EventCampaignActivated, campaignData(campaign), campaignAudience, campaign.CreatedBy)
	return campaign, nil
}

func (s *campaignService) CompleteCampaign(ctx context.Context, actor service.Actor, id uint) (*models.Campaign, *response.CompletionReport, error) {
	scope, err := s.scope(ctx, actor.TenantID)
	if err != nil {
		return nil, nil, err
	}
	return s.completeCampaign(ctx, scope, actor, id, true)
}

// completeCampaign closes an active campaign and builds its report. The sweep passes
// notify=false and sends one aggregated notice per tenant instead.
func (s *campaignService) completeCampaign(ctx context.Context, scope *tenant.Scope, actor service.Actor, id uint, notify bool) (*models.Campaign, *response.CompletionReport, error) {
	if !can(actor, capCompleteCampaign) {
		return nil, nil, service.ErrInsufficientPermissions
	}

	campaign, err := s.store.complete(scope, id)
	if err != nil {
		return nil, nil, err
	}
	s.invalidate(ctx, scope.TenantID(), id)
	s.logger.Printf("tenant=%s campaign=%d completed (%s of %s)", scope.TenantID(), id, campaign.RaisedAmount, campaign.TargetAmount)

	report, err := s.completionReport(scope, campaign)
	if err != nil {
		return nil, nil, err
	}
	if notify {
		s.notifier.notify(ctx, scope, service.EventCampaignCompleted, completionData(campaign, report), campaignAudience, campaign.CreatedBy)
	}
	return campaign, report, nil
}

func completionData(c *models.Campaign, report *response.CompletionReport) map[string]interface{} {
	data := campaignData(c)
	data["contributions"] = report.Stats.Contributions
	data["donations"] = report.Stats.Donations
	data["durationDays"] = report.Stats.DurationDays
	return data
}

// completionReport summarizes a completed campaign from its row and contribution ledger.
func (s *campaignService) completionReport(scope *tenant.Scope, c *models.Campaign) (*response.CompletionReport, error) {
	var ledger []models.Contribution
	query := scope.Table(&models.Contribution{}).Where("campaign_id = ?", c.ID).Order("occurred_at ASC").Order("id ASC")
	if err := query.Find(&ledger).Error; err != nil {
		return nil, err
	}

	completedAt := s.now()
	if c.CompletedAt != nil {
		completedAt = *c.CompletedAt
	}

	donations := map[string]bool{}
	timeline := make([]response.TimelineEvent, 0, len(ledger))
	for _, row := range ledger {
		donations[row.DonationID] = true
		timeline = append(timeline, response.TimelineEvent{
			OccurredAt: row.OccurredAt,
			DonationID: row.DonationID,
			ProductKey: row.ProductKey,
			Quantity:   row.Quantity,
			Unit:       row.Unit,
		})
	}

	duration := 0
	if elapsed := completedAt.Sub(c.StartDate); elapsed > 0 {
		duration = int(math.Ceil(elapsed.Hours() / 24))
	}

	return &response.CompletionReport{
		CampaignID:  c.ID,
		Title:       c.Title,
		CompletedAt: completedAt,
		Stats: response.CampaignStats{
			TargetAmount:         c.TargetAmount,
			RaisedAmount:         c.RaisedAmount,
			CompletionPercentage: c.CompletionPercentage(),
			TargetFamilies:       c.TargetFamilies,
			HelpedFamilies:       c.HelpedFamilies,
			Contributions:        len(ledger),
			Donations:            len(donations),
			DurationDays:         duration,
		},
		Products: c.ProductProgress(),
		Timeline: timeline,
	}, nil
}

func (s *campaignService) CancelCampaign(ctx context.Context, actor service.Actor, id uint, reason *string) (*models.Campaign, error) {
	scope, err := s.scope(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}

	current, err := s.store.load(scope, id)
	if err != nil {
		return nil, err
	}
	if !can(actor, capCancelCampaign) && !isCreator(actor, current) {
		return nil, service.ErrInsufficientPermissions
	}

	previous := current.Status
	campaign, err := s.store.cancel(scope, id, reason)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, actor.TenantID, id)
	if previous != models.CampaignStatusCancelled {
		data := campaignData(campaign)
		if reason != nil {
			data["reason"] = *reason
		}
		s.notifier.notify(ctx, scope, service.EventCampaignCancelled, data, campaignAudience, campaign.CreatedBy)
	}
	return campaign, nil
}

// ProcessDonation applies every item of one donation atomically. Each applied item is
// appended to the contribution ledger under a shared donation id.
func (s *campaignService) ProcessDonation(ctx context.Context, tenantID string, id uint, items []request.DonationItem) (*models.Campaign, error) {
	scope, err := s.scope(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, service.ErrInvalidQuantity
	}
	deltas := make([]progressDelta, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.ProductKey) == "" || !item.Quantity.IsPositive() {
			return nil, service.ErrInvalidQuantity
		}
		deltas = append(deltas, progressDelta{ProductKey: item.ProductKey, Quantity: item.Quantity, Unit: item.Unit})
	}

	current, err := s.store.load(scope, id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.CampaignStatusActive {
		return nil, service.ErrCampaignNotActive
	}
	if current.IsExpired(s.now()) {
		completed, err := s.store.checkCompletion(scope, current)
		if err != nil {
			s.logger.Printf("tenant=%s campaign=%d: failed to close expired campaign: %v", tenantID, id, err)
		}
		if completed {
			s.invalidate(ctx, tenantID, id)
			s.notifyCompleted(ctx, scope, current)
		}
		return nil, service.ErrCampaignNotActive
	}

	donationID := uuid.NewString()
	outcome, err := s.store.applyProgress(scope, id, deltas, donationID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, tenantID, id)

	campaign := outcome.Campaign
	s.logger.Printf("tenant=%s campaign=%d donation=%s applied %d item(s), raised %s of %s",
		tenantID, id, donationID, len(items), campaign.RaisedAmount, campaign.TargetAmount)

	for _, milestone := range outcome.Crossed {
		data := campaignData(campaign)
		data["milestone"] = milestone
		s.notifier.notify(ctx, scope, service.EventMilestoneReached, data, campaignAudience, campaign.CreatedBy)
	}
	if outcome.Completed {
		s.notifyCompleted(ctx, scope, campaign)
	}
	return campaign, nil
}

func (s *campaignService) notifyCompleted(ctx context.Context, scope *tenant.Scope, c *models.Campaign) {
	report, err := s.completionReport(scope, c)
	if err != nil {
		s.logger.Printf("tenant=%s campaign=%d: failed to build completion report: %v", scope.TenantID(), c.ID, err)
		s.notifier.notify(ctx, scope, service.EventCampaignCompleted, campaignData(c), campaignAudience, c.CreatedBy)
		return
	}
	s.notifier.notify(ctx, scope, service.EventCampaignCompleted, completionData(c, report), campaignAudience, c.CreatedBy)
}

func (s *campaignService) RecordFamiliesHelped(ctx context.Context, actor service.Actor, id uint, count int) (*models.Campaign, error) {
	scope, err := s.scope(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	if !can(actor, capRecordImpact) {
		return nil, service.ErrInsufficientPermissions
	}
	if count <= 0 {
		return nil, service.ErrInvalidFamilies
	}

	campaign, err := s.store.addHelpedFamilies(scope, id, count)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, actor.TenantID, id)
	return campaign, nil
}

func (s *campaignService) GetProductProgress(ctx context.Context, tenantID string, id uint) ([]models.ProductProgress, error) {
	campaign, err := s.GetCampaign(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return campaign.ProductProgress(), nil
}

func (s *campaignService) Dashboard(ctx context.Context, tenantID string) (*response.Dashboard, error) {
	return s.aggregator.Dashboard(ctx, tenantID)
}

// RecalculateProgress rebuilds a campaign's progress from its contribution ledger.
func (s *campaignService) RecalculateProgress(ctx context.Context, tenantID string, id uint) (*models.Campaign, error) {
	scope, err := s.scope(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	campaign, _, err := s.recalculate(ctx, scope, id)
	return campaign, err
}

func (s *campaignService) recalculate(ctx context.Context, scope *tenant.Scope, id uint) (*models.Campaign, bool, error) {
	campaign, changed, completed, err := s.store.reconcile(scope, id)
	if err != nil {
		return nil, false, err
	}
	if changed || completed {
		s.invalidate(ctx, scope.TenantID(), id)
	}
	if completed {
		s.notifyCompleted(ctx, scope, campaign)
	}
	return campaign, changed, nil
}
