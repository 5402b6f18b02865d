package serviceimpl

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/PayRam/go-fundraising/internal/cache"
	"github.com/PayRam/go-fundraising/internal/tenant"
	"github.com/PayRam/go-fundraising/models"
	"github.com/PayRam/go-fundraising/response"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"time"
)

const (
	attentionUrgentDays = 2
	attentionSoonDays   = 7
	attentionMinPercent = 50
)

type aggregatorService struct {
	DB    *gorm.DB
	fence *cacheFence
	now   func() time.Time
	ttl   time.Duration
}

func newAggregatorService(db *gorm.DB, fence *cacheFence, now func() time.Time, ttl time.Duration) *aggregatorService {
	return &aggregatorService{DB: db, fence: fence, now: now, ttl: ttl}
}

type statusTotals struct {
	Status         string
	Campaigns      int64
	Raised         string
	Target         string
	TargetFamilies int64
	HelpedFamilies int64
}

// Dashboard summarizes a tenant's campaigns. Results are cached for the dashboard TTL
// and dropped by every campaign mutation.
func (s *aggregatorService) Dashboard(ctx context.Context, tenantID string) (*response.Dashboard, error) {
	scope, err := tenant.New(s.DB, tenantID)
	if err != nil {
		return nil, err
	}
	scope = scope.WithContext(ctx)

	key := cache.DashboardKey(tenantID)
	gen := s.fence.generation()
	if raw, ok, _ := s.fence.cache.Get(ctx, key); ok {
		var cached response.Dashboard
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
	}

	var totals []statusTotals
	query := scope.Table(&models.Campaign{}).Select(`
			campaigns.status AS status,
			COUNT(*) AS campaigns,
			COALESCE(CAST(SUM(campaigns.raised_amount) AS TEXT), '0') AS raised,
			COALESCE(CAST(SUM(campaigns.target_amount) AS TEXT), '0') AS target,
			COALESCE(SUM(campaigns.target_families), 0) AS target_families,
			COALESCE(SUM(campaigns.helped_families), 0) AS helped_families
		`).Group("campaigns.status")
	if err := query.Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate campaigns: %w", err)
	}

	now := s.now()
	dashboard := &response.Dashboard{
		TenantID:       tenantID,
		TotalRaised:    decimal.Zero,
		TotalTarget:    decimal.Zero,
		NeedsAttention: []response.CampaignSummary{},
		GeneratedAt:    now,
	}
	for _, row := range totals {
		dashboard.TotalCampaigns += row.Campaigns
		switch row.Status {
		case models.CampaignStatusDraft:
			dashboard.DraftCampaigns = row.Campaigns
			continue
		case models.CampaignStatusActive:
			dashboard.ActiveCampaigns = row.Campaigns
		case models.CampaignStatusCompleted:
			dashboard.CompletedCampaigns = row.Campaigns
		case models.CampaignStatusCancelled:
			dashboard.CancelledCampaigns = row.Campaigns
			continue
		}
		raised, err := decimal.NewFromString(row.Raised)
		if err != nil {
			return nil, fmt.Errorf("failed to parse raised total %q: %w", row.Raised, err)
		}
		target, err := decimal.NewFromString(row.Target)
		if err != nil {
			return nil, fmt.Errorf("failed to parse target total %q: %w", row.Target, err)
		}
		dashboard.TotalRaised = dashboard.TotalRaised.Add(raised)
		dashboard.TotalTarget = dashboard.TotalTarget.Add(target)
		dashboard.TotalTargetFamilies += row.TargetFamilies
		dashboard.TotalHelpedFamilies += row.HelpedFamilies
	}
	if launched := dashboard.TotalCampaigns - dashboard.DraftCampaigns; launched > 0 {
		dashboard.CompletionRate = float64(dashboard.CompletedCampaigns) / float64(launched) * 100
	}

	var active []models.Campaign
	err = scope.Table(&models.Campaign{}).
		Where("campaigns.status = ?", models.CampaignStatusActive).
		Order("campaigns.end_date ASC").
		Order("campaigns.id ASC").
		Find(&active).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load active campaigns: %w", err)
	}
	for i := range active {
		c := &active[i]
		days := c.DaysRemaining(now)
		pct := c.CompletionPercentage()
		if days <= attentionUrgentDays || (days <= attentionSoonDays && pct < attentionMinPercent) {
			dashboard.NeedsAttention = append(dashboard.NeedsAttention, response.CampaignSummary{
				ID:                   c.ID,
				Title:                c.Title,
				EndDate:              c.EndDate,
				DaysRemaining:        days,
				CompletionPercentage: pct,
				RaisedAmount:         c.RaisedAmount,
				TargetAmount:         c.TargetAmount,
			})
		}
	}

	if raw, err := json.Marshal(dashboard); err == nil {
		s.fence.fill(ctx, gen, key, raw, s.ttl)
	}
	return dashboard, nil
}
