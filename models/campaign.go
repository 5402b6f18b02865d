package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"math"
	"sort"
	"time"
)

const (
	CampaignStatusDraft     = "draft"
	CampaignStatusActive    = "active"
	CampaignStatusCompleted = "completed"
	CampaignStatusCancelled = "cancelled"
)

const (
	FrequencyWeekly   = "weekly"
	FrequencyBiweekly = "biweekly"
	FrequencyMonthly  = "monthly"
)

// Milestones are the completion percentages that trigger a notification.
var Milestones = []int{25, 50, 75, 100}

var hundred = decimal.NewFromInt(100)

// Goal is the target quantity for one product key.
type Goal struct {
	Needed         decimal.Decimal  `json:"needed"`
	Unit           string           `json:"unit"`
	EstimatedPrice *decimal.Decimal `json:"estimated_price,omitempty"`
}

// ProgressEntry is the running received quantity for one product key.
type ProgressEntry struct {
	Received decimal.Decimal `json:"received"`
	Unit     string          `json:"unit"`
}

type Goals map[string]Goal

type Progress map[string]ProgressEntry

type Campaign struct {
	BaseModel
	TenantID        string                       `gorm:"size:100;not null;index" json:"tenantId"`
	CreatedBy       *uint                        `gorm:"index" json:"createdBy"`
	Creator         *User                        `gorm:"foreignKey:CreatedBy;constraint:OnDelete:SET NULL" json:"-"`
	Title           string                       `gorm:"size:255;not null;index" json:"title"`
	Description     *string                      `gorm:"type:text" json:"description"`
	Goals           datatypes.JSONType[Goals]    `json:"goals"`
	CurrentProgress datatypes.JSONType[Progress] `json:"currentProgress"`
	Status          string                       `gorm:"size:50;default:'draft';index" json:"status"`
	Frequency       string                       `gorm:"size:50;default:'weekly'" json:"frequency"`
	StartDate       time.Time                    `gorm:"not null;index" json:"startDate"`
	EndDate         time.Time                    `gorm:"not null;index" json:"endDate"`
	TargetAmount    decimal.Decimal              `gorm:"type:decimal(38,18);not null" json:"targetAmount"`
	RaisedAmount    decimal.Decimal              `gorm:"type:decimal(38,18);not null" json:"raisedAmount"`
	TargetFamilies  int                          `gorm:"not null;default:0" json:"targetFamilies"`
	HelpedFamilies  int                          `gorm:"not null;default:0" json:"helpedFamilies"`
	Version         int64                        `gorm:"not null" json:"version"`
	LastMilestone   int                          `gorm:"not null;default:0" json:"lastMilestone"`
	CompletedAt     *time.Time                   `json:"completedAt"`
	LastReminderAt  *time.Time                   `json:"lastReminderAt"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// GoalMap returns the goals, never nil.
func (c *Campaign) GoalMap() Goals {
	goals := c.Goals.Data()
	if goals == nil {
		return Goals{}
	}
	return goals
}

// ProgressMap returns the current progress, never nil.
func (c *Campaign) ProgressMap() Progress {
	progress := c.CurrentProgress.Data()
	if progress == nil {
		return Progress{}
	}
	return progress
}

// CompletionPercentage is raised/target*100 capped at 100, or 0 without a target.
func (c *Campaign) CompletionPercentage() float64 {
	return CompletionPercentage(c.RaisedAmount, c.TargetAmount)
}

func CompletionPercentage(raised, target decimal.Decimal) float64 {
	if !target.IsPositive() {
		return 0
	}
	pct := raised.Div(target).Mul(hundred)
	if pct.GreaterThan(hundred) {
		return 100
	}
	return pct.InexactFloat64()
}

// DaysRemaining is the ceiling of the days until EndDate, floored at 0.
func (c *Campaign) DaysRemaining(now time.Time) int {
	left := c.EndDate.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

func (c *Campaign) IsActive(now time.Time) bool {
	return c.Status == CampaignStatusActive && !now.Before(c.StartDate) && !now.After(c.EndDate)
}

func (c *Campaign) IsExpired(now time.Time) bool {
	return now.After(c.EndDate)
}

// ShouldAutoComplete reports whether an active campaign has met its target or run out of time.
func (c *Campaign) ShouldAutoComplete(now time.Time) bool {
	if c.Status != CampaignStatusActive {
		return false
	}
	return c.CompletionPercentage() >= 100 || c.IsExpired(now)
}

type ProductProgress struct {
	ProductKey     string           `json:"productKey"`
	Needed         decimal.Decimal  `json:"needed"`
	Received       decimal.Decimal  `json:"received"`
	Remaining      decimal.Decimal  `json:"remaining"`
	Percentage     float64          `json:"percentage"`
	Unit           string           `json:"unit"`
	EstimatedPrice *decimal.Decimal `json:"estimatedPrice"`
}

// ProductProgress breaks progress down per goal, ordered by product key.
func (c *Campaign) ProductProgress() []ProductProgress {
	goals := c.GoalMap()
	progress := c.ProgressMap()

	keys := make([]string, 0, len(goals))
	for key := range goals {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]ProductProgress, 0, len(keys))
	for _, key := range keys {
		goal := goals[key]
		received := progress[key].Received

		pct := 0.0
		if goal.Needed.IsPositive() {
			ratio := received.Div(goal.Needed).Mul(hundred)
			if ratio.GreaterThan(hundred) {
				ratio = hundred
			}
			pct = ratio.InexactFloat64()
		}

		remaining := goal.Needed.Sub(received)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}

		result = append(result, ProductProgress{
			ProductKey:     key,
			Needed:         goal.Needed,
			Received:       received,
			Remaining:      remaining,
			Percentage:     pct,
			Unit:           goal.Unit,
			EstimatedPrice: goal.EstimatedPrice,
		})
	}
	return result
}

// CalculateTargetAmount sums needed*estimated_price; goals without a price add nothing.
func CalculateTargetAmount(goals Goals) decimal.Decimal {
	total := decimal.Zero
	for _, goal := range goals {
		if goal.EstimatedPrice == nil {
			continue
		}
		total = total.Add(goal.Needed.Mul(*goal.EstimatedPrice))
	}
	return total
}

// CalculateRaisedAmount sums received*estimated_price over keys present in both maps.
func CalculateRaisedAmount(goals Goals, progress Progress) decimal.Decimal {
	total := decimal.Zero
	for key, entry := range progress {
		goal, ok := goals[key]
		if !ok || goal.EstimatedPrice == nil {
			continue
		}
		total = total.Add(entry.Received.Mul(*goal.EstimatedPrice))
	}
	return total
}

// CalculateEndDate derives the default end date; unknown frequencies fall back to a week.
func CalculateEndDate(start time.Time, frequency string) time.Time {
	switch frequency {
	case FrequencyBiweekly:
		return start.AddDate(0, 0, 14)
	case FrequencyMonthly:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 7)
	}
}

func IsValidFrequency(frequency string) bool {
	switch frequency {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

func IsValidStatus(status string) bool {
	switch status {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusCompleted, CampaignStatusCancelled:
		return true
	}
	return false
}

var transitions = map[string][]string{
	CampaignStatusDraft:  {CampaignStatusActive, CampaignStatusCancelled},
	CampaignStatusActive: {CampaignStatusCompleted, CampaignStatusCancelled},
}

// CanTransition reports whether from -> to is an allowed status edge.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CrossedMilestones returns the milestones above last that pct has reached, ascending.
func CrossedMilestones(last int, pct float64) []int {
	var crossed []int
	for _, m := range Milestones {
		if m > last && pct >= float64(m) {
			crossed = append(crossed, m)
		}
	}
	return crossed
}
