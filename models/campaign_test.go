package models

import (
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"math/rand"
	"testing"
	"time"
)

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateTargetAmount(t *testing.T) {
	goals := Goals{
		"rice":  {Needed: qty("100"), Unit: "kg", EstimatedPrice: price("1.5")},
		"oil":   {Needed: qty("20"), Unit: "l", EstimatedPrice: price("4")},
		"soap":  {Needed: qty("50"), Unit: "unit"},
		"water": {Needed: qty("10"), Unit: "l", EstimatedPrice: price("0")},
	}
	assert.True(t, CalculateTargetAmount(goals).Equal(qty("230")))
	assert.True(t, CalculateTargetAmount(Goals{}).IsZero())
}

func TestCalculateRaisedAmountIgnoresUnknownProducts(t *testing.T) {
	goals := Goals{"rice": {Needed: qty("100"), Unit: "kg", EstimatedPrice: price("2")}}
	progress := Progress{
		"rice":  {Received: qty("10"), Unit: "kg"},
		"beans": {Received: qty("99"), Unit: "kg"},
	}
	assert.True(t, CalculateRaisedAmount(goals, progress).Equal(qty("20")))
}

func TestCalculateEndDate(t *testing.T) {
	start := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, start.AddDate(0, 0, 7), CalculateEndDate(start, FrequencyWeekly))
	assert.Equal(t, start.AddDate(0, 0, 14), CalculateEndDate(start, FrequencyBiweekly))
	assert.Equal(t, start.AddDate(0, 1, 0), CalculateEndDate(start, FrequencyMonthly))
	assert.Equal(t, start.AddDate(0, 0, 7), CalculateEndDate(start, "yearly"))
}

func TestCompletionPercentage(t *testing.T) {
	assert.Equal(t, 0.0, CompletionPercentage(qty("10"), decimal.Zero))
	assert.Equal(t, 50.0, CompletionPercentage(qty("50"), qty("100")))
	assert.Equal(t, 100.0, CompletionPercentage(qty("150"), qty("100")))
	assert.InDelta(t, 33.333, CompletionPercentage(qty("1"), qty("3")), 0.001)
}

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &Campaign{EndDate: now.Add(36 * time.Hour)}
	assert.Equal(t, 2, c.DaysRemaining(now))

	c.EndDate = now.Add(72 * time.Hour)
	assert.Equal(t, 3, c.DaysRemaining(now))

	c.EndDate = now.Add(-time.Hour)
	assert.Equal(t, 0, c.DaysRemaining(now))
}

func TestIsActiveAndExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &Campaign{Status: CampaignStatusActive, StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)}
	assert.True(t, c.IsActive(now))
	assert.False(t, c.IsExpired(now))

	assert.False(t, c.IsActive(now.Add(-2*time.Hour)), "not started yet")
	assert.True(t, c.IsExpired(now.Add(2*time.Hour)))
	assert.False(t, c.IsActive(now.Add(2*time.Hour)))

	c.Status = CampaignStatusDraft
	assert.False(t, c.IsActive(now))
}

func TestShouldAutoComplete(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &Campaign{
		Status:       CampaignStatusActive,
		StartDate:    now.Add(-time.Hour),
		EndDate:      now.Add(time.Hour),
		TargetAmount: qty("100"),
		RaisedAmount: qty("99.99"),
	}
	assert.False(t, c.ShouldAutoComplete(now))

	c.RaisedAmount = qty("100")
	assert.True(t, c.ShouldAutoComplete(now))

	c.RaisedAmount = qty("1")
	assert.True(t, c.ShouldAutoComplete(now.Add(2*time.Hour)), "expired")

	c.Status = CampaignStatusCompleted
	assert.False(t, c.ShouldAutoComplete(now.Add(2*time.Hour)))

	c.Status = CampaignStatusActive
	c.TargetAmount = decimal.Zero
	c.RaisedAmount = decimal.Zero
	assert.False(t, c.ShouldAutoComplete(now), "zero target never completes on amount")
}

func TestCanTransitionMatrix(t *testing.T) {
	statuses := []string{CampaignStatusDraft, CampaignStatusActive, CampaignStatusCompleted, CampaignStatusCancelled}
	allowed := map[[2]string]bool{
		{CampaignStatusDraft, CampaignStatusActive}:     true,
		{CampaignStatusDraft, CampaignStatusCancelled}:  true,
		{CampaignStatusActive, CampaignStatusCompleted}: true,
		{CampaignStatusActive, CampaignStatusCancelled}: true,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			assert.Equal(t, allowed[[2]string{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanTransition("archived", CampaignStatusActive))
}

func TestCrossedMilestones(t *testing.T) {
	assert.Nil(t, CrossedMilestones(0, 10))
	assert.Equal(t, []int{25}, CrossedMilestones(0, 25))
	assert.Equal(t, []int{25, 50, 75}, CrossedMilestones(0, 80))
	assert.Equal(t, []int{75, 100}, CrossedMilestones(50, 100))
	assert.Nil(t, CrossedMilestones(100, 100))
}

func TestProductProgress(t *testing.T) {
	c := &Campaign{
		Goals: datatypes.NewJSONType(Goals{
			"rice": {Needed: qty("100"), Unit: "kg", EstimatedPrice: price("2")},
			"oil":  {Needed: qty("10"), Unit: "l"},
		}),
		CurrentProgress: datatypes.NewJSONType(Progress{
			"rice": {Received: qty("120"), Unit: "kg"},
			"oil":  {Received: qty("5"), Unit: "l"},
		}),
	}

	progress := c.ProductProgress()
	require.Len(t, progress, 2)

	assert.Equal(t, "oil", progress[0].ProductKey)
	assert.Equal(t, 50.0, progress[0].Percentage)
	assert.True(t, progress[0].Remaining.Equal(qty("5")))
	assert.Nil(t, progress[0].EstimatedPrice)

	assert.Equal(t, "rice", progress[1].ProductKey)
	assert.Equal(t, 100.0, progress[1].Percentage)
	assert.True(t, progress[1].Remaining.IsZero())
	assert.True(t, progress[1].Received.Equal(qty("120")))
}

func TestEmptyJSONColumnsReadAsEmptyMaps(t *testing.T) {
	c := &Campaign{}
	assert.NotNil(t, c.GoalMap())
	assert.NotNil(t, c.ProgressMap())
	assert.Empty(t, c.ProductProgress())
}

// Accumulating priced deltas one by one lands on the same raised amount as
// recomputing from the final progress.
func TestRaisedAmountMatchesRandomProgress(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	keys := []string{"rice", "oil", "soap", "flour"}

	for run := 0; run < 50; run++ {
		goals := Goals{}
		for i, key := range keys {
			goal := Goal{Needed: decimal.NewFromInt(int64(10 + r.Intn(100))), Unit: "unit"}
			if i != 2 {
				p := decimal.New(int64(r.Intn(1000)), -2)
				goal.EstimatedPrice = &p
			}
			goals[key] = goal
		}

		progress := Progress{}
		expected := decimal.Zero
		for step := 0; step < 20; step++ {
			key := keys[r.Intn(len(keys))]
			added := decimal.NewFromInt(int64(1 + r.Intn(5)))
			entry := progress[key]
			entry.Received = entry.Received.Add(added)
			progress[key] = entry
			if p := goals[key].EstimatedPrice; p != nil {
				expected = expected.Add(added.Mul(*p))
			}
		}

		assert.True(t, expected.Equal(CalculateRaisedAmount(goals, progress)), "run %d", run)
	}
}
