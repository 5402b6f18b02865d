package serviceimpl

import (
	"errors"
	"fmt"
	"github.com/PayRam/go-fundraising/internal/tenant"
	"github.com/PayRam/go-fundraising/models"
	"github.com/PayRam/go-fundraising/service"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"log"
	"strings"
	"time"
)

const maxVersionRetries = 5

var errVersionConflict = errors.New("campaign version changed")

// progressDelta is one quantity to add to a campaign's progress.
type progressDelta struct {
	ProductKey string
	Quantity   decimal.Decimal
	Unit       string
}

// progressOutcome describes what a progress update changed.
type progressOutcome struct {
	Campaign  *models.Campaign
	Crossed   []int
	Completed bool
}

// campaignStore owns every state-changing write on a campaign row. Callers pass a
// tenant scope; nested calls inside a scope transaction run on savepoints.
type campaignStore struct {
	now    func() time.Time
	logger *log.Logger
	locks  *keyedMutex
}

func newCampaignStore(now func() time.Time, logger *log.Logger) *campaignStore {
	return &campaignStore{now: now, logger: logger, locks: newKeyedMutex()}
}

func lockKey(tenantID string, id uint) string {
	return fmt.Sprintf("%s/%d", tenantID, id)
}

func (st *campaignStore) load(scope *tenant.Scope, id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := scope.FindByID(&campaign, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load campaign %d: %w", id, err)
	}
	return &campaign, nil
}

// applyDefaults fills the fields a new campaign derives when they are not given.
func (st *campaignStore) applyDefaults(c *models.Campaign, explicitTarget *decimal.Decimal) {
	if c.StartDate.IsZero() {
		c.StartDate = st.now()
	}
	if c.Frequency == "" {
		c.Frequency = models.FrequencyWeekly
	}
	if c.EndDate.IsZero() {
		c.EndDate = models.CalculateEndDate(c.StartDate, c.Frequency)
	}
	if c.Status == "" {
		c.Status = models.CampaignStatusDraft
	}
	if explicitTarget != nil {
		c.TargetAmount = *explicitTarget
	} else {
		c.TargetAmount = models.CalculateTargetAmount(c.GoalMap())
	}
}

// create persists a new campaign with empty progress.
func (st *campaignStore) create(scope *tenant.Scope, c *models.Campaign) error {
	c.CurrentProgress = datatypes.NewJSONType(models.Progress{})
	c.RaisedAmount = decimal.Zero
	c.HelpedFamilies = 0
	c.LastMilestone = 0
	c.Version = 1
	if err := scope.Create(c); err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

// update writes field edits guarded by the version the caller read, bumping it.
func (st *campaignStore) update(scope *tenant.Scope, c *models.Campaign, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	now := st.now()
	updates["version"] = c.Version + 1
	updates["updated_at"] = now
	rows, err := scope.UpdateWhere(&models.Campaign{}, updates, tenant.Eq("id", c.ID), tenant.Eq("version", c.Version))
	if err != nil {
		return fmt.Errorf("failed to update campaign %d: %w", c.ID, err)
	}
	if rows == 0 {
		return service.ErrConcurrentUpdate
	}
	return nil
}

// applyProgress adds deltas to the campaign's progress, recomputes the raised amount,
// appends the ledger rows and claims newly crossed milestones in one transaction. The
// write is guarded by the row version and retried on conflict. The auto-completion
// check runs once the transaction has committed.
func (st *campaignStore) applyProgress(scope *tenant.Scope, id uint, deltas []progressDelta, donationID string) (*progressOutcome, error) {
	unlock := st.locks.Lock(lockKey(scope.TenantID(), id))
	defer unlock()

	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		var outcome *progressOutcome
		err := scope.Transaction(func(tx *tenant.Scope) error {
			c, err := st.load(tx, id)
			if err != nil {
				return err
			}
			if c.Status != models.CampaignStatusActive {
				return service.ErrCampaignNotActive
			}

			now := st.now()
			goals := c.GoalMap()
			progress := c.ProgressMap()
			contributions := make([]models.Contribution, 0, len(deltas))
			for _, d := range deltas {
				entry := progress[d.ProductKey]
				entry.Received = entry.Received.Add(d.Quantity)
				if entry.Unit == "" {
					entry.Unit = d.Unit
				}
				if entry.Unit == "" {
					entry.Unit = goals[d.ProductKey].Unit
				}
				progress[d.ProductKey] = entry
				contributions = append(contributions, models.Contribution{
					CampaignID: c.ID,
					DonationID: donationID,
					ProductKey: d.ProductKey,
					Quantity:   d.Quantity,
					Unit:       entry.Unit,
					OccurredAt: now,
				})
			}

			raised := models.CalculateRaisedAmount(goals, progress)
			crossed := models.CrossedMilestones(c.LastMilestone, models.CompletionPercentage(raised, c.TargetAmount))
			updates := map[string]interface{}{
				"current_progress": datatypes.NewJSONType(progress),
				"raised_amount":    raised,
				"version":          c.Version + 1,
				"updated_at":       now,
			}
			if len(crossed) > 0 {
				updates["last_milestone"] = crossed[len(crossed)-1]
			}
			rows, err := tx.UpdateWhere(&models.Campaign{}, updates, tenant.Eq("id", c.ID), tenant.Eq("version", c.Version))
			if err != nil {
				return fmt.Errorf("failed to write progress for campaign %d: %w", c.ID, err)
			}
			if rows == 0 {
				return errVersionConflict
			}
			if err := tx.Create(&contributions); err != nil {
				return fmt.Errorf("failed to record contributions for campaign %d: %w", c.ID, err)
			}

			c.CurrentProgress = datatypes.NewJSONType(progress)
			c.RaisedAmount = raised
			c.Version++
			c.UpdatedAt = now
			if len(crossed) > 0 {
				c.LastMilestone = crossed[len(crossed)-1]
			}
			outcome = &progressOutcome{Campaign: c, Crossed: crossed}
			return nil
		})
		if errors.Is(err, errVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		completed, err := st.checkCompletion(scope, outcome.Campaign)
		if err != nil {
			return nil, err
		}
		outcome.Completed = completed
		return outcome, nil
	}
	return nil, service.ErrConcurrentUpdate
}

// checkCompletion completes c when it has met its target or expired. The status guard
// on the write makes concurrent checks complete the campaign exactly once; only the
// caller whose write landed gets true.
func (st *campaignStore) checkCompletion(scope *tenant.Scope, c *models.Campaign) (bool, error) {
	now := st.now()
	if !c.ShouldAutoComplete(now) {
		return false, nil
	}
	completed, err := st.transition(scope, c, models.CampaignStatusActive, models.CampaignStatusCompleted, map[string]interface{}{
		"completed_at": now,
	})
	if err != nil {
		return false, err
	}
	if completed {
		c.CompletedAt = &now
	}
	return completed, nil
}

// transition moves c from -> to if the row is still in from. It reports whether this
// call made the change.
func (st *campaignStore) transition(scope *tenant.Scope, c *models.Campaign, from, to string, extra map[string]interface{}) (bool, error) {
	now := st.now()
	updates := map[string]interface{}{
		"status":     to,
		"version":    gorm.Expr("version + 1"),
		"updated_at": now,
	}
	for key, value := range extra {
		updates[key] = value
	}
	rows, err := scope.UpdateWhere(&models.Campaign{}, updates, tenant.Eq("id", c.ID), tenant.Eq("status", from))
	if err != nil {
		return false, fmt.Errorf("failed to move campaign %d to %s: %w", c.ID, to, err)
	}
	if rows == 0 {
		return false, nil
	}
	c.Status = to
	c.Version++
	c.UpdatedAt = now
	return true, nil
}

func (st *campaignStore) activate(scope *tenant.Scope, id uint) (*models.Campaign, error) {
	c, err := st.load(scope, id)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CampaignStatusDraft {
		return nil, service.ErrNotDraft
	}
	if len(c.GoalMap()) == 0 {
		return nil, service.ErrNoGoals
	}
	if strings.TrimSpace(c.Title) == "" {
		return nil, service.ErrNoTitle
	}
	ok, err := st.transition(scope, c, models.CampaignStatusDraft, models.CampaignStatusActive, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, service.ErrNotDraft
	}
	return c, nil
}

func (st *campaignStore) complete(scope *tenant.Scope, id uint) (*models.Campaign, error) {
	c, err := st.load(scope, id)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CampaignStatusActive {
		return nil, service.ErrNotActive
	}
	now := st.now()
	ok, err := st.transition(scope, c, models.CampaignStatusActive, models.CampaignStatusCompleted, map[string]interface{}{
		"completed_at": now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, service.ErrNotActive
	}
	c.CompletedAt = &now
	return c, nil
}

// cancel is a no-op on an already cancelled campaign.
func (st *campaignStore) cancel(scope *tenant.Scope, id uint, reason *string) (*models.Campaign, error) {
	c, err := st.load(scope, id)
	if err != nil {
		return nil, err
	}
	switch c.Status {
	case models.CampaignStatusCompleted:
		return nil, service.ErrAlreadyCompleted
	case models.CampaignStatusCancelled:
		return c, nil
	}
	from := c.Status
	ok, err := st.transition(scope, c, from, models.CampaignStatusCancelled, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, service.ErrConcurrentUpdate
	}
	if reason != nil && strings.TrimSpace(*reason) != "" {
		st.logger.Printf("tenant=%s campaign=%d cancelled from %s: %s", scope.TenantID(), c.ID, from, *reason)
	}
	return c, nil
}

// addHelpedFamilies increments helped_families on an active campaign.
func (st *campaignStore) addHelpedFamilies(scope *tenant.Scope, id uint, count int) (*models.Campaign, error) {
	rows, err := scope.UpdateWhere(&models.Campaign{}, map[string]interface{}{
		"helped_families": gorm.Expr("helped_families + ?", count),
		"version":         gorm.Expr("version + 1"),
		"updated_at":      st.now(),
	}, tenant.Eq("id", id), tenant.Eq("status", models.CampaignStatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to record families for campaign %d: %w", id, err)
	}
	c, err := st.load(scope, id)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, service.ErrNotActive
	}
	return c, nil
}

// reconcile rebuilds progress from the contribution ledger and recomputes the raised
// amount, writing only when something drifted. Campaigns without ledger rows keep
// their stored progress. It reports whether a correction was written and whether the
// campaign was completed as a result.
func (st *campaignStore) reconcile(scope *tenant.Scope, id uint) (*models.Campaign, bool, bool, error) {
	unlock := st.locks.Lock(lockKey(scope.TenantID(), id))
	defer unlock()

	c, err := st.load(scope, id)
	if err != nil {
		return nil, false, false, err
	}

	var ledger []models.Contribution
	if err := scope.Find(&ledger, tenant.Eq("campaign_id", id)); err != nil {
		return nil, false, false, fmt.Errorf("failed to load contributions for campaign %d: %w", id, err)
	}

	goals := c.GoalMap()
	stored := c.ProgressMap()
	progress := stored
	if len(ledger) > 0 {
		progress = models.Progress{}
		for _, row := range ledger {
			entry := progress[row.ProductKey]
			entry.Received = entry.Received.Add(row.Quantity)
			if entry.Unit == "" {
				entry.Unit = row.Unit
			}
			progress[row.ProductKey] = entry
		}
	}
	raised := models.CalculateRaisedAmount(goals, progress)

	changed := !raised.Equal(c.RaisedAmount) || !sameProgress(stored, progress)
	if changed {
		updates := map[string]interface{}{
			"current_progress": datatypes.NewJSONType(progress),
			"raised_amount":    raised,
		}
		if err := st.update(scope, c, updates); err != nil {
			return nil, false, false, err
		}
		st.logger.Printf("tenant=%s campaign=%d progress corrected: raised %s -> %s", scope.TenantID(), c.ID, c.RaisedAmount, raised)
		c.CurrentProgress = datatypes.NewJSONType(progress)
		c.RaisedAmount = raised
		c.Version++
	}

	completed, err := st.checkCompletion(scope, c)
	if err != nil {
		return nil, changed, false, err
	}
	return c, changed, completed, nil
}

func sameProgress(a, b models.Progress) bool {
	if len(a) != len(b) {
		return false
	}
	for key, entry := range a {
		other, ok := b[key]
		if !ok || !entry.Received.Equal(other.Received) {
			return false
		}
	}
	return true
}
