package request

import (
	"github.com/PayRam/go-fundraising/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"time"
)

type CreateCampaignRequest struct {
	Title          string           `json:"title" binding:"required"`
	Description    *string          `json:"description"`
	Goals          models.Goals     `json:"goals" binding:"required"`
	Frequency      string           `json:"frequency"`    // weekly, biweekly, monthly; defaults to weekly
	StartDate      *time.Time       `json:"startDate"`    // defaults to now
	EndDate        *time.Time       `json:"endDate"`      // defaults to StartDate + frequency
	TargetAmount   *decimal.Decimal `json:"targetAmount"` // defaults to the sum of needed * estimated_price
	TargetFamilies int              `json:"targetFamilies"`
	Status         *string          `json:"status"` // draft (default) or active
}

type UpdateCampaignRequest struct {
	Title          *string          `json:"title"`
	Description    *string          `json:"description"`
	Goals          models.Goals     `json:"goals"` // replaces all goals and recomputes targetAmount
	Status         *string          `json:"status"`
	Frequency      *string          `json:"frequency"`
	StartDate      *time.Time       `json:"startDate"`
	EndDate        *time.Time       `json:"endDate"`
	TargetFamilies *int             `json:"targetFamilies"`
	TargetAmount   *decimal.Decimal `json:"targetAmount"` // explicit override, applied after goals
	CancelReason   *string          `json:"cancelReason"`
}

// HasFieldChanges reports whether anything besides the status is being edited.
func (r UpdateCampaignRequest) HasFieldChanges() bool {
	return r.Title != nil || r.Description != nil || r.Goals != nil || r.Frequency != nil ||
		r.StartDate != nil || r.EndDate != nil || r.TargetFamilies != nil || r.TargetAmount != nil
}

type GetCampaignsRequest struct {
	IDs                  []uint               `form:"ids"`
	Title                *string              `form:"title"` // substring match
	Status               []string             `form:"status"`
	Frequency            *string              `form:"frequency"`
	CreatedBy            *uint                `form:"createdBy"`
	StartDateMin         *time.Time           `form:"startDateMin"`
	StartDateMax         *time.Time           `form:"startDateMax"`
	EndDateMin           *time.Time           `form:"endDateMin"`
	EndDateMax           *time.Time           `form:"endDateMax"`
	PaginationConditions PaginationConditions `form:"paginationConditions"`
}

func ApplyGetCampaignRequest(req GetCampaignsRequest, query *gorm.DB) *gorm.DB {
	if len(req.IDs) > 0 {
		query = query.Where("campaigns.id IN (?)", req.IDs)
	}
	if req.Title != nil {
		query = query.Where("campaigns.title LIKE ?", "%"+*req.Title+"%")
	}
	if len(req.Status) > 0 {
		query = query.Where("campaigns.status IN (?)", req.Status)
	}
	if req.Frequency != nil {
		query = query.Where("campaigns.frequency = ?", *req.Frequency)
	}
	if req.CreatedBy != nil {
		query = query.Where("campaigns.created_by = ?", *req.CreatedBy)
	}
	if req.StartDateMin != nil {
		query = query.Where("campaigns.start_date >= ?", *req.StartDateMin)
	}
	if req.StartDateMax != nil {
		query = query.Where("campaigns.start_date <= ?", *req.StartDateMax)
	}
	if req.EndDateMin != nil {
		query = query.Where("campaigns.end_date >= ?", *req.EndDateMin)
	}
	if req.EndDateMax != nil {
		query = query.Where("campaigns.end_date <= ?", *req.EndDateMax)
	}
	return query
}

// DonationItem is one product line of an inbound donation.
type DonationItem struct {
	ProductKey string          `json:"productKey" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
	Unit       string          `json:"unit"`
}
