package response

import (
	"github.com/PayRam/go-fundraising/models"
	"github.com/shopspring/decimal"
	"time"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"hasMore"`
}

type CampaignList struct {
	Campaigns  []models.Campaign `json:"campaigns"`
	Pagination Pagination        `json:"pagination"`
}

type CampaignStats struct {
	TargetAmount         decimal.Decimal `json:"targetAmount"`
	RaisedAmount         decimal.Decimal `json:"raisedAmount"`
	CompletionPercentage float64         `json:"completionPercentage"`
	TargetFamilies       int             `json:"targetFamilies"`
	HelpedFamilies       int             `json:"helpedFamilies"`
	Contributions        int             `json:"contributions"`
	Donations            int             `json:"donations"`
	DurationDays         int             `json:"durationDays"`
}

type TimelineEvent struct {
	OccurredAt time.Time       `json:"occurredAt"`
	DonationID string          `json:"donationId"`
	ProductKey string          `json:"productKey"`
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       string          `json:"unit"`
}

type CompletionReport struct {
	CampaignID  uint                     `json:"campaignId"`
	Title       string                   `json:"title"`
	CompletedAt time.Time                `json:"completedAt"`
	Stats       CampaignStats            `json:"stats"`
	Products    []models.ProductProgress `json:"products"`
	Timeline    []TimelineEvent          `json:"timeline"`
}

type CampaignSummary struct {
	ID                   uint            `json:"id"`
	Title                string          `json:"title"`
	EndDate              time.Time       `json:"endDate"`
	DaysRemaining        int             `json:"daysRemaining"`
	CompletionPercentage float64         `json:"completionPercentage"`
	RaisedAmount         decimal.Decimal `json:"raisedAmount"`
	TargetAmount         decimal.Decimal `json:"targetAmount"`
}

type Dashboard struct {
	TenantID            string            `json:"tenantId"`
	ActiveCampaigns     int64             `json:"activeCampaigns"`
	DraftCampaigns      int64             `json:"draftCampaigns"`
	CompletedCampaigns  int64             `json:"completedCampaigns"`
	CancelledCampaigns  int64             `json:"cancelledCampaigns"`
	TotalCampaigns      int64             `json:"totalCampaigns"`
	TotalRaised         decimal.Decimal   `json:"totalRaised"`
	TotalTarget         decimal.Decimal   `json:"totalTarget"`
	TotalTargetFamilies int64             `json:"totalTargetFamilies"`
	TotalHelpedFamilies int64             `json:"totalHelpedFamilies"`
	CompletionRate      float64           `json:"completionRate"`
	NeedsAttention      []CampaignSummary `json:"needsAttention"`
	GeneratedAt         time.Time         `json:"generatedAt"`
}
