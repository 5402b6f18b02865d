package messaging

import (
	"fmt"
	"github.com/PayRam/go-fundraising/service"
)

var titles = map[string]string{
	service.EventCampaignActivated: "Campaign started",
	service.EventCampaignCompleted: "Campaign completed",
	service.EventCampaignCancelled: "Campaign cancelled",
	service.EventMilestoneReached:  "Milestone reached",
	service.EventCampaignsExpired:  "Campaigns closed",
	service.EventExpirationNotice:  "Campaign ending soon",
	service.EventWeeklyReport:      "Weekly report",
	service.EventMonthlyReport:     "Monthly report",
}

// Render builds the title and body shown to recipients.
func Render(n service.Notification) (string, string) {
	title, ok := titles[n.EventType]
	if !ok {
		title = n.EventType
	}
	data := n.TemplateData
	switch n.EventType {
	case service.EventMilestoneReached:
		return title, fmt.Sprintf("%v reached %v%% of its goal", data["title"], data["milestone"])
	case service.EventCampaignCompleted:
		return title, fmt.Sprintf("%v raised %v", data["title"], data["raisedAmount"])
	case service.EventCampaignActivated, service.EventCampaignCancelled:
		return title, fmt.Sprintf("%v", data["title"])
	case service.EventCampaignsExpired:
		return title, fmt.Sprintf("%v campaign(s) reached their end date", data["count"])
	case service.EventExpirationNotice:
		return title, fmt.Sprintf("%v ends in %v day(s) at %v%%", data["title"], data["daysRemaining"], data["completionPercentage"])
	case service.EventWeeklyReport, service.EventMonthlyReport:
		return title, fmt.Sprintf("%v campaign(s) created, %v raised", data["campaignsCount"], data["raisedAmount"])
	}
	return title, ""
}
