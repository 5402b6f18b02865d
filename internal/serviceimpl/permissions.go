package serviceimpl

import (
	"github.com/PayRam/go-fundraising/models"
	"github.com/PayRam/go-fundraising/service"
)

type capability string

const (
	capCreateCampaign   capability = "campaign:create"
	capEditAnyCampaign  capability = "campaign:edit_any"
	capActivateCampaign capability = "campaign:activate"
	capCompleteCampaign capability = "campaign:complete"
	capCancelCampaign   capability = "campaign:cancel"
	capRecordImpact     capability = "campaign:record_impact"
)

func capabilities(caps ...capability) map[capability]bool {
	set := make(map[capability]bool, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return set
}

var allCapabilities = capabilities(
	capCreateCampaign, capEditAnyCampaign, capActivateCampaign,
	capCompleteCampaign, capCancelCampaign, capRecordImpact,
)

// roleCapabilities is the static role -> capability table. Unknown roles have none.
var roleCapabilities = map[string]map[capability]bool{
	models.RoleSuperAdmin: allCapabilities,
	models.RoleAdmin:      allCapabilities,
	models.RoleSystem:     allCapabilities,
	models.RoleCoordinator: capabilities(
		capCreateCampaign, capEditAnyCampaign, capActivateCampaign,
		capCompleteCampaign, capRecordImpact,
	),
	models.RoleVolunteer: capabilities(capCreateCampaign, capRecordImpact),
}

func can(actor service.Actor, c capability) bool {
	return roleCapabilities[actor.Role][c]
}

func isCreator(actor service.Actor, campaign *models.Campaign) bool {
	return actor.UserID != 0 && campaign.CreatedBy != nil && *campaign.CreatedBy == actor.UserID
}
