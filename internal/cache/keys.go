package cache

import "fmt"

func CampaignKey(tenantID string, id uint) string {
	return fmt.Sprintf("campaign:%s:%d", tenantID, id)
}

func DashboardKey(tenantID string) string {
	return fmt.Sprintf("dashboard:%s", tenantID)
}
