package serviceimpl

import (
	"context"
	"github.com/PayRam/go-fundraising/internal/tenant"
	"github.com/PayRam/go-fundraising/models"
	"github.com/PayRam/go-fundraising/service"
	"log"
)

var (
	campaignAudience = []string{models.RoleSuperAdmin, models.RoleAdmin, models.RoleCoordinator}
	reportAudience   = []string{models.RoleSuperAdmin, models.RoleAdmin}
)

// notifier resolves recipients and hands notifications to the messenger. Delivery
// problems are logged and never returned to the triggering operation.
type notifier struct {
	messenger service.Messenger
	logger    *log.Logger
}

func (n *notifier) recipients(scope *tenant.Scope, roles []string, extra *uint) ([]service.Recipient, error) {
	var users []models.User
	if err := scope.Find(&users, tenant.QueryCondition{Field: "role", Operator: "IN", Value: roles}); err != nil {
		return nil, err
	}
	if extra != nil {
		found := false
		for _, u := range users {
			if u.ID == *extra {
				found = true
				break
			}
		}
		if !found {
			var creator models.User
			if err := scope.FindByID(&creator, *extra); err == nil {
				users = append(users, creator)
			}
		}
	}

	recipients := make([]service.Recipient, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, service.Recipient{
			UserID:      u.ID,
			Name:        u.Name,
			Email:       u.Email,
			Phone:       u.Phone,
			DeviceToken: u.DeviceToken,
		})
	}
	return recipients, nil
}

// notify dispatches event to the users holding roles, plus the campaign creator when
// given. It returns the delivery tally.
func (n *notifier) notify(ctx context.Context, scope *tenant.Scope, event string, data map[string]interface{}, roles []string, creator *uint) service.DispatchResult {
	recipients, err := n.recipients(scope, roles, creator)
	if err != nil {
		n.logger.Printf("tenant=%s event=%s: failed to resolve recipients: %v", scope.TenantID(), event, err)
		return service.DispatchResult{}
	}
	if len(recipients) == 0 {
		return service.DispatchResult{}
	}

	result, err := n.messenger.Dispatch(ctx, service.Notification{
		TenantID:     scope.TenantID(),
		EventType:    event,
		Recipients:   recipients,
		TemplateData: data,
	})
	if err != nil {
		n.logger.Printf("tenant=%s event=%s: dispatch failed: %v", scope.TenantID(), event, err)
		return service.DispatchResult{Failed: len(recipients)}
	}
	if result.Failed > 0 {
		n.logger.Printf("tenant=%s event=%s: %d of %d deliveries failed", scope.TenantID(), event, result.Failed, len(recipients))
	}
	return result
}

func campaignData(c *models.Campaign) map[string]interface{} {
	return map[string]interface{}{
		"campaignId":           c.ID,
		"title":                c.Title,
		"status":               c.Status,
		"raisedAmount":         c.RaisedAmount.String(),
		"targetAmount":         c.TargetAmount.String(),
		"completionPercentage": c.CompletionPercentage(),
		"endDate":              c.EndDate,
	}
}
