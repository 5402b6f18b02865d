package messaging

import (
	"context"
	"github.com/PayRam/go-fundraising/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log"
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	title, body := Render(service.Notification{
		EventType:    service.EventMilestoneReached,
		TemplateData: map[string]interface{}{"title": "Winter food drive", "milestone": 50},
	})
	assert.Equal(t, "Milestone reached", title)
	assert.Equal(t, "Winter food drive reached 50% of its goal", body)

	title, body = Render(service.Notification{
		EventType:    service.EventWeeklyReport,
		TemplateData: map[string]interface{}{"campaignsCount": 3, "raisedAmount": "420"},
	})
	assert.Equal(t, "Weekly report", title)
	assert.Equal(t, "3 campaign(s) created, 420 raised", body)

	title, body = Render(service.Notification{EventType: "custom"})
	assert.Equal(t, "custom", title)
	assert.Empty(t, body)
}

func TestLogDispatcherCountsEveryRecipient(t *testing.T) {
	var logs strings.Builder
	d := NewLogDispatcher(log.New(&logs, "", 0))

	result, err := d.Dispatch(context.Background(), service.Notification{
		TenantID:     "t1",
		EventType:    service.EventCampaignActivated,
		Recipients:   []service.Recipient{{UserID: 1}, {UserID: 2}},
		TemplateData: map[string]interface{}{"title": "Books for school"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)
	assert.Zero(t, result.Failed)
	assert.Contains(t, logs.String(), "tenant=t1 event=campaign_activated recipients=2")
}

func TestFCMDispatcherFallsBackWithoutCredentials(t *testing.T) {
	m, err := NewFCMDispatcher(context.Background(), "", log.New(&strings.Builder{}, "", 0))
	require.NoError(t, err)
	_, ok := m.(*LogDispatcher)
	assert.True(t, ok)
}
