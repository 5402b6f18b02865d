package messaging

import (
	"context"
	"github.com/PayRam/go-fundraising/service"
	"log"
)

// LogDispatcher writes notifications to the log instead of delivering them.
// Used in development and whenever no push credentials are configured.
type LogDispatcher struct {
	logger *log.Logger
}

var _ service.Messenger = &LogDispatcher{}

func NewLogDispatcher(logger *log.Logger) *LogDispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, n service.Notification) (service.DispatchResult, error) {
	title, body := Render(n)
	d.logger.Printf("messaging: tenant=%s event=%s recipients=%d title=%q body=%q",
		n.TenantID, n.EventType, len(n.Recipients), title, body)
	return service.DispatchResult{Sent: len(n.Recipients)}, nil
}
