package messaging

import (
	"context"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"fmt"
	"github.com/PayRam/go-fundraising/service"
	"google.golang.org/api/option"
	"log"
)

// FCM accepts at most 500 tokens per multicast.
const multicastLimit = 500

// FCMDispatcher delivers notifications as push messages to recipients' device tokens.
type FCMDispatcher struct {
	client *messaging.Client
	logger *log.Logger
}

var _ service.Messenger = &FCMDispatcher{}

// NewFCMDispatcher initializes firebase from a service account file. Without one it
// falls back to the log dispatcher.
func NewFCMDispatcher(ctx context.Context, serviceAccountPath string, logger *log.Logger) (service.Messenger, error) {
	if logger == nil {
		logger = log.Default()
	}
	if serviceAccountPath == "" {
		logger.Println("FCM: No service account configured, push notifications disabled")
		return NewLogDispatcher(logger), nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	logger.Println("FCM: Push notifications enabled")
	return &FCMDispatcher{client: client, logger: logger}, nil
}

func (d *FCMDispatcher) Dispatch(ctx context.Context, n service.Notification) (service.DispatchResult, error) {
	var result service.DispatchResult

	tokens := make([]string, 0, len(n.Recipients))
	for _, r := range n.Recipients {
		if r.DeviceToken == nil || *r.DeviceToken == "" {
			result.Failed++
			continue
		}
		tokens = append(tokens, *r.DeviceToken)
	}

	title, body := Render(n)
	data := map[string]string{"tenantId": n.TenantID, "eventType": n.EventType}
	for key, value := range n.TemplateData {
		data[key] = fmt.Sprint(value)
	}

	for start := 0; start < len(tokens); start += multicastLimit {
		end := start + multicastLimit
		if end > len(tokens) {
			end = len(tokens)
		}
		batch, err := d.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens:       tokens[start:end],
			Notification: &messaging.Notification{Title: title, Body: body},
			Data:         data,
		})
		if err != nil {
			d.logger.Printf("FCM: Failed to send %s for tenant %s: %v", n.EventType, n.TenantID, err)
			result.Failed += end - start
			continue
		}
		result.Sent += batch.SuccessCount
		result.Failed += batch.FailureCount
	}
	return result, nil
}
