package alert

import (
	"context"

	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/logger"
)

// Notifier renders the alert popup and non-blocking notices.
type Notifier interface {
	ShowAlert(ctx context.Context, event tracking.EmergencyEvent)
	ShowNotice(ctx context.Context, message string)
}

// LogNotifier writes popups and notices to the log.
type LogNotifier struct{}

// ShowAlert implements Notifier.
func (LogNotifier) ShowAlert(ctx context.Context, event tracking.EmergencyEvent) {
	logger.WarnKV(ctx, "Emergency alert",
		"id", event.ID,
		"message", event.Message,
		"latitude", event.Latitude,
		"longitude", event.Longitude,
		"reported_at", event.ReportedAt)
}

// ShowNotice implements Notifier.
func (LogNotifier) ShowNotice(ctx context.Context, message string) {
	logger.InfoKV(ctx, "Notice", "message", message)
}
