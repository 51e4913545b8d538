package worker

import (
	"github.com/spec-kit/handoff-service/internal/service"
)

// StartEventConsumers registers the non-critical event consumers:
// notifications and transcript persistence.
func StartEventConsumers(notifications *service.NotificationService, transcripts *service.TranscriptService) {
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	if transcripts != nil {
		transcripts.RegisterHandlers()
	}
}
