package worker

import (
	"github.com/iCCupCalico/bot/internal/service"
)

// StartNotificationWorker registers audit handlers for lifecycle events.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
