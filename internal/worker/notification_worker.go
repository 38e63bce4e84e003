package worker

import (
	"context"

	"github.com/tracklite-io/tracklite/internal/push"
	"github.com/tracklite-io/tracklite/internal/service"
)

// StartNotificationWorker subscribes the push path to committed
// notifications and starts the cross-instance bridge consumer.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, bridge *push.Bridge) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
	if bridge != nil {
		go bridge.Run(ctx)
	}
}
