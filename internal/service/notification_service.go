package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/tracklite-io/tracklite/internal/config"
	"github.com/tracklite-io/tracklite/internal/domain"
	"github.com/tracklite-io/tracklite/internal/events"
	"github.com/tracklite-io/tracklite/internal/observability"
	"github.com/tracklite-io/tracklite/internal/push"
	"github.com/tracklite-io/tracklite/internal/repository"
	apperrors "github.com/tracklite-io/tracklite/pkg/util"
)

// NotificationService serves the durable notification store and forwards
// committed notifications to live connections. Push is strictly
// best-effort: the row is already durable when any handler runs, and a
// failed delivery to one recipient never touches the others.
type NotificationService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	registry   *push.Registry
	bridge     *push.Bridge
	metrics    *observability.Metrics
	logger     *zap.Logger
	window     int
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Registry   *push.Registry
	Bridge     *push.Bridge
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Config     config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	window := deps.Config.UnreadWindow
	if window <= 0 {
		window = 50
	}
	return &NotificationService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		registry:   deps.Registry,
		bridge:     deps.Bridge,
		metrics:    deps.Metrics,
		logger:     logger,
		window:     window,
	}
}

// RegisterHandlers subscribes the push path to committed notifications.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventNotificationCreated, n.handleNotificationCreated)
}

func (n *NotificationService) handleNotificationCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.NotificationCreatedPayload)
	if !ok {
		n.logger.Warn("unexpected notification payload", zap.String("event_id", event.ID))
		return nil
	}
	notification := payload.Notification

	delivered := 0
	if n.registry != nil {
		delivered = n.registry.Deliver(notification)
	}
	n.metrics.RecordPush(delivered > 0)
	if n.bridge != nil {
		n.bridge.Publish(ctx, notification)
	}
	n.logger.Debug("notification dispatched",
		zap.String("notification_id", notification.ID),
		zap.String("recipient_id", notification.RecipientID),
		zap.Int("live_deliveries", delivered))
	return nil
}

// List returns the recipient's unread notifications, newest first, capped
// at the configured window.
func (n *NotificationService) List(ctx context.Context, actorID string) ([]domain.Notification, error) {
	notifs, err := n.store.Notifications().ListUnread(ctx, actorID, n.window)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return notifs, nil
}

// UnreadCount returns the recipient's unread total.
func (n *NotificationService) UnreadCount(ctx context.Context, actorID string) (int, error) {
	count, err := n.store.Notifications().CountUnread(ctx, actorID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}

// MarkRead marks one notification read. Idempotent and recipient-scoped:
// marking another user's notification is a silent no-op.
func (n *NotificationService) MarkRead(ctx context.Context, actorID, notificationID string) error {
	return apperrors.MapError(n.store.Notifications().MarkRead(ctx, actorID, notificationID))
}

// MarkAllRead marks every unread notification for the recipient read.
func (n *NotificationService) MarkAllRead(ctx context.Context, actorID string) error {
	return apperrors.MapError(n.store.Notifications().MarkAllRead(ctx, actorID))
}
