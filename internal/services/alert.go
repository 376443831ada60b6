package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/eventhub/apiserver/internal/mq"
	"github.com/eventhub/apiserver/types"
)

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	CreateBatch(ctx context.Context, notifications []types.Notification) (int, error)
	ListByUser(ctx context.Context, userID int) ([]types.Notification, error)
	MarkRead(ctx context.Context, id, userID int) error
}

// InterestFinder locates users subscribed to an interest category.
// *UserService satisfies it.
type InterestFinder interface {
	ListByInterest(ctx context.Context, category string) ([]types.User, error)
}

// AlertRecorder counts alert deliveries and failures.
type AlertRecorder interface {
	RecordAlertsDelivered(count int)
	RecordAlertFailure()
}

// AlertService turns event.published messages into notifications for
// every user whose interests include the event's category. It is the
// handler the worker subscribes to the broker with.
type AlertService struct {
	users         InterestFinder
	notifications NotificationRepository
	metrics       AlertRecorder
	logger        *slog.Logger
}

func NewAlertService(users InterestFinder, notifications NotificationRepository, metrics AlertRecorder, logger *slog.Logger) *AlertService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertService{
		users:         users,
		notifications: notifications,
		metrics:       metrics,
		logger:        logger,
	}
}

// HandleEventPublished processes one event.published message. Returning an
// error nacks the message for redelivery; the notification store skips
// duplicates, so redeliveries stay safe.
func (s *AlertService) HandleEventPublished(ctx context.Context, msg mq.Message) error {
	var payload types.EventPublished
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		// A malformed message will never parse; drop it instead of
		// redelivering forever.
		s.logger.Error("dropping malformed event.published message",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	subscribers, err := s.users.ListByInterest(ctx, payload.Category)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordAlertFailure()
		}
		return fmt.Errorf("list subscribers for %q: %w", payload.Category, err)
	}
	if len(subscribers) == 0 {
		return nil
	}

	message := fmt.Sprintf("New %s event: %s", payload.Category, payload.Title)
	notifications := make([]types.Notification, 0, len(subscribers))
	for _, subscriber := range subscribers {
		notifications = append(notifications, types.Notification{
			UserID:  subscriber.ID,
			EventID: payload.EventID,
			Message: message,
		})
	}

	created, err := s.notifications.CreateBatch(ctx, notifications)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordAlertFailure()
		}
		return fmt.Errorf("create notifications: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordAlertsDelivered(created)
	}
	s.logger.Info("dispatched interest alerts",
		slog.Int("event_id", payload.EventID),
		slog.String("category", payload.Category),
		slog.Int("delivered", created),
	)
	return nil
}

// NotificationService exposes a user's notification feed.
type NotificationService struct {
	repo NotificationRepository
}

func NewNotificationService(repo NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

func (s *NotificationService) ListByUser(ctx context.Context, userID int) ([]types.Notification, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID int) error {
	return s.repo.MarkRead(ctx, id, userID)
}
