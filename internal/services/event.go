package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/eventhub/apiserver/internal/mq"
	"github.com/eventhub/apiserver/internal/store"
	"github.com/eventhub/apiserver/types"
)

// EventRepository defines persistence operations for event listings.
type EventRepository interface {
	List(ctx context.Context, filter store.EventFilter, offset, limit int) ([]types.Event, int, error)
	Get(ctx context.Context, id int) (types.Event, error)
	Create(ctx context.Context, event types.Event) (types.Event, error)
	Update(ctx context.Context, event types.Event) (types.Event, error)
	Delete(ctx context.Context, id int) error
}

// AlertPublisher publishes messages for the alerts worker. *mq.MQ
// satisfies it; a nil publisher disables alert fan-out.
type AlertPublisher interface {
	PublishJSON(ctx context.Context, topic string, value any, attrs map[string]string) (string, error)
}

// EventPublishRecorder counts events handed to the broker.
type EventPublishRecorder interface {
	RecordEventPublished()
}

// EventService encapsulates event listing use-cases.
type EventService struct {
	repo      EventRepository
	publisher AlertPublisher
	metrics   EventPublishRecorder
}

func NewEventService(repo EventRepository, publisher AlertPublisher, metrics EventPublishRecorder) *EventService {
	return &EventService{repo: repo, publisher: publisher, metrics: metrics}
}

func (s *EventService) List(ctx context.Context, filter store.EventFilter, offset, limit int) ([]types.Event, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, filter, offset, limit)
}

func (s *EventService) Get(ctx context.Context, id int) (types.Event, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a new listing. Listings created directly in the published
// state are announced to the alerts broker.
func (s *EventService) Create(ctx context.Context, event types.Event) (types.Event, error) {
	if event.Status == "" {
		event.Status = types.EventStatusPublished
	}

	created, err := s.repo.Create(ctx, event)
	if err != nil {
		return types.Event{}, err
	}

	if created.Status == types.EventStatusPublished {
		s.announce(ctx, created)
	}
	return created, nil
}

// Update rewrites the listing. An omitted status keeps the listing's
// current state. A transition into the published state is announced to
// the alerts broker.
func (s *EventService) Update(ctx context.Context, event types.Event, previousStatus string) (types.Event, error) {
	if event.Status == "" {
		event.Status = previousStatus
	}

	updated, err := s.repo.Update(ctx, event)
	if err != nil {
		return types.Event{}, err
	}

	if updated.Status == types.EventStatusPublished && previousStatus != types.EventStatusPublished {
		s.announce(ctx, updated)
	}
	return updated, nil
}

func (s *EventService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

// announce emits an event.published message. Broker failures are logged
// and do not fail the request; the listing itself has already been saved.
func (s *EventService) announce(ctx context.Context, event types.Event) {
	if s.publisher == nil {
		return
	}

	payload := types.EventPublished{
		EventID:     event.ID,
		Title:       event.Title,
		Category:    event.Category,
		PublisherID: event.PublisherID,
		PublishedAt: time.Now(),
	}
	if _, err := s.publisher.PublishJSON(ctx, mq.TopicEventPublished, payload, nil); err != nil {
		slog.Error("failed to publish event announcement",
			slog.Int("event_id", event.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordEventPublished()
	}
}
