package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventhub/apiserver/types"
)

// EventFilter narrows event list queries. Zero values mean "no filter".
type EventFilter struct {
	// Category restricts results to one interest category.
	Category string

	// PublisherID restricts results to listings owned by one publisher.
	PublisherID int

	// Status restricts results to one lifecycle status.
	Status string
}

// EventRepository handles persistence for event listings.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, publisher_id, title, description, category, venue,
		starts_at, ends_at, price_cents, capacity, booked, status, poster_key,
		created_at, updated_at`

func (r *EventRepository) List(ctx context.Context, filter EventFilter, offset, limit int) ([]types.Event, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	where, args := buildEventFilter(filter)

	countQuery := `SELECT COUNT(1) FROM events` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(
		`SELECT %s FROM events%s ORDER BY starts_at, id OFFSET $%d LIMIT $%d`,
		eventColumns, where, len(args)+1, len(args)+2,
	)
	rows, err := r.db.QueryContext(ctx, listQuery, append(args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := make([]types.Event, 0, limit)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *EventRepository) Get(ctx context.Context, id int) (types.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events WHERE id = $1`, eventColumns)
	row := r.db.QueryRowContext(ctx, query, id)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Event{}, ErrNotFound
		}
		return types.Event{}, err
	}
	return event, nil
}

func (r *EventRepository) Create(ctx context.Context, event types.Event) (types.Event, error) {
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now

	const query = `
		INSERT INTO events (publisher_id, title, description, category, venue,
			starts_at, ends_at, price_cents, capacity, booked, status, poster_key,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		event.PublisherID,
		event.Title,
		event.Description,
		event.Category,
		event.Venue,
		event.StartsAt,
		event.EndsAt,
		event.PriceCents,
		event.Capacity,
		event.Booked,
		event.Status,
		event.PosterKey,
		event.CreatedAt,
		event.UpdatedAt,
	).Scan(&event.ID); err != nil {
		return types.Event{}, err
	}
	return event, nil
}

// Update rewrites the mutable listing fields. The booked counter is owned
// by the booking queries and is deliberately not touched here.
func (r *EventRepository) Update(ctx context.Context, event types.Event) (types.Event, error) {
	event.UpdatedAt = time.Now()

	const query = `
		UPDATE events
		SET title = $1,
			description = $2,
			category = $3,
			venue = $4,
			starts_at = $5,
			ends_at = $6,
			price_cents = $7,
			capacity = $8,
			status = $9,
			poster_key = $10,
			updated_at = $11
		WHERE id = $12`
	result, err := r.db.ExecContext(
		ctx,
		query,
		event.Title,
		event.Description,
		event.Category,
		event.Venue,
		event.StartsAt,
		event.EndsAt,
		event.PriceCents,
		event.Capacity,
		event.Status,
		event.PosterKey,
		event.UpdatedAt,
		event.ID,
	)
	if err != nil {
		return types.Event{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Event{}, err
	}
	if affected == 0 {
		return types.Event{}, ErrNotFound
	}
	return event, nil
}

func (r *EventRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM events WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func buildEventFilter(filter EventFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.Category != "" {
		args = append(args, filter.Category)
		clauses = append(clauses, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.PublisherID != 0 {
		args = append(args, filter.PublisherID)
		clauses = append(clauses, fmt.Sprintf("publisher_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (types.Event, error) {
	var event types.Event
	err := row.Scan(
		&event.ID,
		&event.PublisherID,
		&event.Title,
		&event.Description,
		&event.Category,
		&event.Venue,
		&event.StartsAt,
		&event.EndsAt,
		&event.PriceCents,
		&event.Capacity,
		&event.Booked,
		&event.Status,
		&event.PosterKey,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return types.Event{}, err
	}
	return event, nil
}
