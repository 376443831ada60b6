package types

import "time"

// Event lifecycle statuses.
const (
	// EventStatusDraft marks a listing that is visible only to its publisher.
	EventStatusDraft = "draft"

	// EventStatusPublished marks a listing that is publicly listed and bookable.
	EventStatusPublished = "published"

	// EventStatusCancelled marks a listing that has been withdrawn.
	// Cancelled events remain readable but accept no new bookings.
	EventStatusCancelled = "cancelled"
)

// Event represents a bookable event listing in the catalog.
// It contains display metadata, scheduling, pricing, and ticket inventory.
type Event struct {
	// ID is the unique identifier of the event.
	ID int `json:"id" db:"id"`

	// PublisherID identifies the publisher account that owns the listing.
	PublisherID int `json:"publisher_id" db:"publisher_id"`

	// Title is the human-readable name of the event.
	Title string `json:"title" db:"title"`

	// Description contains the full event description shown on the
	// detail page.
	Description string `json:"description" db:"description"`

	// Category is the interest category of the event (e.g. "music",
	// "technology"). Categories are matched against user interests when
	// dispatching alerts.
	Category string `json:"category" db:"category"`

	// Venue is the display name of the location the event takes place at.
	Venue string `json:"venue" db:"venue"`

	// StartsAt is the scheduled start time of the event.
	StartsAt time.Time `json:"starts_at" db:"starts_at"`

	// EndsAt is the scheduled end time of the event.
	EndsAt time.Time `json:"ends_at" db:"ends_at"`

	// PriceCents is the ticket price in cents. Zero means a free event.
	PriceCents int64 `json:"price_cents" db:"price_cents"`

	// Capacity is the total number of tickets available for sale.
	Capacity int `json:"capacity" db:"capacity"`

	// Booked is the number of tickets currently sold. Booked never
	// exceeds Capacity; the store enforces this when bookings are created.
	Booked int `json:"booked" db:"booked"`

	// Status is the lifecycle state of the listing. One of
	// EventStatusDraft, EventStatusPublished, or EventStatusCancelled.
	Status string `json:"status" db:"status"`

	// PosterKey is the object-storage key of the uploaded poster image,
	// empty when no poster has been uploaded.
	PosterKey string `json:"poster_key,omitempty" db:"poster_key"`

	// CreatedAt is the timestamp at which the listing was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the listing.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SeatsLeft returns the number of tickets still available for sale.
func (e Event) SeatsLeft() int {
	left := e.Capacity - e.Booked
	if left < 0 {
		return 0
	}
	return left
}
