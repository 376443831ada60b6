package types

import "time"

// Booking statuses.
const (
	// BookingStatusConfirmed marks a booking whose seats are held.
	BookingStatusConfirmed = "confirmed"

	// BookingStatusCancelled marks a booking whose seats were released.
	BookingStatusCancelled = "cancelled"
)

// Booking represents a ticket purchase for an event.
type Booking struct {
	// ID is the unique identifier of the booking.
	ID int `json:"id" db:"id"`

	// EventID identifies the event the booking is for.
	EventID int `json:"event_id" db:"event_id"`

	// UserID identifies the user who made the booking.
	UserID int `json:"user_id" db:"user_id"`

	// Quantity is the number of tickets booked. Always at least 1.
	Quantity int `json:"quantity" db:"quantity"`

	// TotalCents is the total price of the booking in cents,
	// quantity times the event's ticket price at booking time.
	TotalCents int64 `json:"total_cents" db:"total_cents"`

	// Reference is the human-facing confirmation code, generated as a UUID.
	Reference string `json:"reference" db:"reference"`

	// Status is one of BookingStatusConfirmed or BookingStatusCancelled.
	Status string `json:"status" db:"status"`

	// CreatedAt is the timestamp when the booking was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp when the booking was last updated.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
