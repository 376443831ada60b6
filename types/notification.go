package types

import "time"

// Notification represents an interest alert delivered to a user.
// Notifications are produced by the alerts worker when a newly published
// event matches one of the user's subscribed interest categories.
type Notification struct {
	// ID is the unique identifier of the notification.
	ID int `json:"id" db:"id"`

	// UserID identifies the user the notification is addressed to.
	UserID int `json:"user_id" db:"user_id"`

	// EventID identifies the event the notification is about.
	EventID int `json:"event_id" db:"event_id"`

	// Message is the human-readable alert text.
	Message string `json:"message" db:"message"`

	// Read reports whether the user has marked the notification as read.
	Read bool `json:"read" db:"read"`

	// CreatedAt is the timestamp when the notification was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// EventPublished is the message payload emitted on the broker when an
// event transitions to the published state. The alerts worker consumes it
// to fan notifications out to subscribed users.
type EventPublished struct {
	// EventID identifies the published event.
	EventID int `json:"event_id"`

	// Title is the event title at publish time.
	Title string `json:"title"`

	// Category is the interest category to match subscribers against.
	Category string `json:"category"`

	// PublisherID identifies the publisher that owns the event.
	PublisherID int `json:"publisher_id"`

	// PublishedAt is the time the event was published.
	PublishedAt time.Time `json:"published_at"`
}
