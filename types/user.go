package types

import "time"

// Supported account roles.
const (
	// RoleUser is a regular attendee account that can browse events,
	// book tickets, and subscribe to interest alerts.
	RoleUser = "user"

	// RolePublisher is an organizer account that can additionally
	// create and manage event listings and view dashboard analytics.
	RolePublisher = "publisher"
)

// User represents an account in the system.
// It contains identity, role, interest subscriptions, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address. Emails are unique across
	// all accounts; uniqueness is enforced by the store.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level within the system.
	// One of RoleUser or RolePublisher.
	Role string `json:"role" db:"role"`

	// Interests are the event categories the user has subscribed to.
	// Newly published events in these categories produce notifications.
	Interests []string `json:"interests" db:"interests"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Session represents a server-side login session.
//
// A session is opened on login or signup and referenced by the ID claim of
// the signed token handed to the client. A token is only accepted while the
// matching session row exists and has not expired, so logging out revokes
// the token server-side regardless of what the client still holds.
type Session struct {
	// ID is the unique identifier of the session, generated as a UUID.
	ID string `json:"id" db:"id"`

	// UserID identifies the user the session belongs to.
	UserID int `json:"user_id" db:"user_id"`

	// ExpiresAt is the timestamp after which the session is no longer valid.
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`

	// CreatedAt is the timestamp when the session was opened.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
