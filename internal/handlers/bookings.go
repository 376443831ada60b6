package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eventhub/apiserver/internal/services"
	"github.com/eventhub/apiserver/internal/store"
	"github.com/eventhub/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// BookingHandler provides HTTP handlers for ticket bookings.
type BookingHandler struct {
	bookings *services.BookingService
}

func NewBookingHandler(bookings *services.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// BookingRouter registers the booking routes. All of them require an
// authenticated user.
func BookingRouter(r chi.Router, handler *BookingHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Get("/", handler.ListMyBookings)
	r.Delete("/{bookingID}", handler.CancelBooking)
}

// CreateBookingRequest is the JSON body for booking tickets.
type CreateBookingRequest struct {
	Quantity int `json:"quantity"`
}

// CreateBooking books tickets for the event in the URL. It is mounted
// under the events subtree so the event ID comes from the path.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	eventID, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	booking, err := h.bookings.Create(r.Context(), userID, eventID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidQuantity):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "event not found")
		case errors.Is(err, store.ErrSoldOut):
			writeError(w, http.StatusConflict, "not enough seats left")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create booking")
		}
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

// BookingListResponse wraps the caller's bookings.
type BookingListResponse struct {
	Items []types.Booking `json:"items"`
}

func (h *BookingHandler) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	items, err := h.bookings.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}

	writeJSON(w, http.StatusOK, BookingListResponse{Items: items})
}

// CancelBooking cancels one of the caller's bookings and releases its
// seats back to the event.
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseIDParam(r, "bookingID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.bookings.Cancel(r.Context(), id, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to cancel booking")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
