package handlers

import (
	"net/http"

	"github.com/eventhub/apiserver/internal/services"
	"github.com/eventhub/apiserver/internal/store"
	"github.com/eventhub/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// PublisherHandler provides the publisher-facing pages: the sales
// dashboard and the full listing view that includes drafts.
type PublisherHandler struct {
	events   *services.EventService
	bookings *services.BookingService
}

func NewPublisherHandler(events *services.EventService, bookings *services.BookingService) *PublisherHandler {
	return &PublisherHandler{
		events:   events,
		bookings: bookings,
	}
}

// PublisherRouter registers the publisher routes behind the page guard,
// which redirects browsers instead of returning JSON errors.
func PublisherRouter(r chi.Router, handler *PublisherHandler, pageGuard func(http.Handler) http.Handler) {
	r.Use(pageGuard)
	r.Get("/dashboard", handler.Dashboard)
	r.Get("/events", handler.ListOwnEvents)
}

// DashboardResponse aggregates ticket sales across the publisher's
// events.
type DashboardResponse struct {
	TotalEvents       int                         `json:"total_events"`
	TotalTicketsSold  int                         `json:"total_tickets_sold"`
	TotalRevenueCents int64                       `json:"total_revenue_cents"`
	Events            []store.PublisherEventStats `json:"events"`
}

func (h *PublisherHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	publisherID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := h.bookings.StatsByPublisher(r.Context(), publisherID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	resp := DashboardResponse{
		TotalEvents: len(stats),
		Events:      stats,
	}
	for _, row := range stats {
		resp.TotalTicketsSold += row.TicketsSold
		resp.TotalRevenueCents += row.RevenueCents
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListOwnEvents returns every event the publisher owns, drafts
// included.
func (h *PublisherHandler) ListOwnEvents(w http.ResponseWriter, r *http.Request) {
	publisherID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.events.List(r.Context(), store.EventFilter{PublisherID: publisherID}, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if items == nil {
		items = []types.Event{}
	}

	writeJSON(w, http.StatusOK, EventListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}
