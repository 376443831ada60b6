package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/eventhub/apiserver/internal/services"
	"github.com/eventhub/apiserver/internal/store"
	"github.com/eventhub/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const (
	maxMultipartMemory = 16 << 20
	maxPosterFormBytes = 8 << 20

	formFieldTitle    = "title"
	formFieldDesc     = "description"
	formFieldCategory = "category"
	formFieldVenue    = "venue"
	formFieldStartsAt = "starts_at"
	formFieldEndsAt   = "ends_at"
	formFieldPrice    = "price_cents"
	formFieldCapacity = "capacity"
	formFieldStatus   = "status"
	formFieldPoster   = "poster"
)

// EventHandler provides HTTP handlers for event listings.
type EventHandler struct {
	events  *services.EventService
	posters *services.PosterService
}

// NewEventHandler constructs a handler with the provided services.
func NewEventHandler(events *services.EventService, posters *services.PosterService) *EventHandler {
	return &EventHandler{
		events:  events,
		posters: posters,
	}
}

// EventRouter registers event routes on the given router. Mutations
// require an authenticated publisher.
func EventRouter(
	r chi.Router,
	handler *EventHandler,
	authMiddleware func(http.Handler) http.Handler,
	publisherOnly func(http.Handler) http.Handler,
) {
	r.Get("/", handler.ListEvents)
	r.With(authMiddleware, publisherOnly).Post("/", handler.CreateEvent)
	r.Route("/{eventID}", func(r chi.Router) {
		r.Get("/", handler.GetEvent)
		r.Get("/poster", handler.GetPoster)
		r.With(authMiddleware, publisherOnly).Put("/", handler.UpdateEvent)
		r.With(authMiddleware, publisherOnly).Delete("/", handler.DeleteEvent)
	})
}

// ListEvents returns the public catalog: published listings, optionally
// narrowed to one category.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := store.EventFilter{
		Status:   types.EventStatusPublished,
		Category: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category"))),
	}

	items, total, err := h.events.List(r.Context(), filter, offset, limit)
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

// GetEvent returns one listing. Drafts are only reachable through the
// publisher's own listing endpoints and read as missing here.
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.events.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch event")
		return
	}
	if event.Status == types.EventStatusDraft {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// GetPoster streams the event's poster image. Drafts and events without
// a poster read as missing.
func (h *EventHandler) GetPoster(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.events.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch event")
		return
	}
	if event.Status == types.EventStatusDraft || event.PosterKey == "" {
		writeError(w, http.StatusNotFound, "poster not found")
		return
	}

	reader, err := h.posters.Open(r.Context(), event.PosterKey)
	if err != nil {
		writeError(w, http.StatusNotFound, "poster not found")
		return
	}
	defer reader.Close()

	if contentType := mime.TypeByExtension(path.Ext(event.PosterKey)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	publisherID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	req, err := parseEventForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	posterKey, err := h.storePoster(r, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.events.Create(r.Context(), types.Event{
		PublisherID: publisherID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Venue:       req.Venue,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		PriceCents:  req.PriceCents,
		Capacity:    req.Capacity,
		Status:      req.Status,
		PosterKey:   posterKey,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	publisherID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.events.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch event")
		return
	}
	if existing.PublisherID != publisherID {
		writeError(w, http.StatusForbidden, "not the event publisher")
		return
	}

	req, err := parseEventForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	posterKey := existing.PosterKey
	if newKey, err := h.storePoster(r, req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	} else if newKey != "" {
		// Replace the old poster; cleanup of the previous object is
		// best effort.
		_ = h.posters.Delete(r.Context(), existing.PosterKey)
		posterKey = newKey
	}

	updated, err := h.events.Update(r.Context(), types.Event{
		ID:          id,
		PublisherID: existing.PublisherID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Venue:       req.Venue,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		PriceCents:  req.PriceCents,
		Capacity:    req.Capacity,
		Status:      req.Status,
		PosterKey:   posterKey,
	}, existing.Status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	publisherID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.events.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch event")
		return
	}
	if existing.PublisherID != publisherID {
		writeError(w, http.StatusForbidden, "not the event publisher")
		return
	}

	if err := h.events.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}

	_ = h.posters.Delete(r.Context(), existing.PosterKey)

	w.WriteHeader(http.StatusNoContent)
}

// EventUpsertRequest represents the parsed multipart form payload.
type EventUpsertRequest struct {
	Title       string
	Description string
	Category    string
	Venue       string
	StartsAt    time.Time
	EndsAt      time.Time
	PriceCents  int64
	Capacity    int
	Status      string
	Poster      []byte
}

// EventListResponse is the paginated list response payload.
type EventListResponse struct {
	Items []types.Event `json:"items"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Total int           `json:"total"`
}

func parseEventForm(r *http.Request) (EventUpsertRequest, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return EventUpsertRequest{}, errors.New("invalid multipart form")
	}

	title := strings.TrimSpace(r.FormValue(formFieldTitle))
	if title == "" {
		return EventUpsertRequest{}, errors.New("title is required")
	}

	category := strings.ToLower(strings.TrimSpace(r.FormValue(formFieldCategory)))
	if category == "" {
		return EventUpsertRequest{}, errors.New("category is required")
	}

	venue := strings.TrimSpace(r.FormValue(formFieldVenue))
	if venue == "" {
		return EventUpsertRequest{}, errors.New("venue is required")
	}

	startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(r.FormValue(formFieldStartsAt)))
	if err != nil {
		return EventUpsertRequest{}, errors.New("invalid starts_at, want RFC 3339")
	}
	endsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(r.FormValue(formFieldEndsAt)))
	if err != nil {
		return EventUpsertRequest{}, errors.New("invalid ends_at, want RFC 3339")
	}
	if !endsAt.After(startsAt) {
		return EventUpsertRequest{}, errors.New("ends_at must be after starts_at")
	}

	priceCents, err := parseOptionalInt64(r.FormValue(formFieldPrice))
	if err != nil || priceCents < 0 {
		return EventUpsertRequest{}, errors.New("invalid price_cents")
	}

	capacity, err := strconv.Atoi(strings.TrimSpace(r.FormValue(formFieldCapacity)))
	if err != nil || capacity < 1 {
		return EventUpsertRequest{}, errors.New("capacity must be at least 1")
	}

	status := strings.TrimSpace(r.FormValue(formFieldStatus))
	switch status {
	case "", types.EventStatusDraft, types.EventStatusPublished, types.EventStatusCancelled:
	default:
		return EventUpsertRequest{}, errors.New("invalid status")
	}

	poster, err := parsePosterFile(r.MultipartForm)
	if err != nil {
		return EventUpsertRequest{}, err
	}

	return EventUpsertRequest{
		Title:       title,
		Description: strings.TrimSpace(r.FormValue(formFieldDesc)),
		Category:    category,
		Venue:       venue,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		PriceCents:  priceCents,
		Capacity:    capacity,
		Status:      status,
		Poster:      poster,
	}, nil
}

func parseOptionalInt64(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.ParseInt(value, 10, 64)
}

func parsePosterFile(form *multipart.Form) ([]byte, error) {
	if form == nil {
		return nil, nil
	}

	files := form.File[formFieldPoster]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > 1 {
		return nil, errors.New("only one poster file is allowed")
	}

	file, err := files[0].Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read poster file: %w", err)
	}

	data, err := readFileLimited(file, maxPosterFormBytes)
	_ = file.Close()
	if err != nil {
		return nil, err
	}
	return data, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}

// storePoster uploads the request's poster bytes, if any, and returns the
// new object key.
func (h *EventHandler) storePoster(r *http.Request, req EventUpsertRequest) (string, error) {
	if len(req.Poster) == 0 {
		return "", nil
	}
	if !h.posters.Enabled() {
		return "", services.ErrStorageUnavailable
	}
	return h.posters.Upload(r.Context(), req.Poster)
}
