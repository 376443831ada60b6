package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eventhub/apiserver/config"
	"github.com/eventhub/apiserver/internal/services"
	"github.com/eventhub/apiserver/internal/storage"
	"github.com/eventhub/apiserver/internal/store"
	"github.com/eventhub/apiserver/types"
	"github.com/go-chi/chi/v5"
)

type fakeEventRepo struct {
	mu     sync.Mutex
	nextID int
	events map[int]types.Event
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[int]types.Event)}
}

func (r *fakeEventRepo) List(ctx context.Context, filter store.EventFilter, offset, limit int) ([]types.Event, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []types.Event
	for _, event := range r.events {
		if filter.Status != "" && event.Status != filter.Status {
			continue
		}
		if filter.Category != "" && event.Category != filter.Category {
			continue
		}
		if filter.PublisherID != 0 && event.PublisherID != filter.PublisherID {
			continue
		}
		matched = append(matched, event)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r *fakeEventRepo) Get(ctx context.Context, id int) (types.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return types.Event{}, store.ErrNotFound
	}
	return event, nil
}

func (r *fakeEventRepo) Create(ctx context.Context, event types.Event) (types.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	event.ID = r.nextID
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	r.events[event.ID] = event
	return event, nil
}

func (r *fakeEventRepo) Update(ctx context.Context, event types.Event) (types.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.events[event.ID]
	if !ok {
		return types.Event{}, store.ErrNotFound
	}
	event.Booked = existing.Booked
	event.CreatedAt = existing.CreatedAt
	event.UpdatedAt = time.Now()
	r.events[event.ID] = event
	return event, nil
}

func (r *fakeEventRepo) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.events, id)
	return nil
}

// claimSeats mirrors the store's atomic seat claim.
func (r *fakeEventRepo) claimSeats(id, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return store.ErrNotFound
	}
	if event.Status != types.EventStatusPublished || event.Booked+quantity > event.Capacity {
		return store.ErrSoldOut
	}
	event.Booked += quantity
	r.events[id] = event
	return nil
}

func (r *fakeEventRepo) releaseSeats(id, quantity int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return
	}
	event.Booked -= quantity
	if event.Booked < 0 {
		event.Booked = 0
	}
	r.events[id] = event
}

type fakeBookingRepo struct {
	mu       sync.Mutex
	nextID   int
	bookings map[int]types.Booking
	events   *fakeEventRepo
}

func newFakeBookingRepo(events *fakeEventRepo) *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[int]types.Booking), events: events}
}

func (r *fakeBookingRepo) Create(ctx context.Context, booking types.Booking) (types.Booking, error) {
	if err := r.events.claimSeats(booking.EventID, booking.Quantity); err != nil {
		return types.Booking{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	booking.ID = r.nextID
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt
	r.bookings[booking.ID] = booking
	return booking, nil
}

func (r *fakeBookingRepo) Get(ctx context.Context, id int) (types.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, ok := r.bookings[id]
	if !ok {
		return types.Booking{}, store.ErrNotFound
	}
	return booking, nil
}

func (r *fakeBookingRepo) ListByUser(ctx context.Context, userID int) ([]types.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []types.Booking
	for _, booking := range r.bookings {
		if booking.UserID == userID {
			matched = append(matched, booking)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

func (r *fakeBookingRepo) Cancel(ctx context.Context, id, userID int) error {
	r.mu.Lock()
	booking, ok := r.bookings[id]
	if !ok || booking.UserID != userID || booking.Status == types.BookingStatusCancelled {
		r.mu.Unlock()
		return store.ErrNotFound
	}
	booking.Status = types.BookingStatusCancelled
	booking.UpdatedAt = time.Now()
	r.bookings[id] = booking
	r.mu.Unlock()

	r.events.releaseSeats(booking.EventID, booking.Quantity)
	return nil
}

func (r *fakeBookingRepo) StatsByPublisher(ctx context.Context, publisherID int) ([]store.PublisherEventStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byEvent := make(map[int]*store.PublisherEventStats)
	r.events.mu.Lock()
	for _, event := range r.events.events {
		if event.PublisherID != publisherID {
			continue
		}
		byEvent[event.ID] = &store.PublisherEventStats{
			EventID:  event.ID,
			Title:    event.Title,
			Status:   event.Status,
			Capacity: event.Capacity,
		}
	}
	r.events.mu.Unlock()

	for _, booking := range r.bookings {
		stats, ok := byEvent[booking.EventID]
		if !ok || booking.Status != types.BookingStatusConfirmed {
			continue
		}
		stats.Bookings++
		stats.TicketsSold += booking.Quantity
		stats.RevenueCents += booking.TotalCents
	}

	var out []store.PublisherEventStats
	for _, stats := range byEvent {
		out = append(out, *stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out, nil
}

type fakeAlertPublisher struct {
	mu       sync.Mutex
	messages []types.EventPublished
}

func (p *fakeAlertPublisher) PublishJSON(ctx context.Context, topic string, value any, attrs map[string]string) (string, error) {
	payload, ok := value.(types.EventPublished)
	if !ok {
		return "", fmt.Errorf("unexpected payload type %T", value)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, payload)
	return fmt.Sprintf("msg-%d", len(p.messages)), nil
}

func (p *fakeAlertPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

type memPosterStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemPosterStore() *memPosterStore {
	return &memPosterStore{objects: make(map[string][]byte)}
}

func (m *memPosterStore) EnsureBucket(ctx context.Context) error { return nil }

func (m *memPosterStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memPosterStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memPosterStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memPosterStore) Bucket() string { return "test-posters" }

type apiTestEnv struct {
	router    *chi.Mux
	users     *fakeUserRepo
	sessions  *fakeSessionRepo
	events    *fakeEventRepo
	bookings  *fakeBookingRepo
	published *fakeAlertPublisher
	posters   *memPosterStore
}

func newAPITestEnv(t *testing.T) *apiTestEnv {
	t.Helper()

	userRepo := newFakeUserRepo()
	sessionRepo := newFakeSessionRepo()
	eventRepo := newFakeEventRepo()
	bookingRepo := newFakeBookingRepo(eventRepo)
	publisher := &fakeAlertPublisher{}
	posterStore := newMemPosterStore()

	userService := services.NewUserService(userRepo)
	sessionService := services.NewSessionService(sessionRepo, time.Hour)
	eventService := services.NewEventService(eventRepo, publisher, nil)
	bookingService := services.NewBookingService(bookingRepo, eventRepo, nil)
	posterService := services.NewPosterService(storage.NewStorage(posterStore))

	authHandler := NewAuthHandler(userService, sessionService, config.AuthConfig{
		JWTSecret:  "test-secret",
		SessionTTL: time.Hour,
	})
	eventHandler := NewEventHandler(eventService, posterService)
	bookingHandler := NewBookingHandler(bookingService)
	publisherHandler := NewPublisherHandler(eventService, bookingService)

	requireAuth := authHandler.RequireAuth
	publisherOnly := authHandler.RequireRole(types.RolePublisher)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, authHandler)
	})
	router.Route("/events", func(r chi.Router) {
		EventRouter(r, eventHandler, requireAuth, publisherOnly)
		r.With(requireAuth).Post("/{eventID}/bookings", bookingHandler.CreateBooking)
	})
	router.Route("/bookings", func(r chi.Router) {
		BookingRouter(r, bookingHandler, requireAuth)
	})
	router.Route("/publisher", func(r chi.Router) {
		PublisherRouter(r, publisherHandler, authHandler.PageGuard(types.RolePublisher))
	})

	return &apiTestEnv{
		router:    router,
		users:     userRepo,
		sessions:  sessionRepo,
		events:    eventRepo,
		bookings:  bookingRepo,
		published: publisher,
		posters:   posterStore,
	}
}

func (e *apiTestEnv) signupToken(t *testing.T, email, role string) string {
	t.Helper()

	body, err := json.Marshal(SignupRequest{
		Name:     "Test " + role,
		Email:    email,
		Password: "secret123",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("encode signup: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d (body %s)", rec.Code, rec.Body.String())
	}

	var resp AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode signup response: %v", err)
	}
	return resp.Token
}

func (e *apiTestEnv) doJSON(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func eventForm(t *testing.T, fields map[string]string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write form field %s: %v", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close form writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func validEventFields(overrides map[string]string) map[string]string {
	starts := time.Now().Add(48 * time.Hour).UTC()
	fields := map[string]string{
		"title":       "Jazz Night",
		"description": "An evening of live jazz.",
		"category":    "music",
		"venue":       "Blue Hall",
		"starts_at":   starts.Format(time.RFC3339),
		"ends_at":     starts.Add(3 * time.Hour).Format(time.RFC3339),
		"price_cents": "2500",
		"capacity":    "100",
	}
	for key, value := range overrides {
		fields[key] = value
	}
	return fields
}

func (e *apiTestEnv) createEvent(t *testing.T, token string, overrides map[string]string) types.Event {
	t.Helper()

	body, contentType := eventForm(t, validEventFields(overrides))
	req := httptest.NewRequest(http.MethodPost, "/events", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create event status = %d (body %s)", rec.Code, rec.Body.String())
	}

	var event types.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return event
}

func TestCreateEventRequiresPublisherRole(t *testing.T) {
	env := newAPITestEnv(t)
	token := env.signupToken(t, "user@example.com", types.RoleUser)

	body, contentType := eventForm(t, validEventFields(nil))
	req := httptest.NewRequest(http.MethodPost, "/events", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestCreateEventDefaultsToPublishedAndAnnounces(t *testing.T) {
	env := newAPITestEnv(t)
	token := env.signupToken(t, "pub@example.com", types.RolePublisher)

	event := env.createEvent(t, token, nil)
	if event.Status != types.EventStatusPublished {
		t.Fatalf("status = %q, want %q", event.Status, types.EventStatusPublished)
	}
	if env.published.count() != 1 {
		t.Fatalf("published messages = %d, want 1", env.published.count())
	}
	msg := env.published.messages[0]
	if msg.EventID != event.ID || msg.Category != "music" {
		t.Fatalf("unexpected announcement: %+v", msg)
	}
}

func TestDraftEventsAreHiddenFromThePublicCatalog(t *testing.T) {
	env := newAPITestEnv(t)
	token := env.signupToken(t, "pub@example.com", types.RolePublisher)

	draft := env.createEvent(t, token, map[string]string{"status": types.EventStatusDraft})
	if env.published.count() != 0 {
		t.Fatal("drafts must not be announced")
	}

	rec := env.doJSON(t, http.MethodGet, fmt.Sprintf("/events/%d", draft.ID), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("public get status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = env.doJSON(t, http.MethodGet, "/events", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list EventListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 0 {
		t.Fatalf("public list total = %d, want 0", list.Total)
	}
}

func TestPublishingADraftAnnouncesIt(t *testing.T) {
	env := newAPITestEnv(t)
	token := env.signupToken(t, "pub@example.com", types.RolePublisher)

	draft := env.createEvent(t, token, map[string]string{"status": types.EventStatusDraft})

	body, contentType := eventForm(t, validEventFields(map[string]string{"status": types.EventStatusPublished}))
	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/events/%d", draft.ID), body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d (body %s)", rec.Code, rec.Body.String())
	}
	if env.published.count() != 1 {
		t.Fatalf("published messages = %d, want 1", env.published.count())
	}
}

func TestPublicListFiltersByCategory(t *testing.T) {
	env := newAPITestEnv(t)
	token := env.signupToken(t, "pub@example.com", types.RolePublisher)

	env.createEvent(t, token, map[string]string{"category": "music"})
	env.createEvent(t, token, map[string]string{"category": "tech", "title": "Go Meetup"})

	rec := env.doJSON(t, http.MethodGet, "/events?category=Tech", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list EventListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 1 || len(list.Items) != 1 {
		t.Fatalf("total = %d, items = %d, want 1 each", list.Total, len(list.Items))
	}
	if list.Items[0].Title != "Go Meetup" {
		t.Fatalf("unexpected item: %q", list.Items[0].Title)
	}
}

func TestUpdateEventRejectsNonOwner(t *testing.T) {
	env := newAPITestEnv(t)
	owner := env.signupToken(t, "owner@example.com", types.RolePublisher)
	other := env.signupToken(t, "other@example.com", types.RolePublisher)

	event := env.createEvent(t, owner, nil)

	body, contentType := eventForm(t, validEventFields(map[string]string{"title": "Hijacked"}))
	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/events/%d", event.ID), body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+other)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestCreateEventValidation(t *testing.T) {
	env := newAPITestEnv(t)
	token := env.signupToken(t, "pub@example.com", types.RolePublisher)

	cases := []struct {
		name      string
		overrides map[string]string
	}{
		{"missing title", map[string]string{"title": " "}},
		{"zero capacity", map[string]string{"capacity": "0"}},
		{"ends before starts", map[string]string{"ends_at": time.Now().Format(time.RFC3339)}},
		{"negative price", map[string]string{"price_cents": "-1"}},
		{"bad status", map[string]string{"status": "archived"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := eventForm(t, validEventFields(tc.overrides))
			req := httptest.NewRequest(http.MethodPost, "/events", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Authorization", "Bearer "+token)

			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusBadRequest, rec.Body.String())
			}
		})
	}
}

func TestBookingClaimsSeatsAndSellsOut(t *testing.T) {
	env := newAPITestEnv(t)
	pub := env.signupToken(t, "pub@example.com", types.RolePublisher)
	user := env.signupToken(t, "fan@example.com", types.RoleUser)

	event := env.createEvent(t, pub, map[string]string{"capacity": "3", "price_cents": "1000"})

	rec := env.doJSON(t, http.MethodPost, fmt.Sprintf("/events/%d/bookings", event.ID), user, CreateBookingRequest{Quantity: 2})
	if rec.Code != http.StatusCreated {
		t.Fatalf("booking status = %d (body %s)", rec.Code, rec.Body.String())
	}

	var booking types.Booking
	if err := json.Unmarshal(rec.Body.Bytes(), &booking); err != nil {
		t.Fatalf("decode booking: %v", err)
	}
	if booking.TotalCents != 2000 {
		t.Fatalf("total = %d, want 2000", booking.TotalCents)
	}
	if booking.Reference == "" {
		t.Fatal("expected a booking reference")
	}

	// Two seats remain gone; asking for two more exceeds capacity.
	rec = env.doJSON(t, http.MethodPost, fmt.Sprintf("/events/%d/bookings", event.ID), user, CreateBookingRequest{Quantity: 2})
	if rec.Code != http.StatusConflict {
		t.Fatalf("overbook status = %d, want %d", rec.Code, http.StatusConflict)
	}

	// The last seat is still sellable.
	rec = env.doJSON(t, http.MethodPost, fmt.Sprintf("/events/%d/bookings", event.ID), user, CreateBookingRequest{Quantity: 1})
	if rec.Code != http.StatusCreated {
		t.Fatalf("last seat status = %d", rec.Code)
	}
}

func TestBookingRejectsInvalidQuantity(t *testing.T) {
	env := newAPITestEnv(t)
	pub := env.signupToken(t, "pub@example.com", types.RolePublisher)
	user := env.signupToken(t, "fan@example.com", types.RoleUser)

	event := env.createEvent(t, pub, nil)

	rec := env.doJSON(t, http.MethodPost, fmt.Sprintf("/events/%d/bookings", event.ID), user, CreateBookingRequest{Quantity: 0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestBookingDraftEventIsNotFound(t *testing.T) {
	env := newAPITestEnv(t)
	pub := env.signupToken(t, "pub@example.com", types.RolePublisher)
	user := env.signupToken(t, "fan@example.com", types.RoleUser)

	draft := env.createEvent(t, pub, map[string]string{"status": types.EventStatusDraft})

	rec := env.doJSON(t, http.MethodPost, fmt.Sprintf("/events/%d/bookings", draft.ID), user, CreateBookingRequest{Quantity: 1})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCancelBookingReleasesSeats(t *testing.T) {
	env := newAPITestEnv(t)
	pub := env.signupToken(t, "pub@example.com", types.RolePublisher)
	user := env.signupToken(t, "fan@example.com", types.RoleUser)

	event := env.createEvent(t, pub, map[string]string{"capacity": "2"})

	rec := env.doJSON(t, http.MethodPost, fmt.Sprintf("/events/%d/bookings", event.ID), user, CreateBookingRequest{Quantity: 2})
	if rec.Code != http.StatusCreated {
		t.Fatalf("booking status = %d", rec.Code)
	}
	var booking types.Booking
	if err := json.Unmarshal(rec.Body.Bytes(), &booking); err != nil {
		t.Fatalf("decode booking: %v", err)
	}

	rec = env.doJSON(t, http.MethodDelete, fmt.Sprintf("/bookings/%d", booking.ID), user, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cancel status = %d (body %s)", rec.Code, rec.Body.String())
	}

	// Seats are back on sale.
	rec = env.doJSON(t, http.MethodPost, fmt.Sprintf("/events/%d/bookings", event.ID), user, CreateBookingRequest{Quantity: 2})
	if rec.Code != http.StatusCreated {
		t.Fatalf("rebook status = %d, want %d", rec.Code, http.StatusCreated)
	}
}

func TestCancelBookingRejectsForeignBooking(t *testing.T) {
	env := newAPITestEnv(t)
	pub := env.signupToken(t, "pub@example.com", types.RolePublisher)
	owner := env.signupToken(t, "owner@example.com", types.RoleUser)
	other := env.signupToken(t, "other@example.com", types.RoleUser)

	event := env.createEvent(t, pub, nil)

	rec := env.doJSON(t, http.MethodPost, fmt.Sprintf("/events/%d/bookings", event.ID), owner, CreateBookingRequest{Quantity: 1})
	if rec.Code != http.StatusCreated {
		t.Fatalf("booking status = %d", rec.Code)
	}
	var booking types.Booking
	if err := json.Unmarshal(rec.Body.Bytes(), &booking); err != nil {
		t.Fatalf("decode booking: %v", err)
	}

	rec = env.doJSON(t, http.MethodDelete, fmt.Sprintf("/bookings/%d", booking.ID), other, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestListMyBookingsOnlyListsOwn(t *testing.T) {
	env := newAPITestEnv(t)
	pub := env.signupToken(t, "pub@example.com", types.RolePublisher)
	ada := env.signupToken(t, "ada@example.com", types.RoleUser)
	bob := env.signupToken(t, "bob@example.com", types.RoleUser)

	event := env.createEvent(t, pub, nil)

	for _, token := range []string{ada, bob} {
		rec := env.doJSON(t, http.MethodPost, fmt.Sprintf("/events/%d/bookings", event.ID), token, CreateBookingRequest{Quantity: 1})
		if rec.Code != http.StatusCreated {
			t.Fatalf("booking status = %d", rec.Code)
		}
	}

	rec := env.doJSON(t, http.MethodGet, "/bookings", ada, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list BookingListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(list.Items))
	}
}

func TestPublisherDashboardAggregatesSales(t *testing.T) {
	env := newAPITestEnv(t)
	pub := env.signupToken(t, "pub@example.com", types.RolePublisher)
	user := env.signupToken(t, "fan@example.com", types.RoleUser)

	event := env.createEvent(t, pub, map[string]string{"price_cents": "1500", "capacity": "10"})

	rec := env.doJSON(t, http.MethodPost, fmt.Sprintf("/events/%d/bookings", event.ID), user, CreateBookingRequest{Quantity: 3})
	if rec.Code != http.StatusCreated {
		t.Fatalf("booking status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/publisher/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: pub})
	dash := httptest.NewRecorder()
	env.router.ServeHTTP(dash, req)
	if dash.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d (body %s)", dash.Code, dash.Body.String())
	}

	var resp DashboardResponse
	if err := json.Unmarshal(dash.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if resp.TotalEvents != 1 {
		t.Fatalf("total events = %d, want 1", resp.TotalEvents)
	}
	if resp.TotalTicketsSold != 3 {
		t.Fatalf("tickets sold = %d, want 3", resp.TotalTicketsSold)
	}
	if resp.TotalRevenueCents != 4500 {
		t.Fatalf("revenue = %d, want 4500", resp.TotalRevenueCents)
	}
}

func TestTitleOnlyUpdateKeepsPublishedStatus(t *testing.T) {
	env := newAPITestEnv(t)
	token := env.signupToken(t, "pub@example.com", types.RolePublisher)

	event := env.createEvent(t, token, nil)
	if event.Status != types.EventStatusPublished {
		t.Fatalf("precondition: status = %q", event.Status)
	}

	// A form without a status field must not clear the lifecycle state.
	body, contentType := eventForm(t, validEventFields(map[string]string{"title": "Jazz Night, Renamed"}))
	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/events/%d", event.ID), body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d (body %s)", rec.Code, rec.Body.String())
	}

	var updated types.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if updated.Status != types.EventStatusPublished {
		t.Fatalf("status after title-only update = %q, want %q", updated.Status, types.EventStatusPublished)
	}
	if updated.Title != "Jazz Night, Renamed" {
		t.Fatalf("title = %q", updated.Title)
	}

	// The listing is still in the public catalog.
	rec = env.doJSON(t, http.MethodGet, "/events", "", nil)
	var list EventListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 1 {
		t.Fatalf("catalog total after update = %d, want 1", list.Total)
	}

	// No announcement either: the event never left the published state.
	if env.published.count() != 1 {
		t.Fatalf("published messages = %d, want 1 (creation only)", env.published.count())
	}
}

func TestStatusOmittedUpdateKeepsDraftUnannounced(t *testing.T) {
	env := newAPITestEnv(t)
	token := env.signupToken(t, "pub@example.com", types.RolePublisher)

	draft := env.createEvent(t, token, map[string]string{"status": types.EventStatusDraft})

	body, contentType := eventForm(t, validEventFields(map[string]string{"title": "Still Secret"}))
	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/events/%d", draft.ID), body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d (body %s)", rec.Code, rec.Body.String())
	}

	var updated types.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if updated.Status != types.EventStatusDraft {
		t.Fatalf("status = %q, want %q", updated.Status, types.EventStatusDraft)
	}
	if env.published.count() != 0 {
		t.Fatalf("published messages = %d, want 0", env.published.count())
	}
}

func TestPublicListEncodesEmptyCatalogAsEmptyArray(t *testing.T) {
	env := newAPITestEnv(t)

	rec := env.doJSON(t, http.MethodGet, "/events", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("body = %s, want items encoded as []", rec.Body.String())
	}
}

var testPNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func (e *apiTestEnv) createEventWithPoster(t *testing.T, token string) types.Event {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range validEventFields(nil) {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write form field %s: %v", key, err)
		}
	}
	part, err := writer.CreateFormFile("poster", "poster.png")
	if err != nil {
		t.Fatalf("create poster part: %v", err)
	}
	if _, err := part.Write(testPNG); err != nil {
		t.Fatalf("write poster bytes: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close form writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/events", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create event status = %d (body %s)", rec.Code, rec.Body.String())
	}

	var event types.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return event
}

func TestPosterUploadAndDownloadRoundTrip(t *testing.T) {
	env := newAPITestEnv(t)
	token := env.signupToken(t, "pub@example.com", types.RolePublisher)

	event := env.createEventWithPoster(t, token)
	if event.PosterKey == "" {
		t.Fatal("expected a poster key on the created event")
	}
	if _, ok := env.posters.objects[event.PosterKey]; !ok {
		t.Fatalf("poster object %q not stored", event.PosterKey)
	}

	rec := env.doJSON(t, http.MethodGet, fmt.Sprintf("/events/%d/poster", event.ID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("poster status = %d (body %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("Content-Type = %q, want image/png", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), testPNG) {
		t.Fatal("downloaded poster bytes differ from the upload")
	}
}

func TestPosterMissingReadsAsNotFound(t *testing.T) {
	env := newAPITestEnv(t)
	token := env.signupToken(t, "pub@example.com", types.RolePublisher)

	// No poster uploaded.
	event := env.createEvent(t, token, nil)
	rec := env.doJSON(t, http.MethodGet, fmt.Sprintf("/events/%d/poster", event.ID), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	// Unknown event.
	rec = env.doJSON(t, http.MethodGet, "/events/999/poster", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestPublisherEventsIncludeDrafts(t *testing.T) {
	env := newAPITestEnv(t)
	pub := env.signupToken(t, "pub@example.com", types.RolePublisher)

	env.createEvent(t, pub, nil)
	env.createEvent(t, pub, map[string]string{"status": types.EventStatusDraft, "title": "Secret Show"})

	req := httptest.NewRequest(http.MethodGet, "/publisher/events", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: pub})
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var list EventListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 2 {
		t.Fatalf("total = %d, want 2", list.Total)
	}

	var titles []string
	for _, event := range list.Items {
		titles = append(titles, event.Title)
	}
	if !strings.Contains(strings.Join(titles, ","), "Secret Show") {
		t.Fatalf("draft missing from publisher listing: %v", titles)
	}
}
