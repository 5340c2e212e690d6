package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Togather-Foundation/gatherings/internal/audit"
	"github.com/Togather-Foundation/gatherings/internal/auth"
	"github.com/Togather-Foundation/gatherings/internal/domain/access"
	"github.com/Togather-Foundation/gatherings/internal/domain/events"
	"github.com/Togather-Foundation/gatherings/internal/domain/reviews"
	"github.com/Togather-Foundation/gatherings/internal/domain/rsvps"
	"github.com/Togather-Foundation/gatherings/internal/domain/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var (
	alice = access.Actor{UserID: "0b9d6f0e-0000-4000-8000-00000000a11c", Username: "alice"}
	bob   = access.Actor{UserID: "0b9d6f0e-0000-4000-8000-000000000b0b", Username: "bob"}
)

// memStore is an in-memory backend shared by the stub repositories below.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*users.User
	profiles map[string]*users.Profile
	events   map[string]*events.Event
	rsvps    map[string]*rsvps.RSVP
	reviews  map[string]*reviews.Review
	clock    time.Time
}

func newMemStore() *memStore {
	s := &memStore{
		users:    map[string]*users.User{},
		profiles: map[string]*users.Profile{},
		events:   map[string]*events.Event{},
		rsvps:    map[string]*rsvps.RSVP{},
		reviews:  map[string]*reviews.Review{},
		clock:    time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	for _, a := range []access.Actor{alice, bob} {
		s.users[a.UserID] = &users.User{ID: a.UserID, Username: a.Username, IsActive: true, CreatedAt: s.clock}
		s.profiles[a.UserID] = &users.Profile{User: *s.users[a.UserID], CreatedAt: s.clock, UpdatedAt: s.clock}
	}
	return s
}

// tick returns a strictly increasing timestamp so ordering by creation is stable.
func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) username(id string) string {
	if u, ok := s.users[id]; ok {
		return u.Username
	}
	return ""
}

func (s *memStore) decorate(e events.Event) events.Event {
	e.Organizer.Username = s.username(e.Organizer.ID)
	e.RSVPCount = 0
	for _, r := range s.rsvps {
		if r.EventID == e.ID {
			e.RSVPCount++
		}
	}
	var sum, n int
	for _, r := range s.reviews {
		if r.EventID == e.ID {
			sum += r.Rating
			n++
		}
	}
	e.AverageRating = 0
	if n > 0 {
		e.AverageRating = float64(sum) / float64(n)
	}
	return e
}

type memEvents struct{ s *memStore }

func (m memEvents) List(_ context.Context, filters events.Filters, pagination events.Pagination) (events.ListResult, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var out []events.Event
	for _, e := range m.s.events {
		visible := e.IsPublic || (filters.ViewerID != "" && (e.Organizer.ID == filters.ViewerID || m.s.hasRSVP(e.ID, filters.ViewerID)))
		if !visible {
			continue
		}
		if filters.IsPublic != nil && e.IsPublic != *filters.IsPublic {
			continue
		}
		if filters.Organizer != "" && filters.Organizer != e.Organizer.ID && filters.Organizer != m.s.username(e.Organizer.ID) {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(e.Title+" "+e.Description+" "+e.Location), strings.ToLower(filters.Search)) {
			continue
		}
		out = append(out, m.s.decorate(*e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	total := len(out)
	start := min(pagination.Offset, total)
	end := min(start+pagination.Limit, total)
	return events.ListResult{Events: out[start:end], Total: total}, nil
}

func (m memEvents) Get(_ context.Context, id string) (*events.Event, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	out := m.s.decorate(*e)
	return &out, nil
}

func (m memEvents) Create(ctx context.Context, p events.CreateParams) (*events.Event, error) {
	m.s.mu.Lock()
	now := m.s.tick()
	m.s.events[p.ID] = &events.Event{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Organizer:   events.Person{ID: p.OrganizerID},
		Location:    p.Location,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		IsPublic:    p.IsPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.s.mu.Unlock()
	return m.Get(ctx, p.ID)
}

func (m memEvents) Update(ctx context.Context, id string, p events.UpdateParams) (*events.Event, error) {
	m.s.mu.Lock()
	e, ok := m.s.events[id]
	if !ok {
		m.s.mu.Unlock()
		return nil, events.ErrNotFound
	}
	e.Title, e.Description, e.Location = p.Title, p.Description, p.Location
	e.StartTime, e.EndTime, e.IsPublic = p.StartTime, p.EndTime, p.IsPublic
	e.UpdatedAt = m.s.tick()
	m.s.mu.Unlock()
	return m.Get(ctx, id)
}

func (m memEvents) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.events[id]; !ok {
		return events.ErrNotFound
	}
	delete(m.s.events, id)
	for rid, r := range m.s.rsvps {
		if r.EventID == id {
			delete(m.s.rsvps, rid)
		}
	}
	for rid, r := range m.s.reviews {
		if r.EventID == id {
			delete(m.s.reviews, rid)
		}
	}
	return nil
}

func (s *memStore) hasRSVP(eventID, userID string) bool {
	for _, r := range s.rsvps {
		if r.EventID == eventID && r.UserID == userID {
			return true
		}
	}
	return false
}

type memRSVPs struct{ s *memStore }

func (m memRSVPs) Upsert(ctx context.Context, p rsvps.UpsertParams) (*rsvps.RSVP, bool, error) {
	m.s.mu.Lock()
	if _, ok := m.s.events[p.EventID]; !ok {
		m.s.mu.Unlock()
		return nil, false, events.ErrNotFound
	}
	for _, r := range m.s.rsvps {
		if r.EventID == p.EventID && r.UserID == p.UserID {
			r.Status = p.Status
			r.UpdatedAt = m.s.tick()
			id := r.ID
			m.s.mu.Unlock()
			out, err := m.Get(ctx, id)
			return out, false, err
		}
	}
	now := m.s.tick()
	m.s.rsvps[p.ID] = &rsvps.RSVP{ID: p.ID, EventID: p.EventID, UserID: p.UserID, Status: p.Status, CreatedAt: now, UpdatedAt: now}
	m.s.mu.Unlock()
	out, err := m.Get(ctx, p.ID)
	return out, true, err
}

func (m memRSVPs) ListByUser(_ context.Context, userID string, p rsvps.Pagination) (rsvps.ListResult, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []rsvps.RSVP
	for _, r := range m.s.rsvps {
		if r.UserID == userID {
			out = append(out, m.s.decorateRSVP(*r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	start := min(p.Offset, total)
	end := min(start+p.Limit, total)
	return rsvps.ListResult{RSVPs: out[start:end], Total: total}, nil
}

func (s *memStore) decorateRSVP(r rsvps.RSVP) rsvps.RSVP {
	r.Username = s.username(r.UserID)
	if e, ok := s.events[r.EventID]; ok {
		r.EventTitle = e.Title
	}
	return r
}

func (m memRSVPs) Get(_ context.Context, id string) (*rsvps.RSVP, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.rsvps[id]
	if !ok {
		return nil, rsvps.ErrNotFound
	}
	out := m.s.decorateRSVP(*r)
	return &out, nil
}

func (m memRSVPs) UpdateStatus(ctx context.Context, id string, status rsvps.Status) (*rsvps.RSVP, error) {
	m.s.mu.Lock()
	r, ok := m.s.rsvps[id]
	if !ok {
		m.s.mu.Unlock()
		return nil, rsvps.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = m.s.tick()
	m.s.mu.Unlock()
	return m.Get(ctx, id)
}

func (m memRSVPs) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.rsvps[id]; !ok {
		return rsvps.ErrNotFound
	}
	delete(m.s.rsvps, id)
	return nil
}

func (m memRSVPs) HasRSVP(_ context.Context, eventID, userID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.hasRSVP(eventID, userID), nil
}

type memReviews struct{ s *memStore }

func (m memReviews) Create(ctx context.Context, p reviews.CreateParams) (*reviews.Review, error) {
	m.s.mu.Lock()
	if _, ok := m.s.events[p.EventID]; !ok {
		m.s.mu.Unlock()
		return nil, events.ErrNotFound
	}
	now := m.s.tick()
	m.s.reviews[p.ID] = &reviews.Review{ID: p.ID, EventID: p.EventID, UserID: p.UserID, Rating: p.Rating, Comment: p.Comment, CreatedAt: now, UpdatedAt: now}
	m.s.mu.Unlock()
	return m.Get(ctx, p.ID)
}

func (m memReviews) Get(_ context.Context, id string) (*reviews.Review, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.reviews[id]
	if !ok {
		return nil, reviews.ErrNotFound
	}
	out := *r
	out.Username = m.s.username(r.UserID)
	return &out, nil
}

func (m memReviews) Update(ctx context.Context, id string, rating int, comment string) (*reviews.Review, error) {
	m.s.mu.Lock()
	r, ok := m.s.reviews[id]
	if !ok {
		m.s.mu.Unlock()
		return nil, reviews.ErrNotFound
	}
	r.Rating, r.Comment, r.UpdatedAt = rating, comment, m.s.tick()
	m.s.mu.Unlock()
	return m.Get(ctx, id)
}

func (m memReviews) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.reviews[id]; !ok {
		return reviews.ErrNotFound
	}
	delete(m.s.reviews, id)
	return nil
}

func (m memReviews) list(match func(reviews.Review) bool, p reviews.Pagination) reviews.ListResult {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []reviews.Review
	for _, r := range m.s.reviews {
		if match(*r) {
			rv := *r
			rv.Username = m.s.username(r.UserID)
			out = append(out, rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	start := min(p.Offset, total)
	end := min(start+p.Limit, total)
	return reviews.ListResult{Reviews: out[start:end], Total: total}
}

func (m memReviews) ListByUser(_ context.Context, userID string, p reviews.Pagination) (reviews.ListResult, error) {
	return m.list(func(r reviews.Review) bool { return r.UserID == userID }, p), nil
}

func (m memReviews) ListByEvent(_ context.Context, eventID string, p reviews.Pagination) (reviews.ListResult, error) {
	return m.list(func(r reviews.Review) bool { return r.EventID == eventID }, p), nil
}

type memUsers struct{ s *memStore }

func (m memUsers) CreateUser(_ context.Context, p users.CreateUserParams) (*users.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.Username == p.Username {
			return nil, users.ErrUsernameTaken
		}
	}
	u := &users.User{ID: p.ID, Username: p.Username, Email: p.Email, FirstName: p.FirstName, LastName: p.LastName, PasswordHash: p.PasswordHash, IsActive: true, CreatedAt: m.s.tick()}
	m.s.users[u.ID] = u
	out := *u
	return &out, nil
}

func (m memUsers) ProvisionProfile(_ context.Context, userID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[userID]
	if !ok {
		return users.ErrUserNotFound
	}
	if _, ok := m.s.profiles[userID]; !ok {
		m.s.profiles[userID] = &users.Profile{User: *u, CreatedAt: m.s.clock, UpdatedAt: m.s.clock}
	}
	return nil
}

func (m memUsers) GetUserByID(_ context.Context, id string) (*users.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (m memUsers) GetUserByUsername(_ context.Context, username string) (*users.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, users.ErrUserNotFound
}

func (m memUsers) GetProfile(_ context.Context, userID string) (*users.Profile, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.profiles[userID]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	out := *p
	out.User = *m.s.users[userID]
	return &out, nil
}

func (m memUsers) UpdateProfile(ctx context.Context, userID string, u users.ProfileUpdate) (*users.Profile, error) {
	m.s.mu.Lock()
	p, ok := m.s.profiles[userID]
	if !ok {
		m.s.mu.Unlock()
		return nil, users.ErrUserNotFound
	}
	m.s.users[userID].FirstName = u.FirstName
	m.s.users[userID].LastName = u.LastName
	p.Bio, p.Location, p.ProfilePicture = u.Bio, u.Location, u.ProfilePicture
	p.UpdatedAt = m.s.tick()
	m.s.mu.Unlock()
	return m.GetProfile(ctx, userID)
}

func (m memUsers) WithTx(_ context.Context, fn func(users.Repository) error) error {
	return fn(m)
}

// testAPI bundles handlers wired to a fresh in-memory store.
type testAPI struct {
	store    *memStore
	tokens   *auth.JWTManager
	auth     *AuthHandler
	events   *EventsHandler
	rsvps    *RSVPsHandler
	reviews  *ReviewsHandler
	profiles *ProfileHandler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := newMemStore()
	auditLogger := audit.NewLoggerWithZerolog(zerolog.Nop())

	eventRepo := memEvents{store}
	rsvpRepo := memRSVPs{store}
	eventService := events.NewService(eventRepo, rsvpRepo)
	rsvpService := rsvps.NewService(rsvpRepo, eventRepo)
	reviewService := reviews.NewService(memReviews{store}, eventService)
	userService := users.NewService(memUsers{store}, auditLogger, zerolog.Nop())
	tokens := auth.NewJWTManager("handlers-test-secret-handlers-test", 5*time.Minute, time.Hour, "gatherings-test")

	eventsHandler := NewEventsHandler(eventService, rsvpService, reviewService, auditLogger, "test", "http://api.test")
	eventsHandler.Now = func() time.Time { return store.clock }

	return &testAPI{
		store:    store,
		tokens:   tokens,
		auth:     NewAuthHandler(userService, tokens, auditLogger, "test"),
		events:   eventsHandler,
		rsvps:    NewRSVPsHandler(rsvpService, auditLogger, "test", "http://api.test"),
		reviews:  NewReviewsHandler(reviewService, auditLogger, "test", "http://api.test"),
		profiles: NewProfileHandler(userService, auditLogger, "test"),
	}
}

// serve routes a single request through a mux registered with pattern so
// that path values resolve as they do in the real router.
func serve(t *testing.T, pattern string, h http.HandlerFunc, method, target string, body any, actor access.Actor) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor.Authenticated() {
		req = req.WithContext(access.WithActor(req.Context(), actor))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type problemBody struct {
	Type   string            `json:"type"`
	Status int               `json:"status"`
	Detail string            `json:"detail"`
	Errors map[string]string `json:"errors"`
}

// createEvent posts an event as actor and returns its id.
func (a *testAPI) createEvent(t *testing.T, actor access.Actor, title string, public bool) string {
	t.Helper()
	start := a.store.clock.Add(24 * time.Hour)
	rec := serve(t, "POST /api/events/", a.events.Create, http.MethodPost, "/api/events/", map[string]any{
		"title":      title,
		"start_time": start.Format(time.RFC3339),
		"end_time":   start.Add(2 * time.Hour).Format(time.RFC3339),
		"is_public":  public,
	}, actor)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[eventJSON](t, rec).ID
}
