package events

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/Togather-Foundation/gatherings/internal/domain/access"
	"github.com/Togather-Foundation/gatherings/internal/validation"
	"github.com/stretchr/testify/require"
)

const (
	eventID   = "01HYX3KQW7ERTV9XNBM2P8QJZF"
	privateID = "01HYX3KQW7ERTV9XNBM2P8QJZG"
)

var (
	tom   = access.Actor{UserID: "u-tom", Username: "tom"}
	jerry = access.Actor{UserID: "u-jerry", Username: "jerry"}
	spike = access.Actor{UserID: "u-spike", Username: "spike"}
)

type stubRepo struct {
	events  map[string]Event
	created *CreateParams
	updated *UpdateParams
	deleted string
	listed  *Filters
}

func newStubRepo() *stubRepo {
	start := time.Date(2030, 1, 10, 18, 0, 0, 0, time.UTC)
	return &stubRepo{events: map[string]Event{
		eventID: {
			ID: eventID, Title: "Jazz night", Organizer: Person{ID: tom.UserID, Username: "tom"},
			StartTime: start, EndTime: start.Add(4 * time.Hour), IsPublic: true, Location: "Hall",
		},
		privateID: {
			ID: privateID, Title: "Board games", Organizer: Person{ID: tom.UserID, Username: "tom"},
			StartTime: start, EndTime: start.Add(2 * time.Hour), IsPublic: false,
		},
	}}
}

func (s *stubRepo) List(_ context.Context, filters Filters, _ Pagination) (ListResult, error) {
	s.listed = &filters
	return ListResult{}, nil
}

func (s *stubRepo) Get(_ context.Context, id string) (*Event, error) {
	event, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &event, nil
}

func (s *stubRepo) Create(_ context.Context, params CreateParams) (*Event, error) {
	s.created = &params
	return &Event{ID: params.ID, Title: params.Title, Organizer: Person{ID: params.OrganizerID}, IsPublic: params.IsPublic,
		StartTime: params.StartTime, EndTime: params.EndTime}, nil
}

func (s *stubRepo) Update(_ context.Context, id string, params UpdateParams) (*Event, error) {
	s.updated = &params
	return &Event{ID: id, Title: params.Title, StartTime: params.StartTime, EndTime: params.EndTime, IsPublic: params.IsPublic}, nil
}

func (s *stubRepo) Delete(_ context.Context, id string) error {
	s.deleted = id
	return nil
}

type participants map[string]bool

func (p participants) HasRSVP(_ context.Context, eventID, userID string) (bool, error) {
	return p[eventID+"/"+userID], nil
}

func newTestService() (*Service, *stubRepo) {
	repo := newStubRepo()
	return NewService(repo, participants{privateID + "/" + jerry.UserID: true}), repo
}

func ptr[T any](v T) *T { return &v }

func TestCreateAssignsOrganizerAndDefaults(t *testing.T) {
	svc, repo := newTestService()
	start := time.Now().Add(30 * 24 * time.Hour)

	event, err := svc.Create(context.Background(), tom, Input{
		Title:     ptr(" <b>Tech Meetup</b> "),
		StartTime: ptr(start),
		EndTime:   ptr(start.Add(4 * time.Hour)),
	})

	require.NoError(t, err)
	require.NotNil(t, repo.created)
	require.Equal(t, tom.UserID, repo.created.OrganizerID)
	require.Equal(t, "Tech Meetup", repo.created.Title)
	require.True(t, repo.created.IsPublic)
	require.Len(t, event.ID, 26)
}

func TestCreateKeepsPunctuation(t *testing.T) {
	svc, repo := newTestService()
	start := time.Now().Add(24 * time.Hour)

	event, err := svc.Create(context.Background(), tom, Input{
		Title:       ptr("Tom & Jerry"),
		Location:    ptr(`Bar "O'Hara"`),
		Description: ptr(`Cheese & crackers, "free"`),
		StartTime:   ptr(start),
		EndTime:     ptr(start.Add(time.Hour)),
	})

	require.NoError(t, err)
	require.Equal(t, "Tom & Jerry", event.Title)
	require.Equal(t, "Tom & Jerry", repo.created.Title)
	require.Equal(t, `Bar "O'Hara"`, repo.created.Location)
	require.Equal(t, `Cheese & crackers, "free"`, repo.created.Description)
}

func TestCreateRejectsEndNotAfterStart(t *testing.T) {
	svc, repo := newTestService()
	start := time.Now().Add(time.Hour)

	for _, end := range []time.Time{start, start.Add(-time.Minute)} {
		_, err := svc.Create(context.Background(), tom, Input{Title: ptr("x"), StartTime: ptr(start), EndTime: ptr(end)})

		fields, ok := validation.As(err)
		require.True(t, ok, "expected validation error, got %v", err)
		require.Equal(t, "End time must be after start time", fields["end_time"])
	}
	require.Nil(t, repo.created)
}

func TestCreateRequiresFields(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), tom, Input{})

	fields, ok := validation.As(err)
	require.True(t, ok)
	require.Contains(t, fields, "title")
	require.Contains(t, fields, "start_time")
	require.Contains(t, fields, "end_time")
}

func TestCreateRequiresAuthentication(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), access.Actor{}, Input{})
	require.ErrorIs(t, err, access.ErrUnauthenticated)
}

func TestGetPrivateEventVisibility(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Get(ctx, access.Actor{}, privateID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(ctx, spike, privateID)
	require.ErrorIs(t, err, ErrNotFound)

	event, err := svc.Get(ctx, tom, privateID)
	require.NoError(t, err)
	require.Equal(t, privateID, event.ID)

	event, err = svc.Get(ctx, jerry, privateID)
	require.NoError(t, err)
	require.Equal(t, privateID, event.ID)

	_, err = svc.Get(ctx, spike, "not-an-id")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetAcceptsLowercaseID(t *testing.T) {
	svc, _ := newTestService()

	event, err := svc.Get(context.Background(), access.Actor{}, "01hyx3kqw7ertv9xnbm2p8qjzf")
	require.NoError(t, err)
	require.Equal(t, eventID, event.ID)
}

func TestUpdateOrganizerOnly(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.Update(ctx, spike, eventID, Input{Title: ptr("Hijacked")}, true)
	require.ErrorIs(t, err, access.ErrForbidden)

	_, err = svc.Update(ctx, spike, privateID, Input{Title: ptr("Hijacked")}, true)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Update(ctx, jerry, privateID, Input{Title: ptr("Hijacked")}, true)
	require.ErrorIs(t, err, access.ErrForbidden)

	_, err = svc.Update(ctx, access.Actor{}, eventID, Input{}, true)
	require.ErrorIs(t, err, access.ErrUnauthenticated)
	require.Nil(t, repo.updated)
}

func TestPartialUpdateKeepsFields(t *testing.T) {
	svc, repo := newTestService()

	_, err := svc.Update(context.Background(), tom, eventID, Input{IsPublic: ptr(false)}, true)

	require.NoError(t, err)
	require.Equal(t, "Jazz night", repo.updated.Title)
	require.Equal(t, "Hall", repo.updated.Location)
	require.False(t, repo.updated.IsPublic)
}

func TestPartialUpdateValidatesMergedTimes(t *testing.T) {
	svc, repo := newTestService()
	early := time.Date(2029, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Update(context.Background(), tom, eventID, Input{EndTime: ptr(early)}, true)

	fields, ok := validation.As(err)
	require.True(t, ok)
	require.Equal(t, "End time must be after start time", fields["end_time"])
	require.Nil(t, repo.updated)
}

func TestFullUpdateRequiresFields(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Update(context.Background(), tom, eventID, Input{Title: ptr("Renamed")}, false)

	fields, ok := validation.As(err)
	require.True(t, ok)
	require.Contains(t, fields, "start_time")
}

func TestDeleteByOrganizer(t *testing.T) {
	svc, repo := newTestService()

	require.ErrorIs(t, svc.Delete(context.Background(), jerry, eventID), access.ErrForbidden)
	require.NoError(t, svc.Delete(context.Background(), tom, eventID))
	require.Equal(t, eventID, repo.deleted)
}

func TestListScopesToViewer(t *testing.T) {
	svc, repo := newTestService()

	_, err := svc.List(context.Background(), jerry, Filters{ViewerID: "spoofed"}, Pagination{Limit: 10})

	require.NoError(t, err)
	require.Equal(t, jerry.UserID, repo.listed.ViewerID)
}

func TestParseFiltersDefaults(t *testing.T) {
	filters, err := ParseFilters(url.Values{}, time.Now())

	require.NoError(t, err)
	require.Equal(t, DefaultOrdering, filters.Ordering)
	field, desc := filters.Ordering.Field()
	require.Equal(t, "created_at", field)
	require.True(t, desc)
	require.Nil(t, filters.IsPublic)
	require.Empty(t, filters.Search)
}

func TestParseFiltersValues(t *testing.T) {
	values := url.Values{}
	values.Set("is_public", "False")
	values.Set("organizer", " tom ")
	values.Set("search", " jazz ")
	values.Set("ordering", "start_time")

	filters, err := ParseFilters(values, time.Now())

	require.NoError(t, err)
	require.NotNil(t, filters.IsPublic)
	require.False(t, *filters.IsPublic)
	require.Equal(t, "tom", filters.Organizer)
	require.Equal(t, "jazz", filters.Search)
	field, desc := filters.Ordering.Field()
	require.Equal(t, "start_time", field)
	require.False(t, desc)
}

func TestParseFiltersRejectsUnknownOrdering(t *testing.T) {
	values := url.Values{}
	values.Set("ordering", "-password")

	_, err := ParseFilters(values, time.Now())

	assertFilterError(t, err, "ordering")
}

func TestParseFiltersRejectsBadBool(t *testing.T) {
	values := url.Values{}
	values.Set("is_public", "maybe")

	_, err := ParseFilters(values, time.Now())

	assertFilterError(t, err, "is_public")
}

func TestParseFiltersDates(t *testing.T) {
	now := time.Date(2030, 3, 14, 12, 0, 0, 0, time.UTC)
	values := url.Values{}
	values.Set("start_after", "2030-03-01")
	values.Set("start_before", "2030-04-01T00:00:00Z")

	filters, err := ParseFilters(values, now)

	require.NoError(t, err)
	require.Equal(t, time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC), *filters.StartAfter)
	require.Equal(t, time.Date(2030, 4, 1, 0, 0, 0, 0, time.UTC), *filters.StartBefore)

	values.Set("start_before", "2030-02-01")
	_, err = ParseFilters(values, now)
	assertFilterError(t, err, "start_before")
}

func TestParseFiltersNaturalLanguageDate(t *testing.T) {
	now := time.Date(2030, 3, 14, 12, 0, 0, 0, time.UTC)
	values := url.Values{}
	values.Set("start_after", "tomorrow")

	filters, err := ParseFilters(values, now)

	require.NoError(t, err)
	require.NotNil(t, filters.StartAfter)
	require.Equal(t, 15, filters.StartAfter.Day())
	require.Equal(t, time.March, filters.StartAfter.Month())
}

func assertFilterError(t *testing.T, err error, field string) {
	t.Helper()
	var filterErr FilterError
	require.True(t, errors.As(err, &filterErr), "expected FilterError, got %v", err)
	require.Equal(t, field, filterErr.Field)
}
