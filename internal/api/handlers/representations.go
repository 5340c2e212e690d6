package handlers

import (
	"time"

	"github.com/Togather-Foundation/gatherings/internal/domain/events"
	"github.com/Togather-Foundation/gatherings/internal/domain/reviews"
	"github.com/Togather-Foundation/gatherings/internal/domain/rsvps"
	"github.com/Togather-Foundation/gatherings/internal/domain/users"
)

type personJSON struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type eventJSON struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Organizer     personJSON `json:"organizer"`
	Location      string     `json:"location"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	IsPublic      bool       `json:"is_public"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	RSVPCount     int        `json:"rsvp_count"`
	AverageRating float64    `json:"average_rating"`
}

func toEventJSON(e events.Event) eventJSON {
	return eventJSON{
		ID:            e.ID,
		Title:         e.Title,
		Description:   e.Description,
		Organizer:     personJSON{ID: e.Organizer.ID, Username: e.Organizer.Username},
		Location:      e.Location,
		StartTime:     e.StartTime.UTC(),
		EndTime:       e.EndTime.UTC(),
		IsPublic:      e.IsPublic,
		CreatedAt:     e.CreatedAt.UTC(),
		UpdatedAt:     e.UpdatedAt.UTC(),
		RSVPCount:     e.RSVPCount,
		AverageRating: e.AverageRating,
	}
}

type eventRefJSON struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type rsvpJSON struct {
	ID        string       `json:"id"`
	Event     eventRefJSON `json:"event"`
	User      personJSON   `json:"user"`
	Status    rsvps.Status `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func toRSVPJSON(r rsvps.RSVP) rsvpJSON {
	return rsvpJSON{
		ID:        r.ID,
		Event:     eventRefJSON{ID: r.EventID, Title: r.EventTitle},
		User:      personJSON{ID: r.UserID, Username: r.Username},
		Status:    r.Status,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type reviewJSON struct {
	ID        string     `json:"id"`
	Event     string     `json:"event"`
	User      personJSON `json:"user"`
	Rating    int        `json:"rating"`
	Comment   string     `json:"comment"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toReviewJSON(r reviews.Review) reviewJSON {
	return reviewJSON{
		ID:        r.ID,
		Event:     r.EventID,
		User:      personJSON{ID: r.UserID, Username: r.Username},
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type userJSON struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
}

func toUserJSON(u users.User) userJSON {
	return userJSON{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName(),
	}
}

type profileJSON struct {
	User           userJSON  `json:"user"`
	Bio            string    `json:"bio"`
	Location       string    `json:"location"`
	ProfilePicture string    `json:"profile_picture"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toProfileJSON(p users.Profile) profileJSON {
	return profileJSON{
		User:           toUserJSON(p.User),
		Bio:            p.Bio,
		Location:       p.Location,
		ProfilePicture: p.ProfilePicture,
		CreatedAt:      p.CreatedAt.UTC(),
		UpdatedAt:      p.UpdatedAt.UTC(),
	}
}

func mapSlice[T, U any](in []T, fn func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
