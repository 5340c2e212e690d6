package events

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/markusmobius/go-dateparser"
)

// Ordering is a sort key with an optional leading "-" for descending order.
type Ordering string

const DefaultOrdering Ordering = "-created_at"

var orderingFields = map[string]bool{
	"start_time": true,
	"created_at": true,
	"title":      true,
}

// Field returns the sort column and whether the order is descending.
func (o Ordering) Field() (string, bool) {
	value := string(o)
	if value == "" {
		value = string(DefaultOrdering)
	}
	if strings.HasPrefix(value, "-") {
		return value[1:], true
	}
	return value, false
}

type FilterError struct {
	Field   string
	Message string
}

func (e FilterError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ParseFilters reads list filters from query parameters. now anchors
// relative dates such as "tomorrow".
func ParseFilters(values url.Values, now time.Time) (Filters, error) {
	filters := Filters{Ordering: DefaultOrdering}

	if raw := strings.TrimSpace(values.Get("is_public")); raw != "" {
		parsed, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return filters, FilterError{Field: "is_public", Message: "must be true or false"}
		}
		filters.IsPublic = &parsed
	}

	filters.Organizer = strings.TrimSpace(values.Get("organizer"))
	filters.Search = strings.TrimSpace(values.Get("search"))

	if raw := strings.TrimSpace(values.Get("ordering")); raw != "" {
		field := strings.TrimPrefix(raw, "-")
		if !orderingFields[field] {
			return filters, FilterError{Field: "ordering", Message: "must be one of start_time, created_at, title"}
		}
		filters.Ordering = Ordering(raw)
	}

	after, err := parseDate("start_after", values.Get("start_after"), now)
	if err != nil {
		return filters, err
	}
	before, err := parseDate("start_before", values.Get("start_before"), now)
	if err != nil {
		return filters, err
	}
	if after != nil && before != nil && before.Before(*after) {
		return filters, FilterError{Field: "start_before", Message: "must be on or after start_after"}
	}
	filters.StartAfter = after
	filters.StartBefore = before

	return filters, nil
}

// parseDate accepts RFC 3339 timestamps, plain dates and natural language
// expressions like "next friday".
func parseDate(field, value string, now time.Time) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return &parsed, nil
	}
	if parsed, err := time.Parse("2006-01-02", value); err == nil {
		return &parsed, nil
	}
	cfg := &dateparser.Configuration{
		CurrentTime:     now,
		DefaultTimezone: time.UTC,
	}
	parsed, err := dateparser.Parse(cfg, value)
	if err != nil || parsed.Time.IsZero() {
		return nil, FilterError{Field: field, Message: "must be a date"}
	}
	t := parsed.Time
	return &t, nil
}
