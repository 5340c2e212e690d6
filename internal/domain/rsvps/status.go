package rsvps

import (
	"strings"

	"github.com/Togather-Foundation/gatherings/internal/validation"
)

// Status is a user's attendance intent.
type Status string

const (
	StatusGoing    Status = "Going"
	StatusMaybe    Status = "Maybe"
	StatusNotGoing Status = "Not Going"
)

// Statuses lists the accepted values in display order.
var Statuses = []Status{StatusGoing, StatusMaybe, StatusNotGoing}

var invalidStatusMessage = func() string {
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = string(s)
	}
	return "Invalid status. Must be one of: " + strings.Join(names, ", ")
}()

// ParseStatus accepts the exact status names.
func ParseStatus(value string) (Status, error) {
	for _, s := range Statuses {
		if value == string(s) {
			return s, nil
		}
	}
	return "", validation.New("status", invalidStatusMessage)
}
