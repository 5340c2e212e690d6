// Package pagination implements page-number pagination for list endpoints.
package pagination

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Togather-Foundation/gatherings/internal/validation"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// MaxPage keeps (page-1)*page_size within an int.
	MaxPage = math.MaxInt / MaxPageSize
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

func (p Page) Limit() int {
	return p.Size
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Parse reads page and page_size. A malformed page is a client error; a
// malformed or oversized page_size falls back to the default or the maximum.
func Parse(values url.Values) (Page, error) {
	page := Page{Number: 1, Size: DefaultPageSize}

	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxPage {
			return Page{}, validation.New("page", "Invalid page.")
		}
		page.Number = n
	}

	if raw := strings.TrimSpace(values.Get("page_size")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page.Size = min(n, MaxPageSize)
		}
	}
	return page, nil
}

// Envelope is the list response body.
type Envelope[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// NewEnvelope wraps one page of results with links to its neighbours. Links
// are absolute, rooted at baseURL when set and at the request host otherwise.
func NewEnvelope[T any](r *http.Request, baseURL string, page Page, count int, results []T) Envelope[T] {
	if results == nil {
		results = []T{}
	}
	env := Envelope[T]{Count: count, Results: results}

	if page.Offset()+page.Size < count {
		next := pageURL(r, baseURL, page.Number+1)
		env.Next = &next
	}
	if page.Number > 1 {
		prev := pageURL(r, baseURL, page.Number-1)
		env.Previous = &prev
	}
	return env
}

func pageURL(r *http.Request, baseURL string, number int) string {
	query := r.URL.Query()
	if number == 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(number))
	}

	root := strings.TrimRight(baseURL, "/")
	if root == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		root = scheme + "://" + r.Host
	}

	u := root + r.URL.Path
	if encoded := query.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}
