// Package directory looks up patient and doctor identity summaries. The
// scheduler core does not own identity; it fetches name and contact fields by
// id from the external directory service and nothing more.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrPersonNotFound is returned when the directory has no entry for the id.
var ErrPersonNotFound = errors.New("directory: person not found")

// Person carries the display fields the scheduler is allowed to see.
type Person struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Lookup resolves identity summaries by id.
type Lookup interface {
	Patient(ctx context.Context, id string) (*Person, error)
	Doctor(ctx context.Context, id string) (*Person, error)
}

// HTTPClient calls the identity service over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds configuration for the directory client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewHTTPClient creates a directory client.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("directory: BaseURL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Patient fetches a patient summary by id.
func (c *HTTPClient) Patient(ctx context.Context, id string) (*Person, error) {
	return c.get(ctx, "/patients/"+id)
}

// Doctor fetches a doctor summary by id.
func (c *HTTPClient) Doctor(ctx context.Context, id string) (*Person, error) {
	return c.get(ctx, "/doctors/"+id)
}

func (c *HTTPClient) get(ctx context.Context, path string) (*Person, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("directory: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrPersonNotFound
	default:
		return nil, fmt.Errorf("directory: unexpected status %d for %s", resp.StatusCode, path)
	}

	var person Person
	if err := json.NewDecoder(resp.Body).Decode(&person); err != nil {
		return nil, fmt.Errorf("directory: decode response: %w", err)
	}
	return &person, nil
}

// StaticLookup serves summaries from a fixed map, used in tests and local
// development without the identity service.
type StaticLookup struct {
	Patients map[string]Person
	Doctors  map[string]Person
}

// Patient returns the mapped patient or ErrPersonNotFound.
func (s *StaticLookup) Patient(_ context.Context, id string) (*Person, error) {
	if p, ok := s.Patients[id]; ok {
		cp := p
		return &cp, nil
	}
	return nil, ErrPersonNotFound
}

// Doctor returns the mapped doctor or ErrPersonNotFound.
func (s *StaticLookup) Doctor(_ context.Context, id string) (*Person, error) {
	if p, ok := s.Doctors[id]; ok {
		cp := p
		return &cp, nil
	}
	return nil, ErrPersonNotFound
}
