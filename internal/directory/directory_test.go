package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientPatient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/patients/patient-1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"patient-1","name":"Jordan Reyes","email":"jordan@example.com"}`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	p, err := client.Patient(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Equal(t, "Jordan Reyes", p.Name)
	assert.Equal(t, "jordan@example.com", p.Email)
}

func TestHTTPClientNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewHTTPClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Doctor(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrPersonNotFound)
}

func TestHTTPClientUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewHTTPClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Patient(context.Background(), "patient-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestNewHTTPClientRequiresBaseURL(t *testing.T) {
	_, err := NewHTTPClient(Config{})
	require.Error(t, err)
}

func TestStaticLookup(t *testing.T) {
	lookup := &StaticLookup{
		Patients: map[string]Person{"p1": {ID: "p1", Name: "Jordan Reyes"}},
	}

	p, err := lookup.Patient(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Jordan Reyes", p.Name)

	_, err = lookup.Doctor(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPersonNotFound)
}
