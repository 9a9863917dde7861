package quote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPProvider_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "INFY" {
			t.Errorf("expected symbol=INFY, got %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"price": 1520.5, "day_high": 1533.0, "day_low": 1501.25, "observed_at": "2025-06-10T15:45:00Z"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 5*time.Second)
	q, err := p.Fetch(context.Background(), "INFY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if q.Price.String() != "1520.5" {
		t.Errorf("expected price 1520.5, got %s", q.Price)
	}
	if q.DayHigh.String() != "1533" {
		t.Errorf("expected day high 1533, got %s", q.DayHigh)
	}
	if q.DayLow.String() != "1501.25" {
		t.Errorf("expected day low 1501.25, got %s", q.DayLow)
	}
	want := time.Date(2025, 6, 10, 15, 45, 0, 0, time.UTC)
	if !q.ObservedAt.Equal(want) {
		t.Errorf("expected observed_at %v, got %v", want, q.ObservedAt)
	}
}

func TestHTTPProvider_LastPriceOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"price": 99.9}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 5*time.Second)
	q, err := p.Fetch(context.Background(), "SBIN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Observation().HasRange() {
		t.Error("expected no day range")
	}
	if q.ObservedAt.IsZero() {
		t.Error("observed_at should default to now")
	}
}

func TestHTTPProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 5*time.Second)
	if _, err := p.Fetch(context.Background(), "SBIN"); !errors.Is(err, ErrNoQuote) {
		t.Errorf("expected ErrNoQuote, got %v", err)
	}
}

func TestHTTPProvider_NonPositivePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"price": 0}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 5*time.Second)
	if _, err := p.Fetch(context.Background(), "SBIN"); !errors.Is(err, ErrNoQuote) {
		t.Errorf("expected ErrNoQuote, got %v", err)
	}
}

func TestHTTPProvider_BadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 5*time.Second)
	if _, err := p.Fetch(context.Background(), "SBIN"); !errors.Is(err, ErrNoQuote) {
		t.Errorf("expected ErrNoQuote, got %v", err)
	}
}
