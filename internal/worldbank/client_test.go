package worldbank

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fakeAPI serves values[year] for any country and indicator; missing years
// come back with a null value.
func fakeAPI(t *testing.T, values map[string]string, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method: %s", r.Method)
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 4 || parts[0] != "country" || parts[2] != "indicator" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("format = %q", r.URL.Query().Get("format"))
		}
		date := r.URL.Query().Get("date")
		value, ok := values[date]
		if !ok {
			value = "null"
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[{"page":1,"pages":1,"per_page":50,"total":1},[{"indicator":{"id":%q,"value":"GDP (current US$)"},"country":{"id":"AR","value":"Argentina"},"countryiso3code":"ARG","date":%q,"value":%s}]]`,
			parts[3], date, value)
	}))
}

func TestGet(t *testing.T) {
	var calls int32
	server := fakeAPI(t, map[string]string{"2014": "526319673731.638"}, &calls)
	defer server.Close()

	c := New(Options{BaseURL: server.URL})
	obs, err := c.Get(context.Background(), "AR", "NY.GDP.MKTP.CD", 2014)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if obs.Value != 526319673731.638 || obs.Year != 2014 || obs.CountryName != "Argentina" || obs.Indicator != "NY.GDP.MKTP.CD" {
		t.Errorf("Get = %+v", obs)
	}

	if _, err := c.Get(context.Background(), "AR", "NY.GDP.MKTP.CD", 2013); !errors.Is(err, ErrNoData) {
		t.Errorf("null value: err = %v, want ErrNoData", err)
	}
}

func TestLatestFallsBack(t *testing.T) {
	var calls int32
	server := fakeAPI(t, map[string]string{"2011": "42"}, &calls)
	defer server.Close()

	c := New(Options{BaseURL: server.URL, MaxFallbackYears: 5})
	obs, err := c.Latest(context.Background(), "AR", "SP.POP.TOTL", 2014)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if obs.Year != 2011 || obs.Value != 42 {
		t.Errorf("Latest = %+v, want 2011 = 42", obs)
	}
	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Errorf("calls = %d, want 4 (2014..2011)", got)
	}
}

func TestLatestExhausted(t *testing.T) {
	var calls int32
	server := fakeAPI(t, map[string]string{"2000": "1"}, &calls)
	defer server.Close()

	c := New(Options{BaseURL: server.URL, MaxFallbackYears: 2})
	_, err := c.Latest(context.Background(), "AR", "SP.POP.TOTL", 2014)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestAPIErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"message":[{"id":"120","key":"Invalid value","value":"The provided parameter value is not valid"}]}]`))
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL, MaxFallbackYears: 3})
	_, err := c.Latest(context.Background(), "XX", "BAD", 2014)
	if err == nil || errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want api error", err)
	}
	if !strings.Contains(err.Error(), "120") {
		t.Errorf("error does not carry the api message: %v", err)
	}
}

func TestEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"page":0,"pages":0,"per_page":50,"total":0},null]`))
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL})
	if _, err := c.Get(context.Background(), "AR", "X", 2014); !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"page":1},[{"date":"2014","value":7}]]`))
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL})
	c.backoffs = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}

	obs, err := c.Get(context.Background(), "AR", "X", 2014)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if obs.Value != 7 || atomic.LoadInt32(&calls) != 3 {
		t.Errorf("obs = %+v after %d calls", obs, calls)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL})
	if _, err := c.Get(context.Background(), "AR", "X", 2014); err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Get(ctx, "AR", "X", 2014); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
