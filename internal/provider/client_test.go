package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchDecodesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("user_api_hash"); got != "secret" {
			t.Errorf("expected credential in query, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"title":"Fleet","items":[{"id":101,"name":"ABC123","lat":-33.45,"lng":-70.66,"timestamp":1000}]}]`))
	}))
	defer srv.Close()

	groups, err := NewClient(5*time.Second).Fetch(context.Background(), srv.URL, "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Items) != 1 {
		t.Fatalf("unexpected snapshot shape: %+v", groups)
	}
}

func TestFetchEmptyAndMalformedBodiesAreNotErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"empty array", "[]"},
		{"not json", "<html>gateway error</html>"},
		{"wrong shape", `{"status":"ok"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			groups, err := NewClient(5*time.Second).Fetch(context.Background(), srv.URL, "k")
			if err != nil {
				t.Fatalf("expected tolerant empty result, got error: %v", err)
			}
			if len(groups) != 0 {
				t.Fatalf("expected zero groups, got %d", len(groups))
			}
		})
	}
}

func TestFetchNon2xxIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(5*time.Second).Fetch(context.Background(), srv.URL, "k")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Status != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", fe.Status)
	}
}

func TestFetchTimeoutIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient(5*time.Second).Fetch(ctx, srv.URL, "k")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError on timeout, got %v", err)
	}
}

func TestFetchConnectionRefusedIsFetchError(t *testing.T) {
	_, err := NewClient(time.Second).Fetch(context.Background(), "http://127.0.0.1:1", "k")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}
