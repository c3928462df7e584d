package nightscout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHashSecret(t *testing.T) {
	// SHA1 of "mysecret", as the Nightscout API expects.
	got := hashSecret("mysecret")
	want := "e9fe51f94eadabf54dbf2fbbd57188b9abee436e"
	if got != want {
		t.Errorf("hashSecret() = %q, want %q", got, want)
	}
}

func TestClient_Authentication(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		token      string
		useToken   bool
		wantHeader string
		wantValue  string
	}{
		{"api secret hashed", "mysecret", "", false, "API-SECRET", hashSecret("mysecret")},
		{"bearer token", "", "tok123", true, "Authorization", "Bearer tok123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get(tt.wantHeader)
				w.Write([]byte(`{"status":"ok"}`))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, tt.secret, tt.token, tt.useToken, nil)
			if _, err := c.GetStatus(context.Background()); err != nil {
				t.Fatalf("GetStatus() error = %v", err)
			}
			if got != tt.wantValue {
				t.Errorf("%s = %q, want %q", tt.wantHeader, got, tt.wantValue)
			}
		})
	}
}

func TestClient_GetCurrentEntry(t *testing.T) {
	t.Run("single object", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"sgv":142,"date":1700000000000,"direction":"Flat"}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "", "", false, nil)
		entry, err := c.GetCurrentEntry(context.Background())
		if err != nil {
			t.Fatalf("GetCurrentEntry() error = %v", err)
		}
		if entry.SGV != 142 {
			t.Errorf("SGV = %d, want 142", entry.SGV)
		}
	})

	t.Run("array response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"sgv":98,"date":1700000000000}]`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "", "", false, nil)
		entry, err := c.GetCurrentEntry(context.Background())
		if err != nil {
			t.Fatalf("GetCurrentEntry() error = %v", err)
		}
		if entry.SGV != 98 {
			t.Errorf("SGV = %d, want 98", entry.SGV)
		}
	})
}

func TestClient_GetTreatments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/treatments" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("count") != "10" {
			t.Errorf("count = %q, want 10", r.URL.Query().Get("count"))
		}
		w.Write([]byte(`[{"eventType":"Meal Bolus","insulin":4,"carbs":50}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "", false, nil)
	treatments, err := c.GetTreatments(context.Background(), time.Time{}, time.Time{}, 10)
	if err != nil {
		t.Fatalf("GetTreatments() error = %v", err)
	}
	if len(treatments) != 1 || treatments[0].Insulin != 4 {
		t.Errorf("treatments = %+v", treatments)
	}
}

func TestClient_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "wrong", "", false, nil)
	if _, err := c.GetStatus(context.Background()); err == nil {
		t.Fatal("GetStatus() error = nil, want auth failure")
	}
	if calls != 1 {
		t.Errorf("server hit %d times, want 1", calls)
	}
}
