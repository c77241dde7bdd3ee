package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func newTestBrowser(t *testing.T, handler http.HandlerFunc) *RadioBrowserClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewRadioBrowserClient(zerolog.Nop())
	c.baseURL = srv.URL
	c.pick = func(n int) int { return 0 }
	return c
}

func TestSearchByTagsPicksResolvedStation(t *testing.T) {
	var gotQuery string
	c := newTestBrowser(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"name": "Dead Air", "url_resolved": ""},
			{"name": "Smooth Jazz", "url_resolved": "http://jazz.example/live"},
			{"name": "More Jazz", "url_resolved": "http://morejazz.example/live"}
		]`))
	})

	desc, err := c.SearchByTags(context.Background(), []string{"jazz", "smooth"})
	if err != nil {
		t.Fatalf("SearchByTags failed: %v", err)
	}

	// Stations without a resolved URL are excluded before selection, so index
	// zero lands on the first playable candidate.
	if desc.Title != "Smooth Jazz" || desc.StreamURL != "http://jazz.example/live" {
		t.Errorf("unexpected descriptor: %+v", desc)
	}
	if desc.SourceRef != desc.StreamURL {
		t.Errorf("source ref must equal the chosen stream URL, got %q", desc.SourceRef)
	}

	req, _ := http.NewRequest(http.MethodGet, "http://x/?"+gotQuery, nil)
	q := req.URL.Query()
	if q.Get("tagList") != "jazz,smooth" {
		t.Errorf("expected tagList=jazz,smooth, got %q", q.Get("tagList"))
	}
	if q.Get("hidebroken") != "true" {
		t.Errorf("expected hidebroken=true, got %q", q.Get("hidebroken"))
	}
}

func TestSearchByTagsNoPlayableCandidates(t *testing.T) {
	c := newTestBrowser(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"name": "Dead Air", "url_resolved": ""}]`))
	})

	if _, err := c.SearchByTags(context.Background(), []string{"obscure"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchByTagsEmptyResult(t *testing.T) {
	c := newTestBrowser(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})

	if _, err := c.SearchByTags(context.Background(), []string{"nothing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchByTagsRejectsEmptyTagList(t *testing.T) {
	c := NewRadioBrowserClient(zerolog.Nop())
	if _, err := c.SearchByTags(context.Background(), nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchByTagsRetriesServerErrors(t *testing.T) {
	var calls int
	c := newTestBrowser(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"name": "Back Online", "url_resolved": "http://back.example/live"}]`))
	})

	desc, err := c.SearchByTags(context.Background(), []string{"rock"})
	if err != nil {
		t.Fatalf("SearchByTags failed: %v", err)
	}
	if desc.Title != "Back Online" {
		t.Errorf("unexpected descriptor: %+v", desc)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}

func TestSearchByTagsRandomSelection(t *testing.T) {
	c := newTestBrowser(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"name": "One", "url_resolved": "http://one.example"},
			{"name": "Two", "url_resolved": "http://two.example"},
			{"name": "Three", "url_resolved": "http://three.example"}
		]`))
	})

	var sawN int
	c.pick = func(n int) int {
		sawN = n
		return n - 1
	}

	desc, err := c.SearchByTags(context.Background(), []string{"any"})
	if err != nil {
		t.Fatalf("SearchByTags failed: %v", err)
	}
	if sawN != 3 {
		t.Errorf("expected selection over 3 candidates, got %d", sawN)
	}
	if desc.Title != "Three" {
		t.Errorf("expected the picked index to be honored, got %+v", desc)
	}
}
