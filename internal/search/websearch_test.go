package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestWebSearcherParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "go generics" {
			t.Errorf("query param q = %q", got)
		}
		w.Write([]byte(`{"results":[
			{"title":"A","url":"http://a","content":"first","engine":"ddg","score":0.9},
			{"title":"B","url":"http://b","content":"second","engine":"ddg","score":0.5},
			{"title":"C","url":"http://c","content":"third","engine":"ddg","score":0.1}
		]}`))
	}))
	defer srv.Close()

	ws := NewWebSearcher(srv.URL, zap.NewNop())
	results := ws.Search(context.Background(), "go generics", 2)

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (capped)", len(results))
	}
	if results[0].Title != "A" || results[0].Snippet != "first" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
}

func TestWebSearcherDegradesOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ws := NewWebSearcher(srv.URL, zap.NewNop())
	results := ws.Search(context.Background(), "anything", 5)

	if len(results) != 1 || results[0].Source != "degraded" {
		t.Fatalf("expected single degraded placeholder, got %+v", results)
	}
}

func TestWebSearcherDegradesOnEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	ws := NewWebSearcher(srv.URL, zap.NewNop())
	results := ws.Search(context.Background(), "nothing here", 5)

	if len(results) != 1 || results[0].Source != "degraded" {
		t.Fatalf("expected placeholder for empty results, got %+v", results)
	}
}
