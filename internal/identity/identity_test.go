package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestHTTPProviderRandom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"name":{"first":"Marie","last":"Curie"},"picture":{"large":"https://example.com/mc.jpg"}}]}`)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, zerolog.Nop())
	id, err := p.Random(context.Background())
	if err != nil {
		t.Fatalf("Random: %v", err)
	}
	if id.Name != "Marie Curie" || id.LogoURL != "https://example.com/mc.jpg" {
		t.Fatalf("got %+v", id)
	}
}

func TestHTTPProviderEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, zerolog.Nop())
	if _, err := p.Random(context.Background()); err == nil {
		t.Fatal("expected error for empty results")
	}
}

type failingProvider struct{}

func (failingProvider) Random(context.Context) (Identity, error) {
	return Identity{}, errors.New("down")
}

func TestFallback(t *testing.T) {
	p := Fallback(failingProvider{}, NewLocalProvider())
	id, err := p.Random(context.Background())
	if err != nil {
		t.Fatalf("Random: %v", err)
	}
	if id.Name == "" {
		t.Fatal("fallback returned empty identity")
	}
}

func TestLocalProviderCycles(t *testing.T) {
	p := NewLocalProvider()
	a, _ := p.Random(context.Background())
	b, _ := p.Random(context.Background())
	if a.Name == b.Name {
		t.Fatalf("consecutive identities identical: %q", a.Name)
	}
}
