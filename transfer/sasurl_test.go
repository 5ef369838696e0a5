package transfer

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestFetchSignedURLStreamsBody(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Query().Get("sig") == "" {
			http.Error(w, "missing token", http.StatusForbidden)
			return
		}
		w.Write([]byte("signed object body"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	n, err := FetchSignedURL(context.Background(), zerolog.Nop(), srv.URL+"/c/b?sig=abc&se=2026-01-01", &buf)
	if err != nil {
		t.Fatalf("FetchSignedURL: %v", err)
	}
	if buf.String() != "signed object body" {
		t.Errorf("body = %q", buf.String())
	}
	if n != int64(len("signed object body")) {
		t.Errorf("n = %d", n)
	}
	// The token in the query string is the whole authorization.
	if gotAuth != "" {
		t.Errorf("unexpected Authorization header %q", gotAuth)
	}
}

func TestFetchSignedURLRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusForbidden)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	_, err := FetchSignedURL(context.Background(), zerolog.Nop(), srv.URL+"/c/b?sig=old", &buf)
	if err == nil {
		t.Fatal("expected error for 403")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("err = %v, want status in message", err)
	}
}
