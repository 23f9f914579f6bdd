package advisory

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAssessText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content type = %s", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer k-123" {
			t.Fatalf("authorization = %s", auth)
		}
		raw, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(raw), "assess this") {
			t.Fatalf("prompt not forwarded: %s", raw)
		}
		io.WriteString(w, `{"text":"looks reasonable"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k-123")
	text, err := c.AssessText(context.Background(), "assess this")
	if err != nil {
		t.Fatalf("AssessText: %v", err)
	}
	if text != "looks reasonable" {
		t.Fatalf("text = %q", text)
	}
}

func TestAssessTextNoAuthHeaderWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Fatal("Authorization header sent without an api key")
		}
		io.WriteString(w, `{"text":"ok"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.AssessText(context.Background(), "p"); err != nil {
		t.Fatalf("AssessText: %v", err)
	}
}

func TestAssessTextUnconfigured(t *testing.T) {
	c := NewClient("", "key-without-endpoint")
	if c.Configured() {
		t.Fatal("empty endpoint must not count as configured")
	}
	_, err := c.AssessText(context.Background(), "p")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestAssessTextUpstreamErrors(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, "k").AssessText(context.Background(), "p")
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("err = %v, want ErrUnavailable", err)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `not json`)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, "k").AssessText(context.Background(), "p")
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("err = %v, want ErrUnavailable", err)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		_, err := NewClient("http://127.0.0.1:1", "k").AssessText(context.Background(), "p")
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("err = %v, want ErrUnavailable", err)
		}
	})
}

func TestLoanPrompt(t *testing.T) {
	p := LoanPrompt(2500, 12.5, 18, "equipment", "a second sewing machine")
	for _, want := range []string{"2500.0000", "12.50% APR", "18 months", "equipment", "sewing machine"} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}
}
