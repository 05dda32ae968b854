package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := Wrap(UpstreamRejected, "plaid.exchange", errors.New("INVALID_PUBLIC_TOKEN"))
	wrapped := fmt.Errorf("exchange workflow: %w", base)

	if got := KindOf(wrapped); got != UpstreamRejected {
		t.Fatalf("KindOf() = %v, want %v", got, UpstreamRejected)
	}
	if !Is(wrapped, UpstreamRejected) {
		t.Error("Is() should match the wrapped kind")
	}
	if !errors.Is(wrapped, &Error{Kind: UpstreamRejected}) {
		t.Error("errors.Is should match on kind")
	}
	if errors.Is(wrapped, &Error{Kind: NotFound}) {
		t.Error("errors.Is should not match a different kind")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != 0 {
		t.Errorf("KindOf() = %v, want 0", got)
	}
	if got := StatusOf(errors.New("boom")); got != 0 {
		t.Errorf("StatusOf() = %d, want 0", got)
	}
}

func TestStatusOf(t *testing.T) {
	err := fmt.Errorf("sign in: %w", WithStatus(UpstreamRejected, "appwrite.createSession", 401, errors.New("invalid credentials")))
	if got := StatusOf(err); got != 401 {
		t.Errorf("StatusOf() = %d, want 401", got)
	}
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{400, UpstreamRejected},
		{401, UpstreamRejected},
		{404, NotFound},
		{409, UpstreamRejected},
		{500, UpstreamUnavailable},
		{503, UpstreamUnavailable},
	}

	for _, tt := range tests {
		if got := FromHTTPStatus(tt.status); got != tt.want {
			t.Errorf("FromHTTPStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	err := New(NotFound, "accounts.select", "aggregator returned no accounts")
	if got, want := err.Error(), "accounts.select: aggregator returned no accounts"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got, want := (&Error{Kind: AlreadyLinked}).Error(), "already_linked"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"configuration", New(Configuration, "config.load", "missing"), 500},
		{"unavailable", Wrap(UpstreamUnavailable, "op", errors.New("timeout")), 502},
		{"rejected with status", fmt.Errorf("ctx: %w", WithStatus(UpstreamRejected, "op", 401, errors.New("x"))), 401},
		{"rejected without status", New(UpstreamRejected, "op", "bad"), 400},
		{"rejected with 5xx status", WithStatus(UpstreamRejected, "op", 503, errors.New("x")), 400},
		{"not found", New(NotFound, "op", "gone"), 404},
		{"already linked", New(AlreadyLinked, "op", "dup"), 409},
		{"plain error", errors.New("boom"), 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
