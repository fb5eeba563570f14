package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/sells-group/lexicon-cli/internal/config"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("x"), 503), true},
		{"wrapped", fmt.Errorf("outer: %w", NewTransientError(errors.New("x"), 429)), true},
		{"plain", errors.New("bad request"), false},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"net timeout", timeoutErr{}, true},
		{"string pattern", errors.New("dial tcp: i/o timeout"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCheckStatus(t *testing.T) {
	if err := CheckStatus("datamuse", 200, nil); err != nil {
		t.Fatalf("2xx must be nil, got %v", err)
	}

	err := CheckStatus("datamuse", 503, []byte("unavailable"))
	if !IsTransient(err) {
		t.Errorf("503 should be transient: %v", err)
	}
	if ClassifyError(err) != "transient" {
		t.Errorf("expected transient classification")
	}

	err = CheckStatus("wiktionary", 404, []byte("missing"))
	if IsTransient(err) || !IsNotFound(err) {
		t.Errorf("404 should be permanent not-found: %v", err)
	}
	if err.Error() != "wiktionary: unexpected status 404: missing" {
		t.Errorf("unexpected message %q", err.Error())
	}

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	var se *StatusError
	if !errors.As(CheckStatus("x", 400, long), &se) || len(se.Body) != 200 {
		t.Errorf("expected body truncated to 200 bytes")
	}
}

func TestRequeuePolicy_Next(t *testing.T) {
	p := NewRequeuePolicy(config.QueueConfig{
		MaxRetries:     3,
		InitialBackoff: "10s",
		MaxBackoff:     "1m",
		Multiplier:     2,
	})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	d := p.Next(0, 3, now)
	if !d.Retry || d.RetryCount != 1 || !d.AvailableAt.Equal(now.Add(10*time.Second)) {
		t.Fatalf("first failure: %+v", d)
	}

	d = p.Next(1, 3, now)
	if !d.Retry || d.RetryCount != 2 || !d.AvailableAt.Equal(now.Add(20*time.Second)) {
		t.Fatalf("second failure: %+v", d)
	}

	d = p.Next(2, 3, now)
	if d.Retry || d.RetryCount != 3 {
		t.Fatalf("third failure must be terminal: %+v", d)
	}

	// Never exceeds the max, even if called again.
	d = p.Next(3, 3, now)
	if d.Retry || d.RetryCount != 3 {
		t.Fatalf("retry count must stay capped: %+v", d)
	}
}

func TestRequeuePolicy_FallsBackToPolicyMax(t *testing.T) {
	p := RequeuePolicy{MaxRetries: 1}
	d := p.Next(0, 0, time.Now())
	if d.Retry || d.RetryCount != 1 {
		t.Fatalf("expected terminal decision, got %+v", d)
	}
}
