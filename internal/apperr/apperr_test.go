package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("family"), KindNotFound},
		{"wrapped forbidden", fmt.Errorf("ctx: %w", Forbidden("no")), KindForbidden},
		{"plain", errors.New("boom"), KindUnexpected},
		{"conflict", Conflict("dup"), KindConflict},
		{"expired", Expired("late"), KindExpired},
		{"validation", Validation("bad"), KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessageHidesCause(t *testing.T) {
	err := Unexpected(errors.New("pq: relation \"users\" does not exist"))
	if got := Message(err); got != "internal error" {
		t.Errorf("Message = %q, want %q", got, "internal error")
	}
	if got := Message(errors.New("raw")); got != "internal error" {
		t.Errorf("Message(raw) = %q, want %q", got, "internal error")
	}
	if got := Message(NotFound("invitation")); got != "invitation not found" {
		t.Errorf("Message = %q, want %q", got, "invitation not found")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Unexpected(cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find cause")
	}
}

func TestFromStore(t *testing.T) {
	isTransient := func(err error) bool { return errors.Is(err, context.DeadlineExceeded) }

	if FromStore(nil, isTransient) != nil {
		t.Error("FromStore(nil) should be nil")
	}
	if got := KindOf(FromStore(context.DeadlineExceeded, isTransient)); got != KindTransient {
		t.Errorf("deadline kind = %q, want %q", got, KindTransient)
	}
	if got := KindOf(FromStore(errors.New("boom"), isTransient)); got != KindUnexpected {
		t.Errorf("boom kind = %q, want %q", got, KindUnexpected)
	}
	conflict := Conflict("last admin")
	if got := FromStore(conflict, isTransient); got != error(conflict) {
		t.Errorf("FromStore changed an app error: %v", got)
	}
}

func TestIs(t *testing.T) {
	if Is(nil, KindNotFound) {
		t.Error("nil should not match any kind")
	}
	if !Is(fmt.Errorf("x: %w", Expired("late")), KindExpired) {
		t.Error("expected wrapped expired to match")
	}
}
