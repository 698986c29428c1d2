package fserr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "not found without cause",
			err:  NotFound("stat", "docs/a.txt"),
			want: `stat "docs/a.txt": not_found`,
		},
		{
			name: "unreachable with cause",
			err:  Unreachable("list", "docs", false, errors.New("connection refused")),
			want: `list "docs": unreachable: connection refused`,
		},
		{
			name: "protocol",
			err:  Protocol("read", "a.bin", errors.New("unexpected EOF")),
			want: `read "a.bin": protocol: unexpected EOF`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindMatching(t *testing.T) {
	err := fmt.Errorf("read failed: %w", NotFound("read", "gone.txt"))

	if !IsNotFound(err) {
		t.Error("IsNotFound should see through wrapping")
	}
	if IsUnreachable(err) {
		t.Error("IsUnreachable matched a NotFound error")
	}
	if !errors.Is(err, NotFound("", "")) {
		t.Error("errors.Is should match by kind regardless of op/path")
	}
	if KindOf(err) != KindNotFound {
		t.Errorf("KindOf = %v, want KindNotFound", KindOf(err))
	}
}

func TestTimeoutFlag(t *testing.T) {
	timeout := Unreachable("read", "slow.bin", true, errors.New("context deadline exceeded"))
	refused := Unreachable("read", "slow.bin", false, errors.New("connection refused"))

	if !IsTimeout(timeout) {
		t.Error("IsTimeout should report true for a deadline failure")
	}
	if IsTimeout(refused) {
		t.Error("IsTimeout should report false for a refused connection")
	}
	if !IsUnreachable(refused) {
		t.Error("refused connection should still be unreachable")
	}
}

func TestKindOfForeignError(t *testing.T) {
	if KindOf(errors.New("plain")) != KindProtocol {
		t.Error("foreign errors should classify as protocol failures")
	}
}
