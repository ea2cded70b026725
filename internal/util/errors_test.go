package util

import (
	"errors"
	"fmt"
	"testing"

	"github.com/okatsuo/teravault/internal/resolver"
	"github.com/okatsuo/teravault/internal/transfer"
)

func TestToUserError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"cancelled", transfer.ErrCancelled, "Cancelled by user"},
		{"wrapped cancelled", fmt.Errorf("download: %w", transfer.ErrCancelled), "Cancelled by user"},
		{"resolver", &resolver.Error{Err: errors.New("empty list")}, "Failed to extract video. The link might be invalid or expired."},
		{"timeout", errors.New("context deadline exceeded"), "Connection timed out, try again"},
		{"expired stream", errors.New("http 403"), "Access denied, the stream link may have expired"},
		{"unknown", errors.New("weird"), "Failed to process video"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ToUserError(tc.err); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
