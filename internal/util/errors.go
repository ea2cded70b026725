package util

import (
	"errors"
	"strings"

	"github.com/okatsuo/teravault/internal/resolver"
	"github.com/okatsuo/teravault/internal/transfer"
)

// ToUserError maps internal failures to the short human-readable text
// shown in chat. Cancellation is checked first so it never degrades
// into a generic failure message.
func ToUserError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, transfer.ErrCancelled) {
		return "Cancelled by user"
	}

	var rerr *resolver.Error
	if errors.As(err, &rerr) {
		return "Failed to extract video. The link might be invalid or expired."
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "context deadline exceeded") || strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return "Connection timed out, try again"
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") || strings.Contains(msg, "eof"):
		return "Connection dropped, try again"
	case strings.Contains(msg, "no such host") || strings.Contains(msg, "dns"):
		return "Couldn't reach the file server, try again"
	case strings.Contains(msg, "http 403"):
		return "Access denied, the stream link may have expired"
	case strings.Contains(msg, "http 404"):
		return "File not found, it may have been deleted"
	case strings.Contains(msg, "no space left"):
		return "Server is out of disk space"
	case strings.Contains(msg, "active transfer"):
		return "You already have an active transfer. Cancel it or wait for it to finish."
	}
	return "Failed to process video"
}
