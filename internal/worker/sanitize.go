package worker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxErrorMessage = 500

var (
	urlCredentials = regexp.MustCompile(`://[^/\s:@]+:[^/\s@]+@`)
	secretParams   = regexp.MustCompile(`(?i)((?:api[_-]?key|token|secret|signature|x-amz-[a-z-]+)=)[^&\s]+`)
)

// sanitizeError turns a failure into a message safe to store and show: the
// first line only, credentials masked, truncated on a rune boundary.
func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.IndexAny(msg, "\r\n"); i >= 0 {
		msg = msg[:i]
	}
	msg = urlCredentials.ReplaceAllString(msg, "://***@")
	msg = secretParams.ReplaceAllString(msg, "${1}***")
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "render failed"
	}
	if len(msg) <= maxErrorMessage {
		return msg
	}
	cut := maxErrorMessage
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
