package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

var redactionAllowlist = map[string]struct{}{
	"service":     {},
	"env":         {},
	"message":     {},
	"severity":    {},
	"timestamp":   {},
	"error":       {},
	"kind":        {},
	"operation":   {},
	"participant": {},
	"referrer":    {},
	"week":        {},
}

// IsAllowlisted reports whether the provided key is exempt from automatic redaction.
func IsAllowlisted(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	_, ok := redactionAllowlist[normalized]
	return ok
}

// MaskField returns a slog.Attr that redacts the supplied value unless the key is
// explicitly allowlisted. Empty values pass through unchanged.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskURL keeps the scheme and host of an endpoint and redacts the rest, which
// commonly carries API keys for hosted RPC providers.
func MaskURL(key, raw string) slog.Attr {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return slog.String(key, trimmed)
	}
	scheme, rest, found := strings.Cut(trimmed, "://")
	if !found {
		return slog.String(key, RedactedValue)
	}
	host, _, hasPath := strings.Cut(rest, "/")
	if _, _, hasQuery := strings.Cut(host, "?"); hasQuery || hasPath {
		host, _, _ = strings.Cut(host, "?")
		return slog.String(key, scheme+"://"+host+"/"+RedactedValue)
	}
	return slog.String(key, scheme+"://"+host)
}
