package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue is the placeholder written in place of sensitive values.
const RedactedValue = "[REDACTED]"

// Keys that identify public on-chain accounts or request metadata. Wallet
// owners and bearer material are deliberately absent.
var redactionAllowlist = map[string]struct{}{
	"service":     {},
	"env":         {},
	"message":     {},
	"severity":    {},
	"timestamp":   {},
	"error":       {},
	"reason":      {},
	"component":   {},
	"market":      {},
	"reserve":     {},
	"obligation":  {},
	"mint":        {},
	"slot":        {},
	"group":       {},
	"operation":   {},
	"route":       {},
	"method":      {},
	"status":      {},
	"duration_ms": {},
	"request_id":  {},
	"digest":      {},
}

// IsAllowlisted reports whether key may be logged verbatim.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// RedactionAllowlist returns the sorted allowlisted keys.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskValue returns the placeholder for non-empty values.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskAddress keeps the first and last four characters of an account
// address so log lines stay correlatable without naming the wallet.
func MaskAddress(address string) string {
	address = strings.TrimSpace(address)
	if len(address) <= 8 {
		return MaskValue(address)
	}
	return address[:4] + "..." + address[len(address)-4:]
}

// MaskField builds an attribute that is redacted unless key is allowlisted.
func MaskField(key, value string) slog.Attr {
	if IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, MaskValue(value))
}
