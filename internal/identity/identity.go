// Package identity derives and propagates the first-party visitor identity:
// click-id synthesis, the soft-matching browser fingerprint, field resolution
// order, and outbound URL decoration. The served collector script implements
// the same rules client-side; this package is the server-side mirror used by
// the ingestion path.
package identity

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SynthesizeClickID reconstructs the ad platform's click-id cookie format from
// a raw click id, so server-side matching still succeeds when the cookie was
// never set (first paint, cross-domain redirect). Deterministic for a fixed
// clock.
func SynthesizeClickID(rawClickID string, now time.Time) string {
	return fmt.Sprintf("fb.1.%d.%s", now.UnixMilli(), rawClickID)
}

// Components are the browser properties folded into the fingerprint.
type Components struct {
	UserAgent  string
	Screen     string
	Timezone   string
	Locale     string
	Platform   string
	ColorDepth int
}

// Fingerprint joins the components and runs a 32-bit rolling hash (multiply-
// shift accumulation), emitted base-36. Soft matching only, not a security
// boundary.
func Fingerprint(c Components) string {
	joined := strings.Join([]string{
		c.UserAgent,
		c.Screen,
		c.Timezone,
		c.Locale,
		c.Platform,
		strconv.Itoa(c.ColorDepth),
	}, "|")

	var h uint32
	for _, b := range []byte(joined) {
		h = (h << 5) - h + uint32(b)
	}
	return strconv.FormatUint(uint64(h), 36)
}

// Resolve picks the first non-empty value in cookie → stored → query order.
func Resolve(cookie, stored, query string) string {
	for _, v := range []string{cookie, stored, query} {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// ResolveClickID applies the standard resolution order and, when nothing is
// available but a raw click id is, falls back to synthesis.
func ResolveClickID(cookie, stored, query, rawClickID string, now time.Time) string {
	if v := Resolve(cookie, stored, query); v != "" {
		return v
	}
	if raw := strings.TrimSpace(rawClickID); raw != "" {
		return SynthesizeClickID(raw, now)
	}
	return ""
}

// DecorateURL appends every non-empty field as a query parameter unless that
// parameter is already present; existing values are never overwritten.
func DecorateURL(raw string, fields map[string]string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("decorate url: %w", err)
	}

	q := u.Query()

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := fields[k]
		if v == "" || q.Has(k) {
			continue
		}
		q.Set(k, v)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}
