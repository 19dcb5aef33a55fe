package identity

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func mustParseQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u.Query()
}

func TestSynthesizeClickID(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	got := SynthesizeClickID("IwAR2xyz", at)
	want := "fb.1.1700000000123.IwAR2xyz"
	if got != want {
		t.Fatalf("SynthesizeClickID = %q, want %q", got, want)
	}

	// Deterministic under a fixed clock.
	if again := SynthesizeClickID("IwAR2xyz", at); again != got {
		t.Fatalf("expected identical output, got %q then %q", got, again)
	}
}

func TestFingerprint(t *testing.T) {
	c := Components{
		UserAgent:  "Mozilla/5.0",
		Screen:     "1920x1080",
		Timezone:   "America/Sao_Paulo",
		Locale:     "pt-BR",
		Platform:   "MacIntel",
		ColorDepth: 24,
	}

	first := Fingerprint(c)
	if first == "" {
		t.Fatal("expected non-empty fingerprint")
	}
	if second := Fingerprint(c); second != first {
		t.Fatalf("fingerprint not stable: %q vs %q", first, second)
	}

	// base-36 output only
	for _, r := range first {
		if !strings.ContainsRune("0123456789abcdefghijklmnopqrstuvwxyz", r) {
			t.Fatalf("fingerprint %q contains non base-36 rune %q", first, r)
		}
	}

	c.Screen = "1280x720"
	if Fingerprint(c) == first {
		t.Fatal("expected different fingerprint for different components")
	}
}

func TestResolveOrder(t *testing.T) {
	if got := Resolve("from-cookie", "from-storage", "from-query"); got != "from-cookie" {
		t.Fatalf("cookie should win, got %q", got)
	}
	if got := Resolve("", "from-storage", "from-query"); got != "from-storage" {
		t.Fatalf("storage should win over query, got %q", got)
	}
	if got := Resolve("", "  ", "from-query"); got != "from-query" {
		t.Fatalf("blank values should be skipped, got %q", got)
	}
	if got := Resolve("", "", ""); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func TestResolveClickIDSynthesis(t *testing.T) {
	at := time.UnixMilli(1700000000000)

	if got := ResolveClickID("fb.1.1.cookie", "", "", "raw", at); got != "fb.1.1.cookie" {
		t.Fatalf("cookie value should suppress synthesis, got %q", got)
	}

	got := ResolveClickID("", "", "", "rawclick", at)
	if got != "fb.1.1700000000000.rawclick" {
		t.Fatalf("expected synthesized click id, got %q", got)
	}

	if got := ResolveClickID("", "", "", "", at); got != "" {
		t.Fatalf("nothing to synthesize from, got %q", got)
	}
}

func TestDecorateURL(t *testing.T) {
	fields := map[string]string{
		"vid":   "visitor-1",
		"fbc":   "fb.1.2.3",
		"fbp":   "",
		"utm_s": "ads",
	}

	got, err := DecorateURL("https://example.com/page?vid=existing", fields)
	if err != nil {
		t.Fatalf("DecorateURL error: %v", err)
	}

	u := mustParseQuery(t, got)
	if u.Get("vid") != "existing" {
		t.Fatalf("existing vid overwritten: %q", u.Get("vid"))
	}
	if u.Get("fbc") != "fb.1.2.3" {
		t.Fatalf("fbc not appended: %q", got)
	}
	if u.Has("fbp") {
		t.Fatalf("empty field should be omitted: %q", got)
	}
	if u.Get("utm_s") != "ads" {
		t.Fatalf("utm_s not appended: %q", got)
	}
}

func TestDecorateURLInvalid(t *testing.T) {
	if _, err := DecorateURL("://bad", map[string]string{"a": "b"}); err == nil {
		t.Fatal("expected error for unparsable URL")
	}
}
