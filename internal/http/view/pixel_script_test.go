package view

import (
	"strings"
	"testing"

	"github.com/visitrack/visitrack/internal/app/model"
)

func renderScript(t *testing.T) string {
	t.Helper()
	js, err := RenderPixelScript(PixelScriptData{
		Endpoint:      "https://track.example.com",
		DomainID:      "3",
		Source:        "web",
		DecorateHosts: []string{"t.me", "example.org"},
	})
	if err != nil {
		t.Fatalf("RenderPixelScript error: %v", err)
	}
	return js
}

func TestPixelScript_BakesParameters(t *testing.T) {
	js := renderScript(t)

	for _, want := range []string{
		`"https://track.example.com"`,
		`"3"`,
		`"web"`,
		`"t.me", "example.org"`,
	} {
		if !strings.Contains(js, want) {
			t.Errorf("script missing %s", want)
		}
	}
}

func TestPixelScript_MetadataKeysMatchIngress(t *testing.T) {
	js := renderScript(t)

	// The ingress reads these keys out of the submitted metadata blob; the
	// collector must emit the same names.
	for _, key := range []string{
		model.MetaClickID,
		model.MetaRawClickID,
		model.MetaBrowserID,
		model.MetaPageURL,
		model.MetaSource,
	} {
		if !strings.Contains(js, key+": ") {
			t.Errorf("collector does not emit metadata key %q", key)
		}
	}
	if strings.Contains(js, "page_url") {
		t.Error("collector emits page_url, which the ingress never reads")
	}
}

func TestPixelScript_FingerprintMirrorsServer(t *testing.T) {
	js := renderScript(t)

	// Six components in server join order, unsigned 32-bit base-36 output.
	for _, want := range []string{
		"navigator.userAgent",
		`screen.width + "x" + screen.height`,
		"navigator.language",
		"navigator.platform",
		"screen.colorDepth",
		`(h >>> 0).toString(36)`,
	} {
		if !strings.Contains(js, want) {
			t.Errorf("fingerprint missing %s", want)
		}
	}
	if strings.Contains(js, "Math.abs(h)") {
		t.Error("fingerprint folds negatives with abs instead of unsigned reinterpretation")
	}
}

func TestPixelScript_DecorationRetries(t *testing.T) {
	js := renderScript(t)

	if !strings.Contains(js, "setTimeout(decorateAll, RETRY_DELAYS[i])") {
		t.Error("decoration is not re-run at fixed delays")
	}
	if !strings.Contains(js, "new MutationObserver(decorateAll)") {
		t.Error("decoration is not re-run on DOM mutations")
	}
}
