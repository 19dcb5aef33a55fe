package view

import (
	"bytes"
	"text/template"
)

// PixelScriptData provides the dynamic fields baked into the served collector.
type PixelScriptData struct {
	Endpoint      string
	DomainID      string
	Source        string
	DecorateHosts []string
}

// The collector mirrors the server-side identity rules: a persistent random
// visitor id, click-id capture with fb.1.<ms>.<raw> synthesis, and the same
// rolling-hash fingerprint, so both ends derive identical values.
var pixelScriptTmpl = template.Must(template.New("pixel_script").Parse(`(function () {
	"use strict";

	var ENDPOINT = {{printf "%q" .Endpoint}};
	var DOMAIN_ID = {{printf "%q" .DomainID}};
	var SOURCE = {{printf "%q" .Source}};
	var DECORATE_HOSTS = [{{range $i, $h := .DecorateHosts}}{{if $i}}, {{end}}{{printf "%q" $h}}{{end}}];
	var VID_KEY = "_vt_vid";
	var RETRY_DELAYS = [0, 500, 2000];

	function readCookie(name) {
		var m = document.cookie.match(new RegExp("(?:^|; )" + name + "=([^;]*)"));
		return m ? decodeURIComponent(m[1]) : "";
	}

	function writeCookie(name, value, days) {
		var expires = new Date(Date.now() + days * 864e5).toUTCString();
		document.cookie = name + "=" + encodeURIComponent(value) +
			"; expires=" + expires + "; path=/; SameSite=Lax";
	}

	function randomID() {
		var buf = new Uint8Array(16);
		(window.crypto || window.msCrypto).getRandomValues(buf);
		var out = "";
		for (var i = 0; i < buf.length; i++) {
			out += ("0" + buf[i].toString(16)).slice(-2);
		}
		return out;
	}

	function visitorID() {
		var vid = readCookie(VID_KEY) || localStorage.getItem(VID_KEY) || "";
		if (!vid) {
			vid = randomID();
		}
		writeCookie(VID_KEY, vid, 365);
		try { localStorage.setItem(VID_KEY, vid); } catch (e) {}
		return vid;
	}

	function queryParam(name) {
		var m = window.location.search.match(new RegExp("[?&]" + name + "=([^&]*)"));
		return m ? decodeURIComponent(m[1]) : "";
	}

	// Click id precedence: stored cookie, then synthesis from the ad
	// platform's query parameter.
	function clickID() {
		var fbc = readCookie("_fbc");
		if (fbc) {
			return fbc;
		}
		var raw = queryParam("fbclid");
		if (!raw) {
			return "";
		}
		fbc = "fb.1." + Date.now() + "." + raw;
		writeCookie("_fbc", fbc, 90);
		return fbc;
	}

	// Same components, join order, and hash as the server-side derivation;
	// >>> 0 reinterprets the accumulator as unsigned 32-bit the way the
	// server formats it.
	function fingerprint() {
		var tz = "";
		try {
			tz = Intl.DateTimeFormat().resolvedOptions().timeZone || "";
		} catch (e) {}
		var parts = [
			navigator.userAgent,
			screen.width + "x" + screen.height,
			tz,
			navigator.language,
			navigator.platform || "",
			String(screen.colorDepth)
		].join("|");
		var h = 0;
		for (var i = 0; i < parts.length; i++) {
			h = ((h << 5) - h + parts.charCodeAt(i)) | 0;
		}
		return (h >>> 0).toString(36);
	}

	function send(eventType, attempt) {
		var payload = JSON.stringify({
			visitor_id: visitorID(),
			event_type: eventType,
			domain_id: DOMAIN_ID ? parseInt(DOMAIN_ID, 10) : undefined,
			metadata: {
				fbc: clickID(),
				fbclid: queryParam("fbclid"),
				fbp: readCookie("_fbp"),
				fingerprint: fingerprint(),
				url: window.location.href,
				referrer: document.referrer,
				source: SOURCE
			}
		});

		var xhr = new XMLHttpRequest();
		xhr.open("POST", ENDPOINT + "/track", true);
		xhr.setRequestHeader("Content-Type", "application/json");
		xhr.onerror = function () {
			attempt = (attempt || 0) + 1;
			if (attempt < RETRY_DELAYS.length) {
				setTimeout(function () { send(eventType, attempt); }, RETRY_DELAYS[attempt]);
			}
		};
		xhr.send(payload);
	}

	function shouldDecorate(href) {
		for (var i = 0; i < DECORATE_HOSTS.length; i++) {
			if (href.indexOf(DECORATE_HOSTS[i]) !== -1) {
				return true;
			}
		}
		return false;
	}

	// Appends visitor params to outbound anchors without clobbering ones the
	// page author already set.
	function decorate(anchor) {
		var href = anchor.getAttribute("href") || "";
		if (!href || !shouldDecorate(href)) {
			return;
		}
		var params = { vid: visitorID(), fbc: clickID(), fbp: readCookie("_fbp") };
		for (var key in params) {
			if (!params[key] || href.indexOf(key + "=") !== -1) {
				continue;
			}
			href += (href.indexOf("?") === -1 ? "?" : "&") + key + "=" + encodeURIComponent(params[key]);
		}
		anchor.setAttribute("href", href);
	}

	function decorateAll() {
		var anchors = document.getElementsByTagName("a");
		for (var i = 0; i < anchors.length; i++) {
			decorate(anchors[i]);
		}
	}

	function start() {
		send("pageview");
		decorateAll();

		// Late-rendered anchors (SPA route changes, widgets) get decorated by
		// fixed-delay re-runs and as they appear.
		for (var i = 1; i < RETRY_DELAYS.length; i++) {
			setTimeout(decorateAll, RETRY_DELAYS[i]);
		}
		if (window.MutationObserver) {
			new MutationObserver(decorateAll).observe(document.body, {
				childList: true,
				subtree: true
			});
		}
		document.addEventListener("click", function (e) {
			var el = e.target;
			while (el && el.tagName !== "A") {
				el = el.parentElement;
			}
			if (el) {
				decorate(el);
				send("click");
			}
		}, true);
	}

	if (document.readyState === "loading") {
		document.addEventListener("DOMContentLoaded", start);
	} else {
		start();
	}
})();
`))

// RenderPixelScript expands the collector template with the provided data.
func RenderPixelScript(data PixelScriptData) (string, error) {
	var buf bytes.Buffer
	if err := pixelScriptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
