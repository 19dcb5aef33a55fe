package facebook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendEventsSuccess(t *testing.T) {
	var gotPath, gotToken string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("access_token")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"events_received": 1, "fbtrace_id": "abc"})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithGraphVersion("v18.0"), WithHTTPClient(srv.Client()))
	resp, err := c.SendEvents(context.Background(), "act_1", "tok", []Event{{
		EventName:    "PageView",
		EventTime:    1700000000,
		ActionSource: "website",
		UserData:     UserData{FBC: "fb.1.2.3"},
	}})
	if err != nil {
		t.Fatalf("SendEvents error: %v", err)
	}

	if resp.EventsReceived != 1 {
		t.Fatalf("events_received = %d", resp.EventsReceived)
	}
	if !strings.HasSuffix(gotPath, "/v18.0/act_1/events") {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotToken != "tok" {
		t.Fatalf("access token not propagated, got %q", gotToken)
	}
	if _, ok := gotBody["data"]; !ok {
		t.Fatalf("request body missing data envelope: %v", gotBody)
	}
}

func TestSendEventsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Invalid parameter", "type": "OAuthException", "code": 100},
		})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	resp, err := c.SendEvents(context.Background(), "act_1", "tok", nil)
	if err != nil {
		t.Fatalf("in-band API errors must not surface as transport errors: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != 100 {
		t.Fatalf("expected parsed API error, got %+v", resp)
	}
}

func TestSendEventsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewClient(WithBaseURL(srv.URL))
	if _, err := c.SendEvents(context.Background(), "act_1", "tok", nil); err == nil {
		t.Fatal("expected transport error")
	}
}
