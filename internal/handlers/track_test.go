package handlers_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marketprobe/marketprobe/internal/models"
)

func trackReq(body string) *http.Request {
	req := httptest.NewRequest("POST", "/track", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", chromeUA)
	return req
}

func eventCount(t *testing.T, e *env, projectID int64, eventType string) int {
	t.Helper()
	n, err := models.EventCount(e.db, projectID, eventType, time.Now().AddDate(0, 0, -1))
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestTrack_PageView(t *testing.T) {
	e := setup(t)
	id := createProject(t, e, "demo", "", "ACTIVE")

	rr := e.do(trackReq(`{"slug":"demo","eventType":"PAGE_VIEW"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", rr.Code, rr.Body.String())
	}
	body := decodeJSON(t, rr)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	if got := eventCount(t, e, id, models.EventPageView); got != 1 {
		t.Errorf("stored events = %d, want 1", got)
	}
}

func TestTrack_RateLimitHeadersOnSuccess(t *testing.T) {
	e := setup(t)
	createProject(t, e, "demo", "", "ACTIVE")

	rr := e.do(trackReq(`{"slug":"demo","eventType":"PAGE_VIEW"}`))
	if rr.Header().Get("X-RateLimit-Limit") != "100" {
		t.Errorf("X-RateLimit-Limit = %q, want 100", rr.Header().Get("X-RateLimit-Limit"))
	}
	if rr.Header().Get("X-RateLimit-Remaining") != "99" {
		t.Errorf("X-RateLimit-Remaining = %q, want 99", rr.Header().Get("X-RateLimit-Remaining"))
	}
	if rr.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("X-RateLimit-Reset missing")
	}
}

func TestTrack_RateLimitExceeded(t *testing.T) {
	e := setup(t)
	id := createProject(t, e, "demo", "", "ACTIVE")

	for n := 0; n < 100; n++ {
		rr := e.do(trackReq(`{"slug":"demo","eventType":"PAGE_VIEW"}`))
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}
	}

	rr := e.do(trackReq(`{"slug":"demo","eventType":"PAGE_VIEW"}`))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", rr.Header().Get("X-RateLimit-Remaining"))
	}
	// The rejected request is not stored.
	if got := eventCount(t, e, id, models.EventPageView); got != 100 {
		t.Errorf("stored events = %d, want 100", got)
	}
}

func TestTrack_MissingSlug(t *testing.T) {
	e := setup(t)
	rr := e.do(trackReq(`{"eventType":"PAGE_VIEW"}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	body := decodeJSON(t, rr)
	fields := body["fields"].(map[string]any)
	if _, ok := fields["slug"]; !ok {
		t.Errorf("fields = %v, want slug error", fields)
	}
}

func TestTrack_UnknownEventType(t *testing.T) {
	e := setup(t)
	createProject(t, e, "demo", "", "ACTIVE")

	rr := e.do(trackReq(`{"slug":"demo","eventType":"TELEPORT"}`))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestTrack_UnknownSlug(t *testing.T) {
	e := setup(t)
	rr := e.do(trackReq(`{"slug":"nobody","eventType":"PAGE_VIEW"}`))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestTrack_ScrollPercentageBounds(t *testing.T) {
	e := setup(t)
	id := createProject(t, e, "demo", "", "ACTIVE")

	rr := e.do(trackReq(`{"slug":"demo","eventType":"SCROLL_DEPTH","metadata":{"scroll_percentage":150}}`))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("out of range: status = %d, want 400", rr.Code)
	}

	rr = e.do(trackReq(`{"slug":"demo","eventType":"SCROLL_DEPTH","metadata":{"scroll_percentage":75}}`))
	if rr.Code != http.StatusOK {
		t.Errorf("in range: status = %d, want 200, body = %s", rr.Code, rr.Body.String())
	}
	if got := eventCount(t, e, id, models.EventScrollDepth); got != 1 {
		t.Errorf("stored events = %d, want 1", got)
	}
}

func TestTrack_OversizedMetadataValue(t *testing.T) {
	e := setup(t)
	createProject(t, e, "demo", "", "ACTIVE")

	long := strings.Repeat("x", 501)
	body := fmt.Sprintf(`{"slug":"demo","eventType":"BUTTON_CLICK","metadata":{"button_text":%q}}`, long)
	rr := e.do(trackReq(body))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestTrack_BotNotStored(t *testing.T) {
	e := setup(t)
	id := createProject(t, e, "demo", "", "ACTIVE")

	req := trackReq(`{"slug":"demo","eventType":"PAGE_VIEW"}`)
	req.Header.Set("User-Agent", "Googlebot/2.1 (+http://www.google.com/bot.html)")
	rr := e.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (bots see success)", rr.Code)
	}
	body := decodeJSON(t, rr)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	if got := eventCount(t, e, id, models.EventPageView); got != 0 {
		t.Errorf("stored events = %d, want 0", got)
	}
}

func TestTrack_UTMFromReferrer(t *testing.T) {
	e := setup(t)
	id := createProject(t, e, "demo", "", "ACTIVE")

	body := `{"slug":"demo","eventType":"PAGE_VIEW","referrer":"https://news.site/article?utm_source=newsletter&utm_medium=email"}`
	rr := e.do(trackReq(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", rr.Code, rr.Body.String())
	}

	var source, medium, referrer string
	err := e.db.QueryRow(
		`SELECT utm_source, utm_medium, referrer FROM analytics_events WHERE project_id = ?`, id,
	).Scan(&source, &medium, &referrer)
	if err != nil {
		t.Fatal(err)
	}
	if source != "newsletter" {
		t.Errorf("utm_source = %q, want newsletter", source)
	}
	if medium != "email" {
		t.Errorf("utm_medium = %q, want email", medium)
	}
	// Stored referrer keeps scheme+host+path only.
	if referrer != "https://news.site/article" {
		t.Errorf("referrer = %q, want query stripped", referrer)
	}
}

func TestTrack_BodyUTMWinsOverReferrer(t *testing.T) {
	e := setup(t)
	id := createProject(t, e, "demo", "", "ACTIVE")

	body := `{"slug":"demo","eventType":"PAGE_VIEW","utmSource":"launch-tweet","referrer":"https://news.site/?utm_source=newsletter"}`
	rr := e.do(trackReq(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var source string
	if err := e.db.QueryRow(
		`SELECT utm_source FROM analytics_events WHERE project_id = ?`, id,
	).Scan(&source); err != nil {
		t.Fatal(err)
	}
	if source != "launch-tweet" {
		t.Errorf("utm_source = %q, want launch-tweet", source)
	}
}

func TestTrack_DeviceAndBrowserEnrichment(t *testing.T) {
	e := setup(t)
	id := createProject(t, e, "demo", "", "ACTIVE")

	rr := e.do(trackReq(`{"slug":"demo","eventType":"PAGE_VIEW"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var device, browser string
	if err := e.db.QueryRow(
		`SELECT device_type, browser FROM analytics_events WHERE project_id = ?`, id,
	).Scan(&device, &browser); err != nil {
		t.Fatal(err)
	}
	if device != "desktop" {
		t.Errorf("device_type = %q, want desktop", device)
	}
	if browser != "Chrome" {
		t.Errorf("browser = %q, want Chrome", browser)
	}
}

func TestTrack_Stats(t *testing.T) {
	e := setup(t)
	createProject(t, e, "demo", "", "ACTIVE")

	for n := 0; n < 4; n++ {
		e.do(trackReq(`{"slug":"demo","eventType":"PAGE_VIEW"}`))
	}

	rr := e.do(httptest.NewRequest("GET", "/track?slug=demo&days=7", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", rr.Code, rr.Body.String())
	}
	body := decodeJSON(t, rr)
	if got := body["pageViews"].(float64); got != 4 {
		t.Errorf("pageViews = %v, want 4", got)
	}
	if got := body["formSubmissions"].(float64); got != 0 {
		t.Errorf("formSubmissions = %v, want 0", got)
	}
	period := body["period"].(map[string]any)
	if period["days"].(float64) != 7 {
		t.Errorf("period.days = %v, want 7", period["days"])
	}
}

func TestTrack_StatsMissingSlug(t *testing.T) {
	e := setup(t)
	rr := e.do(httptest.NewRequest("GET", "/track", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestTrack_StatsUnknownSlug(t *testing.T) {
	e := setup(t)
	rr := e.do(httptest.NewRequest("GET", "/track?slug=nobody", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}
