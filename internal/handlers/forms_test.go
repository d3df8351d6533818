package handlers_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/marketprobe/marketprobe/internal/models"
)

func leadReq(slug, body string) *http.Request {
	req := httptest.NewRequest("POST", "/leads/"+slug, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", chromeUA)
	return req
}

func submissionCount(t *testing.T, e *env, projectID int64) int {
	t.Helper()
	var n int
	if err := e.db.QueryRow(
		`SELECT COUNT(*) FROM form_submissions WHERE project_id = ?`, projectID,
	).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestSubmit_Success(t *testing.T) {
	e := setup(t)
	id := createProject(t, e, "demo", "", "ACTIVE")

	rr := e.do(leadReq("demo", `{"formData":{"email":"ada@example.com","name":"Ada"}}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", rr.Code, rr.Body.String())
	}
	body := decodeJSON(t, rr)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	if body["submissionId"] == nil {
		t.Error("submissionId missing")
	}
	if submissionCount(t, e, id) != 1 {
		t.Error("submission not stored")
	}
}

func TestSubmit_RecordsCorrelatedEvent(t *testing.T) {
	e := setup(t)
	id := createProject(t, e, "demo", "", "ACTIVE")

	rr := e.do(leadReq("demo", `{"formData":{"email":"ada@example.com","name":"Ada"}}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	if got := eventCount(t, e, id, models.EventFormSubmission); got != 1 {
		t.Fatalf("FORM_SUBMISSION events = %d, want 1", got)
	}

	// The event metadata carries field names, never values.
	var meta string
	if err := e.db.QueryRow(
		`SELECT metadata FROM analytics_events WHERE project_id = ? AND event_type = ?`,
		id, models.EventFormSubmission,
	).Scan(&meta); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(meta, "submissionId") {
		t.Errorf("metadata = %s, want submissionId", meta)
	}
	if !strings.Contains(meta, `"email"`) {
		t.Errorf("metadata = %s, want field name email", meta)
	}
	if strings.Contains(meta, "ada@example.com") {
		t.Errorf("metadata = %s, leaked a field value", meta)
	}
}

func TestSubmit_MissingEmail(t *testing.T) {
	e := setup(t)
	createProject(t, e, "demo", "", "ACTIVE")

	rr := e.do(leadReq("demo", `{"formData":{"name":"Ada"}}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	body := decodeJSON(t, rr)
	fields := body["fields"].(map[string]any)
	if _, ok := fields["formData.email"]; !ok {
		t.Errorf("fields = %v, want formData.email error", fields)
	}
}

func TestSubmit_InvalidEmail(t *testing.T) {
	e := setup(t)
	createProject(t, e, "demo", "", "ACTIVE")

	rr := e.do(leadReq("demo", `{"formData":{"email":"not-an-email"}}`))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestSubmit_BoundedFields(t *testing.T) {
	e := setup(t)
	createProject(t, e, "demo", "", "ACTIVE")

	long := strings.Repeat("x", 101)
	body := fmt.Sprintf(`{"formData":{"email":"ada@example.com","name":%q}}`, long)
	rr := e.do(leadReq("demo", body))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("name over bound: status = %d, want 400", rr.Code)
	}

	// Unknown custom fields are allowed but capped at 200.
	long = strings.Repeat("x", 201)
	body = fmt.Sprintf(`{"formData":{"email":"ada@example.com","favorite_color":%q}}`, long)
	rr = e.do(leadReq("demo", body))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("custom field over bound: status = %d, want 400", rr.Code)
	}

	body = `{"formData":{"email":"ada@example.com","favorite_color":"green"}}`
	rr = e.do(leadReq("demo", body))
	if rr.Code != http.StatusOK {
		t.Errorf("custom field in bound: status = %d, want 200, body = %s", rr.Code, rr.Body.String())
	}
}

func TestSubmit_UnknownSlug(t *testing.T) {
	e := setup(t)
	rr := e.do(leadReq("nobody", `{"formData":{"email":"ada@example.com"}}`))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestSubmit_HoneypotMaskedAsSuccess(t *testing.T) {
	e := setup(t)
	id := createProject(t, e, "demo", "", "ACTIVE")

	rr := e.do(leadReq("demo", `{"formData":{"email":"bot@example.com"},"honeypot":"gotcha"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (masked)", rr.Code)
	}
	body := decodeJSON(t, rr)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	if submissionCount(t, e, id) != 0 {
		t.Error("honeypot submission was stored")
	}
	if got := eventCount(t, e, id, models.EventFormSubmission); got != 0 {
		t.Errorf("honeypot produced %d events, want 0", got)
	}
}

func TestSubmit_DuplicateEmail_Returns409(t *testing.T) {
	e := setup(t)
	id := createProject(t, e, "demo", "", "ACTIVE")

	rr := e.do(leadReq("demo", `{"formData":{"email":"ada@example.com"}}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("first: status = %d, want 200", rr.Code)
	}

	rr = e.do(leadReq("demo", `{"formData":{"email":"ada@example.com"}}`))
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate: status = %d, want 409, body = %s", rr.Code, rr.Body.String())
	}
	if submissionCount(t, e, id) != 1 {
		t.Error("duplicate created a second row")
	}
}

func TestSubmit_SameEmailDifferentProjects(t *testing.T) {
	e := setup(t)
	createProject(t, e, "one", "", "ACTIVE")
	createProject(t, e, "two", "", "ACTIVE")

	rr := e.do(leadReq("one", `{"formData":{"email":"ada@example.com"}}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("project one: status = %d, want 200", rr.Code)
	}
	rr = e.do(leadReq("two", `{"formData":{"email":"ada@example.com"}}`))
	if rr.Code != http.StatusOK {
		t.Errorf("project two: status = %d, want 200 (uniqueness is per project)", rr.Code)
	}
}

func TestSubmit_RateLimitExceeded(t *testing.T) {
	e := setup(t)
	id := createProject(t, e, "demo", "", "ACTIVE")

	for i := 0; i < 5; i++ {
		body := fmt.Sprintf(`{"formData":{"email":"user%d@example.com"}}`, i)
		rr := e.do(leadReq("demo", body))
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rr.Code)
		}
	}

	rr := e.do(leadReq("demo", `{"formData":{"email":"late@example.com"}}`))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("X-RateLimit-Limit") != "5" {
		t.Errorf("X-RateLimit-Limit = %q, want 5", rr.Header().Get("X-RateLimit-Limit"))
	}
	if submissionCount(t, e, id) != 5 {
		t.Errorf("stored submissions = %d, want 5", submissionCount(t, e, id))
	}
}

func TestSubmit_FormAndAnalyticsLimitsIndependent(t *testing.T) {
	e := setup(t)
	createProject(t, e, "demo", "", "ACTIVE")

	// Exhaust the form quota.
	for i := 0; i < 5; i++ {
		body := fmt.Sprintf(`{"formData":{"email":"user%d@example.com"}}`, i)
		e.do(leadReq("demo", body))
	}
	rr := e.do(leadReq("demo", `{"formData":{"email":"late@example.com"}}`))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("form: status = %d, want 429", rr.Code)
	}

	// Analytics ingestion from the same IP still has quota.
	rr = e.do(trackReq(`{"slug":"demo","eventType":"PAGE_VIEW"}`))
	if rr.Code != http.StatusOK {
		t.Errorf("analytics: status = %d, want 200 (separate namespace)", rr.Code)
	}
}
