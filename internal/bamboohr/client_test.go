package bamboohr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const directoryJSON = `{
	"fields": [{"id": "displayName", "type": "text", "name": "Display name"}],
	"employees": [
		{"id": "1", "displayName": "Ada Lovelace", "workEmail": "a@x.com"},
		{"id": "2", "displayName": "Bob Builder", "workEmail": "b@x.com"},
		{"id": "3", "displayName": "No Email", "workEmail": null}
	]
}`

const whosOutJSON = `[
	{"id": 100, "type": "timeOff", "employeeId": 1, "name": "Ada Lovelace", "start": "2024-03-01", "end": "2024-03-05"},
	{"id": 101, "type": "timeOff", "employeeId": 2, "name": "Bob Builder", "start": "2024-03-02", "end": "2024-03-02"},
	{"id": 102, "type": "holiday", "name": "Company Holiday", "start": "2024-03-04", "end": "2024-03-04"},
	{"id": 103, "type": "timeOff", "employeeId": 1, "name": "Ada Lovelace", "start": "2024-03-09", "end": "2024-03-08"}
]`

// newTestServer serves the BambooHR endpoints used by the sync and records
// the query of the last who's out request.
func newTestServer(t *testing.T, whosOutQuery *string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "test-key" || pass != "x" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Accept") != "application/json" {
			w.WriteHeader(http.StatusNotAcceptable)
			return
		}

		switch r.URL.Path {
		case "/acme/v1/employees/directory":
			w.Write([]byte(directoryJSON))
		case "/acme/v1/time_off/whos_out":
			if whosOutQuery != nil {
				*whosOutQuery = r.URL.RawQuery
			}
			w.Write([]byte(whosOutJSON))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestGetDirectory(t *testing.T) {
	ts := newTestServer(t, nil)
	defer ts.Close()

	client, err := NewClient("test-key", "acme", WithBaseURL(ts.URL))
	if err != nil {
		t.Fatalf("NewClient() returned an error: %v", err)
	}

	employees, err := client.GetDirectory(context.Background())
	if err != nil {
		t.Fatalf("GetDirectory() returned an error: %v", err)
	}
	if len(employees) != 3 {
		t.Fatalf("Expected 3 employees, got %d", len(employees))
	}
	if employees[2].WorkEmail != "" {
		t.Errorf("Expected null work email to decode as empty, got %q", employees[2].WorkEmail)
	}
}

func TestGetTimeOff_FiltersToAuthorizedScope(t *testing.T) {
	var query string
	ts := newTestServer(t, &query)
	defer ts.Close()

	client, err := NewClient("test-key", "acme", WithBaseURL(ts.URL+"/"))
	if err != nil {
		t.Fatalf("NewClient() returned an error: %v", err)
	}

	today, _ := ParseDate("2024-03-01")
	emails := map[string]struct{}{"a@x.com": {}}

	records, err := client.GetTimeOff(context.Background(), emails, today)
	if err != nil {
		t.Fatalf("GetTimeOff() returned an error: %v", err)
	}

	// 101 belongs to employee 2 who is out of scope, 102 is a holiday and
	// 103 is malformed.
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d: %+v", len(records), records)
	}
	if records[0].ID != "100" || records[0].EmployeeID != "1" {
		t.Errorf("Unexpected record selected: %+v", records[0])
	}

	if query != "end=2024-03-31&start=2024-03-01" {
		t.Errorf("Unexpected who's out query: %s", query)
	}
}

func TestGetTimeOff_MalformedEntryOutsideScope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/acme/v1/employees/directory":
			w.Write([]byte(directoryJSON))
		case "/acme/v1/time_off/whos_out":
			w.Write([]byte(`[
				{"id": 200, "type": "timeOff", "employeeId": 1, "name": "Ada Lovelace", "start": "2024-03-01", "end": "2024-03-05"},
				{"id": 201, "type": "timeOff", "employeeId": 1, "name": "Ada Lovelace", "start": "2024-03-10", "end": "10/03/2024"},
				{"id": 202, "type": "timeOff", "employeeId": 3, "name": "No Email", "start": "03/01/2024", "end": "2024-03-02"}
			]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	client, _ := NewClient("test-key", "acme", WithBaseURL(ts.URL))
	today, _ := ParseDate("2024-03-01")

	records, err := client.GetTimeOff(context.Background(), map[string]struct{}{"a@x.com": {}}, today)
	if err != nil {
		t.Fatalf("GetTimeOff() returned an error: %v", err)
	}

	// 201 is in scope but malformed and 202 is malformed and out of scope;
	// neither may cost Ada her valid entry.
	if len(records) != 1 || records[0].ID != "200" {
		t.Fatalf("Expected only record 200, got %+v", records)
	}
}

func TestGetTimeOff_EmptyScope(t *testing.T) {
	ts := newTestServer(t, nil)
	defer ts.Close()

	client, _ := NewClient("test-key", "acme", WithBaseURL(ts.URL))
	today, _ := ParseDate("2024-03-01")

	records, err := client.GetTimeOff(context.Background(), map[string]struct{}{}, today)
	if err != nil {
		t.Fatalf("GetTimeOff() returned an error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records for an empty scope, got %d", len(records))
	}
}

func TestGetTimeOff_CustomLookahead(t *testing.T) {
	var query string
	ts := newTestServer(t, &query)
	defer ts.Close()

	client, _ := NewClient("test-key", "acme", WithBaseURL(ts.URL), WithLookaheadDays(7), WithRateLimit(100))
	today, _ := ParseDate("2024-12-28")

	if _, err := client.GetTimeOff(context.Background(), map[string]struct{}{}, today); err != nil {
		t.Fatalf("GetTimeOff() returned an error: %v", err)
	}
	if query != "end=2025-01-04&start=2024-12-28" {
		t.Errorf("Unexpected who's out query: %s", query)
	}
}

func TestGet_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("API key has no access"))
	}))
	defer ts.Close()

	client, _ := NewClient("test-key", "acme", WithBaseURL(ts.URL))

	_, err := client.GetTimeOff(context.Background(), map[string]struct{}{"a@x.com": {}}, Date{Year: 2024, Month: 3, Day: 1})
	if err == nil {
		t.Fatal("Expected an error for HTTP 403")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "API key has no access") {
		t.Errorf("Expected status and body in error, got: %v", err)
	}
}

func TestGet_MalformedPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"employees": [`))
	}))
	defer ts.Close()

	client, _ := NewClient("test-key", "acme", WithBaseURL(ts.URL))

	if _, err := client.GetDirectory(context.Background()); err == nil {
		t.Fatal("Expected an error for a truncated payload")
	}
}

func TestGetTimeOffRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/acme/v1/time_off/requests" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.URL.Query().Get("employeeId"); got != "7" {
			t.Errorf("Expected employeeId=7, got %q", got)
		}
		w.Write([]byte(`[{
			"id": "1342", "employeeId": "7", "name": "Ada Lovelace",
			"start": "2024-05-30", "end": "2024-06-01",
			"status": {"status": "approved"},
			"type": {"id": "78", "name": "Vacation"},
			"amount": {"unit": "days", "amount": "2"}
		}]`))
	}))
	defer ts.Close()

	client, _ := NewClient("test-key", "acme", WithBaseURL(ts.URL))
	start, _ := ParseDate("2024-05-01")

	requests, err := client.GetTimeOffRequests(context.Background(), "7", start, start.AddDays(60))
	if err != nil {
		t.Fatalf("GetTimeOffRequests() returned an error: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(requests))
	}
	if requests[0].Status.Status != "approved" || requests[0].Type.Name != "Vacation" {
		t.Errorf("Unexpected request: %+v", requests[0])
	}
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	if _, err := NewClient("", "acme"); err == nil {
		t.Error("Expected an error for an empty API key")
	}
	if _, err := NewClient("key", ""); err == nil {
		t.Error("Expected an error for an empty company domain")
	}
}

func TestFilterEmployeesByEmail(t *testing.T) {
	employees := []Employee{
		{ID: "1", WorkEmail: "a@x.com"},
		{ID: "2", WorkEmail: "b@x.com"},
		{ID: "3"},
		{ID: "4", WorkEmail: "a@x.co"},
	}

	filtered := FilterEmployeesByEmail(employees, map[string]struct{}{"a@x.com": {}, "": {}})
	if len(filtered) != 1 || filtered[0].ID != "1" {
		t.Errorf("Expected only employee 1, got %+v", filtered)
	}
}
