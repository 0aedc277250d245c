package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abernathy/patientfront/internal/credential"
)

const testCred = credential.Credential("test.cred.value")

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   string
}

func newTestGateway(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recordedRequest) {
	t.Helper()
	var reqs []recordedRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		reqs = append(reqs, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Auth:   r.Header.Get("Authorization"),
			Body:   string(b),
		})
		handler(w, r)
	}))
	t.Cleanup(ts.Close)
	return NewClient(ts.URL+"/", WithHTTPClient(ts.Client())), &reqs
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestPatientClient_List(t *testing.T) {
	c, reqs := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"nom":"Ferguson","prenom":"Lucas","dateDeNaissance":"1968-06-22","genre":"M"},{"id":2,"nom":"Rees","prenom":"Pippa","genre":"F"}]`))
	})

	patients, err := NewPatientClient(c, "/api/patients").List(context.Background(), testCred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(patients) != 2 {
		t.Fatalf("expected 2 patients, got %d", len(patients))
	}
	if patients[0].LastName != "Ferguson" || *patients[0].ID != 1 {
		t.Errorf("unexpected first patient: %+v", patients[0])
	}
	if patients[0].BirthDate == nil || patients[0].BirthDate.Format("2006-01-02") != "1968-06-22" {
		t.Errorf("unexpected birth date: %v", patients[0].BirthDate)
	}
	if patients[1].BirthDate != nil {
		t.Error("expected missing birth date to stay nil")
	}

	got := (*reqs)[0]
	if got.Method != http.MethodGet || got.Path != "/api/patients" {
		t.Errorf("unexpected request %s %s", got.Method, got.Path)
	}
	if got.Auth != "Bearer test.cred.value" {
		t.Errorf("expected bearer header, got %q", got.Auth)
	}
}

func TestPatientClient_ListEmptyBody(t *testing.T) {
	c, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	patients, err := NewPatientClient(c, "/api/patients").List(context.Background(), testCred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patients == nil || len(patients) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", patients)
	}
}

func TestPatientClient_Get(t *testing.T) {
	c, reqs := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":7,"nom":"Bob","genre":"M","dateDeNaissance":"1990-01-15","note":["a"]}`))
	})
	p, err := NewPatientClient(c, "/api/patients/").Get(context.Background(), "7", testCred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.LastName != "Bob" || p.Gender != "M" {
		t.Errorf("unexpected patient %+v", p)
	}
	if (*reqs)[0].Path != "/api/patients/7" {
		t.Errorf("unexpected path %s", (*reqs)[0].Path)
	}
}

func TestPatientClient_GetFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{"unauthorized", http.StatusUnauthorized, "", http.StatusUnauthorized},
		{"not found", http.StatusNotFound, "", http.StatusNotFound},
		{"server error", http.StatusInternalServerError, "boom", http.StatusInternalServerError},
		{"bad json", http.StatusOK, "{not json", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := NewPatientClient(c, "/api/patients").Get(context.Background(), "1", testCred)
			var failure *RemoteCallFailure
			if !errors.As(err, &failure) {
				t.Fatalf("expected RemoteCallFailure, got %v", err)
			}
			if failure.Status != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, failure.Status)
			}
			if failure.Operation != "patient.get" {
				t.Errorf("expected operation patient.get, got %s", failure.Operation)
			}
			if strings.Contains(err.Error(), string(testCred)) {
				t.Error("error message leaks the credential")
			}
		})
	}
}

func TestPatientClient_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	_, err := NewPatientClient(NewClient(url), "/api/patients").List(context.Background(), testCred)
	var failure *RemoteCallFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected RemoteCallFailure, got %v", err)
	}
	if failure.Status != 0 {
		t.Errorf("expected status 0, got %d", failure.Status)
	}
}

func TestPatientClient_Create(t *testing.T) {
	c, reqs := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":42,"nom":"New","prenom":"Patient","genre":"F"}`))
	})
	birth := NewDate(time.Date(2000, 2, 29, 15, 4, 5, 0, time.UTC))
	in := &PatientRecord{LastName: "New", FirstName: "Patient", Gender: "F", BirthDate: birth}

	out, err := NewPatientClient(c, "/api/patients").Create(context.Background(), in, testCred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ID == nil || *out.ID != 42 {
		t.Errorf("expected id 42, got %v", out.ID)
	}
	got := (*reqs)[0]
	if got.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", got.Method)
	}
	if !strings.Contains(got.Body, `"dateDeNaissance":"2000-02-29"`) {
		t.Errorf("expected date-only birth date in body, got %s", got.Body)
	}
	if strings.Contains(got.Body, `"id"`) {
		t.Errorf("expected no id in create body, got %s", got.Body)
	}
}

func TestPatientClient_UpdateWithoutIDMakesNoCall(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	pc := NewPatientClient(c, "/api/patients")

	for name, rec := range map[string]*PatientRecord{
		"nil record": nil,
		"unset id":   {LastName: "Nobody"},
	} {
		t.Run(name, func(t *testing.T) {
			err := pc.Update(context.Background(), rec, testCred)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
	if calls.Load() != 0 {
		t.Errorf("expected zero network calls, got %d", calls.Load())
	}
}

func TestPatientClient_Update(t *testing.T) {
	c, reqs := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	id := int64(9)
	err := NewPatientClient(c, "/api/patients").Update(context.Background(), &PatientRecord{ID: &id, LastName: "X"}, testCred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := (*reqs)[0]
	if got.Method != http.MethodPut || got.Path != "/api/patients/9" {
		t.Errorf("unexpected request %s %s", got.Method, got.Path)
	}
}

func TestHistoryClient_ListByPatient(t *testing.T) {
	c, reqs := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []HistoryEntry{
			{ID: "h1", PatientID: "7", Patient: "Bob", Note: "headache"},
			{ID: "h2", PatientID: "7", Patient: "Bob", Note: "thirsty"},
		})
	})
	entries, err := NewHistoryClient(c, "/api/gateway/history").ListByPatient(context.Background(), "7", testCred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 || entries[1].Note != "thirsty" {
		t.Errorf("unexpected entries %+v", entries)
	}
	if (*reqs)[0].Path != "/api/gateway/history/7" {
		t.Errorf("unexpected path %s", (*reqs)[0].Path)
	}
}

func TestHistoryClient_AppendNote(t *testing.T) {
	c, reqs := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	hc := NewHistoryClient(c, "/api/gateway/history")
	err := hc.AppendNote(context.Background(), "7", &HistoryEntry{PatientID: "7", Patient: "Bob", Note: "dizzy"}, testCred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := (*reqs)[0]
	if got.Method != http.MethodPost || got.Path != "/api/gateway/history/7/add" {
		t.Errorf("unexpected request %s %s", got.Method, got.Path)
	}
	var sent HistoryEntry
	if err := json.Unmarshal([]byte(got.Body), &sent); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if sent.Note != "dizzy" || sent.PatientID != "7" {
		t.Errorf("unexpected body %+v", sent)
	}

	if err := hc.AppendNote(context.Background(), "", &HistoryEntry{}, testCred); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty patient id, got %v", err)
	}
	if len(*reqs) != 1 {
		t.Errorf("expected no extra calls, got %d", len(*reqs))
	}
}

func TestRiskClient_Score(t *testing.T) {
	c, reqs := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("Borderline"))
	})
	got, err := NewRiskClient(c, "/diabetes/risk").Score(context.Background(), RiskRequest{Name: "Bob", Age: 30, Gender: "M"}, testCred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Borderline" {
		t.Errorf("expected verbatim body, got %q", got)
	}
	if !strings.Contains((*reqs)[0].Body, `"note":[]`) {
		t.Errorf("expected empty notes array, got %s", (*reqs)[0].Body)
	}
}

func TestDate_JSON(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"1990-01-15"`), &d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 1990 || d.Month() != time.January || d.Day() != 15 {
		t.Errorf("unexpected date %v", d.Time)
	}
	if err := json.Unmarshal([]byte(`"2001-02-03T04:05:06Z"`), &d); err != nil {
		t.Fatalf("unexpected error for RFC3339: %v", err)
	}
	if err := json.Unmarshal([]byte(`"15/01/1990"`), &d); err == nil {
		t.Error("expected error for unsupported layout")
	}
	if err := json.Unmarshal([]byte(`null`), &d); err != nil || !d.IsZero() {
		t.Errorf("expected null to yield zero date, got %v, %v", d.Time, err)
	}
	b, _ := json.Marshal(Date{})
	if string(b) != "null" {
		t.Errorf("expected zero date to marshal as null, got %s", b)
	}
}
