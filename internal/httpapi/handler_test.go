package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fiend365gdsv/SQMS/internal/models"
	"github.com/fiend365gdsv/SQMS/internal/queue"
	"github.com/fiend365gdsv/SQMS/internal/store"
)

const (
	doctorID  = "6f1b3a9e-4f9c-4f0a-8dc6-0f6d7b4d9c01"
	patientID = "9a2c5d7e-1b3f-4a6c-9d8e-2f4a6b8c0d02"
	tokenID   = "3e5a7c9b-2d4f-46a8-b0c2-4e6a8c0d2f03"
)

type fakeService struct {
	token     models.Token
	doctor    models.Doctor
	patient   models.Patient
	entries   []queue.WaitingEntry
	average   int
	err       error
	lastCall  string
	lastInput []string
}

func (f *fakeService) record(call string, input ...string) {
	f.lastCall = call
	f.lastInput = input
}

func (f *fakeService) Enqueue(ctx context.Context, doctorID, patientID string) (models.Token, error) {
	f.record("Enqueue", doctorID, patientID)
	return f.token, f.err
}

func (f *fakeService) CallNext(ctx context.Context, doctorID string) (models.Token, error) {
	f.record("CallNext", doctorID)
	return f.token, f.err
}

func (f *fakeService) MarkServed(ctx context.Context, tokenID string) (models.Token, error) {
	f.record("MarkServed", tokenID)
	return f.token, f.err
}

func (f *fakeService) MarkAbsentAndRequeue(ctx context.Context, tokenID string) (models.Token, error) {
	f.record("MarkAbsentAndRequeue", tokenID)
	return f.token, f.err
}

func (f *fakeService) PendingTokens(ctx context.Context, doctorID string) ([]models.Token, error) {
	f.record("PendingTokens", doctorID)
	return []models.Token{f.token}, f.err
}

func (f *fakeService) CompletedTokens(ctx context.Context, doctorID string) ([]models.Token, error) {
	f.record("CompletedTokens", doctorID)
	return []models.Token{f.token}, f.err
}

func (f *fakeService) EstimateWait(ctx context.Context, doctorID string) ([]queue.WaitingEntry, int, error) {
	f.record("EstimateWait", doctorID)
	return f.entries, f.average, f.err
}

func (f *fakeService) RegisterDoctor(ctx context.Context, name string) (models.Doctor, error) {
	f.record("RegisterDoctor", name)
	return f.doctor, f.err
}

func (f *fakeService) Doctors(ctx context.Context) ([]models.Doctor, error) {
	f.record("Doctors")
	return []models.Doctor{f.doctor}, f.err
}

func (f *fakeService) SetDoctorAvailability(ctx context.Context, doctorID string, available bool) (models.Doctor, error) {
	f.record("SetDoctorAvailability", doctorID)
	return f.doctor, f.err
}

func (f *fakeService) RegisterPatient(ctx context.Context, patient models.Patient) (models.Patient, error) {
	f.record("RegisterPatient", patient.Name)
	return f.patient, f.err
}

func doRequest(t *testing.T, routes http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp.Error.Code
}

func TestHealthz(t *testing.T) {
	routes := NewHandler(&fakeService{}).Routes()
	rec := doRequest(t, routes, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestEnqueueRoute(t *testing.T) {
	svc := &fakeService{token: models.Token{TokenID: tokenID, TokenNumber: 1}}
	routes := NewHandler(svc).Routes()

	rec := doRequest(t, routes, http.MethodPost, "/api/queue/"+doctorID+"/enqueue",
		`{"patient_id":"`+patientID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if svc.lastCall != "Enqueue" {
		t.Fatalf("lastCall = %q, want Enqueue", svc.lastCall)
	}
	if svc.lastInput[0] != doctorID || svc.lastInput[1] != patientID {
		t.Fatalf("unexpected inputs %v", svc.lastInput)
	}

	var token models.Token
	if err := json.Unmarshal(rec.Body.Bytes(), &token); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if token.TokenNumber != 1 {
		t.Fatalf("token_number = %d, want 1", token.TokenNumber)
	}
}

func TestEnqueueValidation(t *testing.T) {
	cases := []struct {
		name string
		path string
		body string
		code string
	}{
		{"doctor id not uuid", "/api/queue/not-a-uuid/enqueue", `{"patient_id":"` + patientID + `"}`, "invalid_request"},
		{"patient id missing", "/api/queue/" + doctorID + "/enqueue", `{}`, "invalid_request"},
		{"patient id not uuid", "/api/queue/" + doctorID + "/enqueue", `{"patient_id":"abc"}`, "invalid_request"},
		{"unknown field", "/api/queue/" + doctorID + "/enqueue", `{"patient":"x"}`, "invalid_json"},
		{"malformed body", "/api/queue/" + doctorID + "/enqueue", `{`, "invalid_json"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{}
			routes := NewHandler(svc).Routes()
			rec := doRequest(t, routes, http.MethodPost, tc.path, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := decodeError(t, rec); got != tc.code {
				t.Fatalf("error code = %q, want %q", got, tc.code)
			}
			if svc.lastCall != "" {
				t.Fatalf("service was called: %s", svc.lastCall)
			}
		})
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"doctor missing", store.ErrDoctorNotFound, http.StatusNotFound, "doctor_not_found"},
		{"patient missing", store.ErrPatientNotFound, http.StatusNotFound, "patient_not_found"},
		{"token missing", store.ErrTokenNotFound, http.StatusNotFound, "token_not_found"},
		{"queue empty", store.ErrQueueEmpty, http.StatusConflict, "queue_empty"},
		{"bad transition", store.ErrInvalidTransition, http.StatusConflict, "invalid_state"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{err: tc.err}
			routes := NewHandler(svc).Routes()
			rec := doRequest(t, routes, http.MethodPost, "/api/queue/"+doctorID+"/call-next", "")
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if got := decodeError(t, rec); got != tc.code {
				t.Fatalf("error code = %q, want %q", got, tc.code)
			}
		})
	}
}

func TestWaitingRoute(t *testing.T) {
	svc := &fakeService{
		entries: []queue.WaitingEntry{
			{Token: models.Token{TokenNumber: 1}, Position: 1, EtaSeconds: 0},
			{Token: models.Token{TokenNumber: 2}, Position: 2, EtaSeconds: 150},
		},
		average: 150,
	}
	routes := NewHandler(svc).Routes()

	rec := doRequest(t, routes, http.MethodGet, "/api/queue/"+doctorID+"/waiting", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp waitingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.DoctorID != doctorID {
		t.Fatalf("doctor_id = %q", resp.DoctorID)
	}
	if resp.AverageServiceSeconds != 150 {
		t.Fatalf("average = %d, want 150", resp.AverageServiceSeconds)
	}
	if len(resp.Entries) != 2 || resp.Entries[1].EtaSeconds != 150 {
		t.Fatalf("unexpected entries %+v", resp.Entries)
	}
}

func TestTokenActionRoutes(t *testing.T) {
	cases := []struct {
		action string
		call   string
	}{
		{"served", "MarkServed"},
		{"absent", "MarkAbsentAndRequeue"},
	}
	for _, tc := range cases {
		t.Run(tc.action, func(t *testing.T) {
			svc := &fakeService{token: models.Token{TokenID: tokenID}}
			routes := NewHandler(svc).Routes()
			rec := doRequest(t, routes, http.MethodPost, "/api/tokens/"+tokenID+"/"+tc.action, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if svc.lastCall != tc.call {
				t.Fatalf("lastCall = %q, want %q", svc.lastCall, tc.call)
			}
			if svc.lastInput[0] != tokenID {
				t.Fatalf("token id = %q", svc.lastInput[0])
			}
		})
	}
}

func TestTokenActionValidation(t *testing.T) {
	svc := &fakeService{}
	routes := NewHandler(svc).Routes()

	rec := doRequest(t, routes, http.MethodPost, "/api/tokens/not-a-uuid/served", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, routes, http.MethodPost, "/api/tokens/"+tokenID+"/recall", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, routes, http.MethodGet, "/api/tokens/"+tokenID+"/served", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestDoctorRoutes(t *testing.T) {
	svc := &fakeService{doctor: models.Doctor{DoctorID: doctorID, Name: "Dr. Menon", Available: true}}
	routes := NewHandler(svc).Routes()

	rec := doRequest(t, routes, http.MethodPost, "/api/doctors", `{"name":"Dr. Menon"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d, want 200", rec.Code)
	}
	if svc.lastCall != "RegisterDoctor" {
		t.Fatalf("lastCall = %q", svc.lastCall)
	}

	rec = doRequest(t, routes, http.MethodGet, "/api/doctors", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var doctors []models.Doctor
	if err := json.Unmarshal(rec.Body.Bytes(), &doctors); err != nil {
		t.Fatalf("decode doctors: %v", err)
	}
	if len(doctors) != 1 || doctors[0].Name != "Dr. Menon" {
		t.Fatalf("unexpected doctors %+v", doctors)
	}

	rec = doRequest(t, routes, http.MethodPost, "/api/doctors", `{"name":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank name status = %d, want 400", rec.Code)
	}
}

func TestAvailabilityRoute(t *testing.T) {
	svc := &fakeService{doctor: models.Doctor{DoctorID: doctorID, Available: false}}
	routes := NewHandler(svc).Routes()

	rec := doRequest(t, routes, http.MethodPost, "/api/doctors/"+doctorID+"/availability", `{"available":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastCall != "SetDoctorAvailability" {
		t.Fatalf("lastCall = %q", svc.lastCall)
	}

	rec = doRequest(t, routes, http.MethodPost, "/api/doctors/"+doctorID+"/availability", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing flag status = %d, want 400", rec.Code)
	}
}

func TestPatientRoute(t *testing.T) {
	svc := &fakeService{patient: models.Patient{PatientID: patientID, Name: "Asha"}}
	routes := NewHandler(svc).Routes()

	rec := doRequest(t, routes, http.MethodPost, "/api/patients", `{"name":"Asha","age":34,"contact":"555-0101"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastCall != "RegisterPatient" {
		t.Fatalf("lastCall = %q", svc.lastCall)
	}

	rec = doRequest(t, routes, http.MethodPost, "/api/patients", `{"name":"Asha","age":-1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative age status = %d, want 400", rec.Code)
	}
}

func TestDayViewRoutes(t *testing.T) {
	cases := []struct {
		action string
		call   string
	}{
		{"pending", "PendingTokens"},
		{"completed", "CompletedTokens"},
	}
	for _, tc := range cases {
		t.Run(tc.action, func(t *testing.T) {
			svc := &fakeService{token: models.Token{TokenID: tokenID}}
			routes := NewHandler(svc).Routes()
			rec := doRequest(t, routes, http.MethodGet, "/api/queue/"+doctorID+"/"+tc.action, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if svc.lastCall != tc.call {
				t.Fatalf("lastCall = %q, want %q", svc.lastCall, tc.call)
			}
		})
	}
}

func TestUnknownQueueAction(t *testing.T) {
	routes := NewHandler(&fakeService{}).Routes()
	rec := doRequest(t, routes, http.MethodGet, "/api/queue/"+doctorID+"/history", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
