package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fiend365gdsv/SQMS/internal/models"
	"github.com/fiend365gdsv/SQMS/internal/queue"
	"github.com/fiend365gdsv/SQMS/internal/store"

	"github.com/google/uuid"
)

// QueueService is the engine surface the transport boundary invokes; one
// inbound request maps to one call.
type QueueService interface {
	Enqueue(ctx context.Context, doctorID, patientID string) (models.Token, error)
	CallNext(ctx context.Context, doctorID string) (models.Token, error)
	MarkServed(ctx context.Context, tokenID string) (models.Token, error)
	MarkAbsentAndRequeue(ctx context.Context, tokenID string) (models.Token, error)
	PendingTokens(ctx context.Context, doctorID string) ([]models.Token, error)
	CompletedTokens(ctx context.Context, doctorID string) ([]models.Token, error)
	EstimateWait(ctx context.Context, doctorID string) ([]queue.WaitingEntry, int, error)
	RegisterDoctor(ctx context.Context, name string) (models.Doctor, error)
	Doctors(ctx context.Context) ([]models.Doctor, error)
	SetDoctorAvailability(ctx context.Context, doctorID string, available bool) (models.Doctor, error)
	RegisterPatient(ctx context.Context, patient models.Patient) (models.Patient, error)
}

type Handler struct {
	service QueueService
}

func NewHandler(service QueueService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/doctors", h.handleDoctors)
	mux.HandleFunc("/api/doctors/", h.handleDoctorActions)
	mux.HandleFunc("/api/patients", h.handlePatients)
	mux.HandleFunc("/api/queue/", h.handleQueue)
	mux.HandleFunc("/api/tokens/", h.handleTokenActions)
	return mux
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createDoctorRequest struct {
	Name string `json:"name"`
}

type availabilityRequest struct {
	Available *bool `json:"available"`
}

type createPatientRequest struct {
	Name    string `json:"name"`
	Age     int    `json:"age"`
	Contact string `json:"contact"`
}

type enqueueRequest struct {
	PatientID string `json:"patient_id"`
}

type waitingResponse struct {
	DoctorID              string               `json:"doctor_id"`
	AverageServiceSeconds int                  `json:"average_service_seconds"`
	Entries               []queue.WaitingEntry `json:"entries"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleDoctors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		doctors, err := h.service.Doctors(r.Context())
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, doctors)
	case http.MethodPost:
		var req createDoctorRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
			return
		}
		doctor, err := h.service.RegisterDoctor(r.Context(), req.Name)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, doctor)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleDoctorActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/doctors/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[1] != "availability" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	doctorID := parts[0]
	if !isValidUUID(doctorID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "doctor_id must be a UUID")
		return
	}

	var req availabilityRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.Available == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "available is required")
		return
	}

	doctor, err := h.service.SetDoctorAvailability(r.Context(), doctorID, *req.Available)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, doctor)
}

func (h *Handler) handlePatients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req createPatientRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Contact = strings.TrimSpace(req.Contact)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	if req.Age < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "age must not be negative")
		return
	}

	patient, err := h.service.RegisterPatient(r.Context(), models.Patient{
		Name:    req.Name,
		Age:     req.Age,
		Contact: req.Contact,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	doctorID := parts[0]
	action := parts[1]
	if !isValidUUID(doctorID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "doctor_id must be a UUID")
		return
	}

	switch action {
	case "enqueue":
		h.handleEnqueue(w, r, doctorID)
	case "call-next":
		h.handleCallNext(w, r, doctorID)
	case "waiting":
		h.handleWaiting(w, r, doctorID)
	case "pending":
		h.handleDayView(w, r, doctorID, h.service.PendingTokens)
	case "completed":
		h.handleDayView(w, r, doctorID, h.service.CompletedTokens)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request, doctorID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req enqueueRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	req.PatientID = strings.TrimSpace(req.PatientID)
	if req.PatientID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "patient_id is required")
		return
	}
	if !isValidUUID(req.PatientID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "patient_id must be a UUID")
		return
	}

	token, err := h.service.Enqueue(r.Context(), doctorID, req.PatientID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (h *Handler) handleCallNext(w http.ResponseWriter, r *http.Request, doctorID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	token, err := h.service.CallNext(r.Context(), doctorID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (h *Handler) handleWaiting(w http.ResponseWriter, r *http.Request, doctorID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	entries, average, err := h.service.EstimateWait(r.Context(), doctorID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, waitingResponse{
		DoctorID:              doctorID,
		AverageServiceSeconds: average,
		Entries:               entries,
	})
}

func (h *Handler) handleDayView(w http.ResponseWriter, r *http.Request, doctorID string, view func(context.Context, string) ([]models.Token, error)) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tokens, err := view(r.Context(), doctorID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) handleTokenActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/tokens/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	tokenID := parts[0]
	if !isValidUUID(tokenID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "token_id must be a UUID")
		return
	}

	var token models.Token
	var err error
	switch parts[1] {
	case "served":
		token, err = h.service.MarkServed(r.Context(), tokenID)
	case "absent":
		token, err = h.service.MarkAbsentAndRequeue(r.Context(), tokenID)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func decodeRequest(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrDoctorNotFound):
		return http.StatusNotFound, "doctor_not_found", "doctor not found"
	case errors.Is(err, store.ErrPatientNotFound):
		return http.StatusNotFound, "patient_not_found", "patient not found"
	case errors.Is(err, store.ErrTokenNotFound):
		return http.StatusNotFound, "token_not_found", "token not found"
	case errors.Is(err, store.ErrQueueEmpty):
		return http.StatusConflict, "queue_empty", "no waiting tokens for this doctor"
	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict, "invalid_state", "token state does not allow this action"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
