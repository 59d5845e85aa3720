// Package httpadapter exposes the consultation service over a thin JSON API.
package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"medagent/internal/app/consult"
	"medagent/internal/app/governance"
	"medagent/internal/domain"
)

type Server struct {
	svc   *consult.Service
	coord *governance.Coordinator
}

func NewServer(svc *consult.Service, coord *governance.Coordinator) http.Handler {
	s := &Server{svc: svc, coord: coord}

	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(withLogging)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/consultations", s.handleConsult)
		r.Get("/patients/{id}/reports", s.handleListReports)
		r.Post("/patients/{id}/profile", s.handleUpsertProfile)
		r.Post("/patients/{id}/medications", s.handleAddMedication)
		r.Post("/interactions/{id}/review", s.handleResolveReview)
	})
	return r
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type consultRequest struct {
	UserID   string `json:"user_id,omitempty"`
	Message  string `json:"message"`
	ImageRef string `json:"image_ref,omitempty"`
	Mode     string `json:"mode,omitempty"`
}

type consultResponse struct {
	SessionID           string  `json:"session_id"`
	CaseID              string  `json:"case_id,omitempty"`
	Language            string  `json:"language"`
	Urgency             string  `json:"urgency,omitempty"`
	Diagnosis           string  `json:"diagnosis,omitempty"`
	Confidence          float64 `json:"confidence"`
	ValidationStatus    string  `json:"validation_status,omitempty"`
	SafetyStatus        string  `json:"safety_status"`
	CriticalAlert       bool    `json:"critical_alert"`
	RequiresHumanReview bool    `json:"requires_human_review"`
	MedicalReport       string  `json:"medical_report,omitempty"`
	DoctorSummary       string  `json:"doctor_summary,omitempty"`
	PatientInstructions string  `json:"patient_instructions,omitempty"`
	AppointmentDetails  string  `json:"appointment_details,omitempty"`
	FinalResponse       string  `json:"final_response"`
}

type reportResponse struct {
	ID                  int64     `json:"id"`
	Version             int       `json:"version"`
	Status              string    `json:"status"`
	Language            string    `json:"language"`
	MedicalReport       string    `json:"medical_report"`
	DoctorSummary       string    `json:"doctor_summary"`
	PatientInstructions string    `json:"patient_instructions"`
	CreatedAt           time.Time `json:"created_at"`
}

type upsertProfileRequest struct {
	Name    string `json:"name"`
	Age     int    `json:"age"`
	Gender  string `json:"gender"`
	History string `json:"history"`
}

type addMedicationRequest struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
}

type resolveReviewRequest struct {
	Status   string `json:"status"`
	Comment  string `json:"comment,omitempty"`
	Reviewer string `json:"reviewer"`
}

// ─────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConsult(w http.ResponseWriter, r *http.Request) {
	var req consultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	out, err := s.svc.Consult(r.Context(), consult.Input{
		UserID:   domain.UserID(req.UserID),
		Message:  req.Message,
		ImageRef: req.ImageRef,
		Mode:     parseMode(req.Mode),
		ClientID: clientIdentifier(r),
	})
	if err != nil {
		var rateErr *domain.RateLimitError
		var inputErr *domain.InvalidInputError
		switch {
		case errors.As(err, &rateErr):
			w.Header().Set("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "rate limit exceeded",
			})
		case errors.As(err, &inputErr):
			badRequest(w, inputErr.Reason)
		default:
			// Pipeline failures still carry a safe user-facing response.
			if out != nil {
				writeJSON(w, http.StatusInternalServerError, toConsultResponse(out))
				return
			}
			internalError(w)
		}
		return
	}

	writeJSON(w, http.StatusOK, toConsultResponse(out))
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")
	if patientID == "" {
		badRequest(w, "patient id is required")
		return
	}

	reports, err := s.coord.ListReports(r.Context(), domain.UserID(patientID))
	if err != nil {
		internalError(w)
		return
	}

	out := make([]reportResponse, 0, len(reports))
	for _, rep := range reports {
		out = append(out, reportResponse{
			ID:                  rep.ID,
			Version:             rep.Version,
			Status:              string(rep.Status),
			Language:            string(rep.Language),
			MedicalReport:       rep.MedicalReport,
			DoctorSummary:       rep.DoctorSummary,
			PatientInstructions: rep.PatientInstructions,
			CreatedAt:           rep.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": out})
}

func (s *Server) handleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")
	if patientID == "" {
		badRequest(w, "patient id is required")
		return
	}

	var req upsertProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}

	if err := s.coord.UpsertProfile(r.Context(), domain.UserID(patientID), req.Name, req.Age, req.Gender, req.History); err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleAddMedication(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")
	if patientID == "" {
		badRequest(w, "patient id is required")
		return
	}

	var req addMedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}

	if err := s.coord.AddMedication(r.Context(), domain.UserID(patientID), req.Name, req.Dosage, req.Frequency); err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

func (s *Server) handleResolveReview(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, "interaction id must be numeric")
		return
	}

	var req resolveReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	status, ok := parseReviewStatus(req.Status)
	if !ok {
		badRequest(w, "status must be approved or rejected")
		return
	}
	if req.Reviewer == "" {
		badRequest(w, "reviewer is required")
		return
	}

	if err := s.coord.ResolveReview(r.Context(), domain.InteractionID(id), status, req.Comment, req.Reviewer); err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

func toConsultResponse(out *consult.Result) consultResponse {
	return consultResponse{
		SessionID:           string(out.SessionID),
		CaseID:              string(out.CaseID),
		Language:            string(out.Language),
		Urgency:             string(out.Urgency),
		Diagnosis:           out.Diagnosis,
		Confidence:          out.Confidence,
		ValidationStatus:    string(out.ValidationStatus),
		SafetyStatus:        string(out.SafetyStatus),
		CriticalAlert:       out.CriticalAlert,
		RequiresHumanReview: out.RequiresHumanReview,
		MedicalReport:       out.ReportMedical,
		DoctorSummary:       out.ReportDoctorSummary,
		PatientInstructions: out.ReportPatientInstructions,
		AppointmentDetails:  out.AppointmentDetails,
		FinalResponse:       out.FinalResponse,
	}
}

func parseMode(s string) domain.InteractionMode {
	switch s {
	case "doctor":
		return domain.ModeDoctor
	default:
		return domain.ModePatient
	}
}

func parseReviewStatus(s string) (domain.ReviewStatus, bool) {
	switch s {
	case "approved":
		return domain.ReviewApproved, true
	case "rejected":
		return domain.ReviewRejected, true
	default:
		return "", false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func internalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
