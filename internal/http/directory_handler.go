package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/autoecole-scheduler/internal/application"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

type directoryService interface {
	RegisterInstructor(ctx context.Context, params application.RegisterInstructorParams) (scheduler.Instructor, error)
	GetInstructor(ctx context.Context, id string) (scheduler.Instructor, error)
	ListInstructors(ctx context.Context) ([]scheduler.Instructor, error)
	AddSpecialty(ctx context.Context, instructorID string, category scheduler.PermitCategory) (scheduler.Instructor, error)
	RemoveSpecialty(ctx context.Context, instructorID string, category scheduler.PermitCategory) (scheduler.Instructor, error)
	RegisterCandidate(ctx context.Context, params application.RegisterCandidateParams) (scheduler.Candidate, error)
	GetCandidate(ctx context.Context, id string) (scheduler.Candidate, error)
	ListCandidates(ctx context.Context) ([]scheduler.Candidate, error)
	RegisterVehicle(ctx context.Context, params application.RegisterVehicleParams) (scheduler.Vehicle, error)
	GetVehicle(ctx context.Context, id string) (scheduler.Vehicle, error)
	ListVehicles(ctx context.Context) ([]scheduler.Vehicle, error)
	RecordExam(ctx context.Context, params application.RecordExamParams) (scheduler.ExamRecord, error)
	GradeExam(ctx context.Context, examID string, outcome scheduler.ExamOutcome) (scheduler.ExamRecord, error)
	ListExams(ctx context.Context, candidateID string) ([]scheduler.ExamRecord, error)
}

// DirectoryHandler exposes the reference data the scheduler books against.
type DirectoryHandler struct {
	service   directoryService
	responder responder
	logger    *slog.Logger
}

func NewDirectoryHandler(service directoryService, logger *slog.Logger) *DirectoryHandler {
	base := defaultLogger(logger)
	return &DirectoryHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *DirectoryHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "DirectoryHandler", operation, attrs...)
}

func (h *DirectoryHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *DirectoryHandler) CreateInstructor(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req instructorRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "CreateInstructor", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode instructor request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "CreateInstructor")
	hiredOn, err := parseDay(req.HiredOn)
	if err != nil {
		vErr := fieldError("hired_on", "date is invalid")
		logger.ErrorContext(r.Context(), "invalid hire date", "error", err, "error_kind", application.ErrorKind(vErr))
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	specialties := make([]scheduler.PermitCategory, 0, len(req.Specialties))
	for _, s := range req.Specialties {
		specialties = append(specialties, scheduler.NormalizeCategory(s))
	}

	instructor, err := h.service.RegisterInstructor(r.Context(), application.RegisterInstructorParams{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		HiredOn:     hiredOn,
		Specialties: specialties,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "instructor registration failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("instructor_id", instructor.ID).InfoContext(r.Context(), "instructor registered")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, instructorResponse{Instructor: toInstructorDTO(instructor)})
}

func (h *DirectoryHandler) GetInstructor(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	id, ok := pathParam(r, "instructorID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	instructor, err := h.service.GetInstructor(r.Context(), id)
	if err != nil {
		h.log(r.Context(), "GetInstructor", "instructor_id", id).ErrorContext(r.Context(), "instructor lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, instructorResponse{Instructor: toInstructorDTO(instructor)})
}

func (h *DirectoryHandler) ListInstructors(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	instructors, err := h.service.ListInstructors(r.Context())
	if err != nil {
		h.log(r.Context(), "ListInstructors").ErrorContext(r.Context(), "instructor listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := instructorListResponse{Instructors: make([]instructorDTO, 0, len(instructors))}
	for _, instructor := range instructors {
		resp.Instructors = append(resp.Instructors, toInstructorDTO(instructor))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// AddSpecialty and RemoveSpecialty are idempotent on the specialty set.
func (h *DirectoryHandler) AddSpecialty(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	h.changeSpecialty(w, r, "AddSpecialty", h.service.AddSpecialty)
}

func (h *DirectoryHandler) RemoveSpecialty(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	h.changeSpecialty(w, r, "RemoveSpecialty", h.service.RemoveSpecialty)
}

type specialtyChange func(ctx context.Context, instructorID string, category scheduler.PermitCategory) (scheduler.Instructor, error)

func (h *DirectoryHandler) changeSpecialty(w http.ResponseWriter, r *http.Request, operation string, change specialtyChange) {
	id, okID := pathParam(r, "instructorID")
	category, okCategory := pathParam(r, "category")
	if !okID || !okCategory {
		h.log(r.Context(), operation, "error_kind", "bad_request").ErrorContext(r.Context(), "missing identifiers for specialty change")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	logger := h.log(r.Context(), operation, "instructor_id", id, "category", category)
	instructor, err := change(r.Context(), id, scheduler.NormalizeCategory(category))
	if err != nil {
		logger.ErrorContext(r.Context(), "specialty change failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "specialties updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, instructorResponse{Instructor: toInstructorDTO(instructor)})
}

func (h *DirectoryHandler) CreateCandidate(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req candidateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "CreateCandidate", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode candidate request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "CreateCandidate")
	candidate, err := h.service.RegisterCandidate(r.Context(), application.RegisterCandidateParams{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Phone:          req.Phone,
		TargetCategory: scheduler.NormalizeCategory(req.TargetCategory),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "candidate registration failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("candidate_id", candidate.ID).InfoContext(r.Context(), "candidate registered")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, candidateResponse{Candidate: toCandidateDTO(candidate)})
}

func (h *DirectoryHandler) GetCandidate(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	id, ok := pathParam(r, "candidateID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	candidate, err := h.service.GetCandidate(r.Context(), id)
	if err != nil {
		h.log(r.Context(), "GetCandidate", "candidate_id", id).ErrorContext(r.Context(), "candidate lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, candidateResponse{Candidate: toCandidateDTO(candidate)})
}

func (h *DirectoryHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	candidates, err := h.service.ListCandidates(r.Context())
	if err != nil {
		h.log(r.Context(), "ListCandidates").ErrorContext(r.Context(), "candidate listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := candidateListResponse{Candidates: make([]candidateDTO, 0, len(candidates))}
	for _, candidate := range candidates {
		resp.Candidates = append(resp.Candidates, toCandidateDTO(candidate))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *DirectoryHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req vehicleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "CreateVehicle", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode vehicle request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "CreateVehicle", "registration", req.Registration)
	vehicle, err := h.service.RegisterVehicle(r.Context(), application.RegisterVehicleParams{
		Registration: req.Registration,
		Model:        req.Model,
		Category:     scheduler.NormalizeCategory(req.Category),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "vehicle registration failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("vehicle_id", vehicle.ID).InfoContext(r.Context(), "vehicle registered")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, vehicleResponse{Vehicle: toVehicleDTO(vehicle)})
}

func (h *DirectoryHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	id, ok := pathParam(r, "vehicleID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	vehicle, err := h.service.GetVehicle(r.Context(), id)
	if err != nil {
		h.log(r.Context(), "GetVehicle", "vehicle_id", id).ErrorContext(r.Context(), "vehicle lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, vehicleResponse{Vehicle: toVehicleDTO(vehicle)})
}

func (h *DirectoryHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	vehicles, err := h.service.ListVehicles(r.Context())
	if err != nil {
		h.log(r.Context(), "ListVehicles").ErrorContext(r.Context(), "vehicle listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := vehicleListResponse{Vehicles: make([]vehicleDTO, 0, len(vehicles))}
	for _, vehicle := range vehicles {
		resp.Vehicles = append(resp.Vehicles, toVehicleDTO(vehicle))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *DirectoryHandler) RecordExam(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	candidateID, ok := pathParam(r, "candidateID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req examRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "RecordExam", "candidate_id", candidateID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode exam request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "RecordExam", "candidate_id", candidateID, "type", req.Type)
	date, err := parseDay(req.Date)
	if err != nil {
		vErr := fieldError("date", "date is invalid")
		logger.ErrorContext(r.Context(), "invalid exam date", "error", err, "error_kind", application.ErrorKind(vErr))
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	record, err := h.service.RecordExam(r.Context(), application.RecordExamParams{
		CandidateID: candidateID,
		Type:        scheduler.ExamType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Date:        date,
		Outcome:     scheduler.ExamOutcome(strings.ToUpper(strings.TrimSpace(req.Outcome))),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "exam recording failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("exam_id", record.ID).InfoContext(r.Context(), "exam recorded")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, examResponse{Exam: toExamDTO(record)})
}

func (h *DirectoryHandler) GradeExam(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	examID, ok := pathParam(r, "examID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req gradeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "GradeExam", "exam_id", examID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode grade request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "GradeExam", "exam_id", examID, "outcome", req.Outcome)
	record, err := h.service.GradeExam(r.Context(), examID, scheduler.ExamOutcome(strings.ToUpper(strings.TrimSpace(req.Outcome))))
	if err != nil {
		logger.ErrorContext(r.Context(), "exam grading failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "exam graded")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, examResponse{Exam: toExamDTO(record)})
}

func (h *DirectoryHandler) ListExams(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	candidateID, ok := pathParam(r, "candidateID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	records, err := h.service.ListExams(r.Context(), candidateID)
	if err != nil {
		h.log(r.Context(), "ListExams", "candidate_id", candidateID).ErrorContext(r.Context(), "exam listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := examListResponse{Exams: make([]examDTO, 0, len(records))}
	for _, record := range records {
		resp.Exams = append(resp.Exams, toExamDTO(record))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type instructorRequest struct {
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	HiredOn     string   `json:"hired_on"`
	Specialties []string `json:"specialties"`
}

type instructorDTO struct {
	ID          string   `json:"id"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Email       string   `json:"email,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	HiredOn     string   `json:"hired_on,omitempty"`
	Specialties []string `json:"specialties"`
	CreatedAt   string   `json:"created_at,omitempty"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
}

type instructorResponse struct {
	Instructor instructorDTO `json:"instructor"`
}

type instructorListResponse struct {
	Instructors []instructorDTO `json:"instructors"`
}

func toInstructorDTO(instructor scheduler.Instructor) instructorDTO {
	specialties := make([]string, 0, len(instructor.Specialties))
	for _, s := range instructor.Specialties {
		specialties = append(specialties, string(s))
	}
	return instructorDTO{
		ID:          instructor.ID,
		FirstName:   instructor.FirstName,
		LastName:    instructor.LastName,
		Email:       instructor.Email,
		Phone:       instructor.Phone,
		HiredOn:     formatDay(instructor.HiredOn),
		Specialties: specialties,
		CreatedAt:   formatTime(instructor.CreatedAt),
		UpdatedAt:   formatTime(instructor.UpdatedAt),
	}
}

type candidateProfileRequest struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	TargetCategory string `json:"target_category"`
}

type candidateDTO struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	TargetCategory string `json:"target_category,omitempty"`
	RegisteredAt   string `json:"registered_at,omitempty"`
}

type candidateResponse struct {
	Candidate candidateDTO `json:"candidate"`
}

type candidateListResponse struct {
	Candidates []candidateDTO `json:"candidates"`
}

func toCandidateDTO(candidate scheduler.Candidate) candidateDTO {
	return candidateDTO{
		ID:             candidate.ID,
		FirstName:      candidate.FirstName,
		LastName:       candidate.LastName,
		Email:          candidate.Email,
		Phone:          candidate.Phone,
		TargetCategory: string(candidate.TargetCategory),
		RegisteredAt:   formatTime(candidate.RegisteredAt),
	}
}

type vehicleRequest struct {
	Registration string `json:"registration"`
	Model        string `json:"model"`
	Category     string `json:"category"`
}

type vehicleDTO struct {
	ID           string `json:"id"`
	Registration string `json:"registration"`
	Model        string `json:"model,omitempty"`
	Category     string `json:"category"`
}

type vehicleResponse struct {
	Vehicle vehicleDTO `json:"vehicle"`
}

type vehicleListResponse struct {
	Vehicles []vehicleDTO `json:"vehicles"`
}

func toVehicleDTO(vehicle scheduler.Vehicle) vehicleDTO {
	return vehicleDTO{
		ID:           vehicle.ID,
		Registration: vehicle.Registration,
		Model:        vehicle.Model,
		Category:     string(vehicle.Category),
	}
}

type examRequest struct {
	Type    string `json:"type"`
	Date    string `json:"date"`
	Outcome string `json:"outcome"`
}

type gradeRequest struct {
	Outcome string `json:"outcome"`
}

type examDTO struct {
	ID          string `json:"id"`
	CandidateID string `json:"candidate_id"`
	Type        string `json:"type"`
	Date        string `json:"date"`
	Outcome     string `json:"outcome"`
}

type examResponse struct {
	Exam examDTO `json:"exam"`
}

type examListResponse struct {
	Exams []examDTO `json:"exams"`
}

func toExamDTO(record scheduler.ExamRecord) examDTO {
	return examDTO{
		ID:          record.ID,
		CandidateID: record.CandidateID,
		Type:        string(record.Type),
		Date:        formatDay(record.Date),
		Outcome:     string(record.Outcome),
	}
}
