package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// APIPrefix is the path prefix of every authenticated endpoint.
const APIPrefix = "/api/v1"

type RouterConfig struct {
	Sessions     *SessionHandler
	Enrollment   *EnrollmentHandler
	Presence     *PresenceHandler
	Progression  *ProgressionHandler
	Directory    *DirectoryHandler
	Availability *AvailabilityHandler
	// Auth guards every API route; nil leaves them open.
	Auth       func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	// API routes live on the root router so a method mismatch reaches methodNotAllowed;
	// a subrouter reports it as a plain miss.
	api := apiRoutes{router: router, auth: cfg.Auth}

	if h := cfg.Sessions; h != nil {
		api.HandleFunc("/sessions", h.List).Methods(http.MethodGet)
		api.HandleFunc("/sessions/theory", h.CreateTheory).Methods(http.MethodPost)
		api.HandleFunc("/sessions/practical", h.CreatePractical).Methods(http.MethodPost)
		api.HandleFunc("/sessions/{sessionID}", h.Get).Methods(http.MethodGet)
		api.HandleFunc("/sessions/{sessionID}/schedule", h.Reschedule).Methods(http.MethodPut)
		api.HandleFunc("/sessions/{sessionID}/status", h.Transition).Methods(http.MethodPut)
		api.HandleFunc("/sessions/{sessionID}/cancel", h.Cancel).Methods(http.MethodPost)
		api.HandleFunc("/sessions/{sessionID}/complete", h.Complete).Methods(http.MethodPost)
		api.HandleFunc("/series/theory", h.PlanSeries).Methods(http.MethodPost)
	}

	if h := cfg.Enrollment; h != nil {
		api.HandleFunc("/sessions/{sessionID}/enrollments", h.Enroll).Methods(http.MethodPost)
		api.HandleFunc("/sessions/{sessionID}/enrollments/{candidateID}", h.Unenroll).Methods(http.MethodDelete)
		api.HandleFunc("/sessions/{sessionID}/assignment", h.Assign).Methods(http.MethodPut)
		api.HandleFunc("/sessions/{sessionID}/assignment/{candidateID}", h.Unassign).Methods(http.MethodDelete)
	}

	if h := cfg.Presence; h != nil {
		api.HandleFunc("/sessions/{sessionID}/presence/{candidateID}", h.Record).Methods(http.MethodPut)
		api.HandleFunc("/presence", h.List).Methods(http.MethodGet)
		api.HandleFunc("/candidates/{candidateID}/presence-count", h.Count).Methods(http.MethodGet)
	}

	if h := cfg.Progression; h != nil {
		api.HandleFunc("/candidates/{candidateID}/progression", h.Get).Methods(http.MethodGet)
	}

	if h := cfg.Availability; h != nil {
		api.HandleFunc("/availability", h.Check).Methods(http.MethodGet)
		api.HandleFunc("/instructors/{instructorID}/agenda", h.Agenda).Methods(http.MethodGet)
		api.HandleFunc("/instructors/{instructorID}/free-slots", h.FreeSlots).Methods(http.MethodGet)
	}

	if h := cfg.Directory; h != nil {
		api.HandleFunc("/instructors", h.ListInstructors).Methods(http.MethodGet)
		api.HandleFunc("/instructors", h.CreateInstructor).Methods(http.MethodPost)
		api.HandleFunc("/instructors/{instructorID}", h.GetInstructor).Methods(http.MethodGet)
		api.HandleFunc("/instructors/{instructorID}/specialties/{category}", h.AddSpecialty).Methods(http.MethodPut)
		api.HandleFunc("/instructors/{instructorID}/specialties/{category}", h.RemoveSpecialty).Methods(http.MethodDelete)
		api.HandleFunc("/candidates", h.ListCandidates).Methods(http.MethodGet)
		api.HandleFunc("/candidates", h.CreateCandidate).Methods(http.MethodPost)
		api.HandleFunc("/candidates/{candidateID}", h.GetCandidate).Methods(http.MethodGet)
		api.HandleFunc("/candidates/{candidateID}/exams", h.ListExams).Methods(http.MethodGet)
		api.HandleFunc("/candidates/{candidateID}/exams", h.RecordExam).Methods(http.MethodPost)
		api.HandleFunc("/exams/{examID}/outcome", h.GradeExam).Methods(http.MethodPut)
		api.HandleFunc("/vehicles", h.ListVehicles).Methods(http.MethodGet)
		api.HandleFunc("/vehicles", h.CreateVehicle).Methods(http.MethodPost)
		api.HandleFunc("/vehicles/{vehicleID}", h.GetVehicle).Methods(http.MethodGet)
	}

	var handler http.Handler = router
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}

type apiRoutes struct {
	router *mux.Router
	auth   func(http.Handler) http.Handler
}

func (a apiRoutes) HandleFunc(path string, fn http.HandlerFunc) *mux.Route {
	var handler http.Handler = fn
	if a.auth != nil {
		handler = a.auth(handler)
	}
	return a.router.Handle(APIPrefix+path, handler)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	newResponder(nil).writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{
		ErrorCode: "NOT_FOUND",
		Message:   localizedStatusMessage(http.StatusNotFound),
	})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	newResponder(nil).writeJSON(r.Context(), w, http.StatusMethodNotAllowed, errorResponse{
		ErrorCode: "METHOD_NOT_ALLOWED",
		Message:   "Méthode non autorisée pour cette ressource.",
	})
}
