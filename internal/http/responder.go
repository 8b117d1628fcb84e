package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/autoecole-scheduler/internal/application"
	"github.com/example/autoecole-scheduler/internal/logging"
)

var (
	errBadRequestBody = errors.New("Format de requête invalide.")
	errMissingID      = errors.New("Identifiant manquant dans l'URL.")
	errBadQuery       = errors.New("Paramètres de requête invalides.")
	errMissingAPIKey  = errors.New("Clé d'API requise.")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps application errors onto status codes and French messages.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}
	status, payload := errorPayload(err)
	r.writeJSON(ctx, w, status, payload)
}

func errorPayload(err error) (int, errorResponse) {
	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION",
			Message:   localizedStatusMessage(http.StatusUnprocessableEntity),
			Errors:    localizeValidationErrors(vErr),
		}
	}

	var cErr *application.ConflictError
	if errors.As(err, &cErr) {
		message := "Le moniteur est déjà occupé sur ce créneau."
		if errors.Is(err, application.ErrVehicleConflict) {
			message = "Le véhicule est déjà réservé sur ce créneau."
		}
		return http.StatusConflict, errorResponse{
			ErrorCode:            strings.ToUpper(application.ErrorKind(err)),
			Message:              message,
			ConflictingSessionID: cErr.ConflictingSessionID,
		}
	}

	switch {
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, errorResponse{ErrorCode: "NOT_FOUND", Message: localizedStatusMessage(http.StatusNotFound)}
	case errors.Is(err, application.ErrCapacityExceeded):
		return http.StatusConflict, errorResponse{ErrorCode: "CAPACITY_EXCEEDED", Message: "La séance est complète."}
	case errors.Is(err, application.ErrAlreadyEnrolled):
		return http.StatusConflict, errorResponse{ErrorCode: "ALREADY_ENROLLED", Message: "Le candidat est déjà inscrit à cette séance."}
	case errors.Is(err, application.ErrInvalidTransition):
		return http.StatusConflict, errorResponse{ErrorCode: "INVALID_TRANSITION", Message: "Ce changement de statut n'est pas autorisé."}
	case errors.Is(err, application.ErrAlreadyExists):
		return http.StatusConflict, errorResponse{ErrorCode: "ALREADY_EXISTS", Message: "Cet enregistrement existe déjà."}
	case errors.Is(err, application.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, errorResponse{ErrorCode: "STORAGE_UNAVAILABLE", Message: localizedStatusMessage(http.StatusServiceUnavailable)}
	case errors.Is(err, application.ErrInvalidAPIKey):
		return http.StatusUnauthorized, errorResponse{ErrorCode: "UNAUTHORIZED", Message: "Clé d'API invalide."}
	default:
		return http.StatusInternalServerError, errorResponse{ErrorCode: "INTERNAL", Message: localizedStatusMessage(http.StatusInternalServerError)}
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, r.logger)
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Requête invalide."
	case http.StatusUnauthorized:
		return "Authentification requise."
	case http.StatusNotFound:
		return "Ressource introuvable."
	case http.StatusConflict:
		return "La requête est en conflit avec l'état actuel de la ressource."
	case http.StatusUnprocessableEntity:
		return "Les données saisies sont invalides."
	case http.StatusServiceUnavailable:
		return "Le stockage est momentanément indisponible, réessayez plus tard."
	default:
		return "Une erreur interne est survenue."
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

var validationMessagesFR = map[string]string{
	"required": "Ce champ est obligatoire.",

	"instructor is required":                                 "Le moniteur est obligatoire.",
	"candidate is required":                                  "Le candidat est obligatoire.",
	"vehicle is required":                                    "Le véhicule est obligatoire.",
	"session id is required":                                 "L'identifiant de séance est obligatoire.",
	"session or candidate is required":                       "Une séance ou un candidat est obligatoire.",
	"start is required":                                      "La date de début est obligatoire.",
	"date is required":                                       "La date est obligatoire.",
	"duration must be positive":                              "La durée doit être positive.",
	"capacity is required":                                   "La capacité est obligatoire.",
	"capacity must be positive":                              "La capacité doit être positive.",
	"enrolled candidates exceed capacity":                    "Le nombre d'inscrits dépasse la capacité.",
	"price cannot be negative":                               "Le prix ne peut pas être négatif.",
	"distance cannot be negative":                            "La distance ne peut pas être négative.",
	"distance only applies to practical sessions":            "La distance ne concerne que les leçons de conduite.",
	"kind must be code or conduite":                          "Le type doit être code ou conduite.",
	"status is unknown":                                      "Le statut est inconnu.",
	"new sessions must be planned":                           "Une nouvelle séance doit être planifiée.",
	"only planned sessions can be rescheduled":               "Seules les séances planifiées peuvent être déplacées.",
	"practical details are required":                         "Le point de rendez-vous est obligatoire.",
	"meeting point must be either coordinates or an address": "Le point de rendez-vous doit être soit des coordonnées soit une adresse.",
	"meeting point coordinates are out of range":             "Les coordonnées du point de rendez-vous sont hors limites.",
	"enrollment applies to theory sessions":                  "L'inscription ne concerne que les séances de code.",
	"assignment applies to practical sessions":               "L'affectation ne concerne que les leçons de conduite.",
	"window end must be after its start":                     "La fin de la période doit suivre son début.",
	"slot length cannot be negative":                         "La durée de créneau ne peut pas être négative.",
	"rule produces no occurrence":                            "La règle de récurrence ne produit aucune séance.",
	"first name is required":                                 "Le prénom est obligatoire.",
	"last name is required":                                  "Le nom est obligatoire.",
	"email is invalid":                                       "Le format de l'adresse e-mail est invalide.",
	"registration is required":                               "L'immatriculation est obligatoire.",
	"category is required":                                   "La catégorie de permis est obligatoire.",
	"specialty cannot be empty":                              "Une spécialité ne peut pas être vide.",
	"exam type must be THEORY or PRACTICAL":                  "Le type d'examen doit être THEORY ou PRACTICAL.",
	"outcome must be PENDING, PASSED or FAILED":              "Le résultat doit être PENDING, PASSED ou FAILED.",
	"record violates a storage constraint":                   "L'enregistrement viole une contrainte de stockage.",
	"meeting point needs both latitude and longitude":        "Le point de rendez-vous doit préciser la latitude et la longitude.",
	"frequency must be daily or weekly":                      "La fréquence doit être daily ou weekly.",
	"weekday is unknown":                                     "Le jour de la semaine est inconnu.",
	"date is invalid":                                        "Le format de la date est invalide.",
	"vehicle is required before the lesson starts":           "Le véhicule doit être affecté avant le début de la leçon.",
	"candidate is required before the lesson starts":         "Le candidat doit être affecté avant le début de la leçon.",
}

// translateValidationMessage returns the French wording of a field message, or the message
// itself when no translation is known.
func translateValidationMessage(message string) string {
	if translated, ok := validationMessagesFR[message]; ok {
		return translated
	}
	return message
}

type errorResponse struct {
	ErrorCode            string            `json:"error_code,omitempty"`
	Message              string            `json:"message"`
	Errors               map[string]string `json:"errors,omitempty"`
	ConflictingSessionID string            `json:"conflicting_session_id,omitempty"`
}
