// Package http exposes the driving school scheduler over a JSON API routed with gorilla/mux.
//
// GET /healthz is public. Every other endpoint lives under /api/v1 and requires the back
// office key in the X-API-Key header (or as a bearer token):
//   - sessions: GET /sessions (filters instructor_id, candidate_id, vehicle_id, kind,
//     status, from, to), POST /sessions/theory, POST /sessions/practical,
//     GET /sessions/{id}, PUT /sessions/{id}/schedule, PUT /sessions/{id}/status,
//     POST /sessions/{id}/cancel, POST /sessions/{id}/complete and POST /series/theory.
//   - rosters: POST /sessions/{id}/enrollments, DELETE /sessions/{id}/enrollments/{candidate},
//     PUT /sessions/{id}/assignment and DELETE /sessions/{id}/assignment/{candidate}.
//   - attendance: PUT /sessions/{id}/presence/{candidate}, GET /presence and
//     GET /candidates/{id}/presence-count.
//   - progression: GET /candidates/{id}/progression.
//   - calendars: GET /availability, GET /instructors/{id}/agenda and
//     GET /instructors/{id}/free-slots.
//   - directory: instructors with their specialties, candidates with their exams, and
//     vehicles. PUT /exams/{id}/outcome grades an attempt.
//
// Errors carry a French message, a stable error_code and, for validation failures, a
// field map. Slot conflicts also name the blocking session.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
