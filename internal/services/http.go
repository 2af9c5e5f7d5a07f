package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dpup/prefab/logging"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"

	"github.com/dpup/saferoute/server/internal/metrics"
	"github.com/dpup/saferoute/server/internal/planner"
)

// maxBodyBytes bounds plan request bodies
const maxBodyBytes = 1 << 20

// kmlContentType is the registered media type for KML
const kmlContentType = "application/vnd.google-earth.kml+xml"

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Handler returns the HTTP surface of the service
func (s *PlanningService) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /v1/routes/plan", metrics.Instrument("/v1/routes/plan", http.HandlerFunc(s.handlePlan)))
	mux.Handle("GET /v1/routes/plan", metrics.Instrument("/v1/routes/plan", http.HandlerFunc(s.handlePlan)))
	mux.Handle("GET /v1/routes/plan.kml", metrics.Instrument("/v1/routes/plan.kml", http.HandlerFunc(s.handlePlanKML)))
	mux.Handle("GET /v1/conditions", metrics.Instrument("/v1/conditions", http.HandlerFunc(s.handleConditions)))
	mux.Handle("GET /v1/stats", metrics.Instrument("/v1/stats", http.HandlerFunc(s.handleStats)))
	mux.Handle("GET /v1/cameras/{id}", metrics.Instrument("/v1/cameras/{id}", http.HandlerFunc(s.handleCamera)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

func (s *PlanningService) handlePlan(w http.ResponseWriter, r *http.Request) {
	req, err := parsePlanRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := s.Plan(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *PlanningService) handlePlanKML(w http.ResponseWriter, r *http.Request) {
	req, err := parsePlanRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := s.ExportKML(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", kmlContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="route-plan.kml"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *PlanningService) handleConditions(w http.ResponseWriter, r *http.Request) {
	resp, err := s.Conditions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *PlanningService) handleStats(w http.ResponseWriter, r *http.Request) {
	resp, err := s.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *PlanningService) handleCamera(w http.ResponseWriter, r *http.Request) {
	resp, err := s.Camera(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *PlanningService) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Health(r.Context()))
}

// parsePlanRequest reads a JSON body for POST and query parameters otherwise.
// advisory=true in the query applies to both.
func parsePlanRequest(r *http.Request) (PlanRequest, error) {
	var req PlanRequest
	query := r.URL.Query()

	if r.Method == http.MethodPost {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return req, &planner.ValidationError{Field: "body", Reason: "unreadable request body", Err: err}
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return req, &planner.ValidationError{Field: "body", Reason: "malformed JSON", Err: err}
		}
	} else {
		req.Origin = query.Get("origin")
		req.Destination = query.Get("destination")
		if raw := query.Get("alternatives"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return req, &planner.ValidationError{Field: "alternatives", Reason: fmt.Sprintf("not an integer: %q", raw), Err: err}
			}
			req.Alternatives = n
		}
	}

	if raw := query.Get("advisory"); raw != "" {
		on, err := strconv.ParseBool(raw)
		if err != nil {
			return req, &planner.ValidationError{Field: "advisory", Reason: fmt.Sprintf("not a boolean: %q", raw), Err: err}
		}
		req.Advisory = req.Advisory || on
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := codeFor(err)
	status := runtime.HTTPStatusFromCode(code)

	detail := err.Error()
	if code == codes.Internal {
		logging.Errorw(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		detail = "internal error"
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    problemTitle(err, status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}

func problemTitle(err error, status int) string {
	var (
		geocode  *planner.GeocodeError
		noRoute  *planner.NoRouteError
		snapshot *planner.SnapshotUnavailableError
	)
	switch {
	case errors.As(err, &geocode):
		return "Location not found"
	case errors.As(err, &noRoute):
		return "No route"
	case errors.Is(err, ErrCameraNotFound):
		return "Camera not found"
	case errors.As(err, &snapshot):
		return "Camera data unavailable"
	default:
		return http.StatusText(status)
	}
}
