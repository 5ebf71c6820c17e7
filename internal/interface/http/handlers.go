package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/agepath/placement-engine/internal/application/command"
	"github.com/agepath/placement-engine/internal/application/query"
	"github.com/agepath/placement-engine/internal/domain/assessment"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if status.Version == "" {
		status.Version = s.config.Version
	}
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSONError(w, r, http.StatusServiceUnavailable, "not_ready", status.Message, status.Checks)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListLevels handles GET /api/v1/levels
func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	if s.deps.Placements == nil {
		notConfigured(w, r)
		return
	}

	actor := actorFromRequest(r)
	if err := actor.Validate("level", "List"); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	levels, err := s.deps.Placements.ListLevels(r.Context(), getQueryParamBool(r, "includeInactive"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSONList(w, r, levels, len(levels))
}

// handleCreateLevel handles POST /api/v1/levels
func (s *Server) handleCreateLevel(w http.ResponseWriter, r *http.Request) {
	if s.deps.Levels == nil {
		notConfigured(w, r)
		return
	}

	var cmd command.CreateLevelCommand
	if !decodeBody(w, r, &cmd) {
		return
	}
	cmd.Actor = actorFromRequest(r)

	level, err := s.deps.Levels.Create(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, query.NewLevelDTO(level))
}

// handleUpdateLevel handles PATCH /api/v1/levels/{id}
func (s *Server) handleUpdateLevel(w http.ResponseWriter, r *http.Request) {
	if s.deps.Levels == nil {
		notConfigured(w, r)
		return
	}

	var cmd command.SetLevelActiveCommand
	if !decodeBody(w, r, &cmd) {
		return
	}
	cmd.Actor = actorFromRequest(r)
	cmd.LevelID = r.PathValue("id")

	level, err := s.deps.Levels.SetActive(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, query.NewLevelDTO(level))
}

// ══════════════════════════════════════════════════════════════════════════════
// PLACEMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleCreatePlacement handles POST /api/v1/placements
func (s *Server) handleCreatePlacement(w http.ResponseWriter, r *http.Request) {
	if s.deps.CreatePlacement == nil || s.deps.Placements == nil {
		notConfigured(w, r)
		return
	}

	var cmd command.CreatePlacementCommand
	if !decodeBody(w, r, &cmd) {
		return
	}
	cmd.Actor = actorFromRequest(r)

	res, err := s.deps.CreatePlacement.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writePlacement(w, r, http.StatusCreated, res.Placement)
}

// handleGetPlacement handles GET /api/v1/placements/{id}
func (s *Server) handleGetPlacement(w http.ResponseWriter, r *http.Request) {
	if s.deps.Placements == nil {
		notConfigured(w, r)
		return
	}

	detail, err := s.deps.Placements.GetPlacement(r.Context(), actorFromRequest(r), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, detail)
}

// overrideResponse is the body of a successful PATCH on a placement.
type overrideResponse struct {
	Placement    *query.PlacementDTO `json:"placement"`
	LevelChanged bool                `json:"levelChanged"`
}

// handleOverridePlacement handles PATCH /api/v1/placements/{id}
func (s *Server) handleOverridePlacement(w http.ResponseWriter, r *http.Request) {
	if s.deps.ApplyOverride == nil || s.deps.Placements == nil {
		notConfigured(w, r)
		return
	}

	var cmd command.ApplyManualOverrideCommand
	if !decodeBody(w, r, &cmd) {
		return
	}
	cmd.Actor = actorFromRequest(r)
	cmd.PlacementID = r.PathValue("id")

	res, err := s.deps.ApplyOverride.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	dto, err := s.deps.Placements.Describe(r.Context(), res.Placement)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, overrideResponse{Placement: dto, LevelChanged: res.LevelChanged})
}

// handleArchivePlacement handles POST /api/v1/placements/{id}/archive
func (s *Server) handleArchivePlacement(w http.ResponseWriter, r *http.Request) {
	if s.deps.ArchivePlacement == nil || s.deps.Placements == nil {
		notConfigured(w, r)
		return
	}

	var cmd command.ArchivePlacementCommand
	if !decodeBody(w, r, &cmd) {
		return
	}
	cmd.Actor = actorFromRequest(r)
	cmd.PlacementID = r.PathValue("id")

	p, err := s.deps.ArchivePlacement.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writePlacement(w, r, http.StatusOK, p)
}

// handlePlacementHistory handles GET /api/v1/placements/{id}/history
func (s *Server) handlePlacementHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Placements == nil {
		notConfigured(w, r)
		return
	}

	entries, err := s.deps.Placements.GetPlacementHistory(r.Context(), actorFromRequest(r), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSONList(w, r, entries, len(entries))
}

// handleStudentPlacements handles GET /api/v1/students/{id}/placements
func (s *Server) handleStudentPlacements(w http.ResponseWriter, r *http.Request) {
	if s.deps.Placements == nil {
		notConfigured(w, r)
		return
	}

	placements, err := s.deps.Placements.ListStudentPlacements(r.Context(), actorFromRequest(r),
		r.PathValue("id"), getQueryParamBool(r, "includeArchived"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSONList(w, r, placements, len(placements))
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON COMPLETION HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// completionRequest is the body of PUT .../lessons/{lessonId}/completion.
type completionRequest struct {
	Status string   `json:"status"`
	Score  *float64 `json:"score"`
}

// completionResponse is returned after a completion write.
type completionResponse struct {
	Completion  *query.CompletionDTO `json:"completion"`
	Placement   *query.PlacementDTO  `json:"placement"`
	BecameReady bool                 `json:"becameReady"`
}

// handleRecordCompletion handles PUT /api/v1/placements/{id}/lessons/{lessonId}/completion
func (s *Server) handleRecordCompletion(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordCompletion == nil || s.deps.Placements == nil {
		notConfigured(w, r)
		return
	}

	var body completionRequest
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.deps.RecordCompletion.Handle(r.Context(), command.RecordLessonCompletionCommand{
		Actor:       actorFromRequest(r),
		PlacementID: r.PathValue("id"),
		LessonID:    r.PathValue("lessonId"),
		Status:      body.Status,
		Score:       body.Score,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	dto, err := s.deps.Placements.Describe(r.Context(), res.Placement)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, completionResponse{
		Completion:  query.NewCompletionDTO(res.Completion),
		Placement:   dto,
		BecameReady: res.BecameReady,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT GRID HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleAssessmentGrid handles GET /api/v1/assessment-grid
func (s *Server) handleAssessmentGrid(w http.ResponseWriter, r *http.Request) {
	if s.deps.Grid == nil {
		notConfigured(w, r)
		return
	}

	params := r.URL.Query()
	res, err := s.deps.Grid.Handle(r.Context(), query.BuildGridQuery{
		Actor:    actorFromRequest(r),
		TenantID: params.Get("tenantId"),
		ClassID:  params.Get("classId"),
		Subject:  params.Get("subject"),
		AgeBand:  params.Get("ageBand"),
		Search:   params.Get("search"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSONList(w, r, res, len(res.Rows))
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) writePlacement(w http.ResponseWriter, r *http.Request, status int, p *assessment.Placement) {
	dto, err := s.deps.Placements.Describe(r.Context(), p)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, status, dto)
}

// decodeBody reads a JSON body into dst. An empty body leaves dst unchanged.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSONError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large", nil)
		return false
	}

	writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "Request body is not valid JSON", err.Error())
	return false
}

func notConfigured(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Handler not configured", nil)
}
