package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/access"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/audit"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/mutation"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/policy"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/service"
)

// createEntityRequest creates a fresh entity with initial base fields.
type createEntityRequest struct {
	ID         string         `json:"id"`
	BaseFields map[string]any `json:"base_fields"`
}

// mutationRequest is the wire form of a mutation attempt. Component adds name
// catalog items; the server instantiates the component so clients cannot
// forge grants or prerequisites.
type mutationRequest struct {
	Source              string      `json:"source"`
	AcknowledgeWarnings bool        `json:"acknowledge_warnings"`
	Ops                 []requestOp `json:"ops"`
}

type requestOp struct {
	Kind        string `json:"kind"`
	Path        string `json:"path,omitempty"`
	Value       any    `json:"value,omitempty"`
	ItemID      string `json:"item_id,omitempty"`
	Provenance  string `json:"provenance,omitempty"`
	ComponentID string `json:"component_id,omitempty"`
}

type verdictResponse struct {
	Outcome    string          `json:"outcome"`
	Reason     string          `json:"reason,omitempty"`
	Severity   string          `json:"severity"`
	Violations []violationView `json:"violations,omitempty"`
}

type violationView struct {
	ComponentID string `json:"component_id"`
	Kind        string `json:"kind"`
	Severity    string `json:"severity"`
	Detail      string `json:"detail"`
}

type applyResponse struct {
	Verdict verdictResponse `json:"verdict"`
	Applied bool            `json:"applied"`
	Entity  *entityView     `json:"entity,omitempty"`
}

type entityView struct {
	ID         string             `json:"id"`
	Mode       string             `json:"mode"`
	Strict     bool               `json:"strict"`
	BaseFields map[string]any     `json:"base_fields"`
	Components []entity.Component `json:"components"`
	Derived    map[string]int     `json:"derived"`
	DerivedAt  int64              `json:"derived_at"`
}

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var req createEntityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusUnprocessableEntity, "ENTITY_ID_REQUIRED", "entity id is required")
		return
	}
	created, err := s.engine.CreateEntity(r.Context(), req.ID, req.BaseFields)
	if err != nil {
		var invalid *mutation.ValidationError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusUnprocessableEntity, invalid.Code, invalid.Message)
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewEntity(created))
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	target, err := s.engine.GetEntity(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewEntity(target))
}

func (s *Server) handleValidateMutation(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	m, ok := s.decodeMutation(w, r, entityID)
	if !ok {
		return
	}
	verdict, err := s.engine.ValidateMutation(r.Context(), entityID, m)
	if err != nil {
		var invalid *mutation.ValidationError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusUnprocessableEntity, invalid.Code, invalid.Message)
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewVerdict(verdict))
}

func (s *Server) handleApplyMutation(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	m, ok := s.decodeMutation(w, r, entityID)
	if !ok {
		return
	}
	updated, verdict, err := s.engine.ApplyMutation(r.Context(), entityID, m)
	if err != nil {
		var blocked *service.PolicyBlockedError
		if errors.As(err, &blocked) {
			writeJSON(w, http.StatusConflict, applyResponse{
				Verdict: viewVerdict(blocked.Verdict),
				Applied: false,
			})
			return
		}
		var invalid *mutation.ValidationError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusUnprocessableEntity, invalid.Code, invalid.Message)
			return
		}
		writeServiceError(w, err)
		return
	}

	// A WARN without acknowledgement returns the verdict but applies nothing.
	applied := verdict.Outcome != policy.OutcomeWarn || m.AcknowledgeWarnings
	resp := applyResponse{Verdict: viewVerdict(verdict), Applied: applied}
	if applied {
		resp.Entity = viewEntity(updated)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetDomains(w http.ResponseWriter, r *http.Request) {
	domains, err := s.engine.GetAllowedDomains(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if domains == nil {
		domains = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"domains": domains})
}

func (s *Server) handleGetSubtrees(w http.ResponseWriter, r *http.Request) {
	slot := access.SlotContext{Tier: r.URL.Query().Get("tier")}
	subtrees, err := s.engine.GetAllowedSubtrees(r.Context(), chi.URLParam(r, "entityID"), slot)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if subtrees == nil {
		subtrees = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"subtrees": subtrees})
}

func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	violations, err := s.engine.SweepIntegrity(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	views := make([]violationView, 0, len(violations))
	for _, v := range violations {
		views = append(views, violationView{
			ComponentID: v.ComponentID,
			Kind:        string(v.Kind),
			Severity:    v.Severity.String(),
			Detail:      v.Detail,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"violations": views})
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	filter := audit.Filter{Kind: audit.Kind(r.URL.Query().Get("kind"))}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusUnprocessableEntity, "LIMIT_INVALID", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "SINCE_INVALID", "since must be RFC 3339")
			return
		}
		filter.Since = since
	}
	if raw := r.URL.Query().Get("until"); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "UNTIL_INVALID", "until must be RFC 3339")
			return
		}
		filter.Until = until
	}
	entries := s.engine.GetAuditTrail(chi.URLParam(r, "entityID"), filter)
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type setModeRequest struct {
	Mode   string `json:"mode"`
	Strict bool   `json:"strict"`
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req setModeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	mode, ok := entity.ParseMode(req.Mode)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "MODE_INVALID", "mode must be normal, override, or freebuild")
		return
	}
	updated, err := s.engine.SetOperatingMode(r.Context(), chi.URLParam(r, "entityID"), mode, req.Strict)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewEntity(updated))
}

func (s *Server) handleClearAudit(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ClearAuditTrail(r.Context(), chi.URLParam(r, "entityID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeMutation validates the request body against the embedded schema and
// converts wire ops to engine ops, instantiating catalog components.
func (s *Server) decodeMutation(w http.ResponseWriter, r *http.Request, entityID string) (mutation.Mutation, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BODY_UNREADABLE", "request body could not be read")
		return mutation.Mutation{}, false
	}
	if err := validateMutationBody(body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "SCHEMA_INVALID", err.Error())
		return mutation.Mutation{}, false
	}

	var req mutationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BODY_INVALID", "request body is not valid JSON")
		return mutation.Mutation{}, false
	}

	m := mutation.Mutation{
		ID:                  uuid.NewString(),
		EntityID:            entityID,
		Source:              req.Source,
		AcknowledgeWarnings: req.AcknowledgeWarnings,
	}
	for _, op := range req.Ops {
		switch mutation.OpKind(op.Kind) {
		case mutation.OpComponentAdd:
			provenance := entity.Provenance(op.Provenance)
			if provenance == "" {
				provenance = entity.ProvenanceChosen
			}
			component, err := s.engine.InstantiateComponent(op.ItemID, provenance)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "ITEM_UNKNOWN", err.Error())
				return mutation.Mutation{}, false
			}
			m.Ops = append(m.Ops, mutation.Op{Kind: mutation.OpComponentAdd, Component: &component})
		case mutation.OpComponentRemove:
			m.Ops = append(m.Ops, mutation.Op{Kind: mutation.OpComponentRemove, ComponentID: op.ComponentID})
		default:
			// Unknown kinds pass through so preflight reports them uniformly.
			m.Ops = append(m.Ops, mutation.Op{Kind: mutation.OpKind(op.Kind), Path: op.Path, Value: op.Value})
		}
	}
	return m, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "BODY_INVALID", "request body is not valid JSON")
		return false
	}
	return true
}

func viewEntity(e *entity.Entity) *entityView {
	if e == nil {
		return nil
	}
	components := e.Components
	if components == nil {
		components = []entity.Component{}
	}
	derived := e.Derived.Fields
	if derived == nil {
		derived = map[string]int{}
	}
	return &entityView{
		ID:         e.ID,
		Mode:       string(e.Mode),
		Strict:     e.Strict,
		BaseFields: e.BaseFields,
		Components: components,
		Derived:    derived,
		DerivedAt:  e.Derived.ComputedAt,
	}
}

func viewVerdict(v mutation.Verdict) verdictResponse {
	resp := verdictResponse{
		Outcome:  string(v.Outcome),
		Reason:   v.Reason,
		Severity: v.Severity.String(),
	}
	for _, violation := range v.Violations {
		resp.Violations = append(resp.Violations, violationView{
			ComponentID: violation.ComponentID,
			Kind:        string(violation.Kind),
			Severity:    violation.Severity.String(),
			Detail:      violation.Detail,
		})
	}
	return resp
}
