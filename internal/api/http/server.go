// Package httpapi is the thin HTTP layer over the mutation engine. It
// delegates to the engine service without embedding rule logic so transport
// concerns stay isolated.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/service"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/storage"
)

// Server hosts the engine's public HTTP surface.
type Server struct {
	engine         *service.Engine
	operatorSecret []byte
}

// New builds the HTTP server over an engine. The operator secret signs the
// bearer tokens required by mode changes and audit clearing; when empty those
// endpoints refuse all callers.
func New(engine *service.Engine, operatorSecret string) *Server {
	return &Server{engine: engine, operatorSecret: []byte(operatorSecret)}
}

// Router returns the mounted route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/entities", func(r chi.Router) {
		r.Post("/", s.handleCreateEntity)
		r.Route("/{entityID}", func(r chi.Router) {
			r.Get("/", s.handleGetEntity)
			r.Get("/domains", s.handleGetDomains)
			r.Get("/subtrees", s.handleGetSubtrees)
			r.Get("/integrity", s.handleIntegrity)
			r.Get("/audit", s.handleGetAudit)
			r.Post("/mutations/validate", s.handleValidateMutation)
			r.Post("/mutations", s.handleApplyMutation)

			r.Group(func(r chi.Router) {
				r.Use(s.requireOperator)
				r.Put("/mode", s.handleSetMode)
				r.Delete("/audit", s.handleClearAudit)
			})
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireOperator gates privileged endpoints behind an operator bearer token.
func (s *Server) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.operatorSecret) == 0 {
			writeError(w, http.StatusForbidden, "OPERATOR_DISABLED", "operator endpoints are not configured")
			return
		}
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "TOKEN_REQUIRED", "operator bearer token is required")
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.operatorSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			log.Printf("operator token rejected path=%s: %v", r.URL.Path, err)
			writeError(w, http.StatusUnauthorized, "TOKEN_INVALID", "operator token is invalid")
			return
		}
		if role, _ := claims["role"].(string); role != "operator" {
			writeError(w, http.StatusForbidden, "OPERATOR_ROLE_REQUIRED", "token lacks the operator role")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OperatorToken mints a short-lived operator token. Exposed for tooling and
// tests; production operators mint tokens out of band with the same secret.
func OperatorToken(secret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"role": "operator",
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeServiceError maps engine errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "ENTITY_NOT_FOUND", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}
