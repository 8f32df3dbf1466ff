package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/hankai/housecup/internal/app"
	"github.com/hankai/housecup/internal/metrics"
	"github.com/hankai/housecup/internal/models"
	"github.com/hankai/housecup/internal/quota"
)

type PointsHandler struct {
	service *app.Service
}

func NewPointsHandler(service *app.Service) *PointsHandler {
	return &PointsHandler{
		service: service,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *PointsHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, session, err := h.service.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, app.ErrInvalidCredentials) {
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}
	if err != nil {
		logger.Error.Printf("Login failed for %s: %v", req.Username, err)
		http.Error(w, "Login failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"token":    token,
		"role":     session.Role,
		"username": session.Username,
		"house":    session.House,
	}); err != nil {
		logger.Debug.Printf("Error encoding login response: %v", err)
	}
}

func (h *PointsHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if !h.service.Sessions.Enabled() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
		return
	}

	token, err := h.bearerToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.Sessions.Destroy(r.Context(), token); err != nil {
		logger.Error.Printf("Failed to destroy session: %v", err)
		http.Error(w, "Logout failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *PointsHandler) HandleScoreboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Scoreboard()
	if err != nil {
		logger.Error.Printf("Failed to fetch scoreboard: %v", err)
		http.Error(w, "Failed to fetch scoreboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"houses": rows,
	}); err != nil {
		logger.Debug.Printf("Error encoding response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func (h *PointsHandler) HandleUpdates(w http.ResponseWriter, r *http.Request) {
	updates, err := h.service.UpdatesFeed()
	if err != nil {
		logger.Error.Printf("Failed to fetch updates: %v", err)
		http.Error(w, "Failed to fetch updates", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"updates": updates,
	}); err != nil {
		logger.Debug.Printf("Error encoding response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func (h *PointsHandler) HandleAdjustment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		duration := time.Since(start).Seconds()
		metrics.APIRequestDuration.WithLabelValues(
			r.URL.Path,
			r.Method,
			"200",
		).Observe(duration)
	}()

	actor, err := h.resolveSession(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := h.service.SubmitAdjustment(req, *actor)
	if err != nil {
		h.writeAdjustmentError(w, req, err)
		return
	}

	direction := "added"
	if entry.Delta < 0 {
		direction = "deducted"
	}
	metrics.AdjustmentsTotal.WithLabelValues(entry.House, direction).Inc()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"applied": entry,
	}); err != nil {
		logger.Debug.Printf("Error encoding response: %v", err)
	}
}

func (h *PointsHandler) HandleUndo(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveSession(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !actor.IsAdmin() {
		http.Error(w, "Admins only", http.StatusForbidden)
		return
	}

	entry, err := h.service.Undo()
	if errors.Is(err, app.ErrNothingToUndo) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "nothing_to_undo",
		})
		return
	}
	if err != nil {
		logger.Error.Printf("Undo failed: %v", err)
		http.Error(w, "Undo failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"undone": entry,
	}); err != nil {
		logger.Debug.Printf("Error encoding response: %v", err)
	}
}

func (h *PointsHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveSession(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !actor.IsAdmin() {
		http.Error(w, "Admins only", http.StatusForbidden)
		return
	}

	if err := h.service.Reset(); err != nil {
		logger.Error.Printf("Reset failed: %v", err)
		http.Error(w, "Reset failed", http.StatusInternalServerError)
		return
	}

	logger.Info.Printf("Scoreboard reset by %s", actor.Username)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *PointsHandler) writeAdjustmentError(w http.ResponseWriter, req models.AdjustmentRequest, err error) {
	switch {
	case errors.Is(err, app.ErrZeroDelta), errors.Is(err, app.ErrEmptyReason):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, app.ErrUnknownHouse):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, app.ErrOwnHouse):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, quota.ErrAddCapExceeded):
		metrics.QuotaRejectionsTotal.WithLabelValues("added").Inc()
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, quota.ErrDeductCapExceeded):
		metrics.QuotaRejectionsTotal.WithLabelValues("deducted").Inc()
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, quota.ErrActionCapExceeded):
		metrics.QuotaRejectionsTotal.WithLabelValues("actions").Inc()
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	default:
		logger.Error.Printf("Adjustment for %s failed: %v", req.House, err)
		http.Error(w, "Failed to apply adjustment", http.StatusInternalServerError)
	}
}

func (h *PointsHandler) bearerToken(r *http.Request) (string, error) {
	header := h.service.Config.Sessions.TokenHeader
	if header == "" {
		header = "Authorization"
	}

	authHeader := r.Header.Get(header)
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", app.ErrNoSession
	}
	return strings.TrimPrefix(authHeader, "Bearer "), nil
}

// resolveSession maps the request to an actor. With sessions enabled the
// bearer token is looked up in redis; otherwise identity comes from the
// configured headers, which keeps local setups usable without redis.
func (h *PointsHandler) resolveSession(r *http.Request) (*models.Session, error) {
	if h.service.Sessions.Enabled() {
		token, err := h.bearerToken(r)
		if err != nil {
			return nil, err
		}
		return h.service.Sessions.Resolve(r.Context(), token)
	}

	cfg := h.service.Config.Sessions
	role := models.Role(r.Header.Get(cfg.RoleHeader))
	if role != models.RoleAdmin && role != models.RoleTeacher {
		return nil, app.ErrNoSession
	}

	return &models.Session{
		Role:     role,
		Username: r.Header.Get(cfg.UserHeader),
		House:    r.Header.Get(cfg.HouseHeader),
	}, nil
}
