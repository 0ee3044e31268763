package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"demonboard/api/internal/auth"
	"demonboard/api/internal/authpw"
	"demonboard/api/internal/export"
	"demonboard/api/internal/list"
	"demonboard/api/internal/rbac"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	metrics    http.Handler
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		metrics:    promhttp.Handler(),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" {
		s.metrics.ServeHTTP(w, r)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleAuthSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleAuthSignIn(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "userName": session.UserName, "userId": session.UserID, "role": session.Role})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":        session.Token,
			"refreshToken": session.RefreshToken,
			"userName":     session.UserName,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		session := Session{}
		if token := bearerToken(r); token != "" {
			if parsed, err := s.service.SessionFromToken(r.Context(), token); err == nil {
				session = parsed
			}
		}
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), session, body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Public read routes
	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		filterType := strings.TrimSpace(r.URL.Query().Get("type"))
		filterList := strings.TrimSpace(r.URL.Query().Get("list"))
		limit, ok := queryInt(w, r, "limit", 20)
		if !ok {
			return
		}
		offset, ok := queryInt(w, r, "offset", 0)
		if !ok {
			return
		}
		payload, err := s.service.Search(r.Context(), q, filterType, filterList, limit, offset)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	parts := splitPath(r.URL.Path)

	if r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "api" && parts[1] == "lists" {
		payload, err := s.service.GetList(r.Context(), parts[2])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && len(parts) == 4 && parts[0] == "api" && parts[1] == "lists" && parts[3] == "history" {
		at, ok := historyInstant(w, r)
		if !ok {
			return
		}
		payload, err := s.service.GetHistory(r.Context(), parts[2], at)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && len(parts) == 4 && parts[0] == "api" && parts[1] == "lists" && parts[3] == "changelog" {
		limit, ok := queryInt(w, r, "limit", 50)
		if !ok {
			return
		}
		payload, err := s.service.GetChangelog(r.Context(), parts[2], limit)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "api" && parts[1] == "levels" {
		payload, err := s.service.GetLevelDetail(r.Context(), parts[2])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/layouts" {
		payload, err := s.service.ListLayouts(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "api" && parts[1] == "layouts" {
		payload, err := s.service.GetLayoutDetail(r.Context(), parts[2])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	// Records
	if r.Method == http.MethodPost && r.URL.Path == "/api/records" {
		if !s.service.Can(session.Role, rbac.ActionSubmit) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		var body struct {
			LevelID  string `json:"levelId"`
			Percent  int    `json:"percent"`
			VideoURL string `json:"videoUrl"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.SubmitRecord(r.Context(), session, body.LevelID, body.Percent, body.VideoURL)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/records/mine" {
		payload, err := s.service.MyRecords(r.Context(), session)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/mod/records" {
		if !s.service.Can(session.Role, rbac.ActionModerate) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		limit, ok := queryInt(w, r, "limit", 50)
		if !ok {
			return
		}
		payload, err := s.service.PendingRecords(r.Context(), limit)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPost && len(parts) == 5 && parts[0] == "api" && parts[1] == "mod" && parts[2] == "records" && parts[4] == "review" {
		if !s.service.Can(session.Role, rbac.ActionModerate) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		var body struct {
			Status string `json:"status"`
			Note   string `json:"note"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.ReviewRecord(r.Context(), session, parts[3], body.Status, body.Note)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	// Layout workshop
	if r.Method == http.MethodPost && r.URL.Path == "/api/layouts" {
		if !s.service.Can(session.Role, rbac.ActionSubmit) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		var body struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateLayout(r.Context(), session, body.Title, body.Description)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
		return
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "layouts" {
		layoutID := parts[2]
		switch r.Method {
		case http.MethodPut:
			var body struct {
				Title       string `json:"title"`
				Description string `json:"description"`
				Status      string `json:"status"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateLayout(r.Context(), session, layoutID, body.Title, body.Description, body.Status)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		case http.MethodDelete:
			if err := s.service.DeleteLayout(r.Context(), session, layoutID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	if r.Method == http.MethodPost && len(parts) == 4 && parts[0] == "api" && parts[1] == "layouts" && parts[3] == "parts" {
		var body struct {
			StartPercent int `json:"startPercent"`
			EndPercent   int `json:"endPercent"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.AddPart(r.Context(), session, parts[2], body.StartPercent, body.EndPercent)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "layouts" && parts[3] == "messages" {
		layoutID := parts[2]
		switch r.Method {
		case http.MethodGet:
			limit, ok := queryInt(w, r, "limit", 50)
			if !ok {
				return
			}
			payload, err := s.service.LayoutMessages(r.Context(), layoutID, limit)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		case http.MethodPost:
			var body struct {
				Body string `json:"body"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.PostMessage(r.Context(), session, layoutID, body.Body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
			return
		}
	}

	if r.Method == http.MethodPost && len(parts) == 4 && parts[0] == "api" && parts[1] == "parts" && parts[3] == "claim" {
		payload, err := s.service.ClaimPart(r.Context(), session, parts[2])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPut && len(parts) == 4 && parts[0] == "api" && parts[1] == "parts" && parts[3] == "status" {
		var body struct {
			Status string `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.SetPartStatus(r.Context(), session, parts[2], body.Status)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodDelete && len(parts) == 3 && parts[0] == "api" && parts[1] == "parts" {
		if err := s.service.DeletePart(r.Context(), session, parts[2]); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Friends
	if r.Method == http.MethodGet && r.URL.Path == "/api/friends" {
		payload, err := s.service.Friends(r.Context(), session)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/friends/requests" {
		payload, err := s.service.FriendRequests(r.Context(), session)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/friends/requests" {
		var body struct {
			ToUserID string `json:"toUserId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.SendFriendRequest(r.Context(), session, body.ToUserID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
		return
	}

	if r.Method == http.MethodPost && len(parts) == 5 && parts[0] == "api" && parts[1] == "friends" && parts[2] == "requests" && parts[4] == "answer" {
		var body struct {
			Accept bool `json:"accept"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.AnswerFriendRequest(r.Context(), session, parts[3], body.Accept)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodDelete && len(parts) == 3 && parts[0] == "api" && parts[1] == "friends" {
		if err := s.service.RemoveFriend(r.Context(), session, parts[2]); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Admin routes
	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "admin" {
		s.handleAdmin(w, r, session, parts)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// handleAdmin dispatches list mutation, export, and role management.
// List mutation is open to moderators and admins; role changes are admin only.
func (s *HTTPServer) handleAdmin(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if !s.service.Can(session.Role, rbac.ActionModerate) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return
	}

	if r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "levels" {
		var body LevelInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.InsertLevel(r.Context(), body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
		return
	}

	if r.Method == http.MethodPut && len(parts) == 5 && parts[2] == "levels" && parts[4] == "placement" {
		var body struct {
			Placement int `json:"placement"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.MoveLevel(r.Context(), parts[3], body.Placement)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPut && len(parts) == 4 && parts[2] == "levels" {
		var body struct {
			Name        string `json:"name"`
			Creator     string `json:"creator"`
			Verifier    string `json:"verifier"`
			VideoURL    string `json:"videoUrl"`
			Description string `json:"description"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.EditLevel(r.Context(), parts[3], body.Name, body.Creator, body.Verifier, body.VideoURL, body.Description)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodDelete && len(parts) == 4 && parts[2] == "levels" {
		if err := s.service.RemoveLevel(r.Context(), parts[3]); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && len(parts) == 5 && parts[2] == "lists" && parts[4] == "export.pdf" {
		var at *time.Time
		if r.URL.Query().Get("date") != "" || r.URL.Query().Get("at") != "" {
			parsed, ok := historyInstant(w, r)
			if !ok {
				return
			}
			at = &parsed
		}
		result, err := s.service.ExportList(r.Context(), parts[3], at)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Disposition", "attachment; filename=\""+result.Filename+"\"")
		w.Header().Set("Content-Type", result.MimeType)
		w.Write(result.Data)
		return
	}

	if r.Method == http.MethodPut && len(parts) == 5 && parts[2] == "users" && parts[4] == "role" {
		if !s.service.Can(session.Role, rbac.ActionAdmin) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		var body struct {
			Role string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.SetUserRole(r.Context(), parts[3], body.Role)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// Auth handlers for email/password authentication

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	authSvc := s.service.AuthPasswordService()
	if authSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
		return
	}

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	user, err := authSvc.SignUp(r.Context(), authpw.SignUpRequest{
		Email:    body.Email,
		Password: body.Password,
		Name:     body.Name,
	})
	if err != nil {
		if err.Error() == "email already registered" || err.Error() == "name already taken" {
			writeError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
			return
		}
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"userId": user.ID,
		"name":   user.Name,
		"role":   user.Role,
	})
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	authSvc := s.service.AuthPasswordService()
	if authSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
		return
	}

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	user, err := authSvc.SignIn(r.Context(), authpw.SignInRequest{
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		return
	}

	session, err := s.service.CreateSession(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SESSION_FAILED", "Failed to create session", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":  session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"userName":     session.UserName,
		"role":         session.Role,
		"expiresAt":    session.ExpiresAt.Unix(),
	})
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// queryInt parses an integer query parameter, writing a validation error
// and returning ok=false when it is malformed.
func queryInt(w http.ResponseWriter, r *http.Request, name string, fallback int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", name+" must be an integer", nil)
		return 0, false
	}
	return parsed, true
}

// historyInstant resolves the ?date=YYYY-MM-DD (end of that UTC day) or
// ?at=RFC3339 query parameter for history and export routes.
func historyInstant(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	if raw := strings.TrimSpace(r.URL.Query().Get("at")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "at must be an RFC 3339 timestamp", nil)
			return time.Time{}, false
		}
		return parsed, true
	}
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "date is required", nil)
		return time.Time{}, false
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "date must be YYYY-MM-DD", nil)
		return time.Time{}, false
	}
	// The list as the day ended.
	return parsed.Add(24*time.Hour - time.Nanosecond), true
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, list.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Level not found", nil
	}
	if errors.Is(err, list.ErrConflict) {
		return http.StatusConflict, "CONFLICT", "Level already ranked", nil
	}
	if errors.Is(err, list.ErrInvalidPlacement) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Placement out of range", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF rendering is not available", nil
	}
	if errors.Is(err, export.ErrContentUnavailable) {
		return http.StatusServiceUnavailable, "UNAVAILABLE", "List content unavailable", nil
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, "UNAVAILABLE", "Store unreachable", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
