package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/board"
	"taskboard/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeSuccess(w, http.StatusOK, "ok", nil)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := s.service.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "Database unavailable", nil)
			return
		}
		writeSuccess(w, http.StatusOK, "ready", nil)
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/register" {
		s.handleRegister(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/login" {
		s.handleLogin(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/verify-otp" {
		s.handleVerifyOTP(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/resend-otp" {
		s.handleResendOTP(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		session := Session{}
		if token := bearerToken(r); token != "" {
			if parsed, err := s.service.SessionFromToken(r.Context(), token); err == nil {
				session = parsed
			}
		}
		_ = s.service.Logout(r.Context(), session)
		writeSuccess(w, http.StatusOK, "Logged out", nil)
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/profile" {
		payload, err := s.service.Profile(r.Context(), session)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Profile loaded", map[string]any{"user": payload})
		return
	}

	if r.Method == http.MethodPut && r.URL.Path == "/api/profile/avatar" {
		body, err := io.ReadAll(io.LimitReader(r.Body, 5<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "Could not read avatar body", nil)
			return
		}
		payload, err := s.service.UploadAvatar(r.Context(), session, r.Header.Get("Content-Type"), body)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Avatar updated", payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		limit := 20
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer", nil)
				return
			}
			limit = parsed
		}
		payload, err := s.service.Search(r.Context(), session, q, limit)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Search complete", payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/projects" {
		payload, err := s.service.ListProjects(r.Context(), session)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Projects loaded", payload)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/projects" {
		var body CreateProjectInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateProject(r.Context(), session, body)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeSuccess(w, http.StatusCreated, "Project created", payload)
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "projects" {
		s.handleProject(w, r, session, parts[2])
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "projects" && parts[3] == "columns" {
		s.handleColumns(w, r, session, parts[2])
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "projects" && parts[3] == "invite" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		s.handleInvite(w, r, session, parts[2])
		return
	}

	if len(parts) == 5 && parts[0] == "api" && parts[1] == "projects" && parts[3] == "invite" && parts[4] == "accept" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		payload, err := s.service.AcceptInvite(r.Context(), session, parts[2])
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Invite accepted", payload)
		return
	}

	if len(parts) == 5 && parts[0] == "api" && parts[1] == "projects" && parts[3] == "members" && parts[4] == "remove" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body struct {
			Emails []string `json:"emails"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.RemoveMembers(r.Context(), session, parts[2], body.Emails)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Members updated", payload)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.Register(r.Context(), body.Email, body.Password, body.DisplayName)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Verification code sent", payload)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Verification code sent", payload)
}

func (s *HTTPServer) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.VerifyOTP(r.Context(), body.Email, body.Code)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Authenticated", map[string]any{
		"token": session.Token,
		"user": map[string]any{
			"id":          session.UserID,
			"email":       session.Email,
			"displayName": session.UserName,
		},
		"expiresAt": session.ExpiresAt.Unix(),
	})
}

func (s *HTTPServer) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.ResendOTP(r.Context(), body.Email)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Verification code sent", payload)
}

func (s *HTTPServer) handleProject(w http.ResponseWriter, r *http.Request, session Session, projectID string) {
	if r.Method == http.MethodGet {
		payload, err := s.service.GetProject(r.Context(), session, projectID)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Project loaded", payload)
		return
	}

	if r.Method == http.MethodPut {
		var body UpdateProjectInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateProject(r.Context(), session, projectID, body)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Project updated", payload)
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleColumns(w http.ResponseWriter, r *http.Request, session Session, projectID string) {
	if r.Method == http.MethodPost {
		var body board.ColumnInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateColumn(r.Context(), session, projectID, body)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeSuccess(w, http.StatusCreated, "Column created", payload)
		return
	}

	if r.Method == http.MethodPut {
		var body UpdateColumnInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateColumn(r.Context(), session, projectID, body)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Column updated", payload)
		return
	}

	if r.Method == http.MethodDelete {
		var body struct {
			Name         string `json:"name"`
			TargetColumn string `json:"targetColumn"`
		}
		_ = decodeBody(r, &body)
		if body.Name == "" {
			body.Name = strings.TrimSpace(r.URL.Query().Get("name"))
		}
		if body.TargetColumn == "" {
			body.TargetColumn = strings.TrimSpace(r.URL.Query().Get("targetColumn"))
		}
		payload, err := s.service.DeleteColumn(r.Context(), session, projectID, body.Name, body.TargetColumn)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Column deleted", payload)
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

// handleInvite accepts either bare email strings or {email} objects in the
// members array.
func (s *HTTPServer) handleInvite(w http.ResponseWriter, r *http.Request, session Session, projectID string) {
	var body struct {
		Members []json.RawMessage `json:"members"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	entries := make([]InviteEntry, 0, len(body.Members))
	for _, raw := range body.Members {
		var email string
		if err := json.Unmarshal(raw, &email); err == nil {
			entries = append(entries, InviteEntry{Email: email})
			continue
		}
		var entry InviteEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "members entries must be emails or {email} objects", nil)
			return
		}
		entries = append(entries, entry)
	}

	payload, err := s.service.InviteMembers(r.Context(), session, projectID, entries)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Invites processed", payload)
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

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
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

// writeSuccess wraps a payload in the response envelope. The success flag
// mirrors the status code: true exactly when the status is below 400.
func writeSuccess(w http.ResponseWriter, status int, message string, extra map[string]any) {
	response := map[string]any{
		"success": status < 400,
		"message": message,
	}
	for key, value := range extra {
		response[key] = value
	}
	writeJSON(w, status, response)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"success": false,
		"message": message,
		"code":    code,
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
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
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

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, store.ErrVersionConflict) {
		return http.StatusConflict, "CONFLICT", "Project was modified concurrently", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
