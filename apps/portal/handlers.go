package main

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gramsetu/scheme-portal/pkg/auth"
	"github.com/gramsetu/scheme-portal/pkg/messaging"
	"github.com/gramsetu/scheme-portal/pkg/model"
	"github.com/gramsetu/scheme-portal/pkg/presence"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

type LoginRequest struct {
	UserID string     `json:"user_id"`
	Name   string     `json:"name"`
	Role   model.Role `json:"role"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// LoginHandler is the development credential issuer. Production deployments
// point the portal at the central auth service instead.
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Role == "" {
		http.Error(w, "user_id and role are required", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		req.Name = req.UserID
	}

	token, err := auth.GenerateToken(req.UserID, req.Name, req.Role)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, LoginResponse{Token: token})
}

func ConversationsHandler(orch *messaging.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		convs, err := orch.ListConversations(r.Context(), claims.Identity())
		if err != nil {
			writeError(w, err)
			return
		}
		if convs == nil {
			convs = []model.ConversationSummary{}
		}
		writeJSON(w, convs)
	}
}

type InitiateRequest struct {
	ProjectID     string `json:"project_id"`
	CounterpartID string `json:"counterpart_id"`
	OpeningBody   string `json:"opening_body,omitempty"`
}

func InitiateHandler(orch *messaging.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		claims, ok := claimsFrom(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		var req InitiateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		summary, err := orch.InitiateOrResume(r.Context(), claims.Identity(), req.ProjectID, req.CounterpartID, req.OpeningBody)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, summary)
	}
}

func HistoryHandler(orch *messaging.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		key := r.URL.Query().Get("key")
		if key == "" {
			http.Error(w, "key is required", http.StatusBadRequest)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)

		msgs, err := orch.GetHistory(r.Context(), claims.Identity(), key, limit, after)
		if err != nil {
			writeError(w, err)
			return
		}
		if msgs == nil {
			msgs = []model.Message{}
		}
		writeJSON(w, msgs)
	}
}

type SendRequest struct {
	ProjectID  string         `json:"project_id"`
	ReceiverID string         `json:"receiver_id"`
	Body       string         `json:"body"`
	Priority   model.Priority `json:"priority,omitempty"`
}

func SendHandler(orch *messaging.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		claims, ok := claimsFrom(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		var req SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		m, err := orch.Send(r.Context(), claims.Identity(), messaging.SendInput{
			ProjectID:  req.ProjectID,
			ReceiverID: req.ReceiverID,
			Body:       req.Body,
			Priority:   req.Priority,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, m)
	}
}

type ReadRequest struct {
	Key string `json:"key"`
}

type ReadResponse struct {
	Updated int `json:"updated"`
}

func ReadHandler(orch *messaging.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		claims, ok := claimsFrom(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		var req ReadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		updated, err := orch.MarkRead(r.Context(), claims.Identity(), req.Key)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, ReadResponse{Updated: updated})
	}
}

func UnreadCountHandler(orch *messaging.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		n, err := orch.UnreadCount(r.Context(), claims.Identity())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]int64{"unread": n})
	}
}

// PresenceHandler serves liveness: /presence/{user_id} answers whether one
// user holds a live connection, bare /presence/ lists everyone who does.
func PresenceHandler(registry *presence.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !model.EligibleForMessaging(claims.Role) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		userID := strings.TrimPrefix(r.URL.Path, "/presence/")
		if strings.Contains(userID, "/") {
			http.Error(w, "Invalid path", http.StatusBadRequest)
			return
		}
		if userID == "" {
			online := registry.Snapshot()
			sort.Strings(online)
			writeJSON(w, map[string]any{"online_users": online})
			return
		}
		writeJSON(w, map[string]any{
			"user_id": userID,
			"online":  registry.IsOnline(userID),
		})
	}
}
