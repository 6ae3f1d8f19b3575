// Package api exposes the gateway over HTTP for the chat widget. Handlers
// validate the wire payloads, delegate to the gateway, and map its error
// taxonomy to status codes. Upstream detail is logged, never echoed to the
// visitor.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/mail"

	"github.com/siteassist/gateway/gateway"
	"github.com/siteassist/gateway/persist"
	"github.com/siteassist/gateway/provider"
)

// Server handles the widget's HTTP surface.
type Server struct {
	gateway *gateway.Gateway
	logger  *slog.Logger
}

// NewServer creates a Server over the given gateway. A nil logger falls back
// to slog.Default.
func NewServer(g *gateway.Gateway, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{gateway: g, logger: logger}
}

// Routes returns the server's route table.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat", s.handleChat)
	mux.HandleFunc("POST /v1/verify-order", s.handleVerifyOrder)
	mux.HandleFunc("POST /v1/lead", s.handleLead)
	mux.HandleFunc("POST /v1/admin/test-connection", s.handleTestConnection)
	return mux
}

type chatPayload struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type chatReply struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	result, err := s.gateway.Chat(r.Context(), gateway.ChatRequest{
		Message:        payload.Message,
		ConversationID: payload.ConversationID,
		ClientIP:       ClientIP(r),
	})
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, chatReply{
		Success:        true,
		Message:        result.Reply,
		ConversationID: result.ConversationID,
	})
}

type verifyPayload struct {
	OrderID        int64  `json:"order_id"`
	Email          string `json:"email"`
	ConversationID string `json:"conversation_id"`
}

type verifyReply struct {
	Success        bool   `json:"success"`
	Verified       bool   `json:"verified"`
	Message        string `json:"message"`
	OrderInfo      string `json:"order_info"`
	ConversationID string `json:"conversation_id"`
}

func (s *Server) handleVerifyOrder(w http.ResponseWriter, r *http.Request) {
	var payload verifyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	orderInfo, err := s.gateway.VerifyOrder(r.Context(), payload.ConversationID, payload.OrderID, payload.Email)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, verifyReply{
		Success:        true,
		Verified:       true,
		Message:        "Order verified successfully.",
		OrderInfo:      orderInfo,
		ConversationID: payload.ConversationID,
	})
}

type leadPayload struct {
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Message        string `json:"message,omitempty"`
	PageURL        string `json:"page_url,omitempty"`
	Consent        bool   `json:"gdpr_consent"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (s *Server) handleLead(w http.ResponseWriter, r *http.Request) {
	var payload leadPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if payload.Email == "" && payload.Phone == "" {
		s.writeError(w, http.StatusBadRequest, "An email address or phone number is required.")
		return
	}
	if payload.Email != "" {
		if _, err := mail.ParseAddress(payload.Email); err != nil {
			s.writeError(w, http.StatusBadRequest, "A valid email address is required.")
			return
		}
	}

	err := s.gateway.SaveLead(r.Context(), persist.Lead{
		ConversationID: payload.ConversationID,
		Name:           payload.Name,
		Email:          payload.Email,
		Phone:          payload.Phone,
		Message:        payload.Message,
		PageURL:        payload.PageURL,
		Consent:        payload.Consent,
	})
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type testConnectionPayload struct {
	Kind    string `json:"kind,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
}

type testConnectionReply struct {
	Success  bool   `json:"success"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Admin-Token")

	// An empty body checks the configured backend.
	var payload testConnectionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	var override *provider.Config
	if payload.Kind != "" {
		override = &provider.Config{
			Kind:    provider.Kind(payload.Kind),
			APIKey:  payload.APIKey,
			BaseURL: payload.BaseURL,
			Model:   payload.Model,
		}
	}

	result, err := s.gateway.TestConnection(r.Context(), token, override)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, testConnectionReply{
		Success:  true,
		Provider: result.Provider,
		Model:    result.Response.Model,
		Message:  result.Response.Content,
	})
}

type errorReply struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// writeGatewayError maps the gateway's error taxonomy to a status code and a
// generic visitor-facing message. The underlying error is logged with detail.
func (s *Server) writeGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.logger.Info("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	s.writeError(w, status, message)
}

func statusFor(err error) (int, string) {
	var invalid *gateway.InvalidInputError
	var upstream *provider.UpstreamError

	switch {
	case errors.Is(err, gateway.ErrServiceDisabled),
		errors.Is(err, provider.ErrMissingCredential):
		return http.StatusServiceUnavailable, "The assistant is not available right now."
	case errors.Is(err, gateway.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many messages. Please wait a moment and try again."
	case errors.Is(err, gateway.ErrVerificationFailed):
		return http.StatusUnauthorized, "We could not verify those details."
	case errors.Is(err, provider.ErrUnknownKind):
		return http.StatusBadRequest, "Unknown provider."
	case errors.As(err, &invalid):
		return http.StatusBadRequest, "Please check your message and try again."
	case errors.As(err, &upstream),
		errors.Is(err, provider.ErrTransport),
		errors.Is(err, provider.ErrInvalidResponse):
		return http.StatusBadGateway, "The assistant could not respond. Please try again."
	default:
		return http.StatusInternalServerError, "Something went wrong. Please try again."
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorReply{Success: false, Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
