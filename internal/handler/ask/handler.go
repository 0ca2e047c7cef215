package ask

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	askService "github.com/sqltavern/askdb/internal/service/ask"
	"github.com/sqltavern/askdb/internal/service/gateway"
	chatstore "github.com/sqltavern/askdb/internal/store/chat"
	"github.com/sqltavern/askdb/pkg/utils"
)

// Handler exposes the question-answering endpoint.
type Handler struct {
	askSvc *askService.Service
}

// New creates the ask handler.
func New(askSvc *askService.Service) *Handler {
	return &Handler{askSvc: askSvc}
}

// RegisterRoutes mounts the ask route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/ask", h.handleAsk)
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Question       string `json:"question"`
		DataSource     string `json:"dataSource"`
		ConversationID string `json:"conversationId"`
		UserID         string `json:"userId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answer, err := h.askSvc.Ask(r.Context(), askService.Request{
		Question:       payload.Question,
		Source:         payload.DataSource,
		ConversationID: payload.ConversationID,
		UserID:         payload.UserID,
	})
	if err != nil {
		h.respondAskError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// respondAskError maps service failures to client responses without leaking
// internal detail; the full error is only logged server-side.
func (h *Handler) respondAskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, askService.ErrInvalidInput):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, gateway.ErrSourceNotFound):
		utils.RespondError(w, http.StatusNotFound, "data source not found")
	case errors.Is(err, chatstore.ErrUnavailable):
		log.Printf("[ask] chat store failure: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to record chat history")
	default:
		log.Printf("[ask] gateway failure: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to answer question")
	}
}
