package chats

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sqltavern/askdb/internal/model/chat"
	askService "github.com/sqltavern/askdb/internal/service/ask"
	"github.com/sqltavern/askdb/pkg/utils"
)

// Handler serves chat history.
type Handler struct {
	askSvc *askService.Service
}

// New creates the chats handler.
func New(askSvc *askService.Service) *Handler {
	return &Handler{askSvc: askSvc}
}

// RegisterRoutes mounts the history routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chats", h.handleSaveTurn)
	r.Get("/chats/user/{userID}", h.handleUserHistory)
	r.Get("/chats/{conversationID}/user/{userID}", h.handleConversationHistory)
}

func (h *Handler) handleConversationHistory(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	userID := chi.URLParam(r, "userID")

	turns, err := h.askSvc.History(r.Context(), conversationID, userID)
	if err != nil {
		log.Printf("[chats] failed to load history for conversation=%s: %v", conversationID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load chat history")
		return
	}

	utils.RespondJSON(w, http.StatusOK, turns)
}

func (h *Handler) handleUserHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	turns, err := h.askSvc.UserHistory(r.Context(), userID)
	if err != nil {
		log.Printf("[chats] failed to load history for user=%s: %v", userID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load chat history")
		return
	}

	utils.RespondJSON(w, http.StatusOK, turns)
}

func (h *Handler) handleSaveTurn(w http.ResponseWriter, r *http.Request) {
	var payload chat.TurnInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, err := h.askSvc.Record(r.Context(), payload)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidTurn) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("[chats] failed to save turn: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to save chat turn")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, turn)
}
