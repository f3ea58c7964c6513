package httpserver

import (
	"encoding/json"
	"net/http"

	"estatehub/internal/domain"
	"estatehub/internal/service"
)

type messageCreateRequest struct {
	Content string `json:"content"`
}

func handleSendMessage(svc *service.MessageService, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := CurrentActor(r)
		convID, ok := pathID(r, "conversationID")
		if !ok {
			errs.badRequest(w, r, "id", "invalid conversation id")
			return
		}
		var req messageCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errs.badRequest(w, r, "body", "invalid JSON body")
			return
		}

		view, err := svc.SendMessage(r.Context(), convID, actor.ID, req.Content)
		if err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

func handleListMessages(svc *service.MessageService, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := CurrentActor(r)
		convID, ok := pathID(r, "conversationID")
		if !ok {
			errs.badRequest(w, r, "id", "invalid conversation id")
			return
		}
		page, limit, field, ok := queryPage(r)
		if !ok {
			errs.badRequest(w, r, field, field+" must be a positive integer")
			return
		}

		res, err := svc.ListMessages(r.Context(), convID, actor.ID, service.ListOptions{
			Page:     page,
			PageSize: limit,
			Order:    domain.SortOrder(r.URL.Query().Get("order")),
		})
		if err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleUnreadCount(svc *service.MessageService, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := CurrentActor(r)
		n, err := svc.UnreadCount(r.Context(), actor.ID)
		if err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"unread_count": n})
	}
}

func handleDeleteMessage(svc *service.MessageService, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := CurrentActor(r)
		id, ok := pathID(r, "messageID")
		if !ok {
			errs.badRequest(w, r, "id", "invalid message id")
			return
		}
		if err := svc.DeleteMessage(r.Context(), id, actor.ID); err != nil {
			errs.write(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
