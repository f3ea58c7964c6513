package httpserver

import (
	"net/http"
	"strconv"

	"estatehub/internal/service"
)

func handleListConversations(svc *service.MessageService, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := CurrentActor(r)
		page, limit, field, ok := queryPage(r)
		if !ok {
			errs.badRequest(w, r, field, field+" must be a positive integer")
			return
		}
		f := service.ConversationFilter{Page: page, PageSize: limit}

		q := r.URL.Query()
		if v := q.Get("propertyId"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs.badRequest(w, r, "propertyId", "propertyId must be an integer")
				return
			}
			f.PropertyID = &id
		}
		if v := q.Get("unreadOnly"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs.badRequest(w, r, "unreadOnly", "unreadOnly must be a boolean")
				return
			}
			f.UnreadOnly = b
		}

		res, err := svc.ListConversations(r.Context(), actor.ID, f)
		if err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleMarkRead(svc *service.MessageService, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := CurrentActor(r)
		id, ok := pathID(r, "conversationID")
		if !ok {
			errs.badRequest(w, r, "id", "invalid conversation id")
			return
		}
		n, err := svc.MarkRead(r.Context(), id, actor.ID)
		if err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
	}
}
