package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"estatehub/internal/domain"
	"estatehub/internal/security"
)

// Messenger is the slice of the message service the socket exposes.
type Messenger interface {
	SendMessage(ctx context.Context, conversationID, senderID int64, content string) (*domain.MessageView, error)
	MarkRead(ctx context.Context, conversationID, readerID int64) (int64, error)
}

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}
	if _, ok := allowed["*"]; ok {
		return func(r *http.Request) bool {
			return true
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	// Browsers cannot set headers on the upgrade request, so the token may
	// arrive as the second subprotocol: "bearer, <token>".
	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1], nil
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

type inbound struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id"`
	Content        string `json:"content"`
}

// MakeHandler returns an HTTP handler for the /ws endpoint.
// Authenticates via Bearer token (Authorization header or Sec-WebSocket-Protocol),
// registers the connection for pushed events, then serves:
//   - message   -> send a message, ack with message_sent
//   - mark_read -> mark the conversation read, ack with messages_read
//   - ping      -> pong
func MakeHandler(
	hub *Hub,
	tokens *security.TokenService,
	msgs Messenger,
	allowedOrigins []string,
	logger *slog.Logger,
) http.HandlerFunc {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin:  checkOrigin,
		Subprotocols: []string{"bearer"},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr, err := extractTokenFromWSRequest(r)
		if err != nil {
			var authErr wsAuthError
			if errors.As(err, &authErr) {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		principal, err := tokens.Parse(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		userID := principal.UserID

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		hub.Register(userID, conn)
		defer hub.Unregister(userID, conn)
		logger.Debug("ws connected", "user_id", userID)

		ctx := r.Context()
		for {
			var in inbound
			if err := conn.ReadJSON(&in); err != nil {
				break
			}
			switch in.Type {
			case "message":
				view, err := msgs.SendMessage(ctx, in.ConversationID, userID, in.Content)
				if err != nil {
					hub.send(userID, conn, errorEvent(err))
					continue
				}
				hub.send(userID, conn, map[string]any{"type": "message_sent", "message": view})

			case "mark_read":
				n, err := msgs.MarkRead(ctx, in.ConversationID, userID)
				if err != nil {
					hub.send(userID, conn, errorEvent(err))
					continue
				}
				hub.send(userID, conn, map[string]any{
					"type":            "messages_read",
					"conversation_id": in.ConversationID,
					"updated":         n,
				})

			case "ping":
				hub.send(userID, conn, map[string]any{"type": "pong"})

			default:
				logger.Debug("ws: unknown event type", "type", in.Type, "user_id", userID)
			}
		}
		logger.Debug("ws disconnected", "user_id", userID)
	}
}

func errorEvent(err error) map[string]any {
	code := domain.CodeOf(err)
	msg := "internal error"
	var appErr *domain.AppError
	if errors.As(err, &appErr) && code != domain.CodeInternal && code != domain.CodeInvariant {
		msg = appErr.Message
	}
	return map[string]any{
		"type":    "error",
		"code":    code,
		"message": msg,
	}
}
