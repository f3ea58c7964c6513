package httpserver

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatehub/internal/domain"
	"estatehub/internal/security"
	"estatehub/internal/service"
	"estatehub/internal/store/sqlite"
	"estatehub/internal/store/sqlstore"
)

const (
	adminID    int64 = 1
	buyerID    int64 = 5
	ownerID    int64 = 9
	outsiderID int64 = 11
	loftID     int64 = 42
)

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	tokens *security.TokenService
	db     *sql.DB
}

func newTestServer(t *testing.T, ratePerMinute int) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "estatehub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(ctx, db))
	for _, s := range []string{
		`INSERT INTO users (id, display_name, email, role) VALUES
			(1, 'Ada Admin', 'admin@example.com', 'admin'),
			(5, 'Bea Buyer', 'bea@example.com', 'user'),
			(9, 'Olga Owner', 'olga@example.com', 'user'),
			(11, 'Otto Outsider', 'otto@example.com', 'user')`,
		`INSERT INTO properties (id, owner_id, title) VALUES (42, 9, 'Downtown Loft')`,
	} {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}

	store := sqlstore.New(db, sqlstore.SQLite)
	msgs := service.NewMessageService(store, nil, nil, service.MessageConfig{})
	inqs := service.NewInquiryService(store, service.NewConversationResolver(nil), msgs, nil, nil)
	tokens := security.NewTokenService("test-secret", time.Hour)

	srv := httptest.NewServer(NewRouter(Deps{
		DB:                   store.DB(),
		Tokens:               tokens,
		Inquiries:            inqs,
		Messages:             msgs,
		CORSOrigins:          []string{"*"},
		InquiryRatePerMinute: ratePerMinute,
	}))
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv, tokens: tokens, db: db}
}

func (s *testServer) token(userID int64, role string) string {
	tok, err := s.tokens.CreateForUser(userID, role)
	require.NoError(s.t, err)
	return tok
}

// do sends a request as userID (0 for anonymous) and decodes the JSON response into out.
func (s *testServer) do(method, path string, userID int64, body any, out any) *http.Response {
	s.t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rdr)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		role := "user"
		if userID == adminID {
			role = domain.RoleAdmin
		}
		req.Header.Set("Authorization", "Bearer "+s.token(userID, role))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func submitBody(message string) map[string]any {
	return map[string]any{
		"property_id": loftID,
		"name":        "Bea Buyer",
		"email":       "bea@example.com",
		"message":     message,
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)
	var body map[string]string
	resp := s.do(http.MethodGet, "/health", 0, nil, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	require.NoError(t, s.db.Close())
	resp = s.do(http.MethodGet, "/health", 0, nil, &body)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestInquiryToConversationFlow(t *testing.T) {
	s := newTestServer(t, 0)

	var inq domain.Inquiry
	resp := s.do(http.MethodPost, "/api/inquiries", buyerID, submitBody("Is this still available?"), &inq)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, inq.ConversationID)
	assert.Equal(t, buyerID, *inq.InquirerID)
	convPath := fmt.Sprintf("/api/conversations/%d", *inq.ConversationID)

	var unread map[string]int
	s.do(http.MethodGet, "/api/messages/unread-count", ownerID, nil, &unread)
	assert.Equal(t, 1, unread["unread_count"])

	var inbox domain.Page[*domain.ConversationSummary]
	resp = s.do(http.MethodGet, "/api/conversations?unreadOnly=true", ownerID, nil, &inbox)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, inbox.Items, 1)
	assert.Equal(t, "Downtown Loft", inbox.Items[0].PropertyTitle)
	require.NotNil(t, inbox.Items[0].OtherUser)
	assert.Equal(t, "Bea Buyer", inbox.Items[0].OtherUser.DisplayName)

	var reply domain.MessageView
	resp = s.do(http.MethodPost, convPath+"/messages", ownerID, map[string]string{"content": "Yes, it is."}, &reply)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, buyerID, reply.RecipientID)
	require.NotNil(t, reply.Sender)
	assert.Equal(t, "Olga Owner", reply.Sender.DisplayName)

	var msgs domain.Page[*domain.Message]
	resp = s.do(http.MethodGet, convPath+"/messages?order=desc&limit=1", buyerID, nil, &msgs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, msgs.Total)
	require.Len(t, msgs.Items, 1)
	assert.Equal(t, "Yes, it is.", msgs.Items[0].Content)

	var updated map[string]int64
	resp = s.do(http.MethodPut, convPath+"/messages/read", ownerID, nil, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), updated["updated"])
	s.do(http.MethodPut, convPath+"/messages/read", ownerID, nil, &updated)
	assert.Equal(t, int64(0), updated["updated"])

	var received domain.Page[*domain.Inquiry]
	s.do(http.MethodGet, "/api/inquiries/received?status=new", ownerID, nil, &received)
	assert.Equal(t, 1, received.Total)

	var sent domain.Page[*domain.Inquiry]
	s.do(http.MethodGet, "/api/inquiries/sent", buyerID, nil, &sent)
	assert.Equal(t, 1, sent.Total)
}

func TestInquiryAccessAndErrors(t *testing.T) {
	s := newTestServer(t, 0)

	var inq domain.Inquiry
	s.do(http.MethodPost, "/api/inquiries", buyerID, submitBody("Is this still available?"), &inq)
	inqPath := fmt.Sprintf("/api/inquiries/%d", inq.ID)
	convPath := fmt.Sprintf("/api/conversations/%d", *inq.ConversationID)

	t.Run("Guest submission has no conversation", func(t *testing.T) {
		var guest domain.Inquiry
		body := submitBody("Please call me back.")
		body["email"] = "guest@example.com"
		resp := s.do(http.MethodPost, "/api/inquiries", 0, body, &guest)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Nil(t, guest.InquirerID)
		assert.Nil(t, guest.ConversationID)
	})

	t.Run("Validation envelope", func(t *testing.T) {
		var env errorEnvelope
		resp := s.do(http.MethodPost, "/api/inquiries", 0, map[string]any{"property_id": loftID}, &env)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, domain.CodeValidation, env.Error.Code)
		assert.NotEmpty(t, env.Error.Fields)
	})

	t.Run("Malformed body", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/api/inquiries", bytes.NewBufferString("{"))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Unknown property", func(t *testing.T) {
		body := submitBody("Is this still available?")
		body["property_id"] = 999
		var env errorEnvelope
		resp := s.do(http.MethodPost, "/api/inquiries", buyerID, body, &env)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, domain.CodeNotFound, env.Error.Code)
	})

	t.Run("Missing token", func(t *testing.T) {
		var env errorEnvelope
		resp := s.do(http.MethodGet, "/api/conversations", 0, nil, &env)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, domain.CodeUnauthorized, env.Error.Code)
	})

	t.Run("Invalid token on optional route", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/api/inquiries", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer not-a-token")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Outsider cannot read thread", func(t *testing.T) {
		var env errorEnvelope
		resp := s.do(http.MethodGet, convPath+"/messages", outsiderID, nil, &env)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, domain.CodeForbidden, env.Error.Code)
	})

	t.Run("Bad order", func(t *testing.T) {
		resp := s.do(http.MethodGet, convPath+"/messages?order=sideways", buyerID, nil, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Bad page", func(t *testing.T) {
		var env errorEnvelope
		resp := s.do(http.MethodGet, "/api/conversations?page=0", buyerID, nil, &env)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Len(t, env.Error.Fields, 1)
		assert.Equal(t, "page", env.Error.Fields[0].Field)
	})

	t.Run("Page past the end", func(t *testing.T) {
		var inbox domain.Page[*domain.ConversationSummary]
		resp := s.do(http.MethodGet, "/api/conversations?page=9223372036854775807", buyerID, nil, &inbox)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, inbox.Items)
		assert.Equal(t, 1, inbox.Total)

		var msgs domain.Page[*domain.Message]
		resp = s.do(http.MethodGet, convPath+"/messages?page=9223372036854775807", buyerID, nil, &msgs)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, msgs.Items)
	})

	t.Run("Only owner updates status", func(t *testing.T) {
		resp := s.do(http.MethodPatch, inqPath+"/status", outsiderID, map[string]string{"status": "closed"}, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		var out domain.Inquiry
		resp = s.do(http.MethodPatch, inqPath+"/status", ownerID, map[string]string{"status": "contacted"}, &out)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, domain.InquiryContacted, out.Status)

		resp = s.do(http.MethodPatch, inqPath+"/status", ownerID, map[string]string{"status": "archived"}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Only sender deletes message", func(t *testing.T) {
		var msgs domain.Page[*domain.Message]
		s.do(http.MethodGet, convPath+"/messages", buyerID, nil, &msgs)
		require.NotEmpty(t, msgs.Items)
		msgPath := fmt.Sprintf("/api/messages/%d", msgs.Items[0].ID)

		resp := s.do(http.MethodDelete, msgPath, ownerID, nil, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp = s.do(http.MethodDelete, msgPath, buyerID, nil, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		resp = s.do(http.MethodDelete, msgPath, buyerID, nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Admin deletes inquiry", func(t *testing.T) {
		resp := s.do(http.MethodDelete, inqPath, adminID, nil, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		resp = s.do(http.MethodDelete, inqPath, adminID, nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp = s.do(http.MethodGet, convPath+"/messages", buyerID, nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "conversation outlives its inquiry")
	})
}

func TestInquiryRateLimit(t *testing.T) {
	s := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		resp := s.do(http.MethodPost, "/api/inquiries", buyerID, submitBody("Is this still available?"), nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	var env errorEnvelope
	resp := s.do(http.MethodPost, "/api/inquiries", buyerID, submitBody("Is this still available?"), &env)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, domain.Code("RATE_LIMITED"), env.Error.Code)

	resp = s.do(http.MethodGet, "/api/inquiries/sent", buyerID, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "other routes are not throttled")

	for _, ip := range []string{"203.0.113.7", "198.51.100.9"} {
		req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/api/inquiries", nil)
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", ip)
		req.Header.Set("X-Real-IP", ip)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "forwarded headers are ignored without a trusted proxy")
	}
}

func TestIPLimiterRefillsAndForgets(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	l := newIPLimiter(1, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))

	now = now.Add(time.Minute)
	assert.True(t, l.allow("10.0.0.1"))
	assert.Len(t, l.visitors, 2, "no sweep within the idle period")

	now = now.Add(10 * time.Minute)
	l.allow("10.0.0.3")
	assert.Len(t, l.visitors, 1)

	assert.Nil(t, newIPLimiter(0, time.Minute))
}

func TestErrorWriterHidesInternalDetail(t *testing.T) {
	var logged bytes.Buffer
	errs := errorWriter{log: slog.New(slog.NewTextHandler(&logged, nil))}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	errs.write(rec, req, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Contains(t, logged.String(), "connection refused")

	rec = httptest.NewRecorder()
	errs.write(rec, req, domain.Conflict("retry"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
