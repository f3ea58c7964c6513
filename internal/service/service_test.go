package service_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"estatehub/internal/domain"
	"estatehub/internal/service"
	"estatehub/internal/store/sqlite"
	"estatehub/internal/store/sqlstore"
)

const (
	adminID    int64 = 1
	inquirerID int64 = 3
	buyerID    int64 = 5
	ownerID    int64 = 9
	outsiderID int64 = 11

	seasideID int64 = 7   // owned by ownerID
	loftID    int64 = 42  // owned by ownerID
	cottageID int64 = 50  // owned by buyerID
	towersID  int64 = 100 // project owned by ownerID
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, ev domain.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockNotifier) events() []domain.Event {
	var evs []domain.Event
	for _, c := range m.Calls {
		evs = append(evs, c.Arguments.Get(1).(domain.Event))
	}
	return evs
}

type fixture struct {
	ctx       context.Context
	db        *sql.DB
	store     *sqlstore.Store
	notifier  *MockNotifier
	messages  *service.MessageService
	inquiries *service.InquiryService
}

func newFixture(t *testing.T, cfg service.MessageConfig) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "estatehub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(ctx, db))
	seed(t, db)

	store := sqlstore.New(db, sqlstore.SQLite)
	n := new(MockNotifier)
	n.On("Notify", mock.Anything, mock.Anything).Return(nil).Maybe()

	return newFixtureWith(ctx, db, store, store, n, cfg)
}

func newFixtureWith(
	ctx context.Context,
	db *sql.DB,
	store *sqlstore.Store,
	uow domain.UnitOfWorkFactory,
	n *MockNotifier,
	cfg service.MessageConfig,
) *fixture {
	msgs := service.NewMessageService(uow, n, nil, cfg)
	inqs := service.NewInquiryService(uow, service.NewConversationResolver(nil), msgs, n, nil)
	return &fixture{ctx: ctx, db: db, store: store, notifier: n, messages: msgs, inquiries: inqs}
}

func seed(t *testing.T, db *sql.DB) {
	t.Helper()
	stmts := []string{
		`INSERT INTO users (id, display_name, email, role) VALUES
			(1, 'Ada Admin', 'admin@example.com', 'admin'),
			(3, 'Ian Inquirer', 'ian@example.com', 'user'),
			(5, 'Bea Buyer', 'bea@example.com', 'user'),
			(9, 'Olga Owner', 'olga@example.com', 'user'),
			(11, 'Otto Outsider', 'otto@example.com', 'user')`,
		`INSERT INTO properties (id, owner_id, title) VALUES
			(7, 9, 'Seaside Villa'),
			(42, 9, 'Downtown Loft'),
			(50, 5, 'Garden Cottage')`,
		`INSERT INTO projects (id, owner_id, title) VALUES (100, 9, 'Harbour Towers')`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func ptr[T any](v T) *T { return &v }

func inquiryFrom(userID, propertyID int64, message string) service.SubmitInquiryInput {
	return service.SubmitInquiryInput{
		PropertyID: ptr(propertyID),
		InquirerID: ptr(userID),
		Name:       "Interested Buyer",
		Email:      "buyer@example.com",
		Message:    message,
	}
}
