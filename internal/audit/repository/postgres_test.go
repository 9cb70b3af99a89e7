package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"appliance-fieldops/authcore/internal/audit/domain"
	"appliance-fieldops/authcore/internal/db"
)

func newDB(t *testing.T) (*db.DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &db.DB{Pool: mock}, mock
}

func testEntry() *domain.Entry {
	return &domain.Entry{
		ID:          "0c9d6a1e-0000-0000-0000-000000000001",
		CreatedAt:   time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC),
		ActorUserID: "u1",
		ActorRole:   "technician",
		SessionID:   "s1",
		IPAddress:   "10.0.0.1",
		UserAgent:   "ua",
		EventType:   "SESSION_CREATED",
		EntityType:  "session",
		EntityID:    "s1",
		Severity:    domain.SeverityInfo,
		Metadata:    map[string]string{"device_id": "d1"},
	}
}

func TestAppend_FirstEntryUsesGenesis(t *testing.T) {
	d, mock := newDB(t)
	defer mock.Close()
	r := NewPostgresRepository(d)
	e := testEntry()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT hash FROM audit_log ORDER BY seq DESC LIMIT 1 FOR UPDATE`).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO audit_log`).
		WithArgs(e.ID, e.CreatedAt, e.ActorUserID, e.ActorRole, e.SessionID,
			e.IPAddress, e.UserAgent, e.EventType, e.EntityType, e.EntityID,
			string(e.Severity), e.Metadata, domain.GenesisHash, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"seq"}).AddRow(int64(1)))
	mock.ExpectCommit()

	got, err := r.Append(context.Background(), e)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.Seq)
	require.Equal(t, domain.GenesisHash, got.PrevHash)
	require.Equal(t, domain.ComputeHash(got, domain.GenesisHash), got.Hash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_LinksToChainHead(t *testing.T) {
	d, mock := newDB(t)
	defer mock.Close()
	r := NewPostgresRepository(d)
	e := testEntry()
	head := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT hash FROM audit_log ORDER BY seq DESC LIMIT 1 FOR UPDATE`).
		WillReturnRows(pgxmock.NewRows([]string{"hash"}).AddRow(head))
	mock.ExpectQuery(`INSERT INTO audit_log`).
		WithArgs(e.ID, e.CreatedAt, e.ActorUserID, e.ActorRole, e.SessionID,
			e.IPAddress, e.UserAgent, e.EventType, e.EntityType, e.EntityID,
			string(e.Severity), e.Metadata, head, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"seq"}).AddRow(int64(42)))
	mock.ExpectCommit()

	got, err := r.Append(context.Background(), e)
	require.NoError(t, err)
	require.Equal(t, int64(42), got.Seq)
	require.Equal(t, head, got.PrevHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_RollsBackOnInsertFailure(t *testing.T) {
	d, mock := newDB(t)
	defer mock.Close()
	r := NewPostgresRepository(d)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT hash FROM audit_log ORDER BY seq DESC LIMIT 1 FOR UPDATE`).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO audit_log`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	_, err := r.Append(context.Background(), testEntry())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAsc(t *testing.T) {
	d, mock := newDB(t)
	defer mock.Close()
	r := NewPostgresRepository(d)
	e := testEntry()
	e.Seq = 1
	e.PrevHash = domain.GenesisHash
	e.Hash = domain.ComputeHash(e, domain.GenesisHash)

	rows := pgxmock.NewRows([]string{
		"seq", "id", "created_at", "actor_user_id", "actor_role", "session_id",
		"ip_address", "user_agent", "event_type", "entity_type", "entity_id",
		"severity", "metadata", "prev_hash", "hash",
	}).AddRow(e.Seq, e.ID, e.CreatedAt, e.ActorUserID, e.ActorRole, e.SessionID,
		e.IPAddress, e.UserAgent, e.EventType, e.EntityType, e.EntityID,
		string(e.Severity), e.Metadata, e.PrevHash, e.Hash)

	mock.ExpectQuery(`SELECT (.+) FROM audit_log WHERE seq >= \$1`).
		WithArgs(int64(1), int64(0), int32(100)).
		WillReturnRows(rows)

	got, err := r.ListAsc(context.Background(), 1, 0, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, e.Hash, got[0].Hash)
	require.Equal(t, domain.SeverityInfo, got[0].Severity)
}
