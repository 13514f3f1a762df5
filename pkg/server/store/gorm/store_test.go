package gorm

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

const (
	userID  = "2f4a3c1e-8d8b-4f0e-9a55-0c1d2e3f4a5b"
	tokenID = "7b1d9e2c-3f4a-4b5c-8d6e-9f0a1b2c3d4e"
	orderID = "c0ffee00-1111-4222-8333-944455556666"
	taxonID = "a1b2c3d4-e5f6-4789-8abc-def012345678"
)

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	gormDB, err := gorm.Open(
		postgres.New(postgres.Config{
			Conn:                 mockDB,
			PreferSimpleProtocol: true,
		}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		},
	)
	require.NoError(t, err)

	return gormDB, mock
}

func TestHealthStore_CheckConnectivity(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectExec(`SELECT 1`).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, NewHealthStore(db).CheckConnectivity())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_GetUser_InvalidID(t *testing.T) {
	db, mock := setupTestDB(t)

	_, err := NewUserStore(db).GetUser("not-a-uuid")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_GetUserByLogin_NotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE .*lower\(username\) = lower\(\$1\) OR lower\(email\) = lower\(\$2\)`).
		WithArgs("ghost", "ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewUserStore(db).GetUserByLogin("ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_RecordFailedLogin(t *testing.T) {
	db, mock := setupTestDB(t)
	until := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE users SET\s+failed_login_attempts = failed_login_attempts \+ 1`).
		WithArgs(5, until, userID).
		WillReturnRows(sqlmock.NewRows([]string{"failed_login_attempts", "locked_until"}).AddRow(5, until))

	n, locked, err := NewUserStore(db).RecordFailedLogin(userID, 5, until)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NotNil(t, locked)
	assert.True(t, until.Equal(*locked))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenStore_RevokeToken_AlreadyRevoked(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectExec(`UPDATE tokens SET revoked_at = \$1 WHERE id = \$2 AND revoked_at IS NULL`).
		WithArgs(sqlmock.AnyArg(), tokenID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "tokens" WHERE id = \$1`).
		WithArgs(tokenID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	revoked, err := NewTokenStore(db).RevokeToken(tokenID, time.Now())
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenStore_RevokeToken_FirstWins(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectExec(`UPDATE tokens SET revoked_at`).
		WithArgs(sqlmock.AnyArg(), tokenID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	revoked, err := NewTokenStore(db).RevokeToken(tokenID, time.Now())
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenStore_RecordTokenFailure(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectQuery(`UPDATE tokens SET failed_attempts = failed_attempts \+ 1 WHERE id = \$1 RETURNING failed_attempts`).
		WithArgs(tokenID).
		WillReturnRows(sqlmock.NewRows([]string{"failed_attempts"}).AddRow(3))

	n, err := NewTokenStore(db).RecordTokenFailure(tokenID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMFAStore_ConsumeBackupCode(t *testing.T) {
	db, mock := setupTestDB(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	consume := `(?s)UPDATE mfa_configurations SET\s+backup_codes = \(.+WHERE code <> \$1\s+\),\s+updated_at = \$2\s+WHERE user_id = \$3 AND backup_codes::jsonb @> jsonb_build_array\(\$4::text\)`

	mock.ExpectExec(consume).
		WithArgs("digest-1", at, userID, "digest-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(consume).
		WithArgs("digest-1", at, userID, "digest-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	mfa := NewMFAStore(db)
	ok, err := mfa.ConsumeBackupCode(userID, "digest-1", at)
	require.NoError(t, err)
	assert.True(t, ok)

	// the second spend of the same code matches no row
	ok, err = mfa.ConsumeBackupCode(userID, "digest-1", at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryStore_ListMemories_AnonymousSeesPublicOnly(t *testing.T) {
	db, mock := setupTestDB(t)
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT m\.\* FROM memories m WHERE \(m\.access_level = 'public' AND \(m\.expires_at IS NULL OR m\.expires_at > \$1\)\) AND NOT m\.is_archived AND m\.memory_type = \$2 ORDER BY m\.importance DESC, m\.updated_at DESC, m\.id LIMIT \$3`).
		WithArgs(now, model.MemoryFact, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "access_level"}).
			AddRow("m1", "Date palm pollination", "public"))

	memories, err := NewMemoryStore(db).ListMemories(store.MemoryFilter{
		Now:   now,
		Type:  model.MemoryFact,
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "Date palm pollination", memories[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVisibilityClause(t *testing.T) {
	now := time.Now()

	clause, args := visibilityClause(store.Viewer{Admin: true}, now)
	assert.Equal(t, "TRUE", clause)
	assert.Empty(t, args)

	clause, args = visibilityClause(store.Viewer{UserID: userID}, now)
	assert.Contains(t, clause, "memory_grants")
	assert.Equal(t, []interface{}{userID, now, userID}, args)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%\_x\\`, escapeLike(`100%_x\`))
}

func TestLedgerStore_UpdatePaymentOrder_StatusMoved(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectExec(`UPDATE payment_orders SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "payment_orders" WHERE id = \$1`).
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(orderID, "approved"))

	err := NewLedgerStore(db).UpdatePaymentOrder(
		&model.PaymentOrder{ID: orderID, Status: model.OrderPendingApproval},
		model.OrderDraft,
	)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaxonomyStore_CreateTaxon_DuplicateSibling(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "crop_taxa"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})
	mock.ExpectRollback()

	err := NewTaxonomyStore(db).CreateTaxon(&model.CropTaxon{
		ID:             taxonID,
		Rank:           model.RankFamily,
		ScientificName: "Arecaceae",
	})
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaxonomyStore_DeleteTaxon_WithChildren(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "crop_taxa" WHERE parent_id = \$1`).
		WithArgs(taxonID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	err := NewTaxonomyStore(db).DeleteTaxon(taxonID)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
