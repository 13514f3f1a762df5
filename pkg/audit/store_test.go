package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestStoreSave(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStoreWithDB(db)

	event := MemoryAccessEvent{
		UserID:   "u1",
		ClientIP: "10.0.0.1",
		MemoryID: "m1",
		Action:   "read",
		Success:  true,
	}

	mock.ExpectExec(`INSERT INTO audit_messages`).
		WithArgs(
			FacilityLocal0,    // facility
			int(SeverityInfo), // severity
			sqlmock.AnyArg(),  // timestamp
			sqlmock.AnyArg(),  // hostname
			"hasad",           // appname
			sqlmock.AnyArg(),  // procid
			"memory",          // msgid
			sqlmock.AnyArg(),  // sdata (JSON)
			sqlmock.AnyArg(),  // message
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.Save(event)
	if err != nil {
		t.Errorf("Save() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestStoreSaveAuthenticateEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStoreWithDB(db)

	event := AuthenticateEvent{
		Username:     "salem",
		ClientIP:     "10.0.0.1",
		Method:       "password",
		Success:      false,
		ErrorMessage: "invalid credentials",
	}

	mock.ExpectExec(`INSERT INTO audit_messages`).
		WithArgs(
			FacilityAuthPriv,
			int(SeverityWarning),
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			"hasad",
			sqlmock.AnyArg(),
			"authn",
			sqlmock.AnyArg(),
			"salem failed to authenticate with password: invalid credentials",
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Save(event); err != nil {
		t.Errorf("Save() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestStoreRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStoreWithDB(db)
	ts := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	sdata, _ := json.Marshal(map[string]map[string]string{SDIDAuth: {"user": "salem"}})

	mock.ExpectQuery(`SELECT facility, severity, timestamp, hostname, appname, procid, msgid, sdata, message\s+FROM audit_messages`).
		WithArgs("authn", 10).
		WillReturnRows(sqlmock.NewRows([]string{"facility", "severity", "timestamp", "hostname", "appname", "procid", "msgid", "sdata", "message"}).
			AddRow(FacilityAuthPriv, int(SeverityInfo), ts, "host", "hasad", "42", "authn", sdata, "ok"))

	messages, err := store.Recent("authn", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].Sdata[SDIDAuth]["user"] != "salem" {
		t.Errorf("unexpected sdata: %v", messages[0].Sdata)
	}
	if !messages[0].Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", messages[0].Timestamp, ts)
	}
}

func TestStoreNilDB(t *testing.T) {
	store := &Store{}

	if err := store.Save(PasswordEvent{UserID: "u1"}); err != nil {
		t.Errorf("Save() with nil db should return nil, got %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close() with nil db should return nil, got %v", err)
	}
}

func TestNewStoreWithoutURL(t *testing.T) {
	t.Setenv("AUDIT_DATABASE_URL", "")

	store, err := NewStore()
	if err != nil {
		t.Errorf("NewStore() error = %v", err)
	}
	if store != nil {
		t.Error("expected nil store when AUDIT_DATABASE_URL is not set")
	}
}
