//go:build integration

package integration

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/hasad-erp/hasad/pkg/auth"
	"github.com/hasad-erp/hasad/pkg/cipher"
	"github.com/hasad-erp/hasad/pkg/config"
	"github.com/hasad-erp/hasad/pkg/db"
	"github.com/hasad-erp/hasad/pkg/ledger"
	"github.com/hasad-erp/hasad/pkg/memory"
	"github.com/hasad-erp/hasad/pkg/server"
	"github.com/hasad-erp/hasad/pkg/server/endpoints"
	gormstore "github.com/hasad-erp/hasad/pkg/server/store/gorm"
	"github.com/hasad-erp/hasad/pkg/taxonomy"
	"github.com/hasad-erp/hasad/pkg/token"
)

// tables lists every application table, children first
var tables = []string{
	"memory_access_logs", "memory_grants", "memory_entities", "memory_tags",
	"entities", "tags", "memories",
	"debt_payments", "debt_records", "payment_orders",
	"crop_taxa",
	"oauth_accounts", "auth_logs", "mfa_configurations", "tokens", "user_sessions",
	"users",
	"audit_messages",
}

// TestContext holds the resources shared by the integration tests
type TestContext struct {
	DB          *gorm.DB
	Container   testcontainers.Container
	DatabaseURL string
	ServerURL   string
	DataKey     []byte
	TokenKey    []byte

	// Auth works on the same database as the server and is used to set up
	// fixtures the API cannot create, such as administrators
	Auth *auth.Service

	httpServer    *httptest.Server
	serverProcess *exec.Cmd
	cancel        context.CancelFunc
}

// NewTestContext starts PostgreSQL, migrates it and starts a server against
// it. The server runs in process unless HASAD_BINARY names a hasadctl
// binary to start instead.
func NewTestContext(ctx context.Context) (*TestContext, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %w", err)
	}

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("hasad_test"),
		tcpostgres.WithUsername("hasad"),
		tcpostgres.WithPassword("hasad"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	tc := &TestContext{Container: pgContainer}
	fail := func(err error) (*TestContext, error) {
		tc.Close(ctx)
		return nil, err
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fail(fmt.Errorf("failed to get connection string: %w", err))
	}
	tc.DatabaseURL = connStr

	if err := runMigrations(filepath.Join(projectRoot, "db", "migrations"), connStr); err != nil {
		return fail(err)
	}

	database, err := db.Connect(db.Config{URL: connStr, MaxOpenConns: 10})
	if err != nil {
		return fail(err)
	}
	tc.DB = database

	if tc.DataKey, err = cipher.RandomBytes(cipher.KeySize); err != nil {
		return fail(err)
	}
	if tc.TokenKey, err = cipher.RandomBytes(cipher.KeySize); err != nil {
		return fail(err)
	}

	services, err := newServices(database, tc.DataKey, tc.TokenKey)
	if err != nil {
		return fail(err)
	}
	tc.Auth = services.Auth

	if binaryPath := os.Getenv("HASAD_BINARY"); binaryPath != "" {
		log.Printf("Using binary: %s", binaryPath)
		if err := tc.startBinary(binaryPath, projectRoot); err != nil {
			return fail(err)
		}
	} else {
		log.Println("Using inline server mode")
		s := server.NewServer(config.Default(), services, "127.0.0.1", "0")
		endpoints.RegisterAll(s)
		tc.httpServer = httptest.NewServer(s.Router)
		tc.ServerURL = tc.httpServer.URL
	}

	if err := waitForServer(tc.ServerURL, 30*time.Second); err != nil {
		return fail(fmt.Errorf("server failed to become ready: %w", err))
	}
	return tc, nil
}

// newServices wires every service over the gorm stores
func newServices(database *gorm.DB, dataKey, tokenKey []byte) (server.Services, error) {
	cfg := config.Default()

	c, err := cipher.NewSymmetric(dataKey)
	if err != nil {
		return server.Services{}, err
	}
	issuer, err := token.NewIssuer(tokenKey)
	if err != nil {
		return server.Services{}, err
	}

	authSvc, err := auth.New(auth.Stores{
		Users:    gormstore.NewUserStore(database),
		Tokens:   gormstore.NewTokenStore(database),
		Sessions: gormstore.NewSessionStore(database),
		MFA:      gormstore.NewMFAStore(database),
		AuthLogs: gormstore.NewAuthLogStore(database),
		OAuth:    gormstore.NewOAuthStore(database),
	}, auth.Options{Config: cfg, Issuer: issuer, Cipher: c})
	if err != nil {
		return server.Services{}, err
	}
	memorySvc, err := memory.New(gormstore.NewKnowledgeStore(database), memory.Options{Config: cfg})
	if err != nil {
		return server.Services{}, err
	}
	ledgerSvc, err := ledger.New(gormstore.NewLedgerStore(database), ledger.Options{Config: cfg})
	if err != nil {
		return server.Services{}, err
	}

	return server.Services{
		Auth:        authSvc,
		Memory:      memorySvc,
		Ledger:      ledgerSvc,
		Taxonomy:    taxonomy.New(gormstore.NewTaxonomyStore(database), nil),
		HealthStore: gormstore.NewHealthStore(database),
	}, nil
}

// startBinary runs hasadctl server on a free port
func (tc *TestContext) startBinary(binaryPath, projectRoot string) error {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, binaryPath, "server", "--no-migrate", "-b", "127.0.0.1", "-p", fmt.Sprint(port))
	cmd.Dir = projectRoot
	cmd.Env = append(os.Environ(),
		"DATABASE_URL="+tc.DatabaseURL,
		"HASAD_DATA_KEY="+base64.StdEncoding.EncodeToString(tc.DataKey),
		"HASAD_TOKEN_KEY="+base64.StdEncoding.EncodeToString(tc.TokenKey),
		"HASAD_CONFIG_PATH="+os.TempDir(),
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start binary: %w", err)
	}

	tc.serverProcess = cmd
	tc.cancel = cancel
	tc.ServerURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	return nil
}

// Reset empties every table
func (tc *TestContext) Reset() error {
	for _, table := range tables {
		if err := tc.DB.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// Close cleans up all test resources
func (tc *TestContext) Close(ctx context.Context) {
	if tc.httpServer != nil {
		tc.httpServer.Close()
	}
	if tc.cancel != nil {
		tc.cancel()
	}
	if tc.serverProcess != nil && tc.serverProcess.Process != nil {
		_ = tc.serverProcess.Wait()
	}
	if tc.DB != nil {
		if sqlDB, err := tc.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if tc.Container != nil {
		_ = tc.Container.Terminate(ctx)
	}
}

// runMigrations applies every up migration with golang-migrate
func runMigrations(dir, dbURL string) error {
	m, err := migrate.New("file://"+dir, dbURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// waitForServer polls /status until it responds or times out
func waitForServer(serverURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(serverURL + "/status")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("server did not become ready within %v", timeout)
}

// findProjectRoot locates the directory holding go.mod
func findProjectRoot() (string, error) {
	for _, p := range []string{"../..", "..", "."} {
		if _, err := os.Stat(filepath.Join(p, "go.mod")); err == nil {
			return filepath.Abs(p)
		}
	}
	return "", fmt.Errorf("project root not found (looking for go.mod)")
}
