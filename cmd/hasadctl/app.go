package main

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"

	"gorm.io/gorm"

	"github.com/hasad-erp/hasad/pkg/auth"
	"github.com/hasad-erp/hasad/pkg/authenticator"
	"github.com/hasad-erp/hasad/pkg/authenticator/authn_jwt"
	"github.com/hasad-erp/hasad/pkg/cipher"
	"github.com/hasad-erp/hasad/pkg/config"
	"github.com/hasad-erp/hasad/pkg/db"
	"github.com/hasad-erp/hasad/pkg/identity"
	"github.com/hasad-erp/hasad/pkg/ledger"
	"github.com/hasad-erp/hasad/pkg/memory"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server"
	"github.com/hasad-erp/hasad/pkg/server/store"
	gormstore "github.com/hasad-erp/hasad/pkg/server/store/gorm"
	"github.com/hasad-erp/hasad/pkg/server/store/memstore"
	"github.com/hasad-erp/hasad/pkg/taxonomy"
	"github.com/hasad-erp/hasad/pkg/token"
)

// appOptions control how newApp wires the services
type appOptions struct {
	// InMemory replaces PostgreSQL with a process-local store
	InMemory bool

	// Queue runs memory index updates in the background
	Queue memory.Submitter

	// Index enables semantic memory search
	Index *memory.Index
}

// app holds the wired services shared by the commands
type app struct {
	cfg      *config.HasadConfig
	db       *gorm.DB
	users    store.UserStore
	services server.Services
}

func loadConfig() (*config.HasadConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newApp(cfg *config.HasadConfig, opts appOptions) (*app, error) {
	c, err := dataCipher(opts.InMemory)
	if err != nil {
		return nil, err
	}
	issuer, err := tokenIssuer()
	if err != nil {
		return nil, err
	}
	providers, err := oauthProviders(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	var (
		authStores auth.Stores
		knowledge  store.KnowledgeStore
		ledgers    store.LedgerStore
		taxa       store.TaxonomyStore
		health     store.HealthStore
	)
	if opts.InMemory {
		st := memstore.New()
		authStores = auth.Stores{Users: st, Tokens: st, Sessions: st, MFA: st, AuthLogs: st, OAuth: st}
		knowledge, ledgers, taxa, health = st, st, st, st
	} else {
		database, err := db.Connect(db.Config{MaxOpenConns: 20})
		if err != nil {
			return nil, err
		}
		a.db = database
		authStores = auth.Stores{
			Users:    gormstore.NewUserStore(database),
			Tokens:   gormstore.NewTokenStore(database),
			Sessions: gormstore.NewSessionStore(database),
			MFA:      gormstore.NewMFAStore(database),
			AuthLogs: gormstore.NewAuthLogStore(database),
			OAuth:    gormstore.NewOAuthStore(database),
		}
		knowledge = gormstore.NewKnowledgeStore(database)
		ledgers = gormstore.NewLedgerStore(database)
		taxa = gormstore.NewTaxonomyStore(database)
		health = gormstore.NewHealthStore(database)
	}
	a.users = authStores.Users

	authSvc, err := auth.New(authStores, auth.Options{
		Config:    cfg,
		Issuer:    issuer,
		Cipher:    c,
		Providers: providers,
	})
	if err != nil {
		return nil, err
	}
	memorySvc, err := memory.New(knowledge, memory.Options{
		Config: cfg,
		Index:  opts.Index,
		Queue:  opts.Queue,
	})
	if err != nil {
		return nil, err
	}
	ledgerSvc, err := ledger.New(ledgers, ledger.Options{Config: cfg})
	if err != nil {
		return nil, err
	}

	a.services = server.Services{
		Auth:        authSvc,
		Memory:      memorySvc,
		Ledger:      ledgerSvc,
		Taxonomy:    taxonomy.New(taxa, nil),
		HealthStore: health,
	}
	return a, nil
}

// Close releases the database connection, if any
func (a *app) Close() {
	if a.db == nil {
		return
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// identityOf resolves login to the identity commands act as
func (a *app) identityOf(login string) (*identity.Identity, error) {
	u, err := a.users.GetUserByLogin(login)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", login, err)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("user %s is deactivated", login)
	}
	return &identity.Identity{UserID: u.ID, Username: u.Username, Role: u.Role}, nil
}

// userID resolves login to a user id
func (a *app) userID(login string) (string, error) {
	u, err := a.users.GetUserByLogin(login)
	if err != nil {
		return "", fmt.Errorf("user %s: %w", login, err)
	}
	return u.ID, nil
}

// dataCipher reads HASAD_DATA_KEY. An in-memory server holds nothing worth
// keeping so it falls back to a random key.
func dataCipher(inMemory bool) (cipher.SymmetricCipher, error) {
	if _, ok := os.LookupEnv("HASAD_DATA_KEY"); !ok && inMemory {
		log.Println("WARNING: HASAD_DATA_KEY is not set, using a random data key")
		key, err := cipher.RandomBytes(cipher.KeySize)
		if err != nil {
			return nil, err
		}
		return cipher.NewSymmetric(key)
	}
	return cipher.FromEnv()
}

// tokenKey reads HASAD_TOKEN_KEY. Without it a random key is used and every
// access token is invalidated by a restart.
func tokenKey() ([]byte, error) {
	raw, ok := os.LookupEnv("HASAD_TOKEN_KEY")
	if !ok || raw == "" {
		log.Println("WARNING: HASAD_TOKEN_KEY is not set, access tokens will not survive a restart")
		return cipher.RandomBytes(cipher.KeySize)
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("bad HASAD_TOKEN_KEY: %w", err)
	}
	return key, nil
}

func tokenIssuer() (*token.Issuer, error) {
	key, err := tokenKey()
	if err != nil {
		return nil, err
	}
	return token.NewIssuer(key)
}

// oauthProviders enables one JWT authenticator per configured provider
func oauthProviders(cfg *config.HasadConfig) (*authenticator.Registry, error) {
	if len(cfg.OAuthProviders) == 0 {
		return nil, nil
	}
	registry := authenticator.NewRegistry()
	for _, p := range cfg.OAuthProviders {
		a := authn_jwt.New(p)
		registry.Register(a)
		if err := registry.Enable(a.Name()); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func parseRole(s string) (model.Role, error) {
	role := model.Role(s)
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q (viewer, user, manager, admin)", s)
	}
	return role, nil
}
