package auth

import (
	"errors"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hasad-erp/hasad/pkg/audit"
	"github.com/hasad-erp/hasad/pkg/authenticator"
	"github.com/hasad-erp/hasad/pkg/cipher"
	"github.com/hasad-erp/hasad/pkg/config"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
	"github.com/hasad-erp/hasad/pkg/token"
)

// Stores are the persistence dependencies of the Service
type Stores struct {
	Users    store.UserStore
	Tokens   store.TokenStore
	Sessions store.SessionStore
	MFA      store.MFAStore
	AuthLogs store.AuthLogStore
	OAuth    store.OAuthStore
}

// Options configure a Service. Config, Issuer and Cipher are required.
type Options struct {
	Config *config.HasadConfig
	Issuer *token.Issuer
	Cipher cipher.SymmetricCipher

	// Providers holds one enabled authenticator per OAuth provider. It may
	// be nil when no provider is configured.
	Providers *authenticator.Registry

	// Now defaults to time.Now
	Now func() time.Time
}

// Client describes where a request came from
type Client struct {
	IP        string
	UserAgent string
}

// Service implements authentication and account management
type Service struct {
	stores    Stores
	cfg       *config.HasadConfig
	issuer    *token.Issuer
	cipher    cipher.SymmetricCipher
	providers *authenticator.Registry
	validate  *validator.Validate
	now       func() time.Time
}

// New creates a Service
func New(stores Stores, opts Options) (*Service, error) {
	if opts.Config == nil {
		return nil, errors.New("auth: config is required")
	}
	if opts.Issuer == nil {
		return nil, errors.New("auth: token issuer is required")
	}
	if opts.Cipher == nil {
		return nil, errors.New("auth: cipher is required")
	}
	if opts.Providers == nil {
		opts.Providers = authenticator.NewRegistry()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		stores:    stores,
		cfg:       opts.Config,
		issuer:    opts.Issuer,
		cipher:    opts.Cipher,
		providers: opts.Providers,
		validate:  newValidator(),
		now:       func() time.Time { return opts.Now().UTC() },
	}, nil
}

// record writes an auth log entry and, when given, an audit event. Failures
// are logged and never fail the operation being recorded.
func (s *Service) record(entry model.AuthLog, event audit.Event) {
	entry.ID = uuid.NewString()
	entry.CreatedAt = s.now()
	if err := s.stores.AuthLogs.CreateAuthLog(&entry); err != nil {
		log.Printf("auth: failed to write %s log entry: %v", entry.EventType, err)
	}
	if event != nil {
		audit.Log(event)
	}
}

func logFor(user *model.User, eventType model.AuthEventType, client Client, success bool, details string) model.AuthLog {
	entry := model.AuthLog{
		EventType: eventType,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		Success:   success,
		Details:   details,
	}
	if user != nil {
		id := user.ID
		entry.UserID = &id
		entry.Username = user.Username
	}
	return entry
}
