package authenticator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInvalidCredentials is returned when an authenticator rejects the
// presented credentials
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator defines the interface for external identity authenticators
type Authenticator interface {
	// Name returns the authenticator name (e.g., "authn-jwt/google")
	Name() string

	// Authenticate validates credentials and returns the external subject
	Authenticate(ctx context.Context, input AuthenticatorInput) (*Subject, error)

	// Status checks if the authenticator is healthy
	Status(ctx context.Context) error
}

// AuthenticatorInput contains the input for authentication
type AuthenticatorInput struct {
	Login       string
	Credentials []byte
	ClientIP    string
}

// Subject is an identity asserted by an external provider
type Subject struct {
	Provider string
	ID       string
	Email    string
	Name     string
}

// Registry holds all registered authenticators
type Registry struct {
	mu             sync.RWMutex
	authenticators map[string]Authenticator
	enabled        map[string]bool
}

// NewRegistry creates a new authenticator registry
func NewRegistry() *Registry {
	return &Registry{
		authenticators: make(map[string]Authenticator),
		enabled:        make(map[string]bool),
	}
}

// Register adds an authenticator to the registry
func (r *Registry) Register(auth Authenticator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authenticators[auth.Name()] = auth
}

// Enable enables an authenticator by name
func (r *Registry) Enable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.authenticators[name]; !ok {
		return fmt.Errorf("authenticator %q not found", name)
	}
	r.enabled[name] = true
	return nil
}

// Disable disables an authenticator by name
func (r *Registry) Disable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.enabled, name)
}

// Get returns an authenticator by name
func (r *Registry) Get(name string) (Authenticator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	auth, ok := r.authenticators[name]
	return auth, ok
}

// Lookup returns the named authenticator only when it is enabled
func (r *Registry) Lookup(name string) (Authenticator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	auth, ok := r.authenticators[name]
	if !ok || !r.enabled[name] {
		return nil, fmt.Errorf("authenticator %q is not enabled", name)
	}
	return auth, nil
}

// IsEnabled checks if an authenticator is enabled
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled[name]
}

// Installed returns all installed authenticator names, sorted
func (r *Registry) Installed() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.authenticators))
	for name := range r.authenticators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Enabled returns all enabled authenticator names, sorted
func (r *Registry) Enabled() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.enabled))
	for name := range r.enabled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status reports the health of every enabled authenticator by name
func (r *Registry) Status(ctx context.Context) map[string]error {
	r.mu.RLock()
	enabled := make([]Authenticator, 0, len(r.enabled))
	for name := range r.enabled {
		enabled = append(enabled, r.authenticators[name])
	}
	r.mu.RUnlock()

	statuses := make(map[string]error, len(enabled))
	for _, auth := range enabled {
		statuses[auth.Name()] = auth.Status(ctx)
	}
	return statuses
}
