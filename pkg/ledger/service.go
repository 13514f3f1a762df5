package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hasad-erp/hasad/pkg/config"
	"github.com/hasad-erp/hasad/pkg/identity"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// DefaultCurrency is used when an order or debt names none
const DefaultCurrency = "SAR"

// Options configure a Service. Only Config is required.
type Options struct {
	Config *config.HasadConfig
	Now    func() time.Time
}

// Service implements payment orders and debts
type Service struct {
	store    store.LedgerStore
	cfg      *config.HasadConfig
	validate *validator.Validate
	now      func() time.Time
}

// New creates a Service
func New(st store.LedgerStore, opts Options) (*Service, error) {
	if opts.Config == nil {
		return nil, errors.New("ledger: config is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:    st,
		cfg:      opts.Config,
		validate: validator.New(),
		now:      func() time.Time { return opts.Now().UTC() },
	}, nil
}

func (s *Service) check(v interface{}) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 || limit > s.cfg.APIListLimitMax {
		return s.cfg.APIListLimitMax
	}
	return limit
}

// canWrite reports whether id may create ledger records. Viewers are
// read-only.
func canWrite(id *identity.Identity) bool {
	return id.Authenticated() && id.HasRole(model.RoleUser)
}

func isManager(id *identity.Identity) bool {
	return id.Authenticated() && id.HasRole(model.RoleManager)
}

func currency(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return DefaultCurrency
	}
	return c
}
