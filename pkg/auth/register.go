package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hasad-erp/hasad/pkg/audit"
	"github.com/hasad-erp/hasad/pkg/authenticator/authn"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,64}$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// RegisterInput is a new local account
type RegisterInput struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name" validate:"max=255"`
}

// Register creates an account with the user role
func (s *Service) Register(in RegisterInput, client Client) (*model.User, error) {
	user, err := s.createUser(in, model.RoleUser)
	if err != nil {
		s.record(model.AuthLog{
			Username:  in.Username,
			EventType: model.AuthEventRegister,
			IPAddress: client.IP,
			UserAgent: client.UserAgent,
			Details:   err.Error(),
		}, nil)
		return nil, err
	}
	s.record(logFor(user, model.AuthEventRegister, client, true, ""), audit.AccountEvent{
		ActorID:   user.ID,
		UserID:    user.ID,
		ClientIP:  client.IP,
		Operation: "register",
		Success:   true,
	})
	return user, nil
}

// CreateUser creates an account with any role. It backs administrative
// tooling; role must be valid.
func (s *Service) CreateUser(in RegisterInput, role model.Role, actor string) (*model.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	user, err := s.createUser(in, role)
	if err != nil {
		return nil, err
	}
	s.record(logFor(user, model.AuthEventRegister, Client{}, true, "role "+string(role)), audit.AccountEvent{
		ActorID:   actor,
		UserID:    user.ID,
		Operation: "create",
		Detail:    string(role),
		Success:   true,
	})
	return user, nil
}

func (s *Service) createUser(in RegisterInput, role model.Role) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)

	if err := s.validate.Struct(in); err != nil {
		return nil, invalid(err)
	}
	if err := authn.ValidatePolicy(in.Password, s.cfg.PasswordMinLength); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	hash, err := authn.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	now := s.now()
	user := &model.User{
		ID:                uuid.NewString(),
		Username:          in.Username,
		Email:             in.Email,
		PasswordHash:      hash,
		FullName:          in.FullName,
		Role:              role,
		IsActive:          true,
		PasswordChangedAt: &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.stores.Users.CreateUser(user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: username or email already registered", ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// invalid turns validator errors into an ErrInvalidInput naming the fields
func invalid(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ", "))
}
