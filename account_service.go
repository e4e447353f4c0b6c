package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	minPasswordLength = 8
	minProfileNameLen = 7
)

// passwordBytes bounds the encoded length; Length counts runes and bcrypt
// only looks at the first maxPasswordBytes bytes.
var passwordBytes = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if len(s) > maxPasswordBytes {
		return fmt.Errorf("must be at most %d bytes", maxPasswordBytes)
	}
	return nil
})

// RegisterRequest is the self registration payload
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// Validate checks the payload
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email, validation.Match(emailPattern)),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, 0), passwordBytes),
		validation.Field(&r.Role, validation.Required, validation.In(RoleBuyer, RoleSeller, RoleAdmin)),
	)
}

// LoginRequest is the login payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the payload
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// UpdateProfileRequest is the profile update payload. NewPassword is
// optional; when set CurrentPassword must match the stored hash.
type UpdateProfileRequest struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Validate checks the payload
func (r UpdateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(minProfileNameLen, 200)),
		validation.Field(&r.Address, validation.Length(0, 500)),
		validation.Field(&r.NewPassword, validation.Length(minPasswordLength, 0), passwordBytes),
	)
}

// AccountService implements registration, login and profile flows on top of
// the hasher, the token issuer and a user store.
type AccountService struct {
	store        UserStore
	hasher       PasswordHasher
	tokens       TokenIssuer
	logger       Logger
	activitySink ActivitySink
	phoneRegion  string
	dummyHash    string
	now          func() time.Time
}

// AccountOption configures an AccountService
type AccountOption func(*AccountService)

// WithAccountLogger sets the logger
func WithAccountLogger(logger Logger) AccountOption {
	return func(s *AccountService) {
		s.logger = normalizeLogger(logger)
	}
}

// WithActivitySink configures an ActivitySink for emitting account events.
func WithActivitySink(sink ActivitySink) AccountOption {
	return func(s *AccountService) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// WithPhoneRegion sets the region used to parse phone numbers without a
// country prefix. Defaults to "ID".
func WithPhoneRegion(region string) AccountOption {
	return func(s *AccountService) {
		if region != "" {
			s.phoneRegion = strings.ToUpper(region)
		}
	}
}

// NewAccountService returns an AccountService. It hashes a random secret
// once so unknown-email logins cost the same as known ones.
func NewAccountService(store UserStore, hasher PasswordHasher, tokens TokenIssuer, opts ...AccountOption) (*AccountService, error) {
	s := &AccountService{
		store:        store,
		hasher:       hasher,
		tokens:       tokens,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		phoneRegion:  "ID",
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	dummy, err := RandomPasswordHash(hasher)
	if err != nil {
		return nil, err
	}
	s.dummyHash = dummy

	return s, nil
}

// Register creates a buyer or seller account and returns a session for it
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	if req.Role == "" {
		req.Role = DefaultRole
	}
	if !req.Role.IsSelfAssignable() {
		return nil, ErrValidation.WithFields(map[string]string{"role": "role is not allowed"})
	}
	return s.create(ctx, req, ActivityEventRegistered)
}

// Provision creates an account with any valid role. It is meant for
// operator tooling, never for public endpoints.
func (s *AccountService) Provision(ctx context.Context, req RegisterRequest) (*Session, error) {
	if req.Role == "" {
		req.Role = DefaultRole
	}
	return s.create(ctx, req, ActivityEventAccountProvision)
}

func (s *AccountService) create(ctx context.Context, req RegisterRequest, event ActivityEventType) (*Session, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)

	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	existing, err := s.store.FindByEmail(ctx, req.Email)
	switch {
	case err == nil && existing != nil:
		return nil, ErrEmailTaken.WithFields(map[string]string{"email": ErrEmailTaken.Message})
	case err != nil && !errors.Is(err, ErrUserNotFound):
		return nil, ErrDependency.Wrap(err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &User{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Insert(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken.Wrap(err)
		}
		return nil, ErrDependency.Wrap(err)
	}

	session, err := s.session(user)
	if err != nil {
		return nil, err
	}

	emit(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: event,
		UserID:    session.Identity.ID,
		Metadata:  map[string]any{"role": string(user.Role)},
	})

	return session, nil
}

// Login verifies credentials. Unknown emails and wrong passwords both fail
// with ErrInvalidCredentials after the same amount of hashing work.
func (s *AccountService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	req.Email = normalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	user, err := s.store.FindByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, ErrDependency.Wrap(err)
	}

	targetHash := s.dummyHash
	if user != nil {
		targetHash = user.PasswordHash
	}

	valid, verifyErr := s.hasher.Verify(req.Password, targetHash)
	if verifyErr != nil {
		s.logger.Error("login password verification failed", "error", verifyErr)
	}

	if user == nil || !valid || verifyErr != nil {
		s.emitLoginFailure(ctx, user)
		return nil, ErrInvalidCredentials
	}

	session, err := s.session(user)
	if err != nil {
		return nil, err
	}

	emit(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    session.Identity.ID,
	})

	return session, nil
}

// Profile returns the live identity for id
func (s *AccountService) Profile(ctx context.Context, id string) (*Identity, error) {
	user, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewIdentity(user), nil
}

// UpdateProfile changes name, phone and address, and optionally the password
func (s *AccountService) UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest) (*Identity, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Address = strings.TrimSpace(req.Address)
	req.Phone = strings.TrimSpace(req.Phone)

	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	phone, err := s.normalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	if req.NewPassword != "" && req.CurrentPassword == "" {
		return nil, ErrCurrentPasswordRequired.WithFields(map[string]string{
			"currentPassword": ErrCurrentPasswordRequired.Message,
		})
	}

	user, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	columns := []string{"name", "phone", "address", "updated_at"}
	passwordChanged := false

	if req.NewPassword != "" {
		valid, err := s.hasher.Verify(req.CurrentPassword, user.PasswordHash)
		if err != nil {
			return nil, err
		}
		if !valid {
			return nil, ErrCurrentPasswordMismatch.WithFields(map[string]string{
				"currentPassword": ErrCurrentPasswordMismatch.Message,
			})
		}

		hash, err := s.hasher.Hash(req.NewPassword)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
		columns = append(columns, "password_hash")
		passwordChanged = true
	}

	user.Name = req.Name
	user.Phone = phone
	user.Address = req.Address
	user.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, user, columns...); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound.Wrap(err)
		}
		return nil, ErrDependency.Wrap(err)
	}

	emit(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventProfileUpdated,
		UserID:    user.ID.String(),
	})
	if passwordChanged {
		emit(ctx, s.activitySink, s.logger, ActivityEvent{
			EventType: ActivityEventPasswordChanged,
			UserID:    user.ID.String(),
		})
	}

	return NewIdentity(user), nil
}

func (s *AccountService) findByID(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound.Wrap(err)
		}
		return nil, ErrDependency.Wrap(err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AccountService) session(user *User) (*Session, error) {
	identity := NewIdentity(user)
	token, expiresAt, err := s.tokens.Issue(identity.Principal())
	if err != nil {
		return nil, err
	}
	return &Session{Identity: identity, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AccountService) normalizePhone(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	num, err := phonenumbers.Parse(raw, s.phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", ErrValidation.WithFields(map[string]string{"phone": "must be a valid phone number"})
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func (s *AccountService) emitLoginFailure(ctx context.Context, user *User) {
	event := ActivityEvent{EventType: ActivityEventLoginFailure}
	if user != nil {
		event.UserID = user.ID.String()
	}
	emit(ctx, s.activitySink, s.logger, event)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validationError(err error) error {
	var errs validation.Errors
	if errors.As(err, &errs) {
		fields := make(map[string]string, len(errs))
		for field, fieldErr := range errs {
			if fieldErr != nil {
				fields[field] = fieldErr.Error()
			}
		}
		return ErrValidation.WithFields(fields).Wrap(err)
	}
	return ErrValidation.Wrap(err)
}
