package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Account activity event types.
const (
	EventLoginSuccess          = "ADMIN_LOGIN_SUCCESS"
	EventLoginFailure          = "ADMIN_LOGIN_FAILURE"
	EventLoginError            = "ADMIN_LOGIN_ERROR"
	EventPasswordChangeSuccess = "ADMIN_PASSWORD_CHANGE_SUCCESS"
	EventPasswordChangeFailure = "ADMIN_PASSWORD_CHANGE_FAILURE"
	EventPasswordChangeError   = "ADMIN_PASSWORD_CHANGE_ERROR"
)

// Activity is an account event handed to the ActivityRecorder.
type Activity struct {
	Type    string
	Message string
	AdminID string
	Details map[string]any
}

// ActivityRecorder persists account activity. Failures are the recorder's
// concern and never fail the operation that produced the activity.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, a Activity)
}

// LoginRequest carries credentials and the caller address for auditing.
type LoginRequest struct {
	Username   string
	Password   string
	RemoteAddr string
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Admin     Admin
}

// PasswordChange is a self-service password change.
type PasswordChange struct {
	Current    string
	New        string
	Confirm    string
	RemoteAddr string
}

// Service authenticates admins and manages their accounts.
type Service struct {
	store    Store
	tokens   *TokenIssuer
	recorder ActivityRecorder
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithRecorder sets the destination of account activity.
func WithRecorder(r ActivityRecorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewService constructs Service.
func NewService(store Store, tokens *TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("admin store is required")
	}
	if tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	svc := &Service{store: store, tokens: tokens}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Authenticate verifies a bearer token and reloads the account it names.
// Tokens of deleted admins are ErrInvalidToken; the role is taken from the
// store so demotion applies immediately.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	p, err := s.tokens.Verify(token)
	if err != nil {
		return Principal{}, err
	}
	admin, err := s.store.GetAdmin(ctx, p.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		return Principal{}, fmt.Errorf("%w: account no longer exists", ErrInvalidToken)
	case err != nil:
		return Principal{}, err
	}
	return Principal{ID: admin.ID, Username: admin.Username, Role: admin.Role}, nil
}

// Login checks credentials and issues a token. Unknown usernames and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return LoginResult{}, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	admin, err := s.store.AdminByUsername(ctx, username)
	switch {
	case errors.Is(err, ErrNotFound):
		s.record(ctx, Activity{
			Type:    EventLoginFailure,
			Message: fmt.Sprintf("Login attempt failed for username: %s. Reason: User not found.", username),
			Details: map[string]any{"username": username, "ipAddress": req.RemoteAddr},
		})
		return LoginResult{}, ErrInvalidCredentials
	case err != nil:
		s.loginError(ctx, username, req.RemoteAddr, err)
		return LoginResult{}, err
	}

	if err := VerifyPassword(admin.PasswordHash, req.Password); err != nil {
		s.record(ctx, Activity{
			Type:    EventLoginFailure,
			Message: fmt.Sprintf("Login attempt failed for username: %s (ID: %s). Reason: Incorrect password.", admin.Username, admin.ID),
			AdminID: admin.ID,
			Details: map[string]any{"username": admin.Username, "ipAddress": req.RemoteAddr},
		})
		return LoginResult{}, ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Issue(admin)
	if err != nil {
		s.loginError(ctx, username, req.RemoteAddr, err)
		return LoginResult{}, err
	}
	s.record(ctx, Activity{
		Type:    EventLoginSuccess,
		Message: fmt.Sprintf("Admin %s (ID: %s) logged in successfully.", admin.Username, admin.ID),
		AdminID: admin.ID,
		Details: map[string]any{"ipAddress": req.RemoteAddr},
	})
	return LoginResult{Token: token, ExpiresAt: exp, Admin: admin}, nil
}

func (s *Service) loginError(ctx context.Context, username, addr string, err error) {
	s.record(ctx, Activity{
		Type:    EventLoginError,
		Message: fmt.Sprintf("Server error during login attempt for username: %s.", username),
		Details: map[string]any{"error": err.Error(), "username": username, "ipAddress": addr},
	})
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, p Principal, req PasswordChange) error {
	if req.Current == "" || req.New == "" || req.Confirm == "" {
		return fmt.Errorf("%w: current password, new password and confirm password are required", ErrInvalidInput)
	}
	if req.New != req.Confirm {
		return fmt.Errorf("%w: new password and confirm password do not match", ErrInvalidInput)
	}
	if err := validatePassword(req.New); err != nil {
		return err
	}

	admin, err := s.store.GetAdmin(ctx, p.ID)
	if err != nil {
		return err
	}
	details := map[string]any{"ipAddress": req.RemoteAddr}
	if err := VerifyPassword(admin.PasswordHash, req.Current); err != nil {
		s.record(ctx, Activity{
			Type:    EventPasswordChangeFailure,
			Message: fmt.Sprintf("Password change attempt failed for %s (ID: %s). Reason: Incorrect current password.", admin.Username, admin.ID),
			AdminID: admin.ID,
			Details: details,
		})
		return fmt.Errorf("%w: incorrect current password", ErrInvalidCredentials)
	}

	hash, err := HashPassword(req.New)
	if err == nil {
		err = s.store.SetPasswordHash(ctx, admin.ID, hash)
	}
	if err != nil {
		details["error"] = err.Error()
		s.record(ctx, Activity{
			Type:    EventPasswordChangeError,
			Message: fmt.Sprintf("Server error during password change for %s (ID: %s).", admin.Username, admin.ID),
			AdminID: admin.ID,
			Details: details,
		})
		return err
	}
	s.record(ctx, Activity{
		Type:    EventPasswordChangeSuccess,
		Message: fmt.Sprintf("Password changed successfully for %s (ID: %s).", admin.Username, admin.ID),
		AdminID: admin.ID,
		Details: details,
	})
	return nil
}

// ListAdmins returns all accounts ordered by username.
func (s *Service) ListAdmins(ctx context.Context) ([]Admin, error) {
	return s.store.ListAdmins(ctx)
}

// GetAdmin loads one account.
func (s *Service) GetAdmin(ctx context.Context, id string) (Admin, error) {
	return s.store.GetAdmin(ctx, strings.TrimSpace(id))
}

// CreateAdmin registers a new account. Role defaults to administrator.
func (s *Service) CreateAdmin(ctx context.Context, in NewAdmin) (Admin, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return Admin{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	role, err := normalizeRole(in.Role)
	if err != nil {
		return Admin{}, err
	}
	if err := validatePassword(in.Password); err != nil {
		return Admin{}, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return Admin{}, err
	}
	return s.store.CreateAdmin(ctx, username, hash, role)
}

// UpdateAdmin changes username and/or role. An administrator cannot demote
// themselves, which keeps at least one administrator in place.
func (s *Service) UpdateAdmin(ctx context.Context, actor Principal, id string, upd AdminUpdate) (Admin, error) {
	id = strings.TrimSpace(id)
	if upd.Username == nil && upd.Role == nil {
		return Admin{}, fmt.Errorf("%w: no update fields provided", ErrInvalidInput)
	}
	if upd.Username != nil {
		name := strings.TrimSpace(*upd.Username)
		if name == "" {
			return Admin{}, fmt.Errorf("%w: username cannot be empty", ErrInvalidInput)
		}
		upd.Username = &name
	}
	if upd.Role != nil {
		role, err := normalizeRole(*upd.Role)
		if err != nil {
			return Admin{}, err
		}
		if id == actor.ID && role != RoleAdministrator {
			return Admin{}, fmt.Errorf("%w: cannot remove your own administrator role", ErrInvalidInput)
		}
		upd.Role = &role
	}
	return s.store.UpdateAdmin(ctx, id, upd)
}

// SetPassword resets another account's password.
func (s *Service) SetPassword(ctx context.Context, id, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.store.SetPasswordHash(ctx, strings.TrimSpace(id), hash)
}

// DeleteAdmin removes an account other than the caller's own.
func (s *Service) DeleteAdmin(ctx context.Context, actor Principal, id string) error {
	id = strings.TrimSpace(id)
	if id == actor.ID {
		return fmt.Errorf("%w: cannot delete your own account", ErrInvalidInput)
	}
	return s.store.DeleteAdmin(ctx, id)
}

// Bootstrap creates the initial administrator when no account exists yet.
// It reports whether an account was created.
func (s *Service) Bootstrap(ctx context.Context, username, password string) (bool, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return false, nil
	}
	n, err := s.store.CountAdmins(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.CreateAdmin(ctx, NewAdmin{Username: username, Password: password, Role: RoleAdministrator}); err != nil {
		if errors.Is(err, ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) record(ctx context.Context, a Activity) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordActivity(ctx, a)
}
