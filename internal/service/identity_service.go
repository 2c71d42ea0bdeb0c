package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zephyr/internal/credentials"
	"zephyr/internal/events"
	"zephyr/internal/middleware"
	"zephyr/internal/models"
	"zephyr/internal/repository"
	"zephyr/internal/validation"
)

// SessionRevoker invalidates issued tokens before they expire.
type SessionRevoker interface {
	Revoke(ctx context.Context, claims *credentials.Claims) error
}

// Session is the result of a successful login or verification.
type Session struct {
	Token  string
	Claims *credentials.Claims
	User   *models.User
}

// SignupInput carries the account fields captured before OTP verification.
type SignupInput struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

// ProfileInput is a partial profile update. Nil fields are left unchanged.
type ProfileInput struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"display_name"`
}

// IdentityService owns signup, OTP verification, sessions and profiles.
type IdentityService struct {
	users   repository.UserRepository
	otps    repository.OTPRepository
	tx      repository.Transactor
	tokens  *credentials.TokenIssuer
	mailer  Mailer
	revoker SessionRevoker
	media   MediaStore
	events  EventPublisher
	now     func() time.Time
}

func NewIdentityService(
	users repository.UserRepository,
	otps repository.OTPRepository,
	tx repository.Transactor,
	tokens *credentials.TokenIssuer,
	mailer Mailer,
) *IdentityService {
	return &IdentityService{
		users:  users,
		otps:   otps,
		tx:     tx,
		tokens: tokens,
		mailer: mailer,
		now:    time.Now,
	}
}

// WithRevoker sets the token blacklist used by Logout.
func (s *IdentityService) WithRevoker(r SessionRevoker) *IdentityService {
	s.revoker = r
	return s
}

// WithMedia sets the store used for profile pictures.
func (s *IdentityService) WithMedia(m MediaStore) *IdentityService {
	s.media = m
	return s
}

// WithEvents sets the domain event publisher.
func (s *IdentityService) WithEvents(p EventPublisher) *IdentityService {
	s.events = p
	return s
}

// WithClock replaces the clock used for OTP windows.
func (s *IdentityService) WithClock(now func() time.Time) *IdentityService {
	s.now = now
	return s
}

// CheckExist reports whether an account already uses email.
func (s *IdentityService) CheckExist(ctx context.Context, email string) (bool, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return false, models.NewValidationError(err.Error())
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return u != nil, nil
}

// Signup stores a pending account and mails a verification code. The account
// is created only once the code is verified.
func (s *IdentityService) Signup(ctx context.Context, in SignupInput) error {
	in.Email = validation.NormalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.DisplayName = strings.TrimSpace(in.DisplayName)

	if err := validation.ValidateEmail(in.Email); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := validation.ValidateDisplayName(in.DisplayName); err != nil {
		return models.NewValidationError(err.Error())
	}
	if in.Password == "" {
		return models.NewValidationError("Password is required")
	}

	if existing, err := s.users.GetByEmail(ctx, in.Email); err != nil {
		return err
	} else if existing != nil {
		return models.NewConflictError("Email already registered")
	}
	if existing, err := s.users.GetByUsername(ctx, in.Username); err != nil {
		return err
	} else if existing != nil {
		return models.NewConflictError("Username already taken")
	}

	passwordHash, err := hashPassword(in.Password)
	if err != nil {
		return err
	}
	pending := &models.PendingSignup{
		Email:        in.Email,
		Purpose:      models.OTPPurposeSignup,
		Username:     in.Username,
		DisplayName:  in.DisplayName,
		PasswordHash: passwordHash,
	}
	return s.issueOTP(ctx, pending)
}

// ResendOTP regenerates the code for a pending challenge and restarts its window.
func (s *IdentityService) ResendOTP(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)
	pending, err := s.otps.Get(ctx, email)
	if err != nil {
		return err
	}
	if pending == nil {
		return models.NewNotFoundError("Pending verification", email)
	}
	return s.issueOTP(ctx, pending)
}

func (s *IdentityService) issueOTP(ctx context.Context, pending *models.PendingSignup) error {
	code, err := credentials.GenerateOTP()
	if err != nil {
		return models.NewInternalError(err)
	}
	hash, err := credentials.HashPassword(code)
	if err != nil {
		return models.NewInternalError(err)
	}
	pending.OTPHash = hash
	pending.GeneratedAt = s.now()
	if err := s.otps.Upsert(ctx, pending); err != nil {
		return err
	}
	if s.mailer == nil {
		return models.NewInternalError(fmt.Errorf("mailer not configured"))
	}
	if err := s.mailer.SendOTP(ctx, pending.Email, code); err != nil {
		middleware.Logger.ErrorContext(ctx, "otp mail failed",
			slog.String("purpose", string(pending.Purpose)),
			slog.String("error", err.Error()),
		)
		return models.NewInternalError(fmt.Errorf("send otp: %w", err))
	}
	return nil
}

// checkOTP loads the challenge for email and verifies code against it.
// An expired challenge is deleted before EXPIRED is returned.
func (s *IdentityService) checkOTP(ctx context.Context, email, code string, purpose models.OTPPurpose) (*models.PendingSignup, error) {
	pending, err := s.otps.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if pending == nil || pending.Purpose != purpose {
		return nil, models.NewNotFoundError("Pending verification", email)
	}
	if credentials.OTPExpired(pending.GeneratedAt, s.now()) {
		if err := s.otps.Delete(ctx, email); err != nil {
			return nil, err
		}
		return nil, models.NewAppError(models.CodeOTPExpired, "OTP expired")
	}
	if !credentials.CheckPassword(pending.OTPHash, strings.TrimSpace(code)) {
		return nil, models.NewAppError(models.CodeIncorrectOTP, "Incorrect OTP")
	}
	return pending, nil
}

// VerifyOTP completes a signup and opens a session for the new account.
func (s *IdentityService) VerifyOTP(ctx context.Context, email, code string) (*Session, error) {
	email = validation.NormalizeEmail(email)
	pending, err := s.checkOTP(ctx, email, code, models.OTPPurposeSignup)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:    pending.Username,
		DisplayName: pending.DisplayName,
		Email:       pending.Email,
		Password:    pending.PasswordHash,
		Status:      models.UserStatusOnline,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		return s.otps.Delete(ctx, email)
	})
	if err != nil {
		return nil, err
	}

	emit(ctx, s.events, events.Event{Type: events.UserSignedUp, ActorID: user.ID, SubjectID: user.ID})
	return s.openSession(user, credentials.RoleUser)
}

// Login authenticates a user by email and password.
func (s *IdentityService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if user.IsBlocked {
		return nil, models.NewForbiddenError("You are blocked by admin")
	}
	return s.openSession(user, credentials.RoleUser)
}

// AdminLogin authenticates an account flagged as admin.
func (s *IdentityService) AdminLogin(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin {
		return nil, models.NewUnauthorizedError("Invalid admin credentials")
	}
	return s.openSession(user, credentials.RoleAdmin)
}

func (s *IdentityService) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil || !credentials.CheckPassword(user.Password, password) {
		return nil, models.NewUnauthorizedError("Invalid email or password")
	}
	return user, nil
}

func (s *IdentityService) openSession(user *models.User, role credentials.Role) (*Session, error) {
	token, claims, err := s.tokens.Issue(user.ID, role)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user.Password = ""
	return &Session{Token: token, Claims: claims, User: user}, nil
}

// Logout revokes the session token. It succeeds when no blacklist is configured.
func (s *IdentityService) Logout(ctx context.Context, claims *credentials.Claims) error {
	if s.revoker == nil || claims == nil {
		return nil
	}
	if err := s.revoker.Revoke(ctx, claims); err != nil {
		return models.NewUnavailableError("Could not revoke session", err)
	}
	return nil
}

func (s *IdentityService) GetMe(ctx context.Context, userID uint) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile changes the username and display name.
func (s *IdentityService) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*models.User, error) {
	fields := map[string]any{}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if err := validation.ValidateDisplayName(name); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["display_name"] = name
	}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		existing, err := s.users.GetByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != userID {
			return nil, models.NewConflictError("Username already taken")
		}
		fields["username"] = username
	}
	if len(fields) == 0 {
		return nil, models.NewValidationError("Nothing to update")
	}
	if err := s.users.UpdateFields(ctx, userID, fields); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

// hashPassword reports an over-long password as a validation failure rather
// than an internal one.
func hashPassword(password string) (string, error) {
	hash, err := credentials.HashPassword(password)
	switch {
	case errors.Is(err, credentials.ErrSecretTooLong):
		return "", models.NewValidationError("Password must not exceed 72 bytes")
	case err != nil:
		return "", models.NewInternalError(err)
	}
	return hash, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *IdentityService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	if next == "" {
		return models.NewValidationError("New password is required")
	}
	user, err := s.users.GetWithPassword(ctx, userID)
	if err != nil {
		return err
	}
	if !credentials.CheckPassword(user.Password, current) {
		return models.NewValidationError("Current password is incorrect")
	}
	hash, err := hashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdateFields(ctx, userID, map[string]any{"password": hash})
}

func (s *IdentityService) UpdateStatus(ctx context.Context, userID uint, status models.UserStatus) (*models.User, error) {
	if !status.Valid() {
		return nil, models.NewValidationError("Status must be Online, Idle or DoNotDisturb")
	}
	if err := s.users.UpdateFields(ctx, userID, map[string]any{"status": status}); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

// UploadProfilePicture normalizes and stores a new avatar.
func (s *IdentityService) UploadProfilePicture(ctx context.Context, userID uint, data []byte) (*models.User, error) {
	if s.media == nil {
		return nil, models.NewUnavailableError("Media storage not configured", nil)
	}
	url, err := s.media.UploadPicture(ctx, fmt.Sprintf("avatars/%d", userID), data)
	if err != nil {
		return nil, mediaError(err)
	}
	if err := s.users.UpdateFields(ctx, userID, map[string]any{"profile_picture": url}); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

// ForgotPassword mails a recovery code to an existing account.
func (s *IdentityService) ForgotPassword(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return models.NewNotFoundError("User", email)
	}
	return s.issueOTP(ctx, &models.PendingSignup{Email: email, Purpose: models.OTPPurposeReset})
}

// ResetPassword sets a new password once the recovery code checks out.
func (s *IdentityService) ResetPassword(ctx context.Context, email, code, password string) error {
	email = validation.NormalizeEmail(email)
	if password == "" {
		return models.NewValidationError("Password is required")
	}
	if _, err := s.checkOTP(ctx, email, code, models.OTPPurposeReset); err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return models.NewNotFoundError("User", email)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.users.UpdateFields(ctx, user.ID, map[string]any{"password": hash}); err != nil {
			return err
		}
		return s.otps.Delete(ctx, email)
	})
}

// ListUsers is the user directory, optionally filtered by search.
func (s *IdentityService) ListUsers(ctx context.Context, search string) ([]models.User, error) {
	return s.users.Search(ctx, repository.UserQuery{
		Search:         search,
		ExcludeBlocked: true,
		Limit:          100,
	})
}
