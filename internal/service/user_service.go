package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"parentslist/internal/middleware"
	"parentslist/internal/models"
	"parentslist/internal/repository"
	"parentslist/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const (
	emailConfirmationTTL = 48 * time.Hour
	passwordResetTTL     = time.Hour
)

// FieldCodec encrypts identifying fields for storage.
type FieldCodec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Mailer delivers the single-use tokens of the email flows.
type Mailer interface {
	SendEmailConfirmation(ctx context.Context, userID uint, email, token string, expiresAt time.Time) error
	SendPasswordReset(ctx context.Context, userID uint, email, token string, expiresAt time.Time) error
}

// PersonalInformation is the plaintext view of a user's identity record.
type PersonalInformation struct {
	Name           string  `json:"name"`
	FirstName      string  `json:"first_name"`
	Email          *string `json:"email,omitempty"`
	EmailConfirmed bool    `json:"is_email_confirmed"`
}

// UserService handles accounts, their encrypted personal information and the
// email confirmation and password reset flows.
type UserService struct {
	store      repository.Store
	uow        repository.UnitOfWork
	codec      FieldCodec
	mailer     Mailer
	bcryptCost int
	now        func() time.Time
}

// NewUserService returns a new UserService. A nil codec disables personal
// information storage. A nil mailer drops outgoing mail.
func NewUserService(store repository.Store, uow repository.UnitOfWork, codec FieldCodec, mailer Mailer) *UserService {
	return &UserService{
		store:      store,
		uow:        uow,
		codec:      codec,
		mailer:     mailer,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// Signup creates an account with a bcrypt-hashed password.
func (s *UserService) Signup(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if _, err := s.store.Users.GetByUsername(ctx, username); err == nil {
		return nil, models.NewConflictError("username already taken")
	} else if !models.IsCode(err, models.CodeNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{Username: username, Password: string(hash)}
	if err := s.store.Users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks a username and password pair.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.store.Users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("invalid credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("invalid credentials")
	}
	return user, nil
}

// GetUser returns a user by id.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.store.Users.GetByID(ctx, id)
}

// SaveInformation stores the user's personal information, encrypted. A user
// has at most one record.
func (s *UserService) SaveInformation(ctx context.Context, userID uint, in PersonalInformation) error {
	if s.codec == nil {
		return models.NewPreconditionFailedError("personal information storage is not configured")
	}
	if err := validation.ValidatePersonName("name", in.Name); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePersonName("first_name", in.FirstName); err != nil {
		return models.NewValidationError(err.Error())
	}
	if in.Email != nil {
		if err := validation.ValidateEmail(strings.TrimSpace(*in.Email)); err != nil {
			return models.NewValidationError(err.Error())
		}
	}

	info := &models.UserInformation{UserID: userID}
	var err error
	if info.EncryptedName, err = s.codec.Encrypt(strings.TrimSpace(in.Name)); err != nil {
		return models.NewInternalError(err)
	}
	if info.EncryptedFirstName, err = s.codec.Encrypt(strings.TrimSpace(in.FirstName)); err != nil {
		return models.NewInternalError(err)
	}
	if in.Email == nil {
		return s.store.UserInformation.Create(ctx, info)
	}

	email := strings.TrimSpace(*in.Email)
	sealed, err := s.codec.Encrypt(email)
	if err != nil {
		return models.NewInternalError(err)
	}
	info.EncryptedEmail = &sealed

	var issued *issuedToken
	err = s.uow.Do(ctx, "save_information", func(ctx context.Context, st repository.Store) error {
		if err := st.UserInformation.Create(ctx, info); err != nil {
			return err
		}
		var err error
		issued, err = s.issueToken(ctx, st, userID, models.TokenPurposeEmailConfirmation, emailConfirmationTTL)
		return err
	})
	if err != nil {
		return err
	}
	s.deliver(ctx, issued, email)
	return nil
}

// GetInformation returns the decrypted personal information of a user.
func (s *UserService) GetInformation(ctx context.Context, userID uint) (*PersonalInformation, error) {
	if s.codec == nil {
		return nil, models.NewPreconditionFailedError("personal information storage is not configured")
	}

	info, err := s.store.UserInformation.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &PersonalInformation{EmailConfirmed: info.EmailConfirmed}
	if out.Name, err = s.codec.Decrypt(info.EncryptedName); err != nil {
		return nil, models.NewInternalError(err)
	}
	if out.FirstName, err = s.codec.Decrypt(info.EncryptedFirstName); err != nil {
		return nil, models.NewInternalError(err)
	}
	if info.EncryptedEmail != nil {
		email, err := s.codec.Decrypt(*info.EncryptedEmail)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		out.Email = &email
	}
	return out, nil
}

// SetEmail adds or replaces the user's email. The new address is unconfirmed
// until the token mailed to it is redeemed with ConfirmEmail. Earlier
// confirmation tokens stop working.
func (s *UserService) SetEmail(ctx context.Context, userID uint, email string) error {
	if s.codec == nil {
		return models.NewPreconditionFailedError("personal information storage is not configured")
	}
	email = strings.TrimSpace(email)
	if err := validation.ValidateEmail(email); err != nil {
		return models.NewValidationError(err.Error())
	}
	sealed, err := s.codec.Encrypt(email)
	if err != nil {
		return models.NewInternalError(err)
	}

	var issued *issuedToken
	err = s.uow.Do(ctx, "set_email", func(ctx context.Context, st repository.Store) error {
		if err := st.UserInformation.SetEmail(ctx, userID, sealed); err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return models.NewPreconditionFailedError("personal information must be saved first")
			}
			return err
		}
		var err error
		issued, err = s.issueToken(ctx, st, userID, models.TokenPurposeEmailConfirmation, emailConfirmationTTL)
		return err
	})
	if err != nil {
		return err
	}
	s.deliver(ctx, issued, email)
	return nil
}

// ConfirmEmail redeems an email confirmation token.
func (s *UserService) ConfirmEmail(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return models.NewValidationError("token is required")
	}
	return s.uow.Do(ctx, "confirm_email", func(ctx context.Context, st repository.Store) error {
		t, err := s.redeem(ctx, st, models.TokenPurposeEmailConfirmation, token)
		if err != nil {
			return err
		}
		return st.UserInformation.ConfirmEmail(ctx, t.UserID)
	})
}

// RequestPasswordReset mails a reset token to the user's confirmed email.
// Unknown users and users without a confirmed email get nothing, and the
// caller cannot tell the difference.
func (s *UserService) RequestPasswordReset(ctx context.Context, username string) error {
	if s.codec == nil {
		return models.NewPreconditionFailedError("personal information storage is not configured")
	}

	user, err := s.store.Users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			middleware.Logger.InfoContext(ctx, "password reset requested for unknown user")
			return nil
		}
		return err
	}
	info, err := s.store.UserInformation.GetByUserID(ctx, user.ID)
	if err != nil && !models.IsCode(err, models.CodeNotFound) {
		return err
	}
	if info == nil || info.EncryptedEmail == nil || !info.EmailConfirmed {
		middleware.Logger.InfoContext(ctx, "password reset requested without a confirmed email",
			slog.Uint64("user_id", uint64(user.ID)),
		)
		return nil
	}
	email, err := s.codec.Decrypt(*info.EncryptedEmail)
	if err != nil {
		return models.NewInternalError(err)
	}

	var issued *issuedToken
	err = s.uow.Do(ctx, "request_password_reset", func(ctx context.Context, st repository.Store) error {
		var err error
		issued, err = s.issueToken(ctx, st, user.ID, models.TokenPurposePasswordReset, passwordResetTTL)
		return err
	})
	if err != nil {
		return err
	}
	s.deliver(ctx, issued, email)
	return nil
}

// ResetPassword redeems a reset token and replaces the user's password.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return models.NewValidationError("token is required")
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError(err.Error())
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return models.NewInternalError(err)
	}

	return s.uow.Do(ctx, "reset_password", func(ctx context.Context, st repository.Store) error {
		t, err := s.redeem(ctx, st, models.TokenPurposePasswordReset, token)
		if err != nil {
			return err
		}
		if err := st.Users.UpdatePassword(ctx, t.UserID, string(hash)); err != nil {
			return err
		}
		return st.UserTokens.RevokeOutstanding(ctx, t.UserID, models.TokenPurposePasswordReset, s.now())
	})
}

type issuedToken struct {
	userID    uint
	purpose   models.TokenPurpose
	secret    string
	expiresAt time.Time
}

// issueToken revokes the user's outstanding tokens for purpose and stores a new one.
func (s *UserService) issueToken(ctx context.Context, st repository.Store, userID uint, purpose models.TokenPurpose, ttl time.Duration) (*issuedToken, error) {
	secret, hash, err := newSecretToken()
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	now := s.now()
	if err := st.UserTokens.RevokeOutstanding(ctx, userID, purpose, now); err != nil {
		return nil, err
	}
	t := &models.UserToken{
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: hash,
		ExpiresAt: now.Add(ttl),
	}
	if err := st.UserTokens.Create(ctx, t); err != nil {
		return nil, err
	}
	return &issuedToken{userID: userID, purpose: purpose, secret: secret, expiresAt: t.ExpiresAt}, nil
}

// redeem marks a token as used. Unknown, expired and spent tokens all fail
// with the same UNAUTHORIZED error.
func (s *UserService) redeem(ctx context.Context, st repository.Store, purpose models.TokenPurpose, secret string) (*models.UserToken, error) {
	invalid := models.NewUnauthorizedError("invalid or expired token")

	t, err := st.UserTokens.GetByHash(ctx, purpose, hashToken(secret))
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	now := s.now()
	if !t.Usable(now) {
		return nil, invalid
	}
	if err := st.UserTokens.MarkUsed(ctx, t.ID, now); err != nil {
		if models.IsCode(err, models.CodeConflict) {
			return nil, invalid
		}
		return nil, err
	}
	return t, nil
}

// deliver hands a committed token to the mailer. Failures are logged; the
// user can ask for a new token.
func (s *UserService) deliver(ctx context.Context, t *issuedToken, email string) {
	if s.mailer == nil {
		middleware.Logger.WarnContext(ctx, "no mailer configured, token not sent",
			slog.Uint64("user_id", uint64(t.userID)),
			slog.String("purpose", string(t.purpose)),
		)
		return
	}

	var err error
	switch t.purpose {
	case models.TokenPurposeEmailConfirmation:
		err = s.mailer.SendEmailConfirmation(ctx, t.userID, email, t.secret, t.expiresAt)
	case models.TokenPurposePasswordReset:
		err = s.mailer.SendPasswordReset(ctx, t.userID, email, t.secret, t.expiresAt)
	}
	if err != nil {
		middleware.Logger.WarnContext(ctx, "mail delivery failed",
			slog.Uint64("user_id", uint64(t.userID)),
			slog.String("purpose", string(t.purpose)),
			slog.String("error", err.Error()),
		)
	}
}

// newSecretToken returns a URL-safe random secret and the digest stored for it.
func newSecretToken() (secret, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	secret = base64.RawURLEncoding.EncodeToString(buf)
	return secret, hashToken(secret), nil
}

func hashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
