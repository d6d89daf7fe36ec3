// Package services implements the two-step authentication flows and the
// abuse-prevention pieces they rely on: rate limiting, single-use
// verification codes and account lockout.
package services

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/dmitrijs2005/voiceauth/internal/clockx"
	"github.com/dmitrijs2005/voiceauth/internal/common"
	"github.com/dmitrijs2005/voiceauth/internal/dbx"
	"github.com/dmitrijs2005/voiceauth/internal/logging"
	"github.com/dmitrijs2005/voiceauth/internal/server/auth"
	"github.com/dmitrijs2005/voiceauth/internal/server/config"
	"github.com/dmitrijs2005/voiceauth/internal/server/email"
	"github.com/dmitrijs2005/voiceauth/internal/server/models"
	"github.com/dmitrijs2005/voiceauth/internal/server/repositories/repomanager"
)

const (
	msgCodeSent        = "verification code sent to your email"
	msgResendGeneric   = "if the account exists, a verification code has been sent"
	msgBadCredentials  = "email or password incorrect"
	msgUserNotFound    = "user not found"
	msgInvalidCode     = "invalid or expired verification code"
	msgDeliveryFailure = "could not send the email, please try again"
)

// MessageResult is returned by the flows that end by sending a code.
type MessageResult struct {
	Message           string
	RemainingAttempts *int
}

// TokenResult carries a freshly minted bearer token.
type TokenResult struct {
	AccessToken string
	TokenType   string
}

type AuthService struct {
	db      dbx.Transactor
	repos   repomanager.RepositoryManager
	limiter *RateLimiter
	codes   *CodeRegistry
	lockout *Lockout
	tokens  *auth.TokenIssuer
	hasher  auth.PasswordHasher
	sender  email.Sender
	policy  config.Policy
	clock   clockx.Clock
	logger  logging.Logger
}

func NewAuthService(db dbx.Transactor, repos repomanager.RepositoryManager, cfg *config.Config,
	tokens *auth.TokenIssuer, sender email.Sender, clock clockx.Clock, logger logging.Logger) *AuthService {
	p := cfg.Policy
	return &AuthService{
		db:      db,
		repos:   repos,
		limiter: NewRateLimiter(db, repos, clock),
		codes:   NewCodeRegistry(db, repos, clock, p.CodeTTL, nil),
		lockout: NewLockout(db, repos, clock, p.MaxFailedLogins, p.LockDuration),
		tokens:  tokens,
		hasher:  auth.NewBcryptHasher(cfg.BcryptCost),
		sender:  sender,
		policy:  p,
		clock:   clock,
		logger:  logger.With("component", "auth"),
	}
}

// internal logs an unexpected fault and returns the sanitized error.
func (s *AuthService) internal(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, "auth flow failed", "op", op, "error", err)
	return common.ErrorInternal
}

func rateLimited(msg string, d Decision) error {
	return common.NewAuthError(common.ErrRateLimited, msg).WithRetryAfter(d.RetryAfter)
}

func (s *AuthService) lookupUser(ctx context.Context, db dbx.DBTX, email string) (*models.User, error) {
	user, err := s.repos.Users(db).GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// reserveEmail takes one email_send slot for addr. Callers reserve before
// deliverCode so that concurrent requests cannot send past the limit.
func (s *AuthService) reserveEmail(ctx context.Context, op, addr string) (Decision, error) {
	d, err := s.limiter.Reserve(ctx, addr, models.ActionEmailSend, s.policy.EmailSend())
	if err != nil {
		return Decision{}, s.internal(ctx, op, fmt.Errorf("reserve email send: %w", err))
	}
	if !d.Allowed {
		return Decision{}, rateLimited("too many codes sent to this email, try again later", d)
	}
	return d, nil
}

// deliverCode issues a fresh code and hands it to the sender. A failed send
// leaves the code in place.
func (s *AuthService) deliverCode(ctx context.Context, op, email string, purpose models.Purpose) error {
	code, err := s.codes.Issue(ctx, email, purpose)
	if err != nil {
		return s.internal(ctx, op, fmt.Errorf("issue code: %w", err))
	}
	if err := s.sender.Send(ctx, email, code); err != nil {
		s.logger.Error(ctx, "verification code delivery failed", "op", op, "email", email, "error", err)
		return common.NewAuthError(common.ErrDeliveryFailure, msgDeliveryFailure)
	}
	s.logger.Info(ctx, "verification code issued", "op", op, "email", email, "purpose", purpose)
	return nil
}

func (s *AuthService) mint(ctx context.Context, op string, user *models.User) (*TokenResult, error) {
	token, err := s.tokens.Mint(user.ID, user.Email)
	if err != nil {
		return nil, s.internal(ctx, op, fmt.Errorf("mint token: %w", err))
	}
	return &TokenResult{AccessToken: token, TokenType: "bearer"}, nil
}

// Register creates or refreshes an unverified account and mails it a
// registration code.
func (s *AuthService) Register(ctx context.Context, clientIP, rawEmail, password string) (*MessageResult, error) {
	const op = "register"
	addr := common.NormalizeEmail(rawEmail)
	conn := s.db.Conn()

	ipDecision, err := s.limiter.Evaluate(ctx, clientIP, models.ActionRegisterAttempt, s.policy.Register())
	if err != nil {
		return nil, s.internal(ctx, op, err)
	}
	if !ipDecision.Allowed {
		return nil, rateLimited("too many registration attempts, try again later", ipDecision)
	}

	existing, err := s.lookupUser(ctx, conn, addr)
	if err != nil {
		return nil, s.internal(ctx, op, err)
	}
	if existing != nil && existing.IsVerified {
		d, err := s.limiter.Reserve(ctx, clientIP, models.ActionRegisterAttempt, s.policy.Register())
		if err != nil {
			return nil, s.internal(ctx, op, err)
		}
		if !d.Allowed {
			return nil, rateLimited("too many registration attempts, try again later", d)
		}
		return nil, common.NewAuthError(common.ErrConflict, "email already registered")
	}

	emailDecision, err := s.limiter.Evaluate(ctx, addr, models.ActionEmailSend, s.policy.EmailSend())
	if err != nil {
		return nil, s.internal(ctx, op, err)
	}
	if !emailDecision.Allowed {
		return nil, rateLimited("too many codes sent to this email, try again later", emailDecision)
	}

	if utf8.RuneCountInString(password) < s.policy.MinPasswordLength {
		return nil, common.NewAuthError(common.ErrorValidation,
			fmt.Sprintf("password must be at least %d characters", s.policy.MinPasswordLength))
	}

	// Both quotas are taken before the hash and the write.
	ipDecision, err = s.limiter.Reserve(ctx, clientIP, models.ActionRegisterAttempt, s.policy.Register())
	if err != nil {
		return nil, s.internal(ctx, op, err)
	}
	if !ipDecision.Allowed {
		return nil, rateLimited("too many registration attempts, try again later", ipDecision)
	}
	if _, err := s.reserveEmail(ctx, op, addr); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, common.ErrorValidation) {
			return nil, common.NewAuthError(common.ErrorValidation, "password is too long")
		}
		return nil, s.internal(ctx, op, err)
	}

	if _, err := s.repos.Users(conn).CreateOrUpdatePassword(ctx, addr, hash, s.clock.Now()); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, common.NewAuthError(common.ErrConflict, "email already registered")
		}
		return nil, s.internal(ctx, op, err)
	}

	if err := s.deliverCode(ctx, op, addr, models.PurposeRegister); err != nil {
		return nil, err
	}

	remaining := ipDecision.Remaining
	return &MessageResult{Message: msgCodeSent, RemainingAttempts: &remaining}, nil
}

// VerifyRegister consumes a registration code, marks the account verified
// and returns a token.
func (s *AuthService) VerifyRegister(ctx context.Context, rawEmail, code string) (*TokenResult, error) {
	const op = "verify_register"
	addr := common.NormalizeEmail(rawEmail)

	user, err := s.lookupUser(ctx, s.db.Conn(), addr)
	if err != nil {
		return nil, s.internal(ctx, op, err)
	}
	if user == nil {
		return nil, common.NewAuthError(common.ErrorNotFound, msgUserNotFound)
	}
	if user.IsVerified {
		return nil, common.NewAuthError(common.ErrAlreadyVerified, "account already verified")
	}

	var consumed bool
	err = s.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		consumed, err = s.codes.verifyOn(ctx, tx, addr, code, models.PurposeRegister)
		if err != nil || !consumed {
			return err
		}
		return s.repos.Users(tx).MarkVerified(ctx, user.ID)
	})
	if err != nil {
		return nil, s.internal(ctx, op, err)
	}
	if !consumed {
		return nil, common.NewAuthError(common.ErrInvalidOrExpiredCode, msgInvalidCode)
	}

	user.IsVerified = true
	s.logger.Info(ctx, "account verified", "user_id", user.ID)
	return s.mint(ctx, op, user)
}

// Login checks the password and, when it matches, mails a login code.
func (s *AuthService) Login(ctx context.Context, clientIP, rawEmail, password string) (*MessageResult, error) {
	const op = "login"
	addr := common.NormalizeEmail(rawEmail)

	ipDecision, err := s.limiter.Evaluate(ctx, clientIP, models.ActionLoginAttempt, s.policy.Login())
	if err != nil {
		return nil, s.internal(ctx, op, err)
	}
	if !ipDecision.Allowed {
		return nil, rateLimited("too many login attempts, try again later", ipDecision)
	}

	// reserveAttempt charges the IP before the password is looked at. A
	// matching password gives the attempt back through Reset.
	reserveAttempt := func() error {
		d, err := s.limiter.Reserve(ctx, clientIP, models.ActionLoginAttempt, s.policy.Login())
		if err != nil {
			return s.internal(ctx, op, err)
		}
		if !d.Allowed {
			return rateLimited("too many login attempts, try again later", d)
		}
		ipDecision = d
		return nil
	}
	badCredentials := func() error {
		return common.NewAuthError(common.ErrInvalidCredential, msgBadCredentials).WithRemaining(ipDecision.Remaining)
	}

	user, err := s.lookupUser(ctx, s.db.Conn(), addr)
	if err != nil {
		return nil, s.internal(ctx, op, err)
	}
	if user == nil {
		if err := reserveAttempt(); err != nil {
			return nil, err
		}
		return nil, badCredentials()
	}

	state, err := s.lockout.CheckAndUnlock(ctx, user)
	if err != nil {
		return nil, s.internal(ctx, op, err)
	}
	if state == LockLocked {
		ae := common.NewAuthError(common.ErrAccountLocked, "account locked after too many failed attempts, try again later")
		if user.LockedUntil != nil {
			ae = ae.WithLockedUntil(*user.LockedUntil)
		}
		return nil, ae
	}

	if !user.IsVerified {
		return nil, common.NewAuthError(common.ErrNotVerified, "email not verified, complete registration first")
	}

	if err := reserveAttempt(); err != nil {
		return nil, err
	}

	if !s.hasher.Compare(user.PasswordHash, password) {
		locked, until, err := s.lockout.RegisterFailure(ctx, user)
		if err != nil {
			return nil, s.internal(ctx, op, err)
		}
		if locked {
			s.logger.Warn(ctx, "account locked", "user_id", user.ID, "until", until)
			return nil, common.NewAuthError(common.ErrAccountLocked,
				fmt.Sprintf("account locked for %s after too many failed attempts", s.policy.LockDuration)).
				WithLockedUntil(until)
		}
		return nil, badCredentials()
	}

	if err := s.limiter.Reset(ctx, clientIP, models.ActionLoginAttempt); err != nil {
		return nil, s.internal(ctx, op, err)
	}

	if _, err := s.reserveEmail(ctx, op, addr); err != nil {
		return nil, err
	}

	if err := s.repos.Users(s.db.Conn()).ResetFailedLogins(ctx, user.ID); err != nil {
		return nil, s.internal(ctx, op, err)
	}

	if err := s.deliverCode(ctx, op, addr, models.PurposeLogin); err != nil {
		return nil, err
	}

	return &MessageResult{Message: msgCodeSent}, nil
}

// VerifyLogin consumes a login code and returns a token.
func (s *AuthService) VerifyLogin(ctx context.Context, clientIP, rawEmail, code string) (*TokenResult, error) {
	const op = "verify_login"
	addr := common.NormalizeEmail(rawEmail)

	// Every attempt is charged up front; a consumed code gives it back.
	ipDecision, err := s.limiter.Reserve(ctx, clientIP, models.ActionVerifyAttempt, s.policy.Verify())
	if err != nil {
		return nil, s.internal(ctx, op, err)
	}
	if !ipDecision.Allowed {
		return nil, rateLimited("too many verification attempts, try again later", ipDecision)
	}

	user, err := s.lookupUser(ctx, s.db.Conn(), addr)
	if err != nil {
		return nil, s.internal(ctx, op, err)
	}
	if user == nil {
		return nil, common.NewAuthError(common.ErrorNotFound, msgUserNotFound)
	}

	ok, err := s.codes.Verify(ctx, addr, code, models.PurposeLogin)
	if err != nil {
		return nil, s.internal(ctx, op, err)
	}
	if !ok {
		return nil, common.NewAuthError(common.ErrInvalidOrExpiredCode, msgInvalidCode)
	}

	if err := s.limiter.Reset(ctx, clientIP, models.ActionVerifyAttempt); err != nil {
		return nil, s.internal(ctx, op, err)
	}
	if err := s.limiter.Reset(ctx, addr, models.ActionEmailSend); err != nil {
		return nil, s.internal(ctx, op, err)
	}

	s.logger.Info(ctx, "login verified", "user_id", user.ID)
	return s.mint(ctx, op, user)
}

// ResendCode mails a new code of the purpose matching the account state.
// An unknown email gets the same generic success as a sent code.
func (s *AuthService) ResendCode(ctx context.Context, rawEmail, password string) (*MessageResult, error) {
	const op = "resend_code"
	addr := common.NormalizeEmail(rawEmail)

	decision, err := s.limiter.Evaluate(ctx, addr, models.ActionEmailSend, s.policy.EmailSend())
	if err != nil {
		return nil, s.internal(ctx, op, err)
	}
	if !decision.Allowed {
		return nil, rateLimited("too many codes sent to this email, try again later", decision)
	}

	user, err := s.lookupUser(ctx, s.db.Conn(), addr)
	if err != nil {
		return nil, s.internal(ctx, op, err)
	}
	if user == nil {
		return &MessageResult{Message: msgResendGeneric}, nil
	}

	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, common.NewAuthError(common.ErrInvalidCredential, "incorrect password")
	}

	purpose := models.PurposeLogin
	if !user.IsVerified {
		purpose = models.PurposeRegister
	}

	decision, err = s.reserveEmail(ctx, op, addr)
	if err != nil {
		return nil, err
	}
	if err := s.deliverCode(ctx, op, addr, purpose); err != nil {
		return nil, err
	}

	remaining := decision.Remaining
	return &MessageResult{Message: msgCodeSent, RemainingAttempts: &remaining}, nil
}

// CurrentUser resolves a bearer token to a verified, unlocked account.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	const op = "current_user"

	claims, ok := s.tokens.Validate(token)
	if !ok {
		return nil, common.NewAuthError(common.ErrInvalidToken, "invalid or expired token")
	}

	user, err := s.repos.Users(s.db.Conn()).GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewAuthError(common.ErrorUnauthorized, msgUserNotFound)
		}
		return nil, s.internal(ctx, op, err)
	}

	if !user.IsVerified {
		return nil, common.NewAuthError(common.ErrNotVerified, "email not verified")
	}
	if user.LockActive(s.clock.Now()) {
		ae := common.NewAuthError(common.ErrAccountLocked, "account locked")
		if user.LockedUntil != nil {
			ae = ae.WithLockedUntil(*user.LockedUntil)
		}
		return nil, ae
	}

	return user, nil
}
