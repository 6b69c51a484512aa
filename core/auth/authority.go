package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/TheManchineel/titilda-music/logger"
	"github.com/TheManchineel/titilda-music/model"
	"github.com/TheManchineel/titilda-music/repository"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers every reason a token is rejected. Callers
	// must not learn which check failed.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrRevocationFailed means the watermark could not be persisted.
	ErrRevocationFailed = errors.New("failed to invalidate sessions")
	// ErrUserExists is returned by Register for a taken username.
	ErrUserExists = errors.New("username already taken")
)

// Authority issues and validates session tokens. A token is a HS256 JWT
// carrying sub, iat and exp. Revocation is a per-user watermark: a token
// whose iat is before the user's last session invalidation is dead.
type Authority struct {
	users  repository.UserRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthority creates an Authority signing with secret. ttl is the
// validity window of tokens created by IssueSession.
func NewAuthority(users repository.UserRepository, secret string, ttl time.Duration) *Authority {
	return &Authority{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL is the validity window of session tokens.
func (a *Authority) TTL() time.Duration {
	return a.ttl
}

// Issue signs a token for user valid from issuedAt until expiresAt.
func (a *Authority) Issue(user *model.User, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   user.Username,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// IssueSession issues a login token valid from now for the configured TTL.
func (a *Authority) IssueSession(user *model.User) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.ttl)
	token, err := a.Issue(user, now, expiresAt)
	return token, expiresAt, err
}

func (a *Authority) secondNow() time.Time {
	return a.now().Truncate(time.Second)
}

func (a *Authority) keyFunc(t *jwt.Token) (interface{}, error) {
	return a.secret, nil
}

// Validate resolves a token to its user. Any token problem yields
// ErrInvalidToken; a storage failure during the user lookup is returned
// wrapped so it can be reported as a server error.
func (a *Authority) Validate(ctx context.Context, raw string) (*model.User, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, a.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		// exp is in whole seconds and a token is still valid at exactly
		// exp; jwt only accepts now < exp, so compare on second boundaries
		// with one second of leeway.
		jwt.WithTimeFunc(a.secondNow),
		jwt.WithLeeway(time.Second),
	)
	if err != nil {
		logger.Debug("[Auth] token rejected", logger.ErrorField(err))
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" || claims.IssuedAt == nil || claims.IssuedAt.Unix() < 0 {
		logger.Debug("[Auth] token rejected: missing sub or iat")
		return nil, ErrInvalidToken
	}

	user, err := a.users.GetUserByUsername(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token subject: %w", err)
	}
	if user == nil {
		logger.Debug("[Auth] token rejected: unknown subject", logger.String("username", claims.Subject))
		return nil, ErrInvalidToken
	}

	if user.LastSessionInvalidation.Unix() > claims.IssuedAt.Unix() {
		logger.Debug("[Auth] token rejected: revoked", logger.String("username", user.Username))
		return nil, ErrInvalidToken
	}
	return user, nil
}

// RevokeAllSessions moves the user's watermark to now, which kills every
// token issued in an earlier second, the caller's own included.
func (a *Authority) RevokeAllSessions(ctx context.Context, user *model.User) error {
	at := a.now().Truncate(time.Second)
	if err := a.users.SetSessionInvalidation(ctx, user.Username, at); err != nil {
		logger.Error("[Auth] session invalidation failed",
			logger.String("username", user.Username), logger.ErrorField(err))
		return fmt.Errorf("%w: %v", ErrRevocationFailed, err)
	}
	if at.After(user.LastSessionInvalidation) {
		user.LastSessionInvalidation = at
	}
	logger.Info("[Auth] all sessions invalidated", logger.String("username", user.Username))
	return nil
}

// ValidateCredentials returns the user if password matches, and nil, nil
// for an unknown user or a wrong password alike.
func (a *Authority) ValidateCredentials(ctx context.Context, username, password string) (*model.User, error) {
	user, err := a.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Spend the same bcrypt work as a real comparison.
		CheckPasswordHash(password, a.dummyPasswordHash())
		return nil, nil
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return nil, nil
	}
	return user, nil
}

func (a *Authority) dummyPasswordHash() string {
	a.dummyOnce.Do(func() {
		a.dummyHash, _ = HashPassword("titilda-music")
	})
	return a.dummyHash
}

// Register creates an account. The watermark starts at the signup time.
func (a *Authority) Register(ctx context.Context, username, password, fullName string) (*model.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Username:                username,
		PasswordHash:            hash,
		FullName:                fullName,
		LastSessionInvalidation: a.now().Truncate(time.Second),
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	logger.Info("[Auth] user registered", logger.String("username", username))
	return user, nil
}
