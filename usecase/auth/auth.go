package auth

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/pkg/backend/auth"
	"github.com/fastygo/places/usecase"
)

type UseCase struct {
	auth   usecase.Authenticator
	logger *zap.Logger
}

func New(a usecase.Authenticator, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		auth:   a,
		logger: logger,
	}
}

// Register creates the account and returns the session it signed in with.
func (uc *UseCase) Register(ctx context.Context, email, password, username string) (*domain.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "email and password are required")
	}
	var meta map[string]any
	if username = strings.TrimSpace(username); username != "" {
		meta = map[string]any{"username": username}
	}
	if err := uc.auth.SignUp(ctx, email, password, meta); err != nil {
		return nil, err
	}
	session := uc.auth.GetSession(ctx)
	if session == nil {
		uc.logger.Warn("account created without a session", zap.String("email", email))
		return nil, domain.ErrNotAuthenticated
	}
	uc.logger.Info("account registered", zap.String("user_id", session.UserID()))
	return session, nil
}

func (uc *UseCase) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	if err := uc.auth.SignInWithPassword(ctx, auth.Credentials{Email: strings.TrimSpace(email), Password: password}); err != nil {
		return nil, err
	}
	session := uc.auth.GetSession(ctx)
	if session == nil {
		return nil, domain.ErrNotAuthenticated
	}
	return session, nil
}

func (uc *UseCase) Logout(ctx context.Context) error {
	return uc.auth.SignOut(ctx)
}

func (uc *UseCase) ResetPassword(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return domain.NewError(domain.ErrCodeInvalid, "email is required")
	}
	return uc.auth.ResetPasswordForEmail(ctx, strings.TrimSpace(email))
}

// CurrentUser returns the signed-in user or domain.ErrNotAuthenticated.
func (uc *UseCase) CurrentUser(ctx context.Context) (*domain.User, error) {
	user := uc.auth.GetUser(ctx)
	if user == nil {
		return nil, domain.ErrNotAuthenticated
	}
	return user, nil
}
