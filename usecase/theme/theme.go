package theme

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/pkg/backend/session"
	"github.com/fastygo/places/usecase"
)

// StorageKey is where the preference is persisted.
const StorageKey = "themeMode"

type UseCase struct {
	store  usecase.KeyValueStore
	logger *zap.Logger
}

func New(store usecase.KeyValueStore, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{store: store, logger: logger}
}

// Mode returns the saved preference, ThemeSystem when none or unreadable.
func (uc *UseCase) Mode(ctx context.Context) domain.ThemeMode {
	raw, err := uc.store.Get(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			uc.logger.Warn("failed to load theme preference", zap.Error(err))
		}
		return domain.ThemeSystem
	}
	mode := domain.ThemeMode(raw)
	if !mode.Valid() {
		return domain.ThemeSystem
	}
	return mode
}

func (uc *UseCase) SetMode(ctx context.Context, mode domain.ThemeMode) error {
	if !mode.Valid() {
		return domain.ErrInvalidTheme
	}
	return uc.store.Set(ctx, StorageKey, []byte(mode))
}

// Theme resolves the saved mode against the platform preference.
func (uc *UseCase) Theme(ctx context.Context, systemDark bool) domain.ThemeMode {
	return uc.Mode(ctx).Resolve(systemDark)
}

// Toggle flips the effective theme between light and dark and saves the
// explicit choice, leaving system mode.
func (uc *UseCase) Toggle(ctx context.Context, systemDark bool) (domain.ThemeMode, error) {
	next := domain.ThemeDark
	if uc.Theme(ctx, systemDark) == domain.ThemeDark {
		next = domain.ThemeLight
	}
	if err := uc.SetMode(ctx, next); err != nil {
		return "", err
	}
	return next, nil
}
