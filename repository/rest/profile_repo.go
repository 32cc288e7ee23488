package rest

import (
	"context"
	"fmt"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/repository"
)

type profileRepository struct {
	tables Tables
}

// NewProfileRepository returns a ProfileRepository backed by the profiles table.
func NewProfileRepository(tables Tables) repository.ProfileRepository {
	return &profileRepository{tables: tables}
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	row, err := r.tables.From(TableProfiles).Eq("id", id).Select("*").GetOne(ctx)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrProfileNotFound
	}
	var profile domain.Profile
	if err := row.Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &profile, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	if profile == nil || profile.ID == "" {
		return nil, domain.ErrInvalidPayload
	}
	rows, err := r.tables.From(TableProfiles).Insert(ctx, []*domain.Profile{profile})
	if err != nil {
		return nil, err
	}
	var created domain.Profile
	ok, err := decodeFirst(rows, &created)
	if err != nil {
		return nil, err
	}
	if !ok {
		return profile, nil
	}
	return &created, nil
}

func (r *profileRepository) Update(ctx context.Context, profile *domain.Profile) error {
	if profile == nil || profile.ID == "" {
		return domain.ErrInvalidPayload
	}
	updates := map[string]any{
		"username":   profile.Username,
		"avatar_url": profile.AvatarURL,
	}
	if profile.UpdatedAt != "" {
		updates["updated_at"] = profile.UpdatedAt
	}
	rows, err := r.tables.From(TableProfiles).Eq("id", profile.ID).Update(ctx, updates)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}
