package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// CoreProfile is the long-term user profile. core_rules are behavioral
// directives that are always injected verbatim, never summarized.
type CoreProfile struct {
	Name        string   `json:"name,omitempty"`
	Topics      []string `json:"topics,omitempty"`
	Interests   []string `json:"interests,omitempty"`
	Patterns    []string `json:"patterns,omitempty"`
	Preferences []string `json:"preferences,omitempty"`
	CoreRules   []string `json:"core_rules,omitempty"`
}

// UserProfile is the stored profile row with the decrypted core profile.
type UserProfile struct {
	ID                  int64       `json:"id"`
	CoreProfile         CoreProfile `json:"coreProfile"`
	LivingPromptSummary string      `json:"livingPromptSummary"`
	CreatedAt           time.Time   `json:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}

// GetUserProfile returns the singleton profile row, decrypted. A missing
// row yields ErrNotFound; an undecryptable profile yields an empty one.
func (s *Store) GetUserProfile(ctx context.Context) (*UserProfile, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, core_profile_enc, living_prompt_summary, created_at, updated_at
		 FROM user_profiles LIMIT 1`)
	return s.scanProfile(row)
}

// UpsertUserProfile writes the profile, encrypting the core profile at
// rest. Nil fields leave the existing value untouched.
func (s *Store) UpsertUserProfile(ctx context.Context, core *CoreProfile, livingSummary *string) (*UserProfile, error) {
	existing, err := s.GetUserProfile(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if existing == nil {
		if core == nil {
			core = &CoreProfile{}
		}
		enc, err := s.encryptProfile(core)
		if err != nil {
			return nil, err
		}
		summary := ""
		if livingSummary != nil {
			summary = *livingSummary
		}
		row := s.db.QueryRow(ctx,
			`INSERT INTO user_profiles (core_profile_enc, living_prompt_summary)
			 VALUES ($1, $2)
			 RETURNING id, core_profile_enc, living_prompt_summary, created_at, updated_at`,
			enc, summary)
		return s.scanProfile(row)
	}

	if core != nil {
		enc, err := s.encryptProfile(core)
		if err != nil {
			return nil, err
		}
		if _, err := s.db.Exec(ctx,
			`UPDATE user_profiles SET core_profile_enc=$1, updated_at=NOW() WHERE id=$2`,
			enc, existing.ID); err != nil {
			return nil, fmt.Errorf("update core profile: %w", err)
		}
	}
	if livingSummary != nil {
		if _, err := s.db.Exec(ctx,
			`UPDATE user_profiles SET living_prompt_summary=$1, updated_at=NOW() WHERE id=$2`,
			*livingSummary, existing.ID); err != nil {
			return nil, fmt.Errorf("update living summary: %w", err)
		}
	}
	return s.GetUserProfile(ctx)
}

// UpdateLivingSummary replaces only the rolling prompt summary, creating
// the profile row when absent.
func (s *Store) UpdateLivingSummary(ctx context.Context, summary string) error {
	_, err := s.UpsertUserProfile(ctx, nil, &summary)
	return err
}

func (s *Store) encryptProfile(core *CoreProfile) ([]byte, error) {
	plain, err := json.Marshal(core)
	if err != nil {
		return nil, fmt.Errorf("marshal core profile: %w", err)
	}
	enc, err := s.crypto.encrypt(plain)
	if err != nil {
		return nil, fmt.Errorf("encrypt core profile: %w", err)
	}
	return enc, nil
}

func (s *Store) scanProfile(row pgx.Row) (*UserProfile, error) {
	var p UserProfile
	var enc []byte
	err := row.Scan(&p.ID, &enc, &p.LivingPromptSummary, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user profile: %w", err)
	}

	plain, err := s.crypto.decrypt(enc)
	if err != nil {
		s.logger.Warn("core profile decrypt failed, returning empty profile")
		return &p, nil
	}
	if len(plain) > 0 {
		if err := json.Unmarshal(plain, &p.CoreProfile); err != nil {
			s.logger.Warn("core profile unmarshal failed, returning empty profile")
		}
	}
	return &p, nil
}
