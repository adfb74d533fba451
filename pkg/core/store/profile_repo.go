package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"negotiation-engine/pkg/core/types"
)

// ProfileRepo is the Postgres-backed ProfileRepository/CandidateDirectory:
// the external store the negotiation core consumes through an interface
// but never owns. Grounded on the teacher's NotesRepo/AnalysisRepo pgx
// query shape (pool.QueryRow/pool.Query, JSONB columns, upsert-on-conflict).
type ProfileRepo struct {
	pool *pgxpool.Pool
}

// NewProfileRepo wraps an already-initialized pool (see InitDB/GetPool).
func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

// Get implements registry.ProfileRepository.
func (r *ProfileRepo) Get(userID string) (types.AgentProfile, bool, error) {
	if r.pool == nil {
		return types.AgentProfile{}, false, fmt.Errorf("store: database pool not configured")
	}

	const query = `
		SELECT id, display_name, location, capability_tags, interests, availability, self_description
		FROM agent_profiles
		WHERE id = $1
	`
	var p types.AgentProfile
	var tagsJSON, interestsJSON []byte
	err := r.pool.QueryRow(context.Background(), query, userID).Scan(
		&p.ID, &p.DisplayName, &p.Location, &tagsJSON, &interestsJSON, &p.Availability, &p.SelfDescription,
	)
	if err == pgx.ErrNoRows {
		return types.AgentProfile{}, false, nil
	}
	if err != nil {
		return types.AgentProfile{}, false, fmt.Errorf("store: get profile %q: %w", userID, err)
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &p.CapabilityTags); err != nil {
			return types.AgentProfile{}, false, fmt.Errorf("store: unmarshal capability tags: %w", err)
		}
	}
	if len(interestsJSON) > 0 {
		if err := json.Unmarshal(interestsJSON, &p.Interests); err != nil {
			return types.AgentProfile{}, false, fmt.Errorf("store: unmarshal interests: %w", err)
		}
	}
	return p, true, nil
}

// ListProfiles implements engine.CandidateDirectory.
func (r *ProfileRepo) ListProfiles(ctx context.Context) ([]types.AgentProfile, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("store: database pool not configured")
	}

	const query = `
		SELECT id, display_name, location, capability_tags, interests, availability, self_description
		FROM agent_profiles
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: list profiles: %w", err)
	}
	defer rows.Close()

	var out []types.AgentProfile
	for rows.Next() {
		var p types.AgentProfile
		var tagsJSON, interestsJSON []byte
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.Location, &tagsJSON, &interestsJSON, &p.Availability, &p.SelfDescription); err != nil {
			return nil, fmt.Errorf("store: scan profile row: %w", err)
		}
		if len(tagsJSON) > 0 {
			json.Unmarshal(tagsJSON, &p.CapabilityTags)
		}
		if len(interestsJSON) > 0 {
			json.Unmarshal(interestsJSON, &p.Interests)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Upsert stores or replaces one profile.
func (r *ProfileRepo) Upsert(ctx context.Context, p types.AgentProfile) error {
	if r.pool == nil {
		return fmt.Errorf("store: database pool not configured")
	}
	tagsJSON, err := json.Marshal(p.CapabilityTags)
	if err != nil {
		return fmt.Errorf("store: marshal capability tags: %w", err)
	}
	interestsJSON, err := json.Marshal(p.Interests)
	if err != nil {
		return fmt.Errorf("store: marshal interests: %w", err)
	}

	const query = `
		INSERT INTO agent_profiles (id, display_name, location, capability_tags, interests, availability, self_description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			location = EXCLUDED.location,
			capability_tags = EXCLUDED.capability_tags,
			interests = EXCLUDED.interests,
			availability = EXCLUDED.availability,
			self_description = EXCLUDED.self_description
	`
	_, err = r.pool.Exec(ctx, query, p.ID, p.DisplayName, p.Location, tagsJSON, interestsJSON, p.Availability, p.SelfDescription)
	if err != nil {
		return fmt.Errorf("store: upsert profile %q: %w", p.ID, err)
	}
	return nil
}
