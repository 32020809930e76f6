package syncer

import (
	"context"
	"time"

	"github.com/enviofleett/mymoto-sub019/internal/db"
)

// SyncState is the per-integration mutable state shared across runs.
// It lives in storage, not process memory: overlapping runs must all
// observe the same backoff window.
type SyncState struct {
	AuthToken      string     `json:"auth_token"`
	ServerID       string     `json:"server_id"`
	TokenExpiresAt time.Time  `json:"token_expires_at"`
	BackoffUntil   *time.Time `json:"rate_limit_backoff_until"`
}

// singletonKey: there is exactly one vendor integration.
const stateKey = "vendor"

type StateStore struct {
	db db.Querier
}

func NewStateStore(db db.Querier) *StateStore {
	return &StateStore{db: db}
}

func (s *StateStore) Load(ctx context.Context) (SyncState, error) {
	var st SyncState
	row := s.db.QueryRow(ctx, `
		SELECT COALESCE(auth_token,''), COALESCE(server_id,''),
			COALESCE(token_expires_at, 'epoch'::timestamptz), rate_limit_backoff_until
		FROM sync_state WHERE key=$1
	`, stateKey)
	if err := row.Scan(&st.AuthToken, &st.ServerID, &st.TokenExpiresAt, &st.BackoffUntil); err != nil {
		return SyncState{}, err
	}
	return st, nil
}

func (s *StateStore) Save(ctx context.Context, st SyncState) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sync_state (key, auth_token, server_id, token_expires_at, rate_limit_backoff_until)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (key) DO UPDATE
		SET auth_token=EXCLUDED.auth_token,
		    server_id=EXCLUDED.server_id,
		    token_expires_at=EXCLUDED.token_expires_at,
		    rate_limit_backoff_until=EXCLUDED.rate_limit_backoff_until
	`, stateKey, st.AuthToken, st.ServerID, st.TokenExpiresAt, st.BackoffUntil)
	return err
}

// SetBackoff extends the backoff window. GREATEST keeps the later of
// two concurrent writes so racing runs cannot shrink the window.
func (s *StateStore) SetBackoff(ctx context.Context, until time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sync_state (key, rate_limit_backoff_until)
		VALUES ($1,$2)
		ON CONFLICT (key) DO UPDATE
		SET rate_limit_backoff_until=GREATEST(COALESCE(sync_state.rate_limit_backoff_until, 'epoch'::timestamptz), EXCLUDED.rate_limit_backoff_until)
	`, stateKey, until)
	return err
}

// SyncTargets returns up to limit device ids, devices in an error
// state first, then the ones synced longest ago.
func (s *StateStore) SyncTargets(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT device_id FROM devices
		ORDER BY error_state DESC, last_synced_at ASC NULLS FIRST
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *StateStore) MarkDeviceSynced(ctx context.Context, deviceID string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE devices SET error_state=false, last_synced_at=$2 WHERE device_id=$1
	`, deviceID, at)
	return err
}

func (s *StateStore) MarkDeviceFailed(ctx context.Context, deviceID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE devices SET error_state=true WHERE device_id=$1
	`, deviceID)
	return err
}
