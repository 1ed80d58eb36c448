package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"bank-api/internal/domain"
)

// CreateInstance inserts a new tenant. Address must be unique process-wide;
// a conflicting insert surfaces as domain.ErrTransientDB (the caller treats
// instance creation as an administrative, not command-pipeline, operation,
// so no idempotency fingerprint applies here).
func (s *Store) CreateInstance(ctx context.Context, inst domain.Instance) (domain.Instance, error) {
	if inst.ID == uuid.Nil {
		inst.ID = uuid.New()
	}
	configJSON, err := json.Marshal(inst.Config)
	if err != nil {
		return domain.Instance{}, err
	}
	metaJSON, err := json.Marshal(inst.Metadata)
	if err != nil {
		return domain.Instance{}, err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO instances (id, address, config, metadata, inserted_at)
		VALUES ($1, $2, $3, $4, $5)
	`, inst.ID, inst.Address, configJSON, metaJSON, time.Now().Unix())
	if err != nil {
		return domain.Instance{}, translateErr(err)
	}
	return inst, nil
}

// GetInstanceByAddress resolves a tenant by its external address, the key
// every command and HTTP route carries instead of the internal UUID.
func (s *Store) GetInstanceByAddress(ctx context.Context, address string) (domain.Instance, error) {
	var inst domain.Instance
	var configJSON, metaJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, address, config, metadata FROM instances WHERE address = $1
	`, address).Scan(&inst.ID, &inst.Address, &configJSON, &metaJSON)
	if err != nil {
		return domain.Instance{}, translateInstanceErr(err)
	}
	if err := json.Unmarshal(configJSON, &inst.Config); err != nil {
		return domain.Instance{}, err
	}
	if err := json.Unmarshal(metaJSON, &inst.Metadata); err != nil {
		return domain.Instance{}, err
	}
	return inst, nil
}

// ListInstances returns every tenant, used by the instance monitor tick to
// discover which per-tenant processors should be running.
func (s *Store) ListInstances(ctx context.Context) ([]domain.Instance, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, address FROM instances ORDER BY address`)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []domain.Instance
	for rows.Next() {
		var inst domain.Instance
		if err := rows.Scan(&inst.ID, &inst.Address); err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func translateInstanceErr(err error) error {
	if err == nil {
		return nil
	}
	translated := translateErr(err)
	if translated == domain.ErrAccountNotFound {
		return domain.ErrInstanceNotFound
	}
	return translated
}
