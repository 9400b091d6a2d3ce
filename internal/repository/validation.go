package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/model"
)

type ValidationResultRepository interface {
	Create(ctx context.Context, params model.CreateValidationResultParams) (*model.ValidationResult, error)
	FindLatestByRequestHash(ctx context.Context, requestHash string) (*model.ValidationResult, error)
	FindByAgent(ctx context.Context, agentID uint64, chainID int64, limit, offset int) ([]model.ValidationResult, error)
	CountByStatus(ctx context.Context, status model.ValidationResultStatus) (int, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) ValidationResultRepository
}

type validationDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type validationRepo struct {
	db validationDB
}

func NewValidationResultRepository(db *sqlx.DB) ValidationResultRepository {
	return &validationRepo{db: db}
}

func (r *validationRepo) WithTx(tx *sqlx.Tx) ValidationResultRepository {
	return &validationRepo{db: tx}
}

func (r *validationRepo) Create(ctx context.Context, params model.CreateValidationResultParams) (*model.ValidationResult, error) {
	var result model.ValidationResult
	err := r.db.GetContext(ctx, &result, `
		INSERT INTO validation_results (request_hash, agent_id, chain_id, status, tx_hash, error)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.RequestHash, params.AgentID, params.ChainID, params.Status, params.TxHash, params.Error)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *validationRepo) FindLatestByRequestHash(ctx context.Context, requestHash string) (*model.ValidationResult, error) {
	var result model.ValidationResult
	err := r.db.GetContext(ctx, &result, `
		SELECT * FROM validation_results
		WHERE request_hash = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, requestHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *validationRepo) FindByAgent(ctx context.Context, agentID uint64, chainID int64, limit, offset int) ([]model.ValidationResult, error) {
	results := []model.ValidationResult{}
	err := r.db.SelectContext(ctx, &results, `
		SELECT * FROM validation_results
		WHERE agent_id = $1 AND chain_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, agentID, chainID, limit, offset)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *validationRepo) CountByStatus(ctx context.Context, status model.ValidationResultStatus) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM validation_results WHERE status = $1
	`, status)
	if err != nil {
		return 0, err
	}
	return count, nil
}
