package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/model"
)

type FeedbackAuthorizationRepository interface {
	Create(ctx context.Context, params model.CreateFeedbackAuthorizationParams) (*model.FeedbackAuthorization, error)
	FindByID(ctx context.Context, id string) (*model.FeedbackAuthorization, error)
	FindByAgent(ctx context.Context, agentID uint64, chainID int64, limit, offset int) ([]model.FeedbackAuthorization, error)
	DeleteExpired(ctx context.Context) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) FeedbackAuthorizationRepository
}

type feedbackDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type feedbackRepo struct {
	db feedbackDB
}

func NewFeedbackAuthorizationRepository(db *sqlx.DB) FeedbackAuthorizationRepository {
	return &feedbackRepo{db: db}
}

func (r *feedbackRepo) WithTx(tx *sqlx.Tx) FeedbackAuthorizationRepository {
	return &feedbackRepo{db: tx}
}

func (r *feedbackRepo) Create(ctx context.Context, params model.CreateFeedbackAuthorizationParams) (*model.FeedbackAuthorization, error) {
	var auth model.FeedbackAuthorization
	err := r.db.GetContext(ctx, &auth, `
		INSERT INTO feedback_authorizations (agent_id, client_address, chain_id, skill_id, expires_at, signature)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.AgentID, params.ClientAddress, params.ChainID, params.SkillID, params.ExpiresAt, params.Signature)
	if err != nil {
		return nil, err
	}
	return &auth, nil
}

func (r *feedbackRepo) FindByID(ctx context.Context, id string) (*model.FeedbackAuthorization, error) {
	var auth model.FeedbackAuthorization
	err := r.db.GetContext(ctx, &auth, `
		SELECT * FROM feedback_authorizations WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &auth, nil
}

func (r *feedbackRepo) FindByAgent(ctx context.Context, agentID uint64, chainID int64, limit, offset int) ([]model.FeedbackAuthorization, error) {
	auths := []model.FeedbackAuthorization{}
	err := r.db.SelectContext(ctx, &auths, `
		SELECT * FROM feedback_authorizations
		WHERE agent_id = $1 AND chain_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, agentID, chainID, limit, offset)
	if err != nil {
		return nil, err
	}
	return auths, nil
}

func (r *feedbackRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM feedback_authorizations WHERE expires_at < NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
