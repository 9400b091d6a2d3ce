package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/model"
)

type SessionCredentialRepository interface {
	FindByAgent(ctx context.Context, agentID uint64, chainID int64) (*model.SessionCredential, error)
	FindByID(ctx context.Context, id string) (*model.SessionCredential, error)
	List(ctx context.Context) ([]model.SessionCredential, error)
	DeleteExpired(ctx context.Context) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionCredentialRepository
}

// credentialDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type credentialDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type credentialRepo struct {
	db credentialDB
}

func NewSessionCredentialRepository(db *sqlx.DB) SessionCredentialRepository {
	return &credentialRepo{db: db}
}

func (r *credentialRepo) WithTx(tx *sqlx.Tx) SessionCredentialRepository {
	return &credentialRepo{db: tx}
}

func (r *credentialRepo) FindByAgent(ctx context.Context, agentID uint64, chainID int64) (*model.SessionCredential, error) {
	var cred model.SessionCredential
	err := r.db.GetContext(ctx, &cred, `
		SELECT * FROM session_credentials
		WHERE agent_id = $1 AND chain_id = $2
	`, agentID, chainID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepo) FindByID(ctx context.Context, id string) (*model.SessionCredential, error) {
	var cred model.SessionCredential
	err := r.db.GetContext(ctx, &cred, `
		SELECT * FROM session_credentials WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepo) List(ctx context.Context) ([]model.SessionCredential, error) {
	creds := []model.SessionCredential{}
	err := r.db.SelectContext(ctx, &creds, `
		SELECT * FROM session_credentials
		WHERE valid_until > NOW()
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	return creds, nil
}

func (r *credentialRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM session_credentials WHERE valid_until < NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
