package claim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const claimColumns = `id, project_id, claimant_id, sponsor_id, amount, currency, weight, status, hold_id,
	confirmation_code_hash, delivery_code_hash, canceled_reason, created_at, updated_at`

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert writes exactly the fields NewClaim sets.
func (r *Repository) Insert(ctx context.Context, q sqlx.ExecerContext, c *Claim) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO claims (id, project_id, claimant_id, sponsor_id, amount, currency, weight, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.ProjectID, c.ClaimantID, c.SponsorID, c.Amount, c.Currency, c.Weight, c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*Claim, error) {
	return r.get(ctx, q, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id)
}

// Lock is the first lock of every claim transition.
func (r *Repository) Lock(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Claim, error) {
	return r.get(ctx, tx, `SELECT `+claimColumns+` FROM claims WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repository) get(ctx context.Context, q sqlx.QueryerContext, query string, id uuid.UUID) (*Claim, error) {
	var c Claim
	if err := sqlx.GetContext(ctx, q, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Transition persists a status change made under the row lock. Code hashes
// are write-once: COALESCE keeps a hash that is already set.
func (r *Repository) Transition(ctx context.Context, tx *sqlx.Tx, c *Claim, from Status) error {
	err := tx.QueryRowxContext(ctx, `
		UPDATE claims
		SET status = $1,
			hold_id = COALESCE(hold_id, $2),
			confirmation_code_hash = COALESCE(confirmation_code_hash, $3),
			delivery_code_hash = COALESCE(delivery_code_hash, $4),
			canceled_reason = $5,
			updated_at = now()
		WHERE id = $6 AND status = $7
		RETURNING updated_at
	`, c.Status, c.HoldID, c.ConfirmationCodeHash, c.DeliveryCodeHash, c.CanceledReason, c.ID, from).
		Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidTransition
		}
		return fmt.Errorf("update claim: %w", err)
	}
	return nil
}

func (r *Repository) ListByProject(ctx context.Context, q sqlx.QueryerContext, projectID uuid.UUID, f ListFilter) ([]*Claim, error) {
	f.normalize()

	where := []string{"project_id = $1"}
	args := []interface{}{projectID}
	if f.Participant != nil {
		args = append(args, *f.Participant)
		where = append(where, fmt.Sprintf("(claimant_id = $%d OR sponsor_id = $%d)", len(args), len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	args = append(args, f.Limit, f.Offset)

	query := fmt.Sprintf(`SELECT %s FROM claims WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		claimColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	claims := []*Claim{}
	if err := sqlx.SelectContext(ctx, q, &claims, query, args...); err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return claims, nil
}

// Project is the part of a marketplace project that decides who may fund
// and approve its claims.
type Project struct {
	ID        uuid.UUID     `db:"id"`
	OwnerID   uuid.UUID     `db:"owner_id"`
	SponsorID uuid.NullUUID `db:"sponsor_id"`
}

// Sponsor is the sponsor the owner assigned, or the owner when none is set.
func (p *Project) Sponsor() uuid.UUID {
	if p.SponsorID.Valid {
		return p.SponsorID.UUID
	}
	return p.OwnerID
}

// ProjectDirectory answers who owns and who sponsors a project.
type ProjectDirectory interface {
	Project(ctx context.Context, projectID uuid.UUID) (*Project, error)
}

// ProjectRepository reads the projects table owned by the marketplace side.
type ProjectRepository struct {
	db *sqlx.DB
}

func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Project(ctx context.Context, projectID uuid.UUID) (*Project, error) {
	var p Project
	err := r.db.GetContext(ctx, &p, `SELECT id, owner_id, sponsor_id FROM projects WHERE id = $1`, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}
