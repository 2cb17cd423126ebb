package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/reservly/flowengine/pkg/models"
	"github.com/reservly/flowengine/pkg/persistence"
)

// FlowRepository handles flow-related database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

func (r *FlowRepository) ListFlows(ctx context.Context, opts persistence.ListFlowsOptions) (*persistence.FlowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.Offset < 0 {
		opts.Offset = 0
	}

	where := "WHERE 1=1"
	args := make([]any, 0, 4)

	if opts.TenantID != "" {
		args = append(args, opts.TenantID)
		where += fmt.Sprintf(" AND tenant_id = $%d", len(args))
	}

	if opts.FlowType != nil {
		args = append(args, string(*opts.FlowType))
		where += fmt.Sprintf(" AND flow_type = $%d", len(args))
	}

	if opts.IsActive != nil {
		args = append(args, *opts.IsActive)
		where += fmt.Sprintf(" AND is_active = $%d", len(args))
	}

	if opts.IsTemplate != nil {
		args = append(args, *opts.IsTemplate)
		where += fmt.Sprintf(" AND is_template = $%d", len(args))
	}

	var total int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM flows "+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count flows: %w", err)
	}

	args = append(args, opts.Limit, opts.Offset)
	query := fmt.Sprintf(
		"SELECT document FROM flows %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		where, len(args)-1, len(args),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	flows := make([]*models.Flow, 0)

	for rows.Next() {
		flow, err := scanFlowDocument(rows)
		if err != nil {
			return nil, err
		}

		flows = append(flows, flow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return &persistence.FlowListResult{
		Flows:       flows,
		TotalCount:  total,
		HasNextPage: int64(opts.Offset+opts.Limit) < total,
	}, nil
}

func (r *FlowRepository) GetByID(ctx context.Context, id string) (*models.Flow, error) {
	row := r.db.QueryRowContext(ctx, "SELECT document FROM flows WHERE id = $1", id)

	flow, err := scanFlowDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowError("GetByID", id, persistence.ErrFlowNotFound)
		}

		return nil, err
	}

	return flow, nil
}

// Save upserts the flow's full document plus the indexed columns.
func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	document, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("failed to marshal flow: %w", err)
	}

	query := `
		INSERT INTO flows (id, tenant_id, flow_type, is_active, is_template, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id   = EXCLUDED.tenant_id,
			flow_type   = EXCLUDED.flow_type,
			is_active   = EXCLUDED.is_active,
			is_template = EXCLUDED.is_template,
			document    = EXCLUDED.document,
			updated_at  = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		flow.ID, flow.TenantID, string(flow.FlowType), flow.IsActive,
		flow.IsTemplate, document, flow.CreatedAt, flow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save flow %s: %w", flow.ID, err)
	}

	return nil
}

func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM flows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete flow %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewFlowError("Delete", id, persistence.ErrFlowNotFound)
	}

	return nil
}

func (r *FlowRepository) ActiveFlow(ctx context.Context, tenantID string) (*models.Flow, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT document FROM flows WHERE tenant_id = $1 AND is_active", tenantID)

	flow, err := scanFlowDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.FlowError{Op: "ActiveFlow", TenantID: tenantID, Err: persistence.ErrFlowNotFound}
		}

		return nil, err
	}

	return flow, nil
}

// Activate deactivates every flow of the tenant and activates the target in
// one transaction, so a reader never observes two active flows.
func (r *FlowRepository) Activate(ctx context.Context, tenantID, flowID string) error {
	transaction, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin activation transaction: %w", err)
	}

	_, err = transaction.ExecContext(ctx,
		`UPDATE flows
		 SET is_active = FALSE,
		     document = jsonb_set(document, '{is_active}', 'false')
		 WHERE tenant_id = $1 AND is_active`, tenantID)
	if err != nil {
		_ = transaction.Rollback()

		return fmt.Errorf("failed to deactivate flows for tenant %s: %w", tenantID, err)
	}

	result, err := transaction.ExecContext(ctx,
		`UPDATE flows
		 SET is_active = TRUE,
		     document = jsonb_set(document, '{is_active}', 'true')
		 WHERE id = $1 AND tenant_id = $2`, flowID, tenantID)
	if err != nil {
		_ = transaction.Rollback()

		return fmt.Errorf("failed to activate flow %s: %w", flowID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		_ = transaction.Rollback()

		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		_ = transaction.Rollback()

		return persistence.NewFlowError("Activate", flowID, persistence.ErrFlowNotFound)
	}

	err = transaction.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit activation: %w", err)
	}

	return nil
}

func (r *FlowRepository) DeactivateAll(ctx context.Context, tenantID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE flows
		 SET is_active = FALSE,
		     document = jsonb_set(document, '{is_active}', 'false')
		 WHERE tenant_id = $1 AND is_active`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to deactivate flows for tenant %s: %w", tenantID, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlowDocument(row rowScanner) (*models.Flow, error) {
	var document []byte

	err := row.Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan flow document: %w", err)
	}

	var flow models.Flow

	err = json.Unmarshal(document, &flow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow document: %w", err)
	}

	return &flow, nil
}
