package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/schnillerman/care-contracts-api/internal/models"
)

const contractColumns = "id, client_id, category_id, start_date, end_date, created_at, updated_at"

// ContractRepository provides persistence for contract periods.
type ContractRepository struct {
	db *sqlx.DB
}

// NewContractRepository creates a new contract period repository.
func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// List returns contract periods with optional filtering and pagination.
func (r *ContractRepository) List(ctx context.Context, filter models.ContractFilter) ([]models.ContractPeriod, int, error) {
	base := "FROM contract_periods WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ClientID != "" {
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", len(args)+1))
		args = append(args, filter.ClientID)
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)+1))
		args = append(args, filter.CategoryID)
	}
	if filter.ActiveOn != nil {
		conditions = append(conditions, fmt.Sprintf("start_date <= $%d AND COALESCE(end_date, 'infinity'::date) >= $%d", len(args)+1, len(args)+1))
		args = append(args, *filter.ActiveOn)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"start_date": true,
		"end_date":   true,
		"client_id":  true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d", contractColumns, base, sortBy, order, size, offset)
	var periods []models.ContractPeriod
	if err := r.db.SelectContext(ctx, &periods, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list contract periods: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count contract periods: %w", err)
	}

	return periods, total, nil
}

// FindByID loads a contract period by id.
func (r *ContractRepository) FindByID(ctx context.Context, id string) (*models.ContractPeriod, error) {
	query := fmt.Sprintf("SELECT %s FROM contract_periods WHERE id = $1", contractColumns)
	var period models.ContractPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// FindOverlapping returns every period in the query's (client, category)
// partition whose date range overlaps the candidate, ordered by start date
// then id. A single snapshot read; an empty partition yields an empty slice.
func (r *ContractRepository) FindOverlapping(ctx context.Context, q models.OverlapQuery) ([]models.ContractPeriod, error) {
	base := fmt.Sprintf(`SELECT %s FROM contract_periods
		WHERE client_id = $1 AND category_id = $2
		AND start_date <= COALESCE($3, 'infinity'::date)
		AND COALESCE(end_date, 'infinity'::date) >= $4`, contractColumns)
	args := []interface{}{q.ClientID, q.CategoryID, candidateEnd(q.Candidate), q.Candidate.Start}

	if q.ExcludeID != "" {
		base += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, q.ExcludeID)
	}
	base += " ORDER BY start_date ASC, id ASC"

	var periods []models.ContractPeriod
	if err := r.db.SelectContext(ctx, &periods, base, args...); err != nil {
		return nil, fmt.Errorf("find overlapping contract periods: %w", err)
	}
	return periods, nil
}

func candidateEnd(i models.Interval) interface{} {
	if i.End == nil {
		return nil
	}
	return *i.End
}

// ListByClient returns a client's contract periods across all categories.
func (r *ContractRepository) ListByClient(ctx context.Context, clientID string) ([]models.ContractPeriod, error) {
	query := fmt.Sprintf("SELECT %s FROM contract_periods WHERE client_id = $1 ORDER BY start_date ASC, id ASC", contractColumns)
	var periods []models.ContractPeriod
	if err := r.db.SelectContext(ctx, &periods, query, clientID); err != nil {
		return nil, fmt.Errorf("list contract periods by client: %w", err)
	}
	return periods, nil
}

// Create stores a new contract period.
func (r *ContractRepository) Create(ctx context.Context, period *models.ContractPeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if period.CreatedAt.IsZero() {
		period.CreatedAt = now
	}
	period.UpdatedAt = now

	const query = `INSERT INTO contract_periods (id, client_id, category_id, start_date, end_date, created_at, updated_at) VALUES (:id, :client_id, :category_id, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		if isOverlapViolation(err) {
			return models.ErrOverlapExcluded
		}
		return fmt.Errorf("create contract period: %w", err)
	}
	return nil
}

// Update modifies a contract period.
func (r *ContractRepository) Update(ctx context.Context, period *models.ContractPeriod) error {
	period.UpdatedAt = time.Now().UTC()
	const query = `UPDATE contract_periods SET client_id = :client_id, category_id = :category_id, start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		if isOverlapViolation(err) {
			return models.ErrOverlapExcluded
		}
		return fmt.Errorf("update contract period: %w", err)
	}
	return nil
}

// Delete removes a contract period by id.
func (r *ContractRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM contract_periods WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete contract period: %w", err)
	}
	return nil
}

// isOverlapViolation matches the Postgres exclusion_violation raised by the
// contract_periods_no_overlap constraint.
func isOverlapViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23P01"
}
