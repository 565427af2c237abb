package employees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"brokerage_backoffice/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate   = "employees.repository.create"
	opGetByID  = "employees.repository.get_by_id"
	opGetByIDs = "employees.repository.get_by_ids"
	opList     = "employees.repository.list"

	errRepoNotConfigured = "employee repository not configured"
)

// Employee is a back-office user that can upload, own and hand out leads.
type Employee struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateParams struct {
	Name  string
	Email string
	Role  string
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Employee, error) {
	if r == nil || r.pool == nil {
		return Employee{}, apperr.Internal(errRepoNotConfigured).WithOp(opCreate)
	}

	var e Employee
	err := r.pool.QueryRow(ctx, `
		INSERT INTO employees (id, name, email, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, email, role, created_at
	`, uuid.New(), p.Name, p.Email, p.Role).Scan(&e.ID, &e.Name, &e.Email, &e.Role, &e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Employee{}, apperr.Conflict("an employee with this email already exists").WithOp(opCreate)
		}
		return Employee{}, apperr.Internal(fmt.Sprintf("create employee failed: %v", err)).WithOp(opCreate)
	}

	return e, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Employee, error) {
	if r == nil || r.pool == nil {
		return Employee{}, apperr.Internal(errRepoNotConfigured).WithOp(opGetByID)
	}

	var e Employee
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, role, created_at FROM employees WHERE id = $1
	`, id).Scan(&e.ID, &e.Name, &e.Email, &e.Role, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, apperr.NotFound("employee not found").WithOp(opGetByID)
	}
	if err != nil {
		return Employee{}, apperr.Internal(fmt.Sprintf("get employee failed: %v", err)).WithOp(opGetByID)
	}
	return e, nil
}

// GetByIDs returns the employees found among ids. Unknown ids are absent from the map.
func (r *Repository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Employee, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opGetByIDs)
	}

	out := make(map[uuid.UUID]Employee, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, role, created_at FROM employees WHERE id = ANY($1::uuid[])
	`, ids)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("get employees query failed: %v", err)).WithOp(opGetByIDs)
	}
	defer rows.Close()

	for rows.Next() {
		var e Employee
		if scanErr := rows.Scan(&e.ID, &e.Name, &e.Email, &e.Role, &e.CreatedAt); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan employee failed: %v", scanErr)).WithOp(opGetByIDs)
		}
		out[e.ID] = e
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate employees failed: %v", rowsErr)).WithOp(opGetByIDs)
	}
	return out, nil
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]Employee, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, apperr.Internal(errRepoNotConfigured).WithOp(opList)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM employees`).Scan(&total); err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("count employees failed: %v", err)).WithOp(opList)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, role, created_at
		FROM employees
		ORDER BY name ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("list employees query failed: %v", err)).WithOp(opList)
	}
	defer rows.Close()

	items := make([]Employee, 0, limit)
	for rows.Next() {
		var e Employee
		if scanErr := rows.Scan(&e.ID, &e.Name, &e.Email, &e.Role, &e.CreatedAt); scanErr != nil {
			return nil, 0, apperr.Internal(fmt.Sprintf("scan employee failed: %v", scanErr)).WithOp(opList)
		}
		items = append(items, e)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("iterate employees failed: %v", rowsErr)).WithOp(opList)
	}

	return items, total, nil
}
