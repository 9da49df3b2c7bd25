// Package store persists enrolled employee embeddings in Postgres with
// pgvector, backing the self-hosted verification mode.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/veriface/platform/internal/errors"
	"github.com/veriface/platform/internal/face"
)

// Employee is an enrolled identity with its reference embedding.
type Employee struct {
	ID         string
	Name       string
	Embedding  face.Embedding
	EnrolledAt time.Time
}

// NewPool creates a pgx pool with pgvector types registered on each
// connection and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EmployeeRepo stores and queries enrolled employees.
type EmployeeRepo struct {
	pool *pgxpool.Pool
	dim  int
}

// NewEmployeeRepo creates a repository over the pool. dim is the embedding
// length enforced by the schema.
func NewEmployeeRepo(pool *pgxpool.Pool, dim int) *EmployeeRepo {
	return &EmployeeRepo{pool: pool, dim: dim}
}

// EnsureSchema creates the vector extension and employees table if missing.
func (r *EmployeeRepo) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS employees (
			id          text PRIMARY KEY,
			name        text NOT NULL,
			embedding   vector(%d) NOT NULL,
			enrolled_at timestamptz NOT NULL DEFAULT now()
		)`, r.dim),
	}
	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Enroll inserts or replaces an employee's reference embedding.
func (r *EmployeeRepo) Enroll(ctx context.Context, emp Employee) error {
	query := `
		INSERT INTO employees (id, name, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, embedding = EXCLUDED.embedding
	`
	_, err := r.pool.Exec(ctx, query, emp.ID, emp.Name, pgvector.NewVector(emp.Embedding.Values))
	if err != nil {
		return fmt.Errorf("enroll employee: %w", err)
	}
	return nil
}

// Get fetches one employee by id.
func (r *EmployeeRepo) Get(ctx context.Context, id string) (Employee, error) {
	query := `
		SELECT id, name, embedding, enrolled_at
		FROM employees
		WHERE id = $1
	`

	var emp Employee
	var embedding pgvector.Vector
	err := r.pool.QueryRow(ctx, query, id).Scan(&emp.ID, &emp.Name, &embedding, &emp.EnrolledAt)
	if err == pgx.ErrNoRows {
		return Employee{}, errors.Newf(errors.CodeNotFound, "employee %s not enrolled", id)
	}
	if err != nil {
		return Employee{}, fmt.Errorf("get employee: %w", err)
	}
	emp.Embedding = face.Embedding{Values: embedding.Slice()}
	return emp, nil
}

// Nearest returns the enrolled employee closest to the embedding by cosine
// distance, with the cosine similarity of the match.
func (r *EmployeeRepo) Nearest(ctx context.Context, emb face.Embedding) (Employee, float64, error) {
	query := `
		SELECT id, name, embedding, enrolled_at, 1 - (embedding <=> $1) AS similarity
		FROM employees
		ORDER BY embedding <=> $1
		LIMIT 1
	`

	var emp Employee
	var embedding pgvector.Vector
	var similarity float64
	err := r.pool.QueryRow(ctx, query, pgvector.NewVector(emb.Values)).
		Scan(&emp.ID, &emp.Name, &embedding, &emp.EnrolledAt, &similarity)
	if err == pgx.ErrNoRows {
		return Employee{}, 0, errors.New(errors.CodeNotFound, "no employees enrolled")
	}
	if err != nil {
		return Employee{}, 0, fmt.Errorf("nearest employee: %w", err)
	}
	emp.Embedding = face.Embedding{Values: embedding.Slice()}
	return emp, similarity, nil
}

// Delete removes one enrolled employee.
func (r *EmployeeRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.CodeNotFound, "employee %s not enrolled", id)
	}
	return nil
}
