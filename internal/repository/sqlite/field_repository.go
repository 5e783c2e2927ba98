package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"account-service/internal/domain"
	"account-service/internal/repository"
)

const createFieldsTable = `
CREATE TABLE IF NOT EXISTS fields_of_study (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL COLLATE NOCASE UNIQUE,
	created_at DATETIME NOT NULL
);
`

type FieldRepository struct {
	db *sql.DB
}

func NewFieldRepository(db *sql.DB) *FieldRepository {
	return &FieldRepository{db: db}
}

var _ repository.FieldRepository = (*FieldRepository)(nil)

func (r *FieldRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createFieldsTable); err != nil {
		return fmt.Errorf("create fields_of_study table: %w", err)
	}
	return nil
}

func (r *FieldRepository) Create(ctx context.Context, field *domain.FieldOfStudy) (int64, error) {
	field.CreatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `INSERT INTO fields_of_study (name, created_at) VALUES (?, ?)`,
		field.Name, field.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert field of study: %w", repository.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert field of study: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("field of study last insert id: %w", err)
	}
	field.ID = id
	return id, nil
}

func (r *FieldRepository) Get(ctx context.Context, id int64) (*domain.FieldOfStudy, error) {
	var field domain.FieldOfStudy
	err := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM fields_of_study WHERE id = ?`, id).
		Scan(&field.ID, &field.Name, &field.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("field of study: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan field of study: %w", err)
	}
	return &field, nil
}

func (r *FieldRepository) List(ctx context.Context) ([]domain.FieldOfStudy, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM fields_of_study ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list fields of study: %w", err)
	}
	defer rows.Close()

	var fields []domain.FieldOfStudy
	for rows.Next() {
		var field domain.FieldOfStudy
		if err := rows.Scan(&field.ID, &field.Name, &field.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan field of study: %w", err)
		}
		fields = append(fields, field)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fields of study: %w", err)
	}
	return fields, nil
}
