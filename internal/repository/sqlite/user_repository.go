package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"account-service/internal/domain"
	"account-service/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	email TEXT COLLATE NOCASE UNIQUE,
	anonymous_id TEXT UNIQUE,
	password_hash TEXT,
	name TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	education_level TEXT NOT NULL DEFAULT '',
	field_of_study_id INTEGER NULL REFERENCES fields_of_study(id),
	is_staff INTEGER NOT NULL DEFAULT 0,
	is_author INTEGER NOT NULL DEFAULT 0,
	avatar_key TEXT NOT NULL DEFAULT '',
	version INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	CHECK (
		(kind = 'identified' AND email IS NOT NULL AND password_hash IS NOT NULL AND anonymous_id IS NULL) OR
		(kind = 'anonymous' AND anonymous_id IS NOT NULL AND email IS NULL AND password_hash IS NULL)
	)
);
`

const selectUserColumns = `
SELECT id, kind, email, anonymous_id, password_hash, name, first_name, last_name, education_level,
	field_of_study_id, is_staff, is_author, avatar_key, version, created_at, updated_at
FROM users`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ repository.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, p *domain.Principal) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, fmt.Errorf("invalid principal: %w", err)
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Version = 1

	cols := userColumnsOf(p)
	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (kind, email, anonymous_id, password_hash, name, first_name, last_name, education_level,
	field_of_study_id, is_staff, is_author, avatar_key, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.Kind),
		cols.email,
		cols.anonymousID,
		cols.passwordHash,
		p.Name,
		cols.firstName,
		cols.lastName,
		cols.educationLevel,
		cols.fieldOfStudyID,
		cols.isStaff,
		cols.isAuthor,
		cols.avatarKey,
		p.Version,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert user: %w", repository.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	p.ID = id
	return id, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.Principal, error) {
	row := r.db.QueryRowContext(ctx, selectUserColumns+` WHERE id = ?`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	row := r.db.QueryRowContext(ctx, selectUserColumns+` WHERE kind = 'identified' AND email = ?`, email)
	return scanUser(row)
}

func (r *UserRepository) GetByAnonymousID(ctx context.Context, anonymousID uuid.UUID) (*domain.Principal, error) {
	row := r.db.QueryRowContext(ctx, selectUserColumns+` WHERE kind = 'anonymous' AND anonymous_id = ?`, anonymousID.String())
	return scanUser(row)
}

func (r *UserRepository) Update(ctx context.Context, p *domain.Principal) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid principal: %w", err)
	}

	updatedAt := time.Now().UTC()
	cols := userColumnsOf(p)
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET password_hash=?, name=?, first_name=?, last_name=?, education_level=?, field_of_study_id=?,
	is_staff=?, is_author=?, avatar_key=?, version=version+1, updated_at=?
WHERE id=? AND version=?`,
		cols.passwordHash,
		p.Name,
		cols.firstName,
		cols.lastName,
		cols.educationLevel,
		cols.fieldOfStudyID,
		cols.isStaff,
		cols.isAuthor,
		cols.avatarKey,
		updatedAt,
		p.ID,
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("user rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, p.ID); err != nil {
			return err
		}
		return fmt.Errorf("update user %d: %w", p.ID, repository.ErrStale)
	}

	p.Version++
	p.UpdatedAt = updatedAt
	return nil
}

func (r *UserRepository) ListIdentified(ctx context.Context) ([]domain.Principal, error) {
	rows, err := r.db.QueryContext(ctx, selectUserColumns+` WHERE kind = 'identified' ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.Principal
	for rows.Next() {
		p, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

type userColumns struct {
	email          any
	anonymousID    any
	passwordHash   any
	firstName      string
	lastName       string
	educationLevel string
	fieldOfStudyID any
	isStaff        int
	isAuthor       int
	avatarKey      string
}

func userColumnsOf(p *domain.Principal) userColumns {
	var cols userColumns
	if ident := p.Identified; ident != nil {
		cols.email = ident.Email
		cols.passwordHash = ident.PasswordHash
		cols.firstName = ident.FirstName
		cols.lastName = ident.LastName
		cols.educationLevel = string(ident.EducationLevel)
		cols.fieldOfStudyID = nullInt64(ident.FieldOfStudyID)
		cols.isStaff = boolInt(ident.IsStaff)
		cols.isAuthor = boolInt(ident.IsAuthor)
		cols.avatarKey = ident.AvatarKey
	}
	if anon := p.Anonymous; anon != nil {
		cols.anonymousID = anon.AnonymousID.String()
	}
	return cols
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.Principal, error) {
	var (
		p              domain.Principal
		kind           string
		email          sql.NullString
		anonymousID    sql.NullString
		passwordHash   sql.NullString
		firstName      string
		lastName       string
		educationLevel string
		fieldOfStudyID sql.NullInt64
		isStaff        bool
		isAuthor       bool
		avatarKey      string
	)
	if err := row.Scan(
		&p.ID,
		&kind,
		&email,
		&anonymousID,
		&passwordHash,
		&p.Name,
		&firstName,
		&lastName,
		&educationLevel,
		&fieldOfStudyID,
		&isStaff,
		&isAuthor,
		&avatarKey,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	p.Kind = domain.PrincipalKind(kind)
	switch p.Kind {
	case domain.PrincipalIdentified:
		ident := &domain.IdentifiedProfile{
			Email:          email.String,
			PasswordHash:   passwordHash.String,
			FirstName:      firstName,
			LastName:       lastName,
			EducationLevel: domain.EducationLevel(educationLevel),
			IsStaff:        isStaff,
			IsAuthor:       isAuthor,
			AvatarKey:      avatarKey,
		}
		if fieldOfStudyID.Valid {
			id := fieldOfStudyID.Int64
			ident.FieldOfStudyID = &id
		}
		p.Identified = ident
	case domain.PrincipalAnonymous:
		id, err := uuid.Parse(anonymousID.String)
		if err != nil {
			return nil, fmt.Errorf("parse anonymous id of user %d: %w", p.ID, err)
		}
		p.Anonymous = &domain.AnonymousProfile{AnonymousID: id}
	default:
		return nil, fmt.Errorf("user %d has unknown kind %q", p.ID, kind)
	}

	return &p, nil
}
