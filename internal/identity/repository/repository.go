// Package repository provides persistence for users and roles. The query
// engine consumes the user directory only through this package.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so repository methods
// can run inside or outside a caller-owned transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// User is the internal directory entry for a person.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	CountryCode  string
	PhoneNumber  string
	IsActive     bool
	RoleID       uuid.UUID
	RoleName     string
	IsStaff      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName returns "First Last" with empty parts trimmed.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// CreateUserParams carries the fields needed to create a directory entry.
type CreateUserParams struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	CountryCode  string
	PhoneNumber  string
	RoleName     string
}

type Repository struct {
	db DBTX
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

// WithExecutor binds the repository to an arbitrary executor, pool or
// transaction.
func (r *Repository) WithExecutor(db DBTX) *Repository {
	return &Repository{db: db}
}

const userColumns = `
	u.id, u.email, u.password_hash, u.first_name, u.last_name,
	u.country_code, u.phone_number, u.is_active,
	r.id, r.name, r.is_staff, u.created_at, u.updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.CountryCode, &u.PhoneNumber, &u.IsActive,
		&u.RoleID, &u.RoleName, &u.IsStaff, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByEmail returns the user with the given email, or (nil, nil) when no
// such user exists.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE lower(u.email) = lower($1)`, email)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

// FindByPhone returns the user with the given phone number, or (nil, nil)
// when no such user exists. The country code is matched when supplied.
func (r *Repository) FindByPhone(ctx context.Context, countryCode, phoneNumber string) (*User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.phone_number = $1
		  AND ($2 = '' OR u.country_code = $2)
		ORDER BY u.created_at
		LIMIT 1`, phoneNumber, countryCode)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by phone: %w", err)
	}
	return u, nil
}

// GetByID returns the user with the given id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1`, id)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pgx.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// Create inserts a new active user under the named role.
func (r *Repository) Create(ctx context.Context, p CreateUserParams) (*User, error) {
	row := r.db.QueryRow(ctx, `
		WITH role AS (
			SELECT id FROM roles WHERE name = $7
		), inserted AS (
			INSERT INTO users (id, email, password_hash, first_name, last_name,
				country_code, phone_number, is_active, role_id)
			SELECT $1, $2, $3, $4, $5, $6, $8, TRUE, role.id
			FROM role
			RETURNING *
		)
		SELECT `+userColumns+`
		FROM inserted u
		JOIN roles r ON r.id = u.role_id`,
		uuid.New(), p.Email, p.PasswordHash, p.FirstName, p.LastName,
		p.CountryCode, p.RoleName, p.PhoneNumber)

	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// ListActiveStaff returns the dispatchable pool: active users whose role name
// is in roleNames and whose email is non-empty.
func (r *Repository) ListActiveStaff(ctx context.Context, roleNames []string) ([]User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.is_active = TRUE
		  AND u.email <> ''
		  AND r.name = ANY($1)
		ORDER BY u.created_at`, roleNames)
	if err != nil {
		return nil, fmt.Errorf("list active staff: %w", err)
	}
	defer rows.Close()

	var staff []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan staff user: %w", err)
		}
		staff = append(staff, *u)
	}
	return staff, rows.Err()
}
