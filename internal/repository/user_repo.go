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

	"user-sync/internal/domain"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

const (
	uniqueViolation      = "23505"
	invalidTextRepresent = "22P02"
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByAuth0ID(ctx context.Context, auth0ID string) (domain.User, error)
	// FindByAuth0IDOrEmail busca por cualquiera de las dos claves; email vacio no participa.
	FindByAuth0IDOrEmail(ctx context.Context, auth0ID, email string) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	// Update reescribe los atributos sincronizados desde Auth0; no toca last_session_active_at.
	Update(ctx context.Context, user domain.User) (domain.User, error)
	UpdateName(ctx context.Context, id, name string, at time.Time) (domain.User, error)
	UpdateLastLogin(ctx context.Context, auth0ID string, loginAt, at time.Time) (domain.User, error)
	UpdateLastSessionActive(ctx context.Context, auth0ID string, at time.Time) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	db querier
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{db: pool}
}

const userColumns = `id, auth0_id, email, name, avatar, email_verified,
		last_login_at, last_session_active_at, created_at, updated_at`

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	// Un id que no es UUID no puede existir.
	if _, err := uuid.Parse(id); err != nil {
		return domain.User{}, ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.User{}, mapError("get user by id", err)
	}
	return u, nil
}

func (r *PgUserRepository) GetByAuth0ID(ctx context.Context, auth0ID string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE auth0_id = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, auth0ID))
	if err != nil {
		return domain.User{}, mapError("get user by auth0 id", err)
	}
	return u, nil
}

func (r *PgUserRepository) FindByAuth0IDOrEmail(ctx context.Context, auth0ID, email string) (domain.User, error) {
	// Si ambas claves apuntan a filas distintas gana la del auth0_id.
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE auth0_id = $1 OR ($2 <> '' AND email = $2)
		ORDER BY (auth0_id = $1) DESC
		LIMIT 1`
	u, err := scanUser(r.db.QueryRow(ctx, query, auth0ID, email))
	if err != nil {
		return domain.User{}, mapError("find user", err)
	}
	return u, nil
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	query := `
		INSERT INTO users (id, auth0_id, email, name, avatar, email_verified,
			last_login_at, last_session_active_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRow(ctx, query,
		user.ID,
		user.Auth0ID,
		user.Email,
		user.Name,
		user.Avatar,
		user.EmailVerified,
		user.LastLoginAt,
		user.LastSessionActiveAt,
		user.CreatedAt,
		user.UpdatedAt,
	))
	if err != nil {
		return domain.User{}, mapError("create user", err)
	}
	return u, nil
}

func (r *PgUserRepository) Update(ctx context.Context, user domain.User) (domain.User, error) {
	query := `
		UPDATE users
		SET auth0_id = $2, email = $3, name = $4, avatar = $5, email_verified = $6,
			last_login_at = $7, updated_at = $8
		WHERE id = $1
		RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRow(ctx, query,
		user.ID,
		user.Auth0ID,
		user.Email,
		user.Name,
		user.Avatar,
		user.EmailVerified,
		user.LastLoginAt,
		user.UpdatedAt,
	))
	if err != nil {
		return domain.User{}, mapError("update user", err)
	}
	return u, nil
}

// UpdateName solo escribe name y updated_at.
func (r *PgUserRepository) UpdateName(ctx context.Context, id, name string, at time.Time) (domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.User{}, ErrNotFound
	}
	query := `UPDATE users SET name = $2, updated_at = $3 WHERE id = $1 RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRow(ctx, query, id, name, at))
	if err != nil {
		return domain.User{}, mapError("update user name", err)
	}
	return u, nil
}

// UpdateLastLogin solo escribe last_login_at y updated_at.
func (r *PgUserRepository) UpdateLastLogin(ctx context.Context, auth0ID string, loginAt, at time.Time) (domain.User, error) {
	query := `UPDATE users SET last_login_at = $2, updated_at = $3 WHERE auth0_id = $1 RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRow(ctx, query, auth0ID, loginAt, at))
	if err != nil {
		return domain.User{}, mapError("update last login", err)
	}
	return u, nil
}

func (r *PgUserRepository) UpdateLastSessionActive(ctx context.Context, auth0ID string, at time.Time) error {
	const query = `UPDATE users SET last_session_active_at = $2 WHERE auth0_id = $1`
	tag, err := r.db.Exec(ctx, query, auth0ID, at)
	if err != nil {
		return mapError("touch session", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Auth0ID,
		&u.Email,
		&u.Name,
		&u.Avatar,
		&u.EmailVerified,
		&u.LastLoginAt,
		&u.LastSessionActiveAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func mapError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%s: %w", op, ErrConflict)
		case invalidTextRepresent:
			return ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
