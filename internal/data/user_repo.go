package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/argoapp/argo-auth/internal/data/pgxutil"
	domainauth "github.com/argoapp/argo-auth/internal/domain/auth"
	"github.com/argoapp/argo-auth/internal/ports"
)

const userColumns = `id, email, username, first_name, last_name, provider, provider_uid,
	avatar_url, confirmed, admin, password_hash, confirmed_at, created_at, updated_at`

// UserRepo provides database operations for user records.
type UserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ ports.UserRepository = (*UserRepo)(nil)

// NewUserRepo creates a new UserRepo with real time provider.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewUserRepoWithTimeProvider creates a new UserRepo with a custom time provider (useful for tests).
func NewUserRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *UserRepo {
	return &UserRepo{DB: db, timeProvider: tp}
}

// FindByEmail retrieves a user by email, case-insensitively.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domainauth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return r.getByQuery(ctx, query, "failed to get user by email", email)
}

// FindByProviderSubject retrieves a user by its (provider, provider_uid) pair.
func (r *UserRepo) FindByProviderSubject(
	ctx context.Context,
	provider domainauth.Provider,
	uid string,
) (*domainauth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE provider = $1 AND provider_uid = $2`
	return r.getByQuery(ctx, query, "failed to get user by provider subject", string(provider), uid)
}

// Create inserts a new user. Uniqueness violations surface as the
// per-constraint sentinels so callers can retry or report conflicts.
func (r *UserRepo) Create(ctx context.Context, in ports.CreateUserInput) (*domainauth.User, error) {
	if in.Username == "" {
		return nil, errors.New("username is required")
	}
	if (in.Provider == nil) != (in.ProviderUID == nil) {
		return nil, errors.New("provider and provider uid must be set together")
	}

	now := r.timeProvider.Now().UTC()
	var out domainauth.User
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO users (
				id, email, username, first_name, last_name, provider, provider_uid,
				avatar_url, confirmed, admin, password_hash, confirmed_at, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13
			) RETURNING `+userColumns,
			uuid.NewString(),
			in.Email,
			in.Username,
			in.FirstName,
			in.LastName,
			in.Provider,
			in.ProviderUID,
			in.AvatarURL,
			in.Confirmed,
			in.Admin,
			nullableString(in.PasswordHash),
			confirmedAt(in.Confirmed, now),
			now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.User])
		return err
	}); err != nil {
		return nil, mapUserWriteErr(err)
	}
	return &out, nil
}

// ListUsernamesWithPrefix returns every username starting with prefix.
// Used by username collision resolution to compute the next free suffix.
func (r *UserRepo) ListUsernamesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var usernames []string
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT username FROM users WHERE username LIKE $1 ORDER BY username`,
			escapeLike(prefix)+"%",
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		usernames, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list usernames: %w", err)
	}
	return usernames, nil
}

func (r *UserRepo) getByQuery(
	ctx context.Context,
	query, errMsg string,
	args ...any,
) (*domainauth.User, error) {
	var out domainauth.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, query, args...)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()
		var collectErr error
		out, collectErr = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.User])
		return collectErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return &out, nil
}

// mapUserWriteErr translates unique violations into per-constraint
// sentinels by constraint name.
func mapUserWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		switch {
		case strings.Contains(pgErr.ConstraintName, "email"):
			return ErrEmailExists
		case strings.Contains(pgErr.ConstraintName, "username"):
			return ErrUsernameExists
		case strings.Contains(pgErr.ConstraintName, "provider"):
			return ErrProviderSubjectExists
		}
	}
	return err
}

// escapeLike escapes LIKE wildcards in a literal prefix. Derived
// username bases contain underscores, which LIKE would otherwise treat
// as a single-character wildcard.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func confirmedAt(confirmed bool, now time.Time) *time.Time {
	if !confirmed {
		return nil
	}
	return &now
}
