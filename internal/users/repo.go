package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mzivkovic/wikibin/pkg"
)

var tracer = otel.Tracer("users")

var _ Store = (*Repo)(nil)

// Store is the credential store seen by the rest of the service.
type Store interface {
	Get(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, user *User) error
	Verify(ctx context.Context, username, password string) (Role, error)
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Get(ctx context.Context, username string) (*User, error) {
	ctx, span := tracer.Start(ctx, "usersRepo.Get")
	span.SetAttributes(attribute.String("username", username))
	defer span.End()

	var user User
	err := r.db.QueryRow(
		ctx,
		`SELECT username, password_hash, role FROM users WHERE username = $1;`,
		username,
	).Scan(&user.Username, &user.PasswordHash, &user.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (r *Repo) Create(ctx context.Context, user *User) error {
	if user.Username == "" || user.PasswordHash == "" {
		return errors.New("username or password hash empty")
	}
	if !user.Role.Valid() {
		return fmt.Errorf("invalid role: %s", user.Role)
	}

	_, err := r.db.Exec(
		ctx,
		`INSERT INTO users (username, password_hash, role) VALUES ($1, $2, $3);`,
		user.Username, user.PasswordHash, user.Role,
	)
	if pkg.IsUniqueViolationError(err) {
		return ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// Verify checks the given credentials and returns the user role on success.
// Unknown username and wrong password both come back as
// ErrInvalidCredentials, so callers cannot tell which field was wrong.
func (r *Repo) Verify(ctx context.Context, username, password string) (Role, error) {
	user, err := r.Get(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if !pkg.CheckPasswordHash(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	return user.Role, nil
}
