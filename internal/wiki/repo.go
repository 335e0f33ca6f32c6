package wiki

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mzivkovic/wikibin/pkg"
)

var tracer = otel.Tracer("wiki")

var _ pageRepo = (*Repo)(nil)

type Repo struct {
	db *pgxpool.Pool
	// injectable for tests, defaults to pkg.GenerateCode
	codeFunc func(n int) (string, error)
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db:       db,
		codeFunc: pkg.GenerateCode,
	}
}

// Add stores a new page and assigns it a fresh random code. A code
// collision is next to impossible at 12 alphanumeric chars, but insert is
// retried a few times anyway since the code column is unique.
func (r *Repo) Add(ctx context.Context, page *Page) error {
	if page.Title == "" || page.Text == "" {
		return ErrPageTitleOrTextEmpty
	}

	if page.CreatedAt.IsZero() {
		page.CreatedAt = time.Now()
	}

	for attempt := 0; attempt < 3; attempt++ {
		code, err := r.codeFunc(PageCodeLength)
		if err != nil {
			return fmt.Errorf("generate page code: %w", err)
		}

		_, err = r.db.Exec(
			ctx,
			`INSERT INTO pages (code, title, content, author, created_at) VALUES ($1, $2, $3, $4, $5);`,
			code, page.Title, page.Text, page.Author, page.CreatedAt,
		)
		if pkg.IsUniqueViolationError(err) {
			log.Warnf("page code collision on %s, retrying", code)
			continue
		}
		if err != nil {
			return fmt.Errorf("insert page: %w", err)
		}

		page.Code = code
		return nil
	}

	return ErrPageCodeCollision
}

// Update will change the title and text of the page, code and author stay
func (r *Repo) Update(ctx context.Context, code, title, text string) error {
	if title == "" || text == "" {
		return ErrPageTitleOrTextEmpty
	}

	tag, err := r.db.Exec(
		ctx,
		`UPDATE pages SET title = $1, content = $2 WHERE code = $3;`,
		title, text, code,
	)
	if err != nil {
		return fmt.Errorf("update page: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPageNotFound
	}

	return nil
}

func (r *Repo) Delete(ctx context.Context, code string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM pages WHERE code = $1;`, code)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPageNotFound
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, code string) (*Page, error) {
	ctx, span := tracer.Start(ctx, "wikiRepo.Get")
	span.SetAttributes(attribute.String("code", code))
	defer span.End()

	var page Page
	err := r.db.QueryRow(
		ctx,
		`SELECT code, title, content, author, created_at FROM pages WHERE code = $1;`,
		code,
	).Scan(&page.Code, &page.Title, &page.Text, &page.Author, &page.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}

	return &page, nil
}

// All returns every page, newest first
func (r *Repo) All(ctx context.Context) ([]*Page, error) {
	ctx, span := tracer.Start(ctx, "wikiRepo.All")
	defer span.End()

	rows, err := r.db.Query(
		ctx,
		`SELECT code, title, content, author, created_at FROM pages ORDER BY id DESC;`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		var page Page
		if err := rows.Scan(&page.Code, &page.Title, &page.Text, &page.Author, &page.CreatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, &page)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return pages, nil
}
