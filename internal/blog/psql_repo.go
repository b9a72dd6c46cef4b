package blog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/bloglist/internal/telemetry/tracing"
)

// manual caching of prepared statements not needed:
// https://github.com/jackc/pgx/wiki/Automatic-Prepared-Statement-Caching

const psqlBlogColumns = `id::text, title, author, url, likes, created_at`

var _ Store = (*PsqlRepo)(nil)

type PsqlRepo struct {
	db *pgxpool.Pool
}

func NewPsqlRepo(db *pgxpool.Pool) *PsqlRepo {
	return &PsqlRepo{
		db: db,
	}
}

func (r *PsqlRepo) ValidID(id string) bool {
	return isValidID(id)
}

func (r *PsqlRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *PsqlRepo) All(ctx context.Context) (_ []Blog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.psql.All")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT `+psqlBlogColumns+` FROM blog ORDER BY created_at ASC, id ASC;`,
	)
	if err != nil {
		return nil, fmt.Errorf("query blogs: %w", err)
	}
	defer rows.Close()

	return r.rows2blogs(rows)
}

func (r *PsqlRepo) Get(ctx context.Context, id string) (_ *Blog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.psql.Get")
	span.SetAttributes(attribute.String("id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	id, ok := canonicalID(id)
	if !ok {
		return nil, ErrMalformedID
	}

	row := r.db.QueryRow(ctx, `SELECT `+psqlBlogColumns+` FROM blog WHERE id = $1;`, id)
	return scanBlog(row)
}

func (r *PsqlRepo) Add(ctx context.Context, blog Blog) (_ *Blog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.psql.Add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := blog.Validate(); err != nil {
		return nil, err
	}

	blog.ID = newID()
	if blog.CreatedAt.IsZero() {
		blog.CreatedAt = time.Now()
	}
	// timestamptz keeps microseconds
	blog.CreatedAt = blog.CreatedAt.Truncate(time.Microsecond)

	if _, err := r.db.Exec(
		ctx,
		`INSERT INTO blog (id, title, author, url, likes, created_at) VALUES ($1, $2, $3, $4, $5, $6);`,
		blog.ID, blog.Title, blog.Author, blog.URL, blog.Likes, blog.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert blog: %w", err)
	}

	span.SetAttributes(attribute.String("id", blog.ID))

	return &blog, nil
}

// Update overwrites only the supplied fields, in a single statement.
func (r *PsqlRepo) Update(ctx context.Context, id string, upd Update) (_ *Blog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.psql.Update")
	span.SetAttributes(attribute.String("id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	id, ok := canonicalID(id)
	if !ok {
		return nil, ErrMalformedID
	}
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	row := r.db.QueryRow(
		ctx,
		`
			UPDATE blog SET
				title = COALESCE($2, title),
				author = COALESCE($3, author),
				url = COALESCE($4, url),
				likes = COALESCE($5, likes)
			WHERE id = $1
			RETURNING `+psqlBlogColumns+`;
		`,
		id, upd.Title, upd.Author, upd.URL, upd.Likes,
	)

	return scanBlog(row)
}

func (r *PsqlRepo) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.psql.Delete")
	span.SetAttributes(attribute.String("id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	id, ok := canonicalID(id)
	if !ok {
		return ErrMalformedID
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM blog WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete blog: %w", err)
	}
	if tag.RowsAffected() == 0 {
		log.Tracef("blog %s not deleted, not found", id)
	}

	return nil
}

func (r *PsqlRepo) rows2blogs(rows pgx.Rows) ([]Blog, error) {
	var blogs []Blog
	for rows.Next() {
		var b Blog
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.URL, &b.Likes, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan blog: %w", err)
		}
		blogs = append(blogs, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return blogs, nil
}

func scanBlog(row pgx.Row) (*Blog, error) {
	var b Blog
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.URL, &b.Likes, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlogNotFound
		}
		return nil, fmt.Errorf("scan blog: %w", err)
	}
	return &b, nil
}
