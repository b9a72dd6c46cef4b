package blog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	_ "modernc.org/sqlite"

	"github.com/2beens/bloglist/internal/telemetry/tracing"
	"github.com/2beens/bloglist/pkg"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS blog (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	author     TEXT NOT NULL DEFAULT '',
	url        TEXT NOT NULL,
	likes      INTEGER NOT NULL DEFAULT 0 CHECK (likes >= 0),
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_blog_created_at ON blog(created_at);
`

const sqliteBlogColumns = `id, title, author, url, likes, created_at`

var _ Store = (*SqliteRepo)(nil)

// SqliteRepo keeps blogs in a single SQLite file. created_at is stored as unix nanoseconds.
type SqliteRepo struct {
	db *sql.DB
}

func NewSqliteRepo(path string) (*SqliteRepo, error) {
	dir := filepath.Dir(path)
	dirExists, err := pkg.PathExists(dir, true)
	if err != nil {
		return nil, fmt.Errorf("check sqlite dir: %w", err)
	}
	if !dirExists {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		log.Debugf("sqlite dir created: %s", dir)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// single writer, avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	log.Debugf("sqlite blog repo opened: %s", path)

	return &SqliteRepo{db: db}, nil
}

func (r *SqliteRepo) Close() error {
	return r.db.Close()
}

func (r *SqliteRepo) ValidID(id string) bool {
	return isValidID(id)
}

func (r *SqliteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SqliteRepo) All(ctx context.Context) (_ []Blog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.sqlite.All")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+sqliteBlogColumns+` FROM blog ORDER BY created_at ASC, rowid ASC;`,
	)
	if err != nil {
		return nil, fmt.Errorf("query blogs: %w", err)
	}
	defer rows.Close()

	var blogs []Blog
	for rows.Next() {
		b, err := scanSqliteBlog(rows)
		if err != nil {
			return nil, err
		}
		blogs = append(blogs, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return blogs, nil
}

func (r *SqliteRepo) Get(ctx context.Context, id string) (_ *Blog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.sqlite.Get")
	span.SetAttributes(attribute.String("id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	id, ok := canonicalID(id)
	if !ok {
		return nil, ErrMalformedID
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteBlogColumns+` FROM blog WHERE id = ?;`, id)
	return scanSqliteBlog(row)
}

func (r *SqliteRepo) Add(ctx context.Context, blog Blog) (_ *Blog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.sqlite.Add")
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
	// keep what is returned equal to what a later read gives back
	blog.CreatedAt = time.Unix(0, blog.CreatedAt.UnixNano())

	if _, err := r.db.ExecContext(
		ctx,
		`INSERT INTO blog (id, title, author, url, likes, created_at) VALUES (?, ?, ?, ?, ?, ?);`,
		blog.ID, blog.Title, blog.Author, blog.URL, blog.Likes, blog.CreatedAt.UnixNano(),
	); err != nil {
		return nil, fmt.Errorf("insert blog: %w", err)
	}

	span.SetAttributes(attribute.String("id", blog.ID))

	return &blog, nil
}

func (r *SqliteRepo) Update(ctx context.Context, id string, upd Update) (_ *Blog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.sqlite.Update")
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

	row := r.db.QueryRowContext(
		ctx,
		`
			UPDATE blog SET
				title = COALESCE(?, title),
				author = COALESCE(?, author),
				url = COALESCE(?, url),
				likes = COALESCE(?, likes)
			WHERE id = ?
			RETURNING `+sqliteBlogColumns+`;
		`,
		nullString(upd.Title), nullString(upd.Author), nullString(upd.URL), nullInt(upd.Likes), id,
	)

	return scanSqliteBlog(row)
}

func (r *SqliteRepo) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.sqlite.Delete")
	span.SetAttributes(attribute.String("id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	id, ok := canonicalID(id)
	if !ok {
		return ErrMalformedID
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM blog WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete blog: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		log.Tracef("blog %s not deleted, not found", id)
	}

	return nil
}

type sqliteScanner interface {
	Scan(dest ...any) error
}

func scanSqliteBlog(s sqliteScanner) (*Blog, error) {
	var b Blog
	var createdAt int64
	if err := s.Scan(&b.ID, &b.Title, &b.Author, &b.URL, &b.Likes, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlogNotFound
		}
		return nil, fmt.Errorf("scan blog: %w", err)
	}
	b.CreatedAt = time.Unix(0, createdAt)
	return &b, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}
