package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// BlogSchema is idempotent, safe to run on every start.
const BlogSchema = `
CREATE TABLE IF NOT EXISTS public.blog
(
    id         UUID PRIMARY KEY,
    title      VARCHAR NOT NULL,
    author     VARCHAR NOT NULL DEFAULT '',
    url        VARCHAR NOT NULL,
    likes      INTEGER NOT NULL DEFAULT 0 CHECK (likes >= 0),
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS ix_blog_created_at ON public.blog USING btree (created_at);
CREATE INDEX IF NOT EXISTS ix_blog_author ON public.blog (author);
`

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, BlogSchema); err != nil {
		return fmt.Errorf("ensure blog schema: %w", err)
	}
	return nil
}
