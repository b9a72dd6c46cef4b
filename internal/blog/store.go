package blog

import "context"

//go:generate mockgen -source=$GOFILE -destination=store_mocks_test.go -package=blog_test

// Store persists blogs. Implementations return ErrMalformedID for ids not passing ValidID,
// and ErrBlogNotFound from Get and Update when no blog has the given id.
// Deleting a missing blog is not an error.
type Store interface {
	ValidID(id string) bool
	All(ctx context.Context) ([]Blog, error)
	Get(ctx context.Context, id string) (*Blog, error)
	Add(ctx context.Context, blog Blog) (*Blog, error)
	Update(ctx context.Context, id string, upd Update) (*Blog, error)
	Delete(ctx context.Context, id string) error
}
