package blogstats

import (
	"context"

	"github.com/2beens/bloglist/internal/blog"
)

var _ blog.Store = (*InvalidatingStore)(nil)

// InvalidatingStore drops the cached report after every successful write to the wrapped store.
type InvalidatingStore struct {
	blog.Store
	reporter *Reporter
}

func NewInvalidatingStore(store blog.Store, reporter *Reporter) *InvalidatingStore {
	return &InvalidatingStore{
		Store:    store,
		reporter: reporter,
	}
}

func (s *InvalidatingStore) Add(ctx context.Context, b blog.Blog) (*blog.Blog, error) {
	added, err := s.Store.Add(ctx, b)
	if err == nil {
		s.reporter.Invalidate()
	}
	return added, err
}

func (s *InvalidatingStore) Update(ctx context.Context, id string, upd blog.Update) (*blog.Blog, error) {
	updated, err := s.Store.Update(ctx, id, upd)
	if err == nil {
		s.reporter.Invalidate()
	}
	return updated, err
}

func (s *InvalidatingStore) Delete(ctx context.Context, id string) error {
	err := s.Store.Delete(ctx, id)
	if err == nil {
		s.reporter.Invalidate()
	}
	return err
}
