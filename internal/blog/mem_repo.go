package blog

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Store = (*MemRepo)(nil)

// MemRepo is a Store kept entirely in process memory. Data is lost on restart.
type MemRepo struct {
	mutex sync.RWMutex
	blogs map[string]Blog
	order []string
}

func NewMemRepo() *MemRepo {
	return &MemRepo{
		blogs: make(map[string]Blog),
		order: make([]string, 0),
	}
}

func (r *MemRepo) ValidID(id string) bool {
	return isValidID(id)
}

func (r *MemRepo) Ping(_ context.Context) error {
	return nil
}

func (r *MemRepo) All(_ context.Context) ([]Blog, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	blogs := make([]Blog, 0, len(r.order))
	for _, id := range r.order {
		blogs = append(blogs, r.blogs[id])
	}
	// stable, so equal timestamps keep insertion order
	sort.SliceStable(blogs, func(i, j int) bool {
		return blogs[i].CreatedAt.Before(blogs[j].CreatedAt)
	})

	return blogs, nil
}

func (r *MemRepo) Get(_ context.Context, id string) (*Blog, error) {
	id, ok := canonicalID(id)
	if !ok {
		return nil, ErrMalformedID
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	b, ok := r.blogs[id]
	if !ok {
		return nil, ErrBlogNotFound
	}

	return &b, nil
}

func (r *MemRepo) Add(_ context.Context, blog Blog) (*Blog, error) {
	if err := blog.Validate(); err != nil {
		return nil, err
	}

	blog.ID = newID()
	if blog.CreatedAt.IsZero() {
		blog.CreatedAt = time.Now()
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.blogs[blog.ID] = blog
	r.order = append(r.order, blog.ID)

	return &blog, nil
}

func (r *MemRepo) Update(_ context.Context, id string, upd Update) (*Blog, error) {
	id, ok := canonicalID(id)
	if !ok {
		return nil, ErrMalformedID
	}
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	b, ok := r.blogs[id]
	if !ok {
		return nil, ErrBlogNotFound
	}

	upd.ApplyTo(&b)
	r.blogs[id] = b

	return &b, nil
}

func (r *MemRepo) Delete(_ context.Context, id string) error {
	id, ok := canonicalID(id)
	if !ok {
		return ErrMalformedID
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.blogs[id]; !ok {
		return nil
	}

	delete(r.blogs, id)
	for i, orderedID := range r.order {
		if orderedID == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return nil
}

// Count returns the number of stored blogs.
func (r *MemRepo) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.blogs)
}
