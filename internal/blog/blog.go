package blog

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBlogNotFound = errors.New("blog not found")
	ErrMalformedID  = errors.New("malformatted id")
)

type Blog struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	URL       string    `json:"url"`
	Likes     int       `json:"likes"`
	CreatedAt time.Time `json:"created_at"`
}

// Update holds the fields of a blog to be overwritten; nil fields are left as they are.
type Update struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
	URL    *string `json:"url"`
	Likes  *int    `json:"likes"`
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("blog validation failed: %s: %s", e.Field, e.Message)
}

func requiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("path `%s` is required", field),
	}
}

func negativeLikesError() *ValidationError {
	return &ValidationError{
		Field:   "likes",
		Message: "path `likes` cannot be negative",
	}
}

func (b *Blog) Validate() error {
	if b.Title == "" {
		return requiredFieldError("title")
	}
	if b.URL == "" {
		return requiredFieldError("url")
	}
	if b.Likes < 0 {
		return negativeLikesError()
	}
	return nil
}

func (u *Update) Validate() error {
	if u.Title != nil && *u.Title == "" {
		return requiredFieldError("title")
	}
	if u.URL != nil && *u.URL == "" {
		return requiredFieldError("url")
	}
	if u.Likes != nil && *u.Likes < 0 {
		return negativeLikesError()
	}
	return nil
}

// ApplyTo overwrites the supplied fields on b.
func (u *Update) ApplyTo(b *Blog) {
	if u.Title != nil {
		b.Title = *u.Title
	}
	if u.Author != nil {
		b.Author = *u.Author
	}
	if u.URL != nil {
		b.URL = *u.URL
	}
	if u.Likes != nil {
		b.Likes = *u.Likes
	}
}

// newID returns a fresh blog identifier.
func newID() string {
	return uuid.NewString()
}

// isValidID reports whether id has the hyphenated UUID form used for blog ids.
func isValidID(id string) bool {
	_, ok := canonicalID(id)
	return ok
}

// canonicalID returns the lowercase form of a well-formed id, so every store
// finds a record no matter the case the id was sent in.
func canonicalID(id string) (string, bool) {
	if len(id) != 36 {
		return "", false
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
