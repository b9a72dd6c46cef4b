// Package blogstats aggregates likes and authorship over a list of blogs.
// None of the functions modify the slice they are given.
package blogstats

import (
	"errors"

	"github.com/2beens/bloglist/internal/blog"
)

// ErrEmptyInput is returned by the maximum finders when there is nothing to pick from.
var ErrEmptyInput = errors.New("no blogs given")

type Favorite struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Likes  int    `json:"likes"`
}

type AuthorBlogs struct {
	Author string `json:"author"`
	Blogs  int    `json:"blogs"`
}

type AuthorLikes struct {
	Author string `json:"author"`
	Likes  int    `json:"likes"`
}

// Dummy always returns 1.
func Dummy(_ []blog.Blog) int {
	return 1
}

func TotalLikes(blogs []blog.Blog) int {
	total := 0
	for _, b := range blogs {
		total += b.Likes
	}
	return total
}

// FavoriteBlog returns the most liked blog. On a tie the earlier blog wins.
func FavoriteBlog(blogs []blog.Blog) (*Favorite, error) {
	if len(blogs) == 0 {
		return nil, ErrEmptyInput
	}

	fav := blogs[0]
	for _, b := range blogs[1:] {
		if b.Likes > fav.Likes {
			fav = b
		}
	}

	return &Favorite{
		Title:  fav.Title,
		Author: fav.Author,
		Likes:  fav.Likes,
	}, nil
}

// MostBlogs returns the author with the most blogs. On a tie the author seen first wins.
func MostBlogs(blogs []blog.Blog) (*AuthorBlogs, error) {
	if len(blogs) == 0 {
		return nil, ErrEmptyInput
	}

	authors, counts := groupByAuthor(blogs, func(blog.Blog) int { return 1 })
	author, count := firstMax(authors, counts)

	return &AuthorBlogs{
		Author: author,
		Blogs:  count,
	}, nil
}

// MostLikes returns the author whose blogs have the most likes in total.
// On a tie the author seen first wins.
func MostLikes(blogs []blog.Blog) (*AuthorLikes, error) {
	if len(blogs) == 0 {
		return nil, ErrEmptyInput
	}

	authors, likes := groupByAuthor(blogs, func(b blog.Blog) int { return b.Likes })
	author, total := firstMax(authors, likes)

	return &AuthorLikes{
		Author: author,
		Likes:  total,
	}, nil
}

// groupByAuthor sums value(b) per author in a single pass.
// Authors are returned in the order they first appear.
func groupByAuthor(blogs []blog.Blog, value func(blog.Blog) int) ([]string, map[string]int) {
	var authors []string
	sums := make(map[string]int)
	for _, b := range blogs {
		if _, seen := sums[b.Author]; !seen {
			authors = append(authors, b.Author)
		}
		sums[b.Author] += value(b)
	}
	return authors, sums
}

func firstMax(authors []string, sums map[string]int) (string, int) {
	maxAuthor := authors[0]
	maxValue := sums[maxAuthor]
	for _, a := range authors[1:] {
		if sums[a] > maxValue {
			maxAuthor = a
			maxValue = sums[a]
		}
	}
	return maxAuthor, maxValue
}
