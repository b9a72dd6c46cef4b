//go:build integration_test || all_tests

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/2beens/bloglist/internal/blog"
	"github.com/2beens/bloglist/internal/blogstats"
)

func (s *IntegrationTestSuite) doJSONRequest(ctx context.Context, method, path string, payload any) *http.Response {
	var body io.Reader
	if payload != nil {
		payloadJson, err := json.Marshal(payload)
		s.Require().NoError(err)
		body = bytes.NewReader(payloadJson)
	}

	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, body)
	s.Require().NoError(err)
	req.Header.Set("User-Agent", "test-agent")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() {
		_ = resp.Body.Close()
	})

	return resp
}

func (s *IntegrationTestSuite) createBlog(ctx context.Context, payload map[string]any) blog.Blog {
	resp := s.doJSONRequest(ctx, "POST", "/api/blogs", payload)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var created blog.Blog
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&created))
	return created
}

func (s *IntegrationTestSuite) listBlogs(ctx context.Context) []blog.Blog {
	resp := s.doJSONRequest(ctx, "GET", "/api/blogs", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var blogs []blog.Blog
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&blogs))
	return blogs
}

func (s *IntegrationTestSuite) TestBlogs_EmptyList() {
	ctx := context.Background()
	resp := s.doJSONRequest(ctx, "GET", "/api/blogs", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Contains(resp.Header.Get("Content-Type"), "application/json")

	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.JSONEq(`[]`, string(body))
}

func (s *IntegrationTestSuite) TestBlogs_Lifecycle() {
	ctx := context.Background()

	payloads := make([]map[string]any, 3)
	for i := range payloads {
		payloads[i] = map[string]any{
			"title":  gofakeit.Sentence(4),
			"author": gofakeit.Name(),
			"url":    gofakeit.URL(),
			"likes":  i * 3,
		}
	}

	var created []blog.Blog
	for _, p := range payloads {
		b := s.createBlog(ctx, p)
		s.Len(b.ID, 36)
		s.Equal(p["title"], b.Title)
		created = append(created, b)
	}

	blogs := s.listBlogs(ctx)
	s.Require().Len(blogs, len(payloads))
	for i := range blogs {
		s.Equal(created[i].ID, blogs[i].ID, "blogs listed in creation order")
	}

	// get one
	resp := s.doJSONRequest(ctx, "GET", "/api/blogs/"+created[1].ID, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var fetched blog.Blog
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&fetched))
	s.Equal(created[1].Title, fetched.Title)
	s.Equal(3, fetched.Likes)

	// partial update, only likes
	resp = s.doJSONRequest(ctx, "PUT", "/api/blogs/"+created[1].ID, map[string]any{"likes": 42})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var updated blog.Blog
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&updated))
	s.Equal(42, updated.Likes)
	s.Equal(created[1].Title, updated.Title)
	s.Equal(created[1].URL, updated.URL)

	// delete twice, both succeed
	for range 2 {
		resp = s.doJSONRequest(ctx, "DELETE", "/api/blogs/"+created[0].ID, nil)
		s.Equal(http.StatusNoContent, resp.StatusCode)
	}

	blogs = s.listBlogs(ctx)
	s.Require().Len(blogs, 2)
	s.Equal(created[1].ID, blogs[0].ID)
	s.Equal(created[2].ID, blogs[1].ID)

	resp = s.doJSONRequest(ctx, "GET", "/api/blogs/"+created[0].ID, nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestBlogs_LikesDefaultToZero() {
	ctx := context.Background()
	b := s.createBlog(ctx, map[string]any{
		"title": "Type wars",
		"url":   "http://blog.cleancoder.com/uncle-bob/2016/05/01/TypeWars.html",
	})
	s.Equal(0, b.Likes)
	s.Equal("", b.Author)
}

func (s *IntegrationTestSuite) TestBlogs_Errors() {
	ctx := context.Background()

	testCases := []struct {
		name         string
		method       string
		path         string
		payload      any
		expectedCode int
		expectedErr  string
	}{
		{
			name:         "missing title",
			method:       "POST",
			path:         "/api/blogs",
			payload:      map[string]any{"url": "http://example.com"},
			expectedCode: http.StatusBadRequest,
			expectedErr:  "blog validation failed: title: path `title` is required",
		},
		{
			name:         "negative likes",
			method:       "POST",
			path:         "/api/blogs",
			payload:      map[string]any{"title": "t", "url": "http://example.com", "likes": -1},
			expectedCode: http.StatusBadRequest,
			expectedErr:  "blog validation failed: likes: path `likes` cannot be negative",
		},
		{
			name:         "malformed id",
			method:       "GET",
			path:         "/api/blogs/5a3d5da59070081a82a3445",
			expectedCode: http.StatusBadRequest,
			expectedErr:  "malformatted id",
		},
		{
			name:         "unknown id",
			method:       "PUT",
			path:         "/api/blogs/" + gofakeit.UUID(),
			payload:      map[string]any{"likes": 1},
			expectedCode: http.StatusNotFound,
			expectedErr:  "blog not found",
		},
		{
			name:         "unknown endpoint",
			method:       "GET",
			path:         "/api/notes",
			expectedCode: http.StatusNotFound,
			expectedErr:  "unknown endpoint",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			resp := s.doJSONRequest(ctx, tc.method, tc.path, tc.payload)
			s.Equal(tc.expectedCode, resp.StatusCode)

			var errResp map[string]string
			s.Require().NoError(json.NewDecoder(resp.Body).Decode(&errResp))
			s.Equal(tc.expectedErr, errResp["error"])
		})
	}

	s.Empty(s.listBlogs(ctx), "nothing stored by failed requests")
}

func (s *IntegrationTestSuite) TestStats() {
	ctx := context.Background()

	seed := []map[string]any{
		{"title": "React patterns", "author": "Michael Chan", "url": "https://reactpatterns.com/", "likes": 7},
		{"title": "Go To Statement Considered Harmful", "author": "Edsger W. Dijkstra", "url": "http://example.com/goto", "likes": 5},
		{"title": "Canonical string reduction", "author": "Edsger W. Dijkstra", "url": "http://example.com/csr", "likes": 12},
		{"title": "First class tests", "author": "Robert C. Martin", "url": "http://example.com/fct", "likes": 10},
	}
	for _, p := range seed {
		s.createBlog(ctx, p)
	}

	report := s.getStats(ctx)
	s.Equal(4, report.Count)
	s.Equal(34, report.TotalLikes)
	s.Require().NotNil(report.FavoriteBlog)
	s.Equal("Canonical string reduction", report.FavoriteBlog.Title)
	s.Require().NotNil(report.MostBlogs)
	s.Equal(blogstats.AuthorBlogs{Author: "Edsger W. Dijkstra", Blogs: 2}, *report.MostBlogs)
	s.Require().NotNil(report.MostLikes)
	s.Equal(blogstats.AuthorLikes{Author: "Edsger W. Dijkstra", Likes: 17}, *report.MostLikes)

	// a write drops the cached report
	s.createBlog(ctx, map[string]any{"title": "TDD harms architecture", "author": "Robert C. Martin", "url": "http://example.com/tdd", "likes": 20})
	report = s.getStats(ctx)
	s.Equal(5, report.Count)
	s.Equal(54, report.TotalLikes)
	s.Equal(blogstats.AuthorLikes{Author: "Robert C. Martin", Likes: 30}, *report.MostLikes)
}

func (s *IntegrationTestSuite) getStats(ctx context.Context) blogstats.Report {
	resp := s.doJSONRequest(ctx, "GET", "/api/blogs/stats", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var report blogstats.Report
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&report))
	return report
}
