package wiki

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var _ pageRepo = (*TestRepo)(nil)

// TestRepo is an in-memory page store for unit tests, keeping insertion
// order so All() can return newest-first like the real repo.
type TestRepo struct {
	mutex sync.RWMutex
	Pages map[string]*Page
	order []string
	seq   int
}

func NewTestRepo() *TestRepo {
	return &TestRepo{
		Pages: make(map[string]*Page),
	}
}

func (r *TestRepo) PagesCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.Pages)
}

func (r *TestRepo) Add(_ context.Context, page *Page) error {
	if page.Title == "" || page.Text == "" {
		return ErrPageTitleOrTextEmpty
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.seq++
	if page.Code == "" {
		page.Code = fmt.Sprintf("testcode%04d", r.seq)
	}
	if page.CreatedAt.IsZero() {
		page.CreatedAt = time.Now()
	}

	r.Pages[page.Code] = page
	r.order = append(r.order, page.Code)
	return nil
}

func (r *TestRepo) Update(_ context.Context, code, title, text string) error {
	if title == "" || text == "" {
		return ErrPageTitleOrTextEmpty
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	page, ok := r.Pages[code]
	if !ok {
		return ErrPageNotFound
	}
	page.Title = title
	page.Text = text
	return nil
}

func (r *TestRepo) Delete(_ context.Context, code string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.Pages[code]; !ok {
		return ErrPageNotFound
	}
	delete(r.Pages, code)
	for i, c := range r.order {
		if c == code {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *TestRepo) Get(_ context.Context, code string) (*Page, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	page, ok := r.Pages[code]
	if !ok {
		return nil, ErrPageNotFound
	}
	return page, nil
}

func (r *TestRepo) All(_ context.Context) ([]*Page, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	pages := make([]*Page, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		pages = append(pages, r.Pages[r.order[i]])
	}
	return pages, nil
}
