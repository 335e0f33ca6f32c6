package wiki

import (
	"errors"
	"time"
)

var (
	ErrPageNotFound         = errors.New("page not found")
	ErrPageTitleOrTextEmpty = errors.New("page title or text empty")
	ErrPageCodeCollision    = errors.New("page code collision")
)

// PageCodeLength - public locator for a page, not a secret (pages are
// listed on the index), but still random so codes are not enumerable
const PageCodeLength = 12

// Page is a wiki page. Text holds the raw Markdown source, never HTML;
// rendering happens on the way out. Code is assigned on insert and
// immutable after that.
type Page struct {
	Code      string    `json:"code"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}
