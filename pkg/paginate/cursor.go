package paginate

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Cursor marks where the next page fetch should resume. Which fields are
// meaningful depends on the strategy in use.
type Cursor struct {
	// Offset is the numeric position for offset-addressed endpoints. The
	// sequence strategy reuses it as the cumulative collected count.
	Offset int

	// Token is the opaque server-issued token (sequence id or "after"
	// cursor), empty on the first request.
	Token string

	// Page is the 1-based page number for page-addressed endpoints.
	Page int
}

// IsZero reports whether the cursor is the initial position.
func (c Cursor) IsZero() bool {
	return c.Offset == 0 && c.Token == "" && c.Page <= 1
}

// Page is one page of a paginated result set, with the paging fields the
// three endpoint families report.
type Page struct {
	// Items are the page's result items.
	Items []json.RawMessage

	// Start is the server-reported offset of the first item, where present.
	Start int

	// Count is the number of items the server reports for this page.
	Count int

	// Total is the server-reported size of the whole result set (0 when
	// the endpoint does not report one).
	Total int

	// Sequence is the server-issued sequence token, where present.
	Sequence string

	// NextLink is the next-page link, where present. Empty means the last
	// page.
	NextLink string

	// Raw is the full response body as received.
	Raw []byte
}

// Strategy derives the next cursor from the page just fetched.
type Strategy interface {
	// Advance maps the last page to the next cursor and reports whether
	// the result set is exhausted.
	Advance(cur Cursor, page *Page) (next Cursor, done bool, err error)
}

// OffsetStrategy pages through endpoints that report start, count and total
// fields. The next position is start+count; the walk is done once that
// position reaches the reported total. The sequence token, where the
// endpoint issues one, is carried forward.
type OffsetStrategy struct{}

// Advance implements Strategy.
func (OffsetStrategy) Advance(cur Cursor, page *Page) (Cursor, bool, error) {
	start := page.Start
	if start == 0 && cur.Offset > 0 {
		start = cur.Offset
	}

	next := Cursor{Offset: start + page.Count, Token: cur.Token}
	if page.Sequence != "" {
		next.Token = page.Sequence
	}
	if page.Count == 0 {
		return next, true, nil
	}
	if page.Total > 0 && next.Offset >= page.Total {
		return next, true, nil
	}
	return next, false, nil
}

// SequenceStrategy pages through endpoints addressed by page number that
// return an opaque sequence token to be echoed on subsequent requests. The
// cursor's Offset carries the cumulative collected count so resumption can
// compare it with the reported total.
type SequenceStrategy struct{}

// Advance implements Strategy.
func (SequenceStrategy) Advance(cur Cursor, page *Page) (Cursor, bool, error) {
	pageNum := cur.Page
	if pageNum < 1 {
		pageNum = 1
	}

	next := Cursor{
		Offset: cur.Offset + page.Count,
		Token:  cur.Token,
		Page:   pageNum + 1,
	}
	if page.Sequence != "" {
		next.Token = page.Sequence
	}

	if page.Count == 0 {
		return next, true, nil
	}
	if page.Total > 0 && next.Offset >= page.Total {
		return next, true, nil
	}
	return next, false, nil
}

// LinkStrategy pages through endpoints that return a next-page link with an
// embedded cursor query parameter. An absent link means the last page.
type LinkStrategy struct {
	// Param is the query parameter carrying the cursor. Defaults to "after".
	Param string
}

// Advance implements Strategy.
func (s LinkStrategy) Advance(cur Cursor, page *Page) (Cursor, bool, error) {
	next := Cursor{Offset: cur.Offset + page.Count}

	if page.NextLink == "" {
		return next, true, nil
	}

	param := s.Param
	if param == "" {
		param = "after"
	}

	token, err := extractLinkParam(page.NextLink, param)
	if err != nil {
		return next, false, err
	}
	if token == "" {
		return next, true, nil
	}

	next.Token = token
	return next, false, nil
}

// extractLinkParam pulls a query parameter out of a next-page link, which
// may be absolute, relative, or a bare query string.
func extractLinkParam(link, param string) (string, error) {
	raw := link
	if i := strings.Index(link, "?"); i >= 0 {
		raw = link[i+1:]
	} else if !strings.Contains(link, "=") {
		return "", fmt.Errorf("next link %q has no query string", link)
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return "", fmt.Errorf("parse next link %q: %w", link, err)
	}
	return values.Get(param), nil
}
