package lix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/lix-it/prospector/pkg/paginate"
)

// peopleSearchPageSize is the fixed page size of standard LinkedIn people
// search results.
const peopleSearchPageSize = 10

// searchEnvelope is the common shape of search responses. Standard search
// nests paging under "response"; the sales nav endpoint reports it at the
// top level.
type searchEnvelope struct {
	People   []json.RawMessage `json:"people"`
	Paging   *searchPaging     `json:"paging"`
	Response struct {
		Paging *searchPaging `json:"paging"`
	} `json:"response"`
	Meta struct {
		SequenceID string `json:"sequenceId"`
	} `json:"meta"`
}

type searchPaging struct {
	Start int `json:"start"`
	Count int `json:"count"`
	Total int `json:"total"`
}

// SearchPeoplePage fetches one page of a standard LinkedIn people search.
// The cursor's Offset addresses the page (10 results per page) and its
// Token carries the sequence id that keeps collection settings stable
// between requests.
func (c *Client) SearchPeoplePage(ctx context.Context, searchURL string, cur paginate.Cursor) (*paginate.Page, error) {
	paginated, err := setQueryParam(searchURL, "page", strconv.Itoa(cur.Offset/peopleSearchPageSize+1))
	if err != nil {
		return nil, fmt.Errorf("build search url: %w", err)
	}

	query := url.Values{"url": {paginated}}
	if cur.Token != "" {
		query.Set("sequence_id", cur.Token)
	}

	body, err := c.getJSON(ctx, "/v1/li/linkedin/search/people", query, c.paginationPolicy, false)
	if err != nil {
		return nil, err
	}
	return parseSearchPage(body, cur)
}

// SearchLeadsPage fetches one page of a Sales Navigator leads search via
// the POST form variant, which accepts queries too large for a URL. The
// cursor's Page addresses the page; its Token echoes the server-issued
// sequence id.
func (c *Client) SearchLeadsPage(ctx context.Context, searchURL string, cur paginate.Cursor) (*paginate.Page, error) {
	pageNum := cur.Page
	if pageNum < 1 {
		pageNum = 1
	}

	form := url.Values{
		"url":         {searchURL + "&page=" + strconv.Itoa(pageNum)},
		"sequence_id": {cur.Token},
	}

	body, err := c.postForm(ctx, "/v1/li/sales/search/people", form, c.paginationPolicy)
	if err != nil {
		return nil, err
	}
	return parseSearchPage(body, cur)
}

// parseSearchPage maps a search response body to a paginate.Page.
func parseSearchPage(body []byte, cur paginate.Cursor) (*paginate.Page, error) {
	var env searchEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode search page: %w", err)
	}

	paging := env.Paging
	if paging == nil {
		paging = env.Response.Paging
	}

	page := &paginate.Page{
		Items:    env.People,
		Sequence: env.Meta.SequenceID,
		Raw:      body,
	}
	if paging != nil {
		page.Start = paging.Start
		page.Count = paging.Count
		page.Total = paging.Total
	} else {
		page.Count = len(env.People)
	}
	if page.Start == 0 && cur.Offset > 0 {
		page.Start = cur.Offset
	}

	return page, nil
}

// setQueryParam returns rawURL with the query parameter set, preserving the
// rest of the URL.
func setQueryParam(rawURL, key, value string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := parsed.Query()
	q.Set(key, value)
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}
