package lix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Facet types accepted by the sales facet endpoint.
const (
	FacetTypeTitle   = "TITLE"
	FacetTypeCompany = "COMPANY_WITH_LIST"
)

// Facet is a resolved Sales Navigator filter value.
type Facet struct {
	ID   string
	Text string
}

// facetEnvelope is the facet endpoint's response shape. Company facets nest
// the usable value under the first element's children.
type facetEnvelope struct {
	Data struct {
		Elements []facetElement `json:"elements"`
	} `json:"data"`
}

type facetElement struct {
	ID           facetID        `json:"id"`
	DisplayValue string         `json:"displayValue"`
	Children     []facetElement `json:"children"`
}

// facetID tolerates both id shapes the facet endpoint returns: title facets
// carry numeric ids, company facets carry URN strings like
// "urn:li:company:1441".
type facetID string

func (id *facetID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = facetID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("facet id %s is neither a number nor a string", data)
	}
	*id = facetID(n.String())
	return nil
}

// LookupFacet resolves a free-text query (a job title or company name) to
// its Sales Navigator facet id.
func (c *Client) LookupFacet(ctx context.Context, facetType, query string) (*Facet, error) {
	q := url.Values{
		"type":  {facetType},
		"query": {query},
	}

	body, err := c.getJSON(ctx, "/v1/search/sales/facet", q, c.lookupPolicy, true)
	if err != nil {
		return nil, err
	}

	var env facetEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode facet response: %w", err)
	}
	if len(env.Data.Elements) == 0 {
		return nil, fmt.Errorf("no facet found for %q", query)
	}

	element := env.Data.Elements[0]
	if facetType == FacetTypeCompany {
		if len(element.Children) == 0 {
			return nil, fmt.Errorf("no company facet found for %q", query)
		}
		element = element.Children[0]
	}

	return &Facet{ID: string(element.ID), Text: element.DisplayValue}, nil
}

// BuildLeadsFilters builds the Sales Navigator filter DSL from resolved
// title and company facets. Facet ids and text are URL-encoded inside the
// DSL; the whole filter string is encoded again when placed in the search
// URL.
func BuildLeadsFilters(titles, companies []Facet) string {
	var filters []string

	if len(titles) > 0 {
		values := make([]string, 0, len(titles))
		for _, f := range titles {
			values = append(values, fmt.Sprintf(
				"(id:%s,text:%s,selectionType:INCLUDED)",
				f.ID, url.QueryEscape(f.Text),
			))
		}
		filters = append(filters, fmt.Sprintf("(type:CURRENT_TITLE,values:List(%s))", strings.Join(values, ",")))
	}

	if len(companies) > 0 {
		values := make([]string, 0, len(companies))
		for _, f := range companies {
			values = append(values, fmt.Sprintf(
				"(id:%s,text:%s,selectionType:INCLUDED,parent:(id:0))",
				url.QueryEscape(f.ID), url.QueryEscape(f.Text),
			))
		}
		filters = append(filters, fmt.Sprintf("(type:CURRENT_COMPANY,values:List(%s))", strings.Join(values, ",")))
	}

	return fmt.Sprintf("List(%s)", strings.Join(filters, ","))
}

// BuildLeadsSearchURL builds a Sales Navigator people search URL from a
// filter DSL string.
func BuildLeadsSearchURL(filters string) string {
	return "https://www.linkedin.com/sales/search/people?query=(filters%3A" + url.QueryEscape(filters) + ")"
}
