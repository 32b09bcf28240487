package lookc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/lix-it/prospector/pkg/paginate"
)

// employeesEnvelope is the employee listing response shape.
type employeesEnvelope struct {
	Employees []json.RawMessage `json:"employees"`
	Paging    struct {
		Links struct {
			Next string `json:"next"`
		} `json:"_links"`
	} `json:"paging"`
}

// Employee is one employee record, with the fields the collector extracts
// into columns. The raw payload is stored alongside.
type Employee struct {
	PersonID    string `json:"personId"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	DateStarted string `json:"dateStarted"`
	DateEnded   string `json:"dateEnded"`
	Location    string `json:"location"`
	Image       string `json:"image"`
	Links       struct {
		LinkedIn string `json:"linkedin"`
		SalesNav string `json:"salesNav"`
	} `json:"links"`
	CurrentOrg struct {
		OrgID string `json:"orgId"`
		Name  string `json:"name"`
	} `json:"currentOrg"`
	TenureAtOrg  *Tenure `json:"tenureAtOrg"`
	TenureInRole *Tenure `json:"tenureInRole"`
}

// Tenure is a duration reported in years and months.
type Tenure struct {
	Years  int `json:"years"`
	Months int `json:"months"`
}

// TotalMonths flattens a tenure to months. A nil tenure returns 0, false.
func (t *Tenure) TotalMonths() (int, bool) {
	if t == nil {
		return 0, false
	}
	return t.Years*12 + t.Months, true
}

// ListEmployeesPage fetches one page of an organisation's employees. The
// cursor's Token is the "after" cursor extracted from the previous page's
// next link; empty on the first request. The returned page's NextLink
// carries the link for the Link strategy to consume.
func (c *Client) ListEmployeesPage(ctx context.Context, orgID string, pageSize int, cur paginate.Cursor) (*paginate.Page, error) {
	query := url.Values{}
	if cur.Token != "" {
		query.Set("after", cur.Token)
	}
	if pageSize > 0 {
		query.Set("page_size", strconv.Itoa(pageSize))
	}

	body, err := c.getJSON(ctx, "/org/"+url.PathEscape(orgID)+"/employees", query)
	if err != nil {
		return nil, err
	}

	var env employeesEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode employees page: %w", err)
	}

	return &paginate.Page{
		Items:    env.Employees,
		Count:    len(env.Employees),
		NextLink: env.Paging.Links.Next,
		Raw:      body,
	}, nil
}
