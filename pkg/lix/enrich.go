package lix

import (
	"context"
	"net/url"
)

// GetPersonByLinkedIn fetches a person profile by LinkedIn profile URL and
// returns the raw JSON payload. A missing profile returns an error wrapping
// retry.ErrSkip.
func (c *Client) GetPersonByLinkedIn(ctx context.Context, profileURL string) ([]byte, error) {
	query := url.Values{"profile_link": {profileURL}}
	return c.getJSON(ctx, "/v1/person", query, c.lookupPolicy, true)
}

// GetOrganisationByLinkedIn fetches an organisation profile by LinkedIn
// company URL and returns the raw JSON payload.
func (c *Client) GetOrganisationByLinkedIn(ctx context.Context, orgURL string) ([]byte, error) {
	query := url.Values{"linkedin_url": {orgURL}}
	return c.getJSON(ctx, "/v1/organisations/by-linkedin", query, c.lookupPolicy, true)
}

// GetOrganisationByDomain fetches an organisation profile by website domain
// and returns the raw JSON payload.
func (c *Client) GetOrganisationByDomain(ctx context.Context, domain string) ([]byte, error) {
	return c.getJSON(ctx, "/v1/organisations/by-domain/"+url.PathEscape(domain), nil, c.lookupPolicy, true)
}
