package lix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Email statuses reported by the contact API.
const (
	EmailStatusValid    = "VALID"
	EmailStatusProbable = "PROBABLE"
	EmailStatusUnknown  = "UNKNOWN"
)

// EmailResult is the contact API's answer for one profile.
type EmailResult struct {
	Email        string   `json:"email"`
	Status       string   `json:"status"`
	Alternatives []string `json:"alternatives"`

	// Raw is the full response payload.
	Raw []byte `json:"-"`
}

// GetEmailByLinkedIn looks up the email address for a LinkedIn profile URL.
// A profile the API cannot resolve returns an error wrapping retry.ErrSkip;
// the caller marks the item unresolved and moves on.
func (c *Client) GetEmailByLinkedIn(ctx context.Context, profileURL string) (*EmailResult, error) {
	query := url.Values{"url": {profileURL}}

	body, err := c.getJSON(ctx, "/v1/contact/email/by-linkedin", query, c.lookupPolicy, true)
	if err != nil {
		return nil, err
	}

	var result EmailResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode email result: %w", err)
	}
	if result.Status == "" {
		result.Status = EmailStatusUnknown
	}
	result.Raw = body

	return &result, nil
}
