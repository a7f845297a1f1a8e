package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/recluta/authgate/permission"
)

// ChannelKind classifies a verification channel destination.
type ChannelKind string

const (
	// ChannelPersonalEmail is a personal email address.
	ChannelPersonalEmail ChannelKind = "personal_email"
	// ChannelOrganizationalEmail is an organization-issued email address.
	ChannelOrganizationalEmail ChannelKind = "organizational_email"
	// ChannelPhone is a phone number reachable by SMS.
	ChannelPhone ChannelKind = "phone"
)

// Channel is one reachable out-of-band destination for code delivery.
// Masked is the only representation of the destination this subsystem
// ever sees; the unmasked value stays inside the identity service.
type Channel struct {
	ID     string      `json:"id"`
	Kind   ChannelKind `json:"kind"`
	Masked string      `json:"masked"`
}

// IdentityResult is the identity service's answer for an identifier.
type IdentityResult struct {
	Active   bool
	RoleID   string
	Channels []Channel
}

type validateRequest struct {
	Identifier string `json:"identifier"`
}

type validateResponse struct {
	Active   bool      `json:"active"`
	RoleID   string    `json:"roleId"`
	Channels []Channel `json:"channels"`
}

// ValidateIdentifier confirms the identifier exists and is active and
// returns its role id plus verification channel set. An unknown or
// inactive identifier yields [ErrIdentifierNotFound].
func (c *Client) ValidateIdentifier(ctx context.Context, identifier string) (*IdentityResult, error) {
	var resp validateResponse
	err := c.postJSON(ctx, c.cfg.IdentityBaseURL+"/api/identifiers/validate",
		validateRequest{Identifier: identifier}, &resp)
	if err != nil {
		return nil, mapStatus(err, ErrIdentifierNotFound, ErrIdentifierNotFound)
	}
	if !resp.Active {
		return nil, ErrIdentifierNotFound
	}
	return &IdentityResult{
		Active:   resp.Active,
		RoleID:   resp.RoleID,
		Channels: resp.Channels,
	}, nil
}

type issueTokenRequest struct {
	Identifier    string `json:"identifier"`
	DurationHours int    `json:"durationHours"`
}

type issueTokenResponse struct {
	Token string `json:"token"`
}

// IssueToken asks the identity service to mint a signed session token
// for the identifier, valid for the given number of hours.
func (c *Client) IssueToken(ctx context.Context, identifier string, hours int) (string, error) {
	if hours <= 0 {
		return "", fmt.Errorf("upstream: invalid token duration %d", hours)
	}
	var resp issueTokenResponse
	err := c.postJSON(ctx, c.cfg.IdentityBaseURL+"/api/tokens",
		issueTokenRequest{Identifier: identifier, DurationHours: hours}, &resp)
	if err != nil {
		return "", mapStatus(err, ErrIdentifierNotFound, ErrIdentifierNotFound)
	}
	if strings.TrimSpace(resp.Token) == "" {
		return "", fmt.Errorf("%w: empty token in response", ErrUnavailable)
	}
	return resp.Token, nil
}

// PermissionsByRole returns the permission records attached to a role.
// An empty list is a valid answer; callers decide whether that denies.
func (c *Client) PermissionsByRole(ctx context.Context, roleID string) (permission.Records, error) {
	if strings.TrimSpace(roleID) == "" {
		return nil, errors.New("upstream: empty role id")
	}
	var records permission.Records
	err := c.getJSON(ctx,
		c.cfg.IdentityBaseURL+"/api/roles/"+url.PathEscape(roleID)+"/permissions",
		&records)
	if err != nil {
		return nil, mapStatus(err, ErrIdentifierNotFound, ErrIdentifierNotFound)
	}
	return records, nil
}
