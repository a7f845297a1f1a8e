package upstream

import (
	"context"
	"fmt"
	"strings"

	"github.com/recluta/authgate/permission"
)

type dispatchRequest struct {
	Identifier string `json:"identifier"`
	ChannelID  string `json:"channelId"`
}

type dispatchResponse struct {
	VerificationID string `json:"verificationId"`
}

// DispatchCode asks the OTC service to deliver a fresh one-time code to
// the given channel. The returned verification-session id must accompany
// the subsequent verify call. The code validity window is owned by the
// OTC service and is not modeled here.
func (c *Client) DispatchCode(ctx context.Context, identifier, channelID string) (string, error) {
	var resp dispatchResponse
	err := c.postJSON(ctx, c.cfg.OTCBaseURL+"/api/otc/dispatch",
		dispatchRequest{Identifier: identifier, ChannelID: channelID}, &resp)
	if err != nil {
		return "", mapStatus(err, ErrDeliveryFailed, ErrDeliveryFailed)
	}
	if strings.TrimSpace(resp.VerificationID) == "" {
		return "", fmt.Errorf("%w: empty verification id in response", ErrUnavailable)
	}
	return resp.VerificationID, nil
}

type verifyRequest struct {
	Identifier     string `json:"identifier"`
	Code           string `json:"code"`
	VerificationID string `json:"verificationId"`
	DurationHours  int    `json:"durationHours"`
}

type verifyResponse struct {
	Token       string             `json:"token"`
	Permissions permission.Records `json:"permissions"`
}

// VerifiedToken is the OTC service's answer to a successful verification.
type VerifiedToken struct {
	Token       string
	Permissions permission.Records
}

// VerifyCode submits a one-time code for the given verification session.
// A wrong or expired code yields [ErrCodeRejected]; the verification
// session is spent either way and a new dispatch is required to retry.
func (c *Client) VerifyCode(ctx context.Context, identifier, code, verificationID string, hours int) (*VerifiedToken, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("upstream: invalid token duration %d", hours)
	}
	var resp verifyResponse
	err := c.postJSON(ctx, c.cfg.OTCBaseURL+"/api/otc/verify", verifyRequest{
		Identifier:     identifier,
		Code:           code,
		VerificationID: verificationID,
		DurationHours:  hours,
	}, &resp)
	if err != nil {
		return nil, mapStatus(err, ErrCodeRejected, ErrCodeRejected)
	}
	if strings.TrimSpace(resp.Token) == "" {
		return nil, fmt.Errorf("%w: empty token in response", ErrUnavailable)
	}
	return &VerifiedToken{Token: resp.Token, Permissions: resp.Permissions}, nil
}
