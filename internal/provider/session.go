package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// invalidCredentialsCode is the error code the session service returns for a bad login.
const invalidCredentialsCode = "invalidCredentials"

type sessionRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Customer struct {
		HouseholdID string `json:"householdId"`
	} `json:"customer"`
	OESPToken string `json:"oespToken"`
}

type serviceError struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// CreateSession logs in and returns the household and access token.
//
// The session is not stored; callers pass it to SetSession once the
// broker token has also been obtained.
//
// Returns:
//   - Session: Household and access token
//   - error: ErrAuthentication for rejected credentials, ErrConnection otherwise
func (c *Client) CreateSession(ctx context.Context, username, password string) (Session, error) {
	body, err := json.Marshal(sessionRequest{Username: username, Password: password})
	if err != nil {
		return Session{}, fmt.Errorf("%w: encoding session request: %w", ErrConnection, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/session", bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("%w: building request: %w", ErrConnection, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Session{}, fmt.Errorf("%w: reading session response: %w", ErrConnection, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errs []serviceError
		if json.Unmarshal(data, &errs) == nil && len(errs) > 0 && errs[0].Code == invalidCredentialsCode {
			return Session{}, ErrAuthentication
		}
		return Session{}, fmt.Errorf("%w: session request returned %d", ErrConnection, resp.StatusCode)
	}

	var sr sessionResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		return Session{}, fmt.Errorf("%w: decoding session response: %w", ErrConnection, err)
	}
	if sr.Customer.HouseholdID == "" || sr.OESPToken == "" {
		return Session{}, fmt.Errorf("%w: session response missing household or token", ErrConnection)
	}

	return Session{HouseholdID: sr.Customer.HouseholdID, AccessToken: sr.OESPToken}, nil
}

// FetchToken obtains the broker token for a session.
//
// Returns:
//   - string: The JWT used as the broker password
//   - error: ErrConnection on any failure
func (c *Client) FetchToken(ctx context.Context, s Session) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tokens/jwt", nil)
	if err != nil {
		return "", fmt.Errorf("%w: building request: %w", ErrConnection, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerToken, s.AccessToken)
	req.Header.Set(headerUsername, c.username)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token request returned %d", ErrConnection, resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decoding token response: %w", ErrConnection, err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("%w: empty token", ErrConnection)
	}
	return out.Token, nil
}
