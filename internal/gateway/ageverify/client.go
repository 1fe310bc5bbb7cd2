// Package ageverify is the HTTP client for the identity/age verification
// provider. Verification jobs are asynchronous on the provider side, so
// the client polls with a fixed interval and a bounded attempt count;
// exhausting the budget is reported as a timeout and the caller fails
// closed.
package ageverify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-orderflow/internal/gateway"
	"ms-orderflow/internal/models"
)

type Client struct {
	baseURL      string
	apiKey       string
	http         *http.Client
	pollInterval time.Duration
	maxAttempts  int
}

func NewClient(baseURL, apiKey string, httpClient *http.Client, pollInterval time.Duration, maxAttempts int) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		http:         httpClient,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
	}
}

type verifyPayload struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	Street1     string `json:"street1"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code"`
}

type verifyResult struct {
	ID         string `json:"id"`
	Status     string `json:"status"` // "pass", "fail" or "pending"
	ReasonCode string `json:"reason_code"`
}

func (c *Client) Verify(ctx context.Context, firstName, lastName string, dob time.Time, addr models.Address) (*gateway.Verification, error) {
	payload := verifyPayload{
		FirstName:   firstName,
		LastName:    lastName,
		DateOfBirth: dob.Format("2006-01-02"),
		Street1:     addr.Street1,
		City:        addr.City,
		State:       addr.State,
		PostalCode:  addr.PostalCode,
	}

	res, err := c.post(ctx, "/v1/verifications", payload)
	if err != nil {
		return nil, err
	}

	for attempt := 0; res.Status == "pending"; attempt++ {
		if attempt >= c.maxAttempts {
			return nil, &gateway.Error{Code: "TIMEOUT", Message: "verification still pending after poll budget"}
		}
		select {
		case <-ctx.Done():
			return nil, &gateway.Error{Code: "TIMEOUT", Message: ctx.Err().Error()}
		case <-time.After(c.pollInterval):
		}
		res, err = c.get(ctx, "/v1/verifications/"+res.ID)
		if err != nil {
			return nil, err
		}
	}

	v := &gateway.Verification{ReferenceID: res.ID, ReasonCode: res.ReasonCode}
	if res.Status == "pass" {
		v.Status = models.VerificationPass
	} else {
		v.Status = models.VerificationFail
	}
	return v, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*verifyResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &gateway.Error{Code: "BAD_REQUEST", Message: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, &gateway.Error{Code: "BAD_REQUEST", Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) (*verifyResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, &gateway.Error{Code: "BAD_REQUEST", Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*verifyResult, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &gateway.Error{Code: "PROVIDER_UNREACHABLE", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &gateway.Error{
			Code:    fmt.Sprintf("PROVIDER_HTTP_%d", resp.StatusCode),
			Message: "verification provider returned an error",
		}
	}

	var res verifyResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, &gateway.Error{Code: "BAD_RESPONSE", Message: err.Error()}
	}
	return &res, nil
}
