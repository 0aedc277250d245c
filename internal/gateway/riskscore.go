package gateway

import (
	"context"
	"net/http"

	"github.com/abernathy/patientfront/internal/credential"
)

// RiskClient wraps the diabetes risk scoring endpoint.
type RiskClient struct {
	c    *Client
	path string
}

func NewRiskClient(c *Client, path string) *RiskClient {
	return &RiskClient{c: c, path: path}
}

// Score posts req and returns the response body verbatim.
func (r *RiskClient) Score(ctx context.Context, req RiskRequest, cred credential.Credential) (string, error) {
	if req.Notes == nil {
		req.Notes = []string{}
	}
	raw, err := r.c.call(ctx, "risk.score", http.MethodPost, r.path, cred, req)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
