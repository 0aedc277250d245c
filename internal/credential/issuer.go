package credential

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxTokenBytes bounds how much of the issuer response is read.
const maxTokenBytes = 64 << 10

// Issuer obtains a freshly signed credential for an identity.
type Issuer interface {
	Issue(ctx context.Context, id Identity) (Credential, error)
}

// HTTPIssuer calls the remote issuing endpoint. It makes exactly one request
// per Issue call and never retries.
type HTTPIssuer struct {
	url    string
	client *http.Client
}

// NewHTTPIssuer creates an issuer for tokenURL. A nil client gets a default
// client with a 10 second timeout.
func NewHTTPIssuer(tokenURL string, client *http.Client) *HTTPIssuer {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPIssuer{url: tokenURL, client: client}
}

type issueRequest struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

func (i *HTTPIssuer) Issue(ctx context.Context, id Identity) (Credential, error) {
	roles := id.Roles
	if roles == nil {
		roles = []string{}
	}
	body, err := json.Marshal(issueRequest{Username: id.Username, Roles: roles})
	if err != nil {
		return "", &IssuanceFailure{Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.url, bytes.NewReader(body))
	if err != nil {
		return "", &IssuanceFailure{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return "", &IssuanceFailure{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &IssuanceFailure{Status: resp.StatusCode}
	}
	if err != nil {
		return "", &IssuanceFailure{Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	token := parseTokenBody(raw)
	if token.IsZero() {
		return "", &IssuanceFailure{Status: resp.StatusCode, Err: fmt.Errorf("empty token in response")}
	}
	return token, nil
}

// parseTokenBody accepts either a bare token or a JSON string literal.
func parseTokenBody(raw []byte) Credential {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, `"`) {
		if unquoted, err := strconv.Unquote(s); err == nil {
			s = strings.TrimSpace(unquoted)
		}
	}
	return Credential(s)
}
