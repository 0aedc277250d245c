package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/abernathy/patientfront/internal/credential"
)

// HistoryClient wraps the patient history (notes) service.
type HistoryClient struct {
	c    *Client
	path string
}

func NewHistoryClient(c *Client, path string) *HistoryClient {
	return &HistoryClient{c: c, path: strings.TrimRight(path, "/")}
}

// ListByPatient returns every history entry of a patient, in service order.
func (h *HistoryClient) ListByPatient(ctx context.Context, patientID string, cred credential.Credential) ([]HistoryEntry, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, fmt.Errorf("patient id is required: %w", ErrInvalidArgument)
	}
	var out []HistoryEntry
	if err := h.c.callJSON(ctx, "history.list", http.MethodGet, h.path+"/"+url.PathEscape(patientID), cred, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []HistoryEntry{}
	}
	return out, nil
}

// AppendNote adds entry to the patient's history.
func (h *HistoryClient) AppendNote(ctx context.Context, patientID string, entry *HistoryEntry, cred credential.Credential) error {
	if strings.TrimSpace(patientID) == "" {
		return fmt.Errorf("patient id is required: %w", ErrInvalidArgument)
	}
	if entry == nil {
		return fmt.Errorf("history entry is required: %w", ErrInvalidArgument)
	}
	path := h.path + "/" + url.PathEscape(patientID) + "/add"
	return h.c.callJSON(ctx, "history.append", http.MethodPost, path, cred, entry, nil)
}
