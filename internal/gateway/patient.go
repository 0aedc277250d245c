package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/abernathy/patientfront/internal/credential"
)

// PatientClient wraps the patient service.
type PatientClient struct {
	c    *Client
	path string
}

func NewPatientClient(c *Client, path string) *PatientClient {
	return &PatientClient{c: c, path: strings.TrimRight(path, "/")}
}

func (p *PatientClient) List(ctx context.Context, cred credential.Credential) ([]PatientRecord, error) {
	var out []PatientRecord
	if err := p.c.callJSON(ctx, "patient.list", http.MethodGet, p.path, cred, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []PatientRecord{}
	}
	return out, nil
}

func (p *PatientClient) Get(ctx context.Context, id string, cred credential.Credential) (*PatientRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("patient id is required: %w", ErrInvalidArgument)
	}
	var out PatientRecord
	if err := p.c.callJSON(ctx, "patient.get", http.MethodGet, p.path+"/"+url.PathEscape(id), cred, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create posts a new record and returns the stored version when the
// service echoes one back, otherwise the submitted record.
func (p *PatientClient) Create(ctx context.Context, rec *PatientRecord, cred credential.Credential) (*PatientRecord, error) {
	if rec == nil {
		return nil, fmt.Errorf("patient record is required: %w", ErrInvalidArgument)
	}
	out := *rec
	if err := p.c.callJSON(ctx, "patient.create", http.MethodPost, p.path, cred, rec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces the record identified by rec.ID. A record without an
// identifier is rejected without contacting the gateway.
func (p *PatientClient) Update(ctx context.Context, rec *PatientRecord, cred credential.Credential) error {
	if rec == nil || rec.ID == nil {
		return fmt.Errorf("patient id must be set to update: %w", ErrInvalidArgument)
	}
	path := p.path + "/" + strconv.FormatInt(*rec.ID, 10)
	return p.c.callJSON(ctx, "patient.update", http.MethodPut, path, cred, rec, nil)
}
