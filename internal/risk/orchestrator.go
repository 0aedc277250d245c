// Package risk computes a patient's diabetes risk by chaining the history,
// patient and scoring calls behind a single credential.
package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/abernathy/patientfront/internal/credential"
	"github.com/abernathy/patientfront/internal/gateway"
)

// Step names a stage of the risk workflow.
type Step string

const (
	StepAcquire Step = "acquire"
	StepHistory Step = "history"
	StepPatient Step = "patient"
	StepScore   Step = "score"
)

// Result is the scoring endpoint's label, returned as-is.
type Result string

// ComputationFailure reports the stage at which the workflow stopped.
type ComputationFailure struct {
	Step  Step
	Cause error
}

func (e *ComputationFailure) Error() string {
	return fmt.Sprintf("risk computation failed at %s: %v", e.Step, e.Cause)
}

func (e *ComputationFailure) Unwrap() error {
	return e.Cause
}

// LookupMode selects which identifier keys the demographic lookup.
type LookupMode string

const (
	// LookupRequested uses the patient id the caller asked about.
	LookupRequested LookupMode = "requested"
	// LookupHistory uses the patient reference of the first history entry.
	LookupHistory LookupMode = "history"
)

// ParseLookupMode converts a configuration value into a LookupMode.
func ParseLookupMode(s string) (LookupMode, error) {
	switch LookupMode(strings.ToLower(strings.TrimSpace(s))) {
	case LookupRequested, "":
		return LookupRequested, nil
	case LookupHistory:
		return LookupHistory, nil
	default:
		return "", fmt.Errorf("unknown risk lookup mode %q", s)
	}
}

// CredentialSource yields a credential for an identity.
type CredentialSource interface {
	Acquire(ctx context.Context, id *credential.Identity) (credential.Credential, error)
}

// HistoryFetcher lists a patient's history entries.
type HistoryFetcher interface {
	ListByPatient(ctx context.Context, patientID string, cred credential.Credential) ([]gateway.HistoryEntry, error)
}

// PatientFetcher loads one patient record.
type PatientFetcher interface {
	Get(ctx context.Context, id string, cred credential.Credential) (*gateway.PatientRecord, error)
}

// Scorer submits a risk request.
type Scorer interface {
	Score(ctx context.Context, req gateway.RiskRequest, cred credential.Credential) (string, error)
}

// Orchestrator runs the risk workflow.
type Orchestrator struct {
	creds    CredentialSource
	history  HistoryFetcher
	patients PatientFetcher
	scorer   Scorer
	lookup   LookupMode
	now      func() time.Time
	logger   zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLookupMode(m LookupMode) Option {
	return func(o *Orchestrator) { o.lookup = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock overrides the time source used for age computation.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(creds CredentialSource, history HistoryFetcher, patients PatientFetcher, scorer Scorer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		creds:    creds,
		history:  history,
		patients: patients,
		scorer:   scorer,
		lookup:   LookupRequested,
		now:      time.Now,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ComputeRisk acquires one credential and uses it for the history fetch, the
// demographic lookup and the scoring call, in that order. Any failure stops
// the workflow; no partial request is ever scored.
func (o *Orchestrator) ComputeRisk(ctx context.Context, patientID string, id *credential.Identity) (Result, error) {
	cred, err := o.creds.Acquire(ctx, id)
	if err != nil {
		return "", &ComputationFailure{Step: StepAcquire, Cause: err}
	}

	entries, err := o.history.ListByPatient(ctx, patientID, cred)
	if err != nil {
		return "", &ComputationFailure{Step: StepHistory, Cause: err}
	}

	lookupID := patientID
	if o.lookup == LookupHistory && len(entries) > 0 && entries[0].PatientID != "" {
		lookupID = entries[0].PatientID
	}
	if lookupID != patientID {
		o.logger.Warn().Str("requested", patientID).Str("history", lookupID).Msg("history references a different patient")
	}

	patient, err := o.patients.Get(ctx, lookupID, cred)
	if err != nil {
		return "", &ComputationFailure{Step: StepPatient, Cause: err}
	}
	if patient.BirthDate == nil || patient.BirthDate.IsZero() {
		return "", &ComputationFailure{Step: StepPatient, Cause: errors.New("patient record has no birth date")}
	}

	req := BuildRequest(entries, patient, o.now())

	label, err := o.scorer.Score(ctx, req, cred)
	if err != nil {
		return "", &ComputationFailure{Step: StepScore, Cause: err}
	}

	o.logger.Info().Str("patient_id", patientID).Int("notes", len(req.Notes)).Msg("risk computed")
	return Result(label), nil
}

// BuildRequest assembles the scoring payload. The name comes from the
// history snapshot when there is one, the age always from the patient
// record's birth date, and the notes from every history entry.
func BuildRequest(entries []gateway.HistoryEntry, patient *gateway.PatientRecord, now time.Time) gateway.RiskRequest {
	req := gateway.RiskRequest{
		Name:   patient.LastName,
		Gender: patient.Gender,
		Notes:  make([]string, 0, len(entries)),
	}
	if len(entries) > 0 {
		req.Name = entries[0].Patient
	}
	if patient.BirthDate != nil {
		req.Age = Age(patient.BirthDate.Time, now)
	}
	for _, e := range entries {
		req.Notes = append(req.Notes, e.Note)
	}
	return req
}

// Age returns the number of full years between birth and now.
func Age(birth, now time.Time) int {
	by, bm, bd := birth.Date()
	ny, nm, nd := now.Date()
	age := ny - by
	if nm < bm || (nm == bm && nd < bd) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}
