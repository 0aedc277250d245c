// Package front is the JSON surface a logged-in user drives: patient
// records, clinical notes and the diabetes risk assessment. Every handler
// acquires the session's gateway credential through the lifecycle manager
// and never holds on to it past the request.
package front

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/abernathy/patientfront/internal/credential"
	"github.com/abernathy/patientfront/internal/gateway"
	"github.com/abernathy/patientfront/internal/platform/auth"
	"github.com/abernathy/patientfront/internal/risk"
	"github.com/abernathy/patientfront/pkg/pagination"
)

type CredentialSource interface {
	Acquire(ctx context.Context, id *credential.Identity) (credential.Credential, error)
}

type PatientStore interface {
	List(ctx context.Context, cred credential.Credential) ([]gateway.PatientRecord, error)
	Get(ctx context.Context, id string, cred credential.Credential) (*gateway.PatientRecord, error)
	Create(ctx context.Context, rec *gateway.PatientRecord, cred credential.Credential) (*gateway.PatientRecord, error)
	Update(ctx context.Context, rec *gateway.PatientRecord, cred credential.Credential) error
}

type HistoryStore interface {
	ListByPatient(ctx context.Context, patientID string, cred credential.Credential) ([]gateway.HistoryEntry, error)
	AppendNote(ctx context.Context, patientID string, entry *gateway.HistoryEntry, cred credential.Credential) error
}

type RiskComputer interface {
	ComputeRisk(ctx context.Context, patientID string, id *credential.Identity) (risk.Result, error)
}

type Handler struct {
	creds    CredentialSource
	patients PatientStore
	history  HistoryStore
	risk     RiskComputer
	logger   zerolog.Logger
	now      func() time.Time
}

type Option func(*Handler)

func WithLogger(l zerolog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithClock replaces time.Now for date stamps and ages.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

func NewHandler(creds CredentialSource, patients PatientStore, history HistoryStore, rc RiskComputer, opts ...Option) *Handler {
	h := &Handler{
		creds:    creds,
		patients: patients,
		history:  history,
		risk:     rc,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/patients", h.ListPatients)
	g.POST("/patients", h.CreatePatient)
	g.GET("/patients/:id", h.GetPatient)
	g.PUT("/patients/:id", h.UpdatePatient)
	g.GET("/patients/:id/history", h.ListHistory)
	g.POST("/patients/:id/history", h.AddNote)
	g.POST("/patients/:id/risk", h.ComputeRisk)
}

// RiskResponse is the body of a successful risk assessment.
type RiskResponse struct {
	PatientID string `json:"patientId"`
	Risk      string `json:"risk"`
}

type noteRequest struct {
	Note string `json:"note"`
}

func (h *Handler) credential(c echo.Context) (credential.Credential, error) {
	return h.creds.Acquire(c.Request().Context(), auth.IdentityFromContext(c.Request().Context()))
}

func (h *Handler) today() *gateway.Date {
	return gateway.NewDate(h.now())
}

func (h *Handler) ListPatients(c echo.Context) error {
	cred, err := h.credential(c)
	if err != nil {
		return failure("unable to load patients", err)
	}
	patients, err := h.patients.List(c.Request().Context(), cred)
	if err != nil {
		return failure("unable to load patients", err)
	}
	return c.JSON(http.StatusOK, pagination.Page(patients, pagination.FromContext(c)))
}

func (h *Handler) GetPatient(c echo.Context) error {
	cred, err := h.credential(c)
	if err != nil {
		return failure("unable to load patient", err)
	}
	p, err := h.patients.Get(c.Request().Context(), c.Param("id"), cred)
	if err != nil {
		return failure("unable to load patient", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var rec gateway.PatientRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient payload")
	}

	cred, err := h.credential(c)
	if err != nil {
		return failure("unable to create patient", err)
	}

	rec.ID = nil
	rec.CreatedAt = h.today()
	rec.LastModified = h.today()
	rec.LastModifiedBy = auth.UsernameFromContext(c.Request().Context())

	created, err := h.patients.Create(c.Request().Context(), &rec, cred)
	if err != nil {
		return failure("unable to create patient", err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var rec gateway.PatientRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient payload")
	}

	cred, err := h.credential(c)
	if err != nil {
		return failure("unable to update patient", err)
	}

	rec.ID = &id
	rec.LastModified = h.today()
	rec.LastModifiedBy = auth.UsernameFromContext(c.Request().Context())

	if err := h.patients.Update(c.Request().Context(), &rec, cred); err != nil {
		return failure("unable to update patient", err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListHistory(c echo.Context) error {
	cred, err := h.credential(c)
	if err != nil {
		return failure("unable to load history", err)
	}
	entries, err := h.history.ListByPatient(c.Request().Context(), c.Param("id"), cred)
	if err != nil {
		return failure("unable to load history", err)
	}
	return c.JSON(http.StatusOK, entries)
}

// AddNote appends a note. The patient snapshot stored with the note (name,
// age, gender) is taken from the current patient record.
func (h *Handler) AddNote(c echo.Context) error {
	var req noteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid note payload")
	}
	if strings.TrimSpace(req.Note) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "note must not be empty")
	}

	ctx := c.Request().Context()
	patientID := c.Param("id")
	cred, err := h.credential(c)
	if err != nil {
		return failure("unable to add note", err)
	}
	p, err := h.patients.Get(ctx, patientID, cred)
	if err != nil {
		return failure("unable to add note", err)
	}

	entry := gateway.HistoryEntry{
		PatientID: patientID,
		Patient:   p.LastName,
		Gender:    p.Gender,
		Note:      req.Note,
	}
	if p.BirthDate != nil {
		entry.Age = risk.Age(p.BirthDate.Time, h.now())
	}

	if err := h.history.AppendNote(ctx, patientID, &entry, cred); err != nil {
		return failure("unable to add note", err)
	}
	return c.JSON(http.StatusCreated, entry)
}

func (h *Handler) ComputeRisk(c echo.Context) error {
	patientID := c.Param("id")
	result, err := h.risk.ComputeRisk(c.Request().Context(), patientID, auth.IdentityFromContext(c.Request().Context()))
	if err != nil {
		h.logger.Warn().Err(err).Str("patient_id", patientID).Msg("risk assessment failed")
		return failure("unable to compute diabetes risk", err)
	}
	return c.JSON(http.StatusOK, RiskResponse{PatientID: patientID, Risk: string(result)})
}
