package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date exchanged as "YYYY-MM-DD".
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date.
func NewDate(t time.Time) *Date {
	y, m, d := t.Date()
	return &Date{Time: time.Date(y, m, d, 0, 0, 0, 0, t.Location())}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("invalid date %q", s)
		}
	}
	d.Time = t
	return nil
}

// PatientRecord is a patient's demographic record as served by the
// patient service.
type PatientRecord struct {
	ID             *int64   `json:"id,omitempty"`
	LastName       string   `json:"nom"`
	FirstName      string   `json:"prenom"`
	BirthDate      *Date    `json:"dateDeNaissance,omitempty"`
	Gender         string   `json:"genre"`
	Address        string   `json:"adresse,omitempty"`
	Phone          string   `json:"telephone,omitempty"`
	LastModified   *Date    `json:"lastModified,omitempty"`
	CreatedAt      *Date    `json:"createdAt,omitempty"`
	LastModifiedBy string   `json:"whoLastModified,omitempty"`
	Age            *int     `json:"age,omitempty"`
	Notes          []string `json:"note,omitempty"`
}

// HistoryEntry is one clinical note with a snapshot of the patient it
// belongs to.
type HistoryEntry struct {
	ID        string `json:"id,omitempty"`
	PatientID string `json:"patId"`
	Patient   string `json:"patient"`
	Age       int    `json:"age"`
	Gender    string `json:"genre"`
	Note      string `json:"note"`
}

// RiskRequest is the payload sent to the risk scoring endpoint.
type RiskRequest struct {
	Name   string   `json:"nom"`
	Age    int      `json:"age"`
	Gender string   `json:"genre"`
	Notes  []string `json:"note"`
}
