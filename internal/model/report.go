package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type Report struct {
	Base
	Title       string          `json:"title,omitempty" db:"title" validate:"required"`
	Description string          `json:"description,omitempty" db:"description"`
	Content     json.RawMessage `json:"content,omitempty" db:"content"`
	TypeID      *int            `json:"type_id,omitempty" db:"type_id"`
	Type        *ReportType     `json:"type,omitempty" db:"-"`
	LanguageID  *int            `json:"language_id,omitempty" db:"language_id"`
	Language    *Language       `json:"language,omitempty" db:"-"`
	PatientID   string          `json:"patient_id,omitempty" db:"patient_id"`
	Patient     *Patient        `json:"patient,omitempty" db:"-"`
	TherapistID string          `json:"therapist_id,omitempty" db:"therapist_id"`
	Therapist   *Therapist      `json:"therapist,omitempty" db:"-"`
}

// TypeLabel returns the report type label, reporting false when the report
// carries no usable label.
func (r Report) TypeLabel() (string, bool) {
	if r.Type == nil || r.Type.Type == "" {
		return "", false
	}
	return r.Type.Type, true
}

// AgeAt renders the interval between a YYYY-MM-DD birthdate and now as
// "<years> years <months> months".
func AgeAt(birthdate string, now time.Time) (string, bool) {
	birth, err := time.Parse("2006-01-02", birthdate)
	if err != nil {
		if len(birthdate) < 10 {
			return "", false
		}
		if birth, err = time.Parse("2006-01-02", birthdate[:10]); err != nil {
			return "", false
		}
	}

	years := now.Year() - birth.Year()
	months := int(now.Month()) - int(birth.Month())
	if months < 0 {
		years--
		months += 12
	}
	return fmt.Sprintf("%d years %d months", years, months), true
}
