package engine

import (
	"encoding/json"

	"github.com/Renzios/sharerapy-harness/internal/model"
)

// Generator builds synthetic records. Every id it hands out is recorded as
// synthetic so that later lookups on it report not found.
type Generator struct {
	ledger *Ledger
}

func NewGenerator(ledger *Ledger) *Generator {
	return &Generator{ledger: ledger}
}

func (g *Generator) ID() string {
	return g.ledger.Issue(VerdictSynthetic)
}

// Timestamp returns the fixed placeholder time carried by synthetic records.
func (g *Generator) Timestamp() *model.Timestamp {
	return model.NewTimestamp(model.PlaceholderTime)
}

// Page wraps one synthetic record in a list result.
func Page[T any](rec T) *model.ListResult[T] {
	return &model.ListResult[T]{Data: []T{rec}, Count: 1}
}

func intPtr(n int) *int {
	return &n
}

var (
	fallbackCountries = []model.Country{
		{ID: 1, Country: "United States"},
	}
	fallbackClinics = []model.Clinic{
		{ID: 1, Clinic: "Main Clinic", CountryID: 1},
	}
	fallbackLanguages = []model.Language{
		{ID: 1, Language: "English"},
	}
	fallbackReportTypes = []model.ReportType{
		{ID: 1, Type: "Assessment"},
		{ID: 2, Type: "Progress Note"},
		{ID: 3, Type: "Discharge Summary"},
	}
)

// FallbackCountries and the other lookup fallbacks return fresh copies of the
// static reference lists.
func FallbackCountries() []model.Country {
	return append([]model.Country(nil), fallbackCountries...)
}

func FallbackClinics() []model.Clinic {
	return append([]model.Clinic(nil), fallbackClinics...)
}

func FallbackLanguages() []model.Language {
	return append([]model.Language(nil), fallbackLanguages...)
}

func FallbackReportTypes() []model.ReportType {
	return append([]model.ReportType(nil), fallbackReportTypes...)
}

// reports returns one synthetic report per fallback report type.
func (g *Generator) reports(link func(*model.Report)) []model.Report {
	out := make([]model.Report, 0, len(fallbackReportTypes))
	for _, rt := range fallbackReportTypes {
		r := model.Report{
			Base:   model.Base{ID: g.ID(), CreatedAt: g.Timestamp()},
			Title:  rt.Type,
			TypeID: intPtr(rt.ID),
			Type:   &rt,
		}
		link(&r)
		out = append(out, r)
	}
	return out
}

func FallbackPatient(g *Generator) model.Patient {
	country := fallbackCountries[0]
	p := model.Patient{
		Base:          model.Base{ID: g.ID(), CreatedAt: g.Timestamp()},
		FirstName:     "John",
		LastName:      "Doe",
		Name:          "John Doe",
		Birthdate:     "1990-01-01",
		Sex:           model.SexMale,
		ContactNumber: "+1234567890",
		CountryID:     intPtr(country.ID),
		Country:       &country,
	}
	p.Reports = g.reports(func(r *model.Report) { r.PatientID = p.ID })
	return p
}

func FallbackTherapist(g *Generator) model.Therapist {
	country := fallbackCountries[0]
	clinic := fallbackClinics[0]
	clinic.Country = &country
	t := model.Therapist{
		Base:           model.Base{ID: g.ID(), CreatedAt: g.Timestamp()},
		FirstName:      "Dr. Jane",
		LastName:       "Smith",
		Name:           "Dr. Jane Smith",
		Specialization: "Physical Therapy",
		Email:          "jane.smith@example.com",
		Phone:          "+1234567890",
		ClinicID:       intPtr(clinic.ID),
		Clinic:         &clinic,
	}
	t.Reports = g.reports(func(r *model.Report) { r.TherapistID = t.ID })
	return t
}

func FallbackReport(g *Generator) model.Report {
	rt := fallbackReportTypes[0]
	lang := fallbackLanguages[0]
	return model.Report{
		Base:        model.Base{ID: g.ID(), CreatedAt: g.Timestamp()},
		Title:       "Sample Report",
		Description: "This is a sample report for testing",
		Content:     json.RawMessage(`{}`),
		TypeID:      intPtr(rt.ID),
		Type:        &rt,
		LanguageID:  intPtr(lang.ID),
		Language:    &lang,
		PatientID:   g.ID(),
		TherapistID: g.ID(),
	}
}
