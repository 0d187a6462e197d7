package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Renzios/sharerapy-harness/internal/model"
)

func TestFallbackPatient(t *testing.T) {
	ledger := NewLedger()
	p := FallbackPatient(NewGenerator(ledger))

	assert.Equal(t, "John", p.FirstName)
	assert.Equal(t, "Doe", p.LastName)
	assert.Equal(t, "1990-01-01", p.Birthdate)
	assert.Equal(t, model.SexMale, p.Sex)
	require.NotNil(t, p.Country)
	assert.Equal(t, "United States", p.Country.Country)
	require.NotNil(t, p.CreatedAt)
	assert.True(t, p.CreatedAt.Equal(model.PlaceholderTime))

	labels := make([]string, 0, len(p.Reports))
	for _, r := range p.Reports {
		label, ok := r.TypeLabel()
		require.True(t, ok)
		labels = append(labels, label)
		assert.Equal(t, p.ID, r.PatientID)
	}
	assert.Equal(t, []string{"Assessment", "Progress Note", "Discharge Summary"}, labels)

	v, ok := ledger.Verdict(p.ID)
	require.True(t, ok)
	assert.Equal(t, VerdictSynthetic, v)
}

func TestFallbackTherapist(t *testing.T) {
	th := FallbackTherapist(NewGenerator(NewLedger()))

	assert.Equal(t, "Dr. Jane", th.FirstName)
	assert.Equal(t, "Smith", th.LastName)
	assert.Equal(t, "Physical Therapy", th.Specialization)
	require.NotNil(t, th.Clinic)
	assert.Equal(t, "Main Clinic", th.Clinic.Clinic)
	require.NotNil(t, th.Clinic.Country)
	assert.Equal(t, "United States", th.Clinic.Country.Country)
	assert.Len(t, th.Reports, 3)
}

func TestFallbackReport(t *testing.T) {
	ledger := NewLedger()
	r := FallbackReport(NewGenerator(ledger))

	assert.Equal(t, "Sample Report", r.Title)
	label, ok := r.TypeLabel()
	assert.True(t, ok)
	assert.Equal(t, "Assessment", label)
	require.NotNil(t, r.Language)
	assert.Equal(t, "English", r.Language.Language)
	assert.NotEmpty(t, r.PatientID)
	assert.NotEmpty(t, r.TherapistID)
	assert.NotEqual(t, r.PatientID, r.TherapistID)

	for _, id := range []string{r.ID, r.PatientID, r.TherapistID} {
		v, _ := ledger.Verdict(id)
		assert.Equal(t, VerdictSynthetic, v)
	}
}

func TestFallbackRecordsUseFreshIDs(t *testing.T) {
	g := NewGenerator(NewLedger())
	a, b := FallbackPatient(g), FallbackPatient(g)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestFallbackLookupsAreCopies(t *testing.T) {
	types := FallbackReportTypes()
	types[0].Type = "changed"
	assert.Equal(t, "Assessment", FallbackReportTypes()[0].Type)

	assert.NotEmpty(t, FallbackCountries())
	assert.NotEmpty(t, FallbackClinics())
	assert.NotEmpty(t, FallbackLanguages())
}

func TestPage(t *testing.T) {
	page := Page("x")
	assert.Equal(t, 1, page.Count)
	assert.Equal(t, []string{"x"}, page.Data)
}
