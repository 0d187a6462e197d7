package model

type Sex string

const (
	SexMale   Sex = "Male"
	SexFemale Sex = "Female"
	SexOther  Sex = "Other"
)

type Patient struct {
	Base
	FirstName     string   `json:"first_name" db:"first_name" validate:"required"`
	LastName      string   `json:"last_name" db:"last_name" validate:"required"`
	Name          string   `json:"name,omitempty" db:"name"`
	Birthdate     string   `json:"birthdate,omitempty" db:"birthdate" validate:"omitempty,datetime=2006-01-02"`
	Sex           Sex      `json:"sex,omitempty" db:"sex" validate:"omitempty,oneof=Male Female Other"`
	ContactNumber string   `json:"contact_number,omitempty" db:"contact_number"`
	CountryID     *int     `json:"country_id,omitempty" db:"country_id"`
	Country       *Country `json:"country,omitempty" db:"-"`
	Reports       []Report `json:"reports,omitempty" db:"-"`

	// Age is derived on report detail reads, never stored. Name is
	// generated by the backend and read only.
	Age string `json:"age,omitempty" db:"-"`
}

// PatientReports exposes the nested report collection for deduplication.
func PatientReports(p *Patient) *[]Report {
	return &p.Reports
}
