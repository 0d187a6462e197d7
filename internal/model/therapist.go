package model

type Therapist struct {
	Base
	FirstName      string   `json:"first_name" db:"first_name" validate:"required"`
	LastName       string   `json:"last_name" db:"last_name" validate:"required"`
	Name           string   `json:"name,omitempty" db:"name"`
	Specialization string   `json:"specialization,omitempty" db:"specialization"`
	Email          string   `json:"email,omitempty" db:"email" validate:"omitempty,email"`
	Phone          string   `json:"phone,omitempty" db:"phone"`
	Age            *int     `json:"age,omitempty" db:"age" validate:"omitempty,gte=0"`
	Bio            string   `json:"bio,omitempty" db:"bio"`
	Picture        string   `json:"picture,omitempty" db:"picture"`
	ClinicID       *int     `json:"clinic_id,omitempty" db:"clinic_id"`
	Clinic         *Clinic  `json:"clinic,omitempty" db:"-"`
	Reports        []Report `json:"reports,omitempty" db:"-"`
}

func TherapistReports(t *Therapist) *[]Report {
	return &t.Reports
}
