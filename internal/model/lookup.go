package model

// Country is a flat reference record attached to patients and clinics.
type Country struct {
	ID      int    `json:"id" db:"id"`
	Country string `json:"country" db:"country"`
}

type Clinic struct {
	ID        int      `json:"id" db:"id"`
	Clinic    string   `json:"clinic" db:"clinic"`
	CountryID int      `json:"country_id,omitempty" db:"country_id"`
	Country   *Country `json:"country,omitempty" db:"-"`
}

type Language struct {
	ID       int    `json:"id" db:"id"`
	Language string `json:"language" db:"language"`
}

// ReportType labels a report. The label is the deduplication key for nested
// report collections.
type ReportType struct {
	ID   int    `json:"id" db:"id"`
	Type string `json:"type" db:"type"`
}

// Lookup is the common projection used by the lookup endpoints.
type Lookup struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}
