package patient

import (
	"time"

	"github.com/google/uuid"
)

// Address sub-types supported by the address field.
const (
	PhysicalAddress = "physical"
	PostalAddress   = "postal"
	OtherAddress    = "other"
)

var addressTypes = []string{PhysicalAddress, PostalAddress, OtherAddress}

// Patient maps to the patient table.
type Patient struct {
	ID               uuid.UUID         `db:"id" json:"id"`
	Active           bool              `db:"active" json:"active"`
	MRN              string            `db:"mrn" json:"mrn"`
	PatientID        string            `db:"patient_id" json:"patient_id"`
	Identifiers      []Identifier      `db:"identifiers" json:"identifiers"`
	EmailReport      bool              `db:"email_report" json:"email_report"`
	Firstname        string            `db:"firstname" json:"firstname"`
	Middlename       string            `db:"middlename" json:"middlename"`
	Lastname         string            `db:"lastname" json:"lastname"`
	Sex              string            `db:"sex" json:"sex"`
	Gender           string            `db:"gender" json:"gender"`
	Races            []RaceRow         `db:"races" json:"races"`
	Ethnicities      []EthnicityRow    `db:"ethnicities" json:"ethnicities"`
	Email            string            `db:"email" json:"email"`
	AdditionalEmails []AdditionalEmail `db:"additional_emails" json:"additional_emails"`
	Phone            string            `db:"phone" json:"phone"`
	Mobile           string            `db:"mobile" json:"mobile"`
	Address          []AddressEntry    `db:"address" json:"address"`
	Birthdate        *time.Time        `db:"birthdate" json:"birthdate,omitempty"`
	VersionID        int               `db:"version_id" json:"version_id"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// Identifier is one row of the identifiers grid.
type Identifier struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// AdditionalEmail is one row of the additional emails grid.
type AdditionalEmail struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
}

type RaceRow struct {
	Race string `json:"race"`
}

type EthnicityRow struct {
	Ethnicity string `json:"ethnicity"`
}

// AddressEntry is one typed sub-address of the address field.
type AddressEntry struct {
	Type         string `json:"type" validate:"required,oneof=physical postal other"`
	Address      string `json:"address,omitempty"`
	Zip          string `json:"zip,omitempty"`
	City         string `json:"city,omitempty"`
	Subdivision1 string `json:"subdivision1,omitempty"`
	Subdivision2 string `json:"subdivision2,omitempty"`
	Country      string `json:"country,omitempty"`
}

// Clone returns a deep copy so a draft can be edited without touching the
// persisted record.
func (p *Patient) Clone() *Patient {
	c := *p
	c.Identifiers = append([]Identifier(nil), p.Identifiers...)
	c.Races = append([]RaceRow(nil), p.Races...)
	c.Ethnicities = append([]EthnicityRow(nil), p.Ethnicities...)
	c.AdditionalEmails = append([]AdditionalEmail(nil), p.AdditionalEmails...)
	c.Address = append([]AddressEntry(nil), p.Address...)
	if p.Birthdate != nil {
		bd := *p.Birthdate
		c.Birthdate = &bd
	}
	return &c
}
