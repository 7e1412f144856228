// Package model contains domain models passed between layers.
package model

import "time"

// Field names one attribute of the lead schema.
type Field string

// Lead schema fields in mapping precedence order.
const (
	FieldName       Field = "name"
	FieldEmail      Field = "email"
	FieldCompany    Field = "company"
	FieldPhone      Field = "phone"
	FieldSource     Field = "source"
	FieldIndustry   Field = "industry"
	FieldBudget     Field = "budget"
	FieldTimeline   Field = "timeline"
	FieldEngagement Field = "engagement"
)

// Fields lists every schema field in mapping precedence order.
var Fields = []Field{ //nolint:gochecknoglobals // fixed schema
	FieldName, FieldEmail, FieldCompany, FieldPhone, FieldSource,
	FieldIndustry, FieldBudget, FieldTimeline, FieldEngagement,
}

// Attributes are the user-supplied values of a lead. All are free text.
type Attributes struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required"`
	Company    string `json:"company"`
	Phone      string `json:"phone"`
	Source     string `json:"source"`
	Industry   string `json:"industry"`
	Budget     string `json:"budget"`
	Timeline   string `json:"timeline"`
	Engagement string `json:"engagement"`
}

// Set assigns v to field f. Unknown fields are ignored.
func (a *Attributes) Set(f Field, v string) {
	switch f {
	case FieldName:
		a.Name = v
	case FieldEmail:
		a.Email = v
	case FieldCompany:
		a.Company = v
	case FieldPhone:
		a.Phone = v
	case FieldSource:
		a.Source = v
	case FieldIndustry:
		a.Industry = v
	case FieldBudget:
		a.Budget = v
	case FieldTimeline:
		a.Timeline = v
	case FieldEngagement:
		a.Engagement = v
	}
}

// Get returns the value of field f, or "" for unknown fields.
func (a Attributes) Get(f Field) string {
	switch f {
	case FieldName:
		return a.Name
	case FieldEmail:
		return a.Email
	case FieldCompany:
		return a.Company
	case FieldPhone:
		return a.Phone
	case FieldSource:
		return a.Source
	case FieldIndustry:
		return a.Industry
	case FieldBudget:
		return a.Budget
	case FieldTimeline:
		return a.Timeline
	case FieldEngagement:
		return a.Engagement
	}
	return ""
}

// Lead is an admitted, scored lead. Derived fields are set once at admission.
type Lead struct {
	ID string `json:"id"`
	Attributes

	PhoneE164             string    `json:"phone_e164,omitempty"`
	Score                 int       `json:"score"`
	ConversionProbability string    `json:"conversion_probability"`
	AddedAt               time.Time `json:"added_at"`
	DateAdded             string    `json:"date_added"`
}
