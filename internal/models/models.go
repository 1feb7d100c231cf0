// Package models defines the traffic record schemas and their validation
package models

// Collection names used by the document store
const (
	TransitCollection  = "transit"
	AccidentCollection = "accident"
	RoadworkCollection = "roadwork"
)

// DefaultStatus is applied to accidents and roadworks created without a status
const DefaultStatus = "active"

// Record is a validated traffic record ready to be stored
type Record interface {
	Collection() string
	Document() map[string]any
}

// Transit is the operational status of a transit line
type Transit struct {
	Line         string  `json:"line" required:"true"`
	Status       string  `json:"status" required:"true"`
	DelayMinutes int     `json:"delay_minutes" default:"0" validate:"gte=0"`
	Agency       *string `json:"agency,omitempty"`
}

// Accident is a reported road accident
type Accident struct {
	Location    string   `json:"location" required:"true"`
	Severity    string   `json:"severity" required:"true"`
	Status      string   `json:"status" default:"active"`
	Description *string  `json:"description,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
}

// Roadwork is a roadwork notice
type Roadwork struct {
	Location    string   `json:"location" required:"true"`
	Impact      string   `json:"impact" required:"true"`
	Status      string   `json:"status" default:"active"`
	StartDate   *Date    `json:"start_date,omitempty"`
	EndDate     *Date    `json:"end_date,omitempty"`
	Description *string  `json:"description,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
}

func (t Transit) Collection() string  { return TransitCollection }
func (a Accident) Collection() string { return AccidentCollection }
func (r Roadwork) Collection() string { return RoadworkCollection }

// Document returns the stored field map. Absent optional fields are omitted.
func (t Transit) Document() map[string]any {
	doc := map[string]any{
		"line":          t.Line,
		"status":        t.Status,
		"delay_minutes": t.DelayMinutes,
	}
	putString(doc, "agency", t.Agency)
	return doc
}

func (a Accident) Document() map[string]any {
	doc := map[string]any{
		"location": a.Location,
		"severity": a.Severity,
		"status":   a.Status,
	}
	putString(doc, "description", a.Description)
	putFloat(doc, "lat", a.Lat)
	putFloat(doc, "lng", a.Lng)
	return doc
}

func (r Roadwork) Document() map[string]any {
	doc := map[string]any{
		"location": r.Location,
		"impact":   r.Impact,
		"status":   r.Status,
	}
	if r.StartDate != nil {
		doc["start_date"] = r.StartDate.String()
	}
	if r.EndDate != nil {
		doc["end_date"] = r.EndDate.String()
	}
	putString(doc, "description", r.Description)
	putFloat(doc, "lat", r.Lat)
	putFloat(doc, "lng", r.Lng)
	return doc
}

func putString(doc map[string]any, key string, v *string) {
	if v != nil {
		doc[key] = *v
	}
}

func putFloat(doc map[string]any, key string, v *float64) {
	if v != nil {
		doc[key] = *v
	}
}
