package models

import (
	"errors"
	"time"
)

// ErrOverlapExcluded marks a storage-side exclusion constraint rejection of
// an overlapping period. The service maps it to a conflict verdict; it must
// never surface as a generic storage failure.
var ErrOverlapExcluded = errors.New("contract period overlaps an existing row")

// ContractPeriod represents a care contract for a client within a category.
// At most one period per (client, category) pair may cover any given day.
type ContractPeriod struct {
	ID         string     `db:"id" json:"id"`
	ClientID   string     `db:"client_id" json:"client_id"`
	CategoryID string     `db:"category_id" json:"category_id"`
	StartDate  time.Time  `db:"start_date" json:"start_date"`
	EndDate    *time.Time `db:"end_date" json:"end_date,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Interval returns the period's date range; a NULL end date maps to an open end.
func (p ContractPeriod) Interval() Interval {
	return Interval{Start: p.StartDate, End: p.EndDate}
}

// CareCategory is the care type a contract period is booked under.
type CareCategory struct {
	ID   string `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// ContractFilter describes query params for listing contract periods.
type ContractFilter struct {
	ClientID   string
	CategoryID string
	ActiveOn   *time.Time
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// OverlapQuery scopes an overlap lookup to a single (client, category)
// partition. ExcludeID skips the record being edited so a period never
// conflicts with itself.
type OverlapQuery struct {
	ClientID   string
	CategoryID string
	Candidate  Interval
	ExcludeID  string
}

// ContractConflict identifies an existing period that collides with a candidate.
type ContractConflict struct {
	PeriodID     string     `json:"period_id"`
	ClientID     string     `json:"client_id"`
	CategoryID   string     `json:"category_id"`
	CategoryName string     `json:"category_name,omitempty"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
}

// ContractVerdict is the advisory check outcome. The overlap/message pair is
// the wire contract consumed by the form's live validation.
type ContractVerdict struct {
	Overlap  bool              `json:"overlap"`
	Message  string            `json:"message,omitempty"`
	Conflict *ContractConflict `json:"conflict,omitempty"`
}

// ContractConflictError is returned when a period collides with an existing one.
type ContractConflictError struct {
	Message  string           `json:"message"`
	Conflict ContractConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *ContractConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// Pagination carries list metadata in response envelopes.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
