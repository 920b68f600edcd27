package domain

import (
	"time"

	"github.com/google/uuid"
)

// Fallback retention applied when a firm has no default policy for a
// document type.
const (
	DefaultRetentionYears  = 7
	DefaultRetentionMonths = 0
	DefaultRetentionDays   = 0
)

// DefaultDocumentType is used when a document carries no type at all.
const DefaultDocumentType = "Other"

// RetentionPolicy is a named (years, months, days) retention rule. At most
// one active policy may be flagged default per (firm, document type) pair.
type RetentionPolicy struct {
	ID           uuid.UUID
	FirmID       uuid.UUID
	Name         string
	Description  string
	DocumentType string

	Years  int
	Months int
	Days   int

	IsDefault bool
	IsActive  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RetentionPeriod is the (years, months, days) component triple of a policy
// or an ad-hoc custom retention.
type RetentionPeriod struct {
	Years  int
	Months int
	Days   int
}

// Period returns the policy's retention components.
func (p *RetentionPolicy) Period() RetentionPeriod {
	return RetentionPeriod{Years: p.Years, Months: p.Months, Days: p.Days}
}

// DefaultRetentionPeriod returns the fallback period used when no default
// policy exists.
func DefaultRetentionPeriod() RetentionPeriod {
	return RetentionPeriod{
		Years:  DefaultRetentionYears,
		Months: DefaultRetentionMonths,
		Days:   DefaultRetentionDays,
	}
}

// DocumentRetention is the active retention assignment for one document.
// Created exactly once on admin approval; closed by the archival sweep.
type DocumentRetention struct {
	ID         uuid.UUID
	DocumentID uuid.UUID

	// PolicyID is nil for ad-hoc custom retention periods.
	PolicyID *uuid.UUID

	Years  int
	Months int
	Days   int

	StartDate  time.Time
	ExpiryDate time.Time

	IsArchived bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Period returns the retention's component triple.
func (r *DocumentRetention) Period() RetentionPeriod {
	return RetentionPeriod{Years: r.Years, Months: r.Months, Days: r.Days}
}

// Expired reports whether the retention expiry has passed at the given time.
func (r *DocumentRetention) Expired(now time.Time) bool {
	return !r.ExpiryDate.After(now)
}

// ComputeExpiry derives an absolute expiry date from a start date plus
// calendar years, months and days. Year and month addition clamps to the last
// day of the target month instead of normalizing into the following month,
// so 2024-01-31 + 1 month = 2024-02-29 and 2023-01-31 + 1 month = 2023-02-28.
// Days are added after clamping as plain calendar days.
func ComputeExpiry(start time.Time, years, months, days int) time.Time {
	y, m, d := start.Date()

	total := (int(m) - 1) + months + years*12
	year := y + total/12
	month := time.Month(total%12 + 1)
	if total < 0 && total%12 != 0 {
		year--
		month += 12
	}

	if last := daysInMonth(year, month); d > last {
		d = last
	}

	h, min, sec := start.Clock()
	expiry := time.Date(year, month, d, h, min, sec, start.Nanosecond(), start.Location())
	return expiry.AddDate(0, 0, days)
}

// daysInMonth returns the number of days in the given month.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
