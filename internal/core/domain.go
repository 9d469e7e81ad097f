package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

type (
	// Frequency is how often a recurring expense fires.
	Frequency string

	// Date is a calendar date, normalized to midnight UTC.
	Date struct {
		time.Time
	}

	// Money is an amount in cents tagged with an ISO 4217 currency code.
	Money struct {
		Cents    int64
		Currency string
	}

	User struct {
		ID           int64
		Email        string
		Name         string
		GoogleID     string
		BaseCurrency string
		CreatedAt    time.Time
	}

	// Category is an expense category. UserID nil means it is a system
	// default visible to every user.
	Category struct {
		ID          int64
		Name        string
		Description string
		ParentID    *int64
		UserID      *int64
	}

	// Expense is a concrete transaction. Once created it is an immutable
	// snapshot: edits to the recurring template it came from do not
	// propagate back.
	Expense struct {
		ID          int64
		UserID      int64
		CategoryID  int64
		Date        Date
		Description string
		Amount      Money
		IsRecurring bool
		CreatedAt   time.Time
	}

	// RecurringExpense is a template describing a periodic expense.
	// NextOccurrence caches the next date an expense should be emitted;
	// it is advanced by the materialization job after each firing.
	RecurringExpense struct {
		ID             int64
		UserID         int64
		CategoryID     int64
		Amount         Money
		Frequency      Frequency
		StartDate      Date
		EndDate        Date // zero value means no end date
		NextOccurrence Date
		Description    string
		CreatedAt      time.Time
	}
)

var (
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidCurrency  = errors.New("invalid currency code")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidDate      = errors.New("invalid date")
	ErrNotFound         = errors.New("not found")
)

// ParseFrequency validates a frequency string. The set of accepted values
// is closed; anything else is ErrInvalidFrequency.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case Daily, Weekly, Monthly, Yearly:
		return f, nil
	default:
		return "", ErrInvalidFrequency
	}
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its UTC calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Day returns the day of the month.
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month as 1-12.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year.
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	if len(m.Currency) != 3 {
		return ErrInvalidCurrency
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.CategoryID == 0 {
		return errors.New("missing category")
	}
	if e.UserID == 0 {
		return errors.New("missing user")
	}
	return nil
}

func (re RecurringExpense) Validate() error {
	if err := re.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}

	// End date is optional; when present it must not precede the start.
	if !re.EndDate.IsZero() && re.EndDate.Before(re.StartDate.Time) {
		return errors.New("end date must not be before start date")
	}

	if _, err := ParseFrequency(string(re.Frequency)); err != nil {
		return err
	}

	if len(strings.TrimSpace(re.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(re.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}

	if err := re.Amount.Validate(); err != nil {
		return err
	}
	if re.CategoryID == 0 {
		return errors.New("missing category")
	}
	if re.UserID == 0 {
		return errors.New("missing user")
	}

	return nil
}

// Active reports whether the template may still materialize expenses on the
// given day. A template with an end date on or before today is inactive.
func (re RecurringExpense) Active(today Date) bool {
	return re.EndDate.IsZero() || re.EndDate.After(today.Time)
}
