package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Category is the fixed classification assigned to a notice title.
type Category string

const (
	CategoryResult      Category = "result"
	CategoryRoutine     Category = "routine"
	CategorySyllabus    Category = "syllabus"
	CategoryExam        Category = "exam"
	CategoryAdmission   Category = "admission"
	CategoryScholarship Category = "scholarship"
	CategoryHoliday     Category = "holiday"
	CategoryImportant   Category = "important"
	CategoryGeneral     Category = "general"
)

func (c Category) String() string { return string(c) }

func (c Category) IsValid() bool {
	switch c {
	case CategoryResult, CategoryRoutine, CategorySyllabus, CategoryExam, CategoryAdmission,
		CategoryScholarship, CategoryHoliday, CategoryImportant, CategoryGeneral:
		return true
	}
	return false
}

// Label returns the category with its first letter upper-cased, e.g. "Result".
func (c Category) Label() string {
	if c == "" {
		return ""
	}
	s := string(c)
	return strings.ToUpper(s[:1]) + s[1:]
}

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: invalid category %q", ErrValidation, s)
	}
	return c, nil
}

const dateLayout = "2006-01-02"

// Date is a calendar day without a time component. It is always held at UTC midnight.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q", ErrValidation, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// DaysBefore returns the number of whole days between d and now's calendar day.
// It is negative when d lies in the future.
func (d Date) DaysBefore(now time.Time) int {
	today := DateOf(now)
	return int(today.Sub(d.Time).Hours() / 24)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NewWindowDays is how many days after its date a notice is still flagged as new.
const NewWindowDays = 3

// Notice is one announcement scraped from the source notice board.
type Notice struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Date        Date     `json:"date"`
	URL         string   `json:"url"`
	IsNew       bool     `json:"isNew"`
	IsImportant bool     `json:"isImportant"`
	Category    Category `json:"category,omitempty"`
}

// IsNewAt reports whether the notice falls inside the rolling "new" window at now.
func (n Notice) IsNewAt(now time.Time) bool {
	diff := n.Date.DaysBefore(now)
	return diff >= 0 && diff <= NewWindowDays
}
