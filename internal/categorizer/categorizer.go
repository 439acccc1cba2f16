package categorizer

import (
	"strings"
	"time"

	"github.com/kursadbilgin/notice-engine/internal/domain"
)

type rule struct {
	category domain.Category
	keywords []string
}

// Order matters: keyword lists overlap by substring and the first hit wins.
var rules = []rule{
	{domain.CategoryResult, []string{"result", "grade card", "marksheet", "marks", "score"}},
	{domain.CategoryRoutine, []string{"routine", "schedule", "time table", "timetable", "class schedule"}},
	{domain.CategorySyllabus, []string{"syllabus", "curriculum", "course outline", "course structure"}},
	{domain.CategoryExam, []string{"exam", "examination", "test", "assessment"}},
	{domain.CategoryAdmission, []string{"admission", "registration", "enrollment", "enrolment"}},
	{domain.CategoryScholarship, []string{"scholarship", "stipend", "kanyashree", "aikyashree", "oasis", "svmcm"}},
	{domain.CategoryHoliday, []string{"holiday", "vacation", "leave", "closed"}},
	{domain.CategoryImportant, []string{"urgent", "important", "form fill", "form submission", "last date", "deadline"}},
}

var highPriority = map[domain.Category]struct{}{
	domain.CategoryResult:      {},
	domain.CategoryRoutine:     {},
	domain.CategorySyllabus:    {},
	domain.CategoryExam:        {},
	domain.CategoryAdmission:   {},
	domain.CategoryScholarship: {},
}

var urgentKeywords = []string{"urgent", "important", "last date", "deadline", "form submission", "immediately"}

var emojis = map[domain.Category]string{
	domain.CategoryResult:      "📊",
	domain.CategoryRoutine:     "📅",
	domain.CategorySyllabus:    "📚",
	domain.CategoryExam:        "📝",
	domain.CategoryAdmission:   "🎓",
	domain.CategoryScholarship: "💰",
	domain.CategoryHoliday:     "🎉",
	domain.CategoryImportant:   "⚠️",
	domain.CategoryGeneral:     "📋",
}

// Categorize returns the first category whose keyword list has a substring hit
// in the lowercased title, or general.
func Categorize(title string) domain.Category {
	lower := strings.ToLower(title)
	for _, r := range rules {
		if containsAny(lower, r.keywords) {
			return r.category
		}
	}
	return domain.CategoryGeneral
}

// IsHighPriority is true for inherently important categories or titles carrying an urgent keyword.
func IsHighPriority(title string, category domain.Category) bool {
	if _, ok := highPriority[category]; ok {
		return true
	}
	return containsAny(strings.ToLower(title), urgentKeywords)
}

// Annotate fills the derived fields of n relative to now.
func Annotate(n *domain.Notice, now time.Time) {
	n.Category = Categorize(n.Title)
	n.IsImportant = IsHighPriority(n.Title, n.Category)
	n.IsNew = n.IsNewAt(now)
}

func Emoji(category domain.Category) string {
	if e, ok := emojis[category]; ok {
		return e
	}
	return emojis[domain.CategoryGeneral]
}

// PushTitle builds the notification headline for n, e.g. "🔔 📊 New Result".
func PushTitle(n domain.Notice) string {
	category := n.Category
	if !category.IsValid() {
		category = domain.CategoryGeneral
	}
	title := Emoji(category) + " New " + category.Label()
	if n.IsImportant && category != domain.CategoryImportant {
		title = "🔔 " + title
	}
	return title
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
