// Package assessment holds the age-based placement model: the level catalogue,
// the age gap classifier, placements, lesson completions and their history.
package assessment

import "strings"

// Subject is a placement subject. The set is fixed.
type Subject string

const (
	SubjectEnglish     Subject = "ENGLISH"
	SubjectMathematics Subject = "MATHEMATICS"
	SubjectScience     Subject = "SCIENCE"
	SubjectReading     Subject = "READING"
	SubjectWriting     Subject = "WRITING"
	SubjectSpelling    Subject = "SPELLING"
)

// AllSubjects returns every subject in grid column order.
func AllSubjects() []Subject {
	return []Subject{
		SubjectEnglish,
		SubjectMathematics,
		SubjectScience,
		SubjectReading,
		SubjectWriting,
		SubjectSpelling,
	}
}

// IsValid checks if the subject is a known subject.
func (s Subject) IsValid() bool {
	switch s {
	case SubjectEnglish, SubjectMathematics, SubjectScience,
		SubjectReading, SubjectWriting, SubjectSpelling:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s Subject) String() string {
	return string(s)
}

// ParseSubject normalizes user input into a Subject.
func ParseSubject(value string) (Subject, bool) {
	s := Subject(strings.ToUpper(strings.TrimSpace(value)))
	return s, s.IsValid()
}
