package model

import (
	"strings"
	"time"
)

// Mission is a skills-assessment challenge a candidate attempts.
//
// Field is free text from the catalog ("Technical", "Non-technical",
// "Frontend Engineering", ...). Only the non-technical marker matters to
// grading.
type Mission struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Field       string    `json:"field"`
	Difficulty  string    `json:"difficulty"`
	Skills      []string  `json:"skills"`
	CreatedAt   time.Time `json:"createdAt"`
}

// IsTechnical reports whether the mission should be graded on code quality.
func (m *Mission) IsTechnical() bool {
	return !strings.Contains(strings.ToLower(m.Field), "non-technical")
}
