package model

import "time"

// Submission statuses.
const (
	StatusSubmitted = "submitted"
	StatusGraded    = "graded"
)

// Submission is a candidate's answer to a mission together with the
// integrity signal collected while it was written.
//
// TabSwitchCount is advisory. It is produced by the client and a motivated
// candidate can suppress it; graders should treat it as a weak hint, not as
// proctoring evidence.
type Submission struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	MissionID      string    `json:"missionId"`
	SubmissionText string    `json:"submissionText"`
	Code           string    `json:"code"`
	Language       string    `json:"language"`
	TabSwitchCount int       `json:"tabSwitchCount"`
	Status         string    `json:"status"`
	Grading        *Grading  `json:"grading,omitempty"`
	VelricScore    *float64  `json:"velricScore,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Grading is the result of grading a submission. OverallScore is 0-100;
// each entry of Grades is 1-10.
type Grading struct {
	Grades               map[string]int    `json:"grades"`
	Feedback             string            `json:"feedback"`
	Summary              string            `json:"summary"`
	OverallScore         int               `json:"overallScore"`
	LetterGrade          string            `json:"letterGrade"`
	Rubric               map[string]string `json:"rubric"`
	PositiveTemplates    []string          `json:"positiveTemplates"`
	ImprovementTemplates []string          `json:"improvementTemplates"`
}

// Feedback is the read model behind the feedback page.
type Feedback struct {
	Submission
	TabSwitchDeduction int      `json:"tabSwitchDeduction"` // percent
	UserVelricScore    *float64 `json:"userVelricScore"`
}
