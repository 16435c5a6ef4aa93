package model

import "time"

// Survey is one onboarding questionnaire answer set. A user may submit
// more than once; the newest row is the current one.
type Survey struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId"`
	FullName           string    `json:"fullName"`
	EducationLevel     string    `json:"educationLevel"`
	Industry           string    `json:"industry"`
	MissionFocus       []string  `json:"missionFocus"`
	StrengthAreas      []string  `json:"strengthAreas"`
	LearningPreference string    `json:"learningPreference"`
	PortfolioURL       *string   `json:"portfolioUrl"`
	ExperienceSummary  *string   `json:"experienceSummary"`
	CreatedAt          time.Time `json:"createdAt"`
}

// SurveyStatus answers "has this user finished onboarding".
type SurveyStatus struct {
	UserID       string     `json:"userId"`
	Completed    bool       `json:"isCompleted"`
	Onboarded    bool       `json:"onboarded"`
	LastModified *time.Time `json:"lastModified"`
	Survey       *Survey    `json:"data"`
}

// Candidate is a non-recruiter user as recruiters see them: the account
// summary joined with the newest survey, if any.
type Candidate struct {
	ID                 string   `json:"id"`
	Name               *string  `json:"name"`
	Email              string   `json:"email"`
	Onboarded          bool     `json:"onboarded"`
	ProfileComplete    bool     `json:"profile_complete"`
	VelricScore        *float64 `json:"velricScore"`
	Industry           *string  `json:"industry,omitempty"`
	EducationLevel     *string  `json:"education_level,omitempty"`
	LearningPreference *string  `json:"learning_preference,omitempty"`
	ExperienceSummary  *string  `json:"experience_summary,omitempty"`
	MissionFocus       []string `json:"mission_focus,omitempty"`
	StrengthAreas      []string `json:"strength_areas,omitempty"`
}
