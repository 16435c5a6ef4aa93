package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/velric/velric-server/internal/model"
)

// Grader scores a submission. Implementations must be safe for concurrent
// use.
type Grader interface {
	Grade(ctx context.Context, in GradeInput) (*model.Grading, error)
}

type GradeInput struct {
	Text      string
	Code      string
	Technical bool
}

// codeMarker spots code pasted into the written answer.
var codeMarker = regexp.MustCompile("```|function|const|let|var|class|import")

// HeuristicGrader grades on length and structure alone. It is the
// fallback when no model-backed grader is configured, and it is
// deterministic so the same answer always gets the same grade.
type HeuristicGrader struct{}

func (HeuristicGrader) Grade(_ context.Context, in GradeInput) (*model.Grading, error) {
	words := len(strings.Fields(in.Text))
	hasCode := strings.TrimSpace(in.Code) != "" || codeMarker.MatchString(in.Text)

	score := 50
	if words > 100 {
		score += 10
	}
	if words > 300 {
		score += 10
	}
	if hasCode && in.Technical {
		score += 15
	}
	if len(in.Text) > 100 {
		score += 10
	}
	score = min(95, max(50, score))

	grades := map[string]int{
		"Technical Accuracy": score / 10,
		"Clarity":            (score + 5) / 10,
		"Creativity":         (score - 5) / 10,
		"Relevance":          score / 10,
	}
	rubric := map[string]string{
		"Technical Accuracy": "Demonstrates understanding of concepts",
		"Clarity":            "Clear communication of ideas",
		"Creativity":         "Original approach to problem-solving",
		"Relevance":          "Addresses the mission requirements",
	}
	improvements := []string{
		"Consider adding more examples",
		"Expand on analysis depth",
		"Strengthen strategic recommendations",
	}
	if in.Technical {
		if hasCode {
			grades["Code Quality"] = (score + 10) / 10
			rubric["Code Quality"] = "Well-structured code"
		} else {
			grades["Code Quality"] = (score - 10) / 10
			rubric["Code Quality"] = "N/A"
		}
		improvements = []string{
			"Consider adding more examples",
			"Expand on edge cases",
			"Improve code comments",
		}
	}

	return &model.Grading{
		Grades:               grades,
		Feedback:             heuristicFeedback(score, words, hasCode, in.Technical),
		Summary:              fmt.Sprintf("%s submission with room for improvement.", tier(score, "Strong", "Good", "Satisfactory")),
		OverallScore:         score,
		LetterGrade:          letterGrade(score),
		Rubric:               rubric,
		PositiveTemplates:    []string{"Great attention to detail", "Clear documentation", "Good problem-solving approach"},
		ImprovementTemplates: improvements,
	}, nil
}

func heuristicFeedback(score, words int, hasCode, technical bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your submission demonstrates %s understanding. ", tier(score, "excellent", "good", "adequate"))
	switch {
	case technical && hasCode:
		b.WriteString("The code implementation shows promise. ")
	case !technical:
		b.WriteString("Your strategic approach and analysis are well-presented. ")
	default:
		b.WriteString("Consider adding code examples to strengthen your submission. ")
	}
	if words > 200 {
		b.WriteString("Your detailed explanation is appreciated.")
	} else {
		b.WriteString("Try to provide more comprehensive explanations.")
	}
	return b.String()
}

// tier picks by score: >=80, >=70, otherwise.
func tier(score int, high, mid, low string) string {
	switch {
	case score >= 80:
		return high
	case score >= 70:
		return mid
	default:
		return low
	}
}

func letterGrade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B+"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C+"
	default:
		return "C"
	}
}

// velricCurve maps a 0-100 average onto the 0-10 Velric scale. A 10
// needs a 95+ average.
var velricCurve = []struct {
	min   float64
	score float64
}{
	{95, 10}, {90, 9.5}, {85, 9}, {80, 8.5}, {75, 8}, {70, 7.5}, {65, 7}, {60, 6.5}, {55, 6},
}

// VelricScore folds a user's overall scores, oldest first, into one 0-10
// number. Later submissions weigh up to 1.5x, and each submission adds a
// 0.05 consistency bonus capped at 0.5. The result has one decimal.
func VelricScore(scores []int) float64 {
	if len(scores) == 0 {
		return 0
	}

	var weighted, weights float64
	n := float64(len(scores))
	for i, s := range scores {
		w := 1 + (float64(i)/n)*0.5
		weighted += float64(s) * w
		weights += w
	}
	avg := weighted / weights

	score := math.Max(1, avg/10)
	for _, step := range velricCurve {
		if avg >= step.min {
			score = step.score
			break
		}
	}

	score = math.Min(10, score+math.Min(0.5, n*0.05))
	return math.Round(score*10) / 10
}

// TabSwitchDeduction is the percentage shown next to a submission's grade.
func TabSwitchDeduction(count int) int {
	switch {
	case count <= 0:
		return 0
	case count == 1:
		return 10
	case count == 2:
		return 20
	default:
		return 50
	}
}
