package sqlite

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/velric/velric-server/internal/apperror"
	"github.com/velric/velric-server/internal/model"
	"github.com/velric/velric-server/internal/repository"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// =========================================================================
// MISSION TESTS
// =========================================================================

func TestNew_SeedsStaticMissions(t *testing.T) {
	db := newTestDB(t)

	missions, err := db.ListMissions(context.Background(), repository.ListOptions{Limit: 50})
	if err != nil {
		t.Fatalf("ListMissions() error = %v", err)
	}
	if len(missions) != len(repository.StaticMissions) {
		t.Fatalf("len(missions) = %d, want %d", len(missions), len(repository.StaticMissions))
	}
	if missions[0].ID != "1" {
		t.Errorf("first mission ID = %q, want %q", missions[0].ID, "1")
	}
	if len(missions[0].Skills) == 0 {
		t.Error("skills were not decoded")
	}
}

func TestGetMissionByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetMissionByID(context.Background(), "does-not-exist")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetMissionByID() error = %v, want ErrNotFound", err)
	}
}

func TestListMissions_Pagination(t *testing.T) {
	db := newTestDB(t)

	page, err := db.ListMissions(context.Background(), repository.ListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListMissions() error = %v", err)
	}
	if len(page) != 1 || page[0].ID != "2" {
		t.Errorf("page = %+v, want only mission 2", page)
	}
}

// =========================================================================
// SUBMISSION TESTS
// =========================================================================

func TestCreateAndGetSubmission(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "candidate@example.com")

	sub := &model.Submission{
		UserID:         user.ID,
		MissionID:      "1",
		SubmissionText: "done",
		Code:           "print(1)",
		Language:       "python",
		TabSwitchCount: 3,
	}
	if err := db.CreateSubmission(ctx, sub); err != nil {
		t.Fatalf("CreateSubmission() error = %v", err)
	}
	if sub.ID == "" {
		t.Fatal("CreateSubmission() did not set ID")
	}

	found, err := db.GetSubmissionByID(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubmissionByID() error = %v", err)
	}
	if found.TabSwitchCount != 3 || found.Code != "print(1)" || found.Language != "python" {
		t.Errorf("GetSubmissionByID() = %+v, want the stored integrity fields", found)
	}
	if found.Status != model.StatusSubmitted {
		t.Errorf("Status = %q, want %q", found.Status, model.StatusSubmitted)
	}
	if found.Grading != nil {
		t.Error("Grading should be nil before grading")
	}
}

func TestCreateSubmission_UnknownMissionViolatesForeignKey(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "fk@example.com")

	err := db.CreateSubmission(context.Background(), &model.Submission{
		UserID: user.ID, MissionID: "nope", SubmissionText: "x", Language: "python",
	})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("CreateSubmission() error = %v, want ErrValidation", err)
	}
}

func TestSaveGrading_MarksGradedAndLists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "graded@example.com")

	sub := &model.Submission{UserID: user.ID, MissionID: "2", SubmissionText: "answer", Language: "python"}
	if err := db.CreateSubmission(ctx, sub); err != nil {
		t.Fatalf("CreateSubmission() error = %v", err)
	}
	ungraded := &model.Submission{UserID: user.ID, MissionID: "1", SubmissionText: "later", Language: "python"}
	if err := db.CreateSubmission(ctx, ungraded); err != nil {
		t.Fatalf("CreateSubmission() error = %v", err)
	}

	grading := model.Grading{
		Grades:       map[string]int{"Clarity": 8},
		Summary:      "Good submission",
		OverallScore: 78,
		LetterGrade:  "B",
	}
	if err := db.SaveGrading(ctx, sub.ID, grading, 8.1); err != nil {
		t.Fatalf("SaveGrading() error = %v", err)
	}

	graded, err := db.ListGradedSubmissionsByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListGradedSubmissionsByUser() error = %v", err)
	}
	if len(graded) != 1 {
		t.Fatalf("len(graded) = %d, want 1", len(graded))
	}
	got := graded[0]
	if got.Status != model.StatusGraded {
		t.Errorf("Status = %q, want graded", got.Status)
	}
	if got.Grading == nil || got.Grading.OverallScore != 78 || got.Grading.Grades["Clarity"] != 8 {
		t.Errorf("Grading = %+v, want the saved grading", got.Grading)
	}
	if got.VelricScore == nil || *got.VelricScore != 8.1 {
		t.Errorf("VelricScore = %v, want 8.1", got.VelricScore)
	}
}

func TestSaveGrading_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.SaveGrading(context.Background(), "missing", model.Grading{}, 1)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("SaveGrading() error = %v, want ErrNotFound", err)
	}
}
