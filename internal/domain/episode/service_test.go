package episode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kinetic/kinetic/internal/platform/apperr"
	"github.com/kinetic/kinetic/internal/platform/db"
)

func newTestService() (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	return NewService(repo, db.NopTransactor{}), repo
}

func intPtr(v int) *int { return &v }

func newActiveEpisode(t *testing.T, svc *Service) *Episode {
	t.Helper()
	e := &Episode{
		PatientID: uuid.New(),
		PhysioID:  uuid.New(),
		Condition: "Lumbar strain",
		StartedAt: time.Now().Add(-30 * 24 * time.Hour),
	}
	if err := svc.CreateEpisode(context.Background(), e); err != nil {
		t.Fatalf("CreateEpisode: %v", err)
	}
	return e
}

func TestCreateEpisode_Defaults(t *testing.T) {
	svc, _ := newTestService()
	gp := uuid.New()
	e := &Episode{PatientID: uuid.New(), PhysioID: uuid.New(), Condition: "  ACL rehab ", ReferringGPID: &gp}
	if err := svc.CreateEpisode(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if e.Status != StatusActive {
		t.Errorf("expected active, got %s", e.Status)
	}
	if e.Condition != "ACL rehab" {
		t.Errorf("expected trimmed condition, got %q", e.Condition)
	}
	if !e.IsGPReferred {
		t.Error("expected GP-referred when referring GP is set")
	}
}

func TestCreateEpisode_Validation(t *testing.T) {
	svc, _ := newTestService()
	tests := []struct {
		name string
		e    Episode
	}{
		{"missing patient", Episode{PhysioID: uuid.New(), Condition: "x"}},
		{"missing physio", Episode{PatientID: uuid.New(), Condition: "x"}},
		{"missing condition", Episode{PatientID: uuid.New(), PhysioID: uuid.New()}},
		{"terminal status", Episode{PatientID: uuid.New(), PhysioID: uuid.New(), Condition: "x", Status: StatusDischarged}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.e
			err := svc.CreateEpisode(context.Background(), &e)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateEpisode_PriorEpisode(t *testing.T) {
	svc, _ := newTestService()
	prior := newActiveEpisode(t, svc)

	next := &Episode{PatientID: prior.PatientID, PhysioID: uuid.New(), Condition: "x", PriorPhysioEpisodeID: &prior.ID}
	if err := svc.CreateEpisode(context.Background(), next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other := &Episode{PatientID: uuid.New(), PhysioID: uuid.New(), Condition: "x", PriorPhysioEpisodeID: &prior.ID}
	if err := svc.CreateEpisode(context.Background(), other); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for other patient, got %v", err)
	}

	early := &Episode{PatientID: prior.PatientID, PhysioID: uuid.New(), Condition: "x",
		PriorPhysioEpisodeID: &prior.ID, StartedAt: prior.StartedAt.Add(-time.Hour)}
	if err := svc.CreateEpisode(context.Background(), early); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for earlier start, got %v", err)
	}

	missing := uuid.New()
	orphan := &Episode{PatientID: prior.PatientID, PhysioID: uuid.New(), Condition: "x", PriorPhysioEpisodeID: &missing}
	if err := svc.CreateEpisode(context.Background(), orphan); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for missing prior, got %v", err)
	}
}

func TestRecordVisit_DenseNumbers(t *testing.T) {
	svc, _ := newTestService()
	e := newActiveEpisode(t, svc)

	for i := 0; i < 3; i++ {
		v := &Visit{EpisodeID: e.ID, PainScore: intPtr(6 - i), FunctionScore: intPtr(40 + 10*i)}
		if err := svc.RecordVisit(context.Background(), v); err != nil {
			t.Fatalf("RecordVisit: %v", err)
		}
		if v.VisitNumber != i+1 {
			t.Errorf("expected visit number %d, got %d", i+1, v.VisitNumber)
		}
	}

	got, err := svc.GetEpisode(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if len(got.Visits) != 3 {
		t.Fatalf("expected 3 visits, got %d", len(got.Visits))
	}
}

func TestRecordVisit_ScoreRanges(t *testing.T) {
	svc, _ := newTestService()
	e := newActiveEpisode(t, svc)

	bad := []*Visit{
		{EpisodeID: e.ID, PainScore: intPtr(11)},
		{EpisodeID: e.ID, PainScore: intPtr(-1)},
		{EpisodeID: e.ID, FunctionScore: intPtr(101)},
	}
	for _, v := range bad {
		if err := svc.RecordVisit(context.Background(), v); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	}

	ok := &Visit{EpisodeID: e.ID}
	if err := svc.RecordVisit(context.Background(), ok); err != nil {
		t.Errorf("visits without scores are allowed: %v", err)
	}
}

func TestRecordVisit_TerminalEpisode(t *testing.T) {
	svc, _ := newTestService()
	e := newActiveEpisode(t, svc)
	if _, err := svc.ChangeStatus(context.Background(), e.ID, StatusDischarged); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	err := svc.RecordVisit(context.Background(), &Visit{EpisodeID: e.ID})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestChangeStatus_OneWay(t *testing.T) {
	svc, _ := newTestService()
	e := newActiveEpisode(t, svc)

	got, err := svc.ChangeStatus(context.Background(), e.ID, StatusSelfDischarged)
	if err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if got.DischargedAt == nil {
		t.Error("expected discharged_at to be stamped")
	}

	if _, err := svc.ChangeStatus(context.Background(), e.ID, StatusActive); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("expected invalid transition, got %v", err)
	}
	if _, err := svc.ChangeStatus(context.Background(), e.ID, StatusTransferred); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("expected invalid transition, got %v", err)
	}
	if _, err := svc.ChangeStatus(context.Background(), e.ID, "paused"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
