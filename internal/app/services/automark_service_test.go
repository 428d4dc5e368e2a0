package services

import (
	"context"
	"testing"
	"time"

	"github.com/veli/attendix/internal/app/models"
)

func TestAutoMarkRun(t *testing.T) {
	ctx := context.Background()
	store := newFakeAttendanceStore()

	second := &models.Student{ID: 43, SchoolID: 1, ClassID: 7, Code: "20250043", Name: "Li Na", Active: true}
	third := &models.Student{ID: 44, SchoolID: 1, ClassID: 7, Code: "20250044", Name: "Zhao Lei", Active: true}
	inactive := &models.Student{ID: 45, SchoolID: 1, ClassID: 7, Code: "20250045", Name: "Wang Fang", Active: false}

	attendance := testEngine(store, second, third, inactive)
	students := newFakeStudentStore(testStudent(), second, third, inactive)
	leaves := newFakeLeaveRequestStore()

	date := mustDate("2025-03-10")

	// Student 42 was already marked by a teacher.
	if _, err := attendance.Record(ctx, models.RecordInput{
		StudentID: 42, Date: date, PeriodID: ptr(1), Status: models.StatusLate,
	}); err != nil {
		t.Fatalf("seed Record error = %v", err)
	}

	// Student 43 has an approved leave covering the date.
	leaves.requests[1] = &models.LeaveRequest{
		ID: 1, StudentID: 43, LeaveTypeID: 1,
		DateFrom: mustDate("2025-03-09"), DateTo: mustDate("2025-03-11"),
		Status: models.LeaveApproved, SourceRef: "leave:xyz",
	}

	svc := NewAutoMarkService(attendance, store, students, leaves, AutoMarkConfig{
		Cutoff:        "16:30",
		DefaultStatus: models.StatusPresent,
	})

	result, err := svc.Run(ctx, date)
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if result.Skipped != 1 {
		t.Errorf("skipped = %d, want 1 (already marked)", result.Skipped)
	}
	if result.OnLeave != 1 {
		t.Errorf("onLeave = %d, want 1", result.OnLeave)
	}
	if result.Marked != 1 {
		t.Errorf("marked = %d, want 1 (active, unmarked, no leave)", result.Marked)
	}

	// Student 43 got a leave entry tied to the approved request.
	entry, err := store.GetEntry(ctx, 43, date, nil)
	if err != nil {
		t.Fatalf("student 43 entry missing: %v", err)
	}
	if entry.Status != models.StatusLeave || entry.SourceRef != "leave:xyz" || entry.Source != models.SourceSystem {
		t.Errorf("student 43 entry = %+v", entry)
	}

	// Student 44 got the default status.
	entry, err = store.GetEntry(ctx, 44, date, nil)
	if err != nil {
		t.Fatalf("student 44 entry missing: %v", err)
	}
	if entry.Status != models.StatusPresent || entry.Source != models.SourceSystem {
		t.Errorf("student 44 entry = %+v", entry)
	}

	// The inactive student was never touched.
	if _, err := store.GetEntry(ctx, 45, date, nil); err == nil {
		t.Error("inactive student 45 was marked")
	}

	// A second run converges without duplicating work.
	result, err = svc.Run(ctx, date)
	if err != nil {
		t.Fatalf("second Run error = %v", err)
	}
	if result.Marked != 0 || result.OnLeave != 0 || result.Skipped != 3 {
		t.Errorf("second run result = %+v, want everyone skipped", result)
	}
}

func TestAutoMarkRunDueRespectsCutoff(t *testing.T) {
	ctx := context.Background()
	store := newFakeAttendanceStore()
	attendance := testEngine(store)
	students := newFakeStudentStore(testStudent())

	svc := NewAutoMarkService(attendance, store, students, newFakeLeaveRequestStore(), AutoMarkConfig{
		Cutoff:        "16:30",
		DefaultStatus: models.StatusPresent,
	})

	morning := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	result, err := svc.RunDue(ctx, morning)
	if err != nil {
		t.Fatalf("RunDue error = %v", err)
	}
	if result != nil {
		t.Errorf("RunDue before cutoff ran the batch: %+v", result)
	}
	if got := len(store.all()); got != 0 {
		t.Errorf("entries written before cutoff: %d", got)
	}

	evening := time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)
	result, err = svc.RunDue(ctx, evening)
	if err != nil {
		t.Fatalf("RunDue error = %v", err)
	}
	if result == nil || result.Marked != 1 {
		t.Errorf("RunDue after cutoff result = %+v, want 1 marked", result)
	}
}
