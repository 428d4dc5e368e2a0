package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/veli/attendix/internal/app/models"
	"github.com/veli/attendix/internal/pkg/apperrors"
)

func TestLeaveSubmitValidatesDateRange(t *testing.T) {
	ctx := context.Background()
	requests := newFakeLeaveRequestStore()
	store := newFakeAttendanceStore()
	svc := NewLeaveService(requests, store, testEngine(store))

	_, err := svc.Submit(ctx, &models.LeaveRequest{
		StudentID:   42,
		LeaveTypeID: 1,
		DateFrom:    mustDate("2025-03-12"),
		DateTo:      mustDate("2025-03-10"),
	})
	if !errors.Is(err, apperrors.ErrInvalidDateRange) {
		t.Fatalf("Submit reversed range error = %v, want ErrInvalidDateRange", err)
	}

	id, err := svc.Submit(ctx, &models.LeaveRequest{
		StudentID:   42,
		LeaveTypeID: 1,
		DateFrom:    mustDate("2025-03-10"),
		DateTo:      mustDate("2025-03-12"),
		Reason:      "flu",
	})
	if err != nil {
		t.Fatalf("Submit error = %v", err)
	}
	lr, err := requests.GetLeaveRequestByID(ctx, id)
	if err != nil {
		t.Fatalf("request not stored: %v", err)
	}
	if lr.Status != models.LeavePending {
		t.Errorf("status = %s, want pending", lr.Status)
	}
}

func TestLeaveApproveMaterializesEntries(t *testing.T) {
	ctx := context.Background()
	requests := newFakeLeaveRequestStore()
	store := newFakeAttendanceStore()
	svc := NewLeaveService(requests, store, testEngine(store))

	id, err := svc.Submit(ctx, &models.LeaveRequest{
		StudentID:   42,
		LeaveTypeID: 1,
		DateFrom:    mustDate("2025-03-10"),
		DateTo:      mustDate("2025-03-12"),
		Reason:      "flu",
	})
	if err != nil {
		t.Fatalf("Submit error = %v", err)
	}

	lr, err := svc.Approve(ctx, id, 9)
	if err != nil {
		t.Fatalf("Approve error = %v", err)
	}
	if lr.Status != models.LeaveApproved {
		t.Errorf("status = %s, want approved", lr.Status)
	}
	if lr.DecidedBy == nil || *lr.DecidedBy != 9 {
		t.Errorf("decidedBy = %v, want 9", lr.DecidedBy)
	}
	if !strings.HasPrefix(lr.SourceRef, "leave:") {
		t.Errorf("sourceRef = %q, want leave: prefix", lr.SourceRef)
	}

	entries := store.all()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want one per day of the range", len(entries))
	}
	for _, e := range entries {
		if e.Status != models.StatusExcused || e.Source != models.SourceLeaveRequest || e.SourceRef != lr.SourceRef {
			t.Errorf("entry %s = %+v", e.EntryDate.Format("2006-01-02"), e)
		}
	}

	// A decided request cannot be approved again.
	if _, err := svc.Approve(ctx, id, 9); !errors.Is(err, apperrors.ErrLeaveRequestNotPending) {
		t.Errorf("re-Approve error = %v, want ErrLeaveRequestNotPending", err)
	}
}

func TestLeaveRejectAfterApprovalRevertsEntries(t *testing.T) {
	ctx := context.Background()
	requests := newFakeLeaveRequestStore()
	store := newFakeAttendanceStore()
	attendance := testEngine(store)
	svc := NewLeaveService(requests, store, attendance)

	date := mustDate("2025-03-10")

	// An unrelated entry from the same day must survive the revert.
	if _, err := attendance.Record(ctx, models.RecordInput{
		StudentID: 42, Date: date, PeriodID: ptr(1), Status: models.StatusLate,
	}); err != nil {
		t.Fatalf("seed Record error = %v", err)
	}

	id, err := svc.Submit(ctx, &models.LeaveRequest{
		StudentID:   42,
		LeaveTypeID: 3,
		DateFrom:    date,
		DateTo:      date,
	})
	if err != nil {
		t.Fatalf("Submit error = %v", err)
	}
	lr, err := svc.Approve(ctx, id, 9)
	if err != nil {
		t.Fatalf("Approve error = %v", err)
	}

	before := len(store.all())
	if before < 3 {
		t.Fatalf("entries before reject = %d, want seed + baseline + leave", before)
	}

	if err := svc.Reject(ctx, id, 9, "duplicate request"); err != nil {
		t.Fatalf("Reject error = %v", err)
	}

	for _, e := range store.all() {
		if e.SourceRef == lr.SourceRef {
			t.Errorf("entry from approval survived reject: %+v", e)
		}
	}
	if _, err := store.GetEntry(ctx, 42, date, ptr(1)); err != nil {
		t.Errorf("unrelated period entry was removed: %v", err)
	}

	got, err := requests.GetLeaveRequestByID(ctx, id)
	if err != nil {
		t.Fatalf("GetLeaveRequestByID error = %v", err)
	}
	if got.Status != models.LeaveRejected || got.Reason != "duplicate request" {
		t.Errorf("request after reject = %+v", got)
	}

	// Rejecting again is a no-op.
	if err := svc.Reject(ctx, id, 9, ""); err != nil {
		t.Errorf("second Reject error = %v", err)
	}
}
