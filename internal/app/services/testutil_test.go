package services

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/veli/attendix/internal/app/models"
	"github.com/veli/attendix/internal/pkg/apperrors"
)

// In-memory store fakes backing the service tests. They mirror the slot
// semantics the partial unique indexes enforce in Postgres.

type fakeAttendanceStore struct {
	mu      sync.RWMutex
	nextID  int64
	entries []*models.AttendanceEntry
}

func newFakeAttendanceStore() *fakeAttendanceStore {
	return &fakeAttendanceStore{}
}

func copyEntry(e *models.AttendanceEntry) *models.AttendanceEntry {
	c := *e
	return &c
}

func sameDay(a, b time.Time) bool {
	return a.UTC().Truncate(24*time.Hour).Equal(b.UTC().Truncate(24 * time.Hour))
}

// sameSlot reports whether an existing row occupies the slot the entry
// addresses: (student, date, period) for period rows, (student, date,
// disamb_key) for whole-day rows.
func sameSlot(existing, entry *models.AttendanceEntry) bool {
	if existing.StudentID != entry.StudentID || !sameDay(existing.EntryDate, entry.EntryDate) {
		return false
	}
	if entry.PeriodID != nil {
		return existing.PeriodID != nil && *existing.PeriodID == *entry.PeriodID
	}
	return existing.PeriodID == nil && existing.DisambKey == entry.DisambKey
}

func (s *fakeAttendanceStore) UpsertEntry(_ context.Context, entry *models.AttendanceEntry) (*models.AttendanceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for i, existing := range s.entries {
		if sameSlot(existing, entry) {
			updated := copyEntry(entry)
			updated.ID = existing.ID
			updated.CreatedAt = existing.CreatedAt
			updated.UpdatedAt = now
			s.entries[i] = updated
			return copyEntry(updated), nil
		}
	}

	s.nextID++
	created := copyEntry(entry)
	created.ID = s.nextID
	created.CreatedAt = now
	created.UpdatedAt = now
	s.entries = append(s.entries, created)
	return copyEntry(created), nil
}

func (s *fakeAttendanceStore) GetEntry(_ context.Context, studentID int64, date time.Time, periodID *int64) (*models.AttendanceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.StudentID != studentID || !sameDay(e.EntryDate, date) {
			continue
		}
		if periodID != nil {
			if e.PeriodID != nil && *e.PeriodID == *periodID {
				return copyEntry(e), nil
			}
			continue
		}
		if e.PeriodID == nil && e.DisambKey == "" {
			return copyEntry(e), nil
		}
	}
	return nil, apperrors.ErrEntryNotFound
}

func (s *fakeAttendanceStore) FindWholeDayEntry(_ context.Context, studentID int64, date time.Time, leaveTypeID *int64, disambKey string) (*models.AttendanceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.StudentID != studentID || !sameDay(e.EntryDate, date) || e.PeriodID != nil || e.DisambKey != disambKey {
			continue
		}
		if leaveTypeID != nil && (e.LeaveTypeID == nil || *e.LeaveTypeID != *leaveTypeID) {
			continue
		}
		return copyEntry(e), nil
	}
	return nil, apperrors.ErrEntryNotFound
}

func (s *fakeAttendanceStore) ListDayEntries(_ context.Context, studentID int64, date time.Time) ([]*models.AttendanceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var day []*models.AttendanceEntry
	for _, e := range s.entries {
		if e.StudentID == studentID && sameDay(e.EntryDate, date) {
			day = append(day, copyEntry(e))
		}
	}
	// Whole-day rows first, then period rows in period order.
	sort.Slice(day, func(i, j int) bool {
		a, b := day[i], day[j]
		switch {
		case a.PeriodID == nil && b.PeriodID == nil:
			return a.DisambKey < b.DisambKey
		case a.PeriodID == nil:
			return true
		case b.PeriodID == nil:
			return false
		default:
			return *a.PeriodID < *b.PeriodID
		}
	})
	return day, nil
}

func (s *fakeAttendanceStore) DeletePeriodEntries(_ context.Context, studentID int64, date time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*models.AttendanceEntry
	var removed int64
	for _, e := range s.entries {
		if e.StudentID == studentID && sameDay(e.EntryDate, date) && e.PeriodID != nil {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

func (s *fakeAttendanceStore) DeleteWholeDayEntriesExcept(_ context.Context, studentID int64, date time.Time, keepKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*models.AttendanceEntry
	var removed int64
	for _, e := range s.entries {
		if e.StudentID == studentID && sameDay(e.EntryDate, date) && e.PeriodID == nil && e.DisambKey != keepKey {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

func (s *fakeAttendanceStore) DeleteEntry(_ context.Context, studentID int64, date time.Time, periodID *int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.StudentID != studentID || !sameDay(e.EntryDate, date) {
			continue
		}
		match := false
		if periodID != nil {
			match = e.PeriodID != nil && *e.PeriodID == *periodID
		} else {
			match = e.PeriodID == nil && e.DisambKey == ""
		}
		if match {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeAttendanceStore) DeleteEntriesBySourceRef(_ context.Context, sourceRef string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*models.AttendanceEntry
	var removed int64
	for _, e := range s.entries {
		if e.SourceRef == sourceRef {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

func (s *fakeAttendanceStore) CountPeriodStatuses(_ context.Context, studentID int64, from, to time.Time) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[models.Status]int{}
	for _, e := range s.entries {
		if e.StudentID != studentID || e.PeriodID == nil {
			continue
		}
		d := e.EntryDate.UTC()
		if d.Before(from.UTC()) || d.After(to.UTC()) {
			continue
		}
		counts[e.Status]++
	}
	return counts, nil
}

func (s *fakeAttendanceStore) ListMarkedStudentIDs(_ context.Context, date time.Time) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[int64]bool{}
	var ids []int64
	for _, e := range s.entries {
		if sameDay(e.EntryDate, date) && !seen[e.StudentID] {
			seen[e.StudentID] = true
			ids = append(ids, e.StudentID)
		}
	}
	return ids, nil
}

// all returns a snapshot of every stored entry, for assertions.
func (s *fakeAttendanceStore) all() []*models.AttendanceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.AttendanceEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, copyEntry(e))
	}
	return out
}

type fakeStudentStore struct {
	students map[int64]*models.Student
}

func newFakeStudentStore(students ...*models.Student) *fakeStudentStore {
	m := map[int64]*models.Student{}
	for _, s := range students {
		m[s.ID] = s
	}
	return &fakeStudentStore{students: m}
}

func (s *fakeStudentStore) GetStudentByID(_ context.Context, id int64) (*models.Student, error) {
	if st, ok := s.students[id]; ok {
		c := *st
		return &c, nil
	}
	return nil, apperrors.ErrStudentNotFound
}

func (s *fakeStudentStore) ListActiveStudents(_ context.Context) ([]*models.Student, error) {
	var out []*models.Student
	for _, st := range s.students {
		if st.Active {
			c := *st
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeLeaveTypeStore struct {
	types map[int64]*models.LeaveType
}

func newFakeLeaveTypeStore(types ...*models.LeaveType) *fakeLeaveTypeStore {
	m := map[int64]*models.LeaveType{}
	for _, lt := range types {
		m[lt.ID] = lt
	}
	return &fakeLeaveTypeStore{types: m}
}

func (s *fakeLeaveTypeStore) GetLeaveTypeByID(_ context.Context, id int64) (*models.LeaveType, error) {
	if lt, ok := s.types[id]; ok {
		c := *lt
		return &c, nil
	}
	return nil, apperrors.ErrLeaveTypeNotFound
}

type fakePeriodStore struct {
	periods map[int64]*models.Period
}

func newFakePeriodStore(periods ...*models.Period) *fakePeriodStore {
	m := map[int64]*models.Period{}
	for _, p := range periods {
		m[p.ID] = p
	}
	return &fakePeriodStore{periods: m}
}

func (s *fakePeriodStore) GetPeriodByID(_ context.Context, id int64) (*models.Period, error) {
	if p, ok := s.periods[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, apperrors.ErrPeriodNotFound
}

func (s *fakePeriodStore) ListPeriods(_ context.Context, schoolID int64) ([]*models.Period, error) {
	var out []*models.Period
	for _, p := range s.periods {
		if p.SchoolID == schoolID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

type fakeLeaveRequestStore struct {
	mu       sync.Mutex
	nextID   int64
	requests map[int64]*models.LeaveRequest
}

func newFakeLeaveRequestStore() *fakeLeaveRequestStore {
	return &fakeLeaveRequestStore{requests: map[int64]*models.LeaveRequest{}}
}

func (s *fakeLeaveRequestStore) CreateLeaveRequest(_ context.Context, lr *models.LeaveRequest) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	c := *lr
	c.ID = s.nextID
	c.Status = models.LeavePending
	s.requests[c.ID] = &c
	return c.ID, nil
}

func (s *fakeLeaveRequestStore) GetLeaveRequestByID(_ context.Context, id int64) (*models.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lr, ok := s.requests[id]; ok {
		c := *lr
		return &c, nil
	}
	return nil, apperrors.ErrLeaveRequestNotFound
}

func (s *fakeLeaveRequestStore) UpdateLeaveRequestDecision(_ context.Context, lr *models.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[lr.ID]; !ok {
		return apperrors.ErrLeaveRequestNotFound
	}
	c := *lr
	s.requests[lr.ID] = &c
	return nil
}

func (s *fakeLeaveRequestStore) ListApprovedLeaveCovering(_ context.Context, date time.Time) ([]*models.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.LeaveRequest
	for _, lr := range s.requests {
		if lr.Status != models.LeaveApproved {
			continue
		}
		d := date.UTC()
		if d.Before(lr.DateFrom.UTC()) || d.After(lr.DateTo.UTC()) {
			continue
		}
		c := *lr
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Shared test fixtures.

func testStudent() *models.Student {
	return &models.Student{ID: 42, SchoolID: 1, ClassID: 7, Code: "20250042", Name: "Chen Wei", Active: true}
}

func testEngine(entries *fakeAttendanceStore, extraStudents ...*models.Student) AttendanceService {
	students := append([]*models.Student{testStudent()}, extraStudents...)
	svc, err := NewAttendanceService(
		entries,
		newFakeStudentStore(students...),
		newFakeLeaveTypeStore(
			&models.LeaveType{ID: 1, SchoolID: 1, Name: "sick", FullDayExclusive: true},
			&models.LeaveType{ID: 2, SchoolID: 1, Name: "personal", FullDayExclusive: true},
			&models.LeaveType{ID: 3, SchoolID: 1, Name: "school activity", FullDayExclusive: false},
		),
		EngineConfig{BaselineStatus: models.StatusPresent, BaselineNote: "auto-created baseline"},
	)
	if err != nil {
		panic(err)
	}
	return svc
}

func testPeriods() *fakePeriodStore {
	periods := make([]*models.Period, 0, 6)
	for i := int64(1); i <= 6; i++ {
		periods = append(periods, &models.Period{ID: i, SchoolID: 1, Name: "Period " + strconv.FormatInt(i, 10), Position: int(i)})
	}
	return newFakePeriodStore(periods...)
}

func mustDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func ptr(v int64) *int64 { return &v }
