package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartpresence/attendance-service/internal/events"
	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type attendanceHarness struct {
	*campusFixture
	svc       AttendanceService
	publisher *events.MockEventPublisher
	other     *models.Subject
}

// newAttendanceHarness adds a second subject taught by another teacher and a few records
func newAttendanceHarness(t *testing.T) *attendanceHarness {
	t.Helper()
	f := newCampusFixture(t)
	otid := otherTchID
	other := f.repo.addSubject("MA201", &otid, f.room, time.Tuesday, "13:00", "14:30")
	f.repo.enroll(other.ID, studentID)

	checkIn := f.at(9, 2)
	f.repo.addRecord(studentID, f.subject.ID, "2025-02-24", models.StatusPresent, &checkIn)
	f.repo.addRecord(student2ID, f.subject.ID, "2025-02-24", models.StatusAbsent, nil)
	f.repo.addRecord(studentID, f.subject.ID, "2025-03-03", models.StatusLate, &checkIn)
	f.repo.addRecord(studentID, other.ID, "2025-02-25", models.StatusPresent, &checkIn)

	logger := newTestLogger()
	publisher := events.NewMockEventPublisher(logger)
	svc := NewAttendanceService(f.repo, logger, newTestValidator(), nil, publisher, time.UTC, fixedClock(f.at(12, 0)))

	return &attendanceHarness{campusFixture: f, svc: svc, publisher: publisher, other: other}
}

var (
	adminActor   = Actor{ID: adminID, Role: models.RoleAdmin}
	teacherActor = Actor{ID: teacherID, Role: models.RoleTeacher}
	studentActor = Actor{ID: studentID, Role: models.RoleStudent}
)

func TestAttendanceService_List_Scoping(t *testing.T) {
	ctx := context.Background()
	h := newAttendanceHarness(t)

	tests := []struct {
		name      string
		actor     Actor
		params    models.ListAttendanceParams
		wantTotal int64
		wantErr   bool
	}{
		{name: "admin sees every record", actor: adminActor, params: models.ListAttendanceParams{Size: 20}, wantTotal: 4},
		{name: "teacher sees own subjects", actor: teacherActor, params: models.ListAttendanceParams{Size: 20}, wantTotal: 3},
		{name: "teacher filter by status", actor: teacherActor, params: models.ListAttendanceParams{Size: 20, Status: models.StatusAbsent}, wantTotal: 1},
		{name: "date range", actor: adminActor, params: models.ListAttendanceParams{Size: 20, DateFrom: "2025-02-25", DateTo: "2025-03-03"}, wantTotal: 2},
		{name: "other teacher cannot see first subject", actor: Actor{ID: otherTchID, Role: models.RoleTeacher}, params: models.ListAttendanceParams{Size: 20, SubjectID: &h.subject.ID}, wantTotal: 0},
		{name: "students are refused", actor: studentActor, params: models.ListAttendanceParams{Size: 20}, wantErr: true},
		{name: "reversed date range", actor: adminActor, params: models.ListAttendanceParams{Size: 20, DateFrom: "2025-03-03", DateTo: "2025-02-01"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := tt.params
			page, err := h.svc.List(ctx, tt.actor, &params)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, page.TotalElements)
		})
	}
}

func TestAttendanceService_GetByID_Permissions(t *testing.T) {
	ctx := context.Background()
	h := newAttendanceHarness(t)
	rec := h.repo.recordFor(studentID, h.other.ID, "2025-02-25")

	_, err := h.svc.GetByID(ctx, teacherActor, rec.ID)
	var perm *PermissionError
	require.True(t, errors.As(err, &perm))
	assert.Equal(t, "read", perm.Action)

	got, err := h.svc.GetByID(ctx, adminActor, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "MA201", got.Subject.Code)

	_, err = h.svc.GetByID(ctx, adminActor, 9999)
	assert.ErrorIs(t, err, ErrAttendanceNotFound)
}

func TestAttendanceService_Create(t *testing.T) {
	ctx := context.Background()
	note := "medical certificate"

	tests := []struct {
		name    string
		actor   Actor
		req     models.AttendanceCreateRequest
		wantErr error
		check   func(t *testing.T, err error)
	}{
		{
			name:  "teacher records excused absence",
			actor: teacherActor,
			req:   models.AttendanceCreateRequest{StudentID: student2ID, SubjectID: 0, SessionDate: "2025-03-03", Status: models.StatusExcused, Note: &note},
		},
		{
			name:    "duplicate session",
			actor:   teacherActor,
			req:     models.AttendanceCreateRequest{StudentID: studentID, SubjectID: 0, SessionDate: "2025-03-03", Status: models.StatusPresent},
			wantErr: ErrAttendanceExists,
		},
		{
			name:  "future session",
			actor: teacherActor,
			req:   models.AttendanceCreateRequest{StudentID: student2ID, SubjectID: 0, SessionDate: "2025-03-10", Status: models.StatusPresent},
			check: func(t *testing.T, err error) {
				var verrs ValidationErrors
				require.True(t, errors.As(err, &verrs))
				assert.Equal(t, "session_date", verrs[0].Field)
			},
		},
		{
			name:  "other teacher's subject",
			actor: Actor{ID: otherTchID, Role: models.RoleTeacher},
			req:   models.AttendanceCreateRequest{StudentID: student2ID, SubjectID: 0, SessionDate: "2025-03-03", Status: models.StatusPresent},
			check: func(t *testing.T, err error) {
				var perm *PermissionError
				assert.True(t, errors.As(err, &perm))
			},
		},
		{
			name:    "student not enrolled",
			actor:   adminActor,
			req:     models.AttendanceCreateRequest{StudentID: adminID, SubjectID: 0, SessionDate: "2025-03-03", Status: models.StatusPresent},
			wantErr: ErrNotEnrolled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAttendanceHarness(t)
			req := tt.req
			req.SubjectID = h.subject.ID

			record, err := h.svc.Create(ctx, tt.actor, &req)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.check != nil:
				require.Error(t, err)
				tt.check(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, models.MethodManual, record.Method)
				require.NotNil(t, record.EditedBy)
				assert.Equal(t, tt.actor.ID, *record.EditedBy)
				assert.Nil(t, record.CheckInAt, "excused records carry no check-in time")
				assert.Len(t, h.publisher.EventsOfType(events.EventAttendanceCreated), 1)
			}
		})
	}
}

func TestAttendanceService_Create_CheckInTime(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		date   string
		status models.AttendanceStatus
		want   *time.Time
	}{
		{name: "past session uses its start", date: "2025-02-17", status: models.StatusPresent, want: ptrTime(time.Date(2025, 2, 17, 9, 0, 0, 0, time.UTC))},
		{name: "late keeps the session start", date: "2025-02-10", status: models.StatusLate, want: ptrTime(time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC))},
		{name: "unscheduled weekday", date: "2025-02-18", status: models.StatusPresent},
		{name: "absence", date: "2025-02-17", status: models.StatusAbsent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAttendanceHarness(t)
			record, err := h.svc.Create(ctx, teacherActor, &models.AttendanceCreateRequest{
				StudentID:   student2ID,
				SubjectID:   h.subject.ID,
				SessionDate: tt.date,
				Status:      tt.status,
			})
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, record.CheckInAt)
				return
			}
			require.NotNil(t, record.CheckInAt)
			assert.True(t, tt.want.Equal(*record.CheckInAt), "got %s", record.CheckInAt)
		})
	}
}

func TestAttendanceService_Update_AbsentToPresent(t *testing.T) {
	ctx := context.Background()
	h := newAttendanceHarness(t)
	rec := h.repo.recordFor(student2ID, h.subject.ID, "2025-02-24")
	require.Nil(t, rec.CheckInAt)

	present := models.StatusPresent
	updated, err := h.svc.Update(ctx, teacherActor, rec.ID, &models.AttendanceUpdateRequest{Status: &present})
	require.NoError(t, err)
	require.NotNil(t, updated.CheckInAt)
	assert.True(t, time.Date(2025, 2, 24, 9, 0, 0, 0, time.UTC).Equal(*updated.CheckInAt))
}

func TestAttendanceService_Update(t *testing.T) {
	ctx := context.Background()
	h := newAttendanceHarness(t)
	rec := h.repo.recordFor(student2ID, h.subject.ID, "2025-02-24")

	excused := models.StatusExcused
	note := "sports tournament"
	updated, err := h.svc.Update(ctx, teacherActor, rec.ID, &models.AttendanceUpdateRequest{Status: &excused, Note: &note})
	require.NoError(t, err)
	assert.Equal(t, models.StatusExcused, updated.Status)
	assert.Equal(t, teacherID, *updated.EditedBy)
	assert.Equal(t, models.StatusExcused, h.repo.records[rec.ID].Status)

	published := h.publisher.EventsOfType(events.EventAttendanceUpdated)
	require.Len(t, published, 1)
	data := published[0].Data.(events.AttendanceChangedData)
	assert.Equal(t, models.StatusAbsent, data.OldStatus)
	assert.Equal(t, models.StatusExcused, data.NewStatus)

	bogus := models.AttendanceStatus("asleep")
	_, err = h.svc.Update(ctx, teacherActor, rec.ID, &models.AttendanceUpdateRequest{Status: &bogus})
	var verrs ValidationErrors
	assert.True(t, errors.As(err, &verrs))
}

func TestAttendanceService_Delete(t *testing.T) {
	ctx := context.Background()
	h := newAttendanceHarness(t)
	rec := h.repo.recordFor(studentID, h.subject.ID, "2025-02-24")

	err := h.svc.Delete(ctx, teacherActor, rec.ID)
	var perm *PermissionError
	require.True(t, errors.As(err, &perm))

	require.NoError(t, h.svc.Delete(ctx, adminActor, rec.ID))
	assert.NotContains(t, h.repo.records, rec.ID)
	assert.Len(t, h.publisher.EventsOfType(events.EventAttendanceDeleted), 1)

	assert.ErrorIs(t, h.svc.Delete(ctx, adminActor, rec.ID), ErrAttendanceNotFound)
}

func TestAttendanceService_History(t *testing.T) {
	ctx := context.Background()
	h := newAttendanceHarness(t)

	// A student_id filter for somebody else is overridden
	other := student2ID
	page, err := h.svc.History(ctx, studentID, &models.ListAttendanceParams{Size: 20, StudentID: &other})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.TotalElements)

	records := page.Content.([]*models.AttendanceRecord)
	require.Len(t, records, 3)
	assert.Equal(t, "2025-03-03", records[0].SessionDate, "newest first")
	for _, r := range records {
		assert.Equal(t, studentID, r.StudentID)
	}
}

func TestAttendanceService_Summary(t *testing.T) {
	ctx := context.Background()
	h := newAttendanceHarness(t)

	summary, err := h.svc.Summary(ctx, studentID, "", "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.Counts.Present)
	assert.EqualValues(t, 1, summary.Counts.Late)
	assert.InDelta(t, 100.0, summary.Rate, 0.001)

	summary, err = h.svc.Summary(ctx, student2ID, "2025-02-01", "2025-03-31")
	require.NoError(t, err)
	assert.EqualValues(t, 1, summary.Counts.Absent)
	assert.Zero(t, summary.Rate)
}

func TestAttendanceService_Export(t *testing.T) {
	ctx := context.Background()
	h := newAttendanceHarness(t)

	data, err := h.svc.Export(ctx, teacherActor, &models.ListAttendanceParams{Size: 20})
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{exportSheet, summarySheet}, wb.GetSheetList())

	rows, err := wb.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4, "header plus the teacher's three records")
	assert.Equal(t, "Session date", rows[0][0])
	assert.Equal(t, "2025-02-24", rows[1][0])
	assert.Equal(t, "CS101", rows[1][1])
	assert.Equal(t, "2025-03-03", rows[3][0])
	assert.Equal(t, "late", rows[3][6])

	total, err := wb.GetCellValue(summarySheet, "B6")
	require.NoError(t, err)
	assert.Equal(t, "3", total)

	_, err = h.svc.Export(ctx, studentActor, &models.ListAttendanceParams{Size: 20})
	var perm *PermissionError
	assert.True(t, errors.As(err, &perm))
}

func ptrTime(t time.Time) *time.Time { return &t }
