package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartpresence/attendance-service/internal/config"
	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_Create(t *testing.T) {
	ctx := context.Background()
	code := "SV2025001"

	tests := []struct {
		name    string
		req     models.UserCreateRequest
		wantErr error
		invalid bool
	}{
		{
			name: "student",
			req:  models.UserCreateRequest{Username: "Dave", FullName: "Dave Nguyen", Email: "Dave@Campus.test", Role: models.RoleStudent, StudentCode: &code, Password: "initial-pass"},
		},
		{
			name:    "username taken",
			req:     models.UserCreateRequest{Username: "alice", FullName: "Alice Two", Email: "alice2@campus.test", Role: models.RoleStudent, Password: "initial-pass"},
			wantErr: ErrUsernameTaken,
		},
		{
			name:    "email taken",
			req:     models.UserCreateRequest{Username: "alice2", FullName: "Alice Two", Email: "alice@campus.test", Role: models.RoleStudent, Password: "initial-pass"},
			wantErr: ErrEmailTaken,
		},
		{
			name:    "unknown role",
			req:     models.UserCreateRequest{Username: "eve", FullName: "Eve", Email: "eve@campus.test", Role: "janitor", Password: "initial-pass"},
			invalid: true,
		},
		{
			name:    "short password",
			req:     models.UserCreateRequest{Username: "eve", FullName: "Eve", Email: "eve@campus.test", Role: models.RoleStudent, Password: "123"},
			invalid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCampusFixture(t)
			svc := NewUserService(f.repo, newTestLogger(), newTestValidator())
			req := tt.req

			user, err := svc.Create(ctx, &req)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.invalid:
				var verrs ValidationErrors
				assert.True(t, errors.As(err, &verrs))
			default:
				require.NoError(t, err)
				assert.Equal(t, "dave", user.Username)
				assert.Equal(t, "dave@campus.test", user.Email)
				assert.True(t, user.MustChangePassword)
				assert.True(t, user.IsActive)
				assert.True(t, checkPassword(f.repo.users[user.ID].PasswordHash, "initial-pass"))
			}
		})
	}
}

func TestUserService_UpdateDeactivateReset(t *testing.T) {
	ctx := context.Background()
	f := newCampusFixture(t)
	svc := NewUserService(f.repo, newTestLogger(), newTestValidator())

	name := "Alice Tran"
	taken := "bob@campus.test"
	_, err := svc.Update(ctx, studentID, &models.UserUpdateRequest{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailTaken)

	updated, err := svc.Update(ctx, studentID, &models.UserUpdateRequest{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice Tran", updated.FullName)

	assert.ErrorIs(t, svc.Deactivate(ctx, adminActor, adminID), ErrCannotDeactivateSelf)
	require.NoError(t, svc.Deactivate(ctx, adminActor, studentID))
	assert.False(t, f.repo.users[studentID].IsActive)

	require.NoError(t, svc.ResetPassword(ctx, student2ID, &models.ResetPasswordRequest{NewPassword: "reset-pass-1"}))
	assert.True(t, f.repo.users[student2ID].MustChangePassword)
	assert.True(t, checkPassword(f.repo.users[student2ID].PasswordHash, "reset-pass-1"))

	assert.ErrorIs(t, svc.ResetPassword(ctx, "missing", &models.ResetPasswordRequest{NewPassword: "reset-pass-1"}), ErrUserNotFound)
}

func TestUserService_List(t *testing.T) {
	ctx := context.Background()
	f := newCampusFixture(t)
	svc := NewUserService(f.repo, newTestLogger(), newTestValidator())

	page, err := svc.List(ctx, &models.ListUsersParams{Size: 1, Role: models.RoleStudent})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 1, page.NumberOfElements)
	assert.True(t, page.First)
	assert.False(t, page.Last)
}

func TestLocationService(t *testing.T) {
	ctx := context.Background()
	f := newCampusFixture(t)
	svc := NewLocationService(f.repo, newTestLogger(), newTestValidator())

	lab, err := svc.Create(ctx, &models.LocationCreateRequest{Name: "Lab 2", Latitude: 10.78, Longitude: 106.70, RadiusMeters: 30})
	require.NoError(t, err)
	assert.NotZero(t, lab.ID)

	_, err = svc.Create(ctx, &models.LocationCreateRequest{Name: "Lab 2", Latitude: 10.78, Longitude: 106.70, RadiusMeters: 30})
	assert.ErrorIs(t, err, ErrLocationNameTaken)

	_, err = svc.Create(ctx, &models.LocationCreateRequest{Name: "Tiny", Latitude: 10.78, Longitude: 106.70, RadiusMeters: 1})
	var verrs ValidationErrors
	assert.True(t, errors.As(err, &verrs), "radius below 5 m is rejected")

	radius := 80.0
	updated, err := svc.Update(ctx, lab.ID, &models.LocationUpdateRequest{RadiusMeters: &radius})
	require.NoError(t, err)
	assert.Equal(t, 80.0, updated.RadiusMeters)

	assert.ErrorIs(t, svc.Delete(ctx, f.room.ID), ErrLocationInUse)
	require.NoError(t, svc.Delete(ctx, lab.ID))
	assert.ErrorIs(t, svc.Delete(ctx, lab.ID), ErrLocationNotFound)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func newSubjectService(f *campusFixture, now time.Time) SubjectService {
	return NewSubjectService(f.repo, newTestLogger(), newTestValidator(),
		config.CheckInConfig{DefaultOpenMinutes: 10, DefaultLateMinutes: 5}, time.UTC, fixedClock(now))
}

func TestSubjectService_Create(t *testing.T) {
	ctx := context.Background()
	tid := teacherID
	sid := studentID
	late := 20

	tests := []struct {
		name    string
		req     func(f *campusFixture) models.SubjectCreateRequest
		wantErr error
		invalid bool
	}{
		{
			name: "defaults from config",
			req: func(f *campusFixture) models.SubjectCreateRequest {
				return models.SubjectCreateRequest{Code: " ph110 ", Name: "Physics", TeacherID: &tid, LocationID: f.room.ID, DayOfWeek: 2, StartTime: "07:30", EndTime: "09:00", LateAfterMinutes: &late}
			},
		},
		{
			name: "duplicate code",
			req: func(f *campusFixture) models.SubjectCreateRequest {
				return models.SubjectCreateRequest{Code: "cs101", Name: "Again", LocationID: f.room.ID, DayOfWeek: 1, StartTime: "07:30", EndTime: "09:00"}
			},
			wantErr: ErrSubjectCodeTaken,
		},
		{
			name: "teacher must be a teacher",
			req: func(f *campusFixture) models.SubjectCreateRequest {
				return models.SubjectCreateRequest{Code: "PH111", Name: "Physics", TeacherID: &sid, LocationID: f.room.ID, DayOfWeek: 2, StartTime: "07:30", EndTime: "09:00"}
			},
			wantErr: ErrInvalidTeacher,
		},
		{
			name: "unknown location",
			req: func(f *campusFixture) models.SubjectCreateRequest {
				return models.SubjectCreateRequest{Code: "PH112", Name: "Physics", LocationID: 999, DayOfWeek: 2, StartTime: "07:30", EndTime: "09:00"}
			},
			wantErr: ErrLocationNotFound,
		},
		{
			name: "ends before it starts",
			req: func(f *campusFixture) models.SubjectCreateRequest {
				return models.SubjectCreateRequest{Code: "PH113", Name: "Physics", LocationID: f.room.ID, DayOfWeek: 2, StartTime: "09:00", EndTime: "07:30"}
			},
			invalid: true,
		},
		{
			name: "weekday out of range",
			req: func(f *campusFixture) models.SubjectCreateRequest {
				return models.SubjectCreateRequest{Code: "PH114", Name: "Physics", LocationID: f.room.ID, DayOfWeek: 7, StartTime: "07:30", EndTime: "09:00"}
			},
			invalid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCampusFixture(t)
			svc := newSubjectService(f, f.at(8, 0))
			req := tt.req(f)

			subject, err := svc.Create(ctx, &req)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.invalid:
				var verrs ValidationErrors
				assert.True(t, errors.As(err, &verrs), "got %v", err)
			default:
				require.NoError(t, err)
				assert.Equal(t, "PH110", subject.Code)
				assert.Equal(t, 10, subject.CheckInOpenMinutes)
				assert.Equal(t, 20, subject.LateAfterMinutes)
				assert.True(t, subject.IsActive)
				assert.Equal(t, "Room 101", subject.Location.Name)
			}
		})
	}
}

func TestSubjectService_Update(t *testing.T) {
	ctx := context.Background()
	f := newCampusFixture(t)
	svc := newSubjectService(f, f.at(8, 0))

	end := "08:00"
	_, err := svc.Update(ctx, f.subject.ID, &models.SubjectUpdateRequest{EndTime: &end})
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs), "end before the existing start")

	inactive := false
	start := "13:00"
	end = "15:00"
	updated, err := svc.Update(ctx, f.subject.ID, &models.SubjectUpdateRequest{StartTime: &start, EndTime: &end, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "13:00", updated.StartTime)
	assert.False(t, updated.IsActive)

	_, err = svc.Update(ctx, 999, &models.SubjectUpdateRequest{IsActive: &inactive})
	assert.ErrorIs(t, err, ErrSubjectNotFound)
}

func TestSubjectService_Enrollment(t *testing.T) {
	ctx := context.Background()
	f := newCampusFixture(t)
	svc := newSubjectService(f, f.at(8, 0))
	f.repo.addUser(t, "00000000-0000-4000-8000-000000000006", "carol", models.RoleStudent, "student-password")
	carol := "00000000-0000-4000-8000-000000000006"

	added, err := svc.Enroll(ctx, f.subject.ID, &models.EnrollRequest{StudentIDs: []string{carol, carol, studentID}})
	require.NoError(t, err)
	assert.Equal(t, 1, added, "duplicates and existing enrollments are skipped")

	_, err = svc.Enroll(ctx, f.subject.ID, &models.EnrollRequest{StudentIDs: []string{teacherID}})
	var rule *BusinessRuleError
	require.True(t, errors.As(err, &rule))
	assert.Equal(t, []string{teacherID}, rule.Context["invalid_ids"])

	students, err := svc.ListStudents(ctx, f.subject.ID)
	require.NoError(t, err)
	assert.Len(t, students, 3)

	require.NoError(t, svc.Unenroll(ctx, f.subject.ID, carol))
	assert.ErrorIs(t, svc.Unenroll(ctx, f.subject.ID, carol), ErrNotEnrolled)

	mine, err := svc.ListForStudent(ctx, studentID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "CS101", mine[0].Code)
}

func TestSubjectService_TodaySessions(t *testing.T) {
	ctx := context.Background()
	f := newCampusFixture(t)
	early := f.repo.addSubject("EN100", nil, f.room, time.Monday, "07:00", "08:30")
	tuesday := f.repo.addSubject("EN200", nil, f.room, time.Tuesday, "07:00", "08:30")
	f.repo.enroll(early.ID, studentID)
	f.repo.enroll(tuesday.ID, studentID)

	checkIn := f.at(7, 3)
	f.repo.addRecord(studentID, early.ID, "2025-03-03", models.StatusPresent, &checkIn)

	svc := newSubjectService(f, f.at(8, 50))
	sessions, err := svc.TodaySessions(ctx, studentID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, "EN100", sessions[0].Subject.Code)
	assert.True(t, sessions[0].CheckedIn)
	assert.False(t, sessions[0].CheckInOpen)

	assert.Equal(t, "CS101", sessions[1].Subject.Code)
	assert.False(t, sessions[1].CheckedIn)
	assert.True(t, sessions[1].CheckInOpen)
	assert.Nil(t, sessions[1].Status)
}
