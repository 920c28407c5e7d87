package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/repositories"
	"github.com/smartpresence/attendance-service/internal/validator"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	passwordCost = bcrypt.MinCost
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// fakeRepo is an in-memory Repository. Returned entities are copies so services
// cannot mutate stored state without calling Update.
type fakeRepo struct {
	mu sync.Mutex

	users       map[string]*models.User
	locations   map[uint]*models.Location
	subjects    map[uint]*models.Subject
	enrollments map[uint]map[string]bool
	faces       []*models.FaceDescriptor
	records     map[uint]*models.AttendanceRecord

	nextID     uint
	pingErr    error
	txCount    int
	rowLocks   map[string]*sync.Mutex
	enrolledAt map[string]time.Time // unset means enrolled long ago
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:       make(map[string]*models.User),
		locations:   make(map[uint]*models.Location),
		subjects:    make(map[uint]*models.Subject),
		enrollments: make(map[uint]map[string]bool),
		records:     make(map[uint]*models.AttendanceRecord),
	}
}

func (r *fakeRepo) id() uint {
	r.nextID++
	return r.nextID
}

func (r *fakeRepo) User() repositories.UserRepository             { return fakeUsers{r: r} }
func (r *fakeRepo) Location() repositories.LocationRepository     { return fakeLocations{r} }
func (r *fakeRepo) Subject() repositories.SubjectRepository       { return fakeSubjects{r} }
func (r *fakeRepo) Face() repositories.FaceRepository             { return fakeFaces{r} }
func (r *fakeRepo) Attendance() repositories.AttendanceRepository { return fakeAttendance{r} }
func (r *fakeRepo) Dashboard() repositories.DashboardRepository   { return fakeDashboard{r} }

func (r *fakeRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	r.mu.Lock()
	r.txCount++
	r.mu.Unlock()

	tx := &fakeTx{fakeRepo: r}
	defer tx.release()
	return fn(tx)
}

// fakeTx holds the row locks taken through LockByID until its transaction ends
type fakeTx struct {
	*fakeRepo
	held []*sync.Mutex
}

func (tx *fakeTx) User() repositories.UserRepository { return fakeUsers{r: tx.fakeRepo, tx: tx} }

func (tx *fakeTx) lock(id string) {
	tx.mu.Lock()
	if tx.rowLocks == nil {
		tx.rowLocks = make(map[string]*sync.Mutex)
	}
	m, ok := tx.rowLocks[id]
	if !ok {
		m = &sync.Mutex{}
		tx.rowLocks[id] = m
	}
	tx.mu.Unlock()

	m.Lock()
	tx.held = append(tx.held, m)
}

func (tx *fakeTx) release() {
	for _, m := range tx.held {
		m.Unlock()
	}
}

func (r *fakeRepo) Ping(ctx context.Context) error { return r.pingErr }
func (r *fakeRepo) Close() error                   { return nil }

// ===== seeding helpers =====

func (r *fakeRepo) addUser(t *testing.T, id, username string, role models.UserRole, password string) *models.User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &models.User{
		ID:           id,
		Username:     username,
		FullName:     strings.ToUpper(username[:1]) + username[1:],
		Email:        username + "@campus.test",
		Role:         role,
		PasswordHash: hash,
		IsActive:     true,
	}
	r.users[id] = u
	return u
}

func (r *fakeRepo) addLocation(name string, lat, lng, radius float64) *models.Location {
	l := &models.Location{ID: r.id(), Name: name, Latitude: lat, Longitude: lng, RadiusMeters: radius}
	r.locations[l.ID] = l
	return l
}

func (r *fakeRepo) addSubject(code string, teacherID *string, location *models.Location, day time.Weekday, start, end string) *models.Subject {
	s := &models.Subject{
		ID:                 r.id(),
		Code:               code,
		Name:               code + " lecture",
		TeacherID:          teacherID,
		LocationID:         location.ID,
		DayOfWeek:          int(day),
		StartTime:          start,
		EndTime:            end,
		CheckInOpenMinutes: 15,
		LateAfterMinutes:   15,
		IsActive:           true,
	}
	r.subjects[s.ID] = s
	return s
}

func (r *fakeRepo) enroll(subjectID uint, studentIDs ...string) {
	if r.enrollments[subjectID] == nil {
		r.enrollments[subjectID] = make(map[string]bool)
	}
	for _, id := range studentIDs {
		r.enrollments[subjectID][id] = true
	}
}

func (r *fakeRepo) enrollAt(subjectID uint, at time.Time, studentIDs ...string) {
	r.enroll(subjectID, studentIDs...)
	if r.enrolledAt == nil {
		r.enrolledAt = make(map[string]time.Time)
	}
	for _, id := range studentIDs {
		r.enrolledAt[enrollmentKey(subjectID, id)] = at
	}
}

func enrollmentKey(subjectID uint, studentID string) string {
	return fmt.Sprintf("%d:%s", subjectID, studentID)
}

func (r *fakeRepo) addRecord(studentID string, subjectID uint, date string, status models.AttendanceStatus, at *time.Time) *models.AttendanceRecord {
	rec := &models.AttendanceRecord{
		ID:          r.id(),
		StudentID:   studentID,
		SubjectID:   subjectID,
		SessionDate: date,
		Status:      status,
		Method:      models.MethodUnified,
		CheckInAt:   at,
		CreatedAt:   time.Now(),
	}
	r.records[rec.ID] = rec
	return rec
}

func (r *fakeRepo) recordFor(studentID string, subjectID uint, date string) *models.AttendanceRecord {
	for _, rec := range r.records {
		if rec.StudentID == studentID && rec.SubjectID == subjectID && rec.SessionDate == date {
			return rec
		}
	}
	return nil
}

func (r *fakeRepo) subjectCopy(s *models.Subject) *models.Subject {
	cp := *s
	if l, ok := r.locations[s.LocationID]; ok {
		cp.Location = *l
	}
	if s.TeacherID != nil {
		if u, ok := r.users[*s.TeacherID]; ok {
			teacher := *u
			cp.Teacher = &teacher
		}
	}
	cp.StudentCount = len(r.enrollments[s.ID])
	return &cp
}

func (r *fakeRepo) recordCopy(rec *models.AttendanceRecord) *models.AttendanceRecord {
	cp := *rec
	if u, ok := r.users[rec.StudentID]; ok {
		cp.Student = *u
	}
	if s, ok := r.subjects[rec.SubjectID]; ok {
		cp.Subject = *s
	}
	return &cp
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// ===== users =====

type fakeUsers struct {
	r  *fakeRepo
	tx *fakeTx
}

func (f fakeUsers) Create(ctx context.Context, user *models.User) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, u := range f.r.users {
		if u.Username == user.Username || u.Email == user.Email ||
			(u.StudentCode != nil && user.StudentCode != nil && *u.StudentCode == *user.StudentCode) {
			return repositories.ErrDuplicate
		}
	}
	cp := *user
	f.r.users[user.ID] = &cp
	return nil
}

func (f fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	u, ok := f.r.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f fakeUsers) LockByID(ctx context.Context, id string) (*models.User, error) {
	if f.tx != nil {
		f.tx.lock(id)
	}
	return f.GetByID(ctx, id)
}

func (f fakeUsers) find(match func(*models.User) bool) (*models.User, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, u := range f.r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f fakeUsers) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	login = strings.ToLower(login)
	return f.find(func(u *models.User) bool { return u.Username == login || u.Email == login })
}

func (f fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (f fakeUsers) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ExternalID != nil && *u.ExternalID == externalID })
}

func (f fakeUsers) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.User
	for _, id := range ids {
		if u, ok := f.r.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f fakeUsers) Update(ctx context.Context, user *models.User) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.users[user.ID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *user
	f.r.users[user.ID] = &cp
	return nil
}

func (f fakeUsers) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	u, ok := f.r.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "password_hash":
			u.PasswordHash = v.(string)
		case "must_change_password":
			u.MustChangePassword = v.(bool)
		case "is_active":
			u.IsActive = v.(bool)
		case "face_enrolled":
			u.FaceEnrolled = v.(bool)
		case "external_id":
			ext := v.(string)
			u.ExternalID = &ext
		case "last_login_at":
			at := v.(time.Time)
			u.LastLoginAt = &at
		}
	}
	return nil
}

func (f fakeUsers) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var all []*models.User
	for _, u := range f.r.users {
		if filters.Role != nil && u.Role != *filters.Role {
			continue
		}
		if filters.IsActive != nil && u.IsActive != *filters.IsActive {
			continue
		}
		if q := strings.ToLower(filters.Query); q != "" &&
			!strings.Contains(u.Username, q) && !strings.Contains(strings.ToLower(u.FullName), q) {
			continue
		}
		cp := *u
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })
	return paginate(all, filters.Limit, filters.Offset), int64(len(all)), nil
}

func (f fakeUsers) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := f.find(func(u *models.User) bool { return u.Username == username })
	return err == nil, nil
}

func (f fakeUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := f.find(func(u *models.User) bool { return u.Email == email })
	return err == nil, nil
}

func (f fakeUsers) CountByRole(ctx context.Context, role models.UserRole) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var n int64
	for _, u := range f.r.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (f fakeUsers) CountFaceEnrolled(ctx context.Context, role models.UserRole) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var n int64
	for _, u := range f.r.users {
		if u.Role == role && u.FaceEnrolled {
			n++
		}
	}
	return n, nil
}

// ===== locations =====

type fakeLocations struct{ r *fakeRepo }

func (f fakeLocations) Create(ctx context.Context, location *models.Location) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, l := range f.r.locations {
		if l.Name == location.Name {
			return repositories.ErrDuplicate
		}
	}
	location.ID = f.r.id()
	cp := *location
	f.r.locations[location.ID] = &cp
	return nil
}

func (f fakeLocations) GetByID(ctx context.Context, id uint) (*models.Location, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	l, ok := f.r.locations[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (f fakeLocations) Update(ctx context.Context, location *models.Location) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, l := range f.r.locations {
		if l.ID != location.ID && l.Name == location.Name {
			return repositories.ErrDuplicate
		}
	}
	cp := *location
	f.r.locations[location.ID] = &cp
	return nil
}

func (f fakeLocations) Delete(ctx context.Context, id uint) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.locations[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.r.locations, id)
	return nil
}

func (f fakeLocations) List(ctx context.Context) ([]*models.Location, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	out := make([]*models.Location, 0, len(f.r.locations))
	for _, l := range f.r.locations {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f fakeLocations) Count(ctx context.Context) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	return int64(len(f.r.locations)), nil
}

func (f fakeLocations) CountSubjects(ctx context.Context, locationID uint) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var n int64
	for _, s := range f.r.subjects {
		if s.LocationID == locationID {
			n++
		}
	}
	return n, nil
}

// ===== subjects =====

type fakeSubjects struct{ r *fakeRepo }

func (f fakeSubjects) Create(ctx context.Context, subject *models.Subject) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, s := range f.r.subjects {
		if s.Code == subject.Code {
			return repositories.ErrDuplicate
		}
	}
	subject.ID = f.r.id()
	cp := *subject
	f.r.subjects[subject.ID] = &cp
	return nil
}

func (f fakeSubjects) GetByID(ctx context.Context, id uint) (*models.Subject, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	s, ok := f.r.subjects[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return f.r.subjectCopy(s), nil
}

func (f fakeSubjects) GetByCode(ctx context.Context, code string) (*models.Subject, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, s := range f.r.subjects {
		if s.Code == code {
			return f.r.subjectCopy(s), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f fakeSubjects) Update(ctx context.Context, subject *models.Subject) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.subjects[subject.ID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *subject
	cp.Location = models.Location{}
	cp.Teacher = nil
	f.r.subjects[subject.ID] = &cp
	return nil
}

func (f fakeSubjects) Delete(ctx context.Context, id uint) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.subjects[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.r.subjects, id)
	return nil
}

func (f fakeSubjects) List(ctx context.Context, filters repositories.SubjectFilters) ([]*models.Subject, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var all []*models.Subject
	for _, s := range f.r.subjects {
		if filters.TeacherID != nil && (s.TeacherID == nil || *s.TeacherID != *filters.TeacherID) {
			continue
		}
		if filters.DayOfWeek != nil && s.DayOfWeek != *filters.DayOfWeek {
			continue
		}
		if filters.IsActive != nil && s.IsActive != *filters.IsActive {
			continue
		}
		if filters.Query != "" && !strings.Contains(strings.ToLower(s.Code+" "+s.Name), strings.ToLower(filters.Query)) {
			continue
		}
		all = append(all, f.r.subjectCopy(s))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	return paginate(all, filters.Limit, filters.Offset), int64(len(all)), nil
}

func (f fakeSubjects) ListByDay(ctx context.Context, dayOfWeek int) ([]*models.Subject, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Subject
	for _, s := range f.r.subjects {
		if s.DayOfWeek == dayOfWeek && s.IsActive {
			out = append(out, f.r.subjectCopy(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeSubjects) Count(ctx context.Context) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	return int64(len(f.r.subjects)), nil
}

func (f fakeSubjects) Enroll(ctx context.Context, subjectID uint, studentIDs []string) (int, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if f.r.enrollments[subjectID] == nil {
		f.r.enrollments[subjectID] = make(map[string]bool)
	}
	added := 0
	for _, id := range studentIDs {
		if !f.r.enrollments[subjectID][id] {
			f.r.enrollments[subjectID][id] = true
			added++
		}
	}
	return added, nil
}

func (f fakeSubjects) Unenroll(ctx context.Context, subjectID uint, studentID string) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if !f.r.enrollments[subjectID][studentID] {
		return repositories.ErrNotFound
	}
	delete(f.r.enrollments[subjectID], studentID)
	return nil
}

func (f fakeSubjects) IsEnrolled(ctx context.Context, subjectID uint, studentID string) (bool, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	return f.r.enrollments[subjectID][studentID], nil
}

func (f fakeSubjects) ListStudents(ctx context.Context, subjectID uint) ([]*models.User, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.User
	for id := range f.r.enrollments[subjectID] {
		if u, ok := f.r.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeSubjects) ListStudentIDs(ctx context.Context, subjectID uint, enrolledBefore time.Time) ([]string, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []string
	for id := range f.r.enrollments[subjectID] {
		if at, ok := f.r.enrolledAt[enrollmentKey(subjectID, id)]; ok && !at.Before(enrolledBefore) {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (f fakeSubjects) ListByStudent(ctx context.Context, studentID string) ([]*models.Subject, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Subject
	for subjectID, students := range f.r.enrollments {
		if s, ok := f.r.subjects[subjectID]; ok && students[studentID] {
			out = append(out, f.r.subjectCopy(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeSubjects) CountStudents(ctx context.Context, subjectID uint) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	return int64(len(f.r.enrollments[subjectID])), nil
}

// ===== faces =====

type fakeFaces struct{ r *fakeRepo }

func (f fakeFaces) Create(ctx context.Context, descriptor *models.FaceDescriptor) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	descriptor.ID = f.r.id()
	cp := *descriptor
	f.r.faces = append(f.r.faces, &cp)
	return nil
}

func (f fakeFaces) ListByUser(ctx context.Context, userID string) ([]*models.FaceDescriptor, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.FaceDescriptor
	for _, d := range f.r.faces {
		if d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f fakeFaces) ListAll(ctx context.Context) ([]*models.FaceDescriptor, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	out := make([]*models.FaceDescriptor, 0, len(f.r.faces))
	for _, d := range f.r.faces {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (f fakeFaces) CountByUser(ctx context.Context, userID string) (int64, error) {
	list, _ := f.ListByUser(ctx, userID)
	return int64(len(list)), nil
}

func (f fakeFaces) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	kept := f.r.faces[:0]
	var removed int64
	for _, d := range f.r.faces {
		if d.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	f.r.faces = kept
	return removed, nil
}

// ===== attendance =====

type fakeAttendance struct{ r *fakeRepo }

func (f fakeAttendance) create(record *models.AttendanceRecord) error {
	if f.r.recordFor(record.StudentID, record.SubjectID, record.SessionDate) != nil {
		return repositories.ErrDuplicate
	}
	record.ID = f.r.id()
	record.CreatedAt = time.Now()
	cp := *record
	cp.Student = models.User{}
	cp.Subject = models.Subject{}
	f.r.records[record.ID] = &cp
	return nil
}

func (f fakeAttendance) Create(ctx context.Context, record *models.AttendanceRecord) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	return f.create(record)
}

func (f fakeAttendance) CreateBatch(ctx context.Context, records []*models.AttendanceRecord) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, rec := range records {
		if err := f.create(rec); err != nil {
			return err
		}
	}
	return nil
}

func (f fakeAttendance) GetByID(ctx context.Context, id uint) (*models.AttendanceRecord, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	rec, ok := f.r.records[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return f.r.recordCopy(rec), nil
}

func (f fakeAttendance) GetBySession(ctx context.Context, studentID string, subjectID uint, sessionDate string) (*models.AttendanceRecord, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	rec := f.r.recordFor(studentID, subjectID, sessionDate)
	if rec == nil {
		return nil, repositories.ErrNotFound
	}
	return f.r.recordCopy(rec), nil
}

func (f fakeAttendance) Update(ctx context.Context, record *models.AttendanceRecord) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.records[record.ID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *record
	cp.Student = models.User{}
	cp.Subject = models.Subject{}
	f.r.records[record.ID] = &cp
	return nil
}

func (f fakeAttendance) Delete(ctx context.Context, id uint) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.records[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.r.records, id)
	return nil
}

func (f fakeAttendance) List(ctx context.Context, filters repositories.AttendanceFilters) ([]*models.AttendanceRecord, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var all []*models.AttendanceRecord
	for _, rec := range f.r.records {
		if filters.StudentID != nil && rec.StudentID != *filters.StudentID {
			continue
		}
		if filters.SubjectID != nil && rec.SubjectID != *filters.SubjectID {
			continue
		}
		if filters.TeacherID != nil {
			s, ok := f.r.subjects[rec.SubjectID]
			if !ok || s.TeacherID == nil || *s.TeacherID != *filters.TeacherID {
				continue
			}
		}
		if filters.Status != nil && rec.Status != *filters.Status {
			continue
		}
		if filters.DateFrom != "" && rec.SessionDate < filters.DateFrom {
			continue
		}
		if filters.DateTo != "" && rec.SessionDate > filters.DateTo {
			continue
		}
		all = append(all, f.r.recordCopy(rec))
	}

	desc := filters.SortOrder == "desc"
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.SessionDate != b.SessionDate {
			return (a.SessionDate < b.SessionDate) != desc
		}
		return (a.ID < b.ID) != desc
	})
	return paginate(all, filters.Limit, filters.Offset), int64(len(all)), nil
}

func (f fakeAttendance) ListStudentIDsWithRecord(ctx context.Context, subjectID uint, sessionDate string) ([]string, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []string
	for _, rec := range f.r.records {
		if rec.SubjectID == subjectID && rec.SessionDate == sessionDate {
			out = append(out, rec.StudentID)
		}
	}
	return out, nil
}

// ===== dashboard =====

type fakeDashboard struct{ r *fakeRepo }

func (f fakeDashboard) CountByStatus(ctx context.Context, from, to string, subjectID *uint, studentID *string) (models.StatusCounts, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var counts models.StatusCounts
	for _, rec := range f.r.records {
		if (from != "" && rec.SessionDate < from) || (to != "" && rec.SessionDate > to) {
			continue
		}
		if subjectID != nil && rec.SubjectID != *subjectID {
			continue
		}
		if studentID != nil && rec.StudentID != *studentID {
			continue
		}
		countStatus(&counts, rec.Status)
	}
	return counts, nil
}

func (f fakeDashboard) DailyCounts(ctx context.Context, from, to string) ([]models.DailyStats, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	byDay := make(map[string]*models.StatusCounts)
	for _, rec := range f.r.records {
		if rec.SessionDate < from || rec.SessionDate > to {
			continue
		}
		if byDay[rec.SessionDate] == nil {
			byDay[rec.SessionDate] = &models.StatusCounts{}
		}
		countStatus(byDay[rec.SessionDate], rec.Status)
	}
	out := make([]models.DailyStats, 0, len(byDay))
	for day, counts := range byDay {
		out = append(out, models.DailyStats{Date: day, Counts: *counts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (f fakeDashboard) SubjectStats(ctx context.Context, from, to string, limit int) ([]models.SubjectAttendanceStats, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []models.SubjectAttendanceStats
	for _, s := range f.r.subjects {
		stat := models.SubjectAttendanceStats{
			SubjectID:   s.ID,
			SubjectCode: s.Code,
			SubjectName: s.Name,
			Enrolled:    int64(len(f.r.enrollments[s.ID])),
		}
		for _, rec := range f.r.records {
			if rec.SubjectID == s.ID && rec.SessionDate >= from && rec.SessionDate <= to {
				countStatus(&stat.Counts, rec.Status)
			}
		}
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Counts.Rate() < out[j].Counts.Rate() })
	return paginate(out, limit, 0), nil
}

func (f fakeDashboard) RecentCheckIns(ctx context.Context, limit int) ([]models.RecentCheckIn, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []models.RecentCheckIn
	for _, rec := range f.r.records {
		if rec.CheckInAt == nil {
			continue
		}
		out = append(out, models.RecentCheckIn{
			RecordID:    rec.ID,
			StudentID:   rec.StudentID,
			StudentName: f.r.users[rec.StudentID].FullName,
			SubjectID:   rec.SubjectID,
			SubjectCode: f.r.subjects[rec.SubjectID].Code,
			Status:      rec.Status,
			CheckInAt:   *rec.CheckInAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckInAt.After(out[j].CheckInAt) })
	return paginate(out, limit, 0), nil
}

// ===== fixtures =====

const (
	adminID    = "00000000-0000-4000-8000-000000000001"
	teacherID  = "00000000-0000-4000-8000-000000000002"
	studentID  = "00000000-0000-4000-8000-000000000003"
	student2ID = "00000000-0000-4000-8000-000000000004"
	otherTchID = "00000000-0000-4000-8000-000000000005"
)

// campusFixture seeds one room, one Monday 09:00-10:30 subject taught by teacherID
// with studentID and student2ID enrolled.
type campusFixture struct {
	repo    *fakeRepo
	room    *models.Location
	subject *models.Subject
	monday  time.Time // 2025-03-03, a Monday, at 00:00 UTC
}

func newCampusFixture(t *testing.T) *campusFixture {
	t.Helper()
	repo := newFakeRepo()
	repo.addUser(t, adminID, "admin", models.RoleAdmin, "admin-password")
	repo.addUser(t, teacherID, "teacher", models.RoleTeacher, "teacher-password")
	repo.addUser(t, otherTchID, "otherteacher", models.RoleTeacher, "teacher-password")
	repo.addUser(t, studentID, "alice", models.RoleStudent, "student-password")
	repo.addUser(t, student2ID, "bob", models.RoleStudent, "student-password")

	room := repo.addLocation("Room 101", 10.7769, 106.7009, 50)
	tid := teacherID
	subject := repo.addSubject("CS101", &tid, room, time.Monday, "09:00", "10:30")
	repo.enroll(subject.ID, studentID, student2ID)

	return &campusFixture{
		repo:    repo,
		room:    room,
		subject: subject,
		monday:  time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
	}
}

// at returns the fixture Monday at hh:mm
func (f *campusFixture) at(hh, mm int) time.Time {
	return f.monday.Add(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute)
}

func testDescriptor(seed float64) []float64 {
	d := make([]float64, models.DescriptorLength)
	for i := range d {
		d[i] = seed
	}
	return d
}

// shifted returns d with every value moved by delta; the Euclidean distance is |delta|*sqrt(128)
func shifted(d []float64, delta float64) []float64 {
	out := make([]float64, len(d))
	for i, v := range d {
		out[i] = v + delta
	}
	return out
}

func newTestValidator() *validator.Validator {
	return validator.New()
}
