package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/univ-erp-api/internal/models"
	"github.com/noah-isme/univ-erp-api/internal/repository"
)

var (
	adminActor      = models.Actor{AccountID: 1, Username: "admin", Role: models.RoleAdmin}
	instructorActor = models.Actor{AccountID: 10, Username: "inst1", Role: models.RoleInstructor}
	studentActor    = models.Actor{AccountID: 100, Username: "stu1", Role: models.RoleStudent}
)

var testNow = time.Date(2025, time.August, 20, 15, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func scorePtr(v float64) *float64 { return &v }

type fakeSettings struct {
	snapshot models.Settings
	err      error
}

func (f *fakeSettings) Snapshot(ctx context.Context) (models.Settings, error) {
	return f.snapshot, f.err
}

func openSettings() *fakeSettings {
	return &fakeSettings{snapshot: models.Settings{
		CurrentSemester:      "Fall",
		CurrentYear:          2025,
		RegistrationDeadline: datePtr(2025, time.August, 31),
		DropDeadline:         datePtr(2025, time.September, 15),
	}}
}

// fakeAcademic is an in-memory academic store. Each repository view shares its maps so
// the workflows see a consistent state.
type fakeAcademic struct {
	mu          sync.Mutex
	nextID      int64
	courses     map[int64]*models.Course
	sections    map[int64]*models.Section
	enrollments map[int64]*models.Enrollment
	grades      map[int64]map[string]*float64
	students    map[int64]*models.StudentProfile
	instructors map[int64]*models.InstructorProfile

	sectionErr          error
	deleteEnrollmentErr error
	deleteGradesErr     error
	upsertErr           error
	setFinalErr         map[int64]error
	createStudentErr    error
	upserts             int
}

func newFakeAcademic() *fakeAcademic {
	return &fakeAcademic{
		nextID:      1000,
		courses:     map[int64]*models.Course{},
		sections:    map[int64]*models.Section{},
		enrollments: map[int64]*models.Enrollment{},
		grades:      map[int64]map[string]*float64{},
		students:    map[int64]*models.StudentProfile{},
		instructors: map[int64]*models.InstructorProfile{},
		setFinalErr: map[int64]error{},
	}
}

func (f *fakeAcademic) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeAcademic) addCourse(id int64, code string, credits int) {
	f.courses[id] = &models.Course{ID: id, Code: code, Title: code + " title", Credits: credits}
}

func (f *fakeAcademic) addSection(id, courseID int64, instructorID *int64, capacity int, semester string, year int) {
	f.sections[id] = &models.Section{ID: id, CourseID: courseID, InstructorID: instructorID, Capacity: capacity, Semester: semester, Year: year, DayTime: "Mon 10:00", Room: "R1"}
}

func (f *fakeAcademic) addEnrollment(id, studentID, sectionID int64) {
	f.enrollments[id] = &models.Enrollment{ID: id, StudentID: studentID, SectionID: sectionID, Status: models.EnrollmentStatusEnrolled}
}

func (f *fakeAcademic) setScores(enrollmentID int64, scores map[string]*float64) {
	f.grades[enrollmentID] = scores
}

func (f *fakeAcademic) countLocked(sectionID int64) int {
	n := 0
	for _, e := range f.enrollments {
		if e.SectionID == sectionID {
			n++
		}
	}
	return n
}

type fakeSectionRepo struct{ *fakeAcademic }

func (r fakeSectionRepo) FindByID(ctx context.Context, id int64) (*models.Section, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sectionErr != nil {
		return nil, r.sectionErr
	}
	s, ok := r.sections[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *s
	return &clone, nil
}

func (r fakeSectionRepo) ListByCourse(ctx context.Context, courseID int64) ([]models.Section, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Section
	for _, s := range r.sections {
		if s.CourseID == courseID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeSectionRepo) Create(ctx context.Context, section *models.Section) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	section.ID = r.id()
	clone := *section
	r.sections[section.ID] = &clone
	return nil
}

func (r fakeSectionRepo) Update(ctx context.Context, section *models.Section) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sections[section.ID]; !ok {
		return sql.ErrNoRows
	}
	if section.Capacity < r.countLocked(section.ID) {
		return repository.ErrSectionFull
	}
	clone := *section
	r.sections[section.ID] = &clone
	return nil
}

func (r fakeSectionRepo) UpdateInstructor(ctx context.Context, sectionID int64, instructorID *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sections[sectionID]
	if !ok {
		return sql.ErrNoRows
	}
	s.InstructorID = instructorID
	return nil
}

func (r fakeSectionRepo) Delete(ctx context.Context, sectionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sections[sectionID]; !ok {
		return sql.ErrNoRows
	}
	if r.countLocked(sectionID) > 0 {
		return repository.ErrHasEnrollments
	}
	delete(r.sections, sectionID)
	return nil
}

func (r fakeSectionRepo) CountEnrollments(ctx context.Context, sectionID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countLocked(sectionID), nil
}

func (r fakeSectionRepo) catalogRow(s *models.Section) models.CatalogRow {
	c := r.courses[s.CourseID]
	row := models.CatalogRow{
		SectionID: s.ID, CourseID: s.CourseID, InstructorID: s.InstructorID,
		DayTime: s.DayTime, Room: s.Room, Capacity: s.Capacity, Enrolled: r.countLocked(s.ID),
		Semester: s.Semester, Year: s.Year,
	}
	if c != nil {
		row.CourseCode, row.CourseTitle, row.Credits = c.Code, c.Title, c.Credits
	}
	return row
}

func (r fakeSectionRepo) Catalog(ctx context.Context, semester string, year int) ([]models.CatalogRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.CatalogRow
	for _, s := range r.sections {
		if s.Semester == semester && s.Year == year {
			out = append(out, r.catalogRow(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SectionID < out[j].SectionID })
	return out, nil
}

func (r fakeSectionRepo) ListByInstructorAndTerm(ctx context.Context, instructorID int64, semester string, year int) ([]models.CatalogRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.CatalogRow
	for _, s := range r.sections {
		if s.TaughtBy(instructorID) && s.Semester == semester && s.Year == year {
			out = append(out, r.catalogRow(s))
		}
	}
	return out, nil
}

type fakeEnrollmentRepo struct{ *fakeAcademic }

func (r fakeEnrollmentRepo) FindByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *e
	return &clone, nil
}

func (r fakeEnrollmentRepo) existsLocked(studentID, sectionID int64) bool {
	for _, e := range r.enrollments {
		if e.StudentID == studentID && e.SectionID == sectionID {
			return true
		}
	}
	return false
}

func (r fakeEnrollmentRepo) inCourseTermLocked(studentID, courseID int64, semester string, year int) bool {
	for _, e := range r.enrollments {
		s := r.sections[e.SectionID]
		if e.StudentID == studentID && s != nil && s.CourseID == courseID && s.Semester == semester && s.Year == year {
			return true
		}
	}
	return false
}

func (r fakeEnrollmentRepo) Exists(ctx context.Context, studentID, sectionID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.existsLocked(studentID, sectionID), nil
}

func (r fakeEnrollmentRepo) ExistsInCourseTerm(ctx context.Context, studentID, courseID int64, semester string, year int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inCourseTermLocked(studentID, courseID, semester, year), nil
}

func (r fakeEnrollmentRepo) CreateIfAvailable(ctx context.Context, studentID, sectionID int64) (*models.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sections[sectionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if r.existsLocked(studentID, sectionID) {
		return nil, repository.ErrDuplicate
	}
	if r.inCourseTermLocked(studentID, s.CourseID, s.Semester, s.Year) {
		return nil, repository.ErrCourseTermConflict
	}
	if r.countLocked(sectionID) >= s.Capacity {
		return nil, repository.ErrSectionFull
	}
	e := &models.Enrollment{ID: r.id(), StudentID: studentID, SectionID: sectionID, Status: models.EnrollmentStatusEnrolled, CreatedAt: testNow}
	r.enrollments[e.ID] = e
	clone := *e
	return &clone, nil
}

func (r fakeEnrollmentRepo) ListBySection(ctx context.Context, sectionID int64) ([]models.RosterRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RosterRow
	for _, e := range r.enrollments {
		if e.SectionID == sectionID {
			row := models.RosterRow{EnrollmentID: e.ID, StudentID: e.StudentID, FinalGrade: e.FinalGrade}
			if p := r.students[e.StudentID]; p != nil {
				row.RollNo = p.RollNo
			}
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrollmentID < out[j].EnrollmentID })
	return out, nil
}

func (r fakeEnrollmentRepo) ListByStudent(ctx context.Context, studentID int64) ([]models.RegistrationRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RegistrationRow
	for _, e := range r.enrollments {
		if e.StudentID != studentID {
			continue
		}
		s := r.sections[e.SectionID]
		c := r.courses[s.CourseID]
		out = append(out, models.RegistrationRow{
			EnrollmentID: e.ID, SectionID: s.ID, CourseCode: c.Code, CourseTitle: c.Title, Credits: c.Credits,
			DayTime: s.DayTime, Room: s.Room, Semester: s.Semester, Year: s.Year, FinalGrade: e.FinalGrade,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrollmentID < out[j].EnrollmentID })
	return out, nil
}

func (r fakeEnrollmentRepo) DeleteByID(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteEnrollmentErr != nil {
		return r.deleteEnrollmentErr
	}
	if _, ok := r.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.enrollments, id)
	return nil
}

func (r fakeEnrollmentRepo) SetFinalGrade(ctx context.Context, id int64, letter string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.setFinalErr[id]; err != nil {
		return err
	}
	e, ok := r.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.FinalGrade = &letter
	return nil
}

type fakeGradeRepo struct{ *fakeAcademic }

func (r fakeGradeRepo) ListBySection(ctx context.Context, sectionID int64) ([]models.Grade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Grade
	for enrollmentID, scores := range r.grades {
		e := r.enrollments[enrollmentID]
		if e == nil || e.SectionID != sectionID {
			continue
		}
		for component, score := range scores {
			out = append(out, models.Grade{EnrollmentID: enrollmentID, Component: component, Score: score})
		}
	}
	return out, nil
}

func (r fakeGradeRepo) ListByStudent(ctx context.Context, studentID int64) ([]models.StudentGrade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.StudentGrade
	for enrollmentID, scores := range r.grades {
		e := r.enrollments[enrollmentID]
		if e == nil || e.StudentID != studentID {
			continue
		}
		for component, score := range scores {
			out = append(out, models.StudentGrade{EnrollmentID: enrollmentID, Component: component, Score: score})
		}
	}
	return out, nil
}

func (r fakeGradeRepo) UpsertScore(ctx context.Context, enrollmentID int64, component string, score *float64) (*models.Grade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return nil, r.upsertErr
	}
	if r.grades[enrollmentID] == nil {
		r.grades[enrollmentID] = map[string]*float64{}
	}
	r.grades[enrollmentID][component] = score
	r.upserts++
	return &models.Grade{EnrollmentID: enrollmentID, Component: component, Score: score}, nil
}

func (r fakeGradeRepo) DeleteByEnrollment(ctx context.Context, enrollmentID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteGradesErr != nil {
		return 0, r.deleteGradesErr
	}
	n := int64(len(r.grades[enrollmentID]))
	delete(r.grades, enrollmentID)
	return n, nil
}

type fakeCourseRepo struct{ *fakeAcademic }

func (r fakeCourseRepo) List(ctx context.Context) ([]models.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Course
	for _, c := range r.courses {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r fakeCourseRepo) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *c
	return &clone, nil
}

func (r fakeCourseRepo) Create(ctx context.Context, course *models.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.courses {
		if strings.EqualFold(c.Code, course.Code) {
			return repository.ErrDuplicate
		}
	}
	course.ID = r.id()
	clone := *course
	r.courses[course.ID] = &clone
	return nil
}

func (r fakeCourseRepo) Update(ctx context.Context, course *models.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.courses[course.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *course
	r.courses[course.ID] = &clone
	return nil
}

type fakeProfileRepo struct{ *fakeAcademic }

func (r fakeProfileRepo) CreateStudent(ctx context.Context, profile *models.StudentProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createStudentErr != nil {
		return r.createStudentErr
	}
	for _, p := range r.students {
		if p.RollNo == profile.RollNo {
			return repository.ErrDuplicate
		}
	}
	clone := *profile
	r.students[profile.UserID] = &clone
	return nil
}

func (r fakeProfileRepo) CreateInstructor(ctx context.Context, profile *models.InstructorProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *profile
	r.instructors[profile.UserID] = &clone
	return nil
}

func (r fakeProfileRepo) FindStudentByUserID(ctx context.Context, userID int64) (*models.StudentProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.students[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *p
	return &clone, nil
}

func (r fakeProfileRepo) FindInstructorByUserID(ctx context.Context, userID int64) (*models.InstructorProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.instructors[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *p
	return &clone, nil
}

func (r fakeProfileRepo) ListInstructors(ctx context.Context) ([]models.InstructorProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.InstructorProfile
	for _, p := range r.instructors {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// fakeCredentials is an in-memory credential store.
type fakeCredentials struct {
	mu        sync.Mutex
	nextID    int64
	accounts  map[int64]*models.Account
	createErr error
	deleteErr error
	deletes   []int64
	lastLogin map[int64]time.Time
}

func newFakeCredentials() *fakeCredentials {
	return &fakeCredentials{nextID: 500, accounts: map[int64]*models.Account{}, lastLogin: map[int64]time.Time{}}
}

func (f *fakeCredentials) add(id int64, username, hash string, role models.UserRole) {
	f.accounts[id] = &models.Account{ID: id, Username: username, PasswordHash: hash, Role: role}
}

func (f *fakeCredentials) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Username == username {
			clone := *a
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCredentials) FindByID(ctx context.Context, id int64) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *a
	return &clone, nil
}

func (f *fakeCredentials) Create(ctx context.Context, username, passwordHash string, role models.UserRole) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	for _, a := range f.accounts {
		if a.Username == username {
			return 0, repository.ErrDuplicate
		}
	}
	f.nextID++
	f.accounts[f.nextID] = &models.Account{ID: f.nextID, Username: username, PasswordHash: passwordHash, Role: role}
	return f.nextID, nil
}

func (f *fakeCredentials) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.PasswordHash = passwordHash
	return nil
}

func (f *fakeCredentials) DeleteByID(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.accounts[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.accounts, id)
	return nil
}

func (f *fakeCredentials) UpdateLastLogin(ctx context.Context, id int64, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLogin[id] = ts
	return nil
}

// plainHasher stores passwords with a visible prefix so tests can assert on hashes.
type plainHasher struct{ err error }

func (h plainHasher) Hash(plain string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + plain, nil
}

func (h plainHasher) Verify(hash, plain string) (bool, error) {
	return hash == "hashed:"+plain, nil
}

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []int64
	err       error
}

func (s *recordingScheduler) ScheduleEnrollmentDelete(enrollmentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.scheduled = append(s.scheduled, enrollmentID)
	return nil
}

var errStoreDown = errors.New("store unavailable")
