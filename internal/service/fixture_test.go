package service

import (
	"aerovision_backend/internal/model"
	"aerovision_backend/internal/repository"
	"aerovision_backend/internal/testutil"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type publishedEvent struct {
	Recipients []string
	Event      MailboxEvent
}

// recordingNotifier 记录所有推送，供断言使用
type recordingNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (n *recordingNotifier) Publish(ctx context.Context, recipients []string, event MailboxEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, publishedEvent{Recipients: recipients, Event: event})
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Event.Type)
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	users    *repository.UserRepository
	courses  *repository.CourseRepository
	enrolls  *repository.EnrollmentRepository
	progress *repository.ProgressRepository
	messages *repository.MessageRepository

	sessions   *SessionService
	auth       *AuthService
	course     *CourseService
	enrollment *EnrollmentService
	learning   *ProgressService
	mailbox    *MailboxService
	student    *StudentService
	notifier   *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	cfg := testutil.Config()

	f := &fixture{
		db:       db,
		users:    repository.NewUserRepository(db),
		courses:  repository.NewCourseRepository(db),
		enrolls:  repository.NewEnrollmentRepository(db),
		progress: repository.NewProgressRepository(db),
		messages: repository.NewMessageRepository(db),
		notifier: &recordingNotifier{},
	}
	f.sessions = NewSessionService(nil, cfg)
	f.auth = NewAuthService(f.users, f.sessions)
	f.course = NewCourseService(f.courses, f.enrolls)
	f.enrollment = NewEnrollmentService(f.enrolls, f.courses, f.users)
	f.learning = NewProgressService(f.progress, f.courses, f.enrollment)
	f.mailbox = NewMailboxService(f.messages, f.users, f.notifier, testutil.AdminEmail)
	f.student = NewStudentService(f.users, f.courses, f.enrolls, f.progress, f.messages, testutil.AdminEmail)
	return f
}

func (f *fixture) saveCourse(t *testing.T, published bool) *model.Course {
	t.Helper()
	course, err := f.course.Save(context.Background(), testutil.SampleCourse(published))
	require.NoError(t, err)
	return course
}

func (f *fixture) student1(t *testing.T) *model.User {
	t.Helper()
	return testutil.CreateStudent(t, f.db, "Ana Pérez", "ana@example.com", "12345678A")
}

func (f *fixture) adminSession(t *testing.T) *model.Session {
	t.Helper()
	admin, err := f.users.FindByEmail(context.Background(), testutil.AdminEmail)
	require.NoError(t, err)
	return &model.Session{UserID: admin.ID, Email: admin.Email, Name: admin.Name, Role: admin.Role}
}

func sessionOf(u *model.User) *model.Session {
	return &model.Session{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}
