package service

import (
	"aerovision_backend/internal/testutil"
	"aerovision_backend/internal/util"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSummary(t *testing.T) {
	course := testutil.SampleCourse(true)

	s := ComputeSummary(course, []string{"l1", "l2", "l3"}, false)
	assert.Equal(t, 4, s.TotalLessons)
	assert.Equal(t, 3, s.CompletedLessons)
	assert.Equal(t, 75, s.Percent)
	assert.False(t, s.Completed)

	// 重复与不属于课程的 ID 不计入
	s = ComputeSummary(course, []string{"l1", "l1", "ghost"}, false)
	assert.Equal(t, 1, s.CompletedLessons)
	assert.Equal(t, 25, s.Percent)

	s = ComputeSummary(course, []string{"l1", "l2", "l3", "l4"}, false)
	assert.True(t, s.Completed)
	assert.True(t, s.JustCompleted)

	s = ComputeSummary(course, []string{"l1", "l2", "l3", "l4"}, true)
	assert.True(t, s.Completed)
	assert.False(t, s.JustCompleted)

	empty := testutil.SampleCourse(true)
	empty.Modules = nil
	s = ComputeSummary(empty, nil, false)
	assert.Equal(t, 0, s.Percent)
	assert.False(t, s.Completed)
}

func TestEnrollIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.saveCourse(t, true)
	student := f.student1(t)

	enrolled, err := f.enrollment.IsEnrolled(ctx, student.Email, course.ID)
	require.NoError(t, err)
	assert.False(t, enrolled)

	first, err := f.enrollment.Enroll(ctx, student.Email, course.ID)
	require.NoError(t, err)
	assert.False(t, first.AlreadyEnrolled)
	assert.Contains(t, first.Enrollment.PaymentRef, "SIM-")

	second, err := f.enrollment.Enroll(ctx, student.Email, course.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyEnrolled)
	assert.Equal(t, first.Enrollment.ID, second.Enrollment.ID)

	count, err := f.enrolls.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	enrolled, err = f.enrollment.IsEnrolled(ctx, student.Email, course.ID)
	require.NoError(t, err)
	assert.True(t, enrolled)
}

func TestEnrollRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.saveCourse(t, false)
	student := f.student1(t)

	_, err := f.enrollment.Enroll(ctx, student.Email, draft.ID)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	_, err = f.enrollment.Enroll(ctx, student.Email, "missing")
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	_, err = f.enrollment.Enroll(ctx, "ghost@example.com", draft.ID)
	assert.ErrorIs(t, err, util.ErrUserNotFound)

	// 管理员视为已报名所有课程
	enrolled, err := f.enrollment.IsEnrolled(ctx, testutil.AdminEmail, draft.ID)
	require.NoError(t, err)
	assert.True(t, enrolled)
}

func TestSaveProgressLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.saveCourse(t, true)
	student := f.student1(t)

	_, err := f.learning.Save(ctx, student.Email, ProgressInput{CourseID: course.ID})
	assert.ErrorIs(t, err, util.ErrNotEnrolled)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	_, err = f.enrollment.Enroll(ctx, student.Email, course.ID)
	require.NoError(t, err)

	got, err := f.learning.Get(ctx, student.Email, course.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	res, err := f.learning.Save(ctx, student.Email, ProgressInput{
		CourseID:           course.ID,
		CurrentModuleIndex: 1,
		CurrentLessonIndex: 0,
		CompletedLessons:   []string{"l1", "l2", "l3", "l3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 75, res.Summary.Percent)
	assert.False(t, res.Summary.JustCompleted)
	assert.Equal(t, []string{"l1", "l2", "l3"}, []string(res.Progress.CompletedLessons))

	res, err = f.learning.Save(ctx, student.Email, ProgressInput{
		CourseID:           course.ID,
		CurrentModuleIndex: 1,
		CurrentLessonIndex: 1,
		CompletedLessons:   []string{"l1", "l2", "l3", "l4"},
	})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Summary.Percent)
	assert.True(t, res.Summary.JustCompleted)

	// 已完成后再次保存不会重复触发
	res, err = f.learning.Save(ctx, student.Email, ProgressInput{
		CourseID:           course.ID,
		CurrentModuleIndex: 0,
		CurrentLessonIndex: 0,
		CompletedLessons:   []string{"l1", "l2", "l3", "l4"},
	})
	require.NoError(t, err)
	assert.True(t, res.Summary.Completed)
	assert.False(t, res.Summary.JustCompleted)

	got, err = f.learning.Get(ctx, student.Email, course.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0, got.Progress.CurrentModule)
	assert.Len(t, got.Progress.CompletedLessons, 4)

	records, err := f.progress.FindByUser(ctx, student.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSaveProgressRejectsInvalidCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.saveCourse(t, true)

	_, err := f.learning.Save(ctx, testutil.AdminEmail, ProgressInput{
		CourseID:           course.ID,
		CurrentModuleIndex: 0,
		CurrentLessonIndex: 5,
	})
	assert.ErrorIs(t, err, util.ErrInvalidProgress)

	_, err = f.learning.Save(ctx, testutil.AdminEmail, ProgressInput{
		CourseID:           course.ID,
		CurrentModuleIndex: 2,
	})
	assert.ErrorIs(t, err, util.ErrInvalidProgress)

	_, err = f.learning.Save(ctx, testutil.AdminEmail, ProgressInput{CourseID: "missing"})
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestAnswerQuiz(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.saveCourse(t, true)
	student := f.student1(t)
	_, err := f.enrollment.Enroll(ctx, student.Email, course.ID)
	require.NoError(t, err)

	wrong, err := f.learning.AnswerQuiz(ctx, student.Email, course.ID, "l4", "opt-a")
	require.NoError(t, err)
	assert.False(t, wrong.Correct)
	assert.Nil(t, wrong.Progress)

	got, err := f.learning.Get(ctx, student.Email, course.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	right, err := f.learning.AnswerQuiz(ctx, student.Email, course.ID, "l4", "opt-b")
	require.NoError(t, err)
	assert.True(t, right.Correct)
	assert.Equal(t, 1, right.Progress.CurrentModule)
	assert.Equal(t, 1, right.Progress.CurrentLesson)
	assert.Equal(t, 25, right.Summary.Percent)

	// 再答一次不会重复计数
	right, err = f.learning.AnswerQuiz(ctx, student.Email, course.ID, "l4", "opt-b")
	require.NoError(t, err)
	assert.Equal(t, 1, right.Summary.CompletedLessons)

	_, err = f.learning.AnswerQuiz(ctx, student.Email, course.ID, "l1", "opt-b")
	assert.ErrorIs(t, err, util.ErrValidation)
	_, err = f.learning.AnswerQuiz(ctx, student.Email, course.ID, "l4", "nope")
	assert.ErrorIs(t, err, util.ErrOptionNotFound)
	_, err = f.learning.AnswerQuiz(ctx, student.Email, course.ID, "l9", "opt-b")
	assert.ErrorIs(t, err, util.ErrLessonNotFound)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.saveCourse(t, true)
	second := f.saveCourse(t, true)
	student := f.student1(t)

	for _, c := range []string{first.ID, second.ID} {
		_, err := f.enrollment.Enroll(ctx, student.Email, c)
		require.NoError(t, err)
	}
	_, err := f.learning.Save(ctx, student.Email, ProgressInput{CourseID: first.ID, CompletedLessons: []string{"l1", "l2"}})
	require.NoError(t, err)

	entries, err := f.learning.Dashboard(ctx, student.Email)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byID := map[string]DashboardEntry{}
	for _, e := range entries {
		byID[e.Course.ID] = e
	}
	assert.Equal(t, 50, byID[first.ID].Summary.Percent)
	assert.Nil(t, byID[second.ID].Progress)
	assert.Equal(t, 0, byID[second.ID].Summary.Percent)
	// 首页只返回目录
	assert.Empty(t, byID[first.ID].Course.FindLesson("l1").Content)
}

func TestStudentOverviewAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.saveCourse(t, true)
	f.saveCourse(t, false)
	student := f.student1(t)
	testutil.CreateStudent(t, f.db, "Bruno", "bruno@example.com", "22222222B")

	_, err := f.enrollment.Enroll(ctx, student.Email, course.ID)
	require.NoError(t, err)
	_, err = f.learning.Save(ctx, student.Email, ProgressInput{CourseID: course.ID, CompletedLessons: []string{"l1", "l2", "l3"}})
	require.NoError(t, err)
	_, err = f.mailbox.Send(ctx, student.Email, testutil.AdminEmail, "Hola")
	require.NoError(t, err)

	list, err := f.student.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Ana Pérez", list[0].User.Name)
	require.Len(t, list[0].Courses, 1)
	assert.Equal(t, 75, list[0].Courses[0].Summary.Percent)
	assert.Empty(t, list[1].Courses)

	one, err := f.student.Get(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, student.ID, one.User.ID)

	_, err = f.student.Get(ctx, testutil.AdminEmail)
	assert.ErrorIs(t, err, util.ErrUserNotFound)

	stats, err := f.student.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Students)
	assert.Equal(t, int64(2), stats.Courses)
	assert.Equal(t, int64(1), stats.PublishedCourses)
	assert.Equal(t, int64(1), stats.Enrollments)
	assert.Equal(t, int64(1), stats.Messages)
	assert.Equal(t, int64(1), stats.UnreadMessages)
}
