package service

import (
	"aerovision_backend/internal/model"
	"aerovision_backend/internal/testutil"
	"aerovision_backend/internal/util"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseListVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	published := f.saveCourse(t, true)
	draft := f.saveCourse(t, false)

	anon, err := f.course.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, anon, 1)
	assert.Equal(t, published.ID, anon[0].ID)
	// 目录视图不含课时正文
	assert.Nil(t, anon[0].Modules[1].Lessons[1].Quiz)

	all, err := f.course.List(ctx, f.adminSession(t))
	require.NoError(t, err)
	require.Len(t, all, 2)
	ids := []string{all[0].ID, all[1].ID}
	assert.ElementsMatch(t, []string{published.ID, draft.ID}, ids)
}

func TestCourseGetByViewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.saveCourse(t, true)
	draft := f.saveCourse(t, false)
	student := f.student1(t)

	_, err := f.course.Get(ctx, draft.ID, sessionOf(student))
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	view, err := f.course.Get(ctx, draft.ID, f.adminSession(t))
	require.NoError(t, err)
	assert.True(t, view.Enrolled)

	view, err = f.course.Get(ctx, course.ID, sessionOf(student))
	require.NoError(t, err)
	assert.False(t, view.Enrolled)
	assert.Empty(t, view.Course.Modules[0].Lessons[0].Content)

	_, err = f.enrollment.Enroll(ctx, student.Email, course.ID)
	require.NoError(t, err)

	view, err = f.course.Get(ctx, course.ID, sessionOf(student))
	require.NoError(t, err)
	assert.True(t, view.Enrolled)
	quiz := view.Course.FindLesson("l4").Quiz
	require.NotNil(t, quiz)
	for _, o := range quiz.Options {
		assert.False(t, o.IsCorrect)
	}

	_, err = f.course.Get(ctx, "missing", nil)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestCourseSaveMigratesLegacyContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.saveCourse(t, true)

	loaded, err := f.courses.FindByID(ctx, course.ID)
	require.NoError(t, err)
	l1 := loaded.FindLesson("l1")
	require.Len(t, l1.Blocks, 1)
	assert.Equal(t, "Los drones nacieron...", l1.Blocks[0].Content)

	l2 := loaded.FindLesson("l2")
	assert.Equal(t, "Primer párrafo\n\nSegundo párrafo", l2.Content)
}

func TestCourseSaveValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := testutil.SampleCourse(true)
	bad.Title = ""
	_, err := f.course.Save(ctx, bad)
	assert.ErrorIs(t, err, util.ErrInvalidCourse)

	bad = testutil.SampleCourse(true)
	bad.FindLesson("l4").Quiz.Options[0].IsCorrect = true
	_, err = f.course.Save(ctx, bad)
	assert.ErrorIs(t, err, util.ErrInvalidCourse)
}

func TestCourseUpsertKeepsCreatedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.saveCourse(t, false)

	edit := testutil.SampleCourse(true)
	edit.ID = course.ID
	edit.Title = "Renombrado"
	_, err := f.course.Save(ctx, edit)
	require.NoError(t, err)

	loaded, err := f.courses.FindByID(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renombrado", loaded.Title)
	assert.True(t, loaded.Published)
	assert.WithinDuration(t, course.CreatedAt, loaded.CreatedAt, time.Millisecond)

	count, err := f.courses.Count(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCourseDeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.saveCourse(t, true)
	student := f.student1(t)

	_, err := f.enrollment.Enroll(ctx, student.Email, course.ID)
	require.NoError(t, err)
	_, err = f.learning.Save(ctx, student.Email, ProgressInput{CourseID: course.ID, CompletedLessons: []string{"l1"}})
	require.NoError(t, err)

	require.NoError(t, f.course.Delete(ctx, course.ID))

	enrolled, err := f.enrolls.Exists(ctx, student.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, enrolled)
	records, err := f.progress.FindByUser(ctx, student.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	assert.ErrorIs(t, f.course.Delete(ctx, course.ID), util.ErrCourseNotFound)
}

func TestCourseEditorOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.saveCourse(t, false)

	lesson, err := f.course.AddBlock(ctx, course.ID, "l2", model.BlockVideo, "https://cdn.example.com/v.mp4")
	require.NoError(t, err)
	require.Len(t, lesson.Blocks, 4)
	added := lesson.Blocks[3].ID

	lesson, err = f.course.MoveBlock(ctx, course.ID, "l2", added, model.MoveUp)
	require.NoError(t, err)
	assert.Equal(t, added, lesson.Blocks[2].ID)

	lesson, err = f.course.UpdateBlock(ctx, course.ID, "l2", "b1", "Párrafo editado")
	require.NoError(t, err)
	assert.Equal(t, "Párrafo editado\n\nSegundo párrafo", lesson.Content)

	lesson, err = f.course.RemoveBlock(ctx, course.ID, "l2", "b2")
	require.NoError(t, err)
	assert.Len(t, lesson.Blocks, 3)

	_, err = f.course.RemoveBlock(ctx, course.ID, "l2", "b2")
	assert.ErrorIs(t, err, util.ErrBlockNotFound)

	lesson, err = f.course.SetCorrectOption(ctx, course.ID, "l4", "opt-a")
	require.NoError(t, err)
	assert.Equal(t, "opt-a", lesson.Quiz.CorrectOption().ID)

	_, err = f.course.AddBlock(ctx, course.ID, "missing", model.BlockText, "x")
	assert.ErrorIs(t, err, util.ErrLessonNotFound)

	// 修改已持久化
	loaded, err := f.courses.FindByID(ctx, course.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.FindLesson("l2").Blocks, 3)
	assert.True(t, loaded.FindLesson("l4").Quiz.Options[0].IsCorrect)
}

func TestCourseEditorOnLegacyLesson(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.saveCourse(t, false)

	first, err := f.course.Get(ctx, course.ID, f.adminSession(t))
	require.NoError(t, err)
	second, err := f.courses.FindByID(ctx, course.ID)
	require.NoError(t, err)

	legacy := first.Course.FindLesson("l1").Blocks[0].ID
	assert.Equal(t, legacy, second.FindLesson("l1").Blocks[0].ID)

	lesson, err := f.course.UpdateBlock(ctx, course.ID, "l1", legacy, "editado")
	require.NoError(t, err)
	assert.Equal(t, "editado", lesson.Content)

	lesson, err = f.course.AddBlock(ctx, course.ID, "l1", model.BlockText, "nuevo")
	require.NoError(t, err)
	require.Len(t, lesson.Blocks, 2)

	lesson, err = f.course.MoveBlock(ctx, course.ID, "l1", legacy, model.MoveDown)
	require.NoError(t, err)
	assert.Equal(t, legacy, lesson.Blocks[1].ID)
	assert.Equal(t, "nuevo\n\neditado", lesson.Content)

	lesson, err = f.course.RemoveBlock(ctx, course.ID, "l1", legacy)
	require.NoError(t, err)
	assert.Len(t, lesson.Blocks, 1)

	loaded, err := f.courses.FindByID(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "nuevo", loaded.FindLesson("l1").Content)
}
