package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func theoryLesson(blocks ...ContentBlock) *Lesson {
	return &Lesson{ID: "l1", Title: "Teoría", Type: LessonTheory, Blocks: blocks}
}

func blockIDs(l *Lesson) []string {
	ids := make([]string, 0, len(l.Blocks))
	for _, b := range l.Blocks {
		ids = append(ids, b.ID)
	}
	return ids
}

func TestLessonMoveBlock(t *testing.T) {
	l := theoryLesson(
		ContentBlock{ID: "a", Type: BlockText},
		ContentBlock{ID: "b", Type: BlockText},
		ContentBlock{ID: "c", Type: BlockText},
	)

	require.NoError(t, l.MoveBlock("b", MoveUp))
	assert.Equal(t, []string{"b", "a", "c"}, blockIDs(l))

	require.NoError(t, l.MoveBlock("a", MoveDown))
	assert.Equal(t, []string{"b", "c", "a"}, blockIDs(l))

	// 首尾越界不改变顺序
	require.NoError(t, l.MoveBlock("b", MoveUp))
	require.NoError(t, l.MoveBlock("a", MoveDown))
	assert.Equal(t, []string{"b", "c", "a"}, blockIDs(l))

	assert.ErrorIs(t, l.MoveBlock("missing", MoveUp), ErrBlockNotFound)
}

func TestLessonBlockEditing(t *testing.T) {
	l := theoryLesson()

	text, err := l.AddBlock(BlockText, "hola")
	require.NoError(t, err)
	assert.NotEmpty(t, text.ID)

	_, err = l.AddBlock(BlockImage, "/uploads/courses/images/a.png")
	require.NoError(t, err)

	_, err = l.AddBlock(BlockVideo, "javascript:alert(1)")
	assert.ErrorIs(t, err, ErrInvalidCourse)
	assert.Len(t, l.Blocks, 2)

	updated, err := l.UpdateBlock(text.ID, "adiós")
	require.NoError(t, err)
	assert.Equal(t, "adiós", updated.Content)

	require.NoError(t, l.RemoveBlock(text.ID))
	assert.Len(t, l.Blocks, 1)
	assert.ErrorIs(t, l.RemoveBlock(text.ID), ErrBlockNotFound)

	quiz := &Lesson{ID: "q", Type: LessonQuiz, Quiz: NewQuizData()}
	_, err = quiz.AddBlock(BlockText, "x")
	assert.ErrorIs(t, err, ErrInvalidCourse)
}

func TestLessonSetCorrectOption(t *testing.T) {
	l := &Lesson{ID: "q", Type: LessonQuiz, Quiz: NewQuizData()}
	first := l.Quiz.Options[0].ID

	require.NoError(t, l.SetCorrectOption(first))
	assert.Equal(t, first, l.Quiz.CorrectOption().ID)

	correct := 0
	for _, o := range l.Quiz.Options {
		if o.IsCorrect {
			correct++
		}
	}
	assert.Equal(t, 1, correct)

	assert.ErrorIs(t, l.SetCorrectOption("nope"), ErrOptionNotFound)
	assert.ErrorIs(t, theoryLesson().SetCorrectOption(first), ErrInvalidCourse)
}

func TestCourseLegacyContent(t *testing.T) {
	c := &Course{
		Title: "Legacy",
		Modules: []Module{{ID: "m", Lessons: []Lesson{
			{ID: "l1", Type: LessonTheory, Content: "texto antiguo"},
		}}},
	}

	c.MigrateLegacyContent()
	l := c.FindLesson("l1")
	require.Len(t, l.Blocks, 1)
	assert.Equal(t, BlockText, l.Blocks[0].Type)
	assert.Equal(t, "texto antiguo", l.Blocks[0].Content)
	assert.Equal(t, LegacyBlockID("l1"), l.Blocks[0].ID)

	// 再次转换得到相同的块 ID
	again := &Lesson{ID: "l1", Type: LessonTheory, Content: "texto antiguo"}
	again.migrateLegacyContent()
	assert.Equal(t, l.Blocks[0].ID, again.Blocks[0].ID)
	assert.NotEqual(t, LegacyBlockID("l1"), LegacyBlockID("l2"))

	_, err := l.AddBlock(BlockImage, "https://cdn.example.com/x.png")
	require.NoError(t, err)
	_, err = l.AddBlock(BlockText, "nuevo")
	require.NoError(t, err)

	c.Normalize()
	assert.Equal(t, "texto antiguo\n\nnuevo", c.FindLesson("l1").Content)
}

func TestCourseValidate(t *testing.T) {
	c := &Course{Title: "  "}
	assert.ErrorIs(t, c.Validate(), ErrInvalidCourse)

	c = &Course{
		Title: "Quiz",
		Modules: []Module{{ID: "m", Lessons: []Lesson{
			{ID: "q", Type: LessonQuiz, Quiz: &QuizData{Options: []QuizOption{
				{ID: "a", IsCorrect: true},
				{ID: "b", IsCorrect: true},
			}}},
		}}},
	}
	err := c.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCourse))

	c.Modules[0].Lessons[0].Quiz.Options[1].IsCorrect = false
	assert.NoError(t, c.Validate())

	c.Modules[0].Lessons = append(c.Modules[0].Lessons, Lesson{ID: "q", Type: LessonTheory})
	assert.ErrorIs(t, c.Validate(), ErrInvalidCourse)
}

func TestCourseNormalizeFillsIDs(t *testing.T) {
	c := &Course{
		Title: " Nuevo ",
		Modules: []Module{{Lessons: []Lesson{
			{Title: "sin id"},
			{Title: "quiz", Type: LessonQuiz, Quiz: &QuizData{Options: []QuizOption{{Text: "a", IsCorrect: true}}}},
		}}},
	}
	c.Normalize()

	assert.Equal(t, "Nuevo", c.Title)
	assert.NotEmpty(t, c.Modules[0].ID)
	assert.NotEmpty(t, c.Modules[0].Lessons[0].ID)
	assert.Equal(t, LessonTheory, c.Modules[0].Lessons[0].Type)
	assert.NotEmpty(t, c.Modules[0].Lessons[1].Quiz.Options[0].ID)
}

func TestCourseValidPosition(t *testing.T) {
	empty := &Course{}
	assert.True(t, empty.ValidPosition(0, 0))
	assert.False(t, empty.ValidPosition(0, 1))

	c := &Course{Modules: []Module{
		{Lessons: []Lesson{{ID: "a"}, {ID: "b"}}},
		{Lessons: []Lesson{{ID: "c"}}},
	}}
	assert.Equal(t, 3, c.TotalLessons())
	assert.True(t, c.ValidPosition(0, 1))
	assert.True(t, c.ValidPosition(1, 0))
	assert.False(t, c.ValidPosition(1, 1))
	assert.False(t, c.ValidPosition(2, 0))
	assert.False(t, c.ValidPosition(-1, 0))
}

func TestCourseViews(t *testing.T) {
	c := &Course{
		Title: "Vistas",
		Modules: []Module{{ID: "m", Lessons: []Lesson{
			{ID: "t", Type: LessonTheory, Content: "cuerpo", Blocks: []ContentBlock{{ID: "b", Type: BlockText, Content: "cuerpo"}}},
			{ID: "q", Type: LessonQuiz, Quiz: &QuizData{Question: "?", Options: []QuizOption{{ID: "a", IsCorrect: true}, {ID: "b"}}}},
		}}},
	}

	outline := c.Outline()
	assert.Empty(t, outline.Modules[0].Lessons[0].Content)
	assert.Nil(t, outline.Modules[0].Lessons[0].Blocks)
	assert.Nil(t, outline.Modules[0].Lessons[1].Quiz)

	student := c.WithoutAnswers()
	require.NotNil(t, student.Modules[0].Lessons[1].Quiz)
	for _, o := range student.Modules[0].Lessons[1].Quiz.Options {
		assert.False(t, o.IsCorrect)
	}
	// 原课程不受影响
	assert.True(t, c.Modules[0].Lessons[1].Quiz.Options[0].IsCorrect)
	assert.Equal(t, "cuerpo", student.Modules[0].Lessons[0].Blocks[0].Content)
}
