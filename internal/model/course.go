package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrInvalidCourse  = errors.New("invalid course")
	ErrLessonNotFound = errors.New("lesson not found")
	ErrBlockNotFound  = errors.New("content block not found")
	ErrOptionNotFound = errors.New("quiz option not found")
)

type LessonType string

const (
	LessonTheory LessonType = "theory"
	LessonQuiz   LessonType = "quiz"
)

type BlockType string

const (
	BlockText  BlockType = "text"
	BlockImage BlockType = "image"
	BlockVideo BlockType = "video"
)

type MoveDirection string

const (
	MoveUp   MoveDirection = "up"
	MoveDown MoveDirection = "down"
)

// ContentBlock text 的 content 为正文；image / video 的 content 为资源地址
type ContentBlock struct {
	ID      string    `json:"id"`
	Type    BlockType `json:"type"`
	Content string    `json:"content"`
}

func (b ContentBlock) Validate() error {
	switch b.Type {
	case BlockText:
		return nil
	case BlockImage, BlockVideo:
		if b.Content == "" || isMediaRef(b.Content) {
			return nil
		}
		return fmt.Errorf("%w: block %s has an invalid %s url", ErrInvalidCourse, b.ID, b.Type)
	default:
		return fmt.Errorf("%w: unknown block type %q", ErrInvalidCourse, b.Type)
	}
}

// 允许 http(s) 地址、站内上传路径与 data URI
func isMediaRef(ref string) bool {
	if strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "data:") {
		return true
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

type QuizOption struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect,omitempty"`
}

type QuizData struct {
	Question string       `json:"question"`
	Options  []QuizOption `json:"options"`
}

func NewQuizData() *QuizData {
	return &QuizData{
		Question: "¿Escribe tu pregunta aquí?",
		Options: []QuizOption{
			{ID: GenerateID(), Text: "Opción A"},
			{ID: GenerateID(), Text: "Opción B", IsCorrect: true},
		},
	}
}

func (q *QuizData) CorrectOption() *QuizOption {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return &q.Options[i]
		}
	}
	return nil
}

type Lesson struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Duration string         `json:"duration,omitempty"`
	Type     LessonType     `json:"type"`
	Content  string         `json:"content,omitempty"`
	Blocks   []ContentBlock `json:"blocks,omitempty"`
	Quiz     *QuizData      `json:"quizData,omitempty"`
}

func (l *Lesson) blockIndex(blockID string) int {
	for i := range l.Blocks {
		if l.Blocks[i].ID == blockID {
			return i
		}
	}
	return -1
}

func (l *Lesson) AddBlock(blockType BlockType, content string) (*ContentBlock, error) {
	if l.Type != LessonTheory {
		return nil, fmt.Errorf("%w: blocks belong to theory lessons", ErrInvalidCourse)
	}
	block := ContentBlock{ID: GenerateID(), Type: blockType, Content: content}
	if err := block.Validate(); err != nil {
		return nil, err
	}
	l.Blocks = append(l.Blocks, block)
	return &l.Blocks[len(l.Blocks)-1], nil
}

func (l *Lesson) UpdateBlock(blockID, content string) (*ContentBlock, error) {
	i := l.blockIndex(blockID)
	if i < 0 {
		return nil, ErrBlockNotFound
	}
	updated := l.Blocks[i]
	updated.Content = content
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	l.Blocks[i] = updated
	return &l.Blocks[i], nil
}

func (l *Lesson) RemoveBlock(blockID string) error {
	i := l.blockIndex(blockID)
	if i < 0 {
		return ErrBlockNotFound
	}
	l.Blocks = append(l.Blocks[:i], l.Blocks[i+1:]...)
	return nil
}

// MoveBlock 越过首尾时不做任何改动
func (l *Lesson) MoveBlock(blockID string, dir MoveDirection) error {
	i := l.blockIndex(blockID)
	if i < 0 {
		return ErrBlockNotFound
	}
	switch dir {
	case MoveUp:
		if i > 0 {
			l.Blocks[i], l.Blocks[i-1] = l.Blocks[i-1], l.Blocks[i]
		}
	case MoveDown:
		if i < len(l.Blocks)-1 {
			l.Blocks[i], l.Blocks[i+1] = l.Blocks[i+1], l.Blocks[i]
		}
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidCourse, dir)
	}
	return nil
}

func (l *Lesson) SetCorrectOption(optionID string) error {
	if l.Type != LessonQuiz || l.Quiz == nil {
		return fmt.Errorf("%w: lesson %s has no quiz", ErrInvalidCourse, l.ID)
	}
	found := false
	for i := range l.Quiz.Options {
		if l.Quiz.Options[i].ID == optionID {
			found = true
		}
	}
	if !found {
		return ErrOptionNotFound
	}
	for i := range l.Quiz.Options {
		l.Quiz.Options[i].IsCorrect = l.Quiz.Options[i].ID == optionID
	}
	return nil
}

// legacyBlockNamespace 转换块的 ID 由课时 ID 派生，多次读取保持一致
var legacyBlockNamespace = uuid.MustParse("8f0c7a52-3d1e-4b6a-9c2f-5e4d3b2a1f07")

func LegacyBlockID(lessonID string) string {
	return uuid.NewSHA1(legacyBlockNamespace, []byte(lessonID)).String()
}

// migrateLegacyContent 旧数据只有扁平 content，读取时转换为单个文本块
func (l *Lesson) migrateLegacyContent() {
	if l.Type == LessonTheory && len(l.Blocks) == 0 && l.Content != "" {
		l.Blocks = []ContentBlock{{ID: LegacyBlockID(l.ID), Type: BlockText, Content: l.Content}}
	}
}

// syncLegacyContent 保存时用文本块回填 content，兼容只读 content 的旧客户端
func (l *Lesson) syncLegacyContent() {
	if l.Type != LessonTheory || l.Blocks == nil {
		return
	}
	texts := make([]string, 0, len(l.Blocks))
	for _, b := range l.Blocks {
		if b.Type == BlockText {
			texts = append(texts, b.Content)
		}
	}
	l.Content = strings.Join(texts, "\n\n")
}

func (l *Lesson) validate() error {
	switch l.Type {
	case LessonTheory:
		for _, b := range l.Blocks {
			if err := b.Validate(); err != nil {
				return err
			}
		}
	case LessonQuiz:
		if l.Quiz == nil {
			return fmt.Errorf("%w: quiz lesson %s has no quizData", ErrInvalidCourse, l.ID)
		}
		correct := 0
		for _, o := range l.Quiz.Options {
			if o.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("%w: quiz lesson %s must have exactly one correct option, has %d", ErrInvalidCourse, l.ID, correct)
		}
	default:
		return fmt.Errorf("%w: unknown lesson type %q", ErrInvalidCourse, l.Type)
	}
	return nil
}

type Module struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Lessons []Lesson `json:"lessons"`
}

// swagger:model Course
type Course struct {
	UUIDBase
	Title       string                      `gorm:"size:200;not null" json:"title"`
	Description string                      `gorm:"type:text" json:"description"`
	Thumbnail   string                      `gorm:"type:text" json:"thumbnail"`
	Published   bool                        `gorm:"index;default:false" json:"published"`
	Price       string                      `gorm:"size:50" json:"price"`
	Duration    string                      `gorm:"size:50" json:"duration"`
	Level       string                      `gorm:"size:50" json:"level"`
	Modules     datatypes.JSONSlice[Module] `json:"modules"`
}

func (Course) TableName() string {
	return "courses"
}

func (c *Course) AfterFind(tx *gorm.DB) error {
	c.MigrateLegacyContent()
	return nil
}

func (c *Course) MigrateLegacyContent() {
	for i := range c.Modules {
		for j := range c.Modules[i].Lessons {
			c.Modules[i].Lessons[j].migrateLegacyContent()
		}
	}
}

// TotalLessons 课程总课时数，即各模块课时数之和
func (c *Course) TotalLessons() int {
	total := 0
	for _, m := range c.Modules {
		total += len(m.Lessons)
	}
	return total
}

func (c *Course) LessonIDs() map[string]struct{} {
	ids := make(map[string]struct{}, c.TotalLessons())
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			ids[l.ID] = struct{}{}
		}
	}
	return ids
}

func (c *Course) FindLesson(lessonID string) *Lesson {
	for i := range c.Modules {
		for j := range c.Modules[i].Lessons {
			if c.Modules[i].Lessons[j].ID == lessonID {
				return &c.Modules[i].Lessons[j]
			}
		}
	}
	return nil
}

// ValidPosition 判断进度游标是否落在课程结构内；空课程只接受 (0, 0)
func (c *Course) ValidPosition(moduleIdx, lessonIdx int) bool {
	if moduleIdx < 0 || lessonIdx < 0 {
		return false
	}
	if len(c.Modules) == 0 {
		return moduleIdx == 0 && lessonIdx == 0
	}
	if moduleIdx >= len(c.Modules) {
		return false
	}
	lessons := len(c.Modules[moduleIdx].Lessons)
	if lessons == 0 {
		return lessonIdx == 0
	}
	return lessonIdx < lessons
}

// Normalize 补全缺失的 ID 并同步旧版 content 字段，保存前调用
func (c *Course) Normalize() {
	c.Title = strings.TrimSpace(c.Title)
	for i := range c.Modules {
		m := &c.Modules[i]
		if m.ID == "" {
			m.ID = GenerateID()
		}
		if m.Lessons == nil {
			m.Lessons = []Lesson{}
		}
		for j := range m.Lessons {
			l := &m.Lessons[j]
			if l.ID == "" {
				l.ID = GenerateID()
			}
			if l.Type == "" {
				l.Type = LessonTheory
			}
			for k := range l.Blocks {
				if l.Blocks[k].ID == "" {
					l.Blocks[k].ID = GenerateID()
				}
			}
			if l.Quiz != nil {
				for k := range l.Quiz.Options {
					if l.Quiz.Options[k].ID == "" {
						l.Quiz.Options[k].ID = GenerateID()
					}
				}
			}
			l.syncLegacyContent()
		}
	}
	if c.Modules == nil {
		c.Modules = datatypes.JSONSlice[Module]{}
	}
}

func (c *Course) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidCourse)
	}
	seen := make(map[string]struct{})
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			if _, dup := seen[l.ID]; dup {
				return fmt.Errorf("%w: duplicate lesson id %s", ErrInvalidCourse, l.ID)
			}
			seen[l.ID] = struct{}{}
			if err := l.validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Outline 目录视图：去掉正文、块与测验，用于未报名的访客
func (c *Course) Outline() *Course {
	out := *c
	out.Modules = make(datatypes.JSONSlice[Module], len(c.Modules))
	for i, m := range c.Modules {
		lessons := make([]Lesson, len(m.Lessons))
		for j, l := range m.Lessons {
			lessons[j] = Lesson{ID: l.ID, Title: l.Title, Duration: l.Duration, Type: l.Type}
		}
		out.Modules[i] = Module{ID: m.ID, Title: m.Title, Lessons: lessons}
	}
	return &out
}

// WithoutAnswers 学员视图：保留完整内容，但隐藏测验的正确选项
func (c *Course) WithoutAnswers() *Course {
	out := *c
	out.Modules = make(datatypes.JSONSlice[Module], len(c.Modules))
	for i, m := range c.Modules {
		lessons := make([]Lesson, len(m.Lessons))
		for j, l := range m.Lessons {
			lessons[j] = l
			if l.Blocks != nil {
				lessons[j].Blocks = append([]ContentBlock(nil), l.Blocks...)
			}
			if l.Quiz != nil {
				quiz := &QuizData{Question: l.Quiz.Question, Options: make([]QuizOption, len(l.Quiz.Options))}
				for k, o := range l.Quiz.Options {
					quiz.Options[k] = QuizOption{ID: o.ID, Text: o.Text}
				}
				lessons[j].Quiz = quiz
			}
		}
		out.Modules[i] = Module{ID: m.ID, Title: m.Title, Lessons: lessons}
	}
	return &out
}
