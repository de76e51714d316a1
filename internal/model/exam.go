package model

import (
	"encoding/json"
	"strings"
	"time"
)

// ExamType is the exam-level skill tag that selects the evaluator.
// Stored as free text; compare with Is rather than ==.
type ExamType string

const (
	ExamTypeReading   ExamType = "reading"
	ExamTypeListening ExamType = "listening"
	ExamTypeWriting   ExamType = "writing"
	ExamTypeSpeaking  ExamType = "speaking"
)

// Is reports whether t names the given type, ignoring case.
func (t ExamType) Is(other ExamType) bool {
	return strings.EqualFold(string(t), string(other))
}

// SkillKind identifies which section of an exam a SkillItem belongs to.
type SkillKind string

const (
	SkillReading   SkillKind = "reading"
	SkillListening SkillKind = "listening"
	SkillWriting   SkillKind = "writing"
	SkillSpeaking  SkillKind = "speaking"
)

// Exam represents an exam with its ordered skill items.
type Exam struct {
	ID        int         `json:"examId"`
	Name      string      `json:"examName"`
	Type      ExamType    `json:"examType"`
	CreatedAt time.Time   `json:"createdAt"`
	Items     []SkillItem `json:"items"`
}

// ItemsOf returns the exam's items of one kind, preserving display order.
func (e *Exam) ItemsOf(kind SkillKind) []SkillItem {
	out := make([]SkillItem, 0, len(e.Items))
	for _, it := range e.Items {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	return out
}

// SkillItem is one question/content unit of an exam (reading passage,
// listening clip, writing or speaking prompt).
type SkillItem struct {
	ID             int       `json:"skillId"`
	ExamID         int       `json:"examId"`
	Kind           SkillKind `json:"kind"`
	Content        string    `json:"content"`
	QuestionMarkup string    `json:"questionMarkup"`
	ItemType       string    `json:"itemType,omitempty"`
	DisplayOrder   int       `json:"displayOrder"`
	CorrectAnswer  *string   `json:"correctAnswer"`
	QuestionHTML   *string   `json:"questionHtml"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Name string `json:"examName" binding:"required,min=3,max=255"`
	Type string `json:"examType" binding:"required,skill"`
}

// UpdateExamRequest is the payload for updating an existing exam.
type UpdateExamRequest struct {
	Name string `json:"examName" binding:"omitempty,min=3,max=255"`
	Type string `json:"examType" binding:"omitempty,skill"`
}

// CreateSkillItemRequest is the payload for adding a skill item to an exam.
// When CorrectAnswer is omitted it is derived from QuestionMarkup.
type CreateSkillItemRequest struct {
	Kind           string  `json:"kind" binding:"required,skill"`
	Content        string  `json:"content" binding:"max=100000"`
	QuestionMarkup string  `json:"questionMarkup" binding:"max=100000"`
	ItemType       string  `json:"itemType" binding:"omitempty,max=50"`
	DisplayOrder   int     `json:"displayOrder" binding:"min=0"`
	CorrectAnswer  *string `json:"correctAnswer" binding:"omitempty"`
	QuestionHTML   *string `json:"questionHtml" binding:"omitempty"`
}

// UpdateSkillItemRequest is a partial update; nil fields are left unchanged.
type UpdateSkillItemRequest struct {
	Content        *string `json:"content" binding:"omitempty,max=100000"`
	QuestionMarkup *string `json:"questionMarkup" binding:"omitempty,max=100000"`
	ItemType       *string `json:"itemType" binding:"omitempty,max=50"`
	DisplayOrder   *int    `json:"displayOrder" binding:"omitempty,min=0"`
	CorrectAnswer  *string `json:"correctAnswer" binding:"omitempty"`
	QuestionHTML   *string `json:"questionHtml" binding:"omitempty"`
}

// TouchesAnswers reports whether applying the update may change how
// submissions are scored.
func (r *UpdateSkillItemRequest) TouchesAnswers() bool {
	return r.QuestionMarkup != nil || r.CorrectAnswer != nil
}

// RenderMarkupRequest asks for a preview of question markup.
type RenderMarkupRequest struct {
	Markdown string `json:"markdown" binding:"max=100000"`
	Reveal   bool   `json:"reveal"`
}

// RenderMarkupResponse carries rendered HTML and the extracted answers.
type RenderMarkupResponse struct {
	HTML    string          `json:"html"`
	Answers json.RawMessage `json:"answers"`
}

// Public returns a copy of the exam fit for learners. See SkillItem.Public.
func (e *Exam) Public() *Exam {
	out := *e
	out.Items = make([]SkillItem, len(e.Items))
	for i, it := range e.Items {
		out.Items[i] = it.Public()
	}
	return &out
}

// Public drops the canonical answers and the source markup, which spells
// them out as [T*answer] and [*]choice. Learners get the non-revealed
// QuestionHTML instead.
func (it SkillItem) Public() SkillItem {
	it.CorrectAnswer = nil
	it.QuestionMarkup = ""
	return it
}
