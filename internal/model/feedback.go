package model

import (
	"encoding/json"
	"time"
)

// WritingFeedback is the AI assessment of one writing or speaking response.
// GrammarVocabJSON and FeedbackSections are opaque JSON documents rendered by the client.
type WritingFeedback struct {
	ID                int64           `json:"feedbackId"`
	ExamID            int             `json:"examId"`
	UserID            int             `json:"userId"`
	SkillID           int             `json:"writingId"`
	AnswerText        string          `json:"answerText"`
	Overall           float64         `json:"overall"`
	TaskAchievement   float64         `json:"taskAchievement"`
	CoherenceCohesion float64         `json:"coherenceCohesion"`
	LexicalResource   float64         `json:"lexicalResource"`
	GrammarAccuracy   float64         `json:"grammarAccuracy"`
	GrammarVocabJSON  json.RawMessage `json:"grammarVocabJson"`
	FeedbackSections  json.RawMessage `json:"feedbackSections"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// FeedbackReport groups a user's feedback for one exam.
type FeedbackReport struct {
	ExamID         int               `json:"examId"`
	UserID         int               `json:"userId"`
	Feedbacks      []WritingFeedback `json:"feedbacks"`
	AverageOverall float64           `json:"averageOverall"`
}

// EssayAnswer is one response submitted for AI grading.
type EssayAnswer struct {
	SkillID int    `json:"skillId" binding:"required,min=1"`
	Text    string `json:"text" binding:"required,max=20000"`
}

// GradeWritingRequest asks for AI feedback on writing/speaking responses.
type GradeWritingRequest struct {
	ExamID  int           `json:"examId" binding:"required,min=1"`
	Answers []EssayAnswer `json:"answers" binding:"required,min=1,max=10,dive"`
}

// FeedbackJob is the queued unit of AI grading work.
type FeedbackJob struct {
	ExamID     int           `json:"examId"`
	UserID     int           `json:"userId"`
	Answers    []EssayAnswer `json:"answers"`
	Retries    int           `json:"retries"`
	EnqueuedAt time.Time     `json:"enqueuedAt"`
}
