package model

import "time"

// Attempt is one persisted submission of an exam. Rows are never updated.
type Attempt struct {
	ID          int64     `json:"attemptId"`
	ExamID      int       `json:"examId"`
	UserID      int       `json:"userId"`
	StartedAt   time.Time `json:"startedAt"`
	SubmittedAt time.Time `json:"submittedAt"`
	Score       float64   `json:"score"`
	AnswerText  string    `json:"answerText"`
}

// SubmitAttemptRequest is the inbound submission payload. AnswerText is a
// JSON-encoded list of {skillId, answers} groups. Score is accepted for
// compatibility with older clients and always overwritten.
type SubmitAttemptRequest struct {
	ExamID     int        `json:"examId" binding:"required,min=1"`
	AnswerText string     `json:"answerText" binding:"required"`
	Score      *float64   `json:"score"`
	StartedAt  *time.Time `json:"startedAt"`
}

// AttemptResult is returned after a submission and in attempt listings.
type AttemptResult struct {
	AttemptID   int64     `json:"attemptId"`
	UserID      int       `json:"userId"`
	StartedAt   time.Time `json:"startedAt"`
	SubmittedAt time.Time `json:"submittedAt"`
	ExamID      int       `json:"examId"`
	ExamName    string    `json:"examName"`
	ExamType    ExamType  `json:"examType"`
	TotalScore  float64   `json:"totalScore"`
	AnswerText  string    `json:"answerText"`
}

// NewAttemptResult joins an attempt with the exam it was made against.
func NewAttemptResult(a *Attempt, exam *Exam) *AttemptResult {
	res := &AttemptResult{
		AttemptID:   a.ID,
		UserID:      a.UserID,
		StartedAt:   a.StartedAt,
		SubmittedAt: a.SubmittedAt,
		ExamID:      a.ExamID,
		TotalScore:  a.Score,
		AnswerText:  a.AnswerText,
	}
	if exam != nil {
		res.ExamName = exam.Name
		res.ExamType = exam.Type
	}
	return res
}
