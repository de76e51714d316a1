package service

import (
	"context"
	"time"

	"github.com/stemsi/ielts-backend/internal/model"
)

// The store interfaces are satisfied by the pgx repositories; services take
// them so they can run against in-memory fakes.
//
// Not-found lookups return pgx.ErrNoRows.

// ExamStore persists exams.
type ExamStore interface {
	GetByID(ctx context.Context, id int) (*model.Exam, error)
	List(ctx context.Context, limit, offset int) ([]model.Exam, int, error)
	Create(ctx context.Context, e *model.Exam) error
	Update(ctx context.Context, e *model.Exam) error
	Delete(ctx context.Context, id int) error
}

// SkillItemStore persists skill items.
type SkillItemStore interface {
	ListByExam(ctx context.Context, examID int, kind model.SkillKind) ([]model.SkillItem, error)
	GetByID(ctx context.Context, id int) (*model.SkillItem, error)
	Create(ctx context.Context, it *model.SkillItem) error
	Update(ctx context.Context, it *model.SkillItem) error
	Delete(ctx context.Context, id int) error
}

// AttemptStore persists attempts.
type AttemptStore interface {
	Create(ctx context.Context, a *model.Attempt) error
	GetByID(ctx context.Context, id int64) (*model.AttemptResult, error)
	ListByUser(ctx context.Context, userID, limit, offset int) ([]model.AttemptResult, int, error)
	CountByExam(ctx context.Context, examID int) (int, error)
}

// UserStore persists accounts.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id int) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
}

// FeedbackStore persists AI feedback.
type FeedbackStore interface {
	Upsert(ctx context.Context, f *model.WritingFeedback) error
	ListByExamUser(ctx context.Context, examID, userID int) ([]model.WritingFeedback, error)
}

// ExamCache holds assembled exams. Get returns nil, nil on a miss.
type ExamCache interface {
	Get(ctx context.Context, examID int) (*model.Exam, error)
	Set(ctx context.Context, exam *model.Exam) error
	Invalidate(ctx context.Context, examID int) error
}

// SessionStore tracks live login tokens by JTI.
type SessionStore interface {
	Save(ctx context.Context, userID int, jti string, ttl time.Duration) error
	Exists(ctx context.Context, userID int, jti string) (bool, error)
	Delete(ctx context.Context, userID int, jti string) error
}

// FeedbackQueue accepts AI grading jobs.
type FeedbackQueue interface {
	Enqueue(ctx context.Context, job *model.FeedbackJob) error
}
