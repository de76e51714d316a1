package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/ielts-backend/internal/model"
	"github.com/stemsi/ielts-backend/internal/service/servicetest"
)

func strPtr(s string) *string { return &s }

func fixtureExams() *servicetest.Exams {
	return servicetest.NewExams(
		model.Exam{ID: 1, Name: "Reading Mock", Type: model.ExamTypeReading},
		model.Exam{ID: 2, Name: "Listening Mock", Type: "LISTENING"},
		model.Exam{ID: 3, Name: "Writing Mock", Type: model.ExamTypeWriting},
		model.Exam{ID: 4, Name: "Odd", Type: "mixed"},
	)
}

func fixtureItems() *servicetest.Items {
	return servicetest.NewItems(
		model.SkillItem{ID: 10, ExamID: 1, Kind: model.SkillReading, DisplayOrder: 1, CorrectAnswer: strPtr(`["A","B"]`)},
		model.SkillItem{ID: 11, ExamID: 1, Kind: model.SkillReading, DisplayOrder: 2, CorrectAnswer: strPtr(`["True"]`)},
		model.SkillItem{ID: 12, ExamID: 1, Kind: model.SkillListening, DisplayOrder: 3, CorrectAnswer: strPtr(`["x"]`)},
		model.SkillItem{ID: 20, ExamID: 2, Kind: model.SkillListening, CorrectAnswer: strPtr(`["river","bridge"]`)},
		model.SkillItem{ID: 30, ExamID: 3, Kind: model.SkillWriting, Content: "Describe the chart."},
		model.SkillItem{ID: 31, ExamID: 3, Kind: model.SkillWriting, Content: "Discuss both views."},
		model.SkillItem{ID: 40, ExamID: 4, Kind: model.SkillReading, CorrectAnswer: strPtr(`["A"]`)},
	)
}

type examFixture struct {
	svc      *ExamService
	exams    *servicetest.Exams
	items    *servicetest.Items
	attempts *servicetest.Attempts
	cache    *servicetest.Cache
	queue    *servicetest.Queue
}

func newExamFixture() *examFixture {
	f := &examFixture{
		exams:    fixtureExams(),
		items:    fixtureItems(),
		attempts: &servicetest.Attempts{},
		cache:    servicetest.NewCache(),
		queue:    &servicetest.Queue{},
	}
	f.svc = NewExamService(f.exams, f.items, f.attempts, f.cache, zerolog.Nop()).WithFeedbackQueue(f.queue)
	return f
}

func TestExamService_GetByID(t *testing.T) {
	f := newExamFixture()
	ctx := context.Background()

	exam, err := f.svc.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Reading Mock", exam.Name)
	require.Len(t, exam.Items, 3)
	assert.Equal(t, []int{10, 11, 12}, []int{exam.Items[0].ID, exam.Items[1].ID, exam.Items[2].ID})

	lists := f.items.Lists()
	_, err = f.svc.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, lists, f.items.Lists(), "second read served from cache")

	_, err = f.svc.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrExamNotFound)
}

func TestExamService_GetAll(t *testing.T) {
	f := newExamFixture()

	exams, p, err := f.svc.GetAll(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, exams, 2)
	assert.Equal(t, 4, p.TotalItems)
	assert.Equal(t, 2, p.TotalPages)
	assert.Len(t, exams[0].Items, 3)
	assert.Len(t, exams[1].Items, 1)
}

func TestExamService_SubmitAttempt_Dispatch(t *testing.T) {
	tests := []struct {
		name      string
		examID    int
		answers   string
		wantScore float64
	}{
		{
			name:      "reading counts only reading items",
			examID:    1,
			answers:   `[{"skillId":10,"answers":["a"," B "]},{"skillId":11,"answers":["false"]},{"skillId":12,"answers":["x"]}]`,
			wantScore: 6,
		},
		{
			name:      "listening type ignores case",
			examID:    2,
			answers:   `[{"skillId":20,"answers":["RIVER","bridge"]}]`,
			wantScore: 9,
		},
		{
			name:      "writing scores zero",
			examID:    3,
			answers:   `[{"skillId":30,"answers":["An essay."]}]`,
			wantScore: 0,
		},
		{
			name:      "unknown type scores zero",
			examID:    4,
			answers:   `[{"skillId":40,"answers":["A"]}]`,
			wantScore: 0,
		},
		{
			name:      "malformed answers score zero",
			examID:    1,
			answers:   `not json`,
			wantScore: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExamFixture()
			claimed := 9.0
			res, err := f.svc.SubmitAttempt(context.Background(), &model.SubmitAttemptRequest{
				ExamID:     tt.examID,
				AnswerText: tt.answers,
				Score:      &claimed,
			}, 7)
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, res.TotalScore)
			assert.Equal(t, 7, res.UserID)
			assert.Equal(t, tt.examID, res.ExamID)
			assert.Equal(t, tt.answers, res.AnswerText)
			require.Len(t, f.attempts.Stored, 1)
			assert.Equal(t, tt.wantScore, f.attempts.Stored[0].Score)
		})
	}
}

func TestExamService_SubmitAttempt_Errors(t *testing.T) {
	f := newExamFixture()
	ctx := context.Background()

	_, err := f.svc.SubmitAttempt(ctx, &model.SubmitAttemptRequest{ExamID: 1}, 7)
	assert.ErrorIs(t, err, ErrEmptyAnswer)

	_, err = f.svc.SubmitAttempt(ctx, &model.SubmitAttemptRequest{ExamID: 1, AnswerText: "[]"}, 0)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = f.svc.SubmitAttempt(ctx, &model.SubmitAttemptRequest{ExamID: 404, AnswerText: "[]"}, 7)
	assert.ErrorIs(t, err, ErrExamNotFound)

	assert.Empty(t, f.attempts.Stored)
}

func TestExamService_SubmitAttempt_Timestamps(t *testing.T) {
	f := newExamFixture()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	started := now.Add(-40 * time.Minute)
	res, err := f.svc.SubmitAttempt(context.Background(), &model.SubmitAttemptRequest{
		ExamID: 1, AnswerText: "[]", StartedAt: &started,
	}, 7)
	require.NoError(t, err)
	assert.Equal(t, started, res.StartedAt)
	assert.Equal(t, now, res.SubmittedAt)

	res, err = f.svc.SubmitAttempt(context.Background(), &model.SubmitAttemptRequest{ExamID: 1, AnswerText: "[]"}, 7)
	require.NoError(t, err)
	assert.Equal(t, now, res.StartedAt)
}

func TestExamService_SubmitAttempt_QueuesFeedback(t *testing.T) {
	f := newExamFixture()

	_, err := f.svc.SubmitAttempt(context.Background(), &model.SubmitAttemptRequest{
		ExamID:     3,
		AnswerText: `[{"skillId":30,"answers":["Para one.","Para two."]},{"skillId":31,"answers":["  "]},{"skillId":99,"answers":["x"]}]`,
	}, 7)
	require.NoError(t, err)

	require.Len(t, f.queue.Jobs, 1)
	job := f.queue.Jobs[0]
	assert.Equal(t, 3, job.ExamID)
	assert.Equal(t, 7, job.UserID)
	assert.Equal(t, []model.EssayAnswer{{SkillID: 30, Text: "Para one.\n\nPara two."}}, job.Answers)

	_, err = f.svc.SubmitAttempt(context.Background(), &model.SubmitAttemptRequest{
		ExamID:     1,
		AnswerText: `[{"skillId":10,"answers":["A"]}]`,
	}, 7)
	require.NoError(t, err)
	assert.Len(t, f.queue.Jobs, 1, "reading submissions are not queued")
}

func TestExamService_SubmitAttempt_QueueFailureKeepsAttempt(t *testing.T) {
	f := newExamFixture()
	f.queue.Err = errors.New("redis down")

	res, err := f.svc.SubmitAttempt(context.Background(), &model.SubmitAttemptRequest{
		ExamID:     3,
		AnswerText: `[{"skillId":30,"answers":["Essay"]}]`,
	}, 7)
	require.NoError(t, err)
	assert.NotZero(t, res.AttemptID)
}

func TestExamService_CreateUpdateDelete(t *testing.T) {
	f := newExamFixture()
	ctx := context.Background()

	exam, err := f.svc.Create(ctx, &model.CreateExamRequest{Name: "  New Mock ", Type: "Reading"})
	require.NoError(t, err)
	assert.Equal(t, "New Mock", exam.Name)
	assert.Equal(t, model.ExamTypeReading, exam.Type)
	assert.NotNil(t, exam.Items)

	_, err = f.svc.GetByID(ctx, exam.ID)
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, exam.ID, &model.UpdateExamRequest{Type: "listening"})
	require.NoError(t, err)
	assert.Equal(t, model.ExamTypeListening, updated.Type)
	assert.Equal(t, "New Mock", updated.Name)
	assert.Contains(t, f.cache.Invalidated, exam.ID)

	_, err = f.svc.Update(ctx, 999, &model.UpdateExamRequest{Name: "x"})
	assert.ErrorIs(t, err, ErrExamNotFound)

	f.exams.InUse[1] = true
	assert.ErrorIs(t, f.svc.Delete(ctx, 1), ErrExamHasAttempts)
	assert.ErrorIs(t, f.svc.Delete(ctx, 999), ErrExamNotFound)
	require.NoError(t, f.svc.Delete(ctx, exam.ID))
}

func TestExamService_Attempts(t *testing.T) {
	f := newExamFixture()
	ctx := context.Background()

	first, err := f.svc.SubmitAttempt(ctx, &model.SubmitAttemptRequest{ExamID: 1, AnswerText: "[]"}, 7)
	require.NoError(t, err)
	_, err = f.svc.SubmitAttempt(ctx, &model.SubmitAttemptRequest{ExamID: 2, AnswerText: "[]"}, 7)
	require.NoError(t, err)
	_, err = f.svc.SubmitAttempt(ctx, &model.SubmitAttemptRequest{ExamID: 1, AnswerText: "[]"}, 8)
	require.NoError(t, err)

	list, p, err := f.svc.ListAttemptsByUser(ctx, 7, 1, 20)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 2, p.TotalItems)
	assert.Equal(t, 2, list[0].ExamID, "newest first")

	got, err := f.svc.GetAttempt(ctx, first.AttemptID, 7, false)
	require.NoError(t, err)
	assert.Equal(t, first.AttemptID, got.AttemptID)

	_, err = f.svc.GetAttempt(ctx, first.AttemptID, 8, false)
	assert.ErrorIs(t, err, ErrAttemptForbidden)

	_, err = f.svc.GetAttempt(ctx, first.AttemptID, 8, true)
	assert.NoError(t, err)

	_, err = f.svc.GetAttempt(ctx, 999, 7, true)
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestEssayAnswers_FirstGroupWins(t *testing.T) {
	exam := &model.Exam{Items: []model.SkillItem{
		{ID: 1, Kind: model.SkillWriting},
		{ID: 2, Kind: model.SkillSpeaking},
		{ID: 3, Kind: model.SkillReading},
	}}
	got := EssayAnswers(exam, `[{"skillId":1,"answers":["first"]},{"skillId":1,"answers":["second"]},{"skillId":2,"answers":["spoken"]},{"skillId":3,"answers":["A"]}]`)
	assert.Equal(t, []model.EssayAnswer{{SkillID: 1, Text: "first"}, {SkillID: 2, Text: "spoken"}}, got)

	assert.Empty(t, EssayAnswers(exam, ""))
}
