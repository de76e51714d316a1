package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/ielts-backend/internal/model"
	"github.com/stemsi/ielts-backend/internal/response"
)

func TestWritingHandler_Grade(t *testing.T) {
	ts := newTestServer(t, true)
	token, userID := ts.tokenFor(t, "mia", model.RoleUser)

	w := ts.do(http.MethodPost, "/api/v1/writing/grade", token, jsonBody{
		"examId":  3,
		"answers": []jsonBody{{"skillId": 30, "text": "The chart shows a steady rise."}},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Len(t, ts.queue.Jobs, 1)
	assert.Equal(t, userID, ts.queue.Jobs[0].UserID)

	tests := []struct {
		name     string
		body     jsonBody
		wantCode int
		wantErr  response.ErrCode
	}{
		{"no answers", jsonBody{"examId": 3, "answers": []jsonBody{}}, http.StatusBadRequest, response.ErrValidation},
		{"unknown exam", jsonBody{"examId": 404, "answers": []jsonBody{{"skillId": 30, "text": "x"}}}, http.StatusNotFound, response.ErrExamNotFound},
		{"listening item", jsonBody{"examId": 1, "answers": []jsonBody{{"skillId": 20, "text": "x"}}}, http.StatusUnprocessableEntity, response.ErrNotEssayItem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/api/v1/writing/grade", token, tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, errCode(t, w))
		})
	}
	assert.Len(t, ts.queue.Jobs, 1)
}

func TestWritingHandler_GradeDisabled(t *testing.T) {
	ts := newTestServer(t, false)
	token, _ := ts.tokenFor(t, "mia", model.RoleUser)

	w := ts.do(http.MethodPost, "/api/v1/writing/grade", token, jsonBody{
		"examId":  3,
		"answers": []jsonBody{{"skillId": 30, "text": "Essay"}},
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, response.ErrFeedbackDisabled, errCode(t, w))
	assert.Empty(t, ts.queue.Jobs)
}

func TestWritingHandler_Feedback(t *testing.T) {
	ts := newTestServer(t, true)
	token, userID := ts.tokenFor(t, "mia", model.RoleUser)

	w := ts.do(http.MethodGet, "/api/v1/writing/feedback/3", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrFeedbackPending, errCode(t, w))

	require.NoError(t, ts.feedback.Upsert(context.Background(), &model.WritingFeedback{
		ExamID:           3,
		UserID:           userID,
		SkillID:          30,
		Overall:          7,
		GrammarVocabJSON: json.RawMessage(`{"overview":"Good","errors":[]}`),
		FeedbackSections: json.RawMessage(`{"overview":"Clear","refinements":[]}`),
	}))

	w = ts.do(http.MethodGet, "/api/v1/writing/feedback/3", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report model.FeedbackReport
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &report))
	require.Len(t, report.Feedbacks, 1)
	assert.Equal(t, 7.0, report.AverageOverall)
	assert.JSONEq(t, `{"overview":"Good","errors":[]}`, string(report.Feedbacks[0].GrammarVocabJSON))

	other, _ := ts.tokenFor(t, "leo", model.RoleUser)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/v1/writing/feedback/3", other, nil).Code)
}
