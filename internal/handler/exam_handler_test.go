package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/ielts-backend/internal/model"
	"github.com/stemsi/ielts-backend/internal/response"
)

func TestExamHandler_GetExamHidesAnswers(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(http.MethodGet, "/api/v1/exams/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Exam model.Exam `json:"exam"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, "Listening Mock", data.Exam.Name)
	require.Len(t, data.Exam.Items, 2)
	for _, it := range data.Exam.Items {
		assert.Nil(t, it.CorrectAnswer)
	}
	assert.NotContains(t, w.Body.String(), "river")
}

func TestExamHandler_PublicReadsOmitMarkup(t *testing.T) {
	ts := newTestServer(t, false)
	admin, _ := ts.tokenFor(t, "root", model.RoleAdmin)

	for _, path := range []string{"/api/v1/exams/1", "/api/v1/exams/1/items", "/api/v1/exams"} {
		w := ts.do(http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		body := w.Body.String()
		assert.NotContains(t, body, "river", path)
		assert.NotContains(t, body, "bridge", path)
		assert.NotContains(t, body, "[T*", path)
	}

	w := ts.do(http.MethodGet, "/api/v1/exams/1/items?kind=listening", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Items []model.SkillItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	require.Len(t, data.Items, 1)
	assert.Empty(t, data.Items[0].QuestionMarkup)
	require.NotNil(t, data.Items[0].QuestionHTML)
	assert.Contains(t, *data.Items[0].QuestionHTML, `name="q1_text"`)

	w = ts.do(http.MethodGet, "/api/v1/admin/exams/1", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "[T*river]")
}

func TestExamHandler_GetExamErrors(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(http.MethodGet, "/api/v1/exams/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrInvalidID, errCode(t, w))

	w = ts.do(http.MethodGet, "/api/v1/exams/404", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrExamNotFound, errCode(t, w))
}

func TestExamHandler_ListExams(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(http.MethodGet, "/api/v1/exams?page=1&per_page=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	env := decode(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.TotalItems)
	assert.Equal(t, 2, env.Pagination.TotalPages)
	assert.NotContains(t, w.Body.String(), "bridge")
}

func TestExamHandler_ListItems(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(http.MethodGet, "/api/v1/exams/1/items?kind=Listening", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Items []model.SkillItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	require.Len(t, data.Items, 1)
	assert.Equal(t, 20, data.Items[0].ID)
	assert.Nil(t, data.Items[0].CorrectAnswer)

	w = ts.do(http.MethodGet, "/api/v1/exams/1/items?kind=maths", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrValidation, errCode(t, w))
}

func TestExamHandler_SubmitAttempt(t *testing.T) {
	ts := newTestServer(t, false)
	token, userID := ts.tokenFor(t, "mia", model.RoleUser)

	w := ts.do(http.MethodPost, "/api/v1/exams/submit", token, jsonBody{
		"examId":     1,
		"answerText": `[{"skillId":20,"answers":["River"," bridge "]},{"skillId":21,"answers":["B"]}]`,
		"score":      2.5,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res model.AttemptResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.Equal(t, 9.0, res.TotalScore, "client-sent score is ignored")
	assert.Equal(t, userID, res.UserID)
	assert.Equal(t, "Listening Mock", res.ExamName)
	assert.Equal(t, model.ExamTypeListening, res.ExamType)
	require.Len(t, ts.attempts.Stored, 1)
}

func TestExamHandler_SubmitAttemptErrors(t *testing.T) {
	ts := newTestServer(t, false)
	token, _ := ts.tokenFor(t, "mia", model.RoleUser)

	tests := []struct {
		name     string
		token    string
		body     jsonBody
		wantCode int
		wantErr  response.ErrCode
	}{
		{"no token", "", jsonBody{"examId": 1, "answerText": "[]"}, http.StatusUnauthorized, response.ErrTokenRequired},
		{"empty answer", token, jsonBody{"examId": 1, "answerText": ""}, http.StatusBadRequest, response.ErrEmptyAnswer},
		{"missing exam id", token, jsonBody{"answerText": "[]"}, http.StatusBadRequest, response.ErrValidation},
		{"unknown exam", token, jsonBody{"examId": 404, "answerText": "[]"}, http.StatusNotFound, response.ErrExamNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/api/v1/exams/submit", tt.token, tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, errCode(t, w))
		})
	}
	assert.Empty(t, ts.attempts.Stored)
}

func TestExamHandler_Attempts(t *testing.T) {
	ts := newTestServer(t, false)
	mia, miaID := ts.tokenFor(t, "mia", model.RoleUser)
	leo, leoID := ts.tokenFor(t, "leo", model.RoleUser)
	admin, _ := ts.tokenFor(t, "root", model.RoleAdmin)

	w := ts.do(http.MethodPost, "/api/v1/exams/submit", mia, jsonBody{"examId": 1, "answerText": "[]"})
	require.Equal(t, http.StatusCreated, w.Code)
	attemptPath := "/api/v1/attempts/" + strconv.FormatInt(ts.attempts.Stored[0].ID, 10)

	w = ts.do(http.MethodGet, "/api/v1/attempts", mia, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode(t, w).Pagination.TotalItems)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, attemptPath, mia, nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, attemptPath, admin, nil).Code)

	w = ts.do(http.MethodGet, attemptPath, leo, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, response.ErrForbidden, errCode(t, w))

	w = ts.do(http.MethodGet, "/api/v1/attempts/999", mia, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	userPath := "/api/v1/users/" + strconv.Itoa(miaID) + "/attempts"
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, userPath, mia, nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, userPath, admin, nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, userPath, leo, nil).Code)

	w = ts.do(http.MethodGet, "/api/v1/users/"+strconv.Itoa(leoID)+"/attempts", leo, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode(t, w).Pagination.TotalItems)
}

func TestMarkupHandler_Render(t *testing.T) {
	ts := newTestServer(t, false)
	token, _ := ts.tokenFor(t, "mia", model.RoleUser)

	w := ts.do(http.MethodPost, "/api/v1/markup/render", token, jsonBody{
		"markdown": "[!num] The city sits on a [T*river].",
		"reveal":   true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var res model.RenderMarkupResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.JSONEq(t, `["river"]`, string(res.Answers))
	assert.Contains(t, res.HTML, `value="river"`)

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPost, "/api/v1/markup/render", "", jsonBody{"markdown": "x"}).Code)
}

func TestSystemHandler_Health(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

// jsonBody is a request payload.
type jsonBody = map[string]any
