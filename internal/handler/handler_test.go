package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/ielts-backend/internal/config"
	"github.com/stemsi/ielts-backend/internal/database"
	"github.com/stemsi/ielts-backend/internal/middleware"
	"github.com/stemsi/ielts-backend/internal/model"
	"github.com/stemsi/ielts-backend/internal/response"
	"github.com/stemsi/ielts-backend/internal/service"
	"github.com/stemsi/ielts-backend/internal/service/servicetest"
	"github.com/stemsi/ielts-backend/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

func strPtr(s string) *string { return &s }

type testServer struct {
	engine   *gin.Engine
	auth     *service.AuthService
	users    *servicetest.Users
	attempts *servicetest.Attempts
	queue    *servicetest.Queue
	feedback *servicetest.Feedback
}

func newTestServer(t *testing.T, llmEnabled bool) *testServer {
	t.Helper()
	log := zerolog.Nop()

	exams := servicetest.NewExams(
		model.Exam{ID: 1, Name: "Listening Mock", Type: model.ExamTypeListening},
		model.Exam{ID: 3, Name: "Writing Mock", Type: model.ExamTypeWriting},
	)
	items := servicetest.NewItems(
		model.SkillItem{
			ID: 20, ExamID: 1, Kind: model.SkillListening,
			QuestionMarkup: "[!num] Meet by the [T*river] near the [T*bridge].",
			QuestionHTML:   strPtr(`<p>1. Meet by the <input type="text" class="inlineTextbox" name="q1_text" /></p>`),
			CorrectAnswer:  strPtr(`["river","bridge"]`),
		},
		model.SkillItem{ID: 21, ExamID: 1, Kind: model.SkillReading, CorrectAnswer: strPtr(`["A"]`)},
		model.SkillItem{ID: 30, ExamID: 3, Kind: model.SkillWriting, Content: "Describe the chart."},
	)
	ts := &testServer{
		users:    servicetest.NewUsers(),
		attempts: &servicetest.Attempts{},
		queue:    &servicetest.Queue{},
		feedback: &servicetest.Feedback{},
	}
	cache := servicetest.NewCache()

	cfg := &config.Config{JWTSecret: "handler-secret", JWTExpiry: time.Hour, BcryptCost: bcrypt.MinCost}
	ts.auth = service.NewAuthService(cfg, ts.users, servicetest.NewSessions(), log)
	examSvc := service.NewExamService(exams, items, ts.attempts, cache, log)
	itemSvc := service.NewSkillItemService(exams, items, ts.attempts, cache, log)
	feedbackSvc := service.NewFeedbackService(exams, items, ts.feedback, ts.queue, llmEnabled, log)

	authH := NewAuthHandler(ts.auth)
	examH := NewExamHandler(examSvc, itemSvc)
	adminH := NewAdminHandler(examSvc, itemSvc)
	markupH := NewMarkupHandler(itemSvc)
	writingH := NewWritingHandler(feedbackSvc)
	systemH := NewSystemHandler(staticChecker{database.Status{Postgres: "ok", Redis: "ok"}}, nil)

	r := gin.New()
	r.Use(response.RequestIDMiddleware())
	r.GET("/health", systemH.Health)

	api := r.Group("/api/v1")
	api.POST("/auth/register", authH.Register)
	api.POST("/auth/login", authH.Login)
	api.GET("/exams", examH.ListExams)
	api.GET("/exams/:id", examH.GetExam)
	api.GET("/exams/:id/items", examH.ListItems)

	user := api.Group("", middleware.RequireAuth(ts.auth), middleware.CheckSession(ts.auth))
	user.GET("/auth/me", authH.Me)
	user.POST("/auth/logout", authH.Logout)
	user.POST("/exams/submit", examH.SubmitAttempt)
	user.GET("/attempts", examH.ListMyAttempts)
	user.GET("/attempts/:attempt_id", examH.GetAttempt)
	user.GET("/users/:user_id/attempts", examH.ListUserAttempts)
	user.POST("/markup/render", markupH.Render)
	user.POST("/writing/grade", writingH.Grade)
	user.GET("/writing/feedback/:exam_id", writingH.Feedback)

	admin := user.Group("/admin", middleware.RequireAdmin())
	admin.GET("/exams/:id", adminH.GetExam)
	admin.POST("/exams", adminH.CreateExam)
	admin.PUT("/exams/:id", adminH.UpdateExam)
	admin.DELETE("/exams/:id", adminH.DeleteExam)
	admin.POST("/exams/:id/items", adminH.CreateItem)
	admin.PUT("/items/:item_id", adminH.UpdateItem)
	admin.DELETE("/items/:item_id", adminH.DeleteItem)

	ts.engine = r
	return ts
}

type staticChecker struct{ st database.Status }

func (s staticChecker) Check(context.Context) database.Status { return s.st }

// tokenFor creates an account with the given role and returns a live token.
func (ts *testServer) tokenFor(t *testing.T, username string, role model.Role) (string, int) {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com", Role: role}
	require.NoError(t, ts.users.Create(context.Background(), u))
	token, err := ts.auth.GenerateToken(context.Background(), u)
	require.NoError(t, err)
	return token, u.ID
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data       json.RawMessage      `json:"data"`
	Error      *response.ErrorBody  `json:"error"`
	Pagination *response.Pagination `json:"pagination"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	env := decode(t, w)
	require.NotNil(t, env.Error, w.Body.String())
	return env.Error.Code
}
