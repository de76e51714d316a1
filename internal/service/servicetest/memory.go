// Package servicetest provides in-memory implementations of the service
// store interfaces for tests.
package servicetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stemsi/ielts-backend/internal/model"
	"github.com/stemsi/ielts-backend/internal/repository"
)

type Exams struct {
	mu     sync.Mutex
	byID   map[int]*model.Exam
	nextID int
	InUse  map[int]bool
}

func NewExams(exams ...model.Exam) *Exams {
	f := &Exams{byID: map[int]*model.Exam{}, InUse: map[int]bool{}, nextID: 100}
	for i := range exams {
		e := exams[i]
		e.Items = nil
		f.byID[e.ID] = &e
	}
	return f
}

func (f *Exams) GetByID(_ context.Context, id int) (*model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (f *Exams) List(_ context.Context, limit, offset int) ([]model.Exam, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int, 0, len(f.byID))
	for id := range f.byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := []model.Exam{}
	for i := offset; i < len(ids) && i < offset+limit; i++ {
		out = append(out, *f.byID[ids[i]])
	}
	return out, len(ids), nil
}

func (f *Exams) Create(_ context.Context, e *model.Exam) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e.ID = f.nextID
	e.CreatedAt = time.Now()
	cp := *e
	f.byID[e.ID] = &cp
	return nil
}

func (f *Exams) Update(_ context.Context, e *model.Exam) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[e.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *e
	f.byID[e.ID] = &cp
	return nil
}

func (f *Exams) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return pgx.ErrNoRows
	}
	if f.InUse[id] {
		return repository.ErrExamInUse
	}
	delete(f.byID, id)
	return nil
}

type Items struct {
	mu     sync.Mutex
	items  map[int]*model.SkillItem
	nextID int
	lists  int
}

func NewItems(items ...model.SkillItem) *Items {
	f := &Items{items: map[int]*model.SkillItem{}, nextID: 1000}
	for i := range items {
		it := items[i]
		f.items[it.ID] = &it
	}
	return f
}

// Lists reports how many ListByExam calls reached the store.
func (f *Items) Lists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func (f *Items) ListByExam(_ context.Context, examID int, kind model.SkillKind) ([]model.SkillItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	out := []model.SkillItem{}
	for _, it := range f.items {
		if it.ExamID == examID && (kind == "" || it.Kind == kind) {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *Items) GetByID(_ context.Context, id int) (*model.SkillItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *it
	return &cp, nil
}

func (f *Items) Create(_ context.Context, it *model.SkillItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	it.ID = f.nextID
	cp := *it
	f.items[it.ID] = &cp
	return nil
}

func (f *Items) Update(_ context.Context, it *model.SkillItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[it.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *it
	f.items[it.ID] = &cp
	return nil
}

func (f *Items) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.items, id)
	return nil
}

type Attempts struct {
	mu     sync.Mutex
	Stored []model.Attempt
	nextID int64
}

func (f *Attempts) Create(_ context.Context, a *model.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	a.ID = f.nextID
	f.Stored = append(f.Stored, *a)
	return nil
}

func (f *Attempts) GetByID(_ context.Context, id int64) (*model.AttemptResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.Stored {
		if f.Stored[i].ID == id {
			return model.NewAttemptResult(&f.Stored[i], &model.Exam{ID: f.Stored[i].ExamID}), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *Attempts) ListByUser(_ context.Context, userID, limit, offset int) ([]model.AttemptResult, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var mine []model.AttemptResult
	for i := len(f.Stored) - 1; i >= 0; i-- {
		if f.Stored[i].UserID == userID {
			mine = append(mine, *model.NewAttemptResult(&f.Stored[i], &model.Exam{ID: f.Stored[i].ExamID}))
		}
	}
	out := []model.AttemptResult{}
	for i := offset; i < len(mine) && i < offset+limit; i++ {
		out = append(out, mine[i])
	}
	return out, len(mine), nil
}

func (f *Attempts) CountByExam(_ context.Context, examID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.Stored {
		if a.ExamID == examID {
			n++
		}
	}
	return n, nil
}

type Cache struct {
	mu          sync.Mutex
	exams       map[int]*model.Exam
	Invalidated []int
}

func NewCache() *Cache {
	return &Cache{exams: map[int]*model.Exam{}}
}

func (f *Cache) Get(_ context.Context, id int) (*model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exams[id], nil
}

func (f *Cache) Set(_ context.Context, e *model.Exam) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exams[e.ID] = e
	return nil
}

func (f *Cache) Invalidate(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.exams, id)
	f.Invalidated = append(f.Invalidated, id)
	return nil
}

type Queue struct {
	mu   sync.Mutex
	Jobs []*model.FeedbackJob
	Err  error
}

func (f *Queue) Enqueue(_ context.Context, job *model.FeedbackJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Jobs = append(f.Jobs, job)
	return nil
}

type Users struct {
	mu     sync.Mutex
	byID   map[int]*model.User
	nextID int
}

func NewUsers() *Users {
	return &Users{byID: map[int]*model.User{}}
}

func (f *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *Users) GetByID(_ context.Context, id int) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (f *Users) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.Email == u.Email || existing.Username == u.Username {
			return repository.ErrDuplicateUser
		}
	}
	f.nextID++
	u.ID = f.nextID
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

type Sessions struct {
	mu   sync.Mutex
	live map[string]bool
}

func NewSessions() *Sessions {
	return &Sessions{live: map[string]bool{}}
}

func sessionKey(userID int, jti string) string {
	return fmt.Sprintf("%d:%s", userID, jti)
}

func (f *Sessions) Save(_ context.Context, userID int, jti string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[sessionKey(userID, jti)] = true
	return nil
}

func (f *Sessions) Exists(_ context.Context, userID int, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[sessionKey(userID, jti)], nil
}

func (f *Sessions) Delete(_ context.Context, userID int, jti string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.live, sessionKey(userID, jti))
	return nil
}

type Feedback struct {
	mu   sync.Mutex
	Rows []model.WritingFeedback
}

func (f *Feedback) Upsert(_ context.Context, fb *model.WritingFeedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.Rows {
		if f.Rows[i].UserID == fb.UserID && f.Rows[i].SkillID == fb.SkillID {
			f.Rows[i] = *fb
			return nil
		}
	}
	f.Rows = append(f.Rows, *fb)
	return nil
}

func (f *Feedback) ListByExamUser(_ context.Context, examID, userID int) ([]model.WritingFeedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.WritingFeedback{}
	for _, r := range f.Rows {
		if r.ExamID == examID && r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}
