package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/ielts-backend/internal/model"
	"github.com/stemsi/ielts-backend/internal/service/servicetest"
)

const riverMarkup = "## Passage\n[!num] The city sits on a [T*river].\n[!num] It was founded in [D][ ]1801[*]1850[/D]."

func newItemFixture() (*SkillItemService, *servicetest.Items, *servicetest.Attempts, *servicetest.Cache) {
	items := fixtureItems()
	attempts := &servicetest.Attempts{}
	cache := servicetest.NewCache()
	return NewSkillItemService(fixtureExams(), items, attempts, cache, zerolog.Nop()), items, attempts, cache
}

func TestSkillItemService_CreateCompilesMarkup(t *testing.T) {
	svc, _, _, cache := newItemFixture()

	it, err := svc.Create(context.Background(), 1, &model.CreateSkillItemRequest{
		Kind:           "Reading",
		QuestionMarkup: riverMarkup,
		DisplayOrder:   4,
	})
	require.NoError(t, err)
	assert.Equal(t, model.SkillReading, it.Kind)
	require.NotNil(t, it.CorrectAnswer)
	assert.JSONEq(t, `["river","1850"]`, *it.CorrectAnswer)
	require.NotNil(t, it.QuestionHTML)
	assert.Contains(t, *it.QuestionHTML, `<span class="numberIndex">Q2.</span>`)
	assert.NotContains(t, *it.QuestionHTML, "river")
	assert.Contains(t, cache.Invalidated, 1)
}

func TestSkillItemService_CreateKeepsExplicitAnswers(t *testing.T) {
	svc, _, _, _ := newItemFixture()

	it, err := svc.Create(context.Background(), 1, &model.CreateSkillItemRequest{
		Kind:           "reading",
		QuestionMarkup: riverMarkup,
		CorrectAnswer:  strPtr(`["stream"]`),
	})
	require.NoError(t, err)
	assert.Equal(t, `["stream"]`, *it.CorrectAnswer)
	require.NotNil(t, it.QuestionHTML)
}

func TestSkillItemService_CreateUnknownExam(t *testing.T) {
	svc, _, _, _ := newItemFixture()

	_, err := svc.Create(context.Background(), 404, &model.CreateSkillItemRequest{Kind: "reading"})
	assert.ErrorIs(t, err, ErrExamNotFound)
}

func TestSkillItemService_ListByExam(t *testing.T) {
	svc, _, _, _ := newItemFixture()
	ctx := context.Background()

	all, err := svc.ListByExam(ctx, 1, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	listening, err := svc.ListByExam(ctx, 1, "LISTENING")
	require.NoError(t, err)
	require.Len(t, listening, 1)
	assert.Equal(t, 12, listening[0].ID)

	_, err = svc.ListByExam(ctx, 404, "")
	assert.ErrorIs(t, err, ErrExamNotFound)
}

func TestSkillItemService_UpdateLockedAfterAttempts(t *testing.T) {
	svc, _, attempts, _ := newItemFixture()
	ctx := context.Background()
	attempts.Stored = append(attempts.Stored, model.Attempt{ID: 1, ExamID: 1, UserID: 7})

	_, err := svc.Update(ctx, 10, &model.UpdateSkillItemRequest{CorrectAnswer: strPtr(`["Z"]`)})
	assert.ErrorIs(t, err, ErrItemLocked)

	order := 9
	it, err := svc.Update(ctx, 10, &model.UpdateSkillItemRequest{DisplayOrder: &order})
	require.NoError(t, err)
	assert.Equal(t, 9, it.DisplayOrder)

	assert.ErrorIs(t, svc.Delete(ctx, 10), ErrItemLocked)
}

func TestSkillItemService_UpdateRecompiles(t *testing.T) {
	svc, items, _, _ := newItemFixture()
	ctx := context.Background()

	src := riverMarkup
	it, err := svc.Update(ctx, 11, &model.UpdateSkillItemRequest{QuestionMarkup: &src})
	require.NoError(t, err)
	assert.JSONEq(t, `["river","1850"]`, *it.CorrectAnswer)

	stored, err := items.GetByID(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, src, stored.QuestionMarkup)

	_, err = svc.Update(ctx, 999, &model.UpdateSkillItemRequest{QuestionMarkup: &src})
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestSkillItemService_UpdateClearingMarkupDropsDerivedAnswers(t *testing.T) {
	svc, items, _, _ := newItemFixture()
	ctx := context.Background()

	src := riverMarkup
	_, err := svc.Update(ctx, 11, &model.UpdateSkillItemRequest{QuestionMarkup: &src})
	require.NoError(t, err)

	empty := ""
	it, err := svc.Update(ctx, 11, &model.UpdateSkillItemRequest{QuestionMarkup: &empty})
	require.NoError(t, err)
	assert.Nil(t, it.CorrectAnswer)
	assert.Nil(t, it.QuestionHTML)

	stored, err := items.GetByID(ctx, 11)
	require.NoError(t, err)
	assert.Empty(t, stored.QuestionMarkup)
	assert.Nil(t, stored.CorrectAnswer)

	it, err = svc.Update(ctx, 11, &model.UpdateSkillItemRequest{QuestionMarkup: &empty, CorrectAnswer: strPtr(`["manual"]`)})
	require.NoError(t, err)
	require.NotNil(t, it.CorrectAnswer)
	assert.JSONEq(t, `["manual"]`, *it.CorrectAnswer)
}

func TestSkillItemService_Delete(t *testing.T) {
	svc, items, _, cache := newItemFixture()
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, 40))
	_, err := items.GetByID(ctx, 40)
	assert.Error(t, err)
	assert.Contains(t, cache.Invalidated, 4)

	assert.ErrorIs(t, svc.Delete(ctx, 40), ErrItemNotFound)
}

func TestSkillItemService_Preview(t *testing.T) {
	svc, _, _, _ := newItemFixture()

	hidden, err := svc.Preview(riverMarkup, false)
	require.NoError(t, err)
	assert.JSONEq(t, `["river","1850"]`, string(hidden.Answers))
	assert.Contains(t, hidden.HTML, `name="q1_text"`)

	shown, err := svc.Preview(riverMarkup, true)
	require.NoError(t, err)
	assert.Contains(t, shown.HTML, `value="river"`)
	assert.Contains(t, shown.HTML, "selected")

	empty, err := svc.Preview("", false)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(empty.Answers))
}
