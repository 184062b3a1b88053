package issues

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fachebot/meeting-issue-bot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRegistrar struct {
	mock.Mock
}

func (m *mockRegistrar) Register(ctx context.Context, issue domain.GeneratedIssue) error {
	args := m.Called(ctx, issue)
	return args.Error(0)
}

func newIssue(id, title string) domain.GeneratedIssue {
	return domain.GeneratedIssue{
		ID:             id,
		Title:          title,
		Priority:       domain.PriorityMedium,
		Assignee:       "김개발",
		EstimatedHours: 4,
		Tags:           []string{"general"},
		MeetingRecord:  domain.MeetingRecord{Topic: "회의", Participants: []string{"김개발"}},
	}
}

func ids(entries []Entry) []string {
	list := make([]string, 0, len(entries))
	for _, e := range entries {
		list = append(list, e.ID)
	}
	return list
}

func TestBoard_PrependNewestFirst(t *testing.T) {
	b := NewBoard(time.Hour, nil, nil)
	defer b.Close()

	require.NoError(t, b.Prepend([]domain.GeneratedIssue{newIssue("a", "A"), newIssue("b", "B")}))
	require.NoError(t, b.Prepend([]domain.GeneratedIssue{newIssue("c", "C")}))

	assert.Equal(t, []string{"c", "a", "b"}, ids(b.List()))
	for _, e := range b.List() {
		assert.Equal(t, StatusPending, e.Status)
	}
}

func TestBoard_PrependRejects(t *testing.T) {
	tests := []struct {
		name  string
		batch []domain.GeneratedIssue
	}{
		{name: "与已有 ID 重复", batch: []domain.GeneratedIssue{newIssue("a", "dup")}},
		{name: "批内 ID 重复", batch: []domain.GeneratedIssue{newIssue("x", "X"), newIssue("x", "X")}},
		{name: "缺少标题", batch: []domain.GeneratedIssue{newIssue("y", "")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBoard(time.Hour, nil, nil)
			defer b.Close()
			require.NoError(t, b.Prepend([]domain.GeneratedIssue{newIssue("a", "A")}))

			err := b.Prepend(tt.batch)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, []string{"a"}, ids(b.List()), "失败时看板不变")
		})
	}
}

func TestBoard_ListReturnsCopies(t *testing.T) {
	b := NewBoard(time.Hour, nil, nil)
	defer b.Close()
	require.NoError(t, b.Prepend([]domain.GeneratedIssue{newIssue("a", "A")}))

	list := b.List()
	list[0].Title = "changed"
	list[0].Tags[0] = "changed"

	got, err := b.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)
	assert.Equal(t, []string{"general"}, got.Tags)
}

func TestBoard_Update(t *testing.T) {
	b := NewBoard(time.Hour, nil, nil)
	defer b.Close()
	require.NoError(t, b.Prepend([]domain.GeneratedIssue{newIssue("a", "A"), newIssue("b", "B")}))

	edited, err := b.Get("a")
	require.NoError(t, err)
	edited.Title = "수정된 제목"
	edited.Priority = domain.PriorityCritical

	require.NoError(t, b.Update(edited))
	require.NoError(t, b.Update(edited), "重复保存结果相同")

	got, err := b.Get("a")
	require.NoError(t, err)
	assert.Equal(t, edited, got)
	assert.Equal(t, []string{"a", "b"}, ids(b.List()), "编辑不改变顺序")

	_, err = b.Get("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, b.Update(newIssue("missing", "M")), domain.ErrNotFound)

	invalid := edited
	invalid.Priority = "urgent"
	assert.ErrorIs(t, b.Update(invalid), domain.ErrValidation)
}

func TestBoard_UpdateWithoutChangesIsIdempotent(t *testing.T) {
	b := NewBoard(time.Hour, nil, nil)
	defer b.Close()

	issues := []domain.GeneratedIssue{newIssue("a", "A"), newIssue("b", "B")}
	for i := range issues {
		issues[i].CreatedAt = time.Date(2024, 7, 2, 10, 30, 0, 123, time.UTC)
		issues[i].DueDate = "2024-07-09"
		issues[i].Source = domain.Source{Type: domain.SourceText, Reference: "직접 입력"}
	}
	require.NoError(t, b.Prepend(issues))

	before, err := json.Marshal(b.List())
	require.NoError(t, err)

	issue, err := b.Get("b")
	require.NoError(t, err)
	require.NoError(t, b.Update(issue))

	after, err := json.Marshal(b.List())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestBoard_RegisterRemovesExactlyOne(t *testing.T) {
	registrar := new(mockRegistrar)
	registrar.On("Register", mock.Anything, mock.MatchedBy(func(i domain.GeneratedIssue) bool { return i.ID == "b" })).Return(nil).Once()

	b := NewBoard(20*time.Millisecond, registrar, nil)
	defer b.Close()
	require.NoError(t, b.Prepend([]domain.GeneratedIssue{newIssue("a", "A"), newIssue("b", "B"), newIssue("c", "C")}))

	assert.True(t, b.Register("b"))
	assert.False(t, b.Register("b"), "登记中重复点击不生效")

	list := b.List()
	assert.Equal(t, StatusRegistering, list[1].Status)
	assert.Equal(t, RegisteredMessage, list[1].Message)

	edited := newIssue("b", "edit")
	assert.ErrorIs(t, b.Update(edited), domain.ErrBusy)

	assert.Eventually(t, func() bool { return b.Len() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "c"}, ids(b.List()))
	registrar.AssertExpectations(t)
}

func TestBoard_RegisterMissingIsNoop(t *testing.T) {
	b := NewBoard(time.Millisecond, nil, nil)
	defer b.Close()
	require.NoError(t, b.Prepend([]domain.GeneratedIssue{newIssue("a", "A")}))

	assert.False(t, b.Register("missing"))
	assert.Equal(t, []string{"a"}, ids(b.List()))
}

func TestBoard_RegisterAgainAfterRemovalIsNoop(t *testing.T) {
	registrar := new(mockRegistrar)
	registrar.On("Register", mock.Anything, mock.Anything).Return(nil)

	b := NewBoard(time.Millisecond, registrar, nil)
	defer b.Close()
	require.NoError(t, b.Prepend([]domain.GeneratedIssue{newIssue("a", "A")}))

	assert.True(t, b.Register("a"))
	assert.Eventually(t, func() bool { return b.Len() == 0 }, time.Second, time.Millisecond)

	assert.False(t, b.Register("a"), "已移除的 issue 再次登记不生效")
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, b.Len())
	registrar.AssertNumberOfCalls(t, "Register", 1)
}

func TestBoard_RegisterFailureKeepsIssue(t *testing.T) {
	registrar := new(mockRegistrar)
	registrar.On("Register", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	b := NewBoard(5*time.Millisecond, registrar, nil)
	defer b.Close()
	require.NoError(t, b.Prepend([]domain.GeneratedIssue{newIssue("a", "A")}))

	require.True(t, b.Register("a"))
	assert.Eventually(t, func() bool {
		list := b.List()
		return len(list) == 1 && list[0].Status == StatusPending
	}, time.Second, 5*time.Millisecond)
	assert.True(t, b.Register("a"), "失败后可以重新登记")
}

type countingRegistrar struct {
	n atomic.Int32
}

func (r *countingRegistrar) Register(ctx context.Context, issue domain.GeneratedIssue) error {
	r.n.Add(1)
	return nil
}

func TestBoard_CloseStopsPendingRegistrations(t *testing.T) {
	registrar := new(countingRegistrar)
	b := NewBoard(50*time.Millisecond, registrar, nil)
	require.NoError(t, b.Prepend([]domain.GeneratedIssue{newIssue("a", "A")}))

	require.True(t, b.Register("a"))
	b.Close()
	assert.False(t, b.Register("a"))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), registrar.n.Load())
	assert.Equal(t, 1, b.Len())
}
