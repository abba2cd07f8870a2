package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddComment(t *testing.T) {
	s := newTestStore(t, withClock(fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))))
	ctx := context.Background()
	issue := createIssue(t, s, "proj-1", "Discuss")

	id1, err := s.AddComment(ctx, issue.ID, "alice", "First")
	require.NoError(t, err)
	id2, err := s.AddComment(ctx, issue.ID, "bob", "**Second**")
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	comments, err := s.ListComments(ctx, issue.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "alice", comments[0].User)
	assert.Equal(t, "First", comments[0].Body)
	assert.Equal(t, "**Second**", comments[1].Body)
	assert.True(t, comments[0].CreatedAt.Before(comments[1].CreatedAt))

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CommentCount)
}

func TestAddComment_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	issue := createIssue(t, s, "proj-1", "Discuss")

	_, err := s.AddComment(ctx, issue.ID, "alice", "   ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.AddComment(ctx, "missing", "alice", "hello")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CommentCount)
}

func TestListComments_Empty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	issue := createIssue(t, s, "proj-1", "Quiet")

	comments, err := s.ListComments(ctx, issue.ID)
	require.NoError(t, err)
	assert.NotNil(t, comments)
	assert.Empty(t, comments)

	_, err = s.ListComments(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
