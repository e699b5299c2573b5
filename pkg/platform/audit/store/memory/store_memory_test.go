package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "ekyc/pkg/platform/audit"
)

func TestListRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, audit.Event{Subject: "a", Action: "first", Timestamp: base}))
	require.NoError(t, s.Append(ctx, audit.Event{Subject: "b", Action: "third", Timestamp: base.Add(2 * time.Minute)}))
	require.NoError(t, s.Append(ctx, audit.Event{Subject: "a", Action: "second", Timestamp: base.Add(time.Minute)}))

	recent, err := s.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Action)
	assert.Equal(t, "second", recent[1].Action)

	bySubject, err := s.ListBySubject(ctx, "a")
	require.NoError(t, err)
	require.Len(t, bySubject, 2)
	assert.Equal(t, "first", bySubject[0].Action)
	assert.NotEmpty(t, bySubject[0].ID)

	s.Clear()
	all, err := s.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}
