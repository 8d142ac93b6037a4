package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/duet/pkg/conversation"
	"github.com/go-go-golems/duet/pkg/state"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closableStore interface {
	Store
	Lister
	Deleter
	Close() error
}

func newSQLiteTestStore(t *testing.T) closableStore {
	t.Helper()
	dsn, err := SQLiteDSNForFile(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	s, err := NewSQLiteStore(dsn)
	require.NoError(t, err)
	return s
}

func storeFactories(t *testing.T) map[string]func(t *testing.T) closableStore {
	ret := map[string]func(t *testing.T) closableStore{
		"memory": func(t *testing.T) closableStore { return NewInMemoryStore() },
		"sqlite": newSQLiteTestStore,
	}
	if addr := os.Getenv("DUET_TEST_REDIS_ADDR"); addr != "" {
		ret["redis"] = func(t *testing.T) closableStore {
			s, err := NewRedisStore(context.Background(), addr, WithRedisKeyPrefix("duet-test:"+t.Name()+":"))
			require.NoError(t, err)
			return s
		}
	}
	return ret
}

func sampleState(t *testing.T, threadID string) *state.ThreadState {
	t.Helper()
	ts := state.NewThreadState(threadID)
	require.NoError(t, ts.ApplyAll(
		state.MutateAppendMessages(conversation.NewUserMessage("What is 9.8 squared?")),
		state.MutateSetReformulatedQuestion("What is 9.80 squared?"),
		state.MutateAppendMessages(conversation.NewAssistantMessage("96.04")),
	))
	return ts
}

func TestStoreLoadUnknownThreadIsEmpty(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer func() { _ = s.Close() }()

			ts, err := s.Load(context.Background(), "never-seen")
			require.NoError(t, err)
			assert.Equal(t, "never-seen", ts.ThreadID)
			assert.True(t, ts.IsEmpty())
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			defer func() { _ = s.Close() }()

			saved := sampleState(t, "t1")
			require.NoError(t, s.Save(ctx, "t1", saved))

			got, err := s.Load(ctx, "t1")
			require.NoError(t, err)
			require.Len(t, got.Messages, 2)
			assert.Equal(t, conversation.RoleUser, got.Messages[0].Role)
			assert.Equal(t, "What is 9.8 squared?", got.Messages[0].Text)
			assert.Equal(t, saved.Messages[0].ID, got.Messages[0].ID)
			assert.Equal(t, conversation.RoleAssistant, got.Messages[1].Role)
			assert.Equal(t, "What is 9.80 squared?", got.ReformulatedQuestion)
			assert.Equal(t, saved.Version, got.Version)
		})
	}
}

func TestStoreIsolatesCallers(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			defer func() { _ = s.Close() }()

			saved := sampleState(t, "t1")
			require.NoError(t, s.Save(ctx, "t1", saved))
			saved.Messages[0].Text = "mutated after save"

			got, err := s.Load(ctx, "t1")
			require.NoError(t, err)
			got.Messages = append(got.Messages, conversation.NewUserMessage("local only"))

			again, err := s.Load(ctx, "t1")
			require.NoError(t, err)
			assert.Len(t, again.Messages, 2)
			assert.Equal(t, "What is 9.8 squared?", again.Messages[0].Text)
		})
	}
}

func TestStoreThreadsAreIndependent(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			defer func() { _ = s.Close() }()

			require.NoError(t, s.Save(ctx, "a", sampleState(t, "a")))

			b, err := s.Load(ctx, "b")
			require.NoError(t, err)
			assert.True(t, b.IsEmpty())

			ids, err := s.ListThreads(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a"}, ids)

			require.NoError(t, s.Delete(ctx, "a"))
			a, err := s.Load(ctx, "a")
			require.NoError(t, err)
			assert.True(t, a.IsEmpty())
		})
	}
}

func TestStoreRejectsEmptyThreadID(t *testing.T) {
	s := NewInMemoryStore()
	_, err := s.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyThreadID)
	assert.ErrorIs(t, s.Save(context.Background(), "", state.NewThreadState("")), ErrEmptyThreadID)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	for name, factory := range storeFactories(t) {
		if name == "redis" {
			continue
		}
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			require.NoError(t, s.Close())

			_, err := s.Load(context.Background(), "t1")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrStoreUnavailable)
			assert.ErrorIs(t, err, ErrStoreClosed)

			err = s.Save(context.Background(), "t1", state.NewThreadState("t1"))
			assert.ErrorIs(t, err, ErrStoreUnavailable)
		})
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dsn, err := SQLiteDSNForFile(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)

	s1, err := NewSQLiteStore(dsn)
	require.NoError(t, err)
	require.NoError(t, s1.Save(ctx, "t1", sampleState(t, "t1")))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(dsn)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	got, err := s2.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)
}

func TestSQLiteDSNForFile(t *testing.T) {
	_, err := SQLiteDSNForFile("")
	assert.Error(t, err)

	dsn, err := SQLiteDSNForFile("/tmp/x.db")
	require.NoError(t, err)
	assert.Contains(t, dsn, "_journal_mode=WAL")
}

func TestSQLiteStoreCorruptPayload(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteTestStore(t)
	defer func() { _ = s.Close() }()

	sq := s.(*SQLiteStore)
	_, err := sq.db.ExecContext(ctx,
		`INSERT INTO thread_checkpoints (thread_id, payload_json) VALUES (?, ?)`,
		"t1", "{not json")
	require.NoError(t, err)

	_, err = s.Load(ctx, "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `decode thread "t1"`)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
	assert.NotNil(t, errors.Cause(err))
}
