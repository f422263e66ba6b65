package progress

import (
	"context"
	"testing"

	"github.com/devarena/arena/src/arena/entity"
	"github.com/devarena/arena/src/arena/factory"
	"github.com/devarena/arena/src/arena/internal/errors"
	"github.com/devarena/arena/src/arena/repository/store/storemock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAdvance(t *testing.T) {
	ctx := context.Background()
	user, challenge := factory.UUID(), factory.UUID()

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		storeMock := storemock.NewMockStore(ctrl)
		want := factory.Progress(user, challenge, entity.ProgressInProgress, 1)
		storeMock.EXPECT().AdvanceProgress(gomock.Any(), user, challenge).Return(want, nil)
		storeMock.EXPECT().LeaderboardScore(gomock.Any(), user).Return(3, nil)

		core, logs := observer.New(zapcore.InfoLevel)
		testScope := tally.NewTestScope("testing", nil)
		c := New(Params{Store: storeMock, Logger: zap.New(core).Sugar(), Stats: testScope})

		got, err := c.Advance(ctx, user, challenge)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		entries := logs.FilterMessage("progress advanced").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "in_progress", entries[0].ContextMap()["status"])
		assert.Equal(t, int64(1), entries[0].ContextMap()["current_step"])
		assert.Equal(t, int64(3), entries[0].ContextMap()["score"])

		var advanced int64
		for _, c := range testScope.Snapshot().Counters() {
			if c.Name() == "testing.progress.advanced" {
				advanced += c.Value()
				assert.Equal(t, "in_progress", c.Tags()["status"])
			}
		}
		assert.Equal(t, int64(1), advanced)
	})

	t.Run("score unavailable", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		storeMock := storemock.NewMockStore(ctrl)
		want := factory.Progress(user, challenge, entity.ProgressCompleted, 2)
		storeMock.EXPECT().AdvanceProgress(gomock.Any(), user, challenge).Return(want, nil)
		storeMock.EXPECT().LeaderboardScore(gomock.Any(), user).Return(0, errors.New("database is locked"))

		core, logs := observer.New(zapcore.InfoLevel)
		c := New(Params{Store: storeMock, Logger: zap.New(core).Sugar(), Stats: tally.NoopScope})

		got, err := c.Advance(ctx, user, challenge)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, 1, logs.FilterMessage("reading leaderboard score").Len())

		entries := logs.FilterMessage("progress advanced").All()
		require.Len(t, entries, 1)
		assert.NotContains(t, entries[0].ContextMap(), "score")
	})

	t.Run("store failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		storeMock := storemock.NewMockStore(ctrl)
		storeMock.EXPECT().AdvanceProgress(gomock.Any(), user, challenge).Return(nil, &errors.ChallengeNotFoundError{ID: challenge})

		c := New(Params{Store: storeMock, Logger: zap.NewNop().Sugar(), Stats: tally.NoopScope})
		_, err := c.Advance(ctx, user, challenge)
		var nf *errors.ChallengeNotFoundError
		assert.ErrorAs(t, err, &nf)
	})
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
