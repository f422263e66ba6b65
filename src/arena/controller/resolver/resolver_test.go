package resolver

import (
	"context"
	"testing"

	"github.com/devarena/arena/src/arena/factory"
	"github.com/devarena/arena/src/arena/internal/errors"
	"github.com/devarena/arena/src/arena/repository/store/storemock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const _repoURL = "https://git.example/alice/linked-list"

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves owner session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		storeMock := storemock.NewMockStore(ctrl)
		session := factory.Session("tok")
		repo := factory.Repository(session.UserID, _repoURL)

		storeMock.EXPECT().FindRepository(gomock.Any(), _repoURL).Return(repo, nil)
		storeMock.EXPECT().FindSessionByUser(gomock.Any(), session.UserID).Return(session, nil)

		c := New(Params{Store: storeMock, Logger: zap.NewNop().Sugar()})
		res, err := c.Resolve(ctx, _repoURL)
		require.NoError(t, err)
		assert.Equal(t, session, res.Session)
		assert.Equal(t, repo, res.Repository)
	})

	t.Run("empty url is malformed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := New(Params{Store: storemock.NewMockStore(ctrl), Logger: zap.NewNop().Sugar()})
		_, err := c.Resolve(ctx, "")
		assert.ErrorIs(t, err, errors.MissingRepoURLError)
		assert.Equal(t, errors.KindMalformed, errors.KindOf(err))
	})

	t.Run("unknown repository", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		storeMock := storemock.NewMockStore(ctrl)
		storeMock.EXPECT().FindRepository(gomock.Any(), _repoURL).Return(nil, &errors.RepositoryNotFoundError{URL: _repoURL})

		c := New(Params{Store: storeMock, Logger: zap.NewNop().Sugar()})
		_, err := c.Resolve(ctx, _repoURL)
		var re *errors.ResolutionError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, _repoURL, re.RepoURL)
	})

	t.Run("owner has no live session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		storeMock := storemock.NewMockStore(ctrl)
		repo := factory.Repository(factory.UUID(), _repoURL)
		storeMock.EXPECT().FindRepository(gomock.Any(), _repoURL).Return(repo, nil)
		storeMock.EXPECT().FindSessionByUser(gomock.Any(), repo.UserID).Return(nil, &errors.SessionNotFoundError{UserID: repo.UserID})

		c := New(Params{Store: storeMock, Logger: zap.NewNop().Sugar()})
		_, err := c.Resolve(ctx, _repoURL)
		assert.Equal(t, errors.KindResolution, errors.KindOf(err))
	})

	t.Run("store failure is not a resolution error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		storeMock := storemock.NewMockStore(ctrl)
		storeMock.EXPECT().FindRepository(gomock.Any(), _repoURL).Return(nil, errors.New("database is locked"))

		c := New(Params{Store: storeMock, Logger: zap.NewNop().Sugar()})
		_, err := c.Resolve(ctx, _repoURL)
		require.Error(t, err)
		assert.True(t, errors.IsRetryable(err))
	})
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
