package dummydb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/notice"
)

func TestTransactor(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)
	tx := NewTransactor(db)
	notices := NewNoticeRepository(db)
	articles := NewArticleRepository(db)
	ctx := context.Background()
	errBoom := errors.New("boom")
	n := notice.Notice{Protocol: "Prot. n. 1", State: notice.StateDraft}

	err = tx.WithinTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		require.NoError(t, notices.Create(ctx, n, exec))
		_, err := articles.Create(ctx, notice.Article{NoticeProtocol: n.Protocol, Initial: "A", Text: "a"}, exec)
		require.NoError(t, err)
		return errBoom
	})
	assert.Equal(t, errBoom, err)

	exists, err := notices.Exists(ctx, n.Protocol)
	require.NoError(t, err)
	assert.False(t, exists)
	got, err := articles.FindByNotice(ctx, n.Protocol)
	require.NoError(t, err)
	assert.Empty(t, got)

	err = tx.WithinTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		return notices.Create(ctx, n, exec)
	})
	require.NoError(t, err)
	exists, err = notices.Exists(ctx, n.Protocol)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFailOn(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)
	articles := NewArticleRepository(db)
	ctx := context.Background()

	db.FailOn("articles.FindByNotice", errors.New("disk on fire"))
	_, err = articles.FindByNotice(ctx, "Prot. n. 1")
	assert.True(t, core.IsPersistence(err), "got %v", err)

	db.FailOn("articles.FindByNotice", nil)
	_, err = articles.FindByNotice(ctx, "Prot. n. 1")
	assert.NoError(t, err)
}
