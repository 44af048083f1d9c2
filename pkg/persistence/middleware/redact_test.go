package middleware_test

import (
	"context"
	"testing"

	"github.com/delta5-hq/d5-sub001/pkg/adapters/memory"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewRedactMiddleware([]string{"password", `^ssn`})
	require.NoError(t, err)
	store := mw(underlying)
	ctx := context.Background()

	snap := domain.NewSnapshot()
	snap.Nodes["root"] = &domain.Node{ID: "root", Title: "notes"}
	snap.Files["readme"] = "public"
	snap.Files["db_password"] = "secret123"
	snap.Files["ssn_list"] = "999-99-9999"

	require.NoError(t, store.Save(ctx, "wf", snap))
	assert.Equal(t, "secret123", snap.Files["db_password"], "caller snapshot must not change")

	stored, err := underlying.Load(ctx, "wf")
	require.NoError(t, err)
	assert.Equal(t, "public", stored.Files["readme"])
	assert.Equal(t, middleware.Mask, stored.Files["db_password"])
	assert.Equal(t, middleware.Mask, stored.Files["ssn_list"])
	assert.Equal(t, "notes", stored.Nodes["root"].Title)
}

func TestRedactMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewRedactMiddleware([]string{"("})
	assert.Error(t, err)
}
