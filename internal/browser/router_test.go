package browser_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/John-Robertt/gamefill/internal/browser"
	"github.com/John-Robertt/gamefill/internal/browser/browsertest"
)

func TestRouter_OpenSwitchClose(t *testing.T) {
	ctx := context.Background()
	o := &browsertest.Opener{}

	r, err := browser.Open(ctx, o, zaptest.NewLogger(t),
		browser.RoleTarget, browser.RolePrimary, browser.EnricherRole("Wikipedia"))
	require.NoError(t, err)
	require.Len(t, o.Opened, 3)
	require.True(t, r.Has(browser.EnricherRole("wikipedia")))
	require.Equal(t, browser.Role(""), r.Active())

	p, err := r.Switch(ctx, browser.RolePrimary)
	require.NoError(t, err)
	require.Same(t, o.Opened[1], p)
	require.Equal(t, browser.RolePrimary, r.Active())
	require.Equal(t, 1, o.Opened[1].Activations)
	require.Equal(t, 0, o.Opened[0].Activations)

	ids := map[string]bool{}
	for _, s := range r.Sessions() {
		require.NotEmpty(t, s.ID)
		ids[s.ID] = true
	}
	require.Len(t, ids, 3)

	_, err = r.Switch(ctx, browser.EnricherRole("giantbomb"))
	require.Error(t, err)

	require.NoError(t, r.Close())
	for _, p := range o.Opened {
		require.True(t, p.Closed)
	}
	require.False(t, r.Has(browser.RoleTarget))
}

func TestRouter_OpenFailureClosesOpenedWindows(t *testing.T) {
	o := &browsertest.Opener{FailAt: 2}

	_, err := browser.Open(context.Background(), o, nil, browser.RoleTarget, browser.RolePrimary)
	require.Error(t, err)
	require.Len(t, o.Opened, 1)
	require.True(t, o.Opened[0].Closed)
}

func TestRouter_DuplicateRole(t *testing.T) {
	o := &browsertest.Opener{}

	_, err := browser.Open(context.Background(), o, nil, browser.RoleTarget, browser.RoleTarget)
	require.Error(t, err)
	require.True(t, o.Opened[0].Closed)
}
