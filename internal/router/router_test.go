package router

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/laisky-cms-admin/internal/liststate"
)

type fakeAuth struct {
	on atomic.Bool
}

func (a *fakeAuth) IsAuthenticated() bool { return a.on.Load() }

func loc(t *testing.T, raw string) liststate.Location {
	t.Helper()
	l, err := liststate.ParseLocation(raw)
	require.NoError(t, err)
	return l
}

func TestResolve_Gate(t *testing.T) {
	auth := new(fakeAuth)
	r := New(auth)

	m := r.Resolve(loc(t, "/category?page=2"))
	require.Equal(t, PathLogin, m.Route.Pattern)
	require.Equal(t, PathLogin, m.Location.Path)
	require.NotNil(t, m.RedirectedFrom)
	require.Equal(t, "/category?page=2", m.RedirectedFrom.String())

	m = r.Resolve(loc(t, "/login"))
	require.Equal(t, PathLogin, m.Route.Pattern)
	require.Nil(t, m.RedirectedFrom)

	auth.on.Store(true)
	m = r.Resolve(loc(t, "/category?page=2"))
	require.Equal(t, "category", m.Route.Resource)
	require.Equal(t, "2", m.Location.Query.Get("page"))

	m = r.Resolve(loc(t, "/login"))
	require.Equal(t, PathHome, m.Location.Path)
	require.Equal(t, "Dashboard", m.Route.Title)
}

func TestResolve_Params(t *testing.T) {
	auth := new(fakeAuth)
	auth.on.Store(true)
	r := New(auth)

	m := r.Resolve(loc(t, "/post/42"))
	require.Equal(t, "/post/:id", m.Route.Pattern)
	require.Equal(t, "42", m.Param("id"))

	m = r.Resolve(loc(t, "/post/"))
	require.Equal(t, "/post", m.Route.Pattern)

	m = r.Resolve(loc(t, "/nowhere/at/all"))
	require.Equal(t, PathNotFound, m.Route.Pattern)

	m = r.Resolve(liststate.Location{})
	require.Equal(t, PathHome, m.Route.Pattern)
}

func TestNotFoundIsPublic(t *testing.T) {
	r := New(new(fakeAuth))
	m := r.Resolve(loc(t, "/missing"))
	require.Equal(t, PathNotFound, m.Route.Pattern)
	require.Nil(t, m.RedirectedFrom)
}

func TestHistory(t *testing.T) {
	auth := new(fakeAuth)
	auth.on.Store(true)
	r := New(auth)

	var seen []string
	r.OnChange(func(m Match) { seen = append(seen, m.Location.String()) })

	_, ok := r.Back()
	require.False(t, ok)

	_, err := r.Navigate("/category")
	require.NoError(t, err)
	_, err = r.Navigate("/post?page=3")
	require.NoError(t, err)
	r.Replace(loc(t, "/post?page=4"))

	m, ok := r.Back()
	require.True(t, ok)
	require.Equal(t, "/category", m.Location.String())

	cur, ok := r.Current()
	require.True(t, ok)
	require.Equal(t, "/category", cur.Location.String())
	require.Equal(t, []string{"/category", "/post?page=3", "/post?page=4", "/category"}, seen)
}

func TestRefreshAfterLogout(t *testing.T) {
	auth := new(fakeAuth)
	auth.on.Store(true)
	r := New(auth)

	_, err := r.Navigate("/subcategory?limit=20")
	require.NoError(t, err)

	auth.on.Store(false)
	m := r.Refresh()
	require.Equal(t, PathLogin, m.Location.Path)
	require.Equal(t, "/subcategory?limit=20", m.RedirectedFrom.String())
}

func TestMenuAndBreadcrumbs(t *testing.T) {
	r := New(new(fakeAuth))

	menu := r.Menu()
	require.Equal(t, "Dashboard", menu[0].Title)
	for _, rt := range menu {
		require.NotEqual(t, PathLogin, rt.Pattern)
		require.NotEqual(t, "/post/:id", rt.Pattern)
	}
	require.Len(t, menu, 11)

	crumbs := Breadcrumbs(Match{Location: liststate.Location{Path: "/post/12"}})
	require.Equal(t, "home / post / 12", Trail(crumbs))
	require.Equal(t, "/post", crumbs[1].Path)

	require.Equal(t, "home", Trail(Breadcrumbs(Match{Location: liststate.Location{Path: "/"}})))
}
