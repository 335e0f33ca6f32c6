package wiki

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzivkovic/wikibin/internal/auth"
	"github.com/mzivkovic/wikibin/internal/instrumentation"
	"github.com/mzivkovic/wikibin/internal/users"
)

const (
	testAdminToken = "admin-session-token"
	testUserToken  = "user-session-token"
)

// testSessions is an in-memory sessionStore handing out deterministic tokens
type testSessions struct {
	tokens map[string]string // token -> username
}

func (s *testSessions) Login(_ context.Context, username string, _ time.Time) (string, error) {
	token := "token-for-" + username
	s.tokens[token] = username
	return token, nil
}

func (s *testSessions) Logout(_ context.Context, token string) error {
	delete(s.tokens, token)
	return nil
}

type handlerFixture struct {
	router   *mux.Router
	repo     *TestRepo
	users    *users.TestRepo
	sessions *testSessions
	checker  *auth.TestChecker
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	repo := NewTestRepo()
	for i := 1; i <= 3; i++ {
		require.NoError(t, repo.Add(context.Background(), &Page{
			Code:   fmt.Sprintf("code%d", i),
			Title:  fmt.Sprintf("page %d title", i),
			Text:   fmt.Sprintf("# Page %d\n\nsome *text* here", i),
			Author: "serj",
		}))
	}

	usersRepo := users.NewTestRepo()
	usersRepo.AddUser("serj", "admin-pass", users.RoleAdmin)
	usersRepo.AddUser("mila", "user-pass", users.RoleUser)

	checker := auth.NewTestChecker()
	checker.Identities[testAdminToken] = auth.Identity{Username: "serj", Role: users.RoleAdmin}
	checker.Identities[testUserToken] = auth.Identity{Username: "mila", Role: users.RoleUser}
	// tokens minted by testSessions.Login resolve too
	checker.Identities["token-for-serj"] = auth.Identity{Username: "serj", Role: users.RoleAdmin}
	checker.Identities["token-for-mila"] = auth.Identity{Username: "mila", Role: users.RoleUser}

	sessions := &testSessions{tokens: map[string]string{}}

	handler := NewHandler(repo, usersRepo, sessions, checker, instrumentation.NewTestInstrumentation())
	router := mux.NewRouter()
	handler.SetupRoutes(router)

	return &handlerFixture{
		router:   router,
		repo:     repo,
		users:    usersRepo,
		sessions: sessions,
		checker:  checker,
	}
}

func (f *handlerFixture) do(t *testing.T, method, path, sessionToken string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	var err error
	if form != nil {
		req, err = http.NewRequest(method, path, strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req, err = http.NewRequest(method, path, nil)
		require.NoError(t, err)
	}

	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: sessionToken})
	}

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestHandler_routes(t *testing.T) {
	f := newHandlerFixture(t)

	for caseName, route := range map[string]struct {
		name   string
		path   string
		method string
	}{
		"index":            {name: "index", path: "/", method: "GET"},
		"view-page":        {name: "view-page", path: "/wiki/abcdef123456", method: "GET"},
		"login-form":       {name: "login-form", path: "/login", method: "GET"},
		"login":            {name: "login", path: "/login/callback", method: "POST"},
		"logout":           {name: "logout", path: "/logout", method: "GET"},
		"create-page-form": {name: "create-page-form", path: "/admin/wiki/create", method: "GET"},
		"create-page":      {name: "create-page", path: "/admin/wiki/create", method: "POST"},
		"edit-page-form":   {name: "edit-page-form", path: "/admin/wiki/edit/abcdef123456", method: "GET"},
		"edit-page":        {name: "edit-page", path: "/admin/wiki/edit/abcdef123456", method: "POST"},
		"delete-page":      {name: "delete-page", path: "/admin/wiki/delete/abcdef123456", method: "POST"},
	} {
		t.Run(caseName, func(t *testing.T) {
			req, err := http.NewRequest(route.method, route.path, nil)
			require.NoError(t, err)

			routeMatch := &mux.RouteMatch{}
			muxRoute := f.router.Get(route.name)
			require.NotNil(t, muxRoute)
			assert.True(t, muxRoute.Match(req, routeMatch), caseName)
		})
	}
}

func TestHandler_index(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, "GET", "/", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	for i := 1; i <= 3; i++ {
		assert.Contains(t, body, fmt.Sprintf("page %d title", i))
		assert.Contains(t, body, fmt.Sprintf("/wiki/code%d", i))
	}
	// anonymous viewer sees no admin controls
	assert.NotContains(t, body, "/admin/wiki/create")
	assert.Contains(t, body, "/login")
}

func TestHandler_index_asAdmin(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, "GET", "/", testAdminToken, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/admin/wiki/create")
	assert.Contains(t, rr.Body.String(), "serj")
}

func TestHandler_viewPage(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, "GET", "/wiki/code1", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, "page 1 title")
	assert.Contains(t, body, "<h1>Page 1</h1>")
	assert.Contains(t, body, "<em>text</em>")
	// no edit/delete controls for anonymous viewers
	assert.NotContains(t, body, "/admin/wiki/edit/code1")
}

func TestHandler_viewPage_notFound(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, "GET", "/wiki/nosuchcode", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "page not found", rr.Body.String())
}

func TestHandler_viewPage_scriptNeverServed(t *testing.T) {
	f := newHandlerFixture(t)

	require.NoError(t, f.repo.Add(context.Background(), &Page{
		Code:   "evil",
		Title:  "xss attempt",
		Text:   "# Hi\n<script>alert(1)</script>",
		Author: "serj",
	}))

	rr := f.do(t, "GET", "/wiki/evil", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<h1>Hi</h1>")
	assert.NotContains(t, rr.Body.String(), "<script>")
}

func TestHandler_login(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, "POST", "/login/callback", "", url.Values{
		"username": {"serj"},
		"password": {"admin-pass"},
	})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/admin/wiki/create", rr.Header().Get("Location"))

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
	assert.Equal(t, "token-for-serj", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	// the fresh session opens the admin area
	rr = f.do(t, "GET", "/admin/wiki/create", cookies[0].Value, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<form")
}

func TestHandler_login_wrongPassword(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, "POST", "/login/callback", "", url.Values{
		"username": {"serj"},
		"password": {"wrong-pass"},
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "wrong username or password")
	assert.Empty(t, rr.Result().Cookies(), "no session cookie on failed login")
	assert.Empty(t, f.sessions.tokens, "no session created on failed login")
}

func TestHandler_login_unknownUser_sameMessage(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, "POST", "/login/callback", "", url.Values{
		"username": {"nobody"},
		"password": {"whatever"},
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "wrong username or password")
}

func TestHandler_logout(t *testing.T) {
	f := newHandlerFixture(t)
	f.sessions.tokens["token-for-serj"] = "serj"

	rr := f.do(t, "GET", "/logout", "token-for-serj", nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
	assert.Empty(t, f.sessions.tokens, "session destroyed")

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestHandler_createPage(t *testing.T) {
	f := newHandlerFixture(t)
	countBefore := f.repo.PagesCount()

	rr := f.do(t, "POST", "/admin/wiki/create", testAdminToken, url.Values{
		"title": {"fresh page"},
		"text":  {"# Hi\n<script>alert(1)</script>"},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, countBefore+1, f.repo.PagesCount())

	location := rr.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/wiki/"))
	code := strings.TrimPrefix(location, "/wiki/")

	// raw markdown stored untouched, attributed to the session user
	page, err := f.repo.Get(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, "fresh page", page.Title)
	assert.Equal(t, "# Hi\n<script>alert(1)</script>", page.Text)
	assert.Equal(t, "serj", page.Author)

	// rendered output is sanitized
	rr = f.do(t, "GET", location, "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<h1>Hi</h1>")
	assert.NotContains(t, rr.Body.String(), "<script>")
}

func TestHandler_createPage_denied(t *testing.T) {
	f := newHandlerFixture(t)
	countBefore := f.repo.PagesCount()

	for caseName, token := range map[string]string{
		"anonymous": "",
		"non-admin": testUserToken,
		"bad-token": "some-forged-token",
	} {
		t.Run(caseName, func(t *testing.T) {
			rr := f.do(t, "POST", "/admin/wiki/create", token, url.Values{
				"title": {"should not exist"},
				"text":  {"nope"},
			})
			assert.Equal(t, http.StatusForbidden, rr.Code)
			assert.Equal(t, "not authorized", rr.Body.String())
			assert.Equal(t, countBefore, f.repo.PagesCount(), "page store untouched")
		})
	}
}

func TestHandler_editPage(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, "POST", "/admin/wiki/edit/code2", testAdminToken, url.Values{
		"title": {"edited title"},
		"text":  {"edited text"},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/wiki/code2", rr.Header().Get("Location"))

	// exactly that page changed
	page, err := f.repo.Get(context.Background(), "code2")
	require.NoError(t, err)
	assert.Equal(t, "edited title", page.Title)
	assert.Equal(t, "edited text", page.Text)

	other, err := f.repo.Get(context.Background(), "code1")
	require.NoError(t, err)
	assert.Equal(t, "page 1 title", other.Title)
}

func TestHandler_editPage_form(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, "GET", "/admin/wiki/edit/code1", testAdminToken, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "page 1 title")
	assert.Contains(t, rr.Body.String(), "# Page 1")

	rr = f.do(t, "GET", "/admin/wiki/edit/nosuchcode", testAdminToken, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_editPage_denied(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, "POST", "/admin/wiki/edit/code2", testUserToken, url.Values{
		"title": {"hacked"},
		"text":  {"hacked"},
	})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	page, err := f.repo.Get(context.Background(), "code2")
	require.NoError(t, err)
	assert.Equal(t, "page 2 title", page.Title)
}

func TestHandler_deletePage(t *testing.T) {
	f := newHandlerFixture(t)
	countBefore := f.repo.PagesCount()

	rr := f.do(t, "POST", "/admin/wiki/delete/code3", testAdminToken, nil)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
	assert.Equal(t, countBefore-1, f.repo.PagesCount())

	// exactly that page is gone
	_, err := f.repo.Get(context.Background(), "code3")
	assert.ErrorIs(t, err, ErrPageNotFound)
	_, err = f.repo.Get(context.Background(), "code1")
	assert.NoError(t, err)

	rr = f.do(t, "POST", "/admin/wiki/delete/code3", testAdminToken, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_deletePage_denied(t *testing.T) {
	f := newHandlerFixture(t)
	countBefore := f.repo.PagesCount()

	rr := f.do(t, "POST", "/admin/wiki/delete/code1", "", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, countBefore, f.repo.PagesCount())
}

func TestHandler_createPage_emptyFields(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, "POST", "/admin/wiki/create", testAdminToken, url.Values{
		"title": {""},
		"text":  {"body"},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, "POST", "/admin/wiki/create", testAdminToken, url.Values{
		"title": {"a title"},
		"text":  {""},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
