package wiki

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/mzivkovic/wikibin/internal/auth"
	"github.com/mzivkovic/wikibin/internal/instrumentation"
	"github.com/mzivkovic/wikibin/internal/middleware"
	"github.com/mzivkovic/wikibin/internal/render"
	"github.com/mzivkovic/wikibin/internal/users"
	"github.com/mzivkovic/wikibin/pkg"
)

type pageRepo interface {
	Add(ctx context.Context, page *Page) error
	Update(ctx context.Context, code, title, text string) error
	Delete(ctx context.Context, code string) error
	Get(ctx context.Context, code string) (*Page, error)
	All(ctx context.Context) ([]*Page, error)
}

type sessionStore interface {
	Login(ctx context.Context, username string, createdAt time.Time) (string, error)
	Logout(ctx context.Context, token string) error
}

type Handler struct {
	repo     pageRepo
	users    users.Store
	sessions sessionStore
	checker  auth.Checker
	instr    *instrumentation.Instrumentation
}

func NewHandler(
	repo pageRepo,
	usersStore users.Store,
	sessions sessionStore,
	checker auth.Checker,
	instr *instrumentation.Instrumentation,
) *Handler {
	return &Handler{
		repo:     repo,
		users:    usersStore,
		sessions: sessions,
		checker:  checker,
		instr:    instr,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/", handler.handleIndex).Methods("GET").Name("index")
	router.HandleFunc("/wiki/{code}", handler.handleView).Methods("GET").Name("view-page")
	router.HandleFunc("/login", handler.handleLoginForm).Methods("GET").Name("login-form")
	router.HandleFunc("/login/callback", handler.handleLoginCallback).Methods("POST").Name("login")
	router.HandleFunc("/logout", handler.handleLogout).Methods("GET").Name("logout")

	adminRouter := router.PathPrefix("/admin/wiki").Subrouter()
	adminRouter.HandleFunc("/create", handler.handleCreateForm).Methods("GET").Name("create-page-form")
	adminRouter.HandleFunc("/create", handler.handleCreate).Methods("POST").Name("create-page")
	adminRouter.HandleFunc("/edit/{code}", handler.handleEditForm).Methods("GET").Name("edit-page-form")
	adminRouter.HandleFunc("/edit/{code}", handler.handleEdit).Methods("POST").Name("edit-page")
	adminRouter.HandleFunc("/delete/{code}", handler.handleDelete).Methods("POST").Name("delete-page")

	// every mutation is gated here, handlers below the admin subrouter
	// never run for non-admin callers
	adminRouter.Use(middleware.AdminGate(handler.checker))
}

// identity resolves the caller on public routes, where being anonymous is
// fine and only changes what the template shows
func (handler *Handler) identity(r *http.Request) auth.Identity {
	token := auth.ReadSessionCookie(r)
	if token == "" {
		return auth.Anonymous
	}
	identity, err := handler.checker.ResolveIdentity(r.Context(), token)
	if err != nil {
		log.Errorf("resolve identity: %s", err)
		return auth.Anonymous
	}
	return identity
}

func (handler *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	pages, err := handler.repo.All(r.Context())
	if err != nil {
		log.Errorf("get all pages: %s", err)
		pkg.WriteResponse(w, pkg.ContentType.Text, "failed to list pages", http.StatusInternalServerError)
		return
	}

	identity := handler.identity(r)
	renderTemplate(w, "index.html", http.StatusOK, struct {
		Pages    []*Page
		Username string
		IsAdmin  bool
	}{
		Pages:    pages,
		Username: identity.Username,
		IsAdmin:  identity.IsAdmin(),
	})
}

func (handler *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	page, err := handler.repo.Get(r.Context(), code)
	if errors.Is(err, ErrPageNotFound) {
		pkg.WriteResponse(w, pkg.ContentType.Text, "page not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("get page %s: %s", code, err)
		pkg.WriteResponse(w, pkg.ContentType.Text, "failed to get page", http.StatusInternalServerError)
		return
	}

	safeHtml, err := render.Render(page.Text)
	if err != nil {
		log.Errorf("render page %s: %s", code, err)
		pkg.WriteResponse(w, pkg.ContentType.Text, "failed to render page", http.StatusInternalServerError)
		return
	}

	identity := handler.identity(r)
	renderTemplate(w, "page.html", http.StatusOK, struct {
		Code    string
		Title   string
		Author  string
		Content template.HTML
		IsAdmin bool
	}{
		Code:   page.Code,
		Title:  page.Title,
		Author: page.Author,
		// safe by construction: render.Render is the only source
		Content: template.HTML(safeHtml),
		IsAdmin: identity.IsAdmin(),
	})
}

func (handler *Handler) handleLoginForm(w http.ResponseWriter, _ *http.Request) {
	renderTemplate(w, "login.html", http.StatusOK, struct{ Error string }{})
}

func (handler *Handler) handleLoginCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		log.Errorf("login failed, parse form error: %s", err)
		pkg.WriteResponse(w, pkg.ContentType.Text, "parse form error", http.StatusBadRequest)
		return
	}

	username := r.Form.Get("username")
	password := r.Form.Get("password")
	if username == "" || password == "" {
		renderTemplate(w, "login.html", http.StatusBadRequest, struct{ Error string }{
			Error: "username and password required",
		})
		return
	}

	if _, err := handler.users.Verify(r.Context(), username, password); err != nil {
		if !errors.Is(err, users.ErrInvalidCredentials) {
			log.Errorf("login failed, verify credentials: %s", err)
			pkg.WriteResponse(w, pkg.ContentType.Text, "login failed", http.StatusInternalServerError)
			return
		}
		log.Tracef("failed login attempt for user: %s", username)
		handler.instr.CounterFailedLogins.Inc()
		// same message for wrong username and wrong password
		renderTemplate(w, "login.html", http.StatusUnauthorized, struct{ Error string }{
			Error: "wrong username or password",
		})
		return
	}

	token, err := handler.sessions.Login(r.Context(), username, time.Now())
	if err != nil {
		log.Errorf("login failed, create session: %s", err)
		pkg.WriteResponse(w, pkg.ContentType.Text, "login failed", http.StatusInternalServerError)
		return
	}

	handler.instr.CounterLogins.Inc()

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.DefaultTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/admin/wiki/create", http.StatusSeeOther)
}

func (handler *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.ReadSessionCookie(r); token != "" {
		if err := handler.sessions.Logout(r.Context(), token); err != nil {
			log.Errorf("logout, destroy session: %s", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (handler *Handler) handleCreateForm(w http.ResponseWriter, _ *http.Request) {
	renderTemplate(w, "create.html", http.StatusOK, nil)
}

func (handler *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		log.Errorf("create page failed, parse form error: %s", err)
		pkg.WriteResponse(w, pkg.ContentType.Text, "parse form error", http.StatusBadRequest)
		return
	}

	title := r.Form.Get("title")
	text := r.Form.Get("text")
	if title == "" {
		pkg.WriteResponse(w, pkg.ContentType.Text, "error, title empty", http.StatusBadRequest)
		return
	}
	if text == "" {
		pkg.WriteResponse(w, pkg.ContentType.Text, "error, text empty", http.StatusBadRequest)
		return
	}

	identity := auth.IdentityFromContext(r.Context())
	page := &Page{
		Title:  title,
		Text:   text,
		Author: identity.Username,
	}
	if err := handler.repo.Add(r.Context(), page); err != nil {
		log.Errorf("add new page failed: %s", err)
		pkg.WriteResponse(w, pkg.ContentType.Text, "add new page failed", http.StatusInternalServerError)
		return
	}

	handler.instr.CounterPageMutations.Inc()
	log.Tracef("new page [%s] %s added by %s", page.Code, page.Title, page.Author)

	http.Redirect(w, r, "/wiki/"+page.Code, http.StatusSeeOther)
}

func (handler *Handler) handleEditForm(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	page, err := handler.repo.Get(r.Context(), code)
	if errors.Is(err, ErrPageNotFound) {
		pkg.WriteResponse(w, pkg.ContentType.Text, "page not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("get page %s for edit: %s", code, err)
		pkg.WriteResponse(w, pkg.ContentType.Text, "failed to get page", http.StatusInternalServerError)
		return
	}

	renderTemplate(w, "edit.html", http.StatusOK, struct {
		Code  string
		Title string
		Text  string
	}{
		Code:  page.Code,
		Title: page.Title,
		Text:  page.Text,
	})
}

func (handler *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	if err := r.ParseForm(); err != nil {
		log.Errorf("edit page failed, parse form error: %s", err)
		pkg.WriteResponse(w, pkg.ContentType.Text, "parse form error", http.StatusBadRequest)
		return
	}

	title := r.Form.Get("title")
	text := r.Form.Get("text")
	if title == "" {
		pkg.WriteResponse(w, pkg.ContentType.Text, "error, title empty", http.StatusBadRequest)
		return
	}
	if text == "" {
		pkg.WriteResponse(w, pkg.ContentType.Text, "error, text empty", http.StatusBadRequest)
		return
	}

	err := handler.repo.Update(r.Context(), code, title, text)
	if errors.Is(err, ErrPageNotFound) {
		pkg.WriteResponse(w, pkg.ContentType.Text, "page not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("update page %s failed: %s", code, err)
		pkg.WriteResponse(w, pkg.ContentType.Text, "update page failed", http.StatusInternalServerError)
		return
	}

	handler.instr.CounterPageMutations.Inc()

	http.Redirect(w, r, "/wiki/"+code, http.StatusSeeOther)
}

func (handler *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	err := handler.repo.Delete(r.Context(), code)
	if errors.Is(err, ErrPageNotFound) {
		pkg.WriteResponse(w, pkg.ContentType.Text, "page not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("delete page %s: %s", code, err)
		pkg.WriteResponse(w, pkg.ContentType.Text, "delete page failed", http.StatusInternalServerError)
		return
	}

	handler.instr.CounterPageMutations.Inc()
	log.Tracef("page %s deleted", code)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
