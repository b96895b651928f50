package http

import (
	"context"
	"net/http"
	"time"

	"github.com/atvirokodosprendimai/inventory/internal/actions"
	"github.com/atvirokodosprendimai/inventory/internal/application"
	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"github.com/atvirokodosprendimai/inventory/internal/wizard"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const sessionCookieName = "inv_session"

type contextKey string

const identityKey contextKey = "identity"

// Services are the collaborators the router serves.
type Services struct {
	App      *application.ApplicationService
	Meta     *application.MetadataService
	Business *application.BusinessService
	Physical *application.PhysicalConnectionsService
	Mirrors  *application.MirrorService
	Actions  *actions.Registry
	Wizards  *wizard.Engine
	Events   *Hub
	Gatherer prometheus.Gatherer
}

type Options struct {
	SessionTTL     time.Duration
	LoginRateLimit float64
	LoginBurst     int
}

type Handler struct {
	Services
	opts   Options
	logins *loginLimiter
	log    *zap.Logger
}

func NewRouter(s Services, opts Options, log *zap.Logger) http.Handler {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 12 * time.Hour
	}
	h := &Handler{
		Services: s,
		opts:     opts,
		logins:   newLoginLimiter(opts.LoginRateLimit, opts.LoginBurst),
		log:      log.Named("http"),
	}
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/login", h.handleLoginPage)
	r.With(h.limitLogins).Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	read := h.requireAuthAPI(domain.PermissionInventoryRead)
	write := h.requireAuthAPI(domain.PermissionInventoryWrite)

	r.Route("/api", func(api chi.Router) {
		api.With(h.limitLogins).Post("/auth/login", h.handleAPILogin)
		api.With(read).Get("/auth/whoami", h.handleAPIWhoAmI)
		api.With(read).Post("/auth/logout", h.handleAPILogout)

		api.With(read).Get("/classes", h.handleAPIListClasses)
		api.With(read).Get("/classes/{name}", h.handleAPIGetClass)
		api.With(read).Get("/classes/{name}/possible-children", h.handleAPIPossibleChildren)

		api.With(read).Get("/objects", h.handleAPISearchObjects)
		api.With(write).Post("/objects", h.handleAPICreateObject)
		api.With(read).Get("/objects/{id}", h.handleAPIGetObject)
		api.With(write).Patch("/objects/{id}", h.handleAPIUpdateObject)
		api.With(write).Delete("/objects/{id}", h.handleAPIDeleteObject)
		api.With(read).Get("/objects/{id}/children", h.handleAPIChildren)
		api.With(read).Get("/objects/{id}/parents", h.handleAPIParents)
		api.With(write).Post("/objects/{id}/move", h.handleAPIMoveObject)
		api.With(write).Post("/objects/{id}/copy", h.handleAPICopyObject)
		api.With(read).Get("/objects/{id}/relationships", h.handleAPIRelationships)
		api.With(write).Post("/objects/{id}/relationships", h.handleAPIRelate)
		api.With(write).Delete("/objects/{id}/relationships/{name}", h.handleAPIRelease)
		api.With(read).Get("/objects/{id}/files", h.handleAPIListFiles)
		api.With(write).Post("/objects/{id}/files", h.handleAPIAttachFile)
		api.With(read).Get("/objects/{id}/files/{fileID}", h.handleAPIDownloadFile)
		api.With(write).Delete("/objects/{id}/files/{fileID}", h.handleAPIDetachFile)

		api.With(write).Post("/physical/connections", h.handleAPIConnect)
		api.With(write).Delete("/physical/connections/{id}", h.handleAPIDisconnect)
		api.With(write).Put("/physical/connections/{id}/endpoints", h.handleAPIEditEndpoints)
		api.With(read).Get("/physical/connections/{id}/endpoints", h.handleAPIEndpoints)
		api.With(read).Get("/physical/{id}/path", h.handleAPIPhysicalPath)
		api.With(read).Get("/physical/{id}/tree", h.handleAPIPhysicalTree)
		api.With(read).Get("/physical/{id}/summary", h.handleAPIPortSummary)

		api.With(read).Get("/mirrors/{deviceID}", h.handleAPIListMirrors)
		api.With(read).Get("/mirrors/{deviceID}/suggestions", h.handleAPISuggestMirrors)
		api.With(write).Post("/mirrors/{deviceID}/apply", h.handleAPIApplyMirrors)

		api.With(read).Get("/actions", h.handleAPIListActions)
		api.With(read).Post("/actions/{actionID}", h.handleAPIExecuteAction)

		api.With(read).Get("/wizards", h.handleAPIListWizards)
		api.With(read).Post("/wizards/{wizard}", h.handleAPIStartWizard)
		api.With(read).Get("/wizards/sessions/{sessionID}", h.handleAPIGetWizard)
		api.With(read).Post("/wizards/sessions/{sessionID}/next", h.handleAPIWizardNext)
		api.With(read).Post("/wizards/sessions/{sessionID}/back", h.handleAPIWizardBack)
		api.With(read).Post("/wizards/sessions/{sessionID}/finish", h.handleAPIWizardFinish)
		api.With(read).Delete("/wizards/sessions/{sessionID}", h.handleAPIWizardCancel)

		api.With(read).Get("/activity", h.handleAPIActivity)
	})

	if s.Events != nil {
		r.With(read).Get("/events", s.Events.ServeHTTP)
	}
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	gui := h.requireAuthGUI(domain.PermissionInventoryRead)
	r.With(gui).Get("/", h.handleRoot)
	r.With(gui).Get("/objects/{id}", h.handleObjectPage)
	r.With(gui).Get("/activity", h.handleActivityPage)
	r.With(gui).Get("/dialogs/{actionID}", h.handleDialog)
	r.With(gui).Post("/dialogs/{actionID}", h.handleDialogSubmit)
	r.With(gui).Get("/wizards/{wizard}", h.handleWizardPage)
	r.With(gui).Post("/wizards/{wizard}/next", h.handleWizardNext)
	r.With(gui).Post("/wizards/{wizard}/back", h.handleWizardBack)
	r.With(gui).Post("/wizards/{wizard}/finish", h.handleWizardFinish)
	r.With(gui).Get("/mirrors/{deviceID}", h.handleMirrorsPage)

	return r
}

func identityFromContext(ctx context.Context) (domain.Identity, bool) {
	value := ctx.Value(identityKey)
	if value == nil {
		return domain.Identity{}, false
	}
	identity, ok := value.(domain.Identity)
	return identity, ok
}

func currentIdentity(r *http.Request) domain.Identity {
	identity, _ := identityFromContext(r.Context())
	return identity
}
