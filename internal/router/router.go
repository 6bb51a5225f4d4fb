package router

import (
	"net/http"

	"github.com/taskbarter/backend/internal/auth"
	"github.com/taskbarter/backend/internal/handlers"
	"github.com/taskbarter/backend/internal/middleware"
)

// Handlers bundles everything New needs to assemble the API.
type Handlers struct {
	Auth     *auth.Handler
	Tasks    *handlers.TaskHandler
	Credits  *handlers.CreditHandler
	Reviews  *handlers.ReviewHandler
	Disputes *handlers.DisputeHandler
	Admin    *handlers.AdminHandler

	TokenValidator middleware.TokenValidator
	Users          middleware.UserLookup
}

// New returns an http.Handler that serves the API under /api/v1. Everything
// except register and login sits behind the Auth middleware; /admin routes
// additionally require the admin role.
func New(h Handlers) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	mux.HandleFunc("POST "+base+"/auth/register", h.Auth.Register)
	mux.HandleFunc("POST "+base+"/auth/login", h.Auth.Login)

	authed := http.NewServeMux()
	rewardCheck := middleware.RewardCheck()

	authed.Handle("POST "+base+"/tasks", rewardCheck(http.HandlerFunc(h.Tasks.Create)))
	authed.HandleFunc("GET "+base+"/tasks", h.Tasks.List)
	authed.HandleFunc("GET "+base+"/tasks/{id}", h.Tasks.Get)
	authed.HandleFunc("POST "+base+"/tasks/{id}/request", h.Tasks.Request)
	authed.HandleFunc("POST "+base+"/tasks/{id}/accept/{userId}", h.Tasks.Accept)
	authed.HandleFunc("POST "+base+"/tasks/{id}/reject/{userId}", h.Tasks.Reject)
	authed.HandleFunc("POST "+base+"/tasks/{id}/start", h.Tasks.Start)
	authed.HandleFunc("PATCH "+base+"/tasks/{id}/extend", h.Tasks.ExtendDeadline)
	authed.HandleFunc("POST "+base+"/tasks/{id}/complete", h.Tasks.Complete)
	authed.HandleFunc("POST "+base+"/tasks/{id}/cancel", h.Tasks.Cancel)
	authed.HandleFunc("POST "+base+"/tasks/{id}/withdraw", h.Tasks.Withdraw)

	authed.HandleFunc("POST "+base+"/tasks/{id}/review", h.Reviews.Add)
	authed.HandleFunc("GET "+base+"/reviews/{userId}", h.Reviews.ListForUser)

	authed.HandleFunc("POST "+base+"/credits/send", h.Credits.Send)
	authed.HandleFunc("GET "+base+"/credits/history", h.Credits.History)

	authed.HandleFunc("POST "+base+"/disputes", h.Disputes.Raise)
	authed.HandleFunc("GET "+base+"/disputes/my", h.Disputes.ListMine)

	authed.Handle("GET "+base+"/admin/disputes", middleware.RequireAdmin(http.HandlerFunc(h.Admin.ListDisputes)))
	authed.Handle("POST "+base+"/admin/disputes/{id}/resolve", middleware.RequireAdmin(http.HandlerFunc(h.Admin.ResolveDispute)))
	authed.Handle("GET "+base+"/admin/users/flagged", middleware.RequireAdmin(http.HandlerFunc(h.Admin.ListFlaggedUsers)))
	authed.Handle("GET "+base+"/admin/users", middleware.RequireAdmin(http.HandlerFunc(h.Admin.ListUsers)))
	authed.Handle("POST "+base+"/admin/users/{id}/warn", middleware.RequireAdmin(http.HandlerFunc(h.Admin.WarnUser)))
	authed.Handle("POST "+base+"/admin/users/{id}/ban", middleware.RequireAdmin(http.HandlerFunc(h.Admin.BanUser)))
	authed.Handle("POST "+base+"/admin/users/{id}/unban", middleware.RequireAdmin(http.HandlerFunc(h.Admin.UnbanUser)))

	mux.Handle("/", middleware.Auth(h.TokenValidator, h.Users)(authed))

	return mux
}
