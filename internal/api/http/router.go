package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tracklite-io/tracklite/internal/api/http/handlers"
	"github.com/tracklite-io/tracklite/internal/auth"
	"github.com/tracklite-io/tracklite/internal/domain"
)

// RouteConfig bundles everything the router mounts.
type RouteConfig struct {
	Auth          *auth.AuthMiddleware
	Users         *handlers.UsersHandler
	Projects      *handlers.ProjectsHandler
	Tickets       *handlers.TicketsHandler
	Notifications *handlers.NotificationsHandler
	Stream        *handlers.StreamHandler
	Health        *handlers.HealthHandler
}

// RegisterRoutes mounts the API surface.
func RegisterRoutes(app *fiber.App, rc RouteConfig) {
	app.Get("/healthz", rc.Health.Live)
	app.Get("/readyz", rc.Health.Ready)
	app.Get("/metrics", rc.Health.Metrics)

	api := app.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", rc.Users.Register)
	authGroup.Post("/login", rc.Users.Login)

	protected := api.Group("", rc.Auth.Handle)

	protected.Post("/users", auth.RequireRole(domain.RoleAdmin), rc.Users.CreateAccount)

	protected.Post("/projects", auth.RequireRole(domain.RoleAdmin), rc.Projects.Create)
	protected.Get("/projects", rc.Projects.List)

	tickets := protected.Group("/tickets")
	tickets.Post("", rc.Tickets.CreateTicket)
	tickets.Get("", rc.Tickets.ListTickets)
	tickets.Get("/:id", rc.Tickets.GetTicket)
	tickets.Get("/:id/history", rc.Tickets.GetHistory)
	tickets.Post("/:id/assign", auth.RequireRole(domain.RoleAdmin), rc.Tickets.Assign)
	tickets.Post("/:id/status", rc.Tickets.ChangeStatus)
	tickets.Post("/:id/close", rc.Tickets.Close)
	tickets.Post("/:id/reopen", rc.Tickets.Reopen)
	tickets.Post("/:id/archive", auth.RequireRole(domain.RoleAdmin), rc.Tickets.Archive)
	tickets.Post("/:id/unarchive", auth.RequireRole(domain.RoleAdmin), rc.Tickets.Unarchive)
	tickets.Post("/:id/priority", auth.RequireRole(domain.RoleAdmin), rc.Tickets.ChangePriority)
	tickets.Post("/:id/attachments", rc.Tickets.AddAttachment)
	tickets.Post("/:id/rate", rc.Tickets.Rate)

	notifications := protected.Group("/notifications")
	notifications.Get("", rc.Notifications.List)
	notifications.Get("/unread-count", rc.Notifications.UnreadCount)
	notifications.Get("/stream", rc.Stream.Stream)
	notifications.Post("/read-all", rc.Notifications.MarkAllRead)
	notifications.Post("/:id/read", rc.Notifications.MarkRead)
}
