package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tracklite-io/tracklite/internal/api/dto"
	"github.com/tracklite-io/tracklite/internal/service"
	apperrors "github.com/tracklite-io/tracklite/pkg/util"
)

// ProjectsHandler manages the project directory.
type ProjectsHandler struct {
	service *service.ProjectService
}

// NewProjectsHandler constructs handler.
func NewProjectsHandler(projectService *service.ProjectService) *ProjectsHandler {
	return &ProjectsHandler{service: projectService}
}

// Create POST /projects.
func (h *ProjectsHandler) Create(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	project, err := h.service.CreateProject(c.Context(), actor, req.Name)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"id": project.ID, "name": project.Name, "is_active": project.IsActive,
	}})
}

// List GET /projects.
func (h *ProjectsHandler) List(c *fiber.Ctx) error {
	if _, err := requireActor(c); err != nil {
		return err
	}
	projects, err := h.service.ListProjects(c.Context())
	if err != nil {
		return err
	}
	items := make([]fiber.Map, 0, len(projects))
	for _, p := range projects {
		items = append(items, fiber.Map{"id": p.ID, "name": p.Name, "is_active": p.IsActive})
	}
	return c.JSON(fiber.Map{"data": items})
}
