package service

import (
	"context"
	"strings"

	"github.com/tracklite-io/tracklite/internal/domain"
	"github.com/tracklite-io/tracklite/internal/repository"
	apperrors "github.com/tracklite-io/tracklite/pkg/util"
)

// ProjectService maintains the project directory tickets hang off.
type ProjectService struct {
	store repository.Store
}

// NewProjectService constructs the service.
func NewProjectService(store repository.Store) *ProjectService {
	return &ProjectService{store: store}
}

// CreateProject registers a project. Admin only.
func (s *ProjectService) CreateProject(ctx context.Context, actor Actor, name string) (*domain.Project, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins may create projects")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("project name required", nil)
	}
	project := &domain.Project{Name: name, IsActive: true}
	if err := s.store.Projects().Create(ctx, project); err != nil {
		return nil, apperrors.MapError(err)
	}
	return project, nil
}

// ListProjects returns every project. Any authenticated role.
func (s *ProjectService) ListProjects(ctx context.Context) ([]domain.Project, error) {
	projects, err := s.store.Projects().List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return projects, nil
}
