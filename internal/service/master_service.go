package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/teamops-governance-api/internal/models"
	appErrors "github.com/noah-isme/teamops-governance-api/pkg/errors"
)

type masterStore interface {
	GetActive(ctx context.Context, roleName string, projectID *string) (*models.TeamMaster, error)
	GetByID(ctx context.Context, id string) (*models.TeamMaster, error)
	List(ctx context.Context, filter models.MasterFilter) ([]models.TeamMaster, error)
}

// MasterService exposes the team-master roster. Roster writes happen only
// through application approval and challenge completion.
type MasterService struct {
	repo masterStore
}

// NewMasterService constructs the service.
func NewMasterService(repo masterStore) *MasterService {
	return &MasterService{repo: repo}
}

// Get returns one master row.
func (s *MasterService) Get(ctx context.Context, id string) (*models.TeamMaster, error) {
	master, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load master")
	}
	return master, nil
}

// List returns masters matching the filter.
func (s *MasterService) List(ctx context.Context, filter models.MasterFilter) ([]models.TeamMaster, error) {
	masters, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list masters")
	}
	return masters, nil
}
