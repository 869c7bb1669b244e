package tryon

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vastralabs/vastra-backend/internal/catalog"
	"github.com/vastralabs/vastra-backend/pkg/db/models"
	"github.com/vastralabs/vastra-backend/pkg/enums"
	pkgerrors "github.com/vastralabs/vastra-backend/pkg/errors"
	"github.com/vastralabs/vastra-backend/pkg/logger"
)

// Service manages virtual try-on jobs.
type Service interface {
	Submit(ctx context.Context, userID uuid.UUID, input SubmitInput) (*JobView, error)
	Get(ctx context.Context, userID, jobID uuid.UUID) (*JobView, error)
	List(ctx context.Context, userID uuid.UUID, limit int) ([]JobView, error)
	// ProcessNext claims one queued job and runs it through the generator.
	// Returns false when the queue was empty.
	ProcessNext(ctx context.Context) (bool, error)
}

type service struct {
	repo      Repository
	catalog   catalog.Repository
	generator Generator
	logg      *logger.Logger
}

// NewService wires the try-on service.
func NewService(repo Repository, catalogRepo catalog.Repository, generator Generator, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tryon repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, catalog: catalogRepo, generator: generator, logg: logg}, nil
}

func (s *service) Submit(ctx context.Context, userID uuid.UUID, input SubmitInput) (*JobView, error) {
	if input.PersonImage == "" || input.GarmentImage == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "person and garment images are required")
	}

	product, err := s.catalog.FindProductByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	job := &models.TryOnJob{
		UserID:       userID,
		ProductID:    product.ID,
		Status:       enums.TryOnJobStatusQueued,
		PersonImage:  input.PersonImage,
		GarmentImage: input.GarmentImage,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}

	view := toJobView(job)
	return &view, nil
}

func (s *service) Get(ctx context.Context, userID, jobID uuid.UUID) (*JobView, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "try-on job not found")
		}
		return nil, err
	}
	if job.UserID != userID {
		// Do not reveal other users' jobs.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "try-on job not found")
	}
	view := toJobView(job)
	return &view, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, limit int) ([]JobView, error) {
	jobs, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	views := make([]JobView, 0, len(jobs))
	for i := range jobs {
		views = append(views, toJobView(&jobs[i]))
	}
	return views, nil
}

func (s *service) ProcessNext(ctx context.Context) (bool, error) {
	job, err := s.repo.ClaimQueued(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	resultURL, genErr := s.generator.Generate(ctx, job.PersonImage, job.GarmentImage)
	if genErr != nil {
		s.logg.Error(ctx, "try-on generation failed", genErr)
		reason := genErr.Error()
		if typed := pkgerrors.As(genErr); typed != nil {
			reason = typed.Message()
		}
		if err := s.repo.MarkFailed(ctx, job.ID, reason); err != nil {
			return true, err
		}
		return true, nil
	}

	if err := s.repo.MarkSucceeded(ctx, job.ID, resultURL); err != nil {
		return true, err
	}
	return true, nil
}

func toJobView(job *models.TryOnJob) JobView {
	return JobView{
		ID:            job.ID,
		ProductID:     job.ProductID,
		Status:        job.Status,
		ResultURL:     job.ResultURL,
		FailureReason: job.FailureReason,
		CreatedAt:     job.CreatedAt,
		FinishedAt:    job.FinishedAt,
	}
}
