package address

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vastralabs/vastra-backend/pkg/db"
	"github.com/vastralabs/vastra-backend/pkg/db/models"
	pkgerrors "github.com/vastralabs/vastra-backend/pkg/errors"
)

// CreateInput carries a new shipping address.
type CreateInput struct {
	Line1     string
	Line2     *string
	City      string
	State     string
	Pincode   string
	Country   string
	IsDefault bool
}

// Service defines address book operations. Every read and write is scoped
// to the owning user.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	GetOwned(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.Address, error)
	Delete(ctx context.Context, userID, addressID uuid.UUID) error
}

type service struct {
	client *db.Client
	repo   Repository
}

// NewService wires an address service.
func NewService(client *db.Client, repo Repository) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	return &service{client: client, repo: repo}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) GetOwned(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	if addressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id is required")
	}
	addr, err := s.repo.FindByID(ctx, addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, err
	}
	if addr.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return addr, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.Address, error) {
	for field, value := range map[string]string{
		"line1":   input.Line1,
		"city":    input.City,
		"state":   input.State,
		"pincode": input.Pincode,
	} {
		if strings.TrimSpace(value) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is required", field))
		}
	}

	country := strings.TrimSpace(input.Country)
	if country == "" {
		country = "IN"
	}

	addr := &models.Address{
		UserID:    userID,
		Line1:     strings.TrimSpace(input.Line1),
		Line2:     input.Line2,
		City:      strings.TrimSpace(input.City),
		State:     strings.TrimSpace(input.State),
		Pincode:   strings.TrimSpace(input.Pincode),
		Country:   country,
		IsDefault: input.IsDefault,
	}

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if addr.IsDefault {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		return repo.Create(ctx, addr)
	})
	if err != nil {
		return nil, err
	}
	return addr, nil
}

func (s *service) Delete(ctx context.Context, userID, addressID uuid.UUID) error {
	affected, err := s.repo.Delete(ctx, userID, addressID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return nil
}
