package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vastralabs/vastra-backend/api/middleware"
	"github.com/vastralabs/vastra-backend/api/responses"
	"github.com/vastralabs/vastra-backend/api/validators"
	"github.com/vastralabs/vastra-backend/internal/tryon"
	"github.com/vastralabs/vastra-backend/pkg/logger"
)

type submitTryOnRequest struct {
	ProductID    uuid.UUID `json:"product_id" validate:"required"`
	PersonImage  string    `json:"person_image" validate:"required,url"`
	GarmentImage string    `json:"garment_image" validate:"required,url"`
}

// TryOnSubmit queues a virtual try-on render.
func TryOnSubmit(svc tryon.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body submitTryOnRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		job, err := svc.Submit(r.Context(), middleware.UserUUIDFromContext(r.Context()), tryon.SubmitInput{
			ProductID:    body.ProductID,
			PersonImage:  body.PersonImage,
			GarmentImage: body.GarmentImage,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{"job": job})
	}
}

// TryOnDetail returns one of the caller's jobs.
func TryOnDetail(svc tryon.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := pathUUID(r, "jobId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		job, err := svc.Get(r.Context(), middleware.UserUUIDFromContext(r.Context()), jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"job": job})
	}
}

// TryOnList returns the caller's recent jobs.
func TryOnList(svc tryon.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", defaultPageSize, 1, maxPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		jobs, err := svc.List(r.Context(), middleware.UserUUIDFromContext(r.Context()), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"jobs": jobs})
	}
}
