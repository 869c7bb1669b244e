package controllers

import (
	"net/http"

	"github.com/vastralabs/vastra-backend/api/middleware"
	"github.com/vastralabs/vastra-backend/api/responses"
	"github.com/vastralabs/vastra-backend/api/validators"
	"github.com/vastralabs/vastra-backend/internal/address"
	"github.com/vastralabs/vastra-backend/pkg/logger"
)

type createAddressRequest struct {
	Line1     string  `json:"line1" validate:"required,max=200"`
	Line2     *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City      string  `json:"city" validate:"required,max=80"`
	State     string  `json:"state" validate:"required,max=80"`
	Pincode   string  `json:"pincode" validate:"required,len=6"`
	Country   string  `json:"country" validate:"required,max=60"`
	IsDefault bool    `json:"is_default"`
}

// AddressList returns the caller's address book.
func AddressList(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context(), middleware.UserUUIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"addresses": list})
	}
}

// AddressCreate adds an address, optionally becoming the default.
func AddressCreate(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createAddressRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), middleware.UserUUIDFromContext(r.Context()), address.CreateInput{
			Line1:     body.Line1,
			Line2:     body.Line2,
			City:      body.City,
			State:     body.State,
			Pincode:   body.Pincode,
			Country:   body.Country,
			IsDefault: body.IsDefault,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"address": created})
	}
}

// AddressDelete removes one of the caller's addresses.
func AddressDelete(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addressID, err := pathUUID(r, "addressId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), middleware.UserUUIDFromContext(r.Context()), addressID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
