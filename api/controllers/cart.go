package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aquaflowhq/aquaflow-backend/api/responses"
	"github.com/aquaflowhq/aquaflow-backend/api/validators"
	cartsvc "github.com/aquaflowhq/aquaflow-backend/internal/cart"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

// CartGet returns the customer's cart with a freshly computed summary.
func CartGet(svc *cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := requestCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Get(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

type addItemRequest struct {
	ProductID     uuid.UUID       `json:"product_id" validate:"required"`
	ProductName   string          `json:"product_name" validate:"required"`
	VendorID      uuid.UUID       `json:"vendor_id" validate:"required"`
	VendorName    string          `json:"vendor_name" validate:"required"`
	LitersPerUnit decimal.Decimal `json:"liters_per_unit"`
	UnitCents     int64           `json:"unit_cents" validate:"gte=0"`
	Amount        int             `json:"amount" validate:"required,gt=0"`
	ImageURL      string          `json:"image_url"`
}

// CartAddItem inserts a line or bumps the amount of an existing line
// for the same product.
func CartAddItem(svc *cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := requestCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.AddItem(r.Context(), customerID, cartsvc.LineItem{
			ProductID:     payload.ProductID,
			ProductName:   payload.ProductName,
			VendorID:      payload.VendorID,
			VendorName:    payload.VendorName,
			LitersPerUnit: payload.LitersPerUnit,
			UnitCents:     payload.UnitCents,
			Amount:        payload.Amount,
			ImageURL:      payload.ImageURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

type updateAmountRequest struct {
	Amount int `json:"amount" validate:"gte=0"`
}

// CartUpdateAmount sets a line's amount exactly. Zero removes the line.
func CartUpdateAmount(svc *cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := requestCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID, err := pathID(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateAmountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.UpdateAmount(r.Context(), customerID, itemID, payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// CartRemoveItem drops a line. Removing an absent line is a no-op.
func CartRemoveItem(svc *cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := requestCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID, err := pathID(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.RemoveItem(r.Context(), customerID, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// CartClear empties the cart and revokes any earned fee waiver.
func CartClear(svc *cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := requestCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Clear(r.Context(), customerID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}
