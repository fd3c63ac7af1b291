package controllers

import (
	"net/http"

	"github.com/aquaflowhq/aquaflow-backend/api/middleware"
	"github.com/aquaflowhq/aquaflow-backend/api/responses"
	"github.com/aquaflowhq/aquaflow-backend/api/validators"
	cartsvc "github.com/aquaflowhq/aquaflow-backend/internal/cart"
	"github.com/aquaflowhq/aquaflow-backend/internal/engagement"
	orderssvc "github.com/aquaflowhq/aquaflow-backend/internal/orders"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

type checkoutRequest struct {
	DeliveryAddress string `json:"delivery_address" validate:"required"`
	DeliveryNotes   string `json:"delivery_notes"`
	PaymentMethod   string `json:"payment_method" validate:"required,oneof=cash card"`
	CardNumber      string `json:"card_number" validate:"required_if=PaymentMethod card,omitempty,credit_card"`
}

// Checkout freezes the cart into an order, runs the payment check, and
// on anything but a declined payment clears the cart and retires the
// customer's engagement attempt. A declined card leaves the cart intact
// so the customer can retry with another method.
func Checkout(carts *cartsvc.Service, orders *orderssvc.Service, gates *engagement.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := requestCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		view, err := carts.Get(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := orders.CreateOrder(r.Context(), orderssvc.CreateOrderInput{
			CustomerID:      customerID,
			CustomerName:    middleware.CustomerNameFromContext(r.Context()),
			Items:           view.Items,
			Summary:         view.Summary,
			DeliveryAddress: payload.DeliveryAddress,
			DeliveryNotes:   payload.DeliveryNotes,
			PaymentMethod:   method,
			CardNumber:      payload.CardNumber,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if order.Record.Status != enums.OrderStatusPaymentFailed {
			if clearErr := carts.Clear(r.Context(), customerID); clearErr != nil {
				logg.Error(r.Context(), "checkout.clear_cart", clearErr)
			}
			gates.Reset(customerID)
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
