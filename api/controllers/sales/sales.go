package sales

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/api/middleware"
	"github.com/angelmondragon/pos-backend/api/responses"
	"github.com/angelmondragon/pos-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/pos-backend/internal/checkout"
	salessvc "github.com/angelmondragon/pos-backend/internal/sales"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/pagination"
)

// Submit records a sale built on the terminal. The amounts the terminal
// displayed are verified against a server-side recomputation.
func Submit(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		viewer, err := middleware.ViewerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload submitSaleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		submission, err := payload.toSubmission(viewer)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Submit(r.Context(), submission)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, salessvc.NewSaleDTO(result.Sale))
	}
}

// List returns sales newest first. Cashiers only see their own.
func List(svc salessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		viewer, err := middleware.ViewerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), viewer, pagination.Params{Limit: limit, Offset: offset})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// Detail returns one sale with its frozen lines.
func Detail(svc salessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		viewer, err := middleware.ViewerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rawSaleID := strings.TrimSpace(chi.URLParam(r, "saleId"))
		if rawSaleID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "sale id is required"))
			return
		}
		saleID, err := uuid.Parse(rawSaleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sale id"))
			return
		}

		sale, err := svc.Get(r.Context(), viewer, saleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, sale)
	}
}

type submitSaleRequest struct {
	Items              []submitSaleLine `json:"items" validate:"dive"`
	Subtotal           *decimal.Decimal `json:"subtotal,omitempty"`
	DiscountPercentage *decimal.Decimal `json:"discountPercentage,omitempty"`
	DiscountAmount     *decimal.Decimal `json:"discountAmount,omitempty"`
	TaxAmount          *decimal.Decimal `json:"taxAmount,omitempty"`
	TotalAmount        *decimal.Decimal `json:"totalAmount,omitempty"`
	PaymentMethod      string           `json:"paymentMethod" validate:"required"`
	AmountTendered     *decimal.Decimal `json:"amountTendered,omitempty"`
}

type submitSaleLine struct {
	ProductID      string           `json:"productId" validate:"required"`
	Quantity       int              `json:"quantity"`
	UnitPrice      *decimal.Decimal `json:"unitPrice" validate:"required"`
	DiscountAmount *decimal.Decimal `json:"discountAmount,omitempty"`
	Subtotal       *decimal.Decimal `json:"subtotal,omitempty"`
}

// toSubmission leaves quantity and amount range checks to the checkout
// service so the terminal gets one consistent set of validation errors.
func (p submitSaleRequest) toSubmission(viewer salessvc.Viewer) (checkoutsvc.Submission, error) {
	method, err := enums.ParsePaymentMethod(p.PaymentMethod)
	if err != nil {
		return checkoutsvc.Submission{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}

	lines := make([]checkoutsvc.SubmissionLine, 0, len(p.Items))
	for i, item := range p.Items {
		productID, err := uuid.Parse(strings.TrimSpace(item.ProductID))
		if err != nil {
			return checkoutsvc.Submission{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id").
				WithDetails(map[string]any{"line": i})
		}
		discount := decimal.Zero
		if item.DiscountAmount != nil {
			discount = *item.DiscountAmount
		}
		lines = append(lines, checkoutsvc.SubmissionLine{
			ProductID:      productID,
			Quantity:       item.Quantity,
			UnitPrice:      *item.UnitPrice,
			DiscountAmount: discount,
			Subtotal:       item.Subtotal,
		})
	}

	pct := decimal.Zero
	if p.DiscountPercentage != nil {
		pct = *p.DiscountPercentage
	}

	return checkoutsvc.Submission{
		OperatorID:         viewer.UserID,
		OperatorRole:       viewer.Role,
		Items:              lines,
		DiscountPercentage: pct,
		Subtotal:           p.Subtotal,
		DiscountAmount:     p.DiscountAmount,
		TaxAmount:          p.TaxAmount,
		TotalAmount:        p.TotalAmount,
		PaymentMethod:      method,
		AmountTendered:     p.AmountTendered,
	}, nil
}
