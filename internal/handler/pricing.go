package handler

import (
	"net/http"
	"strconv"

	"github.com/fixora/wallet/internal/errHandler"
	"github.com/fixora/wallet/internal/pricing"
	"github.com/fixora/wallet/internal/response"
)

type pricingHandler struct {
	table      pricing.Table
	errHandler *errHandler.ErrorRepository
}

func NewPricingHandler(table pricing.Table, errHandler *errHandler.ErrorRepository) *pricingHandler {
	return &pricingHandler{
		table:      table,
		errHandler: errHandler,
	}
}

func (h *pricingHandler) HandleMaxPrice(w http.ResponseWriter, r *http.Request) {
	yearsParam := r.URL.Query().Get("years")

	years, err := strconv.Atoi(yearsParam)
	if err != nil || years < 0 {
		message := "Invalid years of experience"
		response.JSONErrorResponse(w, nil, message, http.StatusUnprocessableEntity, nil)
		return
	}

	data := map[string]any{
		"years":     years,
		"max_price": h.table.MaxPriceFor(years),
	}

	message := "Maximum price retrieved successfully"
	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}
