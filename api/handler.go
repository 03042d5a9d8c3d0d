// Package api - HTTP handler for bill calculation
// This handler wraps the engine - it contains NO pricing logic.
// All logic is delegated to core packages.
package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"utility-bill/core/engine"
	"utility-bill/core/types"
	"utility-bill/internal/errors"
)

// Handler translates API requests into engine calls
type Handler struct {
	engine   *engine.Engine
	validate *validator.Validate
}

// NewHandler creates a new handler
func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{
		engine:   eng,
		validate: validator.New(),
	}
}

func (h *Handler) electricity(ctx context.Context, req *ElectricityRequest) (*BillResponse, error) {
	if err := h.check(req); err != nil {
		return nil, err
	}
	return h.calculate(ctx, engine.Request{
		Utility: types.UtilityElectricity,
		Usage:   *req.Usage,
	})
}

func (h *Handler) water(ctx context.Context, req *WaterRequest) (*BillResponse, error) {
	if err := h.check(req); err != nil {
		return nil, err
	}
	return h.calculate(ctx, engine.Request{
		Utility: types.UtilityWater,
		Usage:   *req.Usage,
		Region:  req.Region,
	})
}

func (h *Handler) calculate(ctx context.Context, req engine.Request) (*BillResponse, error) {
	res, err := h.engine.Calculate(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := &BillResponse{
		ID:        res.Record.ID,
		Utility:   res.Record.Type,
		Usage:     res.Record.Usage,
		Amount:    res.Record.Amount,
		Display:   types.FormatAmount(res.Record.Amount),
		Location:  res.Record.Location,
		Date:      res.Record.Timestamp,
		Saved:     res.Saved.OK,
		Breakdown: res.Breakdown,
	}
	if res.Saved.Err != nil {
		resp.SaveError = res.Saved.Err.Error()
	}
	return resp, nil
}

func (h *Handler) history(ctx context.Context, rawFilter string) (*HistoryResponse, error) {
	filter, err := types.ParseUtilityFilter(rawFilter)
	if err != nil {
		return nil, errors.Wrap(errors.TypeInput, "invalid type filter", err)
	}
	records := h.engine.History(ctx, filter)
	return &HistoryResponse{
		Filter:  filter,
		Count:   len(records),
		Records: records,
	}, nil
}

func (h *Handler) summary(ctx context.Context) *SummaryResponse {
	s := h.engine.Summary(ctx)
	return &SummaryResponse{
		Totals: s.Totals,
		Display: map[string]string{
			"electricity": types.FormatAmount(s.Totals.Electricity),
			"water":       types.FormatAmount(s.Totals.Water),
			"all":         types.FormatAmount(s.Totals.All),
		},
		Monthly: s.Monthly,
		Records: s.Records,
	}
}

// check runs struct validation and reports the first failing field
func (h *Handler) check(req interface{}) error {
	err := h.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return errors.Input(fmt.Sprintf("%s is required", field))
		case "gte":
			return errors.Input(fmt.Sprintf("%s must not be negative", field))
		default:
			return errors.Input(fmt.Sprintf("%s is invalid (%s)", field, fe.Tag()))
		}
	}
	return errors.Wrap(errors.TypeInput, "invalid request", err)
}
