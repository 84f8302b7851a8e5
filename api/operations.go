package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/robertmeta/dining-cli/model"
)

// FetchCatalog retrieves the current set of food items. Items without a
// title are dropped; malformed tag or nutrition payloads are kept as-is and
// degrade to empty values when read.
func (c *Client) FetchCatalog(ctx context.Context) ([]model.FoodItem, error) {
	var raw []model.FoodItem
	if err := c.do(ctx, http.MethodGet, "catalog", c.endpoints.Catalog, nil, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogFetchFailed, err)
	}

	items := make([]model.FoodItem, 0, len(raw))
	for _, item := range raw {
		if err := item.Validate(); err != nil {
			c.logger.Debug("Skipping catalog item", slog.String("error", err.Error()))
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

type ratingRequest struct {
	Title  string `json:"title"`
	Rating int    `json:"rating"`
	UID    string `json:"uid"`
}

// SubmitRating sends a star rating for title and returns the server's
// authoritative copy of the item.
func (c *Client) SubmitRating(ctx context.Context, title string, stars int) (model.FoodItem, error) {
	if err := model.ValidateTitle(title); err != nil {
		return model.FoodItem{}, fmt.Errorf("%w: %w", ErrRatingSubmitFailed, err)
	}
	if err := model.ValidateStars(stars); err != nil {
		return model.FoodItem{}, fmt.Errorf("%w: %w", ErrRatingSubmitFailed, err)
	}

	req := ratingRequest{Title: title, Rating: stars, UID: c.identity.UID()}
	var item model.FoodItem
	if err := c.do(ctx, http.MethodPost, "rate", c.endpoints.Rate, req, &item); err != nil {
		return model.FoodItem{}, fmt.Errorf("%w: %w", ErrRatingSubmitFailed, err)
	}
	if err := item.Validate(); err != nil {
		return model.FoodItem{}, fmt.Errorf("%w: %w: %w", ErrRatingSubmitFailed, ErrDecode, err)
	}
	return item, nil
}

type logServingRequest struct {
	UID         string         `json:"uid"`
	ServingSize float64        `json:"serving_size"`
	FoodItem    model.FoodItem `json:"food_item"`
}

type macrosEnvelope struct {
	Macros *model.MacroTotals `json:"macros"`
}

// totals returns the envelope's totals, zero when the server omitted them.
func (e macrosEnvelope) totals() (model.MacroTotals, error) {
	if e.Macros == nil {
		return model.MacroTotals{}, nil
	}
	if err := e.Macros.Validate(); err != nil {
		return model.MacroTotals{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return *e.Macros, nil
}

// LogServing records that servingSize servings of item were eaten and
// returns the server's new running totals. An invalid serving size is
// rejected before any request is made.
func (c *Client) LogServing(ctx context.Context, item model.FoodItem, servingSize float64) (model.MacroTotals, error) {
	if err := model.ValidateServingSize(servingSize); err != nil {
		return model.MacroTotals{}, fmt.Errorf("%w: %w", ErrMacroLogFailed, err)
	}

	req := logServingRequest{UID: c.identity.UID(), ServingSize: servingSize, FoodItem: item}
	var env macrosEnvelope
	if err := c.do(ctx, http.MethodPost, "log_macros", c.endpoints.LogMacros, req, &env); err != nil {
		return model.MacroTotals{}, fmt.Errorf("%w: %w", ErrMacroLogFailed, err)
	}
	totals, err := env.totals()
	if err != nil {
		return model.MacroTotals{}, fmt.Errorf("%w: %w", ErrMacroLogFailed, err)
	}
	return totals, nil
}

// FetchTotals returns the identity's current running totals.
func (c *Client) FetchTotals(ctx context.Context) (model.MacroTotals, error) {
	var env macrosEnvelope
	if err := c.do(ctx, http.MethodGet, "fetch_macros", c.endpoints.FetchMacros, nil, &env); err != nil {
		return model.MacroTotals{}, fmt.Errorf("%w: %w", ErrMacroFetchFailed, err)
	}
	totals, err := env.totals()
	if err != nil {
		return model.MacroTotals{}, fmt.Errorf("%w: %w", ErrMacroFetchFailed, err)
	}
	return totals, nil
}

type uidRequest struct {
	UID string `json:"uid"`
}

// ResetTotals resets the identity's running totals and returns the server's
// values afterwards.
func (c *Client) ResetTotals(ctx context.Context) (model.MacroTotals, error) {
	var env macrosEnvelope
	if err := c.do(ctx, http.MethodPost, "reset_macros", c.endpoints.ResetMacros, uidRequest{UID: c.identity.UID()}, &env); err != nil {
		return model.MacroTotals{}, fmt.Errorf("%w: %w", ErrMacroResetFailed, err)
	}
	totals, err := env.totals()
	if err != nil {
		return model.MacroTotals{}, fmt.Errorf("%w: %w", ErrMacroResetFailed, err)
	}
	return totals, nil
}

type ratedHistoryResponse struct {
	RatedFood []string `json:"ratedFood"`
}

// FetchRatedHistory returns the titles the identity has rated before.
func (c *Client) FetchRatedHistory(ctx context.Context) ([]string, error) {
	var resp ratedHistoryResponse
	if err := c.do(ctx, http.MethodGet, "rated_history", c.endpoints.RatedHistory, nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistoryFetchFailed, err)
	}
	if resp.RatedFood == nil {
		return []string{}, nil
	}
	return resp.RatedFood, nil
}

// RegisterIdentity creates the backend's record for the identity. The
// acknowledgement body is ignored.
func (c *Client) RegisterIdentity(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "register_user", c.endpoints.RegisterUser, uidRequest{UID: c.identity.UID()}, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrRegisterFailed, err)
	}
	return nil
}
