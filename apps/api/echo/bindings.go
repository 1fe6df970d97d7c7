package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/foureyes/bando/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads a comma separated list of fields, "-" prefixed for descending order.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// boolParam returns nil when the query param is missing or not a boolean.
func boolParam(ctx echo.Context, name string) *bool {
	b, err := strconv.ParseBool(ctx.QueryParam(name))
	if err != nil {
		return nil
	}
	return &b
}

// idParam fails with a 404 when the path param is not a positive integer.
func idParam(ctx echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, errHttpNotFound
	}
	return id, nil
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	RemovedResponse struct {
		Removed bool `json:"removed"`
	}
)
