package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/rating"
	"github.com/foureyes/bando/core/user"
)

type ratingApi struct {
	svc rating.Service
}

func registerRatingAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc rating.Service) {
	api := ratingApi{svc: svc}
	professorOnly := roleMiddleware(user.RoleProfessor)

	rg := g.Group("/ratings", jwt)
	rg.GET("", api.query)
	rg.POST("", api.create, professorOnly)
	rg.PUT("", api.update, professorOnly)
	rg.GET("/:student/:assignment", api.retrieve)
	rg.DELETE("/:student/:assignment", api.destroy, professorOnly)
}

// RatingQuery selects ratings by one of its fields, checked in this order.
type RatingQuery struct {
	Student      string `query:"student"`
	AssignmentID int64  `query:"assignment_id"`
	Protocol     string `query:"protocol"`
}

func (api *ratingApi) create(ctx echo.Context) error {
	var data rating.Score
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Score")
	}

	r, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating rating")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *ratingApi) update(ctx echo.Context) error {
	var data rating.Score
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Score")
	}

	r, err := api.svc.Update(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "updating rating")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *ratingApi) query(ctx echo.Context) error {
	var query RatingQuery
	if err := ctx.Bind(&query); err != nil {
		return ctx.JSON(http.StatusOK, []rating.Rating{})
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.IsStudent() {
		query = RatingQuery{Student: claims.Email}
	}

	var ratings []rating.Rating
	reqCtx := ctx.Request().Context()
	switch {
	case query.Student != "":
		ratings, err = api.svc.FindByStudent(reqCtx, core.CleanString(query.Student, true /* lower */))
	case query.AssignmentID != 0:
		ratings, err = api.svc.FindByAssignment(reqCtx, query.AssignmentID)
	case query.Protocol != "":
		ratings, err = api.svc.FindByProtocol(reqCtx, core.CleanString(query.Protocol))
	default:
		return core.NewValidationError(nil, core.FieldError{
			Field: "student",
			Error: "one of student, assignment_id or protocol is required",
		})
	}
	if err != nil {
		return errors.Wrap(err, "querying ratings")
	}
	if ratings == nil {
		ratings = []rating.Rating{}
	}
	return ctx.JSON(http.StatusOK, ratings)
}

func (api *ratingApi) retrieve(ctx echo.Context) error {
	key, err := ratingKeyParam(ctx)
	if err != nil {
		return err
	}
	r, err := api.svc.Get(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "getting rating")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *ratingApi) destroy(ctx echo.Context) error {
	key, err := ratingKeyParam(ctx)
	if err != nil {
		return err
	}
	removed, err := api.svc.Remove(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "removing rating")
	}
	return ctx.JSON(http.StatusOK, RemovedResponse{Removed: removed})
}

// ratingKeyParam reads the rating key of the path. Students may only reach their own ratings.
func ratingKeyParam(ctx echo.Context) (rating.Key, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return rating.Key{}, err
	}
	id, err := idParam(ctx, "assignment")
	if err != nil {
		return rating.Key{}, err
	}
	key := rating.Key{
		Student:      core.CleanString(ctx.Param("student"), true /* lower */),
		AssignmentID: id,
	}
	if claims.IsStudent() && key.Student != claims.Email {
		return rating.Key{}, errHttpNotFound
	}
	return key, nil
}
