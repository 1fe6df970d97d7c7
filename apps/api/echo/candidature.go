package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/candidature"
	"github.com/foureyes/bando/core/user"
)

type candidatureApi struct {
	svc candidature.Service
}

func registerCandidatureAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc candidature.Service) {
	api := candidatureApi{svc: svc}

	cg := g.Group("/candidatures", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, roleMiddleware(user.RoleStudent))

	dg := cg.Group("/:protocol/:student", ownerOrStaffMiddleware())
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy, roleMiddleware(user.RoleStudent, user.RoleDDI, user.RoleTeachingOffice))
	dg.PUT("/documents", api.updateDocuments, roleMiddleware(user.RoleStudent))
	dg.PUT("/state", api.setState)
}

type (
	CandidatureQuery struct {
		NoticeProtocol string `query:"notice_protocol"`
		Student        string `query:"student"`
	}

	SetStateRequest struct {
		State candidature.State `json:"state"`
	}
)

// evaluationStates are set by staff only; the owner moves the candidature through the others.
var evaluationStates = []candidature.State{candidature.StateEvaluated, candidature.StateRejected}

func (api *candidatureApi) create(ctx echo.Context) error {
	var data candidature.NewCandidature
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCandidature")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), claims.Email, data)
	if err != nil {
		return errors.Wrap(err, "creating candidature")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *candidatureApi) query(ctx echo.Context) error {
	var query CandidatureQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to CandidatureQuery")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var candidatures []candidature.Candidature
	reqCtx := ctx.Request().Context()
	switch {
	case claims.IsStudent():
		candidatures, err = api.svc.FindByStudent(reqCtx, claims.Email)
	case query.NoticeProtocol != "":
		candidatures, err = api.svc.FindByNotice(reqCtx, core.CleanString(query.NoticeProtocol))
	case query.Student != "":
		candidatures, err = api.svc.FindByStudent(reqCtx, core.CleanString(query.Student, true /* lower */))
	default:
		return core.NewValidationError(nil, core.FieldError{
			Field: "notice_protocol",
			Error: "one of notice_protocol or student is required",
		})
	}
	if err != nil {
		return errors.Wrap(err, "querying candidatures")
	}
	if candidatures == nil {
		candidatures = []candidature.Candidature{}
	}
	return ctx.JSON(http.StatusOK, candidatures)
}

func (api *candidatureApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.Get(ctx.Request().Context(), candidatureKey(ctx))
	if err != nil {
		return errors.Wrap(err, "getting candidature")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *candidatureApi) destroy(ctx echo.Context) error {
	removed, err := api.svc.Remove(ctx.Request().Context(), candidatureKey(ctx))
	if err != nil {
		return errors.Wrap(err, "removing candidature")
	}
	return ctx.JSON(http.StatusOK, RemovedResponse{Removed: removed})
}

func (api *candidatureApi) updateDocuments(ctx echo.Context) error {
	var data candidature.UpdateCandidature
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCandidature")
	}

	c, err := api.svc.UpdateDocuments(ctx.Request().Context(), candidatureKey(ctx), data)
	if err != nil {
		return errors.Wrap(err, "updating documents")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *candidatureApi) setState(ctx echo.Context) error {
	var data SetStateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetStateRequest")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	key := candidatureKey(ctx)
	staffOnly := false
	for _, st := range evaluationStates {
		if data.State == st {
			staffOnly = true
		}
	}
	if staffOnly && !claims.HasRole(user.StaffRoles...) {
		return errAccessDenied
	}
	if !staffOnly && key.Student != claims.Email {
		return errAccessDenied
	}

	c, err := api.svc.SetState(ctx.Request().Context(), key, data.State)
	if err != nil {
		return errors.Wrap(err, "setting candidature state")
	}
	return ctx.JSON(http.StatusOK, c)
}

func candidatureKey(ctx echo.Context) candidature.Key {
	return candidature.Key{
		Student:        core.CleanString(ctx.Param("student"), true /* lower */),
		NoticeProtocol: protocolParam(ctx, "protocol"),
	}
}

// ownerOrStaffMiddleware lets a student reach their own candidatures only. Other roles reach all of them.
func ownerOrStaffMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.IsStudent() && candidatureKey(ctx).Student != claims.Email {
				return errHttpNotFound
			}
			return next(ctx)
		}
	}
}
