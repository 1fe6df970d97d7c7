package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/foureyes/bando/core/assignment"
	"github.com/foureyes/bando/core/notice"
	"github.com/foureyes/bando/core/user"
)

type assignmentApi struct {
	svc     assignment.Service
	notices notice.Service
}

func registerAssignmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc assignment.Service, notices notice.Service) {
	api := assignmentApi{svc: svc, notices: notices}

	ag := g.Group("/assignments", jwt)
	ag.GET("", api.search)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id/send-request", api.sendRequest, roleMiddleware(user.RoleProfessor), api.referentMiddleware())
	ag.PUT("/:id/book", api.book, roleMiddleware(user.RoleStudent))
	ag.PUT("/:id/decline", api.decline, roleMiddleware(user.RoleStudent))
	ag.PUT("/:id/assign", api.assign, roleMiddleware(user.RoleTeachingOffice))
	ag.PUT("/:id/close", api.close, roleMiddleware(user.RoleProfessor), api.referentMiddleware())
}

// referentMiddleware lets through the referent professor of the assignment's notice.
// Any professor may act on notices without a referent.
func (api *assignmentApi) referentMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := idParam(ctx, "id")
			if err != nil {
				return err
			}
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}

			rctx := ctx.Request().Context()
			a, err := api.svc.Get(rctx, id)
			if err != nil {
				return errors.Wrap(err, "getting assignment")
			}
			n, err := api.notices.FindByProtocol(rctx, a.NoticeProtocol)
			if err != nil {
				return errors.Wrap(err, "finding notice")
			}
			if n.ReferentProfessor != "" && n.ReferentProfessor != claims.Email {
				return errAccessDenied
			}
			return next(ctx)
		}
	}
}

type (
	SendRequestRequest struct {
		Student string `json:"student"`
	}

	CloseRequest struct {
		Note string `json:"note"`
	}
)

func (api *assignmentApi) search(ctx echo.Context) error {
	var filter assignment.Filter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to assignment.Filter")
	}

	// students only see what was offered to them
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.IsStudent() {
		filter.Student = claims.Email
	}

	assignments, err := api.svc.Search(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "searching assignments")
	}
	if assignments == nil {
		assignments = []assignment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	a, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) sendRequest(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	var data SendRequestRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendRequestRequest")
	}

	a, err := api.svc.SendRequest(ctx.Request().Context(), assignment.Ref{ID: id}, data.Student)
	if err != nil {
		return errors.Wrap(err, "sending request")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) book(ctx echo.Context) error {
	return api.studentReply(ctx, api.svc.Book)
}

func (api *assignmentApi) decline(ctx echo.Context) error {
	return api.studentReply(ctx, api.svc.Decline)
}

// studentReply answers a request on behalf of the student of the token.
func (api *assignmentApi) studentReply(
	ctx echo.Context,
	reply func(ctx context.Context, ref assignment.Ref, student string) (assignment.Assignment, error),
) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	a, err := reply(ctx.Request().Context(), assignment.Ref{ID: id}, claims.Email)
	if err != nil {
		return errors.Wrap(err, "replying to request")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) assign(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	a, err := api.svc.Assign(ctx.Request().Context(), assignment.Ref{ID: id})
	if err != nil {
		return errors.Wrap(err, "assigning")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) close(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	var data CloseRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CloseRequest")
	}

	a, err := api.svc.Close(ctx.Request().Context(), assignment.Ref{ID: id}, data.Note)
	if err != nil {
		return errors.Wrap(err, "closing assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}
