package echoapi

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/notice"
	"github.com/foureyes/bando/core/user"
)

// commentRoles may leave a comment on a notice.
var commentRoles = []string{user.RoleProfessor, user.RoleDDI, user.RoleTeachingOffice}

type noticeApi struct {
	svc notice.Service
}

func registerNoticeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc notice.Service) {
	api := noticeApi{svc: svc}
	officeOnly := roleMiddleware(user.RoleTeachingOffice)

	ng := g.Group("/notices", jwt)
	ng.GET("", api.query)
	ng.POST("", api.create, officeOnly)
	ng.GET("/:protocol", api.retrieve)
	ng.PUT("/:protocol", api.update, officeOnly)
	ng.DELETE("/:protocol", api.destroy, officeOnly)
	ng.PUT("/:protocol/comment", api.comment, roleMiddleware(commentRoles...))
	ng.DELETE("/:protocol/comment", api.uncomment, roleMiddleware(commentRoles...))
}

func (api *noticeApi) query(ctx echo.Context) error {
	var filter notice.Filter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to notice.Filter")
	}
	filter.Referent = core.CleanString(filter.Referent, true /* lower */)
	if filter.State != "" {
		if _, ok := notice.ParseState(string(filter.State)); !ok {
			return core.NewValidationError(nil, core.FieldError{Field: "state", Error: "unknown notice state"})
		}
	}

	notices, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying notices")
	}
	if notices == nil {
		notices = []notice.Notice{}
	}
	return ctx.JSON(http.StatusOK, notices)
}

func (api *noticeApi) create(ctx echo.Context) error {
	var data notice.NewNotice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotice")
	}

	n, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating notice")
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *noticeApi) retrieve(ctx echo.Context) error {
	n, err := api.svc.FindByProtocol(ctx.Request().Context(), protocolParam(ctx, "protocol"))
	if err != nil {
		return errors.Wrap(err, "finding notice")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *noticeApi) update(ctx echo.Context) error {
	var data notice.UpdateNotice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateNotice")
	}

	n, err := api.svc.Update(ctx.Request().Context(), protocolParam(ctx, "protocol"), data)
	if err != nil {
		return errors.Wrap(err, "updating notice")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *noticeApi) destroy(ctx echo.Context) error {
	removed, err := api.svc.Remove(ctx.Request().Context(), protocolParam(ctx, "protocol"))
	if err != nil {
		return errors.Wrap(err, "removing notice")
	}
	return ctx.JSON(http.StatusOK, RemovedResponse{Removed: removed})
}

func (api *noticeApi) comment(ctx echo.Context) error {
	var data notice.Comment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Comment")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	data.NoticeProtocol = protocolParam(ctx, "protocol")
	data.Author = claims.Email

	c, err := api.svc.SetComment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "commenting notice")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *noticeApi) uncomment(ctx echo.Context) error {
	removed, err := api.svc.RemoveComment(ctx.Request().Context(), protocolParam(ctx, "protocol"))
	if err != nil {
		return errors.Wrap(err, "removing comment")
	}
	return ctx.JSON(http.StatusOK, RemovedResponse{Removed: removed})
}

// protocolParam returns the unescaped path param: protocols carry spaces.
func protocolParam(ctx echo.Context, name string) string {
	p := ctx.Param(name)
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	return core.CleanString(p)
}
