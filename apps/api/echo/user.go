package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/user"
)

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

type userApi struct {
	auth     Authenticator
	svc      user.Service
	validate *validator.Validate
}

func registerUserAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth Authenticator,
	svc user.Service,
	validate *validator.Validate,
) {
	api := userApi{
		auth:     auth,
		svc:      svc,
		validate: validate,
	}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", api.login)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.GET("/roles", api.queryRoles)
	ag.POST("", api.create, staffMiddleware())
	ag.GET("", api.query, staffMiddleware())
	ag.DELETE("", api.destroyMultiple, staffMiddleware())

	// detail endpoints
	dg := ag.Group("/:email", ctxUserOrStaffMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, staffMiddleware())
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	token, err := api.auth.Login(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		if err == user.ErrInvalidCredentials {
			return errBadCredential
		}
		return errors.Wrap(err, "authenticating")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	token, err := api.auth.Token(usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Verified = boolParam(ctx, "verified")
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	// `Role` and `Verified` can only be changed by staff
	if !claims.HasRole(user.StaffRoles...) && (data.Role != "" || data.Verified != nil) {
		return errAccessDenied
	}

	if err = data.Validate(usr, api.validate); err != nil {
		return err
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr.Email, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if usr.Email == claims.Email {
		return errAccessDenied
	}

	if _, err = api.svc.Delete(ctx.Request().Context(), usr.Email); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.Emails == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	for _, email := range query.Emails {
		if core.CleanString(email, true /* lower */) == claims.Email {
			return errAccessDenied
		}
	}

	if _, err = api.svc.Delete(ctx.Request().Context(), query.Emails...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// getContextUser loads the user the token was issued to, once per request.
func getContextUser(ctx echo.Context, svc user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}

	usr, err := svc.Get(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			// the user was deleted after the token was issued
			return user.User{}, errAccessDenied
		}
		return user.User{}, errors.Wrap(err, "finding user by email")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

var contextUserKey = "user"

// ctxUserOrStaffMiddleware loads the user of the path into "object".
// Users other than staff may only reach themselves; anything else is a 404.
func ctxUserOrStaffMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}

			email := core.CleanString(ctx.Param("email"), true /* lower */)
			if email == claims.Email || claims.HasRole(user.StaffRoles...) {
				usr, err := svc.Get(ctx.Request().Context(), email)
				if err == nil {
					ctx.Set("object", usr)
					return next(ctx)
				} else if !core.IsNotFound(err) {
					return errors.Wrap(err, "finding user by email")
				}
			}
			return errHttpNotFound
		}
	}
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	DestroyMultipleRequest struct {
		Emails []string `query:"email"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}
