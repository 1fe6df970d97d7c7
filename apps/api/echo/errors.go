package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/assignment"
	"github.com/foureyes/bando/core/candidature"
	"github.com/foureyes/bando/core/user"
)

var (
	errAccessDenied  = echo.NewHTTPError(http.StatusUnauthorized, "access denied")
	errHttpNotFound  = echo.NewHTTPError(http.StatusNotFound, "not found")
	errBadCredential = core.NewValidationError(user.ErrInvalidCredentials)
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing || origErr.Code == http.StatusUnauthorized {
				code = errAccessDenied.Code
				message = errAccessDenied.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusPreconditionFailed
			message = translateErrors(origErr, translator)
		case *core.ValidationError:
			code = http.StatusPreconditionFailed
			switch {
			case origErr.Fields != nil:
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			case isValidatorErr(origErr.Err):
				message = translateErrors(origErr.Err.(validator.ValidationErrors), translator)
			default:
				message = origErr.Error()
			}
		case *core.ConflictError, *assignment.TransitionError, *candidature.StateError:
			code = http.StatusPreconditionFailed
			message = origErr.Error()
		case *core.NotFoundError:
			code = http.StatusNotFound
			message = origErr.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.Email = claims.Email
				usr.Role = claims.Role
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func isValidatorErr(err error) bool {
	_, ok := err.(validator.ValidationErrors)
	return ok
}

func translateErrors(errs validator.ValidationErrors, translator ut.Translator) map[string]string {
	fldErrs := make(map[string]string, len(errs))
	for _, vErr := range errs {
		fldErrs[vErr.Field()] = vErr.Translate(translator)
	}
	return fldErrs
}
