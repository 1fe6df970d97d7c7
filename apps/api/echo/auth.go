package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/user"
)

var contextTokenKey = "userToken"

// Claims represents the authorization claims transmitted via a JWT.
// The subject is the email of the user.
type Claims struct {
	jwt.StandardClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (c Claims) HasRole(roles ...string) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

func (c Claims) IsStudent() bool        { return c.Role == user.RoleStudent }
func (c Claims) IsProfessor() bool      { return c.Role == user.RoleProfessor }
func (c Claims) IsDDI() bool            { return c.Role == user.RoleDDI }
func (c Claims) IsTeachingOffice() bool { return c.Role == user.RoleTeachingOffice }

// Authenticator issues tokens and verifies them on incoming requests.
type Authenticator interface {
	// Login checks the credentials and returns a signed token for the user.
	Login(ctx context.Context, email, pwd string) (string, error)
	Token(usr user.User) (string, error)
	// Middleware rejects requests without a valid token and keeps its Claims in the echo.Context.
	Middleware() echo.MiddlewareFunc
}

type jwtAuthenticator struct {
	users      user.Service
	issuer     string
	signingKey []byte
	method     jwt.SigningMethod
	expiration time.Duration
}

var _ Authenticator = (*jwtAuthenticator)(nil)

// NewJWTAuthenticator signs HS256 tokens with the secret key of conf.
func NewJWTAuthenticator(conf *core.Config, users user.Service) Authenticator {
	return &jwtAuthenticator{
		users:      users,
		issuer:     conf.AppName,
		signingKey: []byte(conf.SecretKey),
		method:     jwt.GetSigningMethod(middleware.AlgorithmHS256),
		expiration: conf.Server.JWTExpirationDelta,
	}
}

func (a *jwtAuthenticator) Login(ctx context.Context, email, pwd string) (string, error) {
	usr, err := a.users.Authenticate(ctx, email, pwd)
	if err != nil {
		return "", err
	}
	return a.Token(usr)
}

func (a *jwtAuthenticator) Token(usr user.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.issuer,
			Subject:   usr.Email,
			ExpiresAt: now.Add(a.expiration).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email: usr.Email,
		Role:  usr.Role,
	}

	ss, err := jwt.NewWithClaims(a.method, claims).SignedString(a.signingKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (a *jwtAuthenticator) Middleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    a.signingKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	})
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errAccessDenied
}
