package echoapi

import (
	"crypto/subtle"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/semina/core"
	"github.com/trezcool/semina/core/seminar"
)

const cronSecretHeader = "X-Cron-Secret"

// Claims represents the authorization claims transmitted via a JWT. Tokens
// are issued by the auth system; this API only verifies them.
type Claims struct {
	jwt.StandardClaims
	RegisterNumber string `json:"register_number,omitempty"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	ClassYear      string `json:"class_year,omitempty"`
	IsAdmin        bool   `json:"is_admin,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "studentToken",
		Claims:        new(Claims),
	}
}

// GetStudentClaims builds the claims for a student token.
func GetStudentClaims(conf *core.Config, st seminar.Student, isAdmin bool) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   st.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		RegisterNumber: st.RegisterNumber,
		Name:           st.Name,
		Email:          st.Email,
		ClassYear:      string(st.ClassYear),
		IsAdmin:        isAdmin,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get("studentToken").(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// cronSecretMiddleware authorizes scheduler callbacks via a shared secret
// header. An empty configured secret rejects everything; the cron path must
// be deliberately enabled.
func cronSecretMiddleware(conf *core.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			secret := ctx.Request().Header.Get(cronSecretHeader)
			if conf.CronSecret != "" && subtle.ConstantTimeCompare([]byte(secret), []byte(conf.CronSecret)) == 1 {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
