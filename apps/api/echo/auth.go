package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/safnadck/myapplication/core"
)

const contextTokenKey = "adminToken"

// Claims represents the authorization claims transmitted via a JWT.
// Tokens are minted by the identity provider (or the admin `token` command).
type Claims struct {
	jwt.StandardClaims
	Username    string `json:"username,omitempty"`
	Email       string `json:"email,omitempty"`
	IsSuperuser bool   `json:"is_superuser,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func NewClaims(id core.Identity, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   id.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username:    id.Username,
		Email:       id.Email,
		IsSuperuser: id.IsSuperuser,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(claims *Claims, conf *core.Config) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// contextIdentity is the administrator calling, or a zero Identity when unauthenticated.
func contextIdentity(ctx echo.Context) core.Identity {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return core.Identity{}
	}
	return core.Identity{
		ID:          claims.Subject,
		Username:    claims.Username,
		Email:       claims.Email,
		IsSuperuser: claims.IsSuperuser,
	}
}
