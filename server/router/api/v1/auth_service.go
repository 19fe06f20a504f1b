package v1

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/sukritx/piyanutai/server/internal/errors"
	"github.com/sukritx/piyanutai/server/internal/observability"
	"github.com/sukritx/piyanutai/store"
)

const (
	// accessTokenCookieName is the cookie carrying the access token.
	accessTokenCookieName = "piyanutai.access-token"
	// accessTokenDuration is how long issued tokens stay valid.
	accessTokenDuration = 7 * 24 * time.Hour

	userIDContextKey = "user-id"
)

type signRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        int32  `json:"id"`
	Username  string `json:"username"`
	CreatedTs int64  `json:"createdTs"`
}

type signinResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// Signup creates a new user account.
func (s *APIV1Service) Signup(c echo.Context) error {
	ctx := c.Request().Context()

	var req signRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed signup request").SetInternal(err)
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	existing, err := s.Store.GetUser(ctx, &store.FindUser{Username: &req.Username})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to look up user").SetInternal(err)
	}
	if existing != nil {
		return echo.NewHTTPError(http.StatusConflict, "username is already taken")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to hash password").SetInternal(err)
	}

	user, err := s.Store.CreateUser(ctx, &store.User{
		Username:     req.Username,
		PasswordHash: string(passwordHash),
		CreatedTs:    time.Now().Unix(),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create user").SetInternal(err)
	}

	return c.JSON(http.StatusCreated, toUserResponse(user))
}

// Signin verifies credentials and issues an access token.
func (s *APIV1Service) Signin(c echo.Context) error {
	ctx := c.Request().Context()

	var req signRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed signin request").SetInternal(err)
	}

	user, err := s.Store.GetUser(ctx, &store.FindUser{Username: &req.Username})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to look up user").SetInternal(err)
	}
	if user == nil {
		return unauthorized(c, "invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return unauthorized(c, "invalid username or password")
	}

	token, err := s.generateAccessToken(user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate access token").SetInternal(err)
	}

	c.SetCookie(&http.Cookie{
		Name:     accessTokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(accessTokenDuration),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	return c.JSON(http.StatusOK, signinResponse{
		Token: token,
		User:  toUserResponse(user),
	})
}

// Me returns the authenticated user.
func (s *APIV1Service) Me(c echo.Context) error {
	ctx := c.Request().Context()
	userID := currentUserID(c)

	user, err := s.Store.GetUser(ctx, &store.FindUser{ID: &userID})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to look up user").SetInternal(err)
	}
	if user == nil {
		return unauthorized(c, "user no longer exists")
	}

	return c.JSON(http.StatusOK, toUserResponse(user))
}

// JWTMiddleware authenticates the request from a Bearer header or the access
// token cookie and stores the resolved user ID on the context.
func (s *APIV1Service) JWTMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := extractToken(c)
		if token == "" {
			return unauthorized(c, "missing access token")
		}

		userID, err := s.parseAccessToken(token)
		if err != nil {
			return unauthorized(c, "invalid access token")
		}

		user, err := s.Store.GetUser(c.Request().Context(), &store.FindUser{ID: &userID})
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to look up user").SetInternal(err)
		}
		if user == nil {
			return unauthorized(c, "user no longer exists")
		}

		c.Set(userIDContextKey, user.ID)
		return next(c)
	}
}

func (s *APIV1Service) rateLimitMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := currentUserID(c)
		key := fmt.Sprintf("user:%d", userID)
		if !s.limiter.Allow(key) {
			logger := observability.NewRequestContext(slog.Default(), userID)
			return s.writePipelineError(c, logger, errors.RateLimitExceeded("too many requests, slow down"))
		}
		return next(c)
	}
}

// unauthorized writes a 401 with the taxonomy's error body.
func unauthorized(c echo.Context, msg string) error {
	unauthorizedErr := errors.Unauthorized(msg)
	return c.JSON(http.StatusUnauthorized, errorResponse{
		Message: unauthorizedErr.Message,
		Error:   string(unauthorizedErr.Code),
	})
}

func (s *APIV1Service) generateAccessToken(userID int32) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    "piyanutai",
		Subject:   strconv.Itoa(int(userID)),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenDuration)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.Secret))
}

func (s *APIV1Service) parseAccessToken(tokenString string) (int32, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.Secret), nil
	})
	if err != nil {
		return 0, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("malformed subject claim: %w", err)
	}
	return int32(userID), nil
}

func extractToken(c echo.Context) string {
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
	}
	if cookie, err := c.Cookie(accessTokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func currentUserID(c echo.Context) int32 {
	id, _ := c.Get(userIDContextKey).(int32)
	return id
}

func toUserResponse(user *store.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Username:  user.Username,
		CreatedTs: user.CreatedTs,
	}
}
