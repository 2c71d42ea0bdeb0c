package server

import (
	"errors"
	"io"
	"strings"
	"time"
	"unicode"

	"zephyr/internal/credentials"
	"zephyr/internal/middleware"
	"zephyr/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten means a helper already wrote the response. Handlers return
// nil when they see it so Fiber's ErrorHandler leaves the body alone.
var errResponseWritten = errors.New("response already written")

// Session cookie names.
const (
	userCookie  = "jwt"
	adminCookie = "adminJwt"
)

// Pagination is the limit/offset pair read from list endpoints' query strings.
type Pagination struct {
	Limit  int
	Offset int
}

const maxPaginationLimit = 100

// parsePagination falls back to defaultLimit for missing or non-positive limits
// and caps the limit at 100.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	return Pagination{
		Limit:  min(limit, maxPaginationLimit),
		Offset: max(c.QueryInt("offset", 0), 0),
	}
}

// parseID reads a positive numeric route param. On failure it has already written
// a 400 naming the param ("Invalid community ID") and returns errResponseWritten.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam turns "id" into "ID" and "replyId" into "reply ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	base, ok := strings.CutSuffix(param, "Id")
	if !ok {
		return param
	}
	var b strings.Builder
	for i, r := range base {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String() + " ID"
}

// parseBody decodes the request body into dst, answering 400 on malformed input.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// statusForCode maps an AppError code to its HTTP status.
func statusForCode(code string) int {
	switch code {
	case models.CodeValidation, models.CodeInvalidVoteType, models.CodeIncorrectOTP:
		return fiber.StatusBadRequest
	case models.CodeAlreadyRequestedOrFriends, models.CodeNoSuccessor:
		// Business-rule refusals share the 400 tier with bad input.
		return fiber.StatusBadRequest
	case models.CodeOTPExpired:
		// Clients show "OTP expired" from a 400, not a session error.
		return fiber.StatusBadRequest
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeConflict:
		return fiber.StatusConflict
	case models.CodeRateLimited:
		return fiber.StatusTooManyRequests
	case models.CodeServiceUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// mapServiceError returns the HTTP status for an error coming out of the service layer.
func mapServiceError(err error) int {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return statusForCode(appErr.Code)
	}
	return fiber.StatusInternalServerError
}

// respondServiceError writes err with its mapped status. Server-side failures are
// logged with the request context and hidden from the caller.
func respondServiceError(c *fiber.Ctx, err error) error {
	status := mapServiceError(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			"path", c.Path(), "status", status, "error", err)
		var appErr *models.AppError
		if !errors.As(err, &appErr) {
			err = models.NewInternalError(err)
		}
	}
	return models.RespondWithError(c, status, err)
}

// currentUserID returns the authenticated user id set by AuthRequired or AdminRequired.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

func currentClaims(c *fiber.Ctx) *credentials.Claims {
	claims, _ := c.Locals("claims").(*credentials.Claims)
	return claims
}

func (s *Server) secureCookies() bool {
	return !strings.EqualFold(s.config.Env, "development") && !strings.EqualFold(s.config.Env, "test")
}

// setSessionCookie stores a session token in an http-only cookie for the token lifetime.
func (s *Server) setSessionCookie(c *fiber.Ctx, name, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(credentials.TokenTTL),
		MaxAge:   int(credentials.TokenTTL.Seconds()),
		HTTPOnly: true,
		Secure:   s.secureCookies(),
		SameSite: fiber.CookieSameSiteNoneMode,
	})
}

// clearSessionCookie overwrites the cookie with an already expired one.
func (s *Server) clearSessionCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   s.secureCookies(),
		SameSite: fiber.CookieSameSiteNoneMode,
	})
}

// readUpload reads the multipart file stored under field. A missing file is
// reported as (nil, nil) when optional is set.
func readUpload(c *fiber.Ctx, field string, optional bool) ([]byte, error) {
	file, err := c.FormFile(field)
	if err != nil {
		if optional {
			return nil, nil
		}
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
		return nil, errResponseWritten
	}

	src, err := file.Open()
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
		return nil, errResponseWritten
	}
	defer func() { _ = src.Close() }()

	data, err := io.ReadAll(src)
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
		return nil, errResponseWritten
	}
	return data, nil
}
