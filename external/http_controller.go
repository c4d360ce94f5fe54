package external

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-sessions"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPController handles the external sign-in HTTP routes.
type HTTPController struct {
	linker    *Linker
	transport sessions.CookieTransport
	logger    sessions.Logger
}

// NewHTTPController creates the controller.
func NewHTTPController(linker *Linker, logger sessions.Logger) *HTTPController {
	if logger == nil {
		logger = sessions.DefaultLogger()
	}
	return &HTTPController{
		linker: linker,
		logger: logger,
	}
}

// RegisterRoutes registers the external sign-in routes.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Get("/:provider/callback", c.Callback)
	group.Get("/:provider", c.Begin)
}

// Begin starts the provider handshake.
func (c *HTTPController) Begin(ctx router.Context) error {
	providerName := ctx.Param("provider")
	redirectURL := ctx.Query("redirect_url")

	redirect, err := c.linker.Begin(ctx.Context(), providerName, redirectURL)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.Redirect(redirect.URL, http.StatusTemporaryRedirect)
}

// Callback completes the handshake. The provider's own error, when present,
// arrives in the remoteError query parameter and short-circuits the exchange.
// On success the session cookie is attached and the token and email are
// returned in the body.
func (c *HTTPController) Callback(ctx router.Context) error {
	providerName := ctx.Param("provider")
	code := ctx.Query("code")
	state := ctx.Query("state")
	remoteError := ctx.Query("remoteError")

	result, err := c.linker.Complete(ctx.Context(), providerName, code, state, remoteError)
	if err != nil {
		return c.renderError(ctx, err)
	}

	c.transport.Attach(ctx, result.Token)

	return ctx.JSON(router.StatusOK, map[string]any{
		"token":    result.Token,
		"email":    result.Email,
		"new_user": result.IsNewUser,
	})
}

func (c *HTTPController) renderError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		status := richErr.Code
		if status == 0 {
			status = router.StatusInternalServerError
		}
		return ctx.JSON(status, map[string]string{
			"error": richErr.Message,
			"code":  richErr.TextCode,
		})
	}

	c.logger.Error("external controller unexpected error: %v", err)
	return ctx.JSON(router.StatusInternalServerError, map[string]string{
		"error": "internal error",
	})
}
