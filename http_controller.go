package sessions

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

type ControllerRoutes struct {
	Register      string
	Login         string
	Logout        string
	AccountEmail  string
	AccountDelete string
}

// Controller wires the credential and account operations to HTTP. Session
// state travels only in the cookie managed by CookieTransport; responses
// carry no token except where the payload says so.
type Controller struct {
	Logger    Logger
	Repo      RepositoryManager
	Auther    *Auther
	Tokens    TokenService
	Verifier  *Verifier
	Transport CookieTransport
	Routes    *ControllerRoutes

	// LoginRedirect is where successful register/login lands.
	LoginRedirect string
	// LogoutRedirect is where logout lands.
	LogoutRedirect string
}

type ControllerOption func(*Controller) *Controller

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger: defLogger{},
		Routes: &ControllerRoutes{
			Register:      "/register",
			Login:         "/login",
			Logout:        "/logout",
			AccountEmail:  "/account/email",
			AccountDelete: "/account/delete",
		},
		LoginRedirect:  "/account",
		LogoutRedirect: "/",
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in sessions controller...")
	}

	if c.Tokens == nil {
		panic("Missing TokenService in sessions controller...")
	}

	if c.Auther == nil {
		c.Auther = NewAuthenticator(c.Repo.Users(), c.Tokens).WithLogger(c.Logger)
	}

	if c.Verifier == nil {
		c.Verifier = NewVerifier(c.Tokens, c.Repo.Users(), c.Logger)
	}

	return c
}

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) ControllerOption {
	return func(c *Controller) *Controller {
		c.Repo = repo
		return c
	}
}

func WithControllerTokens(tokens TokenService) ControllerOption {
	return func(c *Controller) *Controller {
		c.Tokens = tokens
		return c
	}
}

// WithControllerTransport sets the cookie transport, usually one whose
// expiry matches a non-default token TTL.
func WithControllerTransport(transport CookieTransport) ControllerOption {
	return func(c *Controller) *Controller {
		c.Transport = transport
		return c
	}
}

// RegisterRoutes mounts all session routes on the given registrar.
func (c *Controller) RegisterRoutes(group RouteRegistrar) {
	protect := Protected(c.Verifier, c.Transport, nil)

	group.Post(c.Routes.Register, c.RegistrationCreate)
	group.Post(c.Routes.Login, c.LoginPost)
	group.Get(c.Routes.Logout, c.LogOut)
	group.Post(c.Routes.AccountEmail, c.AccountEmailPost, protect)
	group.Post(c.Routes.AccountDelete, c.AccountDeletePost, protect)
}

// RegistrationCreatePayload is the registration payload
type RegistrationCreatePayload struct {
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (c *Controller) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		c.Logger.Error("register user parse payload: %v", err)
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "failed to parse payload",
		})
	}

	if err := payload.Validate(); err != nil {
		c.Logger.Error("register user validate payload: %v", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "invalid payload",
			"validation": err,
		})
	}

	registerUser := NewRegisterUserHandler(c.Repo)
	user, err := registerUser.Execute(ctx.Context(), RegisterUserMessage{
		Email:           payload.Email,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
	})
	if err != nil {
		c.Logger.Error("register user execute: %v", err)
		return c.renderError(ctx, err)
	}

	token, err := c.Tokens.Mint(user.ID, user.Version)
	if err != nil {
		return c.renderError(ctx, err)
	}

	c.Transport.Attach(ctx, token)

	return ctx.Redirect(c.LoginRedirect, router.StatusSeeOther)
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (c *Controller) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "failed to parse payload",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "invalid payload",
			"validation": err,
		})
	}

	token, err := c.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return c.renderError(ctx, err)
	}

	c.Transport.Attach(ctx, token)

	return ctx.Redirect(c.LoginRedirect, router.StatusSeeOther)
}

// LogOut drops the cookie. The user's Version is left alone, so other
// sessions for the same account keep working until they expire.
func (c *Controller) LogOut(ctx router.Context) error {
	c.Transport.Detach(ctx)
	return ctx.Redirect(c.LogoutRedirect, router.StatusSeeOther)
}

// AccountEmailPayload carries the new address
type AccountEmailPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r AccountEmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
	)
}

// AccountEmailPost changes the signed-in user's email. The version bump
// invalidates every outstanding token, including the one that authorized
// this request, so a fresh token is minted and re-attached before replying.
func (c *Controller) AccountEmailPost(ctx router.Context) error {
	user, ok := UserFromContext(ctx)
	if !ok {
		return ctx.JSON(router.StatusUnauthorized, map[string]string{
			"error": ErrUnauthenticated.Message,
		})
	}

	payload := new(AccountEmailPayload)
	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "failed to parse payload",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "invalid payload",
			"validation": err,
		})
	}

	changeEmail := NewChangeEmailHandler(c.Repo)
	updated, err := changeEmail.Execute(ctx.Context(), ChangeEmailMessage{
		UserID: user.ID,
		Email:  payload.Email,
	})
	if err != nil {
		c.Logger.Error("account email execute: %v", err)
		return c.renderError(ctx, err)
	}

	token, err := c.Tokens.Mint(updated.ID, updated.Version)
	if err != nil {
		return c.renderError(ctx, err)
	}

	c.Transport.Attach(ctx, token)

	return ctx.JSON(router.StatusOK, map[string]string{
		"email": updated.Email,
	})
}

// AccountDeletePost removes the signed-in user's account and drops the
// session cookie.
func (c *Controller) AccountDeletePost(ctx router.Context) error {
	user, ok := UserFromContext(ctx)
	if !ok {
		return ctx.JSON(router.StatusUnauthorized, map[string]string{
			"error": ErrUnauthenticated.Message,
		})
	}

	deleteAccount := NewDeleteAccountHandler(c.Repo)
	if err := deleteAccount.Execute(ctx.Context(), DeleteAccountMessage{UserID: user.ID}); err != nil {
		c.Logger.Error("account delete execute: %v", err)
		return c.renderError(ctx, err)
	}

	c.Transport.Detach(ctx)

	return ctx.JSON(router.StatusOK, map[string]string{
		"status": "deleted",
	})
}

func (c *Controller) renderError(ctx router.Context, err error) error {
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

	return ctx.JSON(router.StatusInternalServerError, map[string]string{
		"error": "internal error",
	})
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}
