package external

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-sessions"
)

// Redirect describes where to send the user to start the provider handshake.
type Redirect struct {
	URL      string
	Provider string
}

// Result is the outcome of a completed external sign-in.
type Result struct {
	Token     string
	Email     string
	User      *sessions.User
	IsNewUser bool
	Linked    bool
}

// Linker drives the external-identity handshake: it starts the provider
// redirect and, on callback, resolves the remote profile to a local user.
// Resolution is by normalized email. An existing user gets the external
// login linked to it; an unknown email gets a user created together with
// the link. Either way the caller leaves with a token minted at the user's
// current version.
type Linker struct {
	providers map[string]Provider
	state     StateManager
	store     sessions.IdentityStore
	tokens    sessions.TokenService
	logger    sessions.Logger
}

// LinkerOption configures a Linker.
type LinkerOption func(*Linker)

// WithLinkerLogger sets the logger.
func WithLinkerLogger(logger sessions.Logger) LinkerOption {
	return func(l *Linker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLinker creates a Linker.
func NewLinker(store sessions.IdentityStore, tokens sessions.TokenService, state StateManager, opts ...LinkerOption) *Linker {
	l := &Linker{
		providers: map[string]Provider{},
		state:     state,
		store:     store,
		tokens:    tokens,
		logger:    sessions.DefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	return l
}

// RegisterProvider makes a provider available under its own name.
func (l *Linker) RegisterProvider(p Provider) *Linker {
	if p != nil {
		l.providers[p.Name()] = p
	}
	return l
}

// Providers lists the registered provider names.
func (l *Linker) Providers() []string {
	names := make([]string, 0, len(l.providers))
	for name := range l.providers {
		names = append(names, name)
	}
	return names
}

// Begin builds the provider redirect with an encrypted state carrying a
// PKCE verifier.
func (l *Linker) Begin(ctx context.Context, providerName, redirectURL string) (*Redirect, error) {
	provider, ok := l.providers[providerName]
	if !ok {
		return nil, ErrProviderNotFound
	}

	verifier, err := generateCodeVerifier()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not generate code verifier")
	}

	encoded, err := l.state.Encode(&OAuthState{
		Provider:     providerName,
		CodeVerifier: verifier,
		RedirectURL:  redirectURL,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not encode oauth state")
	}

	url := provider.AuthCodeURL(encoded, WithPKCE(computeCodeChallenge(verifier), "S256"))

	return &Redirect{
		URL:      url,
		Provider: providerName,
	}, nil
}

// Complete finishes the handshake started by Begin. remoteError is whatever
// error the provider reported on the callback URL; when present the exchange
// is not attempted.
func (l *Linker) Complete(ctx context.Context, providerName, code, stateToken, remoteError string) (*Result, error) {
	if remoteError != "" {
		l.logger.Debug("Complete provider reported error: %s", remoteError)
		return nil, goerrors.New(ErrRemoteAuth.Message, goerrors.CategoryAuth).
			WithTextCode(TextCodeRemoteAuth).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{
				"provider":     providerName,
				"remote_error": remoteError,
			})
	}

	provider, ok := l.providers[providerName]
	if !ok {
		return nil, ErrProviderNotFound
	}

	state, err := l.state.Decode(stateToken)
	if err != nil {
		return nil, err
	}

	if state.Provider != providerName {
		return nil, ErrInvalidState
	}

	token, err := provider.Exchange(ctx, code, WithCodeVerifier(state.CodeVerifier))
	if err != nil {
		l.logger.Error("Complete code exchange failed: %v", err)
		return nil, remoteAuthError(providerName, err)
	}

	profile, err := provider.UserInfo(ctx, token)
	if err != nil {
		l.logger.Error("Complete profile fetch failed: %v", err)
		return nil, remoteAuthError(providerName, err)
	}

	if profile.Email == "" {
		return nil, ErrMissingEmailClaim
	}

	return l.resolve(ctx, provider.Name(), profile)
}

// resolve maps the remote profile onto a local user and mints a token at the
// user's current version.
func (l *Linker) resolve(ctx context.Context, providerName string, profile *Profile) (*Result, error) {
	user, err := l.store.FindByEmail(ctx, profile.Email)

	switch {
	case err == nil:
		linked, err := l.store.LinkExternal(ctx, user.ID, providerName, profile.ProviderUserID)
		if err != nil {
			l.logger.Error("resolve link persistence failed: %v", err)
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, ErrLinkPersistence.Message).
				WithTextCode(TextCodeLinkPersistence)
		}

		token, err := l.tokens.Mint(linked.ID, linked.Version)
		if err != nil {
			return nil, err
		}

		return &Result{
			Token:  token,
			Email:  linked.Email,
			User:   linked,
			Linked: true,
		}, nil

	case goerrors.Is(err, sessions.ErrUserNotFound):
		user = sessions.NewUser(profile.Email)
		user, err = l.store.CreateExternal(ctx, user, providerName, profile.ProviderUserID)
		if err != nil {
			l.logger.Error("resolve user creation failed: %v", err)
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, ErrLinkPersistence.Message).
				WithTextCode(TextCodeLinkPersistence)
		}

		token, err := l.tokens.Mint(user.ID, user.Version)
		if err != nil {
			return nil, err
		}

		return &Result{
			Token:     token,
			Email:     user.Email,
			User:      user,
			IsNewUser: true,
			Linked:    true,
		}, nil

	default:
		return nil, err
	}
}

func remoteAuthError(providerName string, err error) error {
	meta := map[string]any{"provider": providerName}

	var perr *ProviderError
	if goerrors.As(err, &perr) && perr != nil {
		for k, v := range perr.Metadata() {
			meta[k] = v
		}
	} else if err != nil {
		meta["error"] = err.Error()
	}

	return goerrors.Wrap(err, goerrors.CategoryAuth, ErrRemoteAuth.Message).
		WithTextCode(TextCodeRemoteAuth).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(meta)
}
