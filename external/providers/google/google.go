package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-sessions/external"
)

const (
	defaultAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// Config holds Google OAuth configuration. Endpoint URLs default to the
// live Google endpoints and exist as fields for tests.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	UserInfoURL string

	HTTPClient *http.Client
}

// DefaultScopes returns the scopes needed to resolve an account by email.
func DefaultScopes() []string {
	return []string{"openid", "email", "profile"}
}

// Provider implements external.Provider for Google.
type Provider struct {
	config     Config
	httpClient *http.Client
}

// New creates a Google provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultUserInfoURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Provider{
		config:     cfg,
		httpClient: client,
	}
}

func (p *Provider) Name() string {
	return "google"
}

// AuthCodeURL builds the authorization redirect. access_type=offline matches
// what the consent screen expects even though the token is never refreshed.
func (p *Provider) AuthCodeURL(state string, opts ...external.AuthCodeOption) string {
	cfg := external.ApplyAuthCodeOptions(p.config.Scopes, opts...)

	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.CallbackURL},
		"response_type": {"code"},
		"scope":         {strings.Join(cfg.Scopes, " ")},
		"state":         {state},
		"access_type":   {"offline"},
	}

	if cfg.CodeChallenge != "" {
		method := cfg.CodeChallengeMethod
		if method == "" {
			method = "S256"
		}
		params.Set("code_challenge", cfg.CodeChallenge)
		params.Set("code_challenge_method", method)
	}

	if cfg.Prompt != "" {
		params.Set("prompt", cfg.Prompt)
	}

	return p.config.AuthURL + "?" + params.Encode()
}

// Exchange trades the callback code for an access token.
func (p *Provider) Exchange(ctx context.Context, code string, opts ...external.ExchangeOption) (*external.Token, error) {
	cfg := external.ApplyExchangeOptions(opts...)

	form := url.Values{
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"code":          {code},
		"redirect_uri":  {p.config.CallbackURL},
		"grant_type":    {"authorization_code"},
	}
	if cfg.CodeVerifier != "" {
		form.Set("code_verifier", cfg.CodeVerifier)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := p.do(req)
	if err != nil {
		return nil, err
	}

	payload := struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
		Error       string `json:"error"`
		ErrorDesc   string `json:"error_description"`
	}{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, p.failure("exchange", status, "invalid_response", "failed to decode token response", err)
	}

	if status != http.StatusOK || payload.Error != "" {
		errCode, desc := payload.Error, payload.ErrorDesc
		if errCode == "" && desc == "" {
			errCode, desc = parseGoogleError(body)
		}
		return nil, p.failure("exchange", status, errCode, desc, nil)
	}
	if payload.AccessToken == "" {
		return nil, p.failure("exchange", status, "missing_access_token", "missing access token", nil)
	}

	expiresAt := time.Time{}
	if payload.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}

	return &external.Token{
		AccessToken: payload.AccessToken,
		TokenType:   payload.TokenType,
		ExpiresAt:   expiresAt,
	}, nil
}

// UserInfo fetches the profile fields the linker resolves accounts by.
func (p *Provider) UserInfo(ctx context.Context, token *external.Token) (*external.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	status, body, err := p.do(req)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		code, desc := parseGoogleError(body)
		return nil, p.failure("user_info", status, code, desc, nil)
	}

	payload := struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, p.failure("user_info", status, "invalid_response", "failed to decode userinfo response", err)
	}

	return &external.Profile{
		Provider:       p.Name(),
		ProviderUserID: payload.Sub,
		Email:          payload.Email,
		EmailVerified:  payload.EmailVerified,
	}, nil
}

func (p *Provider) do(req *http.Request) (int, []byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, body, nil
}

func (p *Provider) failure(operation string, status int, code, description string, err error) *external.ProviderError {
	return &external.ProviderError{
		Provider:    p.Name(),
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
	}
}

// parseGoogleError normalizes the two error shapes Google responds with: the
// flat OAuth {error, error_description} and the nested API
// {error: {code, message, status}}.
func parseGoogleError(body []byte) (string, string) {
	flat := struct {
		Error string `json:"error"`
		Desc  string `json:"error_description"`
	}{}
	if err := json.Unmarshal(body, &flat); err == nil && (flat.Error != "" || flat.Desc != "") {
		return flat.Error, flat.Desc
	}

	nested := struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}{}
	if err := json.Unmarshal(body, &nested); err == nil && (nested.Error.Message != "" || nested.Error.Status != "") {
		code := nested.Error.Status
		if code == "" && nested.Error.Code != 0 {
			code = fmt.Sprintf("%d", nested.Error.Code)
		}
		return code, nested.Error.Message
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = "google request failed"
	}

	return "", msg
}
