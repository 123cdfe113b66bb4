package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Google's OAuth 2.0 endpoints, the provider the map front-end signs in with.
const (
	DefaultAuthURL      = "https://accounts.google.com/o/oauth2/auth"
	DefaultTokenURL     = "https://oauth2.googleapis.com/token"
	DefaultCallbackPath = "/oauth/callback"
)

// BrowserOpener presents the provider's sign-in page to the user.
type BrowserOpener func(authURL string) error

// OAuthConfig configures the loopback OAuth sign-in client.
type OAuthConfig struct {
	ClientSecret string
	AuthURL      string
	TokenURL     string
	Scopes       []string
	// RedirectPort is the loopback port for the callback; 0 picks a free one.
	RedirectPort int
	CallbackPath string
	// HTTPClient is used for the token exchange; nil means http.DefaultClient.
	HTTPClient *http.Client
}

// OAuthClient signs the user in with the OAuth 2.0 authorization code flow
// (with PKCE) through a redirect to a loopback address.
type OAuthClient struct {
	cfg  OAuthConfig
	open BrowserOpener

	mu       sync.Mutex
	conf     *oauth2.Config
	addr     string
	listener net.Listener
}

type tokenSession struct {
	resp AuthResponse
}

func (s *tokenSession) AuthResponse() AuthResponse { return s.resp }

type callbackResult struct {
	code string
	err  error
}

// NewOAuthClient creates an OAuth sign-in client.
func NewOAuthClient(cfg OAuthConfig, open BrowserOpener) *OAuthClient {
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = DefaultCallbackPath
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}
	return &OAuthClient{cfg: cfg, open: open}
}

// Init binds the loopback callback listener and prepares the OAuth config.
func (c *OAuthClient) Init(ctx context.Context, clientID string) error {
	if clientID == "" {
		return errors.New("oauth client id is empty")
	}
	if c.open == nil {
		return errors.New("no browser opener configured")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listener == nil {
		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf("127.0.0.1:%d", c.cfg.RedirectPort))
		if err != nil {
			return fmt.Errorf("listen for oauth callback: %w", err)
		}
		c.listener = ln
		c.addr = ln.Addr().String()
	}

	c.conf = &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: c.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.cfg.AuthURL,
			TokenURL:  c.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: "http://" + c.addr + c.cfg.CallbackPath,
		Scopes:      c.cfg.Scopes,
	}
	return nil
}

// SignIn opens the provider's consent page and waits for the redirect.
// Only one sign-in runs at a time.
func (c *OAuthClient) SignIn(ctx context.Context) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conf == nil {
		return nil, errors.New("oauth client is not initialised")
	}

	// The listener is consumed by each sign-in; rebind the same address.
	if c.listener == nil {
		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", c.addr)
		if err != nil {
			return nil, fmt.Errorf("listen for oauth callback: %w", err)
		}
		c.listener = ln
	}
	ln := c.listener
	c.listener = nil

	state, err := randomState()
	if err != nil {
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.Handle(c.cfg.CallbackPath, callbackHandler(state, results))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go srv.Serve(ln)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := c.conf.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
	if err := c.open(authURL); err != nil {
		return nil, fmt.Errorf("open sign-in page: %w", err)
	}

	var code string
	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		code = res.code
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if c.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.cfg.HTTPClient)
	}
	tok, err := c.conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	return &tokenSession{resp: AuthResponse{
		IDToken:     idToken,
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.Expiry,
	}}, nil
}

// Close releases the callback listener.
func (c *OAuthClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listener == nil {
		return nil
	}
	err := c.listener.Close()
	c.listener = nil
	return err
}

// callbackHandler receives the provider redirect and reports the outcome once.
func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	send := func(res callbackResult) {
		select {
		case results <- res:
		default:
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "Invalid state", http.StatusBadRequest)
			return
		}

		if reason := q.Get("error"); reason != "" {
			send(callbackResult{err: fmt.Errorf("provider returned %s", reason)})
			http.Error(w, "Sign-in was cancelled", http.StatusUnauthorized)
			return
		}

		code := q.Get("code")
		if code == "" {
			send(callbackResult{err: errors.New("callback without authorization code")})
			http.Error(w, "Authorization code required", http.StatusBadRequest)
			return
		}

		send(callbackResult{code: code})
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Signed in. You can close this window."))
	})
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
