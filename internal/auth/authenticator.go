package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/urbanlens/internal/diagnostics"
	"github.com/ukydev/urbanlens/internal/metrics"
)

// AuthResponse is the credential set returned by a completed sign-in.
type AuthResponse struct {
	IDToken     string
	AccessToken string
	ExpiresAt   time.Time
}

// Session is the signed-in user as reported by the sign-in client.
type Session interface {
	AuthResponse() AuthResponse
}

// SignInClient is a third-party sign-in provider.
type SignInClient interface {
	// Init prepares the client for clientID. SignIn must not be called
	// before Init has returned.
	Init(ctx context.Context, clientID string) error
	// SignIn runs the interactive sign-in and returns the resulting session.
	SignIn(ctx context.Context) (Session, error)
}

// Authenticator obtains identity tokens from a SignInClient.
//
// Client initialisation starts as soon as the authenticator is created and
// SignIn waits for it to finish, so sign-in is never attempted against a
// client that is not ready.
type Authenticator struct {
	client   SignInClient
	clientID string
	reporter *diagnostics.Reporter

	ready   chan struct{}
	initErr error // written before ready is closed
}

// NewAuthenticator creates an authenticator and starts client initialisation.
// ctx bounds initialisation only.
func NewAuthenticator(ctx context.Context, client SignInClient, clientID string, reporter *diagnostics.Reporter) *Authenticator {
	if reporter == nil {
		reporter = diagnostics.NewReporter(nil, nil)
	}
	a := &Authenticator{
		client:   client,
		clientID: clientID,
		reporter: reporter,
		ready:    make(chan struct{}),
	}
	go a.init(ctx)
	return a
}

func (a *Authenticator) init(ctx context.Context) {
	defer close(a.ready)

	if a.client == nil {
		a.initErr = errors.New("no sign-in client configured")
		return
	}
	if err := a.client.Init(ctx, a.clientID); err != nil {
		a.initErr = fmt.Errorf("init sign-in client: %w", err)
		return
	}
	a.reporter.Logger().WithField("client_id", a.clientID).Debug("Sign-in client ready")
}

// Ready is closed once client initialisation has finished, successfully or not.
func (a *Authenticator) Ready() <-chan struct{} {
	return a.ready
}

// SignIn runs the interactive sign-in and returns the identity token.
//
// Every failure, including a cancelled sign-in and a session without an
// identity token, is returned as an error wrapping ErrAuthenticationIncomplete.
func (a *Authenticator) SignIn(ctx context.Context) (string, error) {
	select {
	case <-a.ready:
	case <-ctx.Done():
		return "", a.fail(ctx, fmt.Errorf("%w: waiting for sign-in client: %w", ErrAuthenticationIncomplete, ctx.Err()))
	}

	if a.initErr != nil {
		return "", a.fail(ctx, fmt.Errorf("%w: %w", ErrAuthenticationIncomplete, a.initErr))
	}

	session, err := a.client.SignIn(ctx)
	if err != nil {
		return "", a.fail(ctx, fmt.Errorf("%w: sign in: %w", ErrAuthenticationIncomplete, err))
	}
	if session == nil {
		return "", a.fail(ctx, fmt.Errorf("%w: sign-in returned no session", ErrAuthenticationIncomplete))
	}

	token := session.AuthResponse().IDToken
	if token == "" {
		return "", a.fail(ctx, fmt.Errorf("%w: session has no identity token", ErrAuthenticationIncomplete))
	}

	metrics.SignIns.WithLabelValues("ok").Inc()
	a.reporter.Logger().WithField("client_id", a.clientID).Info("Signed in")

	return token, nil
}

func (a *Authenticator) fail(ctx context.Context, err error) error {
	metrics.SignIns.WithLabelValues("failed").Inc()
	a.reporter.Report(ctx, log.ErrorLevel, diagnostics.KindSignInFailed, "Sign-in failed", err, log.Fields{
		"client_id": a.clientID,
	})
	return err
}
