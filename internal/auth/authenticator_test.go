package auth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/urbanlens/internal/diagnostics"
)

// MockSignInClient is a mock implementation of SignInClient
type MockSignInClient struct {
	mock.Mock
}

func (m *MockSignInClient) Init(ctx context.Context, clientID string) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}

func (m *MockSignInClient) SignIn(ctx context.Context) (Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Session), args.Error(1)
}

func newTestReporter() (*diagnostics.Reporter, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return diagnostics.NewReporter(logger, nil), hook
}

func TestAuthenticator_SignIn(t *testing.T) {
	client := new(MockSignInClient)
	client.On("Init", mock.Anything, "client-id").Return(nil)
	client.On("SignIn", mock.Anything).Return(&tokenSession{resp: AuthResponse{IDToken: "id-token"}}, nil)

	reporter, _ := newTestReporter()
	a := NewAuthenticator(context.Background(), client, "client-id", reporter)

	token, err := a.SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id-token", token)
	client.AssertExpectations(t)
}

// slowInitClient records whether SignIn ran before Init completed.
type slowInitClient struct {
	initDone   atomic.Bool
	outOfOrder atomic.Bool
	release    chan struct{}
}

func (c *slowInitClient) Init(ctx context.Context, clientID string) error {
	<-c.release
	c.initDone.Store(true)
	return nil
}

func (c *slowInitClient) SignIn(ctx context.Context) (Session, error) {
	if !c.initDone.Load() {
		c.outOfOrder.Store(true)
	}
	return &tokenSession{resp: AuthResponse{IDToken: "late-token"}}, nil
}

func TestAuthenticator_WaitsForInit(t *testing.T) {
	client := &slowInitClient{release: make(chan struct{})}
	reporter, _ := newTestReporter()
	a := NewAuthenticator(context.Background(), client, "client-id", reporter)

	type result struct {
		token string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		token, err := a.SignIn(context.Background())
		done <- result{token, err}
	}()

	select {
	case <-done:
		t.Fatal("SignIn returned before the client was ready")
	case <-time.After(50 * time.Millisecond):
	}

	close(client.release)

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, "late-token", res.token)
	case <-time.After(5 * time.Second):
		t.Fatal("SignIn did not complete after init")
	}
	assert.False(t, client.outOfOrder.Load())

	select {
	case <-a.Ready():
	default:
		t.Error("expected Ready to be closed")
	}
}

func TestAuthenticator_CancelledWhileWaiting(t *testing.T) {
	client := &slowInitClient{release: make(chan struct{})}
	defer close(client.release)

	reporter, hook := newTestReporter()
	a := NewAuthenticator(context.Background(), client, "client-id", reporter)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := a.SignIn(ctx)
	assert.ErrorIs(t, err, ErrAuthenticationIncomplete)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, log.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "sign_in_failed", hook.LastEntry().Data["event"])
}

func TestAuthenticator_Failures(t *testing.T) {
	cancelled := errors.New("popup closed by user")

	tests := []struct {
		name    string
		setup   func(c *MockSignInClient)
		wantErr error
	}{
		{
			name: "init failure",
			setup: func(c *MockSignInClient) {
				c.On("Init", mock.Anything, "client-id").Return(errors.New("bad client id"))
			},
		},
		{
			name: "sign-in cancelled",
			setup: func(c *MockSignInClient) {
				c.On("Init", mock.Anything, "client-id").Return(nil)
				c.On("SignIn", mock.Anything).Return(nil, cancelled)
			},
			wantErr: cancelled,
		},
		{
			name: "no session",
			setup: func(c *MockSignInClient) {
				c.On("Init", mock.Anything, "client-id").Return(nil)
				c.On("SignIn", mock.Anything).Return(nil, nil)
			},
		},
		{
			name: "empty id token",
			setup: func(c *MockSignInClient) {
				c.On("Init", mock.Anything, "client-id").Return(nil)
				c.On("SignIn", mock.Anything).Return(&tokenSession{resp: AuthResponse{AccessToken: "only-access"}}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockSignInClient)
			tt.setup(client)

			reporter, hook := newTestReporter()
			a := NewAuthenticator(context.Background(), client, "client-id", reporter)

			token, err := a.SignIn(context.Background())
			assert.Empty(t, token)
			assert.ErrorIs(t, err, ErrAuthenticationIncomplete)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, "Sign-in failed", hook.LastEntry().Message)
			client.AssertExpectations(t)
		})
	}
}

func TestAuthenticator_NilClient(t *testing.T) {
	a := NewAuthenticator(context.Background(), nil, "client-id", nil)

	_, err := a.SignIn(context.Background())
	assert.ErrorIs(t, err, ErrAuthenticationIncomplete)
}
