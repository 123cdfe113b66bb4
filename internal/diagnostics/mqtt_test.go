package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error, completed bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if completed {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

// fakeClient only implements Publish and Disconnect; other methods panic.
type fakeClient struct {
	mqtt.Client
	token        *fakeToken
	topic        string
	payload      []byte
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.topic = topic
	c.payload, _ = payload.([]byte)
	return c.token
}

func (c *fakeClient) Disconnect(quiesce uint) { c.disconnected = true }

func TestMQTTPublisher_Publish(t *testing.T) {
	client := &fakeClient{token: newFakeToken(nil, true)}
	publisher := newMQTTPublisher(client, "urbanlens/diagnostics")

	event := Event{Kind: KindLocationFallback, Message: "Using default coordinates", Error: "denied"}
	require.NoError(t, publisher.Publish(context.Background(), event))

	assert.Equal(t, "urbanlens/diagnostics", client.topic)
	var got Event
	require.NoError(t, json.Unmarshal(client.payload, &got))
	assert.Equal(t, KindLocationFallback, got.Kind)
	assert.Equal(t, "denied", got.Error)

	publisher.Close()
	assert.True(t, client.disconnected)
}

func TestMQTTPublisher_BrokerError(t *testing.T) {
	client := &fakeClient{token: newFakeToken(errors.New("not connected"), true)}
	publisher := newMQTTPublisher(client, "urbanlens/diagnostics")

	err := publisher.Publish(context.Background(), Event{Kind: KindSignInFailed})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestMQTTPublisher_ContextCancelled(t *testing.T) {
	client := &fakeClient{token: newFakeToken(nil, false)}
	publisher := newMQTTPublisher(client, "urbanlens/diagnostics")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := publisher.Publish(ctx, Event{Kind: KindPlacesFetchFailed})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewMQTTPublisher_Validation(t *testing.T) {
	_, err := NewMQTTPublisher("", "id", "topic")
	assert.Error(t, err)

	_, err = NewMQTTPublisher("tcp://localhost:1883", "id", "")
	assert.Error(t, err)
}
