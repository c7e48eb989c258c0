package keygen

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Broker is the part of mqtt.Client used by MQTTSolver.
type Broker interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

var _ Broker = mqtt.Client(nil)

// Request is published to <Topic>/request.
type Request struct {
	ID          string `json:"id"`
	DeviceClass string `json:"device_class"`
	Challenge   string `json:"challenge"`
	Variant     int    `json:"variant"`
	ReplyTo     string `json:"reply_to"`
}

// Reply is expected on the ReplyTo topic of the request.
type Reply struct {
	ID       string `json:"id"`
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// MQTTSolver asks a remote key service for the response token. It subscribes
// to a reply topic unique to the request, publishes the request and waits for
// the matching reply.
type MQTTSolver struct {
	Broker  Broker
	Topic   string
	Timeout time.Duration
}

func (s MQTTSolver) Solve(ctx context.Context, deviceClass, challenge string, variant int) (string, error) {
	id, err := newRequestID()
	if err != nil {
		return "", err
	}
	replyTo := s.Topic + "/response/" + id

	replies := make(chan Reply, 1)
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		var reply Reply
		if err := json.Unmarshal(msg.Payload(), &reply); err != nil || reply.ID != id {
			return
		}
		select {
		case replies <- reply:
		default:
		}
	}

	if token := s.Broker.Subscribe(replyTo, 1, handler); token.Wait() && token.Error() != nil {
		return "", fmt.Errorf("keygen: subscribe %s: %w", replyTo, token.Error())
	}
	defer s.Broker.Unsubscribe(replyTo)

	payload, err := json.Marshal(Request{
		ID:          id,
		DeviceClass: deviceClass,
		Challenge:   challenge,
		Variant:     variant,
		ReplyTo:     replyTo,
	})
	if err != nil {
		return "", err
	}
	if token := s.Broker.Publish(s.Topic+"/request", 1, false, payload); token.Wait() && token.Error() != nil {
		return "", fmt.Errorf("keygen: publish request: %w", token.Error())
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-replies:
		if reply.Error != "" {
			return "", fmt.Errorf("keygen: service error: %s", reply.Error)
		}
		if reply.Response == "" {
			return "", ErrEmptyResponse
		}
		return reply.Response, nil
	case <-timer.C:
		return "", fmt.Errorf("keygen: timeout waiting for reply on %s", replyTo)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Connect creates and connects a paho client for MQTTSolver.
func Connect(broker, clientID, username, password string) (mqtt.Client, error) {
	if broker == "" {
		return nil, errors.New("keygen: mqtt broker is required")
	}
	opts := mqtt.NewClientOptions().AddBroker(broker)
	opts.SetClientID(clientID)
	if username != "" {
		opts.SetUsername(username)
		opts.SetPassword(password)
	}
	opts.SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("keygen: mqtt connect: %w", token.Error())
	}
	return client, nil
}

func newRequestID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("keygen: request id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
