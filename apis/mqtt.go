package apis

import (
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mdx/remotecontrol/action"
)

type MQTTOptions struct {
	Broker   string
	ClientID string
	Topic    string
}

// MQTTMirror publishes every dispatched action under <topic>/<action> and
// forwards payloads received on <topic>/send to the remotes.
type MQTTMirror struct {
	client mqtt.Client
	topic  string
	sender Sender
}

func NewMQTTMirror(opts MQTTOptions, sender Sender) *MQTTMirror {
	m := &MQTTMirror{
		topic:  strings.TrimSuffix(opts.Topic, "/"),
		sender: sender,
	}
	clientOpts := mqtt.NewClientOptions().AddBroker(opts.Broker).SetClientID(opts.ClientID)
	clientOpts.SetKeepAlive(2 * time.Second)
	clientOpts.SetPingTimeout(1 * time.Second)
	clientOpts.SetAutoReconnect(true)
	clientOpts.OnConnect = func(c mqtt.Client) {
		if token := c.Subscribe(m.sendTopic(), 0, m.onMessage); token.Wait() && token.Error() != nil {
			log.Printf("could not subscribe to %s: %v\n", m.sendTopic(), token.Error())
		}
	}
	clientOpts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.Printf("mqtt connection lost: %v\n", err)
	}
	m.client = mqtt.NewClient(clientOpts)
	return m
}

func (m *MQTTMirror) Connect() error {
	if token := m.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("could not connect to mqtt broker: %w", token.Error())
	}
	log.Printf("mirroring actions to mqtt under %s/\n", m.topic)
	return nil
}

func (m *MQTTMirror) Close() {
	m.client.Disconnect(250)
}

func (m *MQTTMirror) actionTopic(a action.Action) string {
	return m.topic + "/" + a.String()
}

func (m *MQTTMirror) sendTopic() string {
	return m.topic + "/send"
}

// Publish mirrors an action without waiting for the broker.
func (m *MQTTMirror) Publish(a action.Action, arg action.Arg) {
	if !m.client.IsConnected() {
		return
	}
	topic := m.actionTopic(a)
	token := m.client.Publish(topic, 0, false, arg.String())
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Printf("could not publish %s: %v\n", topic, token.Error())
		}
	}()
}

func (m *MQTTMirror) onMessage(c mqtt.Client, message mqtt.Message) {
	payload := message.Payload()
	log.Printf("received %q on mqtt topic %s\n", payload, message.Topic())
	if err := m.sender.Send(payload); err != nil {
		log.Printf("could not forward mqtt message to remotes: %v\n", err)
	}
}
