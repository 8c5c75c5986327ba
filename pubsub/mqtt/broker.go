package mqtt

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/davenham/gowater/pubsub"
)

// Prefix for all topics on the wire.
const Prefix = "gowater/"

type Broker struct {
	broker string
	client MQTT.Client
	events chan *pubsub.Event
}

func createClient(broker string, name string, handler MQTT.MessageHandler, connectHandler MQTT.OnConnectHandler) MQTT.Client {
	// generate a unique client id
	hostname, _ := os.Hostname()
	clientID := fmt.Sprintf("gowater/%s/%s-%d-%d", name, hostname, os.Getpid(), rand.Int())
	opts := MQTT.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetDefaultPublishHandler(handler).
		SetOnConnectHandler(connectHandler)

	client := MQTT.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln("Couldn't connect to mqtt:", token.Error())
	}
	return client
}

// NewBroker connects to the mqtt broker at url.
func NewBroker(url string, name string) *Broker {
	self := &Broker{broker: url, events: make(chan *pubsub.Event, 16)}
	self.client = createClient(url, name, self.publishHandler, self.connectHandler)
	return self
}

func (self *Broker) Id() string {
	return "mqtt: " + self.broker
}

func (self *Broker) publishHandler(client MQTT.Client, msg MQTT.Message) {
	topic := msg.Topic()
	if len(topic) < len(Prefix) {
		return
	}
	event := pubsub.Parse(string(msg.Payload()), topic[len(Prefix):])
	if event == nil {
		return
	}
	event.SetRetained(msg.Retained())
	self.events <- event
}

func (self *Broker) connectHandler(client MQTT.Client) {
	// (re)subscribe when (re)connected
	if token := client.Subscribe(Prefix+"#", 1, nil); token.Wait() && token.Error() != nil {
		log.Println("Error subscribing:", token.Error())
	}
}

func (self *Broker) Subscriber() pubsub.Subscriber {
	return pubsub.NewFilteredSubscriber(self.Id(), self.events)
}

func (self *Broker) Publisher() pubsub.Publisher {
	return &Publisher{broker: self.broker, client: self.client}
}
