package services

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/davenham/gowater/config"
	"github.com/davenham/gowater/pubsub"
	"github.com/davenham/gowater/pubsub/mqtt"
)

// Service interface
type Service interface {
	ID() string
	Run() error
}

// ServiceInit interface
type ServiceInit interface {
	Service
	Init() error
}

var serviceMap map[string]Service = map[string]Service{}
var enabled []Service

var Config *config.Config

var Publisher pubsub.Publisher
var Subscriber pubsub.Subscriber

func SetupLogging() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.SetOutput(os.Stdout)
}

// SetupConfig loads the configuration from disk. GOWATER_CONFIG overrides
// the default location (~/.config/gowater/gowater.yml).
func SetupConfig() {
	var err error
	if path := os.Getenv("GOWATER_CONFIG"); path != "" {
		var file *os.File
		file, err = os.Open(path)
		if err == nil {
			defer file.Close()
			Config, err = config.OpenReader(file)
		}
	} else {
		Config, err = config.Open()
	}
	if err != nil {
		log.Fatalln("Error reading config:", err)
	}
}

func SetupBroker(name string) {
	url := os.Getenv("GOWATER_MQTT")
	if url == "" {
		url = Config.Endpoints.Mqtt.Broker
	}
	if url == "" {
		log.Fatalln("Set GOWATER_MQTT or endpoints.mqtt.broker to the mqtt server. eg: tcp://127.0.0.1:1883")
	}

	broker := mqtt.NewBroker(url, name)
	Publisher = broker.Publisher()
	if Publisher == nil {
		log.Fatalln("Failed to initialise pub endpoint")
	}
	Subscriber = broker.Subscriber()
	if Subscriber == nil {
		log.Fatalln("Failed to initialise sub endpoint")
	}
}

func Setup(name string) {
	SetupConfig()
	SetupBroker(name)
}

func Launch(ss []string) {
	enabled = []Service{}
	for _, name := range ss {
		if service, ok := serviceMap[name]; ok {
			enabled = append(enabled, service)
		} else {
			log.Fatalf("Service %s does not exist", name)
		}
	}

	// listen for queries
	go QuerySubscriber()

	for _, service := range enabled {
		log.Printf("Starting %s\n", service.ID())
		if service, ok := service.(ServiceInit); ok {
			err := service.Init()
			if err != nil {
				log.Fatalf("Error init service %s: %s", service.ID(), err.Error())
			}
			log.Printf("Initialized %s\n", service.ID())
		}
	}

	// The first service to return brings the process down. Normally this is
	// the watering service returning after its signal handler has shut the
	// pumps off.
	done := make(chan error, len(enabled))
	for _, service := range enabled {
		// run heartbeater
		go Heartbeat(service.ID())
		go func(service Service) {
			err := service.Run()
			if err != nil {
				err = errors.Wrapf(err, "service %s", service.ID())
			}
			done <- err
		}(service)
	}
	if err := <-done; err != nil {
		log.Fatalf("Error running %s", err)
	}
}

func Heartbeat(id string) {
	started := time.Now()
	device := fmt.Sprintf("heartbeat.%s", id)
	fields := pubsub.Fields{
		"device":  device,
		"pid":     os.Getpid(),
		"started": started.Format(time.RFC3339),
	}

	// wait 5 seconds before heartbeating - if the process dies very soon
	time.Sleep(time.Second * 5)

	for {
		uptime := int(time.Now().Sub(started).Seconds())
		fields["uptime"] = uptime
		ev := pubsub.NewEvent("heartbeat", fields)
		ev.SetRetained(true)
		Publisher.Emit(ev)
		time.Sleep(time.Second * 60)
	}
}

func Register(service Service) {
	if _, exists := serviceMap[service.ID()]; exists {
		log.Fatalf("Duplicate service registered: %s", service.ID())
	}
	serviceMap[service.ID()] = service
}

func Shutdown() {
	if Publisher != nil {
		Publisher.Close()
	}
}
