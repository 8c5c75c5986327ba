package watering

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/davenham/gowater/config"
	"github.com/davenham/gowater/lib/hold"
	"github.com/davenham/gowater/lib/pump"
	"github.com/davenham/gowater/pubsub"
	"github.com/davenham/gowater/pubsub/dummy"
	"github.com/davenham/gowater/services"
)

var (
	em      *dummy.Publisher
	fakes   []*pump.FakePump
	service *Service
)

func Setup() {
	services.Config = config.ExampleConfig
	em = &dummy.Publisher{}
	fakes = nil
	var pumps []pump.Pump
	for range services.Config.Watering.Zones {
		f := pump.NewFakePump()
		fakes = append(fakes, f)
		pumps = append(pumps, f)
	}
	service = &Service{}
	service.Initialize(em, pumps)
}

func Example_interfaces() {
	var _ services.Service = (*Service)(nil)
	var _ services.Queryable = (*Service)(nil)
	// Output:
}

func TestWaterAndStop(t *testing.T) {
	Setup()

	result, duration, err := service.Water("tomatoes", 0, "test")
	assert.NoError(t, err)
	assert.Equal(t, hold.Started, result)
	assert.Equal(t, 30*time.Second, duration) // zone default
	assert.True(t, fakes[0].IsOn())

	// watering state + pump on
	assert.Len(t, em.Events, 2)
	assert.Equal(t, "watering", em.Events[0].Topic)
	assert.Equal(t, "active", em.Events[0].State())
	assert.Equal(t, "pump", em.Events[1].Topic)
	assert.Equal(t, "pump.tomatoes", em.Events[1].Device())
	assert.Equal(t, "on", em.Events[1].State())

	stopped, err := service.Stop("tomatoes", "test")
	assert.NoError(t, err)
	assert.True(t, stopped)
	assert.False(t, fakes[0].IsOn())

	// pump off + watering idle
	assert.Len(t, em.Events, 4)
	assert.Equal(t, "idle", em.Events[2].State())
	assert.Equal(t, "off", em.Events[3].State())

	ons, offs := fakes[0].Counts()
	assert.Equal(t, 1, ons)
	assert.Equal(t, 1, offs)
}

func TestWaterExtends(t *testing.T) {
	Setup()

	result, _, _ := service.Water("beans", time.Minute, "test")
	assert.Equal(t, hold.Started, result)
	result, _, _ = service.Water("beans", time.Minute, "test")
	assert.Equal(t, hold.Extended, result)

	ons, _ := fakes[1].Counts()
	assert.Equal(t, 1, ons) // one activation cycle

	service.StopAll("test")
	_, offs := fakes[1].Counts()
	assert.Equal(t, 1, offs)
}

func TestWaterUnknownZone(t *testing.T) {
	Setup()

	_, _, err := service.Water("cactus", 0, "test")
	assert.Error(t, err)
	assert.Empty(t, em.Events)
}

func TestClamp(t *testing.T) {
	zone := &config.ZoneConf{}
	zone.Duration.Duration = 45 * time.Second
	zone.Max.Duration = 5 * time.Minute

	assert.Equal(t, 45*time.Second, clamp(zone, 0))
	assert.Equal(t, time.Minute, clamp(zone, time.Minute))
	assert.Equal(t, 5*time.Minute, clamp(zone, time.Hour))

	bare := &config.ZoneConf{}
	assert.Equal(t, DefaultDuration, clamp(bare, 0))
}

func TestCommands(t *testing.T) {
	Setup()

	service.handleCommand(pubsub.NewCommand("pump.herbs", "on"))
	assert.True(t, fakes[2].IsOn())

	service.handleCommand(pubsub.NewCommand("pump.herbs", "off"))
	assert.False(t, fakes[2].IsOn())

	// not one of ours
	service.handleCommand(pubsub.NewCommand("light.kitchen", "on"))
	for _, f := range fakes {
		assert.False(t, f.IsOn())
	}
}

func TestCommandDuration(t *testing.T) {
	Setup()

	ev := pubsub.NewCommand("pump.lawn", "on")
	ev.SetField("duration", "90m") // over the 10m zone max
	service.handleCommand(ev)
	assert.True(t, fakes[3].IsOn())
	remaining := service.manager.Remaining(3)
	assert.True(t, remaining <= 10*time.Minute && remaining > 9*time.Minute)

	bad := pubsub.NewCommand("pump.lawn", "on")
	bad.SetField("duration", "xyz")
	service.handleCommand(bad) // ignored, hold unchanged

	service.StopAll("test")
}

func TestCommandHourDuration(t *testing.T) {
	Setup()

	// time.Duration.String() format, as the auto service emits
	ev := pubsub.NewCommand("pump.lawn", "on")
	ev.SetField("duration", "1h30m0s")
	service.handleCommand(ev)
	assert.True(t, fakes[3].IsOn())
	remaining := service.manager.Remaining(3)
	assert.True(t, remaining <= 10*time.Minute && remaining > 9*time.Minute) // zone max

	service.StopAll("test")
}

func TestStopIdle(t *testing.T) {
	Setup()

	stopped, err := service.Stop("tomatoes", "test")
	assert.NoError(t, err)
	assert.False(t, stopped)
	assert.Empty(t, em.Events) // no pump event, no state change
}

func TestStatus(t *testing.T) {
	Setup()

	now := time.Now()
	assert.Contains(t, service.Status(now), "Watering: 0 of 4 zones")

	service.Water("tomatoes", 0, "test")
	status := service.Status(now)
	assert.Contains(t, status, "Watering: 1 of 4 zones")
	assert.Contains(t, status, "tomatoes: on")
	assert.Contains(t, status, "beans: off")

	service.StopAll("test")
}

func TestRollback(t *testing.T) {
	Setup()

	fakes[0].OnError = fmt.Errorf("relay stuck")
	_, _, err := service.Water("tomatoes", 0, "test")
	assert.Error(t, err)
	assert.False(t, service.manager.IsOn(0))

	// active count rolled back: events are state active then idle
	assert.Len(t, em.Events, 2)
	assert.Equal(t, "active", em.Events[0].State())
	assert.Equal(t, "idle", em.Events[1].State())
}

func ExampleService_queryWater() {
	Setup()
	fmt.Println(service.queryWater(services.Question{Verb: "water", Args: "tomatoes 2m"}))
	fmt.Println(service.queryWater(services.Question{Verb: "water", Args: "tomatoes 3m"}))
	fmt.Println(service.queryWater(services.Question{Verb: "water", Args: ""}))
	fmt.Println(service.queryWater(services.Question{Verb: "water", Args: "cactus 1m"}))
	service.StopAll("test")
	// Output:
	// Watering tomatoes for 2 minutes (started)
	// Watering tomatoes for 3 minutes (extended)
	// usage: water <zone> <duration>
	// unknown zone: cactus
}

func ExampleService_queryStop() {
	Setup()
	service.Water("herbs", time.Minute, "test")
	fmt.Println(service.queryStop(services.Question{Verb: "stop", Args: "herbs"}))
	fmt.Println(service.queryStop(services.Question{Verb: "stop", Args: "herbs"}))
	fmt.Println(service.queryStop(services.Question{Verb: "stop", Args: "all"}))
	fmt.Println(service.queryStop(services.Question{Verb: "stop", Args: ""}))
	// Output:
	// Stopped herbs
	// herbs wasn't on
	// Stopped all zones
	// usage: stop <zone>|all
}
