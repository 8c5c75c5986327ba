// Service to control relay-driven watering pumps, one per garden zone.
//
// Pumps are switched on for a bounded duration through a hold manager -
// repeated commands extend the running hold rather than stacking timers,
// and every activation is guaranteed to switch off exactly once, at its
// deadline or on an explicit stop.
//
// Control is via command events (device pump.<zone>) or queries
// (water/stop/status).
package watering

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/davenham/gowater/config"
	"github.com/davenham/gowater/lib/hold"
	"github.com/davenham/gowater/lib/pump"
	"github.com/davenham/gowater/pubsub"
	"github.com/davenham/gowater/services"
	"github.com/davenham/gowater/util"
)

// DefaultDuration applies when a zone has no configured duration.
const DefaultDuration = 30 * time.Second

var Clock = func() time.Time {
	return time.Now()
}

// Service watering
type Service struct {
	Publisher pubsub.Publisher

	zones   []config.ZoneConf
	pumps   []pump.Pump
	manager *hold.Manager

	mu     sync.Mutex
	active int // pumps currently on, maintained by the hold callbacks
}

// ID of the service
func (self *Service) ID() string {
	return "watering"
}

// Initialize wires the service to a publisher and a set of pumps (one per
// configured zone, in zone order).
func (self *Service) Initialize(em pubsub.Publisher, pumps []pump.Pump) {
	self.Publisher = em
	self.zones = services.Config.Watering.Zones
	self.pumps = pumps
	actuators := make([]hold.Actuator, len(pumps))
	for i, p := range pumps {
		actuators[i] = p
	}
	self.manager = hold.New(actuators, self.pumpBegan, self.pumpEnded)
}

// pumpBegan tracks the global active count, announcing the first pump on.
func (self *Service) pumpBegan() {
	self.mu.Lock()
	self.active++
	first := self.active == 1
	self.mu.Unlock()
	if first {
		self.emitState("active")
	}
}

// pumpEnded announces the last pump off.
func (self *Service) pumpEnded() {
	self.mu.Lock()
	self.active--
	last := self.active == 0
	self.mu.Unlock()
	if last {
		self.emitState("idle")
	}
}

func (self *Service) emitState(state string) {
	fields := pubsub.Fields{
		"device": "watering",
		"source": "watering",
		"state":  state,
	}
	ev := pubsub.NewEvent("watering", fields)
	ev.SetRetained(true)
	self.Publisher.Emit(ev)
}

func (self *Service) emitPump(zone string, state string, duration time.Duration, source string) {
	fields := pubsub.Fields{
		"device": "pump." + zone,
		"source": source,
		"state":  state,
	}
	if duration != 0 {
		fields["duration"] = duration.Seconds()
	}
	self.Publisher.Emit(pubsub.NewEvent("pump", fields))
}

// clamp resolves the watering duration for a zone: the zone default when
// unset, capped at the zone maximum.
func clamp(zone *config.ZoneConf, duration time.Duration) time.Duration {
	if duration == 0 {
		duration = zone.Duration.Duration
	}
	if duration == 0 {
		duration = DefaultDuration
	}
	if max := zone.Max.Duration; max != 0 && duration > max {
		duration = max
	}
	return duration
}

// Water switches on the pump for a zone, extending any running hold. A
// zero duration means the zone default; the zone maximum caps it either
// way. The effective duration is returned.
func (self *Service) Water(name string, duration time.Duration, source string) (hold.Result, time.Duration, error) {
	idx, zone := services.Config.Zone(name)
	if zone == nil {
		return "", 0, fmt.Errorf("unknown zone: %s", name)
	}
	duration = clamp(zone, duration)
	result, err := self.manager.Hold(idx, duration, source)
	if err != nil {
		return "", 0, err
	}
	self.emitPump(name, "on", duration, source)
	return result, duration, nil
}

// Stop switches off the pump for a zone. Returns false if it wasn't on.
func (self *Service) Stop(name string, source string) (bool, error) {
	idx, zone := services.Config.Zone(name)
	if zone == nil {
		return false, fmt.Errorf("unknown zone: %s", name)
	}
	stopped, err := self.manager.Off(idx, source)
	if stopped {
		self.emitPump(name, "off", 0, source)
	}
	return stopped, err
}

// StopAll forces every pump off.
func (self *Service) StopAll(source string) {
	for _, zone := range self.zones {
		if _, err := self.Stop(zone.Name, source); err != nil {
			log.Println("Stopping failed:", err)
		}
	}
}

func zoneName(device string) string {
	return strings.TrimPrefix(device, "pump.")
}

func (self *Service) handleCommand(ev *pubsub.Event) {
	name := zoneName(ev.Device())
	if _, zone := services.Config.Zone(name); zone == nil {
		return // command not for us
	}
	source := ev.Source()
	if source == "" {
		source = "command"
	}
	switch ev.Command() {
	case "on":
		var duration time.Duration
		if s := ev.StringField("duration"); s != "" {
			var err error
			duration, err = util.ParseDuration(s)
			if err != nil {
				log.Printf("Ignoring bad duration %q for %s", s, name)
				return
			}
		}
		if _, _, err := self.Water(name, duration, source); err != nil {
			log.Println("Switching on failed:", err)
		}
	case "off":
		if _, err := self.Stop(name, source); err != nil {
			log.Println("Switching off failed:", err)
		}
	default:
		log.Println("Command not recognised:", ev.Command())
	}
}

// Heartbeat publishes a status snapshot for datalogging.
func (self *Service) Heartbeat(now time.Time) {
	fields := pubsub.Fields{
		"device": "watering",
		"source": "watering",
		"status": self.Json(now),
	}
	self.Publisher.Emit(pubsub.NewEvent("watering", fields))
}

func (self *Service) ShortStatus(now time.Time) string {
	on := 0
	for i := range self.zones {
		if self.manager.IsOn(i) {
			on++
		}
	}
	return fmt.Sprintf("Watering: %d of %d zones", on, len(self.zones))
}

func (self *Service) Status(now time.Time) string {
	msg := self.ShortStatus(now)
	for i, zone := range self.zones {
		if self.manager.IsOn(i) {
			msg += fmt.Sprintf("\n%s: on, %s remaining", zone.Name, util.ShortDuration(self.manager.Remaining(i)))
		} else {
			msg += fmt.Sprintf("\n%s: off", zone.Name)
		}
	}
	return msg
}

func (self *Service) Json(now time.Time) interface{} {
	zones := map[string]interface{}{}
	for i, zone := range self.zones {
		zones[zone.Name] = map[string]interface{}{
			"on":        self.manager.IsOn(i),
			"remaining": self.manager.Remaining(i).Seconds(),
		}
	}
	return map[string]interface{}{"zones": zones}
}

func (self *Service) QueryHandlers() services.QueryHandlers {
	return services.QueryHandlers{
		"status": self.queryStatus,
		"water":  services.TextHandler(self.queryWater),
		"stop":   services.TextHandler(self.queryStop),
		"help": services.StaticHandler("" +
			"status: get status\n" +
			"water zone [duration]: water a zone (extends a running watering)\n" +
			"stop zone|all: stop watering\n"),
	}
}

func (self *Service) queryStatus(q services.Question) services.Answer {
	now := Clock()
	return services.Answer{
		Text: self.Status(now),
		Json: self.Json(now),
	}
}

func parseWater(value string) (zone string, duration time.Duration, err error) {
	vs := strings.Fields(value)
	if len(vs) < 1 {
		err = fmt.Errorf("required zone")
		return
	}
	zone = zoneName(vs[0])
	if len(vs) > 1 {
		duration, err = util.ParseDuration(vs[1])
	}
	return
}

func (self *Service) queryWater(q services.Question) string {
	zone, duration, err := parseWater(q.Args)
	if err != nil {
		return "usage: water <zone> <duration>"
	}
	result, effective, err := self.Water(zone, duration, "query")
	if err != nil {
		return fmt.Sprint(err)
	}
	return fmt.Sprintf("Watering %s for %s (%s)", zone, util.FriendlyDuration(effective), result)
}

func (self *Service) queryStop(q services.Question) string {
	name := zoneName(strings.TrimSpace(q.Args))
	if name == "" {
		return "usage: stop <zone>|all"
	}
	if name == "all" {
		self.StopAll("query")
		return "Stopped all zones"
	}
	stopped, err := self.Stop(name, "query")
	if err != nil {
		return fmt.Sprint(err)
	}
	if !stopped {
		return fmt.Sprintf("%s wasn't on", name)
	}
	return fmt.Sprintf("Stopped %s", name)
}

// Init opens the gpio pumps.
func (self *Service) Init() error {
	conf := services.Config.Watering
	settle := conf.Settle.Duration
	var pumps []pump.Pump
	for _, zone := range conf.Zones {
		p, err := pump.NewGPIOPump(zone.Pin, settle)
		if err != nil {
			for _, opened := range pumps {
				opened.Close()
			}
			return err
		}
		pumps = append(pumps, p)
	}
	self.Initialize(services.Publisher, pumps)
	return nil
}

// Shutdown forces every pump off and releases the gpio lines.
func (self *Service) Shutdown() {
	self.manager.OffAll("shutdown")
	for _, p := range self.pumps {
		if err := p.Close(); err != nil {
			log.Println("Closing pump failed:", err)
		}
	}
}

// Run the service
func (self *Service) Run() error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := util.NewScheduler(time.Duration(0), time.Minute)
	events := services.Subscriber.FilteredChannel("command")
	for {
		select {
		case ev := <-events:
			self.handleCommand(ev)
		case tick := <-ticker.C:
			self.Heartbeat(tick)
		case s := <-sig:
			log.Println("Shutting down on", s)
			self.Shutdown()
			services.Shutdown()
			return nil
		}
	}
}
