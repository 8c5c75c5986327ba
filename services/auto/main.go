// Service to water the garden automatically.
//
// Two triggers are supported. Soil moisture rules evaluate a configured
// expression (eg "moisture < 25") against each soil sensor reading as it
// arrives, and start watering the zone when it matches, subject to a
// per-zone cooldown. A daily scheduled run waters every zone for a time
// scaled between min_time and max_time by how dry the soil has been.
//
// Watering itself is delegated to the watering service via command
// events, so this service never touches the pumps directly.
package auto

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/pkg/errors"

	"github.com/davenham/gowater/pubsub"
	"github.com/davenham/gowater/services"
	"github.com/davenham/gowater/util"
)

var Clock = func() time.Time {
	return time.Now()
}

// readings older than this are ignored for the scheduled run
var maxReadingAge = 2 * time.Hour

type rule struct {
	zone      string
	expr      *govaluate.EvaluableExpression
	duration  time.Duration
	cooldown  time.Duration
	lastFired time.Time
}

type reading struct {
	moisture float64
	at       time.Time
}

// Service auto
type Service struct {
	Publisher pubsub.Publisher

	rules []*rule

	// readings is shared with the query goroutines
	mu       sync.Mutex
	readings map[string]reading // zone -> latest
}

// ID of the service
func (self *Service) ID() string {
	return "auto"
}

func (self *Service) Initialize(em pubsub.Publisher) error {
	self.Publisher = em
	self.readings = map[string]reading{}
	self.rules = nil
	for _, conf := range services.Config.Auto.Rules {
		expr, err := govaluate.NewEvaluableExpression(conf.When)
		if err != nil {
			return errors.Wrapf(err, "rule for zone %q", conf.Zone)
		}
		self.rules = append(self.rules, &rule{
			zone:     conf.Zone,
			expr:     expr,
			duration: conf.Duration.Duration,
			cooldown: conf.Cooldown.Duration,
		})
	}
	return nil
}

func (self *Service) command(zone string, duration time.Duration) {
	ev := pubsub.NewCommand("pump."+zone, "on")
	ev.SetField("source", "auto")
	if duration != 0 {
		ev.SetField("duration", duration.Round(time.Second).String())
	}
	self.Publisher.Emit(ev)
}

// Event handles a soil moisture reading.
func (self *Service) Event(ev *pubsub.Event) {
	zone := services.Config.LookupSensorZone(ev.Source())
	if zone == "" {
		return // not a sensor we know
	}
	moisture, ok := ev.FloatField("moisture")
	if !ok {
		return
	}
	now := ev.Timestamp
	self.mu.Lock()
	self.readings[zone] = reading{moisture, now}
	self.mu.Unlock()

	params := map[string]interface{}{
		"moisture": moisture,
		"dry":      100 - moisture,
	}
	for _, r := range self.rules {
		if r.zone != zone {
			continue
		}
		result, err := r.expr.Evaluate(params)
		if err != nil {
			log.Printf("Rule for %s failed: %s", r.zone, err)
			continue
		}
		matched, _ := result.(bool)
		if !matched {
			continue
		}
		if !r.lastFired.IsZero() && now.Sub(r.lastFired) < r.cooldown {
			continue // cooling down
		}
		r.lastFired = now
		log.Printf("Soil rule matched for %s (moisture %.1f%%), watering for %s", zone, moisture, util.FriendlyDuration(r.duration))
		self.command(zone, r.duration)
	}
}

func (self *Service) lastReading(zone string) (reading, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	r, ok := self.readings[zone]
	return r, ok
}

// averageMoisture over fresh readings, and whether there were any.
func (self *Service) averageMoisture(now time.Time) (float64, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	total, n := 0.0, 0
	for _, r := range self.readings {
		if now.Sub(r.at) > maxReadingAge {
			continue
		}
		total += r.moisture
		n++
	}
	if n == 0 {
		return 0, false
	}
	return total / float64(n), true
}

// calculateDuration scales watering time by soil dryness.
// moisture at max_moisture or above waters for min_time, at min_moisture
// or below for max_time, with a power curve between.
func calculateDuration(moisture float64) time.Duration {
	a := services.Config.Auto
	t := (a.Max_Moisture - moisture) / (a.Max_Moisture - a.Min_Moisture)
	// limit to 0.0-1.0
	t = math.Max(math.Min(t, 1.0), 0.0)

	span := float64(a.Max_Time.Duration - a.Min_Time.Duration)
	return a.Min_Time.Duration + time.Duration(math.Pow(t, a.Factor)*span)
}

func (self *Service) tick(now time.Time) {
	if !services.Config.Auto.Enabled {
		log.Println("Currently disabled, not running")
		return
	}
	average, ok := self.averageMoisture(now)
	for _, zone := range services.Config.Watering.Zones {
		moisture := average
		if r, present := self.lastReading(zone.Name); present && now.Sub(r.at) <= maxReadingAge {
			moisture = r.moisture
		} else if !ok {
			log.Printf("No recent soil readings, skipping %s", zone.Name)
			continue
		}
		duration := calculateDuration(moisture)
		if duration == 0 {
			log.Printf("Not watering %s (moisture %.1f%%)", zone.Name, moisture)
			continue
		}
		log.Printf("Watering %s for %s (moisture %.1f%%)", zone.Name, util.FriendlyDuration(duration), moisture)
		self.command(zone.Name, duration)
	}
}

func (self *Service) Status(now time.Time) string {
	msg := "Auto watering"
	if !services.Config.Auto.Enabled {
		msg += " (disabled)"
	}
	for _, zone := range services.Config.Watering.Zones {
		if r, ok := self.lastReading(zone.Name); ok {
			msg += fmt.Sprintf("\n%s: %.1f%% at %s", zone.Name, r.moisture, r.at.Format(time.Stamp))
		} else {
			msg += fmt.Sprintf("\n%s: unknown", zone.Name)
		}
	}
	return msg
}

func (self *Service) QueryHandlers() services.QueryHandlers {
	return services.QueryHandlers{
		"soil": self.querySoil,
		"help": services.StaticHandler("" +
			"soil: get last soil moisture readings\n"),
	}
}

func (self *Service) querySoil(q services.Question) services.Answer {
	now := Clock()
	zones := map[string]interface{}{}
	self.mu.Lock()
	for zone, r := range self.readings {
		zones[zone] = map[string]interface{}{
			"moisture": r.moisture,
			"at":       r.at.Format(time.RFC3339),
		}
	}
	self.mu.Unlock()
	return services.Answer{
		Text: self.Status(now),
		Json: zones,
	}
}

func (self *Service) Init() error {
	return self.Initialize(services.Publisher)
}

// Run the service
func (self *Service) Run() error {
	// schedule at given time and interval
	conf := services.Config.Auto
	at, interval := 7*time.Hour, 24*time.Hour
	if conf.At != nil {
		at = conf.At.Duration
	}
	if conf.Interval != nil {
		interval = conf.Interval.Duration
	}
	ticker := util.NewScheduler(at, interval)
	events := services.Subscriber.FilteredChannel("soil")
	for {
		select {
		case ev := <-events:
			self.Event(ev)
		case t := <-ticker.C:
			self.tick(t)
		}
	}
}
