package config

import (
	"io"
	"io/ioutil"
	"os"
	"path"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/davenham/gowater/util"
)

// Duration is a time.Duration parsed from yaml ("30s", "5m", "1d").
type Duration struct {
	Duration time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	val, err := time.ParseDuration(s)
	if err != nil {
		// allow the extended units (d, w)
		val, err = util.ParseDuration(s)
		if err != nil {
			return errors.Errorf("invalid duration: %q", s)
		}
	}
	d.Duration = val
	return nil
}

type EndpointsConf struct {
	Mqtt struct {
		Broker string
	}
	Api string
}

// ZoneConf is one watering zone: a pump driven by a relay on a gpio pin.
// Zone order in the configuration determines the pump index.
type ZoneConf struct {
	Name     string
	Pin      int
	Duration Duration // default watering duration
	Max      Duration // cap on any single hold
}

type WateringConf struct {
	Zones  []ZoneConf
	Settle Duration // relay settle delay after switching
}

// RuleConf triggers watering from soil moisture readings.
type RuleConf struct {
	Zone     string
	When     string // govaluate expression over moisture/dry
	Duration Duration
	Cooldown Duration
}

type AutoConf struct {
	Enabled      bool
	At           *Duration // time of day for the scheduled run
	Interval     *Duration
	Factor       float64
	Min_Moisture float64
	Max_Moisture float64
	Min_Time     Duration
	Max_Time     Duration
	Rules        []RuleConf
}

// Configuration structure
type Config struct {
	// yaml fields
	Endpoints EndpointsConf
	Watering  WateringConf
	Auto      AutoConf
	Sensors   map[string]string // sensor source -> zone name
}

// Open configuration from disk.
func Open() (*Config, error) {
	file, err := os.Open(ConfigPath("gowater.yml"))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return OpenReader(file)
}

// Open configuration from a reader.
func OpenReader(r io.Reader) (*Config, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return OpenRaw(data)
}

// Open configuration from []byte.
func OpenRaw(data []byte) (*Config, error) {
	self := &Config{}
	err := yaml.Unmarshal(data, self)
	if err != nil {
		return nil, err
	}
	if err := self.validate(); err != nil {
		return nil, err
	}
	return self, nil
}

func (self *Config) validate() error {
	names := map[string]bool{}
	pins := map[int]bool{}
	for i, zone := range self.Watering.Zones {
		if zone.Name == "" {
			return errors.Errorf("zone %d: name required", i)
		}
		if names[zone.Name] {
			return errors.Errorf("zone %q: duplicate name", zone.Name)
		}
		names[zone.Name] = true
		if zone.Pin <= 0 {
			return errors.Errorf("zone %q: gpio pin required", zone.Name)
		}
		if pins[zone.Pin] {
			return errors.Errorf("zone %q: gpio pin %d already in use", zone.Name, zone.Pin)
		}
		pins[zone.Pin] = true
		if zone.Max.Duration != 0 && zone.Max.Duration < zone.Duration.Duration {
			return errors.Errorf("zone %q: max below default duration", zone.Name)
		}
	}
	for _, rule := range self.Auto.Rules {
		if !names[rule.Zone] {
			return errors.Errorf("rule for unknown zone %q", rule.Zone)
		}
		if rule.When == "" {
			return errors.Errorf("rule for zone %q: when expression required", rule.Zone)
		}
	}
	for source, zone := range self.Sensors {
		if !names[zone] {
			return errors.Errorf("sensor %q maps to unknown zone %q", source, zone)
		}
	}
	return nil
}

// Zone returns the pump index and configuration for a zone by name.
func (self *Config) Zone(name string) (int, *ZoneConf) {
	for i := range self.Watering.Zones {
		if self.Watering.Zones[i].Name == name {
			return i, &self.Watering.Zones[i]
		}
	}
	return -1, nil
}

// ZoneNames in configured (pump index) order.
func (self *Config) ZoneNames() []string {
	var ret []string
	for _, zone := range self.Watering.Zones {
		ret = append(ret, zone.Name)
	}
	return ret
}

// LookupSensorZone maps an event source to its zone name.
func (self *Config) LookupSensorZone(source string) string {
	return self.Sensors[source]
}

// helpers

// Resolve a configuration file under .config/gowater
func ConfigPath(p string) string {
	config := os.Getenv("XDG_CONFIG_HOME")
	if config == "" {
		config = util.ExpandUser("~/.config")
	}
	return path.Join(config, "gowater", p)
}
