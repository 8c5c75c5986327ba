// The gowater garden watering system
//
// Features
//
// - Timed watering of multiple zones, each a relay-driven pump on a gpio pin
//
// - Holds extend rather than stack, and every pump switches off exactly once
//
// - Automatic watering from soil moisture sensor readings, with configurable
// rules and cooldowns
//
// - Daily scheduled watering scaled by how dry the soil has been
//
// - Distributed message system over MQTT (sensors and controls can run
// anywhere on the network)
//
// - REST API and command line remote control
//
// - Lightweight, small memory footprint (runs on the Raspberry Pi)
//
// Services
//
// - watering: pump control through the hold manager
//
// - auto: soil moisture rules and scheduled watering
//
// - api: HTTP REST API
package gowater
