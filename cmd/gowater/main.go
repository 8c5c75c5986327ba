package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/davenham/gowater/services"
	"github.com/davenham/gowater/services/api"
	"github.com/davenham/gowater/services/auto"
	"github.com/davenham/gowater/services/watering"
)

var allServices = []string{"watering", "auto", "api"}

func registerServices() {
	// register available services
	services.Register(&api.Service{})
	services.Register(&auto.Service{})
	services.Register(&watering.Service{})
}

func usage() {
	fmt.Println("Usage: gowater COMMAND [ARGS]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("   run    [service...]      Run services (default: all)")
	fmt.Println("   status                   Get watering status")
	fmt.Println("   water  zone [duration]   Water a zone")
	fmt.Println("   stop   zone|all          Stop watering")
	fmt.Println("   soil                     Get last soil readings")
	fmt.Println("   zones                    List configured zones")
	fmt.Println("   query  ...               Query services")
	fmt.Println()
}

var emptyParams = url.Values{}

func main() {
	log.SetOutput(os.Stdout)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	ps := []string{}
	if flag.NArg() > 1 {
		ps = flag.Args()[1:]
	}

	services.SetupLogging()

	command := flag.Args()[0]
	switch command {
	default:
		usage()
	case "run":
		service(ps)
	case "status":
		query("watering/status", []string{}, url.Values{"responses": {"1"}})
	case "water":
		if len(ps) == 0 {
			usage()
			return
		}
		query("watering/water", ps, url.Values{"responses": {"1"}})
	case "stop":
		if len(ps) == 0 {
			usage()
			return
		}
		query("watering/stop", ps, url.Values{"responses": {"1"}})
	case "soil":
		query("auto/soil", []string{}, url.Values{"responses": {"1"}})
	case "zones":
		get("zones")
	case "query":
		if len(ps) == 0 {
			usage()
			return
		}
		query(ps[0], ps[1:], url.Values{"timeout": {"5000"}, "responses": {"1"}})
	}
}

// Start builtin services
func service(ss []string) {
	if len(ss) == 0 {
		ss = allServices
	}
	services.Setup(strings.Join(ss, ","))
	registerServices()
	services.Launch(ss)
}
