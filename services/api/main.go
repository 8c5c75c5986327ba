// Package api is a service providing an HTTP REST API to monitor and control
// watering.
//
// The endpoints supported are:
//
// http://localhost:8723/zones - list the configured zones
//
// http://localhost:8723/status - watering status (live, via the watering service)
//
// http://localhost:8723/zones/{zone}/water?duration=2m - POST to start watering a zone
//
// http://localhost:8723/zones/{zone}/stop - POST to stop watering a zone
//
// http://localhost:8723/query/{query} - query a service, e.g. http://localhost:8723/query/watering/status
//
// http://localhost:8723/events/feed - continuous live stream of events (line delimited)
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/davenham/gowater/pubsub"
	"github.com/davenham/gowater/services"
	"github.com/davenham/gowater/util"
)

// Service api
type Service struct {
}

// ID of the service
func (service *Service) ID() string {
	return "api"
}

func errorResponse(w http.ResponseWriter, code int, err error) {
	http.Error(w, err.Error(), code)
}

func jsonResponse(w http.ResponseWriter, obj interface{}) {
	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	err := enc.Encode(obj)
	if err != nil {
		errorResponse(w, 500, err)
	}
}

func apiIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Content-Type", "text/html")
	fmt.Fprintf(w, "<html>Gowater is listening</html>")
}

func apiZones(w http.ResponseWriter, r *http.Request) {
	ret := map[string]interface{}{}
	for _, zone := range services.Config.Watering.Zones {
		ret[zone.Name] = map[string]interface{}{
			"pin":      zone.Pin,
			"duration": zone.Duration.Duration.Seconds(),
			"max":      zone.Max.Duration.Seconds(),
		}
	}
	jsonResponse(w, ret)
}

func apiStatus(w http.ResponseWriter, r *http.Request) {
	ch := services.QueryChannel("watering/status", 500*time.Millisecond)
	for ev := range ch {
		jsonResponse(w, ev.Fields["json"])
		return
	}
	errorResponse(w, 504, fmt.Errorf("watering service not responding"))
}

func lookupZone(w http.ResponseWriter, r *http.Request) string {
	zone := mux.Vars(r)["zone"]
	if _, conf := services.Config.Zone(zone); conf == nil {
		errorResponse(w, 404, fmt.Errorf("unknown zone: %s", zone))
		return ""
	}
	return zone
}

func apiZonesWater(w http.ResponseWriter, r *http.Request) {
	zone := lookupZone(w, r)
	if zone == "" {
		return
	}
	ev := pubsub.NewCommand("pump."+zone, "on")
	ev.SetField("source", "api")
	if s := r.URL.Query().Get("duration"); s != "" {
		if _, err := util.ParseDuration(s); err != nil {
			errorResponse(w, 400, fmt.Errorf("bad duration: %q", s))
			return
		}
		ev.SetField("duration", s)
	}
	services.Publisher.Emit(ev)
	jsonResponse(w, true)
}

func apiZonesStop(w http.ResponseWriter, r *http.Request) {
	zone := lookupZone(w, r)
	if zone == "" {
		return
	}
	ev := pubsub.NewCommand("pump."+zone, "off")
	ev.SetField("source", "api")
	services.Publisher.Emit(ev)
	jsonResponse(w, true)
}

func query(endpoint string, q string, w http.ResponseWriter) {
	w.Header().Add("Content-Type", "application/json; charset=utf-8")

	ch := services.QueryChannel(strings.TrimSpace(endpoint+" "+q), 500*time.Millisecond)

	for ev := range ch {
		fmt.Fprintf(w, ev.String()+"\r\n")
		w.(http.Flusher).Flush()
	}
}

func apiQuery(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Path[len("/query/"):]
	q := r.URL.Query().Get("q")
	query(endpoint, q, w)
}

func apiEventsFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	topics := q.Get("topics")
	w.Header().Add("Content-Type", "application/json; boundary=NL")

	var ch <-chan *pubsub.Event
	if topics != "" {
		topics := strings.Split(topics, ",")
		ch = services.Subscriber.FilteredChannel(topics...)
	} else {
		ch = services.Subscriber.Channel()
	}
	defer services.Subscriber.Close(ch)

	for ev := range ch {
		encoder := json.NewEncoder(w)
		err := encoder.Encode(ev.Map())
		if err != nil {
			break
		}
		w.Write([]byte("\r\n")) // separator
		w.(http.Flusher).Flush()
	}
}

func router() *mux.Router {
	router := mux.NewRouter()
	router.Path("/").HandlerFunc(apiIndex)
	router.Path("/zones").Methods("GET").HandlerFunc(apiZones)
	router.Path("/status").Methods("GET").HandlerFunc(apiStatus)
	router.Path("/zones/{zone}/water").Methods("POST").HandlerFunc(apiZonesWater)
	router.Path("/zones/{zone}/stop").Methods("POST").HandlerFunc(apiZonesStop)
	router.PathPrefix("/query/").HandlerFunc(apiQuery)
	router.Path("/events/feed").HandlerFunc(apiEventsFeed)
	return router
}

type loggingHandler struct {
	Handler http.Handler
}

func (service loggingHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	log.Printf("%s %s\n", req.Method, req.RequestURI)
	service.Handler.ServeHTTP(w, req)
}

// listenAddr takes the port from the configured api endpoint url.
func listenAddr() string {
	if u, err := url.Parse(services.Config.Endpoints.Api); err == nil {
		if port := u.Port(); port != "" {
			return ":" + port
		}
	}
	return ":8723"
}

func httpEndpoint() {
	// not using handlers.LoggingHandler as it prevents ResponseWriter.Flush
	// being accessed by the feed endpoint
	var handler http.Handler = loggingHandler{Handler: router()}
	addr := listenAddr()
	log.Println("Listening on " + addr)
	err := http.ListenAndServe(addr, handler)
	if err != nil {
		log.Fatalln(err)
	}
}

// Run the service
func (service *Service) Run() error {
	httpEndpoint()
	return nil
}
