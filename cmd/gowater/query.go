package main

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/davenham/gowater/config"
	"github.com/davenham/gowater/pubsub"
)

func fmtFatalf(format string, v ...interface{}) {
	fmt.Printf(format, v...)
	os.Exit(1)
}

// apiURL is GOWATER_API if set, otherwise the configured api endpoint.
func apiURL() string {
	if api := os.Getenv("GOWATER_API"); api != "" {
		return api
	}
	if conf, err := config.Open(); err == nil && conf.Endpoints.Api != "" {
		return conf.Endpoints.Api
	}
	return "http://localhost:8723"
}

func request(path string, params url.Values) (*http.Response, error) {
	uri := fmt.Sprintf("%s/%s", strings.TrimRight(apiURL(), "/"), path)
	if len(params) > 0 {
		uri += "?" + params.Encode()
	}
	return http.Get(uri)
}

func get(path string) {
	resp, err := request(path, emptyParams)
	if err != nil {
		fmtFatalf("error: %s\n", err)
	}
	defer resp.Body.Close()
	io.Copy(os.Stdout, resp.Body)
}

func stream(path string, params url.Values) {
	resp, err := request(path, params)
	if err != nil {
		if strings.HasSuffix(err.Error(), " EOF") { // yuck
			fmtFatalf("Server disconnected\n")
		} else {
			fmtFatalf("error: %s\n", err)
		}
	}
	defer resp.Body.Close()
	scanner := bufio.NewScanner(resp.Body)

	n := 0
	for scanner.Scan() {
		ev := pubsub.Parse(scanner.Text(), "")
		if ev == nil {
			continue
		}
		source := ev.Source()
		message := ev.StringField("message")

		if strings.Contains(message, "\n") {
			fmt.Printf("\x1b[32;1m%s\x1b[0m\n%s\n", source, message)
		} else {
			fmt.Printf("\x1b[32;1m%s\x1b[0m %s\n", source, message)
		}
		n += 1
	}
	if n == 0 {
		fmt.Println("No response")
	}
}

func query(first string, rest []string, params url.Values) {
	q := strings.Join(rest, " ")
	u := url.Values{"q": {q}}
	for key, value := range params {
		u[key] = value
	}

	path := fmt.Sprintf("query/%s", first)
	stream(path, u)
}
