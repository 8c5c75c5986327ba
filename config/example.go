package config

var ExampleYaml = `
endpoints:
  mqtt:
    broker: tcp://127.0.0.1:1883
  api: http://localhost:8723
watering:
  settle: 5ms
  zones:
    - name: tomatoes
      pin: 12
      duration: 30s
      max: 5m
    - name: beans
      pin: 16
      duration: 45s
      max: 5m
    - name: herbs
      pin: 20
      duration: 20s
      max: 2m
    - name: lawn
      pin: 21
      duration: 2m
      max: 10m
auto:
  enabled: true
  at: 7h
  interval: 24h
  factor: 1.6
  min_moisture: 25
  max_moisture: 60
  min_time: 0s
  max_time: 2m
  rules:
    - zone: tomatoes
      when: moisture < 25
      duration: 45s
      cooldown: 1h
    - zone: herbs
      when: dry > 80
      duration: 20s
      cooldown: 2h
sensors:
  soil.1: tomatoes
  soil.2: beans
  soil.3: herbs
  soil.4: lawn
`

var ExampleConfig *Config

func init() {
	var err error
	ExampleConfig, err = OpenRaw([]byte(ExampleYaml))
	if err != nil {
		panic(err)
	}
}
