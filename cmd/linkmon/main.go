package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/aura.go/pkg/mirror"
	"github.com/robotalks/aura.go/pkg/mqtt"
	"github.com/robotalks/aura.go/pkg/telemetry"
)

var (
	mqttURL    = "mqtt://localhost:1883/aura/"
	filter     = "#"
	outputJSON bool
)

func init() {
	if val := os.Getenv("AURA_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&filter, "filter", filter, "Topic filter below the prefix, e.g. VEHICLE/board/#.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print frames in JSON.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}

	q.Sub(filter, mqtt.Handler(func(topic string, payload []byte) {
		frame, err := mirror.Decode(payload)
		if err != nil {
			log.Printf("%s: bad envelope: %v", topic, err)
			return
		}
		d := telemetry.Decode(frame.ID, frame.Payload)
		// topic is VEHICLE/LINK/NAME
		source := topic
		if pos := strings.LastIndexByte(topic, '/'); pos > 0 {
			source = topic[:pos]
		}
		if outputJSON {
			out, _ := json.Marshal(struct {
				Source string `json:"source"`
				telemetry.Decoded
			}{source, d})
			log.Println(string(out))
			return
		}
		log.Printf("%s: %s", source, d)
	}))
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}
