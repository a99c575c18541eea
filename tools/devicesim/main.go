// devicesim publishes synthetic wake-round snapshots to the MQTT ingest
// topic, mimicking a field gateway flushing a site's devices. Useful for
// exercising the ingest and replay paths without hardware.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	username := flag.String("username", "", "MQTT username")
	password := flag.String("password", "", "MQTT password")
	siteID := flag.String("site", "site-demo-001", "site id")
	programID := flag.String("program", "program-demo", "program id")
	devices := flag.Int("devices", 5, "device count")
	rounds := flag.Int("rounds", 24, "wake rounds to publish")
	interval := flag.Duration("interval", 200*time.Millisecond, "delay between rounds")
	roundStep := flag.Duration("round-step", time.Hour, "wake round spacing in payload timestamps")
	encoding := flag.String("encoding", "object", "payload encoding: list or object")
	seed := flag.Int64("seed", 1, "rng seed")
	flag.Parse()

	if *encoding != "list" && *encoding != "object" {
		fmt.Fprintln(os.Stderr, "encoding must be list or object")
		os.Exit(2)
	}

	logger := log.New(os.Stdout, "devicesim ", log.LstdFlags)
	rng := rand.New(rand.NewSource(*seed))

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(*broker)
	opts.SetClientID(fmt.Sprintf("devicesim-%d", time.Now().UnixNano()))
	if *username != "" {
		opts.SetUsername(*username)
	}
	if *password != "" {
		opts.SetPassword(*password)
	}
	client := pahomqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Fatalf("connect error: %v", token.Error())
	}
	defer client.Disconnect(250)

	topic := fmt.Sprintf("sites/%s/devices/data", *siteID)
	start := time.Now().UTC().Add(-time.Duration(*rounds) * *roundStep).Truncate(time.Hour)

	for round := 0; round < *rounds; round++ {
		roundStart := start.Add(time.Duration(round) * *roundStep)
		payload, err := buildRound(rng, *programID, roundStart, *devices, round, *encoding)
		if err != nil {
			logger.Fatalf("build round error: %v", err)
		}
		if token := client.Publish(topic, 1, false, payload); token.Wait() && token.Error() != nil {
			logger.Fatalf("publish error: %v", token.Error())
		}
		logger.Printf("published round %d (%s)", round, roundStart.Format(time.RFC3339))
		time.Sleep(*interval)
	}
}

type simDevice struct {
	DeviceID             string   `json:"device_id"`
	DeviceCode           *string  `json:"device_code,omitempty"`
	DeviceName           *string  `json:"device_name,omitempty"`
	Position             *simPos  `json:"position,omitempty"`
	Status               *string  `json:"status,omitempty"`
	LastSeenAt           *string  `json:"last_seen_at,omitempty"`
	BatteryHealthPercent *float64 `json:"battery_health_percent,omitempty"`
	Temperature          *float64 `json:"temperature,omitempty"`
	Humidity             *float64 `json:"humidity,omitempty"`
	Pressure             *float64 `json:"pressure,omitempty"`
	GasResistance        *float64 `json:"gas_resistance,omitempty"`
	LatestScore          *float64 `json:"latest_score,omitempty"`
	ScoreVelocity        *float64 `json:"score_velocity,omitempty"`
}

type simPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// buildRound emits a sparse round: every device reports identity and
// telemetry on its first round, then only the fields that "changed",
// matching how real devices report.
func buildRound(rng *rand.Rand, programID string, roundStart time.Time, devices, round int, encoding string) ([]byte, error) {
	entries := make([]simDevice, 0, devices)
	for i := 0; i < devices; i++ {
		deviceID := fmt.Sprintf("dev-%03d", i)
		entry := simDevice{DeviceID: deviceID}

		if round == 0 {
			code := fmt.Sprintf("SW-%03d", i)
			name := fmt.Sprintf("Sensor %d", i)
			status := "active"
			entry.DeviceCode = &code
			entry.DeviceName = &name
			entry.Status = &status
			entry.Position = &simPos{X: float64(10 + i*5), Y: float64(20 + i*3)}
		}

		seen := roundStart.Format(time.RFC3339)
		entry.LastSeenAt = &seen

		if round == 0 || rng.Float64() < 0.7 {
			temp := 15 + rng.Float64()*15
			humidity := 30 + rng.Float64()*40
			pressure := 990 + rng.Float64()*40
			gas := 10 + rng.Float64()*10
			entry.Temperature = &temp
			entry.Humidity = &humidity
			entry.Pressure = &pressure
			entry.GasResistance = &gas
		}
		if round == 0 || rng.Float64() < 0.4 {
			battery := 60 + rng.Float64()*40
			score := rng.Float64() * 100
			velocity := rng.Float64()*10 - 5
			entry.BatteryHealthPercent = &battery
			entry.LatestScore = &score
			entry.ScoreVelocity = &velocity
		}

		entries = append(entries, entry)
	}

	var devicesPayload any = entries
	if encoding == "object" {
		devicesPayload = map[string]any{"devices": entries}
	}
	return json.Marshal(map[string]any{
		"program_id":       programID,
		"wake_round_start": roundStart.Format("2006-01-02T15:04:05.000Z"),
		"devices":          devicesPayload,
	})
}
