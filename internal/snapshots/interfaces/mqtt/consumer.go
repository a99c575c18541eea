package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"sitewatch-cloud/internal/observability/metrics"
	snapshots "sitewatch-cloud/internal/snapshots/domain"
)

// Config carries MQTT broker settings for the device snapshot feed.
type Config struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Topic     string
	QoS       byte
}

// Consumer subscribes to the device wake-round topic and stores each
// published snapshot. Devices publish on sites/{site_id}/devices/data; the
// site id comes from the topic, everything else from the message body.
type Consumer struct {
	client pahomqtt.Client
	cfg    Config
	repo   snapshots.SnapshotRepository
	logger *log.Logger
}

// NewConsumer connects to the broker. The subscription starts with Start.
func NewConsumer(cfg Config, repo snapshots.SnapshotRepository, logger *log.Logger) (*Consumer, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("mqtt ingest: empty broker url")
	}
	if repo == nil {
		return nil, errors.New("mqtt ingest: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Topic == "" {
		cfg.Topic = "sites/+/devices/data"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "sitewatch-ingest"
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)

	client := pahomqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt ingest: connect: %w", token.Error())
	}

	return &Consumer{client: client, cfg: cfg, repo: repo, logger: logger}, nil
}

// Start subscribes to the snapshot topic.
func (c *Consumer) Start() error {
	if c == nil || c.client == nil {
		return errors.New("mqtt ingest: not connected")
	}
	token := c.client.Subscribe(c.cfg.Topic, c.cfg.QoS, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.handleMessage(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt ingest: subscribe %s: %w", c.cfg.Topic, token.Error())
	}
	c.logger.Printf("mqtt ingest: subscribed to %s", c.cfg.Topic)
	return nil
}

// Close disconnects from the broker.
func (c *Consumer) Close() {
	if c == nil || c.client == nil {
		return
	}
	c.client.Disconnect(250)
}

type wakeMessage struct {
	ProgramID      string          `json:"program_id"`
	WakeRoundStart string          `json:"wake_round_start"`
	Devices        json.RawMessage `json:"devices"`
}

func (c *Consumer) handleMessage(topic string, payload []byte) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveIngest(metrics.TransportMQTT, result, time.Since(start))
	}()

	siteID, ok := siteFromTopic(topic)
	if !ok {
		result = metrics.ResultError
		metrics.IncIngestError("bad_topic")
		c.logger.Printf("mqtt ingest: unexpected topic %q", topic)
		return
	}

	var msg wakeMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		result = metrics.ResultError
		metrics.IncIngestError("invalid_json")
		c.logger.Printf("mqtt ingest: decode error on %s: %v", topic, err)
		return
	}
	if msg.ProgramID == "" || msg.WakeRoundStart == "" {
		result = metrics.ResultError
		metrics.IncIngestError("invalid_payload")
		c.logger.Printf("mqtt ingest: incomplete message on %s", topic)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	row := snapshots.RawSnapshot{
		ID:             uuid.NewString(),
		SiteID:         siteID,
		ProgramID:      msg.ProgramID,
		WakeRoundStart: msg.WakeRoundStart,
		Payload:        msg.Devices,
	}
	if err := c.repo.InsertSnapshots(ctx, []snapshots.RawSnapshot{row}); err != nil {
		result = metrics.ResultError
		metrics.IncIngestError("insert_error")
		c.logger.Printf("mqtt ingest: insert error: %v", err)
	}
}

func siteFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "sites" || parts[2] != "devices" || parts[3] != "data" {
		return "", false
	}
	if parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
