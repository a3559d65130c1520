package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jgoulah/punchsync/internal/aggregate"
	"github.com/jgoulah/punchsync/internal/config"
)

const defaultTopicPrefix = "punchsync"

// Publisher sends month summaries to an MQTT broker
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
}

// New connects to the broker in cfg
func New(cfg config.MQTTConfig) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	topicPrefix := cfg.TopicPrefix
	if topicPrefix == "" {
		topicPrefix = defaultTopicPrefix
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "punchsync"
	}

	// Configure MQTT client options
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("connecting to MQTT broker %s: timed out", cfg.Broker)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return &Publisher{client: client, topicPrefix: topicPrefix}, nil
}

// Payload is the retained message body for one employee-month
type Payload struct {
	Employee    string            `json:"employee"`
	Month       string            `json:"month"`
	Records     int               `json:"records"`
	FirstHalf   map[string]string `json:"first_half"`
	SecondHalf  map[string]string `json:"second_half"`
	MonthTotal  map[string]string `json:"month_total"`
	PublishedAt string            `json:"published_at"`
}

// Topic returns e.g. "punchsync/jesus/2025-06"
func Topic(prefix, employee, month string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(employee), "_"))
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(prefix, "/"), slug, month)
}

// Encode builds the topic and JSON body for a summary
func Encode(prefix string, s aggregate.EmployeeSummary, now time.Time) (string, []byte, error) {
	f := s.Formatted()
	body, err := json.Marshal(Payload{
		Employee:    s.Employee,
		Month:       f.Month,
		Records:     f.Records,
		FirstHalf:   f.FirstHalf,
		SecondHalf:  f.SecondHalf,
		MonthTotal:  f.MonthTotal,
		PublishedAt: now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", nil, fmt.Errorf("encoding payload: %w", err)
	}
	return Topic(prefix, s.Employee, f.Month), body, nil
}

// Publish sends one retained message per summary
func (p *Publisher) Publish(summaries []aggregate.EmployeeSummary) error {
	now := time.Now()
	for _, s := range summaries {
		topic, body, err := Encode(p.topicPrefix, s, now)
		if err != nil {
			return err
		}

		token := p.client.Publish(topic, 1, true, body)
		if !token.WaitTimeout(10 * time.Second) {
			return fmt.Errorf("publishing to %s: timed out", topic)
		}
		if token.Error() != nil {
			return fmt.Errorf("publishing to %s: %w", topic, token.Error())
		}
	}
	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
