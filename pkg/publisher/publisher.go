// Package publisher sends dashboard KPIs to an MQTT broker so home automation
// systems can pick them up.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/levenlabs/go-lflag"
	"github.com/wattwise/wattwise/pkg/log"
	"github.com/wattwise/wattwise/pkg/types"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "wattwise"

// Publisher publishes retained KPI values, one topic per figure. A Publisher
// without a client is disabled and every publish is a no-op.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
}

// Configured registers the MQTT flags. Publishing stays disabled unless
// -mqtt-broker is set.
func Configured() *Publisher {
	broker := lflag.String("mqtt-broker", "", "MQTT broker host:port to publish KPIs to. Empty disables publishing.")
	username := lflag.String("mqtt-username", "", "MQTT username")
	password := lflag.String("mqtt-password", "", "MQTT password")
	topicPrefix := lflag.String("mqtt-topic-prefix", DefaultTopicPrefix, "Prefix for published MQTT topics")

	p := &Publisher{}
	lflag.Do(func() {
		p.topicPrefix = *topicPrefix
		if *broker == "" {
			return
		}

		opts := mqtt.NewClientOptions()
		opts.AddBroker(fmt.Sprintf("tcp://%s", *broker))
		opts.SetClientID("wattwise")
		opts.SetAutoReconnect(true)
		opts.SetConnectRetry(true)
		opts.SetConnectTimeout(10 * time.Second)
		if *username != "" {
			opts.SetUsername(*username)
		}
		if *password != "" {
			opts.SetPassword(*password)
		}

		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			panic(fmt.Sprintf("connecting to MQTT broker failed: %v", token.Error()))
		}
		p.client = client
	})
	return p
}

// New returns a Publisher using an already connected client. A nil client
// returns a disabled Publisher.
func New(client mqtt.Client, topicPrefix string) *Publisher {
	if topicPrefix == "" {
		topicPrefix = DefaultTopicPrefix
	}
	return &Publisher{
		client:      client,
		topicPrefix: topicPrefix,
	}
}

// Enabled reports whether a broker is configured.
func (p *Publisher) Enabled() bool {
	return p != nil && p.client != nil
}

func (p *Publisher) topic(homeID, name string) string {
	return strings.Join([]string{strings.TrimRight(p.topicPrefix, "/"), homeID, name}, "/")
}

// PublishKPIs publishes each figure of k under <prefix>/<homeID>/<name>.
func (p *Publisher) PublishKPIs(ctx context.Context, homeID string, k types.KPIs) error {
	if !p.Enabled() {
		return nil
	}
	if homeID == "" {
		return fmt.Errorf("homeID cannot be empty")
	}

	values := []struct {
		name  string
		value float64
	}{
		{"current_power_w", k.CurrentPowerW},
		{"total_energy_kwh", k.TotalEnergyKWH},
		{"total_cost_gbp", k.TotalCostGBP},
	}
	for _, v := range values {
		topic := p.topic(homeID, v.name)
		payload := strconv.FormatFloat(v.value, 'f', 2, 64)
		token := p.client.Publish(topic, 1, true, payload)
		select {
		case <-token.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publishing %s: %w", topic, err)
		}
	}
	log.Ctx(ctx).DebugContext(ctx, "published kpis", slog.String("homeID", homeID))
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.Enabled() && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
