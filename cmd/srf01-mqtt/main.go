// Command srf01-mqtt polls SRF01 sensors on a shared serial bus and
// publishes their range readings to an MQTT broker.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mattcip/srf01"
)

var configPath = flag.String("config", "srf01-mqtt.yaml", "Path to the YAML configuration file.")

// Reading is the JSON payload published per sensor per poll.
type Reading struct {
	Name     string `json:"name"`
	Address  int    `json:"address"`
	Distance int    `json:"distance"`
	Unit     string `json:"unit"`
	Time     string `json:"time"`
}

func main() {
	flag.Parse()

	cfg, err := Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	if err := run(cfg, logger); err != nil {
		logger.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	unit, err := srf01.ParseUnit(cfg.Unit)
	if err != nil {
		return err
	}

	bus, err := srf01.NewBus(srf01.Config{
		Port:     cfg.Serial.Port,
		BaudRate: cfg.Serial.Baud,
		Timeout:  cfg.ReadTimeout(),
	})
	if err != nil {
		return err
	}
	defer bus.Close()

	client, err := connectMQTT(cfg.MQTT)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	addrs := make([]int, len(cfg.Sensors))
	names := make(map[int]string, len(cfg.Sensors))
	for i, s := range cfg.Sensors {
		addrs[i] = s.Address
		names[s.Address] = s.Name
	}
	group := srf01.NewGroupByAddrs(bus, addrs...)

	logger.Info("polling sensors",
		"port", cfg.Serial.Port,
		"sensors", len(addrs),
		"interval", cfg.PollInterval(),
		"unit", unit.String(),
	)

	ticker := time.NewTicker(cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
		}

		readings, err := group.RangeAll(ctx, unit)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down")
				return nil
			}
			logger.Error("range sweep failed", "error", err)
			continue
		}

		now := time.Now().UTC().Format(time.RFC3339)
		for addr, distance := range readings {
			name := names[addr]
			if distance == srf01.NoReading {
				logger.Warn("sensor did not respond", "sensor", name, "address", addr)
				continue
			}

			payload, err := json.Marshal(Reading{
				Name:     name,
				Address:  addr,
				Distance: distance,
				Unit:     unit.String(),
				Time:     now,
			})
			if err != nil {
				logger.Error("encode reading", "sensor", name, "error", err)
				continue
			}

			topic := fmt.Sprintf("%s/%s/range", cfg.MQTT.TopicPrefix, name)
			if token := client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
				logger.Error("publish failed", "topic", topic, "error", token.Error())
				continue
			}

			logger.Debug("published reading",
				"sensor", name,
				"distance", distance,
				"unit", unit.String(),
			)
		}
	}
}

func connectMQTT(cfg MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port))
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return client, nil
}

func newLogger(cfg LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
