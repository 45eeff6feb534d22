package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/gps_tracker/internal/config"
	"github.com/relabs-tech/gps_tracker/internal/gps"
)

// RunConsoleMQTT prints every fix published on cfg.TopicGPS to out until ctx
// is cancelled.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer) error {
	logger := log.With().Str("module", "console").Logger()

	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is not set")
	}
	client, err := ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	logger.Info().Str("broker", cfg.MQTTBroker).Msg("connected to MQTT broker")

	token := client.Subscribe(cfg.TopicGPS, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			logger.Warn().Err(err).Msg("gps unmarshal error")
			return
		}
		fmt.Fprintln(out, formatFix(f))
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	logger.Info().Str("topic", cfg.TopicGPS).Msg("subscribed")

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	return nil
}

func formatFix(f gps.Fix) string {
	return fmt.Sprintf(
		"[GPS ]  time=%s date=%s lat=%.6f lng=%.6f speed=%.1fkn course=%.1f° status=%s",
		f.Time, f.Date, f.Latitude, f.Longitude, f.SpeedKnots, f.CourseDeg, f.Status,
	)
}
