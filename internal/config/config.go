package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DefaultPath is the configuration file looked up by the binaries.
const DefaultPath = "gps_tracker_config.txt"

// Config holds all application configuration values.
type Config struct {
	// GPS
	GPSSerialPort     string        `mapstructure:"gps_serial_port" validate:"required_without=GPSMock"`
	GPSBaudRate       int           `mapstructure:"gps_baud_rate" validate:"oneof=4800 9600 19200 38400 57600 115200"`
	GPSPollInterval   time.Duration `mapstructure:"gps_poll_interval" validate:"gt=0"`
	GPSVerifyChecksum bool          `mapstructure:"gps_verify_checksum"`
	GPSMock           bool          `mapstructure:"gps_mock"`
	GPSMockLat        float64       `mapstructure:"gps_mock_lat" validate:"min=-90,max=90"`
	GPSMockLng        float64       `mapstructure:"gps_mock_lng" validate:"min=-180,max=180"`

	// Web Server
	WebServerPort        int           `mapstructure:"web_server_port" validate:"min=1,max=65535"`
	WebPagePath          string        `mapstructure:"web_page_path"`
	WebMaxRequestBytes   int           `mapstructure:"web_max_request_bytes" validate:"min=256"`
	WebReadHeaderTimeout time.Duration `mapstructure:"web_read_header_timeout" validate:"gt=0"`
	NetworkRequired      bool          `mapstructure:"network_required"`

	// MQTT (empty broker disables the publisher)
	MQTTBroker          string `mapstructure:"mqtt_broker" validate:"omitempty,url"`
	MQTTClientIDGPS     string `mapstructure:"mqtt_client_id_gps" validate:"required_with=MQTTBroker"`
	MQTTClientIDConsole string `mapstructure:"mqtt_client_id_console"`
	TopicGPS            string `mapstructure:"topic_gps" validate:"required_with=MQTTBroker"`

	// Display
	DisplayEnabled        bool          `mapstructure:"display_enabled"`
	DisplayI2CBus         string        `mapstructure:"display_i2c_bus"`
	DisplayI2CAddr        uint16        `mapstructure:"display_i2c_addr" validate:"max=127"`
	DisplayUpdateInterval time.Duration `mapstructure:"display_update_interval" validate:"gt=0"`

	// Lock indicator LED (empty pin disables it)
	LEDGPIOPin string `mapstructure:"led_gpio_pin"`

	// Logging
	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=console json"`
}

var defaults = map[string]interface{}{
	"gps_serial_port":     "/dev/serial0",
	"gps_baud_rate":       9600,
	"gps_poll_interval":   500 * time.Millisecond,
	"gps_verify_checksum": false,
	"gps_mock":            false,
	"gps_mock_lat":        48.1173,
	"gps_mock_lng":        11.5167,

	"web_server_port":         80,
	"web_page_path":           "",
	"web_max_request_bytes":   1024,
	"web_read_header_timeout": 5 * time.Second,
	"network_required":        true,

	"mqtt_broker":            "",
	"mqtt_client_id_gps":     "gps-tracker",
	"mqtt_client_id_console": "gps-tracker-console",
	"topic_gps":              "gps/fix",

	"display_enabled":         false,
	"display_i2c_bus":         "",
	"display_i2c_addr":        0x3C,
	"display_update_interval": time.Second,

	"led_gpio_pin": "",

	"log_level":  "info",
	"log_format": "console",
}

// ErrNoConfigFile is returned alongside a usable Config when the file at
// configPath does not exist and only defaults and environment were applied.
var ErrNoConfigFile = errors.New("config file not found")

// Load reads the KEY=VALUE configuration file and returns a Config struct.
// Lines starting with '#' are comments. Every key can be overridden from the
// environment (e.g. GPS_SERIAL_PORT=/dev/ttyUSB0). If the file does not
// exist the defaults are used and ErrNoConfigFile is returned with the
// Config so callers can warn and carry on.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var missing bool
	if configPath != "" {
		if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
			missing = true
		} else {
			v.SetConfigFile(configPath)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			for _, key := range v.AllKeys() {
				if _, ok := defaults[key]; !ok {
					return nil, fmt.Errorf("unknown config key: %q", strings.ToUpper(key))
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if missing {
		return cfg, fmt.Errorf("%w: %s", ErrNoConfigFile, configPath)
	}
	return cfg, nil
}

// validate checks the struct tags and reports the first offending key by its
// file name (GPS_BAUD_RATE rather than GPSBaudRate).
func (c *Config) validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("invalid config: %w", err)
	}
	fe := verrs[0]
	return fmt.Errorf("invalid config: %s failed %q (value %v)", keyName(fe.StructField()), fe.Tag(), fe.Value())
}

func keyName(field string) string {
	for key := range defaults {
		if strings.EqualFold(strings.ReplaceAll(key, "_", ""), field) {
			return strings.ToUpper(key)
		}
	}
	return field
}

// Addr is the listen address of the web server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.WebServerPort)
}
