// Copyright 2023 The MaxMQ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/gsalomao/iotdemo/internal/logger"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// MinHeaderHeadroom is the minimum number of bytes of the user buffer which
// must remain free for the response headers of a range request.
const MinHeaderHeadroom = 1024

// ErrConfigFileNotFound indicates that the configuration file was not found.
var ErrConfigFileNotFound = errors.New("config file not found")

// Config holds all the application configuration.
type Config struct {
	// Minimal severity level of the logs.
	LogLevel string `json:"log_level" mapstructure:"log_level"`

	// Host name of the generic MQTT broker.
	BrokerEndpoint string `json:"broker_endpoint" mapstructure:"broker_endpoint"`

	// TCP port of the generic MQTT broker. In general, port 8883 is for
	// secured MQTT connections.
	BrokerPort int `json:"broker_port" mapstructure:"broker_port"`

	// Host name of the managed IoT broker.
	AWSIoTEndpoint string `json:"aws_iot_endpoint" mapstructure:"aws_iot_endpoint"`

	// TCP port of the managed IoT broker. Port 443 requires ALPN.
	AWSMQTTPort int `json:"aws_mqtt_port" mapstructure:"aws_mqtt_port"`

	// TCP port used for HTTPS downloads.
	HTTPSPort int `json:"https_port" mapstructure:"https_port"`

	// The size, in bytes, of the buffer used by range requests, including the
	// response headers.
	UserBufferLength int `json:"user_buffer_length" mapstructure:"user_buffer_length"`

	// The size, in bytes, of the file range requested on each range request.
	RangeRequestLength int `json:"range_request_length" mapstructure:"range_request_length"`

	// Directory of the read-only image package. Empty means the directory of
	// the executable.
	ImagePackageDir string `json:"image_package_dir" mapstructure:"image_package_dir"`

	// Name, relative to the image package, of the root CA certificate. Empty
	// means the system roots.
	RootCACertName string `json:"root_ca_cert_name" mapstructure:"root_ca_cert_name"`

	// Name, relative to the image package, of the root CA certificate of the
	// managed IoT broker. Empty means the system roots.
	AWSRootCACertName string `json:"aws_root_ca_cert_name" mapstructure:"aws_root_ca_cert_name"`

	// Path of the device certificate provisioned out-of-band. Empty means the
	// device has not been provisioned.
	DeviceCertPath string `json:"device_cert_path" mapstructure:"device_cert_path"`

	// Path of the client private key. Nil means the key is not resolved
	// through a file path.
	PrivateKeyPath *string `json:"client_private_key_path" mapstructure:"client_private_key_path"`

	// MQTT client identifier. No two clients may use the same client
	// identifier simultaneously.
	ClientIdentifier string `json:"client_identifier" mapstructure:"client_identifier"`

	// The size, in bytes, of the network buffer for MQTT packets.
	NetworkBufferSize int `json:"network_buffer_size" mapstructure:"network_buffer_size"`

	// Name of the operating system the application is running on.
	OSName string `json:"os_name" mapstructure:"os_name"`

	// Version of the operating system the application is running on.
	OSVersion string `json:"os_version" mapstructure:"os_version"`

	// Name of the hardware platform the application is running on.
	HardwarePlatformName string `json:"hardware_platform_name" mapstructure:"hardware_platform_name"`

	// Name of the MQTT library and its version, following an "@" symbol.
	MQTTLib string `json:"mqtt_lib" mapstructure:"mqtt_lib"`

	// Name of the thing (device) in the managed IoT service.
	ThingName string `json:"thing_name" mapstructure:"thing_name"`

	// The amount of time, in seconds, to wait for the TCP connection and the
	// TLS handshake.
	ConnectTimeout int `json:"connect_timeout" mapstructure:"connect_timeout"`

	// The amount of time, in seconds, to wait for each send or receive.
	TransportTimeout int `json:"transport_timeout" mapstructure:"transport_timeout"`

	// The MQTT Keep Alive, in seconds, sent in the CONNECT Packet.
	MQTTKeepAlive int `json:"mqtt_keep_alive" mapstructure:"mqtt_keep_alive"`

	// The MQTT protocol version (4 for 3.1.1, 5 for 5.0).
	MQTTVersion int `json:"mqtt_version" mapstructure:"mqtt_version"`

	// The interval, in seconds, between probes in watch mode.
	ProbeInterval int `json:"probe_interval" mapstructure:"probe_interval"`

	// Indicate whether the metrics are exported or not.
	MetricsEnabled bool `json:"metrics_enabled" mapstructure:"metrics_enabled"`

	// TCP address (<IP>:<port>) where the Prometheus metrics are exported.
	MetricsAddress string `json:"metrics_address" mapstructure:"metrics_address"`

	// The path where the metrics are exported.
	MetricsPath string `json:"metrics_path" mapstructure:"metrics_path"`

	// TCP address (<IP>:<port>) that the HTTP API will bind to.
	HTTPAddress string `json:"http_address" mapstructure:"http_address"`
}

// DefaultConfig contains the default configuration.
var DefaultConfig = Config{
	LogLevel:             "info",
	BrokerEndpoint:       "test.mosquitto.org",
	BrokerPort:           8883,
	AWSIoTEndpoint:       "<iotcore>-ats.iot.<region>.amazonaws.com",
	AWSMQTTPort:          8883,
	HTTPSPort:            443,
	UserBufferLength:     4096,
	RangeRequestLength:   2048,
	RootCACertName:       "certs/mosquitto.org.crt",
	AWSRootCACertName:    "certs/AmazonRootCA1.pem",
	ClientIdentifier:     "testclient",
	NetworkBufferSize:    1024,
	OSName:               "Azure Sphere OS",
	OSVersion:            "20.10",
	HardwarePlatformName: "MT3620",
	MQTTLib:              "core-mqtt@1.0.1",
	ThingName:            "<thing name>",
	ConnectTimeout:       5,
	TransportTimeout:     5,
	MQTTKeepAlive:        60,
	MQTTVersion:          4,
	ProbeInterval:        30,
	MetricsEnabled:       true,
	MetricsAddress:       ":8888",
	MetricsPath:          "/metrics",
	HTTPAddress:          ":8080",
}

var envKeys = []string{
	"log_level",
	"broker_endpoint",
	"broker_port",
	"aws_iot_endpoint",
	"aws_mqtt_port",
	"https_port",
	"user_buffer_length",
	"range_request_length",
	"image_package_dir",
	"root_ca_cert_name",
	"aws_root_ca_cert_name",
	"device_cert_path",
	"client_private_key_path",
	"client_identifier",
	"network_buffer_size",
	"os_name",
	"os_version",
	"hardware_platform_name",
	"mqtt_lib",
	"thing_name",
	"connect_timeout",
	"transport_timeout",
	"mqtt_keep_alive",
	"mqtt_version",
	"probe_interval",
	"metrics_enabled",
	"metrics_address",
	"metrics_path",
	"http_address",
}

// ReadConfigFile reads the configuration file.
//
// The configuration file can be stored at one of the following locations:
//   - <executable directory>/iotdemo.conf
//   - <executable directory>/../iotdemo.conf
//   - /etc/iotdemo/iotdemo.conf
//   - /etc/iotdemo.conf
func ReadConfigFile() error {
	var dirs []string

	if exe, err := os.Executable(); err == nil {
		pwd := filepath.Dir(exe)
		dirs = append(dirs, pwd, filepath.Dir(pwd+"/../"))
	}

	dirs = append(dirs, "/etc/iotdemo", "/etc")
	return ReadConfigFileIn(dirs...)
}

// ReadConfigFileIn reads the configuration file iotdemo.conf from the first
// of the given directories which contains it.
func ReadConfigFileIn(dirs ...string) error {
	viper.SetConfigName("iotdemo.conf")
	viper.SetConfigType("toml")

	for _, d := range dirs {
		viper.AddConfigPath(d)
	}

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return ErrConfigFileNotFound
		}
		return err
	}

	return nil
}

// LoadConfig loads the configuration from the conf file and the environment
// variables into the given Config. Values not set by any of them keep the
// value already present in the Config.
//
// Note: The ReadConfigFile must be called before in order to load the
// configuration from the conf file.
func LoadConfig(c *Config) error {
	viper.SetEnvPrefix("IOTDEMO")
	viper.AutomaticEnv()

	for _, k := range envKeys {
		_ = viper.BindEnv(k)
	}

	return viper.Unmarshal(c)
}

// Validate validates the configuration, returning every violation found.
func (c Config) Validate() error {
	var err error

	if c.LogLevel == "" {
		err = multierr.Append(err, errors.New("log_level is required"))
	} else if !logger.IsValidLevel(c.LogLevel) {
		err = multierr.Append(err, errors.New("log_level is invalid"))
	}

	err = multierr.Append(err, validateEndpoint("broker", c.BrokerEndpoint,
		c.BrokerPort))
	err = multierr.Append(err, validateEndpoint("aws_iot", c.AWSIoTEndpoint,
		c.AWSMQTTPort))
	err = multierr.Append(err, validatePort("https_port", c.HTTPSPort))

	if c.RangeRequestLength <= 0 {
		err = multierr.Append(err,
			errors.New("range_request_length must be greater than 0"))
	}
	if c.RangeRequestLength+MinHeaderHeadroom > c.UserBufferLength {
		err = multierr.Append(err, fmt.Errorf(
			"range_request_length must leave at least %d bytes of "+
				"user_buffer_length", MinHeaderHeadroom))
	}

	if c.PrivateKeyPath != nil && *c.PrivateKeyPath == "" {
		err = multierr.Append(err,
			errors.New("client_private_key_path must not be empty when set"))
	}

	err = multierr.Append(err, validateString("client_identifier",
		c.ClientIdentifier))
	err = multierr.Append(err, validateString("thing_name", c.ThingName))

	if c.NetworkBufferSize <= 0 {
		err = multierr.Append(err,
			errors.New("network_buffer_size must be greater than 0"))
	}
	if c.ConnectTimeout <= 0 {
		err = multierr.Append(err,
			errors.New("connect_timeout must be greater than 0"))
	}
	if c.TransportTimeout <= 0 {
		err = multierr.Append(err,
			errors.New("transport_timeout must be greater than 0"))
	}
	if c.MQTTKeepAlive < 0 || c.MQTTKeepAlive > 65535 {
		err = multierr.Append(err,
			errors.New("mqtt_keep_alive must be between 0 and 65535"))
	}
	if c.MQTTVersion != 4 && c.MQTTVersion != 5 {
		err = multierr.Append(err, errors.New("mqtt_version must be 4 or 5"))
	}
	if c.ProbeInterval <= 0 {
		err = multierr.Append(err,
			errors.New("probe_interval must be greater than 0"))
	}

	if c.MetricsEnabled {
		if c.MetricsAddress == "" {
			err = multierr.Append(err, errors.New("metrics_address is required"))
		}
		if c.MetricsPath == "" {
			err = multierr.Append(err, errors.New("metrics_path is required"))
		}
	}

	return err
}

func validateEndpoint(name, host string, port int) error {
	var err error

	if host == "" {
		err = multierr.Append(err, fmt.Errorf("%s_endpoint is required", name))
	}

	portName := name + "_port"
	if name == "aws_iot" {
		portName = "aws_mqtt_port"
	}

	return multierr.Append(err, validatePort(portName, port))
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535", name)
	}
	return nil
}

// validateString checks the rules of an MQTT UTF-8 encoded string.
func validateString(name, val string) error {
	if val == "" {
		return fmt.Errorf("%s is required", name)
	}
	if !utf8.ValidString(val) {
		return fmt.Errorf("%s must be a valid UTF-8 string", name)
	}
	if len(val) > 65535 {
		return fmt.Errorf("%s must be no longer than 65535 bytes", name)
	}
	return nil
}
