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
	"net"
	"strconv"
	"strings"

	"github.com/gsalomao/iotdemo/internal/platform"
)

// ErrMissingCapability indicates that a platform capability required by the
// Surface was not provided.
var ErrMissingCapability = errors.New("missing platform capability")

// Endpoint is a host name and TCP port pair.
type Endpoint struct {
	// Host name.
	Host string

	// TCP port.
	Port uint16
}

// Address returns the endpoint in the <host>:<port> form.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// IsPlaceholder returns whether the host still holds a "<...>" placeholder
// which must be replaced by the integrator.
func (e Endpoint) IsPlaceholder() bool {
	return strings.ContainsAny(e.Host, "<>")
}

// Metadata holds the descriptive strings used only for reporting.
type Metadata struct {
	OSName           string
	OSVersion        string
	HardwarePlatform string
	MQTTLib          string
}

// KeyPath is the path of a private key which may be absent.
//
// An absent KeyPath means the key is not resolved through the file system.
// It is distinct from any path, including the empty one.
type KeyPath struct {
	path    string
	present bool
}

// NoKeyPath is the absent KeyPath.
var NoKeyPath = KeyPath{}

// KeyPathOf returns a present KeyPath holding the given path.
func KeyPathOf(path string) KeyPath {
	return KeyPath{path: path, present: true}
}

// Path returns the path and whether it is present.
func (k KeyPath) Path() (string, bool) {
	return k.path, k.present
}

// IsAbsent returns whether the KeyPath is the absent sentinel.
func (k KeyPath) IsAbsent() bool {
	return !k.present
}

// String returns the path, or "<absent>" for the absent sentinel.
func (k KeyPath) String() string {
	if !k.present {
		return "<absent>"
	}
	return k.path
}

// Kind represents the semantic type of a configuration value.
type Kind byte

// Kinds of configuration value.
const (
	KindString Kind = iota
	KindInteger
	KindResolver
	KindAbsent
)

var kindToString = map[Kind]string{
	KindString:   "string",
	KindInteger:  "integer",
	KindResolver: "resolver",
	KindAbsent:   "absent",
}

// String returns the Kind in string format.
func (k Kind) String() string {
	s, ok := kindToString[k]
	if !ok {
		return "unknown"
	}
	return s
}

// Value is a named configuration value.
type Value struct {
	Name  string `json:"name"`
	Kind  Kind   `json:"-"`
	Type  string `json:"kind"`
	Value string `json:"value"`
}

// Surface is the immutable set of values read by the networking and TLS
// modules. It is safe for concurrent use.
type Surface struct {
	broker     Endpoint
	awsIoT     Endpoint
	httpsPort  uint16
	userBuffer int
	rangeLen   int
	rootCAName string
	awsCAName  string
	privateKey KeyPath
	clientID   string
	netBuffer  int
	metadata   Metadata
	thingName  string
	storage    platform.Storage
	device     platform.DeviceAuth
}

// NewSurface validates the configuration and creates the Surface from it.
// The storage resolves the root CA certificate and the device authentication
// resolves the client certificate.
func NewSurface(c Config, storage platform.Storage,
	device platform.DeviceAuth) (*Surface, error) {

	if storage == nil || device == nil {
		return nil, ErrMissingCapability
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	key := NoKeyPath
	if c.PrivateKeyPath != nil {
		key = KeyPathOf(*c.PrivateKeyPath)
	}

	return &Surface{
		broker:     Endpoint{Host: c.BrokerEndpoint, Port: uint16(c.BrokerPort)},
		awsIoT:     Endpoint{Host: c.AWSIoTEndpoint, Port: uint16(c.AWSMQTTPort)},
		httpsPort:  uint16(c.HTTPSPort),
		userBuffer: c.UserBufferLength,
		rangeLen:   c.RangeRequestLength,
		rootCAName: c.RootCACertName,
		awsCAName:  c.AWSRootCACertName,
		privateKey: key,
		clientID:   c.ClientIdentifier,
		netBuffer:  c.NetworkBufferSize,
		metadata: Metadata{
			OSName:           c.OSName,
			OSVersion:        c.OSVersion,
			HardwarePlatform: c.HardwarePlatformName,
			MQTTLib:          c.MQTTLib,
		},
		thingName: c.ThingName,
		storage:   storage,
		device:    device,
	}, nil
}

// BrokerEndpoint returns the endpoint of the generic MQTT broker.
func (s *Surface) BrokerEndpoint() Endpoint {
	return s.broker
}

// AWSIoTEndpoint returns the endpoint of the managed IoT broker.
func (s *Surface) AWSIoTEndpoint() Endpoint {
	return s.awsIoT
}

// HTTPSPort returns the TCP port used for HTTPS downloads.
func (s *Surface) HTTPSPort() uint16 {
	return s.httpsPort
}

// UserBufferLength returns the size of the range request buffer.
func (s *Surface) UserBufferLength() int {
	return s.userBuffer
}

// RangeRequestLength returns the size of each range request.
func (s *Surface) RangeRequestLength() int {
	return s.rangeLen
}

// RootCACertName returns the logical name of the configured root CA
// certificate. It's empty when the system roots must be used.
func (s *Surface) RootCACertName() string {
	return s.rootCAName
}

// AWSRootCACertName returns the logical name of the root CA certificate of
// the managed IoT broker. It's empty when the system roots must be used.
func (s *Surface) AWSRootCACertName() string {
	return s.awsCAName
}

// RootCACertPath resolves the logical certificate name into an absolute path
// in the image package.
func (s *Surface) RootCACertPath(name string) (string, error) {
	return s.storage.AbsolutePathInImagePackage(name)
}

// ClientCertPath resolves the path of the device certificate.
func (s *Surface) ClientCertPath() (string, error) {
	return s.device.CertificatePath()
}

// PrivateKeyPath returns the path of the client private key, which is
// NoKeyPath unless explicitly configured.
func (s *Surface) PrivateKeyPath() KeyPath {
	return s.privateKey
}

// ClientIdentifier returns the MQTT client identifier.
func (s *Surface) ClientIdentifier() string {
	return s.clientID
}

// NetworkBufferSize returns the size of the MQTT network buffer.
func (s *Surface) NetworkBufferSize() int {
	return s.netBuffer
}

// Metadata returns the descriptive strings.
func (s *Surface) Metadata() Metadata {
	return s.metadata
}

// ThingName returns the name of the thing.
func (s *Surface) ThingName() string {
	return s.thingName
}

// ThingNameLength returns the length, in bytes, of the thing name.
func (s *Surface) ThingNameLength() uint16 {
	return uint16(len(s.thingName))
}

// Values returns all values of the Surface in a stable order.
func (s *Surface) Values() []Value {
	str := func(name, val string) Value {
		return Value{Name: name, Kind: KindString, Value: val}
	}
	num := func(name string, val int) Value {
		return Value{Name: name, Kind: KindInteger, Value: strconv.Itoa(val)}
	}

	key := Value{Name: "client_private_key_path", Kind: KindAbsent,
		Value: s.privateKey.String()}
	if !s.privateKey.IsAbsent() {
		key.Kind = KindString
	}

	rootCA := "system-roots"
	if s.rootCAName != "" {
		rootCA = "image-package(" + s.rootCAName + ")"
	}

	vals := []Value{
		str("broker_endpoint", s.broker.Host),
		num("broker_port", int(s.broker.Port)),
		str("aws_iot_endpoint", s.awsIoT.Host),
		num("aws_mqtt_port", int(s.awsIoT.Port)),
		num("https_port", int(s.httpsPort)),
		num("user_buffer_length", s.userBuffer),
		num("range_request_length", s.rangeLen),
		{Name: "root_ca_cert_path", Kind: KindResolver, Value: rootCA},
		{Name: "client_cert_path", Kind: KindResolver, Value: "device-auth"},
		key,
		str("client_identifier", s.clientID),
		num("network_buffer_size", s.netBuffer),
		str("os_name", s.metadata.OSName),
		str("os_version", s.metadata.OSVersion),
		str("hardware_platform_name", s.metadata.HardwarePlatform),
		str("mqtt_lib", s.metadata.MQTTLib),
		str("thing_name", s.thingName),
		num("thing_name_length", int(s.ThingNameLength())),
	}

	for i := range vals {
		vals[i].Type = vals[i].Kind.String()
	}
	return vals
}
