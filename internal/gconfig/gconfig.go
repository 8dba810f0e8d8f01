// Package gconfig centralizes the port bands and endpoint configuration
// shared by every cmd/* binary, modeled on config.go/options.go's
// Config/Options-with-Verify shape and on impisc/network/ports.py's
// base-port-per-role convention.
package gconfig

import (
	"errors"
	"os"
	"strconv"
)

// ErrInvalidParameter mirrors modbus.ErrInvalidParameter: returned by
// Verify when a required field is missing or out of range.
var ErrInvalidParameter = errors.New("gconfig: invalid parameter")

// Base ports, one per role, matching impisc/network/ports.py's
// COMMAND_EXECUTOR/GRIPS_LISTENER band assignments translated to this
// system's roles. Each base port is the role's well-known listening port;
// processes that additionally need a scratch port bind ":0" and exchange
// the chosen port out of band.
const (
	RouterPort        = 35000
	TelemeterPort     = 35100
	DiscriminatorPort = 36000
	TelemSorterPort   = 36100
	ReassemblerPort   = 36200
	CommanderPort     = 37000
)

// Well-known ground-side fan-out destinations, grounded on
// ground/telemetry_sorter.py's ground_ports.TELEMETRY_DUMP /
// ground_ports.COMMAND_INTERFACE usage: every datagram is always dumped to
// a catch-all sink, and science/ack types additionally get routed to a
// dedicated per-type port when one is registered.
const (
	TelemetryDumpPort   = 36110
	CommandAckDisplay   = 36010
	CommandTelemetry    = 36011
	ShellReplyInterface = 36120
)

// Payload-side loopback source ports instruments and the shell executor
// send raw telemetry payloads from. The Telemeter identifies an
// instrument's variant by the source port its datagram arrived on (§4.5),
// so every producer in the same process must bind its outgoing socket to
// its assigned port here rather than an ephemeral one.
const (
	ShellExecIngressPort   = 35050
	ShellExecSourcePort    = 35110
	HousekeepingSourcePort = 35120
)

// DefaultGripsIP returns GRIPS_IP_ADDR from the environment, defaulting to
// loopback, exactly as ports.py's `os.getenv('GRIPS_IP_ADDR') or
// '127.0.0.1'`.
func DefaultGripsIP() string {
	if ip := os.Getenv("GRIPS_IP_ADDR"); ip != "" {
		return ip
	}
	return "127.0.0.1"
}

// Config is the payload-side configuration: the address it listens for
// commands on, and the ground relay address telemetry is forwarded to.
type Config struct {
	ListenAddr   string
	GroundRelay  string
	TelemetryMap map[int]string // local source port -> role name, for logging only
}

// Verify validates Config the way modbus.Config.Verify does: a pass/fail
// check of required fields, no normalization.
func (c Config) Verify() error {
	if c.ListenAddr == "" || c.GroundRelay == "" {
		return ErrInvalidParameter
	}
	return nil
}

// Options is the ground-side configuration: where the discriminator
// listens, and where it delivers acks and telemetry.
type Options struct {
	DiscriminatorAddr string
	AckSinkAddr       string
	TelemetrySinkAddr string
}

// Verify validates Options.
func (o Options) Verify() error {
	if o.DiscriminatorAddr == "" || o.AckSinkAddr == "" || o.TelemetrySinkAddr == "" {
		return ErrInvalidParameter
	}
	return nil
}

// JoinHostPort builds "host:port" the way every cmd/* main wires a
// gconfig base port onto DefaultGripsIP(), using strconv instead of fmt to
// match helper.go's preference for the narrowest stdlib tool for the job.
func JoinHostPort(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}
