package config

import "time"

// Transport names accepted in HarnessConfig.Transport.
const (
	TransportUDP      = "udp"
	TransportLoopback = "loopback"
)

// Counter names accepted in HarnessConfig.Counter.
const (
	CounterFD       = "fd"
	CounterMemory   = "memory"
	CounterLoopback = "loopback"
)

// HarnessConfig contains settings for the scenario runner.
type HarnessConfig struct {
	Transport     string        `json:"transport" envconfig:"NETTEST_TRANSPORT"`
	LocalHost     string        `json:"local_host" envconfig:"NETTEST_LOCAL_HOST"`   // address ports are bound on
	RecvBuffer    int           `json:"recv_buffer" envconfig:"NETTEST_RECV_BUFFER"` // SO_RCVBUF bytes, 0 = kernel default
	Counter       string        `json:"counter" envconfig:"NETTEST_COUNTER"`
	Timeout       time.Duration `json:"timeout" envconfig:"NETTEST_TIMEOUT"` // per receive, 0 = wait forever
	TxInterval    time.Duration `json:"tx_interval" envconfig:"NETTEST_TX_INTERVAL"`
	Settle        time.Duration `json:"settle" envconfig:"NETTEST_SETTLE"`
	DrainWindow   time.Duration `json:"drain_window" envconfig:"NETTEST_DRAIN_WINDOW"`
	GradePause    time.Duration `json:"grade_pause" envconfig:"NETTEST_GRADE_PAUSE"`
	QueueBound    int           `json:"queue_bound" envconfig:"NETTEST_QUEUE_BOUND"`
	FreeTolerance int           `json:"free_tolerance" envconfig:"NETTEST_FREE_TOLERANCE"`
}

// PeerConfig describes the remote peer and, when running as the peer, where
// the harness listens.
type PeerConfig struct {
	Addr           string        `json:"addr" envconfig:"NETTEST_PEER_ADDR"`
	Port           int           `json:"port" envconfig:"NETTEST_PEER_PORT"`
	HarnessAddr    string        `json:"harness_addr" envconfig:"NETTEST_PEER_HARNESS_ADDR"`
	HarnessPort1   int           `json:"harness_port1" envconfig:"NETTEST_PEER_HARNESS_PORT1"`
	HarnessPort2   int           `json:"harness_port2" envconfig:"NETTEST_PEER_HARNESS_PORT2"`
	StreamInterval time.Duration `json:"stream_interval" envconfig:"NETTEST_PEER_STREAM_INTERVAL"`
	Rounds         int           `json:"rounds" envconfig:"NETTEST_PEER_ROUNDS"` // streamer rounds, 0 = forever
}

// DNSConfig controls the dns scenario and the peer's DNS responder.
type DNSConfig struct {
	Server  string            `json:"server" envconfig:"NETTEST_DNS_SERVER"`
	Name    string            `json:"name" envconfig:"NETTEST_DNS_NAME"`
	Expect  string            `json:"expect" envconfig:"NETTEST_DNS_EXPECT"` // empty accepts any address
	Listen  string            `json:"listen" envconfig:"NETTEST_DNS_LISTEN"` // peer responder address
	Records map[string]string `json:"records" envconfig:"NETTEST_DNS_RECORDS"`
	TTL     uint32            `json:"ttl" envconfig:"NETTEST_DNS_TTL"`
	// EDNSPayloadSize makes the responder attach an OPT record to every reply.
	EDNSPayloadSize uint16 `json:"edns_payload_size" envconfig:"NETTEST_DNS_EDNS_PAYLOAD_SIZE"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level            string            `json:"level" envconfig:"NETTEST_LOG_LEVEL"`
	Structured       bool              `json:"structured" envconfig:"NETTEST_LOG_STRUCTURED"`
	StructuredFormat string            `json:"structured_format" envconfig:"NETTEST_LOG_FORMAT"`
	IncludePID       bool              `json:"include_pid" envconfig:"NETTEST_LOG_INCLUDE_PID"`
	ExtraFields      map[string]string `json:"extra_fields,omitempty" envconfig:"NETTEST_LOG_EXTRA_FIELDS"`
}

// APIConfig contains the peer status API settings.
//
// Note: APIKey is a secret and is never returned by API endpoints.
type APIConfig struct {
	Enabled bool   `json:"enabled" envconfig:"NETTEST_API_ENABLED"`
	Host    string `json:"host" envconfig:"NETTEST_API_HOST"`
	Port    int    `json:"port" envconfig:"NETTEST_API_PORT"`
	APIKey  string `json:"api_key,omitempty" envconfig:"NETTEST_API_KEY"`
}

// DatabaseConfig locates the optional SQLite profile store.
type DatabaseConfig struct {
	Path string `json:"path" envconfig:"NETTEST_DB"`
}

// Config is the root configuration structure.
type Config struct {
	Harness  HarnessConfig  `json:"harness"`
	Peer     PeerConfig     `json:"peer"`
	DNS      DNSConfig      `json:"dns"`
	Logging  LoggingConfig  `json:"logging"`
	API      APIConfig      `json:"api"`
	Database DatabaseConfig `json:"database"`
}
