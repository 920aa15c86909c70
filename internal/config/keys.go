package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownKey is returned by Get and Set for a key not in Keys.
var ErrUnknownKey = errors.New("unknown config key")

// field maps one dotted key to a Config field.
type field struct {
	get func(*Config) string
	set func(*Config, string) error
}

func stringField(p func(*Config) *string) field {
	return field{
		get: func(c *Config) string { return *p(c) },
		set: func(c *Config, v string) error { *p(c) = v; return nil },
	}
}

func intField(p func(*Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*p(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return err
			}
			*p(c) = n
			return nil
		},
	}
}

func uintField[T uint16 | uint32](bits int, p func(*Config) *T) field {
	return field{
		get: func(c *Config) string { return strconv.FormatUint(uint64(*p(c)), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(strings.TrimSpace(v), 10, bits)
			if err != nil {
				return err
			}
			*p(c) = T(n)
			return nil
		},
	}
}

func boolField(p func(*Config) *bool) field {
	return field{
		get: func(c *Config) string { return strconv.FormatBool(*p(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return err
			}
			*p(c) = b
			return nil
		},
	}
}

func durationField(p func(*Config) *time.Duration) field {
	return field{
		get: func(c *Config) string { return p(c).String() },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return err
			}
			*p(c) = d
			return nil
		},
	}
}

// mapField stores a map as "k=v,k=v" with keys sorted.
func mapField(p func(*Config) *map[string]string) field {
	return field{
		get: func(c *Config) string {
			m := *p(c)
			pairs := make([]string, 0, len(m))
			for _, k := range slices.Sorted(maps.Keys(m)) {
				pairs = append(pairs, k+"="+m[k])
			}
			return strings.Join(pairs, ",")
		},
		set: func(c *Config, v string) error {
			m := map[string]string{}
			for _, pair := range strings.Split(v, ",") {
				pair = strings.TrimSpace(pair)
				if pair == "" {
					continue
				}
				k, val, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("%q is not key=value", pair)
				}
				m[strings.TrimSpace(k)] = strings.TrimSpace(val)
			}
			*p(c) = m
			return nil
		},
	}
}

var fields = map[string]field{
	"harness.transport":      stringField(func(c *Config) *string { return &c.Harness.Transport }),
	"harness.local_host":     stringField(func(c *Config) *string { return &c.Harness.LocalHost }),
	"harness.recv_buffer":    intField(func(c *Config) *int { return &c.Harness.RecvBuffer }),
	"harness.counter":        stringField(func(c *Config) *string { return &c.Harness.Counter }),
	"harness.timeout":        durationField(func(c *Config) *time.Duration { return &c.Harness.Timeout }),
	"harness.tx_interval":    durationField(func(c *Config) *time.Duration { return &c.Harness.TxInterval }),
	"harness.settle":         durationField(func(c *Config) *time.Duration { return &c.Harness.Settle }),
	"harness.drain_window":   durationField(func(c *Config) *time.Duration { return &c.Harness.DrainWindow }),
	"harness.grade_pause":    durationField(func(c *Config) *time.Duration { return &c.Harness.GradePause }),
	"harness.queue_bound":    intField(func(c *Config) *int { return &c.Harness.QueueBound }),
	"harness.free_tolerance": intField(func(c *Config) *int { return &c.Harness.FreeTolerance }),

	"peer.addr":            stringField(func(c *Config) *string { return &c.Peer.Addr }),
	"peer.port":            intField(func(c *Config) *int { return &c.Peer.Port }),
	"peer.harness_addr":    stringField(func(c *Config) *string { return &c.Peer.HarnessAddr }),
	"peer.harness_port1":   intField(func(c *Config) *int { return &c.Peer.HarnessPort1 }),
	"peer.harness_port2":   intField(func(c *Config) *int { return &c.Peer.HarnessPort2 }),
	"peer.stream_interval": durationField(func(c *Config) *time.Duration { return &c.Peer.StreamInterval }),
	"peer.rounds":          intField(func(c *Config) *int { return &c.Peer.Rounds }),

	"dns.server":            stringField(func(c *Config) *string { return &c.DNS.Server }),
	"dns.name":              stringField(func(c *Config) *string { return &c.DNS.Name }),
	"dns.expect":            stringField(func(c *Config) *string { return &c.DNS.Expect }),
	"dns.listen":            stringField(func(c *Config) *string { return &c.DNS.Listen }),
	"dns.records":           mapField(func(c *Config) *map[string]string { return &c.DNS.Records }),
	"dns.ttl":               uintField(32, func(c *Config) *uint32 { return &c.DNS.TTL }),
	"dns.edns_payload_size": uintField(16, func(c *Config) *uint16 { return &c.DNS.EDNSPayloadSize }),

	"logging.level":             stringField(func(c *Config) *string { return &c.Logging.Level }),
	"logging.structured":        boolField(func(c *Config) *bool { return &c.Logging.Structured }),
	"logging.structured_format": stringField(func(c *Config) *string { return &c.Logging.StructuredFormat }),
	"logging.include_pid":       boolField(func(c *Config) *bool { return &c.Logging.IncludePID }),
	"logging.extra_fields":      mapField(func(c *Config) *map[string]string { return &c.Logging.ExtraFields }),

	"api.enabled": boolField(func(c *Config) *bool { return &c.API.Enabled }),
	"api.host":    stringField(func(c *Config) *string { return &c.API.Host }),
	"api.port":    intField(func(c *Config) *int { return &c.API.Port }),
	"api.api_key": stringField(func(c *Config) *string { return &c.API.APIKey }),
}

// Keys lists every key accepted by Get and Set, sorted.
func Keys() []string {
	return slices.Sorted(maps.Keys(fields))
}

// Get returns the value of key in its text form.
func (cfg *Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return f.get(cfg), nil
}

// Set parses value and stores it under key. Validate is not run.
func (cfg *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err := f.set(cfg, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}
