package config

import "time"

type Config interface {
	// Port is the TCP port the HTTP API listens on.
	Port() int
	AllowedOrigins() []string
	// ReconcileSchedule is a cron expression, e.g. "@every 5s".
	ReconcileSchedule() string
	CommandTimeout() time.Duration
	// PlanNamesFile is a TOML file of localized plan names; empty means built-in.
	PlanNamesFile() string
	// ConsoleEncoding is the IANA name of the console code page, if any.
	ConsoleEncoding() string
	SimulatePlanControl() bool

	// Load reads the configuration from the source.
	Load() error
}
