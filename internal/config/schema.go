package config

// Config is the top-level YAML structure. Alert rules are fixed in code by
// design; config covers operational settings only.
type Config struct {
	Engine    EngineConf    `yaml:"engine"`
	Logging   LoggingConf   `yaml:"logging"`
	Readiness ReadinessConf `yaml:"readiness"`
}

// EngineConf holds tunable concurrency settings.
type EngineConf struct {
	Workers         int `yaml:"workers"`
	QueueDepth      int `yaml:"queue_depth"`
	SubmitTimeoutMs int `yaml:"submit_timeout_ms"`
}

// LoggingConf controls the slog level; hot-reloadable.
type LoggingConf struct {
	Level string `yaml:"level"`
}

// ReadinessConf controls when /readyz reports overload; hot-reloadable.
type ReadinessConf struct {
	QueueHighWatermark float64 `yaml:"queue_high_watermark"`
}
