package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# blobsweep configuration file
#
# Every key can be overridden from the environment with the BLOBSWEEP_ prefix,
# e.g. BLOBSWEEP_GC_DRY_RUN=true or BLOBSWEEP_OBJECTS_S3_BUCKET=my-bucket.
# Only the store section matching references.type / objects.type is used.
`

// sectionComments documents the top-level keys of the generated file.
var sectionComments = map[string]string{
	"logging":          "Log level (DEBUG, INFO, WARN, ERROR), format (text, json) and output (stdout, stderr, path).",
	"telemetry":        "OpenTelemetry tracing over OTLP gRPC, plus optional Pyroscope profiling.",
	"metrics":          "Prometheus endpoint served on its own port when enabled.",
	"api":              "Operator HTTP API: health probes, pass trigger, on-demand deletes.",
	"shutdown_timeout": "How long serve waits for a running pass before cancelling it.",
	"schedule":         "Standard 5-field cron expression; prefix with CRON_TZ=<zone> or set timezone.",
	"gc":               "Collector tuning. grace_period spares objects modified this recently (0 disables).\npass_timeout bounds one pass (0 = unbounded). dry_run reports orphans without deleting.",
	"references":       "Reference store: memory, postgres (pgx), sql (gorm: sqlite or postgres), badger.",
	"objects":          "Object store: memory, fs, s3, gcs, azblob.",
}

// InitConfig writes a commented default configuration to the default path
// and returns that path. An existing file is kept unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a commented default configuration to path.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}

	data, err := RenderDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// RenderDefaultConfig returns the default configuration as commented YAML.
func RenderDefaultConfig() ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(GetDefaultConfig()); err != nil {
		return nil, fmt.Errorf("failed to encode default config: %w", err)
	}

	// doc is a mapping: keys and values alternate.
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if c, ok := sectionComments[doc.Content[i].Value]; ok {
			doc.Content[i].HeadComment = c
		}
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	buf.WriteString("\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("failed to render default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to render default config: %w", err)
	}
	return buf.Bytes(), nil
}
