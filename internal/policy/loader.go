package policy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	assistantotel "github.com/hrm8/assistant/internal/otel"
)

var tracer = assistantotel.Tracer("github.com/hrm8/assistant/internal/policy")

// LoadOverlayConfig reads and validates an operator policy file. A missing
// file is not an error: it yields (nil, nil) and the overlay is a no-op.
func LoadOverlayConfig(ctx context.Context, path string) (*OverlayConfig, error) {
	_, span := tracer.Start(ctx, "policy.load")
	defer span.End()
	span.SetAttributes(attribute.String("policy.path", path))

	if path == "" {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading policy file %s: %w", path, err)
	}
	return ParseOverlayConfig(content)
}

// ParseOverlayConfig validates and decodes policy YAML.
func ParseOverlayConfig(content []byte) (*OverlayConfig, error) {
	if err := ValidateSchema(content); err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}
	var cfg OverlayConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	cfg.ComputeHash(content)
	return &cfg, nil
}
