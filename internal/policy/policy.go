package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// OverlayConfig is the operator policy file (assistant.policy.yaml). It can
// only narrow what the static catalog allows.
type OverlayConfig struct {
	Version string      `yaml:"version" json:"version"`
	Tools   ToolsConfig `yaml:"tools" json:"tools"`

	Hash       string `yaml:"-" json:"-"`
	VersionTag string `yaml:"-" json:"-"`
}

// ToolsConfig lists tools to switch off entirely and tools further restricted
// to a subset of access levels.
type ToolsConfig struct {
	Disabled []string            `yaml:"disabled,omitempty" json:"disabled"`
	Restrict map[string][]string `yaml:"restrict,omitempty" json:"restrict"`
}

// ComputeHash sets Hash and a VersionTag of "{version}:sha256:{first8}".
func (c *OverlayConfig) ComputeHash(content []byte) {
	sum := sha256.Sum256(content)
	c.Hash = hex.EncodeToString(sum[:])
	c.VersionTag = fmt.Sprintf("%s:sha256:%s", c.Version, c.Hash[:8])
}
