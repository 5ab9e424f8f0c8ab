package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/catalog"
	"github.com/hrm8/assistant/internal/policy"
)

var validateFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an operator tool policy file",
	Long:  "Validates the policy YAML against its schema, compiles the Rego overlay and checks that every referenced tool and access level exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ctx, span := tracer.Start(ctx, "validate")
		defer span.End()

		if validateFile == "" {
			validateFile = "assistant.policy.yaml"
		}
		if _, err := os.Stat(validateFile); err != nil {
			return fmt.Errorf("policy file: %w", err)
		}

		cfg, err := policy.LoadOverlayConfig(ctx, validateFile)
		if err != nil {
			log.Error().Err(err).Str("file", validateFile).Msg("Policy validation failed")
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ Validation failed: %s\n", validateFile)
			return fmt.Errorf("validation failed: %w", err)
		}
		if _, err := policy.NewOverlay(ctx, cfg); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ Policy compilation failed: %s\n", validateFile)
			return fmt.Errorf("policy overlay initialization failed: %w", err)
		}
		if problems := checkOverlayReferences(cfg); len(problems) > 0 {
			for _, p := range problems {
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s\n", p)
			}
			return fmt.Errorf("validation failed: %d unknown reference(s)", len(problems))
		}

		log.Info().
			Str("file", validateFile).
			Str("version", cfg.VersionTag).
			Msg("Policy validated successfully")

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Policy valid: %s\n", validateFile)
		fmt.Fprintf(out, "  Version:    %s\n", cfg.VersionTag)
		fmt.Fprintf(out, "  Disabled:   %d tool(s)\n", len(cfg.Tools.Disabled))
		fmt.Fprintf(out, "  Restricted: %d tool(s)\n", len(cfg.Tools.Restrict))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "policy file to validate (default: assistant.policy.yaml)")
}

// checkOverlayReferences reports tool names and access levels the overlay
// mentions that do not exist.
func checkOverlayReferences(cfg *policy.OverlayConfig) []string {
	reg, err := catalog.NewRegistry(nil, nil)
	if err != nil {
		return []string{err.Error()}
	}
	var problems []string
	for _, name := range cfg.Tools.Disabled {
		if _, ok := reg.Get(name); !ok {
			problems = append(problems, fmt.Sprintf("disabled tool %q is not registered", name))
		}
	}
	names := make([]string, 0, len(cfg.Tools.Restrict))
	for name := range cfg.Tools.Restrict {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := reg.Get(name); !ok {
			problems = append(problems, fmt.Sprintf("restricted tool %q is not registered", name))
		}
		for _, lvl := range cfg.Tools.Restrict[name] {
			if _, err := actor.ParseAccessLevel(lvl); err != nil {
				problems = append(problems, fmt.Sprintf("tool %q: %v", name, err))
			}
		}
	}
	return problems
}
