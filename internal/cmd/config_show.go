package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect assistant configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "config.show")
		defer span.End()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		dirState := "(missing)"
		if dirExists(cfg.DataDir) {
			dirState = "(exists)"
		}
		keyState := func(defaulted bool, v string) string {
			if defaulted {
				return "derived default (set explicitly for production)"
			}
			return mask(v)
		}
		backend := "sqlite " + cfg.BusinessDBPath()
		if cfg.DatabaseURL != "" {
			backend = "postgres " + mask(cfg.DatabaseURL)
		}
		policyState := "none"
		if cfg.PolicyFile != "" {
			policyState = cfg.PolicyFile
			if !fileExists(cfg.PolicyFile) {
				policyState += " (missing; overlay disabled)"
			}
		}
		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			configFile = "none"
		}

		fmt.Fprintf(out, "Config file:     %s\n", configFile)
		fmt.Fprintf(out, "Data directory:  %s %s\n", cfg.DataDir, dirState)
		fmt.Fprintf(out, "Business store:  %s\n", backend)
		fmt.Fprintf(out, "Audit DB:        %s\n", cfg.AuditDBPath())
		fmt.Fprintf(out, "Signing key:     %s\n", keyState(cfg.UsingDefaultSigningKey(), cfg.SigningKey))
		fmt.Fprintf(out, "JWT secret:      %s\n", keyState(cfg.UsingDefaultJWTSecret(), cfg.JWTSecret))
		fmt.Fprintf(out, "JWT issuer:      %s\n", cfg.JWTIssuer)
		fmt.Fprintf(out, "Model:           %s\n", cfg.Model)
		fmt.Fprintf(out, "LLM keys:        openai=%s anthropic=%s\n", presence(cfg.OpenAIAPIKey), presence(cfg.AnthropicAPIKey))
		if cfg.OpenAIBaseURL != "" {
			fmt.Fprintf(out, "OpenAI base URL: %s\n", cfg.OpenAIBaseURL)
		}
		fmt.Fprintf(out, "Policy overlay:  %s\n", policyState)
		fmt.Fprintf(out, "Audit retention: %d days\n", cfg.AuditRetentionDays)
		fmt.Fprintf(out, "Rate limit:      %.2f req/s per actor\n", cfg.RateLimitRPS)
		fmt.Fprintf(out, "CORS origins:    %s\n", strings.Join(cfg.CORSOrigins, ", "))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func mask(v string) string {
	if len(v) <= 8 {
		return "****"
	}
	return v[:4] + "****" + v[len(v)-4:]
}

func presence(v string) string {
	if v == "" {
		return "unset"
	}
	return "set"
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
