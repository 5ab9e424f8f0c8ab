package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/auth"
)

type tokenFlags struct {
	kind       string
	userID     string
	email      string
	company    string
	role       string
	licensee   string
	regions    []string
	consultant string
	region     string
	ttl        time.Duration
}

var tokenOpts tokenFlags

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for a development actor",
	Example: `  assistant token --type consultant --user c1 --email casey@hrm8.test --consultant c1 --region r1
  assistant token --type company --user u1 --email uma@acme.test --company co1 --role ADMIN
  assistant token --type hrm8 --user u2 --email grace@hrm8.test --role GLOBAL_ADMIN`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "token.issue")
		defer span.End()

		a, err := tokenOpts.actor()
		if err != nil {
			return err
		}
		if err := actor.Validate(a); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.WarnIfDefaultKeys()

		tok, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer).IssueToken(a, tokenOpts.ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenOpts.kind, "type", "", "actor type: company, hrm8 or consultant")
	f.StringVar(&tokenOpts.userID, "user", "", "user ID")
	f.StringVar(&tokenOpts.email, "email", "", "user email")
	f.StringVar(&tokenOpts.company, "company", "", "company ID (company users)")
	f.StringVar(&tokenOpts.role, "role", "", "company or HRM8 role")
	f.StringVar(&tokenOpts.licensee, "licensee", "", "licensee ID (HRM8 users)")
	f.StringSliceVar(&tokenOpts.regions, "regions", nil, "assigned region IDs (HRM8 users)")
	f.StringVar(&tokenOpts.consultant, "consultant", "", "consultant ID (consultants)")
	f.StringVar(&tokenOpts.region, "region", "", "region ID (consultants)")
	f.DurationVar(&tokenOpts.ttl, "ttl", auth.DefaultTTL, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(tokenCmd)
}

func (f tokenFlags) actor() (*actor.Actor, error) {
	switch strings.ToLower(f.kind) {
	case "company", "company_user":
		return actor.NewCompanyUser(f.userID, f.email, f.company, f.role), nil
	case "hrm8", "hrm8_user":
		return actor.NewHRM8User(f.userID, f.email, f.role, f.licensee, f.regions), nil
	case "consultant":
		a := actor.NewConsultant(f.userID, f.email, f.consultant, f.region)
		a.Consultant.Role = f.role
		return a, nil
	default:
		return nil, fmt.Errorf("unknown actor type %q (want company, hrm8 or consultant)", f.kind)
	}
}
