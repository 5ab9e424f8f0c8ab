package agent

import (
	"context"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"

	"github.com/hrm8/assistant/internal/actor"
	assistantotel "github.com/hrm8/assistant/internal/otel"
	"github.com/hrm8/assistant/internal/store"
)

const operatingPrinciples = `You are the HRM8 assistant for recruitment consultants, company hiring teams and HRM8 staff.

Operating principles:
- Answer only from tool results. Never invent names, numbers or records.
- Use the tools available to you. If no tool covers the question, say so.
- Prefer execute_tool_batch when several independent lookups are needed.
- A tool result with success=false is an answer too: explain what was denied or missing instead of retrying the same call.
- Never reveal data outside the user's scope, and never speculate about it.
- Keep answers short. Use lists for multiple records and include ids so the user can follow up.`

var namePolicy = bluemonday.StrictPolicy()

// personalization is the per-request context added to the system prompt.
type personalization struct {
	DisplayName string
	RegionName  string
}

// personalize looks up the actor's display name and, for consultants, their
// region name. Lookup failures leave the field empty.
func personalize(ctx context.Context, dir store.Directory, a *actor.Actor) personalization {
	var p personalization
	if dir == nil || a == nil {
		return p
	}
	name, err := dir.UserDisplayName(ctx, a.UserID)
	if err != nil {
		log.Debug().Err(err).Str("user_id", a.UserID).Func(assistantotel.LogTraceFields(ctx)).Msg("personalization_name_unavailable")
	} else {
		p.DisplayName = sanitizeName(name)
	}
	if a.Kind == actor.KindConsultant && a.Consultant != nil {
		region, err := dir.RegionName(ctx, a.Consultant.RegionID)
		if err != nil {
			log.Debug().Err(err).Str("region_id", a.Consultant.RegionID).Func(assistantotel.LogTraceFields(ctx)).Msg("personalization_region_unavailable")
		} else {
			p.RegionName = sanitizeName(region)
		}
	}
	return p
}

const maxNameRunes = 120

// sanitizeName strips markup and collapses whitespace so stored names cannot
// smuggle instructions into the prompt layout.
func sanitizeName(s string) string {
	s = namePolicy.Sanitize(s)
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxNameRunes {
		s = string(r[:maxNameRunes])
	}
	return s
}

// systemPrompt assembles the operating principles, the actor's scope and any
// personalization.
func systemPrompt(a *actor.Actor, p personalization) string {
	var b strings.Builder
	b.WriteString(operatingPrinciples)
	b.WriteString("\n\nCurrent user scope: ")
	b.WriteString(actor.Describe(a))
	if p.DisplayName != "" {
		b.WriteString("\nThe user's name is ")
		b.WriteString(p.DisplayName)
		b.WriteString(".")
	}
	if p.RegionName != "" {
		b.WriteString("\nTheir region is ")
		b.WriteString(p.RegionName)
		b.WriteString(".")
	}
	return b.String()
}
