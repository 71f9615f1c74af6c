package summarize

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/i474232898/forecast-digest/internal/forecast"
)

// DefaultRegions restricts which parts of the national outlooks matter.
var DefaultRegions = []string{"Minnesota", "Iowa", "Wisconsin", "South Dakota", "North Dakota"}

// Persona is a configurable prompt template.
type Persona struct {
	Name   string
	System string
	// Style is appended to the instruction block.
	Style string
}

var personas = map[string]Persona{
	"expert": {
		Name: "expert",
		System: "You are a weather expert. Your job is to advise a storm chaser on what a good target is. " +
			"You have extensive knowledge of severe weather including hodographs, soundings, and tornado forecasting.",
		Style: "Keep the tone clear and professional.",
	},
	"casual": {
		Name: "casual",
		System: "You are a storm chaser who has seen it all and talks like it. Your job is to tell your crew where the action is. " +
			"You know hodographs, soundings, and tornado forecasting, but you explain them like you're at a gas station at 2am.",
		Style: "Use informal slang and keep it fun, but never make up weather that is not in the forecast.",
	},
}

// LookupPersona returns the persona registered under name.
func LookupPersona(name string) (Persona, bool) {
	p, ok := personas[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// PersonaNames lists the registered personas in sorted order.
func PersonaNames() []string {
	names := make([]string, 0, len(personas))
	for n := range personas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Prompt is the rendered input for one completion.
type Prompt struct {
	System string
	User   string
}

// PromptBuilder renders prompts. The output depends only on the payload, the
// persona, the regions and the injected date, so it is reproducible in tests.
type PromptBuilder struct {
	Persona Persona
	Regions []string
	Office  string
}

// Build renders the prompt for payload as of now.
func (b PromptBuilder) Build(payload forecast.Payload, now time.Time) Prompt {
	regions := b.Regions
	if len(regions) == 0 {
		regions = DefaultRegions
	}
	office := b.Office
	if office == "" {
		office = "MPX"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Forecast from the local %s office:\n%s\n", office, strings.TrimSpace(payload.Primary.Body))

	for _, doc := range payload.Secondary {
		fmt.Fprintf(&sb, "\nSPC %s Outlook:\n%s\n", doc.Label, strings.TrimSpace(doc.Body))
	}

	fmt.Fprintf(&sb, "\nToday is %s, %s.\n", now.Weekday(), now.Format("January 2, 2006"))
	sb.WriteString("Summarize the area forecast discussion that was provided. ")
	sb.WriteString("Break the next three days out one by one, starting each day on its own line with the weekday name followed by a colon (for example \"Monday:\"). ")
	sb.WriteString("After that, summarize the rest of the discussion as a longer term outlook so I know how the period overall will be looking. ")
	sb.WriteString("I have a particular interest in the storm portion of the forecast: where the storms will be, whether there will be supercells, and whether there is a tornado risk. Make sure that is emphasized in the day by day summary. ")
	fmt.Fprintf(&sb, "Only use the SPC outlooks where they are relevant to %s. ", joinRegions(regions))
	sb.WriteString("Finish with a recommendation of which day or days are worth chasing.")
	if b.Persona.Style != "" {
		sb.WriteString("\n")
		sb.WriteString(b.Persona.Style)
	}

	return Prompt{
		System: b.Persona.System,
		User:   sb.String(),
	}
}

func joinRegions(regions []string) string {
	switch len(regions) {
	case 0:
		return ""
	case 1:
		return regions[0]
	default:
		return strings.Join(regions[:len(regions)-1], ", ") + " and " + regions[len(regions)-1]
	}
}
