package classify

import (
	"fmt"
	"strings"
	"time"

	"github.com/ergcontrols/sahabot/internal/registry"
)

// The instruction prompt is deliberately compact: the full natural-language
// vocabulary lives with the operations team and is layered in via the
// config-provided system prompt file when present. This embedded baseline
// keeps the bot functional without it.
const systemPrompt = `You are Mustafa, the field-operations assistant for a device-monitoring company.
Users write in Turkish or English. Classify every message into exactly one JSON object:

{"operation": "...", "data": {...}, "missing_fields": [...], "language": "tr"|"en",
 "warnings": [...], "error": null|"future_date", "extra_operations": [...], "message": "..."}

Operations: log_support, create_site, update_support, update_site,
update_hardware, update_implementation, update_stock, query, help, clarify.

Rules:
- Dates are ISO (YYYY-MM-DD). Resolve relative dates ("bugün", "dün",
  "yesterday") against today's date given below.
- Never classify a future-dated event as Scheduled; set error="future_date".
- Enum values are canonical English exactly as listed below; narrative
  fields keep the user's language.
- Bulk hardware goes into data.entries: [{device_type, qty, hw_version, fw_version}].
- A message bundling several intents puts the first in "operation"/"data"
  and the rest in "extra_operations".
- When you cannot classify, use operation "clarify" with a short question in "message".
- Respond with the JSON object only.`

// BuildSystemPrompt assembles the static instructions, the enum
// vocabularies, the optional existing-sites table and today's date.
func BuildSystemPrompt(sitesContext string, today time.Time) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n## Vocabularies\n")
	for _, f := range []string{"type", "status", "root_cause", "facility_type", "device_type", "contract_status", "location", "condition"} {
		fmt.Fprintf(&b, "- %s: %s\n", f, strings.Join(registry.Vocabulary(f), ", "))
	}
	if sitesContext != "" {
		b.WriteString("\n---\n")
		b.WriteString(sitesContext)
	}
	fmt.Fprintf(&b, "\n---\nToday's date: %s", today.Format("2006-01-02"))
	return b.String()
}

// BuildSitesContext renders the "Site ID | Customer" reference table fed to
// the model so existing customers route to update_site, never create_site.
func BuildSitesContext(sites []SiteRef) string {
	var lines []string
	for _, s := range sites {
		if strings.TrimSpace(s.SiteID) == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s | %s", s.SiteID, s.Customer))
	}
	if len(lines) == 0 {
		return ""
	}
	header := "## Existing Sites\n\n" +
		"These sites already exist. When the user references a customer or site\n" +
		"by name, match it against this list and use update_site — never\n" +
		"create_site for an existing customer.\n\n" +
		"Site ID | Customer\n---|---"
	return header + "\n" + strings.Join(lines, "\n")
}

// SiteRef is the minimal site projection the prompt needs.
type SiteRef struct {
	SiteID   string
	Customer string
}
