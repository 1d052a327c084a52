// Package registry is the single source of truth for which fields each
// operation needs. The classifier also reports missing fields, but that
// signal is advisory: the controller always recomputes against this table.
package registry

import "log/slog"

// Operation identifies one recognized business operation.
type Operation string

const (
	OpLogSupport     Operation = "log_support"
	OpCreateSite     Operation = "create_site"
	OpUpdateSupport  Operation = "update_support"
	OpUpdateSite     Operation = "update_site"
	OpUpdateHardware Operation = "update_hardware"
	OpUpdateImpl     Operation = "update_implementation"
	OpUpdateStock    Operation = "update_stock"
	OpQuery          Operation = "query"
	OpHelp           Operation = "help"
	OpClarify        Operation = "clarify"
	OpNone           Operation = "none"
)

// Concrete reports whether op writes or reads domain data, as opposed to the
// transparent operations (query stays read-only but is still answered;
// clarify/help/none never touch accumulated state).
func (op Operation) Concrete() bool {
	switch op {
	case OpLogSupport, OpCreateSite, OpUpdateSupport, OpUpdateSite,
		OpUpdateHardware, OpUpdateImpl, OpUpdateStock:
		return true
	}
	return false
}

// Transparent reports whether op layers on top of existing conversation
// state without superseding it.
func (op Operation) Transparent() bool {
	return op == OpQuery || op == OpClarify || op == OpHelp
}

// Known reports whether op is part of the recognized vocabulary.
func (op Operation) Known() bool {
	return op.Concrete() || op.Transparent() || op == OpNone
}

// Enum vocabularies. Values are canonical English regardless of the
// conversation language; the spreadsheet columns are never localized.
var (
	SupportTypes    = []string{"Visit", "Remote", "Call"}
	SupportStatuses = []string{"Open", "Resolved", "Follow-up (ERG)", "Follow-up (Customer)", "Scheduled"}
	RootCauses      = []string{
		"HW Fault (Production)", "HW Fault (Customer)", "FW Bug", "Dashboard Bug",
		"Feature Request", "Configuration", "User Error", "Pending", "Other",
	}
	FacilityTypes    = []string{"Food", "Healthcare"}
	DeviceTypes      = []string{"Tag", "Anchor", "Gateway", "Charging Dock", "Power Bank", "Power Adapter", "USB Cable", "Other"}
	ContractStatuses = []string{"Active", "Pending", "Expired", "Pilot"}
	StockLocations   = []string{"Istanbul Office", "Adana Storage", "Other"}
	StockConditions  = []string{"New", "Refurbished", "Faulty", "Reserved"}
)

// vocabularies maps dropdown-backed field names to their allowed values.
var vocabularies = map[string][]string{
	"type":            SupportTypes,
	"status":          SupportStatuses,
	"root_cause":      RootCauses,
	"facility_type":   FacilityTypes,
	"device_type":     DeviceTypes,
	"contract_status": ContractStatuses,
	"location":        StockLocations,
	"condition":       StockConditions,
}

// Vocabulary returns the allowed values for a dropdown-backed field, or nil
// for free-text fields.
func Vocabulary(field string) []string {
	return vocabularies[field]
}

// Context carries the entity-level discriminators that bend the required
// set: the support status (Resolved demands resolution fields), the site's
// facility type (Food and Healthcare sites configure different
// implementation fields) and the device type (accessories have no HW/FW
// version). BulkEntries marks a hardware update that arrived as a list of
// per-device entries, which satisfies device_type and qty.
type Context struct {
	Status       string
	FacilityType string
	DeviceType   string
	BulkEntries  bool
}

// Requirements classifies an operation's fields by tier.
type Requirements struct {
	Must      []string
	Important []string
	Optional  []string
}

// requirement tables, one per operation. update_site and update_support
// only demand the row identity; pushing the full tab must-set onto partial
// updates blocked legitimate single-field edits.
var requirements = map[Operation]Requirements{
	OpLogSupport: {
		Must:      []string{"site_id", "received_date", "type", "status", "issue_summary", "responsible"},
		Important: []string{"devices_affected"},
		Optional:  []string{"root_cause", "resolution", "resolved_date"},
	},
	OpCreateSite: {
		Must:      []string{"customer", "city", "country", "facility_type", "contract_status", "supervisor_1", "phone_1"},
		Important: []string{"go_live_date", "address", "dashboard_link", "whatsapp_group"},
		Optional:  []string{"email_1", "supervisor_2", "phone_2", "email_2", "notes"},
	},
	OpUpdateSupport: {
		Must:      []string{"site_id"},
		Important: []string{"status", "root_cause", "resolution", "resolved_date"},
	},
	OpUpdateSite: {
		Must: []string{"site_id"},
	},
	OpUpdateHardware: {
		Must:      []string{"site_id", "device_type", "qty"},
		Important: []string{"hw_version", "fw_version"},
		Optional:  []string{"notes", "last_verified"},
	},
	OpUpdateImpl: {
		Must:      []string{"site_id", "internet_provider", "ssid"},
		Important: []string{"password", "gateway_placement", "charging_dock_placement", "dispenser_anchor_placement", "handwash_time"},
		Optional:  []string{"tag_buzzer_vibration", "entry_time", "dispenser_anchor_power_type", "other_details"},
	},
	OpUpdateStock: {
		Must:      []string{"location", "device_type", "qty", "condition"},
		Important: []string{"hw_version", "fw_version", "last_verified"},
		Optional:  []string{"reserved_for", "notes"},
	},
	OpQuery: {
		Must: []string{"query_type"},
	},
}

// statusConditionalMust lists extra must-fields for log_support keyed by
// support status. An Open ticket needs no root cause yet.
var statusConditionalMust = map[string][]string{
	"Resolved":             {"resolved_date", "resolution", "root_cause"},
	"Follow-up (ERG)":      {"root_cause"},
	"Follow-up (Customer)": {"root_cause"},
	"Scheduled":            {"root_cause"},
}

// facilityConditionalMust lists implementation fields that become mandatory
// for a given facility type.
var facilityConditionalMust = map[string][]string{
	"Food":       {"clean_hygiene_time", "hp_alert_time", "hand_hygiene_time", "hand_hygiene_interval", "hand_hygiene_type"},
	"Healthcare": {"tag_clean_to_red_timeout"},
}

// versionExemptDeviceTypes are accessories without meaningful HW/FW
// versions; hw_version/fw_version stop being suggested for them.
var versionExemptDeviceTypes = map[string]bool{
	"Charging Dock": true,
	"Power Bank":    true,
	"Power Adapter": true,
	"USB Cable":     true,
	"Other":         true,
}

// Required returns the full field classification for op under ctx. Unknown
// operations yield an empty must-set; a warning is logged because that
// usually means the classifier invented an operation name.
func Required(op Operation, ctx Context) Requirements {
	base, ok := requirements[op]
	if !ok {
		if op.Known() {
			return Requirements{}
		}
		slog.Warn("Unknown operation in requirements lookup", "operation", string(op))
		return Requirements{}
	}

	req := Requirements{
		Must:      append([]string(nil), base.Must...),
		Important: append([]string(nil), base.Important...),
		Optional:  append([]string(nil), base.Optional...),
	}

	if op == OpLogSupport {
		for _, f := range statusConditionalMust[ctx.Status] {
			req.Must = appendUnique(req.Must, f)
			req.Optional = remove(req.Optional, f)
		}
	}

	if op == OpUpdateImpl && ctx.FacilityType != "" {
		for _, f := range facilityConditionalMust[ctx.FacilityType] {
			req.Must = appendUnique(req.Must, f)
		}
	}

	if ctx.BulkEntries && op == OpUpdateHardware {
		req.Must = remove(req.Must, "device_type")
		req.Must = remove(req.Must, "qty")
	}

	return req
}

// Missing returns the must-tier fields of op not covered by present, in
// declaration order. present reports whether a field holds a non-empty
// value in the accumulated data.
func Missing(op Operation, ctx Context, present func(field string) bool) []string {
	req := Required(op, ctx)
	var missing []string
	for _, f := range req.Must {
		if !present(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// MissingImportant returns important-tier gaps; these never block a write,
// they are appended to prompts as suggestions.
func MissingImportant(op Operation, ctx Context, present func(field string) bool) []string {
	req := Required(op, ctx)
	var missing []string
	for _, f := range req.Important {
		if f == "hw_version" || f == "fw_version" {
			if versionExemptDeviceTypes[ctx.DeviceType] {
				continue
			}
		}
		if !present(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

func appendUnique(list []string, v string) []string {
	for _, e := range list {
		if e == v {
			return list
		}
	}
	return append(list, v)
}

func remove(list []string, v string) []string {
	out := list[:0]
	for _, e := range list {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}
