package convo

import "github.com/ergcontrols/sahabot/internal/classify"

// mergeClassified folds a classifier result into the accumulated data.
// Scalars override on conflict (the newest message wins), the bulk entries
// list replaces wholesale: partial list edits are not inferable from free
// text, so a re-statement is treated as the full new list.
func mergeClassified(data *FieldMap, res classify.Result) {
	mergeData(data, res.Data)
}

// mergeData folds a raw key/value map into the accumulated data. Chain
// step seeds reuse this so fields stated up front survive into their step.
func mergeData(data *FieldMap, raw map[string]any) {
	for key, value := range raw {
		if key == "entries" {
			if entries := toEntries(value); entries != nil {
				data.Entries = entries
			}
			continue
		}
		if v := classify.Coerce(value); v != "" {
			data.Set(key, v)
		}
	}
}

// toEntries converts the classifier's raw entries list into typed rows.
func toEntries(raw any) []map[string]string {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []map[string]string
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		entry := make(map[string]string, len(m))
		for k, v := range m {
			if s := classify.Coerce(v); s != "" {
				entry[k] = s
			}
		}
		if len(entry) > 0 {
			out = append(out, entry)
		}
	}
	return out
}
