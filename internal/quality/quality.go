// Package quality scans the workbook for missing and stale data. It reuses
// the field requirement registry so the scan and the conversation flow can
// never disagree about what a complete record looks like.
package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/ergcontrols/sahabot/internal/registry"
	"github.com/ergcontrols/sahabot/internal/validate"
	"github.com/ergcontrols/sahabot/internal/workbook"
)

// Severity levels for findings.
const (
	SeverityMust      = "must"
	SeverityImportant = "important"
)

// Issue is one data-quality finding.
type Issue struct {
	SiteID   string
	Tab      string
	Field    string
	Detail   string
	Severity string
}

// Options tunes the scan thresholds.
type Options struct {
	// AgingDays flags unresolved support entries open longer than this.
	AgingDays int
	// StaleDays flags last_verified values older than this.
	StaleDays int
}

// Scanner walks the workbook tabs.
type Scanner struct {
	store workbook.Store
	opts  Options
}

func NewScanner(store workbook.Store, opts Options) *Scanner {
	if opts.AgingDays <= 0 {
		opts.AgingDays = 3
	}
	if opts.StaleDays <= 0 {
		opts.StaleDays = 30
	}
	return &Scanner{store: store, opts: opts}
}

// Report is the full scan result.
type Report struct {
	Missing []Issue
	Stale   []Issue
	// Filled and Total count must+important cells for the completeness
	// percentage in the weekly report.
	Filled int
	Total  int
}

// Completeness returns the filled percentage, 100 for an empty workbook.
func (r Report) Completeness() int {
	if r.Total == 0 {
		return 100
	}
	return r.Filled * 100 / r.Total
}

// Scan runs the full pass. siteID narrows the scan to one site; empty
// scans everything.
func (s *Scanner) Scan(ctx context.Context, siteID string, today time.Time) (Report, error) {
	var rep Report

	sites, err := s.store.ReadSites(ctx)
	if err != nil {
		return rep, err
	}
	support, err := s.store.ReadSupport(ctx, siteID)
	if err != nil {
		return rep, err
	}
	hardware, err := s.store.ReadHardware(ctx, siteID)
	if err != nil {
		return rep, err
	}
	implementation, err := s.store.ReadAllImplementation(ctx)
	if err != nil {
		return rep, err
	}
	stock, err := s.store.ReadStock(ctx, "")
	if err != nil {
		return rep, err
	}

	facility := make(map[string]string)
	for _, site := range sites {
		facility[site["site_id"]] = site["facility_type"]
	}

	s.scanSites(&rep, sites, siteID)
	s.scanSupport(&rep, support, today)
	s.scanHardware(&rep, hardware, today)
	s.scanImplementation(&rep, implementation, facility, siteID, today)
	s.scanStock(&rep, stock, today)
	s.scanCrossTab(&rep, sites, hardware, implementation, siteID)

	return rep, nil
}

func (s *Scanner) checkRow(rep *Report, row workbook.Row, req registry.Requirements, tab, label string) {
	for _, f := range req.Must {
		rep.Total++
		if row[f] != "" {
			rep.Filled++
			continue
		}
		rep.Missing = append(rep.Missing, Issue{
			SiteID: label, Tab: tab, Field: f,
			Detail: f + " is empty", Severity: SeverityMust,
		})
	}
	for _, f := range req.Important {
		rep.Total++
		if row[f] != "" {
			rep.Filled++
			continue
		}
		rep.Missing = append(rep.Missing, Issue{
			SiteID: label, Tab: tab, Field: f,
			Detail: f + " is empty", Severity: SeverityImportant,
		})
	}
}

func (s *Scanner) scanSites(rep *Report, sites []workbook.Row, siteID string) {
	req := registry.Required(registry.OpCreateSite, registry.Context{})
	for _, site := range sites {
		if siteID != "" && site["site_id"] != siteID {
			continue
		}
		s.checkRow(rep, site, req, "Sites", site["site_id"])
	}
}

func (s *Scanner) scanSupport(rep *Report, support []workbook.Row, today time.Time) {
	for _, entry := range support {
		status := entry["status"]
		label := entry["site_id"]
		ticket := entry["ticket_id"]

		// Conditional musts keyed by the entry's own status.
		req := registry.Required(registry.OpLogSupport, registry.Context{Status: status})
		for _, f := range []string{"root_cause", "resolution", "resolved_date"} {
			if !contains(req.Must, f) {
				continue
			}
			rep.Total++
			if v := entry[f]; v != "" && v != "Pending" {
				rep.Filled++
				continue
			}
			detail := fmt.Sprintf("%s: %s is empty", ticket, f)
			if entry[f] == "Pending" {
				detail = fmt.Sprintf("%s: root cause is still Pending", ticket)
			}
			rep.Missing = append(rep.Missing, Issue{
				SiteID: label, Tab: "Support Log", Field: f,
				Detail: detail, Severity: SeverityMust,
			})
		}

		// Aging: unresolved entries open too long.
		if status != "Resolved" && entry["received_date"] != "" {
			if received, err := validate.ParseDate(entry["received_date"]); err == nil {
				daysOpen := int(today.Sub(received).Hours() / 24)
				if daysOpen > s.opts.AgingDays {
					rep.Missing = append(rep.Missing, Issue{
						SiteID: label, Tab: "Support Log", Field: "aging",
						Detail:   fmt.Sprintf("%s: open for %d days (status: %s)", ticket, daysOpen, status),
						Severity: SeverityImportant,
					})
				}
			}
		}
	}
}

func (s *Scanner) scanHardware(rep *Report, hardware []workbook.Row, today time.Time) {
	for _, hw := range hardware {
		label := hw["site_id"]
		device := hw["device_type"]

		rctx := registry.Context{DeviceType: device}
		for _, f := range registry.MissingImportant(registry.OpUpdateHardware, rctx, func(field string) bool {
			return hw[field] != ""
		}) {
			if f != "hw_version" && f != "fw_version" {
				continue
			}
			rep.Total++
			rep.Missing = append(rep.Missing, Issue{
				SiteID: label, Tab: "Hardware Inventory", Field: f,
				Detail: fmt.Sprintf("%s: %s is empty", device, f), Severity: SeverityImportant,
			})
		}

		s.checkStaleness(rep, "Hardware Inventory", label, device, hw["last_verified"], today)
	}
}

func (s *Scanner) scanImplementation(rep *Report, implementation []workbook.Row, facility map[string]string, siteID string, today time.Time) {
	for _, impl := range implementation {
		sid := impl["site_id"]
		if siteID != "" && sid != siteID {
			continue
		}
		req := registry.Required(registry.OpUpdateImpl, registry.Context{FacilityType: facility[sid]})
		req.Must = remove(req.Must, "site_id")
		s.checkRow(rep, impl, req, "Implementation Details", sid)

		s.checkStaleness(rep, "Implementation Details", sid, "", impl["last_verified"], today)
	}
}

func (s *Scanner) scanStock(rep *Report, stock []workbook.Row, today time.Time) {
	req := registry.Required(registry.OpUpdateStock, registry.Context{})
	for _, item := range stock {
		label := item["location"] + "/" + item["device_type"]

		// hw/fw suggestions respect the accessory exemption here too.
		adjusted := req
		adjusted.Important = nil
		for _, f := range registry.MissingImportant(registry.OpUpdateStock,
			registry.Context{DeviceType: item["device_type"]},
			func(string) bool { return false }) {
			adjusted.Important = append(adjusted.Important, f)
		}

		s.checkRow(rep, item, adjusted, "Stock", label)
		s.checkStaleness(rep, "Stock", label, item["device_type"], item["last_verified"], today)
	}
}

func (s *Scanner) scanCrossTab(rep *Report, sites, hardware, implementation []workbook.Row, siteID string) {
	hwSites := make(map[string]bool)
	for _, hw := range hardware {
		hwSites[hw["site_id"]] = true
	}
	implSites := make(map[string]bool)
	for _, impl := range implementation {
		implSites[impl["site_id"]] = true
	}

	for _, site := range sites {
		sid := site["site_id"]
		if siteID != "" && sid != siteID {
			continue
		}
		if !hwSites[sid] {
			rep.Missing = append(rep.Missing, Issue{
				SiteID: sid, Tab: "Hardware Inventory", Field: "-",
				Detail: "no hardware records", Severity: SeverityImportant,
			})
		}
		if !implSites[sid] {
			rep.Missing = append(rep.Missing, Issue{
				SiteID: sid, Tab: "Implementation Details", Field: "-",
				Detail: "no implementation record", Severity: SeverityImportant,
			})
		}
	}
}

func (s *Scanner) checkStaleness(rep *Report, tab, label, device, lastVerified string, today time.Time) {
	prefix := ""
	if device != "" {
		prefix = device + ": "
	}

	if lastVerified == "" {
		rep.Stale = append(rep.Stale, Issue{
			SiteID: label, Tab: tab, Field: "last_verified",
			Detail: prefix + "never verified",
		})
		return
	}

	lv, err := validate.ParseDate(lastVerified)
	if err != nil {
		rep.Stale = append(rep.Stale, Issue{
			SiteID: label, Tab: tab, Field: "last_verified",
			Detail: fmt.Sprintf("%sinvalid last_verified (%s)", prefix, lastVerified),
		})
		return
	}

	daysOld := int(today.Sub(lv).Hours() / 24)
	if daysOld > s.opts.StaleDays {
		rep.Stale = append(rep.Stale, Issue{
			SiteID: label, Tab: tab, Field: "last_verified",
			Detail: fmt.Sprintf("%sverified %d days ago (%s)", prefix, daysOld, lastVerified),
		})
	}
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

func remove(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}
