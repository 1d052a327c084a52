package convo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ergcontrols/sahabot/internal/classify"
	saherrors "github.com/ergcontrols/sahabot/internal/errors"
	"github.com/ergcontrols/sahabot/internal/format"
	"github.com/ergcontrols/sahabot/internal/resolver"
)

// answerQuery handles the read-only operations. Queries are transparent:
// whatever collection was in flight stays untouched and resumes on the
// next message.
func (c *Controller) answerQuery(ctx context.Context, state *State, res classify.Result) Reply {
	queryType := res.StringField("query_type")
	siteRef := res.StringField("site_id")
	if siteRef == "" {
		siteRef = res.StringField("customer")
	}
	if siteRef == "" {
		// Residual context: "what is open there?" after talking about a site.
		siteRef = state.Data.Get("site_id")
	}

	switch queryType {
	case "stock":
		return c.answerStockQuery(ctx, state, res.StringField("location"))
	case "open_issues":
		siteID, reply := c.resolveQuerySite(ctx, state, siteRef)
		if siteID == "" {
			return reply
		}
		return c.answerOpenIssues(ctx, state, siteID)
	case "site_summary", "":
		siteID, reply := c.resolveQuerySite(ctx, state, siteRef)
		if siteID == "" {
			return reply
		}
		return c.answerSiteSummary(ctx, state, siteID)
	default:
		return Reply{Text: format.ErrorMessage(state.Language, saherrors.InvalidModelOutput(
			fmt.Sprintf("unknown query type %q", queryType)))}
	}
}

func (c *Controller) resolveQuerySite(ctx context.Context, state *State, ref string) (string, Reply) {
	sites, err := c.wb.ReadSites(ctx)
	if err != nil {
		return "", Reply{Text: format.ErrorMessage(state.Language, saherrors.MapExternal(err))}
	}
	known := make([]resolver.Site, 0, len(sites))
	for _, s := range sites {
		known = append(known, resolver.Site{SiteID: s["site_id"], Customer: s["customer"]})
	}
	if ref == "" {
		return "", Reply{Text: format.UnknownSite(state.Language, "?", known)}
	}

	r := resolver.New(known, c.opts.Aliases, c.opts.FuzzyMinScore)
	switch res := r.Resolve(ref); res.Kind {
	case resolver.Exact:
		return res.Site.SiteID, Reply{}
	case resolver.Ambiguous:
		return "", Reply{Text: format.AmbiguousSite(state.Language, ref, res.Candidates)}
	default:
		return "", Reply{Text: format.UnknownSite(state.Language, ref, known)}
	}
}

func (c *Controller) answerOpenIssues(ctx context.Context, state *State, siteID string) Reply {
	open, err := c.wb.ListOpenTickets(ctx, siteID)
	if err != nil {
		return Reply{Text: format.ErrorMessage(state.Language, saherrors.MapExternal(err))}
	}

	if len(open) == 0 {
		return Reply{Text: fmt.Sprintf(pickLang(state.Language,
			"%s için açık kayıt yok. 🎉",
			"No open entries for %s. 🎉"), siteID)}
	}

	var b strings.Builder
	fmt.Fprintf(&b, pickLang(state.Language,
		"%s için %d açık kayıt var:\n",
		"%s has %d open entries:\n"), siteID, len(open))
	for _, row := range open {
		fmt.Fprintf(&b, "• %s [%s] %s", row["ticket_id"], row["status"], row["issue_summary"])
		if d := row["received_date"]; d != "" {
			fmt.Fprintf(&b, " (%s)", d)
		}
		b.WriteString("\n")
	}
	return Reply{Text: strings.TrimRight(b.String(), "\n")}
}

func (c *Controller) answerSiteSummary(ctx context.Context, state *State, siteID string) Reply {
	sites, err := c.wb.ReadSites(ctx)
	if err != nil {
		return Reply{Text: format.ErrorMessage(state.Language, saherrors.MapExternal(err))}
	}
	var site map[string]string
	for _, s := range sites {
		if strings.EqualFold(s["site_id"], siteID) {
			site = s
		}
	}
	if site == nil {
		return Reply{Text: format.ErrorMessage(state.Language, saherrors.ErrNotFound)}
	}

	open, _ := c.wb.ListOpenTickets(ctx, siteID)
	hardware, _ := c.wb.ReadHardware(ctx, siteID)
	devices := 0
	for _, row := range hardware {
		if n, err := strconv.Atoi(row["qty"]); err == nil {
			devices += n
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s — %s\n", site["site_id"], site["customer"])
	for _, field := range []string{"city", "country", "facility_type", "contract_status", "supervisor_1", "phone_1", "last_verified"} {
		if v := site[field]; v != "" {
			fmt.Fprintf(&b, "• %s: %s\n", format.FieldLabel(field, state.Language), v)
		}
	}
	fmt.Fprintf(&b, pickLang(state.Language,
		"• Açık kayıt: %d, toplam cihaz: %d",
		"• Open entries: %d, total devices: %d"), len(open), devices)
	return Reply{Text: b.String()}
}

func (c *Controller) answerStockQuery(ctx context.Context, state *State, location string) Reply {
	rows, err := c.wb.ReadStock(ctx, location)
	if err != nil {
		return Reply{Text: format.ErrorMessage(state.Language, saherrors.MapExternal(err))}
	}
	if len(rows) == 0 {
		return Reply{Text: pickLang(state.Language, "Stok kaydı bulunamadı.", "No stock entries found.")}
	}

	// Aggregate by location and device type; the raw ledger is noise here.
	type key struct{ location, device string }
	totals := make(map[key]int)
	var order []key
	for _, row := range rows {
		n, err := strconv.Atoi(row["qty"])
		if err != nil {
			continue
		}
		k := key{row["location"], row["device_type"]}
		if _, ok := totals[k]; !ok {
			order = append(order, k)
		}
		totals[k] += n
	}

	var b strings.Builder
	b.WriteString(pickLang(state.Language, "Stok durumu:\n", "Stock levels:\n"))
	for _, k := range order {
		fmt.Fprintf(&b, "• %s / %s: %d\n", k.location, k.device, totals[k])
	}
	return Reply{Text: strings.TrimRight(b.String(), "\n")}
}

func pickLang(lang, tr, en string) string {
	if strings.EqualFold(lang, "en") {
		return en
	}
	return tr
}
