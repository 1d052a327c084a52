// Package format renders every user-facing message in Turkish or English.
// The pipeline decides WHAT to say; this package decides how it reads.
// Language codes are "tr" (default) and "en"; anything else falls back
// to Turkish.
package format

import (
	"fmt"
	"strings"

	saherrors "github.com/ergcontrols/sahabot/internal/errors"
	"github.com/ergcontrols/sahabot/internal/registry"
	"github.com/ergcontrols/sahabot/internal/resolver"
)

func isEN(lang string) bool { return strings.EqualFold(lang, "en") }

// pick returns the Turkish or English variant.
func pick(lang, tr, en string) string {
	if isEN(lang) {
		return en
	}
	return tr
}

type label struct {
	tr, en string
}

// fieldLabels gives every workbook field a friendly bilingual name. Fields
// missing here render as their raw key.
var fieldLabels = map[string]label{
	"site_id":                  {"Saha Kodu", "Site ID"},
	"customer":                 {"Müşteri", "Customer"},
	"city":                     {"Şehir", "City"},
	"country":                  {"Ülke", "Country"},
	"facility_type":            {"Tesis Tipi", "Facility Type"},
	"contract_status":          {"Sözleşme Durumu", "Contract Status"},
	"supervisor_1":             {"Yetkili 1", "Supervisor 1"},
	"supervisor_2":             {"Yetkili 2", "Supervisor 2"},
	"phone_1":                  {"Telefon 1", "Phone 1"},
	"phone_2":                  {"Telefon 2", "Phone 2"},
	"go_live_date":             {"Devreye Alma Tarihi", "Go-Live Date"},
	"received_date":            {"Bildirim Tarihi", "Received Date"},
	"resolved_date":            {"Çözüm Tarihi", "Resolved Date"},
	"type":                     {"Destek Tipi", "Support Type"},
	"status":                   {"Durum", "Status"},
	"issue_summary":            {"Sorun Özeti", "Issue Summary"},
	"resolution":               {"Çözüm", "Resolution"},
	"root_cause":               {"Kök Neden", "Root Cause"},
	"responsible":              {"Sorumlu", "Responsible"},
	"device_type":              {"Cihaz Tipi", "Device Type"},
	"qty":                      {"Adet", "Quantity"},
	"hw_version":               {"Donanım Versiyonu", "HW Version"},
	"fw_version":               {"Yazılım Versiyonu", "FW Version"},
	"install_date":             {"Kurulum Tarihi", "Install Date"},
	"internet_provider":        {"İnternet Sağlayıcı", "Internet Provider"},
	"ssid":                     {"Wi-Fi Ağı (SSID)", "Wi-Fi Network (SSID)"},
	"location":                 {"Konum", "Location"},
	"condition":                {"Kondisyon", "Condition"},
	"last_verified":            {"Son Doğrulama", "Last Verified"},
	"query_type":               {"Sorgu Tipi", "Query Type"},
	"devices_affected":         {"Etkilenen Cihazlar", "Devices Affected"},
	"password":                 {"Wi-Fi Şifresi", "Wi-Fi Password"},
	"gateway_placement":        {"Gateway Konumu", "Gateway Placement"},
	"clean_hygiene_time":       {"Temiz Hijyen Süresi", "Clean Hygiene Time"},
	"hp_alert_time":            {"HP Uyarı Süresi", "HP Alert Time"},
	"hand_hygiene_time":        {"El Hijyeni Süresi", "Hand Hygiene Time"},
	"hand_hygiene_interval":    {"El Hijyeni Aralığı", "Hand Hygiene Interval"},
	"hand_hygiene_type":        {"El Hijyeni Tipi", "Hand Hygiene Type"},
	"tag_clean_to_red_timeout": {"Etiket Temiz→Kırmızı Süresi", "Tag Clean-to-Red Timeout"},
}

var opLabels = map[registry.Operation]label{
	registry.OpLogSupport:           {"destek kaydı", "support entry"},
	registry.OpCreateSite:           {"yeni saha kaydı", "new site"},
	registry.OpUpdateSupport:        {"destek güncellemesi", "support update"},
	registry.OpUpdateSite:           {"saha güncellemesi", "site update"},
	registry.OpUpdateHardware:       {"donanım kaydı", "hardware entry"},
	registry.OpUpdateImpl:     {"kurulum detayları", "implementation details"},
	registry.OpUpdateStock:          {"stok kaydı", "stock entry"},
	registry.OpQuery:                {"sorgu", "query"},
}

// FieldLabel returns the friendly name for a workbook field.
func FieldLabel(field, lang string) string {
	if l, ok := fieldLabels[field]; ok {
		return pick(lang, l.tr, l.en)
	}
	return field
}

// OpLabel returns the friendly name for an operation.
func OpLabel(op registry.Operation, lang string) string {
	if l, ok := opLabels[op]; ok {
		return pick(lang, l.tr, l.en)
	}
	return string(op)
}

// MissingPrompt renders the consolidated ask for missing fields: the must
// list first, then optional suggestions, with dropdown options inline for
// enum fields. One message per turn, never one question per field.
func MissingPrompt(lang string, op registry.Operation, must, important []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, pick(lang,
		"%s için şu bilgiler eksik:\n",
		"The following fields are needed for the %s:\n"), OpLabel(op, lang))

	for _, f := range must {
		b.WriteString("• " + FieldLabel(f, lang))
		if opts := registry.Vocabulary(f); len(opts) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(opts, " / "))
		}
		b.WriteString("\n")
	}

	if len(important) > 0 {
		b.WriteString(pick(lang,
			"\nİsterseniz şunları da ekleyebilirsiniz: ",
			"\nOptionally you can also add: "))
		parts := make([]string, len(important))
		for i, f := range important {
			parts[i] = FieldLabel(f, lang)
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// displayOrder keeps confirmation summaries stable and human-shaped.
var displayOrder = []string{
	"site_id", "customer", "city", "country", "facility_type",
	"contract_status", "supervisor_1", "phone_1", "supervisor_2", "phone_2",
	"go_live_date", "ticket_id", "received_date", "type", "status",
	"issue_summary", "resolution", "root_cause", "resolved_date",
	"responsible", "device_type", "qty", "hw_version", "fw_version",
	"install_date", "internet_provider", "ssid", "password",
	"gateway_placement", "clean_hygiene_time", "hp_alert_time",
	"hand_hygiene_time", "hand_hygiene_interval", "hand_hygiene_type",
	"tag_clean_to_red_timeout",
	"location", "condition", "last_verified",
}

func orderedKeys(fields map[string]string) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, k := range displayOrder {
		if _, ok := fields[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range fields {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	// Unknown keys go last, in insertion-independent order.
	for i := 0; i < len(rest); i++ {
		for j := i + 1; j < len(rest); j++ {
			if rest[j] < rest[i] {
				rest[i], rest[j] = rest[j], rest[i]
			}
		}
	}
	return append(keys, rest...)
}

// ConfirmationSummary renders the full read-back before a commit. Nothing
// is written until the user approves this exact snapshot.
func ConfirmationSummary(lang string, op registry.Operation, fields map[string]string, entries []map[string]string, warnings []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, pick(lang,
		"Şu %s kaydedilecek:\n",
		"About to record this %s:\n"), OpLabel(op, lang))

	for _, k := range orderedKeys(fields) {
		fmt.Fprintf(&b, "• %s: %s\n", FieldLabel(k, lang), fields[k])
	}

	for i, entry := range entries {
		fmt.Fprintf(&b, pick(lang, "— Kalem %d —\n", "— Entry %d —\n"), i+1)
		for _, k := range orderedKeys(entry) {
			fmt.Fprintf(&b, "• %s: %s\n", FieldLabel(k, lang), entry[k])
		}
	}

	for _, w := range warnings {
		b.WriteString("⚠️ " + w + "\n")
	}

	b.WriteString(pick(lang, "\nOnaylıyor musunuz?", "\nDo you confirm?"))
	return b.String()
}

// StaleDateWarning flags an old date without blocking the write. The
// threshold mirrors validation.stale_days.
func StaleDateWarning(lang, field, value string, staleDays int) string {
	return fmt.Sprintf(pick(lang,
		"%s (%s) %d günden eski, yine de kaydedilebilir.",
		"%s (%s) is older than %d days but can still be recorded."),
		FieldLabel(field, lang), value, staleDays)
}

// DuplicateWarning flags a likely duplicate support entry. The user can
// still confirm past it.
func DuplicateWarning(lang, ticketID, summary string) string {
	return fmt.Sprintf(pick(lang,
		"Bu kayıt %s ile çok benziyor (\"%s\"). Yine de eklemek için onaylayın.",
		"This looks very similar to %s (\"%s\"). Confirm to add it anyway."),
		ticketID, summary)
}

// Committed renders the post-commit acknowledgement with the ticket ID
// when one was assigned.
func Committed(lang string, op registry.Operation, ticketID string) string {
	if ticketID != "" {
		return fmt.Sprintf(pick(lang,
			"Kaydedildi ✅ (%s, bilet: %s)",
			"Recorded ✅ (%s, ticket: %s)"), OpLabel(op, lang), ticketID)
	}
	return fmt.Sprintf(pick(lang, "Kaydedildi ✅ (%s)", "Recorded ✅ (%s)"), OpLabel(op, lang))
}

// Cancelled acknowledges a user cancellation.
func Cancelled(lang string) string {
	return pick(lang, "İptal edildi, hiçbir şey kaydedilmedi.", "Cancelled, nothing was recorded.")
}

// NotInitiator explains the confirmation permission rule.
func NotInitiator(lang string) string {
	return pick(lang,
		"Bu kaydı yalnızca başlatan kişi onaylayabilir veya iptal edebilir.",
		"Only the person who started this entry can confirm or cancel it.")
}

// UnknownSite lists the known sites when a reference resolves to nothing.
func UnknownSite(lang, query string, sites []resolver.Site) string {
	var b strings.Builder
	fmt.Fprintf(&b, pick(lang,
		"\"%s\" için kayıtlı bir saha bulamadım. Bilinen sahalar:\n",
		"I could not find a site matching \"%s\". Known sites:\n"), query)
	for _, s := range sites {
		fmt.Fprintf(&b, "• %s — %s\n", s.SiteID, s.Customer)
	}
	b.WriteString(pick(lang,
		"Yeni bir saha ise önce \"yeni saha\" diyerek kaydedebilirsiniz.",
		"If this is a new site, say \"new site\" to create it first."))
	return b.String()
}

// AmbiguousSite asks the user to pick between matching sites.
func AmbiguousSite(lang, query string, candidates []resolver.Site) string {
	var b strings.Builder
	fmt.Fprintf(&b, pick(lang,
		"\"%s\" birden fazla sahayla eşleşiyor, hangisi?\n",
		"\"%s\" matches more than one site, which one?\n"), query)
	for _, s := range candidates {
		fmt.Fprintf(&b, "• %s — %s\n", s.SiteID, s.Customer)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FutureDateRejected is the hard stop for future dates.
func FutureDateRejected(lang, field, value string) string {
	return fmt.Sprintf(pick(lang,
		"%s olarak gelecekteki bir tarih (%s) kaydedilemez. Lütfen bugünü veya geçmiş bir tarihi verin.",
		"%s cannot be a future date (%s). Please give today or a past date."),
		FieldLabel(field, lang), value)
}

// ChainStepPrompt introduces the next step of a multi-operation chain.
func ChainStepPrompt(lang string, step, total int, op registry.Operation) string {
	return fmt.Sprintf(pick(lang,
		"Adım %d/%d: %s. Bilgileri yazabilir veya \"atla\" diyebilirsiniz.",
		"Step %d/%d: %s. Send the details or say \"skip\"."),
		step, total, OpLabel(op, lang))
}

// ChainStepHeader labels a chain step whose details arrived up front, so
// the follow-up prompt still shows where in the chain the user is.
func ChainStepHeader(lang string, step, total int, op registry.Operation) string {
	return fmt.Sprintf(pick(lang, "Adım %d/%d: %s.", "Step %d/%d: %s."),
		step, total, OpLabel(op, lang))
}

// ChainStepStatus is one line of the final rollup.
type ChainStepStatus struct {
	Op       registry.Operation
	Status   string // done, skipped, pending
	TicketID string
}

// ChainRollup summarizes a finished chain.
func ChainRollup(lang string, steps []ChainStepStatus) string {
	var b strings.Builder
	b.WriteString(pick(lang, "Zincir tamamlandı:\n", "Chain finished:\n"))
	for _, s := range steps {
		mark := "✅"
		note := ""
		switch s.Status {
		case "skipped":
			mark = "⏭️"
			note = pick(lang, " (atlandı)", " (skipped)")
		case "pending":
			mark = "⏳"
			note = pick(lang, " (bekliyor)", " (pending)")
		}
		fmt.Fprintf(&b, "%s %s%s", mark, OpLabel(s.Op, lang), note)
		if s.TicketID != "" {
			fmt.Fprintf(&b, " — %s", s.TicketID)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// StockSideQuestion follows a replacement-flavored hardware or support
// commit: the swapped part probably came out of somewhere.
func StockSideQuestion(lang string) string {
	return pick(lang,
		"Değişen parça stoktan mı çıktı? Konum ve adet yazarsanız stok kaydını da düşeyim, ilgisi yoksa \"yok\" deyin.",
		"Did the replaced part come from stock? Tell me the location and quantity and I will log the stock movement, or say \"no\".")
}

// FeedbackPrompt invites the thumbs after a terminal outcome.
func FeedbackPrompt(lang string) string {
	return pick(lang,
		"Yanıt doğru muydu? 👍 / 👎",
		"Was this handled correctly? 👍 / 👎")
}

// FeedbackFollowUp asks what should have happened after a 👎.
func FeedbackFollowUp(lang string) string {
	return pick(lang,
		"Ne olması gerekiyordu? Kısaca yazarsanız kaydedeyim.",
		"What should have happened? A short note and I will record it.")
}

// FeedbackThanks closes the loop.
func FeedbackThanks(lang string) string {
	return pick(lang, "Teşekkürler, not aldım. 🙏", "Thanks, noted. 🙏")
}

// Greeting answers a bare hello without burning a classifier call.
func Greeting(lang, name string) string {
	if name != "" {
		return fmt.Sprintf(pick(lang,
			"Merhaba %s! Saha işlemleri için buradayım. \"yardım\" yazarsanız neler yapabildiğimi anlatırım.",
			"Hi %s! I handle field operations. Say \"help\" to see what I can do."), name)
	}
	return pick(lang,
		"Merhaba! Saha işlemleri için buradayım. \"yardım\" yazarsanız neler yapabildiğimi anlatırım.",
		"Hi! I handle field operations. Say \"help\" to see what I can do.")
}

// Help is the full capability rundown.
func Help(lang string) string {
	if isEN(lang) {
		return strings.Join([]string{
			"I keep the field-operations workbook up to date. You can:",
			"• Log a support visit: \"visited Migros today, gateway was offline, restarted it\"",
			"• Create a new site: \"new site: Carrefour Ankara, food facility\"",
			"• Update an open ticket: \"the Migros issue is resolved, root cause was a faulty antenna\"",
			"• Record hardware: \"installed 12 dispensers and 1 gateway at MIG-TR-01\"",
			"• Record implementation details, stock movements, and site info updates",
			"• Ask questions: \"what is open at Migros?\", \"office stock?\"",
			"I will ask for anything missing and always show a summary before writing.",
		}, "\n")
	}
	return strings.Join([]string{
		"Saha operasyonları dosyasını güncel tutuyorum. Yapabildikleriniz:",
		"• Destek ziyareti kaydı: \"bugün Migros'a gittim, gateway kapalıydı, yeniden başlattım\"",
		"• Yeni saha: \"yeni saha: Carrefour Ankara, gıda tesisi\"",
		"• Açık kaydı güncelleme: \"Migros sorunu çözüldü, kök neden anten arızasıydı\"",
		"• Donanım kaydı: \"MIG-TR-01'e 12 dispenser ve 1 gateway kurduk\"",
		"• Kurulum detayları, stok hareketleri ve saha bilgisi güncellemeleri",
		"• Sorular: \"Migros'ta açık ne var?\", \"ofis stoğu?\"",
		"Eksik bilgileri sorarım ve yazmadan önce mutlaka özet gösteririm.",
	}, "\n")
}

// ErrorMessage maps the error taxonomy to a user-facing line. Internal
// details stay in the logs.
func ErrorMessage(lang string, err error) string {
	switch {
	case saherrors.IsCategory(err, saherrors.ErrClassifierUnavailable):
		return pick(lang,
			"Şu anda mesajınızı işleyemiyorum, lütfen birazdan tekrar deneyin.",
			"I cannot process messages right now, please try again shortly.")
	case saherrors.IsCategory(err, saherrors.ErrInvalidModelOutput):
		return pick(lang,
			"Mesajınızı anlayamadım, biraz farklı ifade edebilir misiniz?",
			"I could not understand that, could you phrase it differently?")
	case saherrors.IsCategory(err, saherrors.ErrPermissionDenied):
		return NotInitiator(lang)
	case saherrors.IsCategory(err, saherrors.ErrNotFound):
		return pick(lang,
			"Aradığınız kaydı bulamadım.",
			"I could not find that record.")
	case saherrors.IsCategory(err, saherrors.ErrInvalidInput):
		return pick(lang,
			"Girdiğiniz bilgide bir sorun var: ", "There is a problem with the input: ") + err.Error()
	case saherrors.IsCategory(err, saherrors.ErrTransient):
		return pick(lang,
			"Geçici bir sorun oluştu, lütfen tekrar deneyin.",
			"A temporary problem occurred, please try again.")
	default:
		return pick(lang,
			"Beklenmedik bir hata oluştu, ekip bilgilendirildi.",
			"Something unexpected went wrong, the team has been notified.")
	}
}
