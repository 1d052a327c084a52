package validate

import (
	"testing"
	"time"

	"github.com/ergcontrols/sahabot/internal/registry"
)

var today = time.Date(2026, 8, 24, 14, 30, 0, 0, time.UTC)

func TestSiteIDFormat(t *testing.T) {
	valid := []string{"MIG-TR-01", "ASM-TR-01", "MCD-EG-12", "AB-TR-99"}
	for _, id := range valid {
		if r := SiteIDFormat(id); !r.Valid {
			t.Errorf("%q should be valid, got %v", id, r.Code)
		}
	}

	invalid := []string{"", "MIG-TR-1", "mig-tr-01", "MIGROS-TR-01", "MIG-TUR-01", "MIG_TR_01", "MIG-TR-01X", "A-TR-01"}
	for _, id := range invalid {
		r := SiteIDFormat(id)
		if r.Valid {
			t.Errorf("%q should be invalid", id)
		}
		if r.Code != CodeInvalidFormat {
			t.Errorf("%q: got code %v, want %v", id, r.Code, CodeInvalidFormat)
		}
	}
}

func TestDateFutureRejected(t *testing.T) {
	tomorrow := today.AddDate(0, 0, 1)
	r := Date(tomorrow, today, 90)
	if r.Valid {
		t.Fatal("tomorrow must be rejected")
	}
	if r.Code != CodeFutureDateRejected {
		t.Errorf("got code %v, want %v", r.Code, CodeFutureDateRejected)
	}

	// Today itself is fine, including when today carries a time component.
	if r := Date(today, today, 90); !r.Valid || r.Warning {
		t.Errorf("today should pass cleanly, got %+v", r)
	}
}

func TestDateStaleBoundary(t *testing.T) {
	// Exactly 90 days ago is not stale.
	at90 := today.AddDate(0, 0, -90)
	if r := Date(at90, today, 90); !r.Valid || r.Warning {
		t.Errorf("exactly 90 days should not warn, got %+v", r)
	}

	// 91 days ago is stale: a warning, never a rejection.
	at91 := today.AddDate(0, 0, -91)
	r := Date(at91, today, 90)
	if !r.Valid {
		t.Fatal("stale dates are warnings, not rejections")
	}
	if !r.Warning || r.Code != CodeStaleDateWarning {
		t.Errorf("91 days should warn stale, got %+v", r)
	}
}

func TestEnumCaseSensitive(t *testing.T) {
	if r := Enum("Visit", registry.SupportTypes); !r.Valid {
		t.Error("Visit is a valid support type")
	}
	r := Enum("visit", registry.SupportTypes)
	if r.Valid {
		t.Error("enum matching is case-sensitive")
	}
	if r.Code != CodeInvalidEnumValue {
		t.Errorf("got code %v, want %v", r.Code, CodeInvalidEnumValue)
	}
}

func TestQuantity(t *testing.T) {
	if r := Quantity(1); !r.Valid {
		t.Error("1 is positive")
	}
	for _, n := range []int{0, -3} {
		if r := Quantity(n); r.Valid || r.Code != CodeNonPositiveQuantity {
			t.Errorf("Quantity(%d) = %+v, want non-positive rejection", n, r)
		}
	}
}

func TestOrdering(t *testing.T) {
	received := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	if r := Ordering(received, received); !r.Valid {
		t.Error("same-day resolution is allowed")
	}
	if r := Ordering(received.AddDate(0, 0, 2), received); !r.Valid {
		t.Error("later resolution is allowed")
	}
	r := Ordering(received.AddDate(0, 0, -1), received)
	if r.Valid || r.Code != CodeResolvedBeforeReceived {
		t.Errorf("earlier resolution must be rejected, got %+v", r)
	}
}

func TestFieldDispatch(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   string
		wantOK  bool
		wantCode Code
	}{
		{"empty passes", "status", "", true, CodeOK},
		{"valid enum", "status", "Open", true, CodeOK},
		{"localized enum rejected", "status", "Açık", false, CodeInvalidEnumValue},
		{"valid site id", "site_id", "MIG-TR-01", true, CodeOK},
		{"bad site id", "site_id", "Migros", false, CodeInvalidFormat},
		{"future received date", "received_date", "2027-01-01", false, CodeFutureDateRejected},
		{"garbage date", "received_date", "yesterday", false, CodeUnparseableDate},
		{"future go-live allowed", "go_live_date", "2027-01-01", true, CodeOK},
		{"zero qty", "qty", "0", false, CodeNonPositiveQuantity},
		{"qty not a number", "qty", "many", false, CodeNonPositiveQuantity},
		{"free text untouched", "issue_summary", "dispenser arızalı", true, CodeOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Field(tt.field, tt.value, today, 90)
			if r.Valid != tt.wantOK {
				t.Errorf("valid = %v, want %v (%+v)", r.Valid, tt.wantOK, r)
			}
			if !tt.wantOK && r.Code != tt.wantCode {
				t.Errorf("code = %v, want %v", r.Code, tt.wantCode)
			}
		})
	}
}

func TestFieldStaleWarning(t *testing.T) {
	old := today.AddDate(0, 0, -120).Format("2006-01-02")
	r := Field("received_date", old, today, 90)
	if !r.Valid || !r.Warning || r.Code != CodeStaleDateWarning {
		t.Errorf("120-day-old date should warn, got %+v", r)
	}
}
