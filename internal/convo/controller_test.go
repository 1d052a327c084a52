package convo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ergcontrols/sahabot/internal/audit"
	"github.com/ergcontrols/sahabot/internal/classify"
	"github.com/ergcontrols/sahabot/internal/executor"
	"github.com/ergcontrols/sahabot/internal/idempotency"
	"github.com/ergcontrols/sahabot/internal/registry"
	"github.com/ergcontrols/sahabot/internal/workbook"
)

var testNow = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

// scriptedClassifier returns queued results in order and repeats the last
// one when the queue runs dry.
type scriptedClassifier struct {
	results []classify.Result
	calls   int
}

func (s *scriptedClassifier) Classify(ctx context.Context, req classify.Request) (classify.Result, error) {
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	if i < 0 {
		return classify.Result{Operation: registry.OpClarify, Language: "tr"}, nil
	}
	return s.results[i], nil
}

type harness struct {
	ctrl       *Controller
	wb         workbook.Store
	classifier *scriptedClassifier
	tokens     int
}

func newHarness(t *testing.T, results ...classify.Result) *harness {
	t.Helper()

	wb, err := workbook.NewFileStore(filepath.Join(t.TempDir(), "workbook.json"), workbook.FileOptions{})
	require.NoError(t, err)
	require.NoError(t, wb.CreateSite(context.Background(), workbook.Row{
		"site_id": "MIG-TR-01", "customer": "Migros", "facility_type": "Food",
	}))
	require.NoError(t, wb.CreateSite(context.Background(), workbook.Row{
		"site_id": "ASM-TR-01", "customer": "Anadolu Sağlık", "facility_type": "Healthcare",
	}))

	dedup, err := idempotency.NewStore("")
	require.NoError(t, err)

	classifier := &scriptedClassifier{results: results}
	ctrl := NewController(
		classifier,
		NewStore(time.Hour),
		wb,
		executor.New(wb, audit.LogSink{}),
		dedup,
		Options{Now: func() time.Time { return testNow }},
	)
	return &harness{ctrl: ctrl, wb: wb, classifier: classifier}
}

func (h *harness) send(text string) Reply {
	return h.sendAs("U1", "Batu", text)
}

func (h *harness) sendAs(actor, name, text string) Reply {
	h.tokens++
	return h.ctrl.HandleTurn(context.Background(), Incoming{
		ConversationID: "C1",
		ActorID:        actor,
		SenderName:     name,
		Text:           text,
		DedupToken:     fmt.Sprintf("tok-%d", h.tokens),
	})
}

func (h *harness) act(actor string, kind ActionKind) Reply {
	h.tokens++
	return h.ctrl.HandleAction(context.Background(), Action{
		Kind:           kind,
		ConversationID: "C1",
		ActorID:        actor,
		SenderName:     "Batu",
		DedupToken:     fmt.Sprintf("tok-%d", h.tokens),
	})
}

func logSupportResult(data map[string]any) classify.Result {
	return classify.Result{Operation: registry.OpLogSupport, Data: data, Language: "tr"}
}

func TestGreetingShortCircuitsClassifier(t *testing.T) {
	h := newHarness(t)

	reply := h.send("merhaba")
	assert.Contains(t, reply.Text, "Merhaba")
	assert.Equal(t, 0, h.classifier.calls)
}

func TestTwoTurnMergeAndRegistryRecompute(t *testing.T) {
	h := newHarness(t,
		// The model underreports missing fields; the registry must win.
		classify.Result{
			Operation:        registry.OpLogSupport,
			Data:             map[string]any{"site_id": "MIG-TR-01", "issue_summary": "gateway offline"},
			MissingSuggested: []string{"status"},
			Language:         "tr",
		},
		logSupportResult(map[string]any{
			"received_date": "2026-08-23", "type": "Visit", "status": "Open", "responsible": "Batu",
		}),
	)

	reply := h.send("migros gateway düştü")
	// All registry musts are asked, not just the model's guess.
	assert.Contains(t, reply.Text, "Bildirim Tarihi")
	assert.Contains(t, reply.Text, "Sorumlu")
	assert.False(t, reply.OfferConfirm)

	reply = h.send("dün ziyaret ettim, açık durumda, sorumlu benim")
	assert.True(t, reply.OfferConfirm, "all musts satisfied after merge:\n%s", reply.Text)
	assert.Contains(t, reply.Text, "MIG-TR-01")
	assert.Contains(t, reply.Text, "gateway offline")
}

func TestConfirmCommitsAndAssignsTicket(t *testing.T) {
	h := newHarness(t, logSupportResult(map[string]any{
		"site_id": "MIG-TR-01", "received_date": "2026-08-23", "type": "Visit",
		"status": "Open", "issue_summary": "gateway offline", "responsible": "Batu",
	}))

	reply := h.send("migros gateway düştü, dün gittim")
	require.True(t, reply.OfferConfirm)

	reply = h.act("U1", ActionConfirm)
	assert.Contains(t, reply.Text, "SUP-001")
	assert.True(t, reply.OfferFeedback)

	rows, err := h.wb.ReadSupport(context.Background(), "MIG-TR-01")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Open", rows[0]["status"])
}

func TestConfirmPermissionGate(t *testing.T) {
	h := newHarness(t, logSupportResult(map[string]any{
		"site_id": "MIG-TR-01", "received_date": "2026-08-23", "type": "Visit",
		"status": "Open", "issue_summary": "gateway offline", "responsible": "Batu",
	}))

	require.True(t, h.send("migros gateway düştü").OfferConfirm)

	reply := h.act("U2", ActionConfirm)
	assert.Contains(t, reply.Text, "başlatan kişi")

	rows, err := h.wb.ReadSupport(context.Background(), "MIG-TR-01")
	require.NoError(t, err)
	assert.Empty(t, rows, "nothing may be written on a stranger's confirm")

	// The initiator can still confirm afterwards.
	reply = h.act("U1", ActionConfirm)
	assert.Contains(t, reply.Text, "SUP-001")
}

func TestCancelPermissionGateMidCollection(t *testing.T) {
	h := newHarness(t, logSupportResult(map[string]any{
		"site_id": "MIG-TR-01", "issue_summary": "gateway offline",
	}))

	reply := h.send("migros gateway düştü")
	require.False(t, reply.OfferConfirm, "still collecting")

	// A stranger's cancel must not wipe the initiator's collection.
	reply = h.act("U2", ActionCancel)
	assert.Contains(t, reply.Text, "başlatan kişi")

	state := h.ctrl.convs.Acquire("C1", "U1", "Batu")
	assert.Equal(t, registry.OpLogSupport, state.Operation)
	assert.Equal(t, "gateway offline", state.Data.Get("issue_summary"))
	h.ctrl.convs.Release("C1")

	// The initiator can still cancel afterwards.
	reply = h.act("U1", ActionCancel)
	assert.Contains(t, reply.Text, "İptal")
}

func TestTextualConfirmWorks(t *testing.T) {
	h := newHarness(t, logSupportResult(map[string]any{
		"site_id": "MIG-TR-01", "received_date": "2026-08-23", "type": "Visit",
		"status": "Open", "issue_summary": "gateway offline", "responsible": "Batu",
	}))

	require.True(t, h.send("migros gateway düştü").OfferConfirm)
	reply := h.send("evet")
	assert.Contains(t, reply.Text, "SUP-001")
	assert.Equal(t, 1, h.classifier.calls, "confirmation words bypass the classifier")
}

func TestDuplicateDeliveryReturnsCachedReply(t *testing.T) {
	h := newHarness(t, logSupportResult(map[string]any{
		"site_id": "MIG-TR-01", "received_date": "2026-08-23", "type": "Visit",
		"status": "Open", "issue_summary": "gateway offline", "responsible": "Batu",
	}))

	h.send("migros gateway düştü")
	first := h.act("U1", ActionConfirm)

	// Same dedup token delivered again: no second write, same reply.
	dup := h.ctrl.HandleAction(context.Background(), Action{
		Kind: ActionConfirm, ConversationID: "C1", ActorID: "U1",
		DedupToken: fmt.Sprintf("tok-%d", h.tokens),
	})
	assert.Equal(t, first.Text, dup.Text)

	rows, err := h.wb.ReadSupport(context.Background(), "MIG-TR-01")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "exactly one workbook row despite redelivery")
}

func TestQueryIsTransparentToCollection(t *testing.T) {
	h := newHarness(t,
		logSupportResult(map[string]any{"site_id": "MIG-TR-01", "issue_summary": "gateway offline"}),
		classify.Result{Operation: registry.OpQuery, Data: map[string]any{"query_type": "open_issues", "site_id": "ASM-TR-01"}, Language: "tr"},
		logSupportResult(map[string]any{
			"received_date": "2026-08-23", "type": "Visit", "status": "Open", "responsible": "Batu",
		}),
	)

	h.send("migros gateway düştü")
	reply := h.send("bu arada anadolu'da açık ne var?")
	assert.Contains(t, reply.Text, "ASM-TR-01")

	// The interrupted collection resumes with its data intact.
	reply = h.send("dün gittim, açık, sorumlu benim")
	assert.True(t, reply.OfferConfirm)
	assert.Contains(t, reply.Text, "gateway offline")
}

func TestFutureDateHardRejected(t *testing.T) {
	h := newHarness(t, logSupportResult(map[string]any{
		"site_id": "MIG-TR-01", "received_date": "2026-08-25", "type": "Visit",
		"status": "Open", "issue_summary": "planlı ziyaret", "responsible": "Batu",
	}))

	reply := h.send("yarın migros'a gideceğim")
	assert.Contains(t, reply.Text, "2026-08-25")
	assert.False(t, reply.OfferConfirm, "future dates never reach confirmation")

	rows, err := h.wb.ReadSupport(context.Background(), "MIG-TR-01")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStaleDateWarnsButDoesNotBlock(t *testing.T) {
	h := newHarness(t, logSupportResult(map[string]any{
		"site_id": "MIG-TR-01", "received_date": "2026-01-10", "type": "Visit",
		"status": "Open", "issue_summary": "eski ziyaret", "responsible": "Batu",
	}))

	reply := h.send("ocakta gitmiştim")
	assert.True(t, reply.OfferConfirm)
	assert.Contains(t, reply.Text, "⚠️")
}

func TestInvalidEnumClearedAndReasked(t *testing.T) {
	h := newHarness(t,
		logSupportResult(map[string]any{
			"site_id": "MIG-TR-01", "received_date": "2026-08-23", "type": "Ziyaret",
			"status": "Open", "issue_summary": "x", "responsible": "Batu",
		}),
		logSupportResult(map[string]any{"type": "Visit"}),
	)

	reply := h.send("migros ziyareti")
	assert.False(t, reply.OfferConfirm)
	assert.Contains(t, reply.Text, "Ziyaret", "the rejected value is named")

	reply = h.send("Visit olacak")
	assert.True(t, reply.OfferConfirm)
}

func TestConditionalMustResolvedStatus(t *testing.T) {
	h := newHarness(t, logSupportResult(map[string]any{
		"site_id": "MIG-TR-01", "received_date": "2026-08-23", "type": "Visit",
		"status": "Resolved", "issue_summary": "gateway offline", "responsible": "Batu",
	}))

	reply := h.send("migros sorununu çözdüm")
	assert.False(t, reply.OfferConfirm)
	assert.Contains(t, reply.Text, "Çözüm Tarihi")
	assert.Contains(t, reply.Text, "Kök Neden")
}

func TestUnknownSiteListsKnownOnes(t *testing.T) {
	h := newHarness(t, logSupportResult(map[string]any{
		"site_id": "Karrefur Ankara", "issue_summary": "x",
	}))

	reply := h.send("karrefur ankara'da sorun var")
	assert.Contains(t, reply.Text, "MIG-TR-01")
	assert.Contains(t, reply.Text, "yeni saha")
}

func TestAmbiguousCustomerAsksForDisambiguation(t *testing.T) {
	h := newHarness(t, logSupportResult(map[string]any{
		"site_id": "Migros", "issue_summary": "gateway down",
	}))

	ctx := context.Background()
	require.NoError(t, h.wb.CreateSite(ctx, workbook.Row{"site_id": "MIG-TR-02", "customer": "Migros"}))

	reply := h.send("migros'ta sorun var")
	assert.Contains(t, reply.Text, "MIG-TR-01")
	assert.Contains(t, reply.Text, "MIG-TR-02")
	assert.False(t, reply.OfferConfirm)
}

func TestResidualSiteAfterCommit(t *testing.T) {
	h := newHarness(t,
		logSupportResult(map[string]any{
			"site_id": "MIG-TR-01", "received_date": "2026-08-23", "type": "Visit",
			"status": "Open", "issue_summary": "gateway offline", "responsible": "Batu",
		}),
		// Follow-up mentions no site at all.
		classify.Result{Operation: registry.OpUpdateHardware, Data: map[string]any{
			"device_type": "Gateway", "qty": "1",
		}, Language: "tr"},
	)

	h.send("migros gateway düştü")
	h.act("U1", ActionConfirm)

	reply := h.send("oraya bir gateway de taktık")
	assert.True(t, reply.OfferConfirm, "site survives as residual context:\n%s", reply.Text)
	assert.Contains(t, reply.Text, "MIG-TR-01")
}

func TestDuplicateGuardWarnsThenOverrides(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, logSupportResult(map[string]any{
		"site_id": "MIG-TR-01", "received_date": "2026-08-23", "type": "Visit",
		"status": "Open", "issue_summary": "gateway offline again", "responsible": "Batu",
	}))

	_, err := h.wb.AppendSupport(ctx, workbook.Row{
		"site_id": "MIG-TR-01", "status": "Open", "issue_summary": "gateway offline",
	})
	require.NoError(t, err)

	reply := h.send("migros gateway yine düştü")
	assert.True(t, reply.OfferConfirm)
	assert.Contains(t, reply.Text, "SUP-001", "the similar ticket is named in the warning")

	// Confirming past the warning writes anyway.
	reply = h.act("U1", ActionConfirm)
	assert.Contains(t, reply.Text, "SUP-002")
}

func TestCancelWritesNothing(t *testing.T) {
	h := newHarness(t, logSupportResult(map[string]any{
		"site_id": "MIG-TR-01", "received_date": "2026-08-23", "type": "Visit",
		"status": "Open", "issue_summary": "gateway offline", "responsible": "Batu",
	}))

	h.send("migros gateway düştü")
	reply := h.act("U1", ActionCancel)
	assert.Contains(t, reply.Text, "İptal")

	rows, err := h.wb.ReadSupport(context.Background(), "MIG-TR-01")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCreateSiteChainFlow(t *testing.T) {
	h := newHarness(t,
		classify.Result{Operation: registry.OpCreateSite, Data: map[string]any{
			"customer": "Carrefour", "city": "Ankara", "country": "Turkey",
			"facility_type": "Food", "contract_status": "Active",
			"supervisor_1": "Demir", "phone_1": "+90 555 111",
		}, Language: "tr"},
		classify.Result{Operation: registry.OpUpdateHardware, Data: map[string]any{
			"entries": []any{
				map[string]any{"device_type": "Gateway", "qty": float64(1)},
				map[string]any{"device_type": "Tag", "qty": float64(25)},
			},
		}, Language: "tr"},
	)

	reply := h.send("yeni saha: Carrefour Ankara, gıda, aktif sözleşme, yetkili Demir +90 555 111")
	require.True(t, reply.OfferConfirm, "create_site complete, expect confirmation:\n%s", reply.Text)

	// Confirm step 1: site is created, chain moves to hardware.
	reply = h.act("U1", ActionConfirm)
	assert.Contains(t, reply.Text, "Adım 2/3")

	sites, err := h.wb.ReadSites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 3)
	assert.Equal(t, "CAR-TR-01", sites[2]["site_id"], "site ID generated from customer+country")

	// Bulk entries satisfy device_type/qty.
	reply = h.send("1 gateway, 25 tag")
	require.True(t, reply.OfferConfirm, "bulk entries satisfy hardware musts:\n%s", reply.Text)
	assert.Contains(t, reply.Text, "Tag")

	reply = h.act("U1", ActionConfirm)
	assert.Contains(t, reply.Text, "Adım 3/3")

	// Skip the implementation step; the rollup closes the chain.
	reply = h.send("atla")
	assert.Contains(t, reply.Text, "✅")
	assert.Contains(t, reply.Text, "atlandı")
	assert.True(t, reply.OfferFeedback)

	hardware, err := h.wb.ReadHardware(context.Background(), "CAR-TR-01")
	require.NoError(t, err)
	assert.Len(t, hardware, 2, "both bulk rows landed with the generated site ID")
}

func TestChainStepSeededFromBundledMessage(t *testing.T) {
	h := newHarness(t, classify.Result{
		Operation: registry.OpCreateSite,
		Data: map[string]any{
			"customer": "Carrefour", "city": "Ankara", "country": "Turkey",
			"facility_type": "Food", "contract_status": "Active",
			"supervisor_1": "Demir", "phone_1": "+90 555 111",
		},
		ChainExtension: []classify.ExtraOperation{
			{Operation: registry.OpUpdateHardware, Data: map[string]any{
				"entries": []any{
					map[string]any{"device_type": "Gateway", "qty": float64(1)},
					map[string]any{"device_type": "Tag", "qty": float64(25)},
				},
			}},
		},
		Language: "tr",
	})

	reply := h.send("yeni saha Carrefour Ankara, 1 gateway ve 25 tag ile")
	require.True(t, reply.OfferConfirm)

	// The hardware step opens pre-filled from the first message, so it
	// goes straight to its confirmation instead of re-asking the devices.
	reply = h.act("U1", ActionConfirm)
	assert.Contains(t, reply.Text, "Adım 2/3")
	assert.True(t, reply.OfferConfirm, "seeded step must not re-ask stated fields:\n%s", reply.Text)
	assert.Contains(t, reply.Text, "Tag")

	reply = h.act("U1", ActionConfirm)
	assert.Contains(t, reply.Text, "Adım 3/3")

	hardware, err := h.wb.ReadHardware(context.Background(), "CAR-TR-01")
	require.NoError(t, err)
	assert.Len(t, hardware, 2)
}

func TestExtensionChainsOnNonSitePrimary(t *testing.T) {
	h := newHarness(t, classify.Result{
		Operation: registry.OpLogSupport,
		Data: map[string]any{
			"site_id": "MIG-TR-01", "received_date": "2026-08-23", "type": "Visit",
			"status": "Open", "issue_summary": "gateway arızası", "responsible": "Batu",
		},
		ChainExtension: []classify.ExtraOperation{
			{Operation: registry.OpUpdateHardware, Data: map[string]any{
				"device_type": "Gateway", "qty": "1",
			}},
		},
		Language: "tr",
	})

	reply := h.send("migros'ta gateway arızası, yenisini de taktık")
	require.True(t, reply.OfferConfirm)

	reply = h.act("U1", ActionConfirm)
	assert.Contains(t, reply.Text, "Adım 2/2")
	assert.True(t, reply.OfferConfirm, "seeded hardware step is complete:\n%s", reply.Text)

	reply = h.act("U1", ActionConfirm)
	assert.True(t, reply.OfferFeedback)

	hardware, err := h.wb.ReadHardware(context.Background(), "MIG-TR-01")
	require.NoError(t, err)
	require.Len(t, hardware, 1)
	assert.Equal(t, "Gateway", hardware[0]["device_type"])
}

func TestClassifierFutureFlagStopsBeforeMerge(t *testing.T) {
	h := newHarness(t, classify.Result{
		Operation: registry.OpLogSupport,
		Data: map[string]any{
			"site_id": "MIG-TR-01", "received_date": "2026-08-30", "issue_summary": "planlı ziyaret",
		},
		BlockingError: classify.BlockingFutureDate,
		Language:      "tr",
	})

	reply := h.send("haftaya migros'a gideceğim")
	assert.Contains(t, reply.Text, "2026-08-30")
	assert.False(t, reply.OfferConfirm)

	// The flagged snapshot never entered the conversation state.
	state := h.ctrl.convs.Acquire("C1", "U1", "Batu")
	assert.Empty(t, state.Data.Get("received_date"))
	assert.Empty(t, state.Data.Get("issue_summary"))
	h.ctrl.convs.Release("C1")
}

func TestOperationSupersedesButKeepsSite(t *testing.T) {
	h := newHarness(t,
		logSupportResult(map[string]any{"site_id": "MIG-TR-01", "issue_summary": "gateway offline"}),
		classify.Result{Operation: registry.OpUpdateStock, Data: map[string]any{
			"location": "Istanbul Office", "device_type": "Tag", "qty": "5", "condition": "New",
		}, Language: "tr"},
	)

	h.send("migros gateway düştü")
	reply := h.send("boşver, ofise 5 yeni tag geldi onu gir")
	assert.True(t, reply.OfferConfirm)
	assert.Contains(t, reply.Text, "Istanbul Office")
	assert.NotContains(t, reply.Text, "gateway offline", "old collection superseded")
}

func TestFeedbackDownCollectsNote(t *testing.T) {
	h := newHarness(t, logSupportResult(map[string]any{
		"site_id": "MIG-TR-01", "received_date": "2026-08-23", "type": "Visit",
		"status": "Open", "issue_summary": "gateway offline", "responsible": "Batu",
	}))

	h.send("migros gateway düştü")
	h.act("U1", ActionConfirm)

	reply := h.act("U1", ActionFeedbackDown)
	assert.Contains(t, reply.Text, "Ne olması gerekiyordu")

	reply = h.send("destek güncellemesi olmalıydı")
	assert.Contains(t, reply.Text, "Teşekkürler")
	assert.Equal(t, 1, h.classifier.calls, "the note is recorded, not classified")
}

func TestStockSideQuestionAfterReplacement(t *testing.T) {
	h := newHarness(t,
		logSupportResult(map[string]any{
			"site_id": "MIG-TR-01", "received_date": "2026-08-23", "type": "Visit",
			"status": "Resolved", "resolved_date": "2026-08-23",
			"resolution": "gateway yenisiyle değişti", "root_cause": "HW Fault (Customer)",
			"issue_summary": "gateway arızası", "responsible": "Batu",
		}),
		classify.Result{Operation: registry.OpUpdateStock, Data: map[string]any{
			"location": "Istanbul Office", "device_type": "Gateway", "qty": "1", "condition": "Faulty",
		}, Language: "tr"},
	)

	reply := h.send("migros'ta gateway yenisiyle değişti, sorun çözüldü")
	require.True(t, reply.OfferConfirm)

	reply = h.act("U1", ActionConfirm)
	assert.Contains(t, reply.Text, "stok", "replacement triggers the stock side-question")

	reply = h.send("evet ofisten çıktı, arızalı olan geri geldi")
	assert.True(t, reply.OfferConfirm)
	assert.Contains(t, reply.Text, "Faulty")
}
