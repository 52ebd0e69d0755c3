package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/grupovorp/adpilot/internal/facebook"
)

type fakeActivityClient struct {
	activities []facebook.Activity
	actErr     error
	campaigns  []facebook.Campaign
}

func (f *fakeActivityClient) Activities(ctx context.Context, objectID string, since, until time.Time) ([]facebook.Activity, error) {
	return f.activities, f.actErr
}

func (f *fakeActivityClient) Campaigns(ctx context.Context, accountID string) ([]facebook.Campaign, error) {
	return f.campaigns, nil
}

func TestActivityHistoryReport(t *testing.T) {
	client := &fakeActivityClient{activities: []facebook.Activity{
		{EventType: "update_ad_budget", EventTime: "2026-08-30T14:22:00Z", ActorName: "Dantas", ObjectName: "Campanha X"},
		{EventType: "pause_campaign", EventTime: "2026-08-29T09:00:00Z", ActorName: "Dantas"},
		{EventType: "ad_account_billing_charge", EventTime: "2026-08-28T01:00:00Z"},
	}}
	tool := NewActivityHistoryTool(client)
	tool.now = fixedNow

	res := tool.Execute(context.Background(), map[string]interface{}{
		"ad_account_id": "123",
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}

	for _, want := range []string{
		"💵 Atualização de Orçamento: 1x",
		"⏸️ Pausa de Campanha: 1x",
		"Dantas: 2 otimizações",
		"1 cobranças ocultas",
		"2 otimizações em 7 dias",
	} {
		if !strings.Contains(res.ForLLM, want) {
			t.Errorf("output missing %q:\n%s", want, res.ForLLM)
		}
	}
	if strings.Contains(res.ForLLM, "Cobrança/Pagamento") {
		t.Error("billing charge should be hidden from the action summary")
	}
}

func TestActivityHistoryRequiresEntityID(t *testing.T) {
	tool := NewActivityHistoryTool(&fakeActivityClient{})
	res := tool.Execute(context.Background(), map[string]interface{}{
		"ad_account_id": "123",
		"level":         "campaign",
	})
	if !res.IsError {
		t.Error("expected error without entity_id")
	}
}

func TestActivityHistoryFallbackToCampaignUpdates(t *testing.T) {
	client := &fakeActivityClient{
		actErr: errors.New("Unsupported get request"),
		campaigns: []facebook.Campaign{
			{Name: "Leads Setembro", Status: "ACTIVE", UpdatedTime: "2026-08-30T12:00:00+00:00", DailyBudget: "15000"},
			{Name: "Antiga", Status: "PAUSED", UpdatedTime: "2026-01-01T12:00:00+00:00"},
		},
	}
	tool := NewActivityHistoryTool(client)
	tool.now = fixedNow

	res := tool.Execute(context.Background(), map[string]interface{}{
		"ad_account_id": "123",
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if !strings.Contains(res.ForLLM, "Campanhas Atualizadas Recentemente") {
		t.Errorf("fallback header missing:\n%s", res.ForLLM)
	}
	if !strings.Contains(res.ForLLM, "Leads Setembro") {
		t.Errorf("recent campaign missing:\n%s", res.ForLLM)
	}
	if strings.Contains(res.ForLLM, "Antiga") {
		t.Errorf("stale campaign should be filtered:\n%s", res.ForLLM)
	}
	if !strings.Contains(res.ForLLM, "R$ 150,00") {
		t.Errorf("budget in cents not converted:\n%s", res.ForLLM)
	}
}

func TestBudgetTool(t *testing.T) {
	tool := NewBudgetTool()

	res := tool.Execute(context.Background(), map[string]interface{}{
		"daily_budget": 50.0,
		"days":         30.0,
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if res.ForLLM != "Orçamento total: BRL 1500.00 (Diário: BRL 50.00 x 30 dias)" {
		t.Errorf("output = %q", res.ForLLM)
	}

	res = tool.Execute(context.Background(), map[string]interface{}{"daily_budget": -1.0, "days": 3.0})
	if !res.IsError {
		t.Error("expected error for negative budget")
	}
}

func TestFindAccountTool(t *testing.T) {
	tool := NewFindAccountTool()

	res := tool.Execute(context.Background(), map[string]interface{}{"account_name": "scale"})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if !strings.Contains(res.ForLLM, "act_611132268404060") {
		t.Errorf("output = %q", res.ForLLM)
	}

	res = tool.Execute(context.Background(), map[string]interface{}{"account_name": "inexistente"})
	if res.IsError {
		t.Fatal("unknown account is a normal answer, not an error result")
	}
	if !strings.Contains(res.ForLLM, "não encontrada") {
		t.Errorf("output = %q", res.ForLLM)
	}
}
