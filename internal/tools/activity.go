package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/grupovorp/adpilot/internal/facebook"
)

// ActivityClient is the slice of the Graph client the activity tool uses.
type ActivityClient interface {
	Activities(ctx context.Context, objectID string, since, until time.Time) ([]facebook.Activity, error)
	Campaigns(ctx context.Context, accountID string) ([]facebook.Campaign, error)
}

var activityEventLabels = map[string]string{
	"update_ad_bid":               "💰 Atualização de Lance",
	"update_ad_budget":            "💵 Atualização de Orçamento",
	"create_campaign":             "✨ Criação de Campanha",
	"update_campaign":             "✏️ Edição de Campanha",
	"pause_campaign":              "⏸️ Pausa de Campanha",
	"unpause_campaign":            "▶️ Ativação de Campanha",
	"create_adset":                "✨ Criação de Conjunto",
	"update_adset":                "✏️ Edição de Conjunto",
	"pause_adset":                 "⏸️ Pausa de Conjunto",
	"unpause_adset":               "▶️ Ativação de Conjunto",
	"create_ad":                   "✨ Criação de Anúncio",
	"update_ad":                   "✏️ Edição de Anúncio",
	"pause_ad":                    "⏸️ Pausa de Anúncio",
	"unpause_ad":                  "▶️ Ativação de Anúncio",
	"update_ad_set_budget":        "💵 Ajuste de Orçamento",
	"ad_account_update_status":    "🔄 Atualização de Status",
	"create_audience":             "🎯 Criação de Público",
	"update_audience":             "🎯 Edição de Público",
	"ad_account_add_user_to_role": "👤 Adição de Usuário",
}

func activityLabel(eventType string) string {
	if label, ok := activityEventLabels[eventType]; ok {
		return label
	}
	words := strings.Split(strings.ReplaceAll(eventType, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return "📝 " + strings.Join(words, " ")
}

func formatEventTime(raw string) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("02/01/2006 15:04")
		}
	}
	if raw == "" {
		return "N/A"
	}
	return raw
}

// ActivityHistoryTool reports the edit history of an account, campaign or
// adset, with a management-cadence assessment.
type ActivityHistoryTool struct {
	client ActivityClient
	now    func() time.Time
}

func NewActivityHistoryTool(client ActivityClient) *ActivityHistoryTool {
	return &ActivityHistoryTool{client: client, now: time.Now}
}

func (t *ActivityHistoryTool) Name() string { return "get_activity_history" }
func (t *ActivityHistoryTool) Description() string {
	return "Busca histórico de atividades e edições de contas, campanhas ou conjuntos de anúncios. Use para verificar se o gestor está acompanhando e otimizando as campanhas. Níveis: account, campaign, adset."
}
func (t *ActivityHistoryTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ad_account_id": map[string]interface{}{
				"type":        "string",
				"description": "ID da conta (ex: act_123456789 ou apenas 123456789)",
			},
			"level": map[string]interface{}{
				"type":        "string",
				"description": "\"account\" (padrão), \"campaign\" ou \"adset\"",
			},
			"entity_id": map[string]interface{}{
				"type":        "string",
				"description": "ID da campanha ou adset (obrigatório se level != account)",
			},
			"days": map[string]interface{}{
				"type":        "integer",
				"description": "Número de dias para buscar histórico (padrão: 7)",
			},
		},
		"required": []string{"ad_account_id"},
	}
}

func (t *ActivityHistoryTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	accountID, _ := args["ad_account_id"].(string)
	if accountID == "" {
		return ErrorResult("Erro: ad_account_id é obrigatório")
	}
	accountID = facebook.NormalizeAccountID(accountID)

	level, _ := args["level"].(string)
	if level == "" {
		level = "account"
	}
	entityID, _ := args["entity_id"].(string)

	days := 7
	if v, ok := args["days"].(float64); ok && v > 0 {
		days = int(v)
	}

	var objectID string
	switch level {
	case "account":
		objectID = accountID
	case "campaign":
		if entityID == "" {
			return ErrorResult("❌ Para level='campaign', você deve fornecer entity_id (ID da campanha)")
		}
		objectID = entityID
	case "adset":
		if entityID == "" {
			return ErrorResult("❌ Para level='adset', você deve fornecer entity_id (ID do conjunto de anúncios)")
		}
		objectID = entityID
	default:
		return ErrorResult(fmt.Sprintf("❌ Level inválido: %s. Use: account, campaign ou adset", level))
	}

	until := t.now()
	since := until.AddDate(0, 0, -days)

	activities, err := t.client.Activities(ctx, objectID, since, until)
	if err != nil {
		// Some accounts do not expose the activities edge; fall back to
		// comparing campaign updated_time stamps.
		msg := err.Error()
		if strings.Contains(msg, "Unsupported get request") || strings.Contains(msg, "does not exist") {
			return t.campaignUpdatesFallback(ctx, accountID, days, since)
		}
		return ErrorResult("❌ Erro ao buscar histórico: " + msg).WithError(err)
	}

	if len(activities) == 0 {
		return NewResult(fmt.Sprintf(
			"📋 *Nenhuma atividade encontrada*\n\n📅 Período: Últimos %d dias\n🔍 Nível: %s\n\n⚠️ *Isso pode indicar:*\n• Conta sem otimizações recentes\n• Campanhas no automático sem ajustes manuais\n• Gestor não está acompanhando ativamente\n\n💡 Recomendação: Verificar se há oportunidades de otimização",
			days, level))
	}

	return NewResult(t.render(activities, days, since, until))
}

type activityDetail struct {
	time   string
	label  string
	actor  string
	object string
}

func (t *ActivityHistoryTool) render(activities []facebook.Activity, days int, since, until time.Time) string {
	typeCounts := map[string]int{}
	actorCounts := map[string]int{}
	var details []activityDetail
	billingCount := 0

	for _, a := range activities {
		// Billing charges drown out the optimization signal.
		if a.EventType == "ad_account_billing_charge" {
			billingCount++
			continue
		}

		actor := a.ActorName
		if actor == "" {
			actor = "Sistema"
		}

		label := activityLabel(a.EventType)
		typeCounts[label]++
		if actor != "Sistema" {
			actorCounts[actor]++
		}

		details = append(details, activityDetail{
			time:   formatEventTime(a.EventTime),
			label:  label,
			actor:  actor,
			object: a.ObjectName,
		})
	}

	var b strings.Builder
	b.WriteString("📊 *Histórico de Atividades*\n\n")
	fmt.Fprintf(&b, "📅 Período: Últimos %d dias (%s - %s)\n", days, since.Format("02/01"), until.Format("02/01"))
	fmt.Fprintf(&b, "📈 Total de atividades: %d\n\n", len(activities))

	if len(typeCounts) > 0 {
		b.WriteString("*Resumo de Ações:*\n")
		for _, kv := range sortedByCount(typeCounts) {
			fmt.Fprintf(&b, "• %s: %dx\n", kv.key, kv.count)
		}
		b.WriteString("\n")
	}

	if len(actorCounts) > 0 {
		b.WriteString("*Gestores mais ativos:*\n")
		actors := sortedByCount(actorCounts)
		if len(actors) > 5 {
			actors = actors[:5]
		}
		for _, kv := range actors {
			fmt.Fprintf(&b, "• %s: %d otimizações\n", kv.key, kv.count)
		}
		b.WriteString("\n")
	}

	b.WriteString("*Últimas Atividades:*\n")
	shown := details
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for i, d := range shown {
		line := fmt.Sprintf("%d. [%s] %s", i+1, d.time, d.label)
		if d.actor != "Sistema" {
			line += " por " + d.actor
		}
		if d.object != "" {
			line += " (" + d.object + ")"
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n*Análise de Gestão:*\n")
	optimizations := len(details)
	avgPerDay := float64(optimizations) / float64(days)
	switch {
	case avgPerDay >= 3:
		b.WriteString("✅ Gestão ativa - Múltiplas otimizações por dia\n")
	case avgPerDay >= 1:
		b.WriteString("⚠️ Gestão moderada - Média de 1-3 otimizações por dia\n")
	case optimizations > 0:
		b.WriteString("⚠️ Gestão baixa - Poucas otimizações no período\n")
	default:
		b.WriteString("❌ Sem gestão ativa - Nenhuma otimização detectada\n")
	}
	fmt.Fprintf(&b, "📊 Total: %d otimizações em %d dias (%.1f/dia)", optimizations, days, avgPerDay)
	if billingCount > 0 {
		fmt.Fprintf(&b, "\n💳 (%d cobranças ocultas)", billingCount)
	}
	return b.String()
}

func (t *ActivityHistoryTool) campaignUpdatesFallback(ctx context.Context, accountID string, days int, since time.Time) *Result {
	campaigns, err := t.client.Campaigns(ctx, accountID)
	if err != nil {
		return ErrorResult("❌ Histórico de atividades não disponível para esta conta").WithError(err)
	}

	type update struct {
		name    string
		status  string
		updated string
		budget  string
	}
	var recent []update
	for _, c := range campaigns {
		updatedAt, err := time.Parse(time.RFC3339, strings.Replace(c.UpdatedTime, "+0000", "+00:00", 1))
		if err != nil || updatedAt.Before(since) {
			continue
		}
		budget := c.DailyBudget
		if budget == "" {
			budget = c.LifetimeBudget
		}
		recent = append(recent, update{
			name:    c.Name,
			status:  c.Status,
			updated: updatedAt.Format("02/01/2006 15:04"),
			budget:  budget,
		})
	}

	if len(recent) == 0 {
		return NewResult(fmt.Sprintf(
			"📋 *Nenhuma atualização recente detectada*\n\n📅 Período: Últimos %d dias\n\n⚠️ *Campanhas sem modificações recentes*\n• Nenhuma campanha foi atualizada no período\n• Isso pode indicar falta de otimização ativa\n\n💡 Recomendação: Verificar oportunidades de melhoria",
			days))
	}

	var b strings.Builder
	b.WriteString("📊 *Campanhas Atualizadas Recentemente*\n\n")
	fmt.Fprintf(&b, "📅 Período: Últimos %d dias\n", days)
	fmt.Fprintf(&b, "🔄 Total de atualizações: %d\n\n", len(recent))
	b.WriteString("*Detalhes:*\n")

	shown := recent
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for i, u := range shown {
		fmt.Fprintf(&b, "%d. %s\n", i+1, u.name)
		fmt.Fprintf(&b, "   ↳ Atualizado: %s\n", u.updated)
		fmt.Fprintf(&b, "   ↳ Status: %s\n", u.status)
		if u.budget != "" {
			// Budgets come from the API in cents.
			fmt.Fprintf(&b, "   ↳ Orçamento: %s\n", brl(parseFloat(u.budget)/100))
		}
		b.WriteString("\n")
	}
	return NewResult(b.String())
}

type countEntry struct {
	key   string
	count int
}

func sortedByCount(m map[string]int) []countEntry {
	entries := make([]countEntry, 0, len(m))
	for k, v := range m {
		entries = append(entries, countEntry{k, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].key < entries[j].key
	})
	return entries
}
