package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/grupovorp/adpilot/internal/facebook"
)

// InsightsClient is the slice of the Graph client the insights tools use.
type InsightsClient interface {
	Insights(ctx context.Context, accountID string, q facebook.InsightsQuery) ([]facebook.InsightRow, error)
}

// primaryActionTypes count as results (leads) when present; engagement
// actions are the fallback when a campaign has no conversion events.
var primaryActionTypes = map[string]bool{
	"purchase":              true,
	"lead":                  true,
	"complete_registration": true,
	"contact":               true,
	"add_to_cart":           true,
	"offsite_complete_registration_add_meta_leads": true,
}

var fallbackActionTypes = map[string]bool{
	"link_click":      true,
	"post_engagement": true,
}

func countResults(actions []facebook.Action) int64 {
	var results int64
	for _, a := range actions {
		if primaryActionTypes[a.ActionType] {
			results += parseInt(a.Value)
		}
	}
	if results > 0 {
		return results
	}
	for _, a := range actions {
		if fallbackActionTypes[a.ActionType] {
			results += parseInt(a.Value)
		}
	}
	return results
}

// defaultWindow is the closed last-7-days window ending yesterday.
func defaultWindow(now time.Time) (since, until string) {
	return now.AddDate(0, 0, -7).Format("2006-01-02"), now.AddDate(0, 0, -1).Format("2006-01-02")
}

func formatDateBR(isoDate string) string {
	t, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		return isoDate
	}
	return t.Format("02/01/2006")
}

var validExtraMetrics = map[string]bool{
	"impressions": true, "reach": true, "clicks": true, "ctr": true,
	"cpc": true, "cpp": true, "cpm": true, "frequency": true,
}

// CampaignInsightsTool fetches performance rows for one account and renders
// them as a WhatsApp-ready report.
type CampaignInsightsTool struct {
	client InsightsClient
	now    func() time.Time
}

func NewCampaignInsightsTool(client InsightsClient) *CampaignInsightsTool {
	return &CampaignInsightsTool{client: client, now: time.Now}
}

func (t *CampaignInsightsTool) Name() string { return "get_campaign_insights" }
func (t *CampaignInsightsTool) Description() string {
	return "Busca dados de desempenho (insights) de campanhas do Facebook Ads. Sempre inclui gastos, leads e CPL. Métricas adicionais via parâmetro metrics: impressions, reach, clicks, ctr, cpc, cpm, cpp, frequency. Deixe start_date/end_date vazios para os últimos 7 dias."
}
func (t *CampaignInsightsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ad_account_id": map[string]interface{}{
				"type":        "string",
				"description": "ID da conta (ex: act_123456789 ou apenas 123456789)",
			},
			"start_date": map[string]interface{}{
				"type":        "string",
				"description": "Data inicial YYYY-MM-DD. Deixe vazio para últimos 7 dias",
			},
			"end_date": map[string]interface{}{
				"type":        "string",
				"description": "Data final YYYY-MM-DD. Deixe vazio para até ontem",
			},
			"level": map[string]interface{}{
				"type":        "string",
				"description": "\"campaign\" (padrão), \"adset\" ou \"ad\"",
			},
			"metrics": map[string]interface{}{
				"type":        "string",
				"description": "Métricas adicionais separadas por vírgula (ex: \"ctr,cpc\")",
			},
		},
		"required": []string{"ad_account_id"},
	}
}

func (t *CampaignInsightsTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	accountID, _ := args["ad_account_id"].(string)
	if accountID == "" {
		return ErrorResult("Erro: ad_account_id é obrigatório")
	}

	since, until := defaultWindow(t.now())
	if v, _ := args["start_date"].(string); v != "" {
		since = v
	}
	if v, _ := args["end_date"].(string); v != "" {
		until = v
	}

	level, _ := args["level"].(string)
	switch level {
	case "campaign", "adset", "ad":
	default:
		level = "campaign"
	}

	fields := []string{"spend", "actions", "cost_per_action_type"}
	switch level {
	case "campaign":
		fields = append(fields, "campaign_name", "campaign_id", "objective")
	case "adset":
		fields = append(fields, "adset_name", "adset_id", "campaign_name")
	case "ad":
		fields = append(fields, "ad_name", "ad_id", "adset_name", "campaign_name")
	}

	var extras []string
	if raw, _ := args["metrics"].(string); raw != "" {
		for _, m := range strings.Split(raw, ",") {
			m = strings.TrimSpace(m)
			if validExtraMetrics[m] {
				extras = append(extras, m)
			}
		}
	}
	fields = append(fields, extras...)

	rows, err := t.client.Insights(ctx, accountID, facebook.InsightsQuery{
		Level:  level,
		Since:  since,
		Until:  until,
		Fields: fields,
	})
	if err != nil {
		return ErrorResult("Erro ao buscar insights: " + err.Error()).WithError(err)
	}

	if len(rows) == 0 {
		return NewResult(fmt.Sprintf(
			"📋 *Nenhuma campanha ativa encontrada*\n\n📅 Período consultado: %s a %s\n\n💡 *Sugestões:*\n• Esta conta pode não ter campanhas rodando neste período\n• Tente um período maior (ex: últimos 30 dias)\n• Verifique se há campanhas ativas no Gerenciador de Anúncios",
			since, until))
	}

	return NewResult(t.render(rows, level, since, until, extras))
}

func (t *CampaignInsightsTool) render(rows []facebook.InsightRow, level, since, until string, extras []string) string {
	wantExtra := make(map[string]bool, len(extras))
	for _, m := range extras {
		wantExtra[m] = true
	}

	levelName := map[string]string{
		"campaign": "Campanhas",
		"adset":    "Conjuntos de Anúncios",
		"ad":       "Anúncios",
	}[level]

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Insights de %s*\n", levelName)
	fmt.Fprintf(&b, "📅 Período: %s a %s\n\n", formatDateBR(since), formatDateBR(until))

	var totalSpend float64
	var totalResults, totalImpressions, totalClicks int64

	shown := rows
	if len(shown) > 20 {
		shown = shown[:20]
	}

	for i, row := range shown {
		name := row.CampaignName
		switch level {
		case "adset":
			name = row.AdsetName
		case "ad":
			name = row.AdName
		}
		if name == "" {
			name = "Sem nome"
		}

		spend := parseFloat(row.Spend)
		totalSpend += spend
		results := countResults(row.Actions)
		totalResults += results

		fmt.Fprintf(&b, "%d. *%s*\n", i+1, name)
		fmt.Fprintf(&b, "   💰 Gasto: R$ %.2f\n", spend)
		if results > 0 {
			fmt.Fprintf(&b, "   🎯 Leads: %d\n", results)
			fmt.Fprintf(&b, "   💵 CPL: R$ %.2f\n", spend/float64(results))
		}

		if wantExtra["impressions"] {
			impressions := parseInt(row.Impressions)
			totalImpressions += impressions
			fmt.Fprintf(&b, "   👁️ Impressões: %s\n", groupThousands(impressions, "."))
		}
		if wantExtra["reach"] {
			fmt.Fprintf(&b, "   👥 Alcance: %s\n", groupThousands(parseInt(row.Reach), "."))
		}
		if wantExtra["clicks"] {
			clicks := parseInt(row.Clicks)
			totalClicks += clicks
			fmt.Fprintf(&b, "   🖱️ Cliques: %d\n", clicks)
		}
		if wantExtra["ctr"] {
			fmt.Fprintf(&b, "   📊 CTR: %.2f%%\n", parseFloat(row.CTR))
		}
		if wantExtra["cpc"] {
			fmt.Fprintf(&b, "   💵 CPC: R$ %.2f\n", parseFloat(row.CPC))
		}
		if wantExtra["cpm"] {
			fmt.Fprintf(&b, "   💵 CPM: R$ %.2f\n", parseFloat(row.CPM))
		}
		if wantExtra["frequency"] {
			fmt.Fprintf(&b, "   🔄 Frequência: %.2f\n", parseFloat(row.Frequency))
		}
		b.WriteString("\n")
	}

	b.WriteString("*TOTAIS DO PERÍODO:*\n")
	fmt.Fprintf(&b, "💰 Investimento: R$ %.2f\n", totalSpend)
	if totalResults > 0 {
		fmt.Fprintf(&b, "🎯 Total de Leads: %d\n", totalResults)
		fmt.Fprintf(&b, "💵 CPL médio: R$ %.2f\n", totalSpend/float64(totalResults))
	}
	if totalImpressions > 0 {
		fmt.Fprintf(&b, "👁️ Total impressões: %s\n", groupThousands(totalImpressions, "."))
	}
	if totalClicks > 0 {
		fmt.Fprintf(&b, "🖱️ Total cliques: %d\n", totalClicks)
	}
	if len(rows) > 20 {
		fmt.Fprintf(&b, "\n_Mostrando 20 de %d itens_", len(rows))
	}
	return b.String()
}

// AllAccountsInsightsTool queries every default account and renders a
// consolidated summary sorted by spend.
type AllAccountsInsightsTool struct {
	client InsightsClient
	now    func() time.Time
}

func NewAllAccountsInsightsTool(client InsightsClient) *AllAccountsInsightsTool {
	return &AllAccountsInsightsTool{client: client, now: time.Now}
}

func (t *AllAccountsInsightsTool) Name() string { return "get_all_accounts_insights" }
func (t *AllAccountsInsightsTool) Description() string {
	return "Busca resumo de desempenho de TODAS as contas de anúncio configuradas. Use quando o usuário perguntar sobre \"todas as contas\" ou \"visão geral\"."
}
func (t *AllAccountsInsightsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"start_date": map[string]interface{}{
				"type":        "string",
				"description": "Data inicial YYYY-MM-DD (padrão: últimos 7 dias)",
			},
			"end_date": map[string]interface{}{
				"type":        "string",
				"description": "Data final YYYY-MM-DD (padrão: ontem)",
			},
		},
	}
}

type accountSummary struct {
	name    string
	actID   string
	spend   float64
	results int64
}

func (t *AllAccountsInsightsTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	since, until := defaultWindow(t.now())
	if v, _ := args["start_date"].(string); v != "" {
		since = v
	}
	if v, _ := args["end_date"].(string); v != "" {
		until = v
	}

	var withData []accountSummary
	var withoutData []string
	var totalSpend float64
	var totalResults int64

	for _, acc := range facebook.DefaultAdAccounts {
		rows, err := t.client.Insights(ctx, acc.ActID, facebook.InsightsQuery{
			Level:  "account",
			Since:  since,
			Until:  until,
			Fields: []string{"spend", "actions"},
		})
		if err != nil || len(rows) == 0 {
			withoutData = append(withoutData, acc.Name)
			continue
		}

		spend := parseFloat(rows[0].Spend)
		results := countResults(rows[0].Actions)
		withData = append(withData, accountSummary{
			name:    acc.Name,
			actID:   acc.ActID,
			spend:   spend,
			results: results,
		})
		totalSpend += spend
		totalResults += results
	}

	var b strings.Builder
	b.WriteString("📊 *Resumo de Todas as Contas*\n")
	fmt.Fprintf(&b, "📅 Período: %s a %s\n", formatDateBR(since), formatDateBR(until))
	b.WriteString("🏢 Business: Grupo Vorp\n")
	fmt.Fprintf(&b, "📁 Total de contas: %d\n\n", len(facebook.DefaultAdAccounts))

	if len(withData) > 0 {
		b.WriteString("✅ *Contas Ativas:*\n\n")

		sort.Slice(withData, func(i, j int) bool { return withData[i].spend > withData[j].spend })

		for i, acc := range withData {
			fmt.Fprintf(&b, "%d. *%s*\n", i+1, acc.name)
			fmt.Fprintf(&b, "   💰 Gasto: R$ %.2f\n", acc.spend)
			fmt.Fprintf(&b, "   🎯 Resultados: %s\n", groupThousands(acc.results, "."))
			cpr := 0.0
			if acc.results > 0 {
				cpr = acc.spend / float64(acc.results)
			}
			fmt.Fprintf(&b, "   📊 CPR: R$ %.2f\n", cpr)
			fmt.Fprintf(&b, "   🆔 `%s`\n\n", acc.actID)
		}

		b.WriteString("━━━━━━━━━━━━━━━━━━━\n")
		fmt.Fprintf(&b, "💵 *Total Investido:* R$ %.2f\n", totalSpend)
		fmt.Fprintf(&b, "🎯 *Total de Resultados:* %s\n", groupThousands(totalResults, "."))
		if totalResults > 0 {
			fmt.Fprintf(&b, "📊 *CPR Médio:* R$ %.2f\n", totalSpend/float64(totalResults))
		}
	}

	if len(withoutData) > 0 {
		fmt.Fprintf(&b, "\n⚠️ *%d conta(s) sem campanhas ativas neste período:*\n", len(withoutData))
		for _, name := range withoutData {
			fmt.Fprintf(&b, "• %s\n", name)
		}
	}

	return NewResult(b.String())
}
