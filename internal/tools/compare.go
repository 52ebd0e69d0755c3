package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grupovorp/adpilot/internal/facebook"
)

// ComparePeriodsTool aggregates account metrics over two windows and reports
// the variation between them.
type ComparePeriodsTool struct {
	client InsightsClient
	now    func() time.Time
}

func NewComparePeriodsTool(client InsightsClient) *ComparePeriodsTool {
	return &ComparePeriodsTool{client: client, now: time.Now}
}

func (t *ComparePeriodsTool) Name() string { return "compare_campaign_periods" }
func (t *ComparePeriodsTool) Description() string {
	return "Compara métricas de campanhas entre dois períodos, mostrando crescimento/queda em %. Tipos: week_vs_previous, month_vs_previous, week_vs_month, current_vs_last_month. Métricas: ctr, cpc, cpm, cpp, spend, impressions, reach, clicks, conversions, frequency, cost_per_conversion."
}
func (t *ComparePeriodsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ad_account_id": map[string]interface{}{
				"type":        "string",
				"description": "ID da conta (ex: act_123456789 ou apenas 123456789)",
			},
			"period_type": map[string]interface{}{
				"type":        "string",
				"description": "week_vs_previous (padrão), month_vs_previous, week_vs_month ou current_vs_last_month",
			},
			"metrics": map[string]interface{}{
				"type":        "string",
				"description": "Métricas separadas por vírgula (padrão: ctr,cpc,spend,impressions)",
			},
			"level": map[string]interface{}{
				"type":        "string",
				"description": "\"campaign\" (padrão), \"adset\" ou \"ad\"",
			},
		},
		"required": []string{"ad_account_id"},
	}
}

type periodWindow struct {
	name  string
	since time.Time
	until time.Time
}

// comparisonWindows computes the two windows for a period type. Returns ok
// false for unknown types.
func comparisonWindows(now time.Time, periodType string) (p1, p2 periodWindow, ok bool) {
	switch periodType {
	case "week_vs_previous":
		p1 = periodWindow{"Última Semana", now.AddDate(0, 0, -7), now.AddDate(0, 0, -1)}
		p2 = periodWindow{"Semana Anterior", now.AddDate(0, 0, -14), now.AddDate(0, 0, -8)}
	case "month_vs_previous":
		p1 = periodWindow{"Último Mês", now.AddDate(0, 0, -30), now.AddDate(0, 0, -1)}
		p2 = periodWindow{"Mês Anterior", now.AddDate(0, 0, -60), now.AddDate(0, 0, -31)}
	case "week_vs_month":
		p1 = periodWindow{"Últimos 7 Dias", now.AddDate(0, 0, -7), now.AddDate(0, 0, -1)}
		p2 = periodWindow{"30 Dias Anteriores", now.AddDate(0, 0, -37), now.AddDate(0, 0, -8)}
	case "current_vs_last_month":
		firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		lastMonthEnd := firstOfMonth.AddDate(0, 0, -1)
		lastMonthStart := time.Date(lastMonthEnd.Year(), lastMonthEnd.Month(), 1, 0, 0, 0, 0, now.Location())
		p1 = periodWindow{"Mês Atual", firstOfMonth, now}
		p2 = periodWindow{"Mês Passado", lastMonthStart, lastMonthEnd}
	default:
		return periodWindow{}, periodWindow{}, false
	}
	return p1, p2, true
}

// periodTotals holds aggregated base counters plus derived metrics.
type periodTotals map[string]float64

func aggregateRows(rows []facebook.InsightRow) periodTotals {
	totals := periodTotals{
		"spend": 0, "impressions": 0, "reach": 0, "clicks": 0, "conversions": 0,
	}
	for _, row := range rows {
		totals["spend"] += parseFloat(row.Spend)
		totals["impressions"] += float64(parseInt(row.Impressions))
		totals["reach"] += float64(parseInt(row.Reach))
		totals["clicks"] += float64(parseInt(row.Clicks))
		for _, a := range row.Actions {
			totals["conversions"] += float64(parseInt(a.Value))
		}
	}

	if totals["impressions"] > 0 {
		totals["ctr"] = totals["clicks"] / totals["impressions"] * 100
		totals["cpm"] = totals["spend"] / totals["impressions"] * 1000
	}
	if totals["clicks"] > 0 {
		totals["cpc"] = totals["spend"] / totals["clicks"]
	}
	if totals["reach"] > 0 {
		totals["cpp"] = totals["spend"] / totals["reach"]
		totals["frequency"] = totals["impressions"] / totals["reach"]
	}
	if totals["conversions"] > 0 {
		totals["cost_per_conversion"] = totals["spend"] / totals["conversions"]
	}
	return totals
}

func variation(v1, v2 float64) string {
	if v2 == 0 {
		if v1 == 0 {
			return "N/A"
		}
		return "+∞"
	}
	pct := (v1 - v2) / v2 * 100
	if pct >= 0 {
		return fmt.Sprintf("+%.1f%%", pct)
	}
	return fmt.Sprintf("%.1f%%", pct)
}

func formatMetric(value float64, metric string) string {
	switch metric {
	case "ctr", "frequency":
		return fmt.Sprintf("%.2f", value)
	case "cpc", "cpm", "cpp", "spend", "cost_per_conversion":
		return brl(value)
	default:
		return groupThousands(int64(value), ".")
	}
}

var compareMetricLabels = map[string]string{
	"spend":               "💰 Investimento",
	"impressions":         "👁️ Impressões",
	"reach":               "👥 Alcance",
	"clicks":              "🖱️ Cliques",
	"ctr":                 "📈 CTR",
	"cpc":                 "💵 CPC",
	"cpm":                 "📊 CPM",
	"cpp":                 "💸 CPP",
	"frequency":           "🔄 Frequência",
	"conversions":         "🎯 Conversões",
	"cost_per_conversion": "💰 Custo/Conv",
}

func (t *ComparePeriodsTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	accountID, _ := args["ad_account_id"].(string)
	if accountID == "" {
		return ErrorResult("Erro: ad_account_id é obrigatório")
	}

	periodType, _ := args["period_type"].(string)
	if periodType == "" {
		periodType = "week_vs_previous"
	}
	p1, p2, ok := comparisonWindows(t.now(), periodType)
	if !ok {
		return ErrorResult(fmt.Sprintf("❌ Tipo de período inválido: %s. Use: week_vs_previous, month_vs_previous, week_vs_month, current_vs_last_month", periodType))
	}

	metricsArg, _ := args["metrics"].(string)
	if metricsArg == "" {
		metricsArg = "ctr,cpc,spend,impressions"
	}
	var metrics []string
	for _, m := range strings.Split(metricsArg, ",") {
		if m = strings.TrimSpace(m); m != "" {
			metrics = append(metrics, m)
		}
	}

	level, _ := args["level"].(string)
	switch level {
	case "campaign", "adset", "ad":
	default:
		level = "campaign"
	}

	// Base counters cover every derived metric; actions only when conversion
	// metrics were requested.
	fields := []string{"spend", "impressions", "reach", "clicks"}
	for _, m := range metrics {
		if m == "conversions" || m == "cost_per_conversion" {
			fields = append(fields, "actions")
			break
		}
	}

	fetch := func(w periodWindow) ([]facebook.InsightRow, error) {
		return t.client.Insights(ctx, accountID, facebook.InsightsQuery{
			Level:  level,
			Since:  w.since.Format("2006-01-02"),
			Until:  w.until.Format("2006-01-02"),
			Fields: fields,
			Limit:  1000,
		})
	}

	rows1, err := fetch(p1)
	if err != nil {
		return ErrorResult("❌ Erro ao buscar período 1: " + err.Error()).WithError(err)
	}
	rows2, err := fetch(p2)
	if err != nil {
		return ErrorResult("❌ Erro ao buscar período 2: " + err.Error()).WithError(err)
	}

	totals1 := aggregateRows(rows1)
	totals2 := aggregateRows(rows2)

	if totals1["spend"] == 0 && totals2["spend"] == 0 {
		return NewResult(fmt.Sprintf(
			"📋 *Sem dados de campanhas ativas*\n\n📅 *%s*: %s - %s\n📅 *%s*: %s - %s\n\n💡 *Possíveis razões:*\n• Nenhuma campanha ativa nos períodos\n• Campanhas pausadas ou sem investimento\n• Token de acesso expirado\n\n🔍 Verifique o Gerenciador de Anúncios",
			p1.name, p1.since.Format("02/01"), p1.until.Format("02/01"),
			p2.name, p2.since.Format("02/01"), p2.until.Format("02/01")))
	}

	lines := []string{
		"📊 *Análise Comparativa*",
		"",
		fmt.Sprintf("📅 *%s*: %s - %s", p1.name, p1.since.Format("02/01"), p1.until.Format("02/01")),
		fmt.Sprintf("📅 *%s*: %s - %s", p2.name, p2.since.Format("02/01"), p2.until.Format("02/01")),
		"",
		"*Resultados:*",
	}

	for _, metric := range metrics {
		label, ok := compareMetricLabels[metric]
		if !ok {
			continue
		}
		v1, v2 := totals1[metric], totals2[metric]
		lines = append(lines, fmt.Sprintf("%s: %s vs %s (%s)",
			label, formatMetric(v1, metric), formatMetric(v2, metric), variation(v1, v2)))
	}

	return NewResult(strings.Join(lines, "\n"))
}
