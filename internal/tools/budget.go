package tools

import (
	"context"
	"fmt"
)

// BudgetTool computes the total spend of a campaign from its daily budget.
type BudgetTool struct{}

func NewBudgetTool() *BudgetTool { return &BudgetTool{} }

func (t *BudgetTool) Name() string { return "calculate_ad_budget" }
func (t *BudgetTool) Description() string {
	return "Calcula o orçamento total de uma campanha de anúncios a partir do orçamento diário e do número de dias."
}
func (t *BudgetTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"daily_budget": map[string]interface{}{
				"type":        "number",
				"description": "Orçamento diário em reais",
			},
			"days": map[string]interface{}{
				"type":        "integer",
				"description": "Número de dias da campanha",
			},
			"currency": map[string]interface{}{
				"type":        "string",
				"description": "Moeda (padrão: BRL)",
			},
		},
		"required": []string{"daily_budget", "days"},
	}
}

func (t *BudgetTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	daily, ok := args["daily_budget"].(float64)
	if !ok || daily <= 0 {
		return ErrorResult("Erro: daily_budget deve ser um número positivo")
	}
	daysF, ok := args["days"].(float64)
	if !ok || daysF <= 0 {
		return ErrorResult("Erro: days deve ser um número positivo")
	}
	days := int(daysF)

	currency, _ := args["currency"].(string)
	if currency == "" {
		currency = "BRL"
	}

	total := daily * float64(days)
	return NewResult(fmt.Sprintf("Orçamento total: %s %.2f (Diário: %s %.2f x %d dias)",
		currency, total, currency, daily, days))
}
