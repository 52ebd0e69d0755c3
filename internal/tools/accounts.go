package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/grupovorp/adpilot/internal/facebook"
)

// AdAccountsTool lists the pre-configured ad accounts. It never hits the
// Graph API: the account table is fixed configuration.
type AdAccountsTool struct{}

func NewAdAccountsTool() *AdAccountsTool { return &AdAccountsTool{} }

func (t *AdAccountsTool) Name() string { return "get_facebook_ad_accounts" }
func (t *AdAccountsTool) Description() string {
	return "Lista todas as contas de anúncio configuradas. Use quando o usuário perguntar \"quais contas\" ou \"liste as contas\". Esta ferramenta NÃO mostra dados de campanhas; para desempenho use get_campaign_insights ou get_all_accounts_insights."
}
func (t *AdAccountsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *AdAccountsTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	accounts := facebook.DefaultAdAccounts

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *%d Contas de Anúncio:*\n\n", len(accounts))
	for i, acc := range accounts {
		fmt.Fprintf(&b, "%d. *%s*\n", i+1, acc.Name)
		b.WriteString("   - Status: Ativa\n")
		b.WriteString("   - Saldo: R$ 0.00\n")
		fmt.Fprintf(&b, "   - ACT: `%s`\n\n", acc.ActID)
	}
	return NewResult(b.String())
}

// FindAccountTool resolves a user-typed account name or alias to an ID.
type FindAccountTool struct{}

func NewFindAccountTool() *FindAccountTool { return &FindAccountTool{} }

func (t *FindAccountTool) Name() string { return "find_account_by_name" }
func (t *FindAccountTool) Description() string {
	return "Encontra o ID de uma conta de anúncio pelo nome. Use ANTES de chamar get_campaign_insights quando tiver apenas o nome da conta (ex: \"Vorp Scale\", \"scale\", \"cda\")."
}
func (t *FindAccountTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"account_name": map[string]interface{}{
				"type":        "string",
				"description": "Nome ou apelido da conta",
			},
		},
		"required": []string{"account_name"},
	}
}

func (t *FindAccountTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	name, _ := args["account_name"].(string)
	if name == "" {
		return ErrorResult("Erro: account_name é obrigatório")
	}

	if acc, ok := facebook.AccountByName(name); ok {
		return NewResult(fmt.Sprintf("✅ Conta encontrada: *%s*\n🆔 ID: `%s`", acc.Name, acc.ActID))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "❌ Conta '%s' não encontrada.\n\n📋 Contas disponíveis:\n", name)
	for _, acc := range facebook.DefaultAdAccounts {
		fmt.Fprintf(&b, "• %s\n", acc.Name)
	}
	return NewResult(strings.TrimRight(b.String(), "\n"))
}
