package tools

import (
	"context"
	"fmt"

	"github.com/grupovorp/adpilot/internal/facebook"
)

// BusinessInfoClient is the slice of the Graph client this tool uses.
type BusinessInfoClient interface {
	BusinessInfo(ctx context.Context, businessID string) (*facebook.BusinessInfo, error)
}

// BusinessInfoTool fetches Business Manager metadata.
type BusinessInfoTool struct {
	client BusinessInfoClient
}

func NewBusinessInfoTool(client BusinessInfoClient) *BusinessInfoTool {
	return &BusinessInfoTool{client: client}
}

func (t *BusinessInfoTool) Name() string { return "get_facebook_business_info" }
func (t *BusinessInfoTool) Description() string {
	return "Busca informações gerais de um Business Manager do Facebook."
}
func (t *BusinessInfoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"business_id": map[string]interface{}{
				"type":        "string",
				"description": "ID do Business Manager",
			},
		},
		"required": []string{"business_id"},
	}
}

func (t *BusinessInfoTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	businessID, _ := args["business_id"].(string)
	if businessID == "" {
		return ErrorResult("Erro: business_id é obrigatório")
	}

	info, err := t.client.BusinessInfo(ctx, businessID)
	if err != nil {
		return ErrorResult("Erro ao buscar informações do Business: " + err.Error()).WithError(err)
	}

	orNA := func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	}

	out := fmt.Sprintf("Business Manager: %s\nID: %s\nCriado em: %s\nStatus de verificação: %s\n",
		info.Name, info.ID, orNA(info.CreatedTime), orNA(info.VerificationStatus))
	return NewResult(out)
}
