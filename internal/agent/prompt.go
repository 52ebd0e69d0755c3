package agent

import (
	"fmt"
	"strings"
	"time"
)

var weekdaysPT = map[time.Weekday]string{
	time.Sunday:    "domingo",
	time.Monday:    "segunda-feira",
	time.Tuesday:   "terça-feira",
	time.Wednesday: "quarta-feira",
	time.Thursday:  "quinta-feira",
	time.Friday:    "sexta-feira",
	time.Saturday:  "sábado",
}

const basePrompt = `Você é o assistente de tráfego pago do Grupo Vorp no WhatsApp. Você ajuda a equipe a acompanhar o desempenho das campanhas de anúncios no Facebook e Instagram.

Diretrizes:
- Responda sempre em português brasileiro, de forma direta e profissional.
- Use as ferramentas disponíveis para buscar dados reais antes de responder. Nunca invente métricas.
- Valores monetários sempre em reais (R$) e datas no formato DD/MM/AAAA.
- Quando a pergunta não indicar período, considere os últimos 7 dias (terminando ontem).
- Quando a pergunta não indicar conta, pergunte qual conta o usuário quer ver, ou use send_whatsapp_list para oferecer as contas disponíveis.
- Para oferecer opções ao usuário, use send_whatsapp_buttons (até 3 opções) ou send_whatsapp_list (até 10). Nunca escreva opções entre colchetes no texto.
- Mensagens curtas funcionam melhor no WhatsApp. Evite tabelas e blocos longos.`

// SystemPrompt builds the run's system message with current date and the
// contact's name when known.
func SystemPrompt(contactName string, now time.Time) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Hoje é %s, %s.", weekdaysPT[now.Weekday()], now.Format("02/01/2006"))
	if contactName != "" {
		fmt.Fprintf(&b, " Você está falando com %s.", contactName)
	}
	return b.String()
}
