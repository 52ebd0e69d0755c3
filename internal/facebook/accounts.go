package facebook

import "strings"

// AdAccount is a pre-configured ad account the assistant answers about.
type AdAccount struct {
	ID    string
	Name  string
	ActID string
}

// DefaultAdAccounts are the Grupo Vorp accounts, in presentation order.
var DefaultAdAccounts = []AdAccount{
	{ID: "611132268404060", Name: "Vorp Scale", ActID: "act_611132268404060"},
	{ID: "766769481380236", Name: "Vorp Edu (MasterMind)", ActID: "act_766769481380236"},
	{ID: "343431767385008", Name: "Vorp Edu (Eventos)", ActID: "act_343431767385008"},
	{ID: "4429673283720645", Name: "Vorp Tech", ActID: "act_4429673283720645"},
	{ID: "2190755121126699", Name: "CDA. MatchSales", ActID: "act_2190755121126699"},
}

// accountAliases maps the short names users actually type to account IDs.
var accountAliases = map[string]string{
	"scale":               "611132268404060",
	"vorp scale":          "611132268404060",
	"mastermind":          "766769481380236",
	"edu mastermind":      "766769481380236",
	"vorp edu mastermind": "766769481380236",
	"eventos":             "343431767385008",
	"edu eventos":         "343431767385008",
	"vorp edu eventos":    "343431767385008",
	"tech":                "4429673283720645",
	"vorp tech":           "4429673283720645",
	"matchsales":          "2190755121126699",
	"match sales":         "2190755121126699",
	"cda":                 "2190755121126699",
	"cda matchsales":      "2190755121126699",
}

// AccountByID looks up a default account by plain or act_-prefixed ID.
func AccountByID(id string) (AdAccount, bool) {
	clean := strings.TrimPrefix(id, "act_")
	for _, acc := range DefaultAdAccounts {
		if acc.ID == clean {
			return acc, true
		}
	}
	return AdAccount{}, false
}

// AccountName returns the display name for an ID, or "Conta <id>" when the
// account is not one of the defaults.
func AccountName(id string) string {
	if acc, ok := AccountByID(id); ok {
		return acc.Name
	}
	return "Conta " + strings.TrimPrefix(id, "act_")
}

// AccountByAlias resolves a user-typed alias ("scale", "cda", ...) to an
// account.
func AccountByAlias(alias string) (AdAccount, bool) {
	id, ok := accountAliases[strings.ToLower(strings.TrimSpace(alias))]
	if !ok {
		return AdAccount{}, false
	}
	return AccountByID(id)
}

// AccountByName resolves an alias first, then falls back to a
// case-insensitive substring match over the default account names.
func AccountByName(name string) (AdAccount, bool) {
	if acc, ok := AccountByAlias(name); ok {
		return acc, true
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return AdAccount{}, false
	}
	for _, acc := range DefaultAdAccounts {
		if strings.Contains(strings.ToLower(acc.Name), needle) {
			return acc, true
		}
	}
	return AdAccount{}, false
}
