package analytics

import "strings"

// keywordRule associa palavras-chave a uma categoria.
type keywordRule struct {
	category string
	keywords []string
}

// categoryKeywords é a tabela de categorização rápida.
// A ORDEM FAZ PARTE DO CONTRATO: a primeira categoria que casar ganha,
// sem critério alfabético nem de palavra mais longa.
var categoryKeywords = []keywordRule{
	{"Transport", []string{"uber", "taxi", "fuel", "gas station", "bus", "metro", "train", "parking"}},
	{"Food", []string{"restaurant", "pizza", "burger", "coffee", "lunch", "dinner", "grocer", "market", "ifood"}},
	{"Entertainment", []string{"netflix", "spotify", "cinema", "movie", "game", "concert"}},
	{"Bills", []string{"rent", "electric", "water bill", "internet", "phone", "insurance"}},
	{"Health", []string{"pharmacy", "doctor", "gym", "medicine", "dentist"}},
	{"Shopping", []string{"amazon", "clothes", "shoes", "mall", "store"}},
}

// SuggestCategory detecta a categoria pelo título livre.
//
// Retorna a categoria e true quando alguma palavra-chave casou; caso contrário
// devolve a categoria que o usuário já tinha escolhido (selected) e false.
func SuggestCategory(title, selected string) (string, bool) {
	lower := strings.ToLower(title)
	if strings.TrimSpace(lower) == "" {
		return selected, false
	}

	for _, rule := range categoryKeywords {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category, true
			}
		}
	}
	return selected, false
}
