package i18n

var ptBR = map[Code]string{
	CodeTemplateTitleEmpty:        "O título do cartão é obrigatório.",
	CodeTemplateStampTotalInvalid: "O total de selos deve ser no mínimo 1.",
	CodeTemplateLimitInvalid:      "Os limites do cartão devem ser positivos.",
	CodeTemplateWindowInvalid:     "O fim da vigência do cartão deve ser depois do início.",
	CodeTemplateCompanyMissing:    "A empresa dona do cartão é obrigatória.",
	CodeRuleKindUnknown:           "Tipo de regra desconhecido {{.Kind}}.",
	CodeRuleConfigInvalid:         "Configuração de regra inválida: {{.Reason}}.",
	CodeRuleTemplateEmpty:         "A regra deve pertencer a um modelo de cartão.",
	CodeRewardNameEmpty:           "O nome da recompensa é obrigatório.",
	CodeRewardStampInvalid:        "O número do selo da recompensa deve estar dentro do cartão.",
	CodeRewardStockInvalid:        "O estoque da recompensa não pode ser negativo.",
	CodeEventSourceIDEmpty:        "A chave de idempotência do evento é obrigatória.",
	CodeEventUserEmpty:            "A referência de usuário do evento é obrigatória.",
	CodeEventTemplateEmpty:        "A referência de modelo do evento é obrigatória.",
	CodeEventAmountInvalid:        "O valor do evento não pode ser negativo.",
	CodeEventTimeMissing:          "A data do evento é obrigatória.",
	CodeRequestInvalid:            "Não foi possível ler o corpo da requisição.",
	CodeTemplateInactive:          "Este cartão não está mais sendo emitido.",
	CodeTemplateOutsideWindow:     "Este cartão está fora da vigência.",
	CodePerUserLimitReached:       "Você já possui o número máximo deste cartão.",
	CodeEmissionLimitReached:      "Todos os cartões deste tipo já foram emitidos.",
	CodeConcurrencyConflict:       "O cartão foi atualizado ao mesmo tempo; tente novamente.",
	CodeStampRangeExceeded:        "O cartão não comporta mais selos.",
	CodeRewardNotUnlocked:         "Esta recompensa ainda não foi desbloqueada.",
	CodeRewardAlreadyRedeemed:     "Esta recompensa já foi resgatada neste cartão.",
	CodeRewardStockExhausted:      "Esta recompensa está esgotada.",
	CodeTokenInvalid:              "O código de resgate não é válido.",
	CodeTokenAlreadyUsed:          "O código de resgate já foi utilizado.",
	CodeNotFound:                  "O registro solicitado não foi encontrado.",
}
