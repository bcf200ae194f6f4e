package recognizer

import "github.com/docveil/docveil/internal/entity"

// Builtins returns the default recognizer set covering Swiss and general
// European documents. Scores stay in the 0.3-0.7 band; bare numeric
// patterns are flagged weak so the registry penalizes them.
func Builtins() []Config {
	return []Config{
		{
			Name:        "email-global",
			Priority:    60,
			Specificity: entity.SpecificityGlobal,
			Patterns: []entity.PatternDefinition{
				{
					Name:       "email",
					Regex:      `[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`,
					BaseScore:  0.65,
					EntityType: "EMAIL",
				},
			},
			DenyPatterns:      []string{"noreply@example.com"},
			UseGlobalDenyList: true,
		},
		{
			Name:        "url-global",
			Priority:    55,
			Specificity: entity.SpecificityGlobal,
			Patterns: []entity.PatternDefinition{
				{
					Name:       "url",
					Regex:      `https?://[a-z0-9\-._~:/?#\[\]@!$&'()*+,;=%]+`,
					BaseScore:  0.5,
					EntityType: "URL",
				},
			},
		},
		{
			Name:        "ip-address-global",
			Priority:    55,
			Specificity: entity.SpecificityGlobal,
			Patterns: []entity.PatternDefinition{
				{
					Name:       "ipv4",
					Regex:      `\b(?:\d{1,3}\.){3}\d{1,3}\b`,
					BaseScore:  0.45,
					EntityType: "IP_ADDRESS",
				},
			},
			DenyPatterns: []string{"127.0.0.1", "0.0.0.0"},
		},
		{
			Name:        "iban-global",
			Priority:    70,
			Specificity: entity.SpecificityGlobal,
			Validator:   IBAN,
			Patterns: []entity.PatternDefinition{
				{
					Name:       "iban",
					Regex:      `\b[a-z]{2}\d{2}(?:\s?[a-z0-9]){11,30}\b`,
					BaseScore:  0.6,
					EntityType: "IBAN",
				},
			},
			ContextWords: []string{"iban", "konto", "account", "compte"},
		},
		{
			Name:        "credit-card-global",
			Priority:    65,
			Specificity: entity.SpecificityGlobal,
			Validator:   Luhn,
			Patterns: []entity.PatternDefinition{
				{
					Name:          "card-number",
					Regex:         `\b(?:\d[ \-]?){13,19}\b`,
					BaseScore:     0.5,
					EntityType:    "CREDIT_CARD",
					IsWeakPattern: true,
				},
			},
			ContextWords:     []string{"karte", "card", "visa", "mastercard"},
			UseGlobalContext: true,
		},
		{
			Name:               "swiss-avs",
			Priority:           80,
			Specificity:        entity.SpecificityCountry,
			SupportedCountries: []string{"CH"},
			Validator:          SwissAVS,
			Patterns: []entity.PatternDefinition{
				{
					Name:       "avs-number",
					Regex:      `\b756\.\d{4}\.\d{4}\.\d{2}\b`,
					BaseScore:  0.7,
					EntityType: "SWISS_AVS",
				},
			},
			ContextWords: []string{"ahv", "avs", "versichertennummer"},
		},
		{
			Name:               "swiss-phone",
			Priority:           60,
			Specificity:        entity.SpecificityCountry,
			SupportedCountries: []string{"CH"},
			Patterns: []entity.PatternDefinition{
				{
					Name:       "phone-ch",
					Regex:      `(?:\+41|0041|\b0)\s?\d{2}\s?\d{3}\s?\d{2}\s?\d{2}\b`,
					BaseScore:  0.55,
					EntityType: "PHONE",
				},
			},
		},
		{
			Name:        "phone-global",
			Priority:    40,
			Specificity: entity.SpecificityGlobal,
			Patterns: []entity.PatternDefinition{
				{
					Name:          "phone-intl",
					Regex:         `\+\d{1,3}[\s\-]?\d(?:[\s\-]?\d){6,12}\b`,
					BaseScore:     0.4,
					EntityType:    "PHONE",
					IsWeakPattern: true,
				},
			},
		},
		{
			Name:        "date-global",
			Priority:    45,
			Specificity: entity.SpecificityGlobal,
			Patterns: []entity.PatternDefinition{
				{
					Name:       "date-iso",
					Regex:      `\b\d{4}-\d{2}-\d{2}\b`,
					BaseScore:  0.5,
					EntityType: "DATE",
				},
				{
					Name:       "date-european",
					Regex:      `\b\d{1,2}\.\d{1,2}\.\d{2,4}\b`,
					BaseScore:  0.45,
					EntityType: "DATE",
				},
				{
					Name:       "date-written",
					Regex:      `\b\d{1,2}\.?\s?(?:januar|februar|märz|april|mai|juni|juli|august|september|oktober|november|dezember|january|february|march|may|june|july|october|december|janvier|février|mars|avril|juin|juillet|août|septembre|octobre|novembre|décembre)\s\d{4}\b`,
					BaseScore:  0.55,
					EntityType: "DATE",
				},
			},
		},
		{
			Name:        "amount-global",
			Priority:    50,
			Specificity: entity.SpecificityGlobal,
			Patterns: []entity.PatternDefinition{
				{
					Name:       "currency-amount",
					Regex:      `(?:chf|eur|usd|€|\$)\s?\d{1,3}(?:[',.]\d{3})*(?:[.,]\d{2})?\b`,
					BaseScore:  0.5,
					EntityType: "AMOUNT",
				},
				{
					Name:       "amount-currency-suffix",
					Regex:      `\b\d{1,3}(?:[',.]\d{3})*(?:[.,]\d{2})?\s?(?:chf|eur|usd|franken|francs|euro)\b`,
					BaseScore:  0.5,
					EntityType: "AMOUNT",
				},
			},
		},
		{
			Name:        "invoice-number-global",
			Priority:    50,
			Specificity: entity.SpecificityGlobal,
			Patterns: []entity.PatternDefinition{
				{
					Name:       "labeled-invoice-number",
					Regex:      `(?:invoice|rechnungs?|facture|fattura)[\s\-]?(?:no\.?|nr\.?|number|nummer)?\s*[:#]?\s*[a-z0-9][a-z0-9\-/]{2,19}`,
					BaseScore:  0.5,
					EntityType: "INVOICE_NUMBER",
				},
			},
		},
		{
			Name:        "street-eu",
			Priority:    55,
			Specificity: entity.SpecificityRegion,
			Patterns: []entity.PatternDefinition{
				{
					Name:       "street-de",
					Regex:      `\b[a-zäöüß]+(?:strasse|straße|gasse|weg|platz|allee|ring)\b`,
					BaseScore:  0.55,
					EntityType: "STREET",
				},
				{
					Name:       "street-fr",
					Regex:      `\b(?:rue|avenue|chemin|route|boulevard|place|quai)\s+(?:de\s|du\s|des\s|de\sla\s)?[a-zéèêà\-]+\b`,
					BaseScore:  0.5,
					EntityType: "STREET",
				},
				{
					Name:       "street-it",
					Regex:      `\b(?:via|viale|piazza|corso)\s+[a-zéèà\-]+\b`,
					BaseScore:  0.5,
					EntityType: "STREET",
				},
			},
		},
		{
			Name:        "building-number",
			Priority:    30,
			Specificity: entity.SpecificityGlobal,
			Patterns: []entity.PatternDefinition{
				{
					Name:          "house-number",
					Regex:         `\b\d{1,4}[a-z]?\b`,
					BaseScore:     0.3,
					EntityType:    "BUILDING_NUMBER",
					IsWeakPattern: true,
				},
			},
		},
		{
			Name:               "swiss-postal-code",
			Priority:           45,
			Specificity:        entity.SpecificityCountry,
			SupportedCountries: []string{"CH"},
			Patterns: []entity.PatternDefinition{
				{
					Name:          "plz",
					Regex:         `\b[1-9]\d{3}\b`,
					BaseScore:     0.4,
					EntityType:    "POSTAL_CODE",
					IsWeakPattern: true,
				},
			},
		},
		{
			Name:               "swiss-city",
			Priority:           60,
			Specificity:        entity.SpecificityCountry,
			SupportedCountries: []string{"CH"},
			Patterns: []entity.PatternDefinition{
				{
					Name:       "city-ch",
					Regex:      `\b(?:zürich|zurich|genève|geneva|genf|basel|bern|berne|lausanne|winterthur|luzern|lucerne|st\.\s?gallen|lugano|biel|bienne|thun|köniz|chur|schaffhausen|fribourg|freiburg|neuchâtel|sion|zug|aarau|baden|olten|solothurn|wil|uster|emmen)\b`,
					BaseScore:  0.6,
					EntityType: "CITY",
				},
			},
		},
		{
			Name:        "person-salutation",
			Priority:    65,
			Specificity: entity.SpecificityRegion,
			Patterns: []entity.PatternDefinition{
				{
					Name:       "salutation-name",
					Regex:      `\b(?:herrn?|frau|mr\.?|mrs\.?|ms\.?|dr\.?|prof\.?|monsieur|madame|sig\.ra|sig\.)\s+[a-zäöüéèê]+(?:\s+[a-zäöüéèê]+)?`,
					BaseScore:  0.55,
					EntityType: "PERSON_SALUTATION",
				},
			},
			DenyPatterns: []string{`(?:herrn?|frau)\s+(?:und|oder|doktor)\b`},
		},
	}
}
