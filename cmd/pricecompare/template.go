package main

import (
	"text/template"

	"github.com/shopspring/decimal"
)

var templateFuncs = template.FuncMap{
	"price": func(p decimal.NullDecimal) string {
		if !p.Valid {
			return "n/a"
		}
		return p.Decimal.StringFixed(2)
	},
}

var markdownTemplate = template.Must(template.New("markdownTemplate").Funcs(templateFuncs).Parse(
	`
# Price Comparison
## {{ .Item }}
Identifier: {{ .Identifier }}{{ if .Rating }} · Rating: {{ .Rating }}{{ end }}

Prices in {{ .Reference }}:

| Currency | Price | Source | Link |
|---|---|---|---|
{{ range .Rows -}}
| {{ .Currency }} | {{ price .Price }} | {{ .Source }} | [{{ .Domain }}]({{ .URL }}) |
{{ end }}
{{- with .Savings }}{{ if .Valid }}
Savings: {{ price . }} {{ $.Reference }}
{{- end }}{{ end }}
	`,
))
