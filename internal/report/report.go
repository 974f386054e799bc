package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html/template"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"cardapio/backend/internal/domain"
)

const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var monthColumns = []string{
	"date", "prev_accumulated", "float", "opening_balance", "inflow", "outflow",
	"final_balance", "cash", "card", "pix", "operators", "empty",
}

// Filename returns the attachment name for a month export.
func Filename(view domain.MonthView, ext string) string {
	return fmt.Sprintf("fluxo-caixa-%s-%04d-%02d.%s", view.TenantID, view.Year, view.Month, ext)
}

func monthRow(day domain.DayRecord) []string {
	return []string{
		day.Date,
		money(day.PrevAccumulated),
		money(day.Float),
		money(day.OpeningBalance),
		money(day.Inflow),
		money(day.Outflow),
		money(day.FinalBalance),
		money(day.Cash),
		money(day.Card),
		money(day.Pix),
		day.Operators,
		fmt.Sprintf("%t", day.Empty),
	}
}

// MonthCSV renders one line per displayed day followed by the summary lines.
func MonthCSV(view domain.MonthView) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(monthColumns); err != nil {
		return "", err
	}
	for _, day := range view.Days {
		if err := w.Write(monthRow(day)); err != nil {
			return "", err
		}
	}
	summary := [][]string{
		{"summary", "total_inflow", money(view.Summary.TotalInflow)},
		{"summary", "total_outflow", money(view.Summary.TotalOutflow)},
		{"summary", "closing_balance", money(view.Summary.ClosingBalance)},
	}
	for _, line := range summary {
		if err := w.Write(line); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var monthHTMLTmpl = template.Must(template.New("cash-flow-month").Funcs(template.FuncMap{
	"money": money,
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Fluxo de Caixa {{printf "%02d" .Month}}/{{.Year}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.num { text-align: right; }
    tr.empty td { color: #888; }
    .neg { color: #b00020; }
  </style>
</head>
<body>
  <h2>Fluxo de Caixa {{printf "%02d" .Month}}/{{.Year}}</h2>
  <p>Restaurante: {{.TenantID}}{{if .TodayOnly}} | Somente hoje ({{.Today}}){{end}}</p>
  <p>Entradas: {{money .Summary.TotalInflow}} | Saídas: {{money .Summary.TotalOutflow}} | Saldo final: {{money .Summary.ClosingBalance}}</p>

  <table>
    <thead><tr><th>Data</th><th>Saldo anterior</th><th>Fundo de caixa</th><th>Abertura</th><th>Entradas</th><th>Saídas</th><th>Saldo final</th><th>Dinheiro</th><th>Cartão</th><th>PIX</th><th>Operadores</th></tr></thead>
    <tbody>{{range .Days}}<tr{{if .Empty}} class="empty"{{end}}><td>{{.Date}}</td><td class="num">{{money .PrevAccumulated}}</td><td class="num">{{money .Float}}</td><td class="num">{{money .OpeningBalance}}</td><td class="num">{{money .Inflow}}</td><td class="num">{{money .Outflow}}</td><td class="num{{if .FinalBalance.IsNegative}} neg{{end}}">{{money .FinalBalance}}</td><td class="num">{{money .Cash}}</td><td class="num">{{money .Card}}</td><td class="num">{{money .Pix}}</td><td>{{.Operators}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

// MonthHTML renders a printable page. Operator names and the tenant id are
// escaped by html/template.
func MonthHTML(view domain.MonthView) (string, error) {
	var buf bytes.Buffer
	if err := monthHTMLTmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// MonthXLSX writes the month as a single-sheet workbook.
func MonthXLSX(view domain.MonthView, out io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Sheet1"
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	for col, name := range monthColumns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheet, "A1", "L1", headerStyle); err != nil {
		return err
	}

	for i, day := range view.Days {
		row := i + 2
		values := []any{
			day.Date,
			day.PrevAccumulated.InexactFloat64(),
			day.Float.InexactFloat64(),
			day.OpeningBalance.InexactFloat64(),
			day.Inflow.InexactFloat64(),
			day.Outflow.InexactFloat64(),
			day.FinalBalance.InexactFloat64(),
			day.Cash.InexactFloat64(),
			day.Card.InexactFloat64(),
			day.Pix.InexactFloat64(),
			day.Operators,
			day.Empty,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("B%d", row), fmt.Sprintf("J%d", row), moneyStyle); err != nil {
			return err
		}
	}

	summaryRow := len(view.Days) + 3
	summary := []struct {
		label string
		value decimal.Decimal
	}{
		{"total_inflow", view.Summary.TotalInflow},
		{"total_outflow", view.Summary.TotalOutflow},
		{"closing_balance", view.Summary.ClosingBalance},
	}
	for i, line := range summary {
		row := summaryRow + i
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row), line.label); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("B%d", row), line.value.InexactFloat64()); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("B%d", row), fmt.Sprintf("B%d", row), moneyStyle); err != nil {
			return err
		}
	}

	return f.Write(out)
}

func money(value decimal.Decimal) string {
	return value.StringFixed(2)
}
