package httpapi

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html/template"
	"time"

	"shiftdesk/backend/internal/domain"
	"shiftdesk/backend/internal/money"
)

func summaryToCSV(s domain.ShiftSummary) (string, error) {
	rows := [][]string{
		{"section", "key", "value"},
		{"shift", "id", s.ShiftID},
		{"shift", "cashier", s.CashierName},
		{"shift", "started_at", s.StartedAt.Format(time.RFC3339)},
		{"shift", "ended_at", s.EndedAt.Format(time.RFC3339)},
		{"drawer", "initial_cash", s.InitialCash},
		{"sales", "cash", s.SalesCash},
		{"sales", "transfer", s.SalesTransfer},
		{"sales", "discounts", s.TotalDiscounts},
		{"expenses", "cash", s.ExpensesCash},
		{"expenses", "transfer", s.ExpensesTransfer},
		{"drawer", "terminal_balance", s.TerminalBalance},
		{"drawer", "fuel_expense", s.FuelExpense},
		{"drawer", "salary_payments", s.SalaryPayments},
	}
	for _, line := range s.Salaries {
		rows = append(rows, []string{"salary", line.Label, line.Amount})
	}
	for _, line := range s.Categories {
		rows = append(rows, []string{"category", line.Label, line.Amount})
	}
	rows = append(rows,
		[]string{"result", "expected_cash", s.ExpectedCash},
		[]string{"result", "counted_cash", s.CountedCash},
		[]string{"result", "discrepancy", s.Discrepancy},
		[]string{"result", "verdict", s.Verdict},
	)
	if s.Notes != "" {
		rows = append(rows, []string{"shift", "notes", s.Notes})
	}
	return writeCSV(rows)
}

func dailySummaryToCSV(d domain.DailySummary) (string, error) {
	return writeCSV([][]string{
		{"section", "key", "value"},
		{"summary", "date", d.Date},
		{"summary", "shifts", fmt.Sprintf("%d", d.Shifts)},
		{"summary", "paid_orders", fmt.Sprintf("%d", d.PaidOrders)},
		{"income", "cash", money.Format(d.IncomeCash)},
		{"income", "card", money.Format(d.IncomeCard)},
		{"income", "total", money.Format(d.TotalSales)},
		{"expenses", "cash", money.Format(d.ExpenseCash)},
		{"expenses", "transfer", money.Format(d.ExpenseTransfer)},
		{"expenses", "total", money.Format(d.TotalExpenses)},
		{"drawer", "cash_in_drawer", money.Format(d.CashInDrawer)},
	})
}

func writeCSV(rows [][]string) (string, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.WriteAll(rows); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Templates escape every field; cashier names and notes are user input.
var shiftReportHTMLTmpl = template.Must(template.New("shift-report").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Shift Report {{.ShiftID}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.amount { text-align: right; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Shift Report {{.ShiftID}}</h2>
  <p>Cashier: {{.CashierName}}</p>
  <p>Period: {{.StartedAt.Format "2006-01-02 15:04"}} to {{.EndedAt.Format "2006-01-02 15:04"}}</p>

  <table>
    <tbody>
      <tr><td>Opening cash</td><td class="amount">{{.InitialCash}}</td></tr>
      <tr><td>Sales, cash</td><td class="amount">{{.SalesCash}}</td></tr>
      <tr><td>Sales, transfer</td><td class="amount">{{.SalesTransfer}}</td></tr>
      <tr><td>Discounts</td><td class="amount">{{.TotalDiscounts}}</td></tr>
      <tr><td>Expenses, cash</td><td class="amount">{{.ExpensesCash}}</td></tr>
      <tr><td>Expenses, transfer</td><td class="amount">{{.ExpensesTransfer}}</td></tr>
      <tr><td>Terminal balance</td><td class="amount">{{.TerminalBalance}}</td></tr>
      <tr><td>Fuel</td><td class="amount">{{.FuelExpense}}</td></tr>
      <tr><td>Salaries</td><td class="amount">{{.SalaryPayments}}</td></tr>
    </tbody>
  </table>

  {{if .Salaries}}<h3>Salaries</h3>
  <table>
    <tbody>{{range .Salaries}}<tr><td>{{.Label}}</td><td class="amount">{{.Amount}}</td></tr>{{end}}</tbody>
  </table>{{end}}

  {{if .Categories}}<h3>Expenses by category</h3>
  <table>
    <tbody>{{range .Categories}}<tr><td>{{.Label}}</td><td class="amount">{{.Amount}}</td></tr>{{end}}</tbody>
  </table>{{end}}

  <h3>Result</h3>
  <table>
    <tbody>
      <tr><td>Expected cash</td><td class="amount">{{.ExpectedCash}}</td></tr>
      <tr><td>Counted cash</td><td class="amount">{{.CountedCash}}</td></tr>
      <tr><td>Difference</td><td class="amount">{{.Discrepancy}}</td></tr>
      <tr><td>Verdict</td><td class="amount">{{.Verdict}}</td></tr>
    </tbody>
  </table>
  {{if .Notes}}<p>Notes: {{.Notes}}</p>{{end}}
</body>
</html>
`))

var dailyReportHTMLTmpl = template.Must(template.New("daily-report").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Daily Report {{.Date}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.amount { text-align: right; }
  </style>
</head>
<body>
  <h2>Daily Report {{.Date}}</h2>
  <p>Shifts: {{.Shifts}} | Paid orders: {{.PaidOrders}}</p>
  <table>
    <tbody>
      <tr><td>Income, cash</td><td class="amount">{{.IncomeCash.StringFixed 2}}</td></tr>
      <tr><td>Income, card</td><td class="amount">{{.IncomeCard.StringFixed 2}}</td></tr>
      <tr><td>Total sales</td><td class="amount">{{.TotalSales.StringFixed 2}}</td></tr>
      <tr><td>Expenses, cash</td><td class="amount">{{.ExpenseCash.StringFixed 2}}</td></tr>
      <tr><td>Expenses, transfer</td><td class="amount">{{.ExpenseTransfer.StringFixed 2}}</td></tr>
      <tr><td>Total expenses</td><td class="amount">{{.TotalExpenses.StringFixed 2}}</td></tr>
      <tr><td>Cash in drawers</td><td class="amount">{{.CashInDrawer.StringFixed 2}}</td></tr>
    </tbody>
  </table>
</body>
</html>
`))

func summaryToPrintableHTML(s domain.ShiftSummary) string {
	return renderHTML(shiftReportHTMLTmpl, s)
}

func dailySummaryToPrintableHTML(d domain.DailySummary) string {
	return renderHTML(dailyReportHTMLTmpl, d)
}

func renderHTML(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "<!doctype html><html><body><p>Report rendering error.</p></body></html>"
	}
	return buf.String()
}
