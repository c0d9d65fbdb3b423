package email

import (
	"bytes"
	"html/template"

	"github.com/shopspring/decimal"
)

// OrderItem represents an item in an order for email purposes
type OrderItem struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal is unit price times quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderSummary is the order data rendered into notification emails.
type OrderSummary struct {
	OrderID string
	Items   []OrderItem
	Total   decimal.Decimal
	Reason  string
}

// ShortID is the first eight characters of the order ID, used in subjects.
func (s OrderSummary) ShortID() string {
	if len(s.OrderID) > 8 {
		return s.OrderID[:8]
	}
	return s.OrderID
}

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}

const layoutHTML = `{{define "items"}}
		<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left;">Item</th>
					<th style="padding: 12px; text-align: center;">Qty</th>
					<th style="padding: 12px; text-align: right;">Price</th>
					<th style="padding: 12px; text-align: right;">Subtotal</th>
				</tr>
			</thead>
			<tbody>
			{{- range .Items}}
				<tr>
					<td style="padding: 12px; border-bottom: 1px solid #eee;">{{.Name}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">{{.Quantity}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">{{money .UnitPrice}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">{{money .Subtotal}}</td>
				</tr>
			{{- end}}
			</tbody>
			<tfoot>
				<tr>
					<td colspan="3" style="padding: 12px; text-align: right; font-weight: bold;">Total</td>
					<td style="padding: 12px; text-align: right; font-weight: bold;">{{money .Total}}</td>
				</tr>
			</tfoot>
		</table>
{{end}}`

const confirmationHTML = `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #4f46e5; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Thank you for your order</h1>
	</div>
	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">We have received your order and it is now being processed.</p>
		<p style="font-size: 14px; color: #666;">Order number</p>
		<p style="font-size: 18px; font-weight: bold; font-family: monospace;">{{.OrderID}}</p>
		{{template "items" .}}
	</div>
</body>
</html>`

const cancellationHTML = `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #6b7280; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Your order was cancelled</h1>
	</div>
	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">Order <strong style="font-family: monospace;">{{.OrderID}}</strong> has been cancelled.</p>
		{{- if .Reason}}
		<p>Reason: {{.Reason}}</p>
		{{- end}}
		{{template "items" .}}
	</div>
</body>
</html>`

var (
	confirmationTmpl = template.Must(template.Must(template.New("confirmation").Funcs(funcs).Parse(layoutHTML)).Parse(confirmationHTML))
	cancellationTmpl = template.Must(template.Must(template.New("cancellation").Funcs(funcs).Parse(layoutHTML)).Parse(cancellationHTML))
)

// BuildOrderConfirmationBody builds the HTML body for order confirmation email
func BuildOrderConfirmationBody(s OrderSummary) (string, error) {
	return render(confirmationTmpl, s)
}

// BuildOrderCancellationBody builds the HTML body for order cancellation email
func BuildOrderCancellationBody(s OrderSummary) (string, error) {
	return render(cancellationTmpl, s)
}

func render(t *template.Template, s OrderSummary) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}
