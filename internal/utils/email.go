package utils

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/wneessen/go-mail"

	"storefront_back_end/internal/models"
)

type MailerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Currency string
}

// Mailer sends transactional mail over authenticated SMTP with mandatory TLS.
type Mailer struct {
	cfg  MailerConfig
	send func(ctx context.Context, msg *mail.Msg) error
}

func NewMailer(cfg MailerConfig) *Mailer {
	m := &Mailer{cfg: cfg}
	m.send = m.dialAndSend
	return m
}

func (m *Mailer) SendOrderConfirmation(ctx context.Context, to string, order models.Order) error {
	msg, err := m.orderConfirmation(to, order)
	if err != nil {
		return err
	}
	return m.send(ctx, msg)
}

func (m *Mailer) orderConfirmation(to string, order models.Order) (*mail.Msg, error) {
	msg := mail.NewMsg(mail.WithEncoding(mail.NoEncoding))
	if err := msg.From(m.cfg.From); err != nil {
		return nil, err
	}
	if err := msg.To(to); err != nil {
		return nil, err
	}
	msg.Subject("Your order " + order.ID.Hex() + " is confirmed")
	if err := msg.SetBodyHTMLTemplate(orderConfirmationTmpl, newConfirmationView(order, m.cfg.Currency)); err != nil {
		return nil, fmt.Errorf("render confirmation: %w", err)
	}
	return msg, nil
}

func (m *Mailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

type confirmationLine struct {
	Name     string
	Color    string
	Quantity int
	Unit     string
	Total    string
}

type confirmationView struct {
	OrderID string
	Lines   []confirmationLine
	Extras  []confirmationLine
	Total   string
}

func newConfirmationView(order models.Order, currency string) confirmationView {
	v := confirmationView{OrderID: order.ID.Hex(), Total: FormatAmount(order.Total, currency)}
	for _, it := range order.Items {
		v.Lines = append(v.Lines, confirmationLine{
			Name:     it.Name,
			Color:    it.Color,
			Quantity: it.Quantity,
			Unit:     FormatAmount(it.Price, currency),
			Total:    FormatAmount(it.Price*int64(it.Quantity), currency),
		})
	}
	for _, li := range order.LineItems {
		v.Extras = append(v.Extras, confirmationLine{Name: li.Name, Total: FormatAmount(li.Amount, currency)})
	}
	return v
}

// FormatAmount renders minor units as a decimal amount, e.g. 1250 usd -> "12.50 USD".
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, strings.ToUpper(currency))
}

var orderConfirmationTmpl = template.Must(template.New("order_confirmation").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Order confirmation</title></head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
  <div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
    <h2 style="color: #333;">Thanks for your order</h2>
    <p>Your payment went through and order <strong>{{.OrderID}}</strong> is confirmed.</p>
    <table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
      <thead>
        <tr style="background-color: #f0f0f0;">
          <th style="padding: 10px; text-align: left;">Product</th>
          <th style="padding: 10px; text-align: left;">Qty</th>
          <th style="padding: 10px; text-align: left;">Unit price</th>
          <th style="padding: 10px; text-align: left;">Total</th>
        </tr>
      </thead>
      <tbody>
        {{range .Lines}}<tr>
          <td style="padding: 10px;">{{.Name}}{{if .Color}} ({{.Color}}){{end}}</td>
          <td style="padding: 10px;">{{.Quantity}}</td>
          <td style="padding: 10px;">{{.Unit}}</td>
          <td style="padding: 10px;">{{.Total}}</td>
        </tr>{{end}}
        {{range .Extras}}<tr>
          <td style="padding: 10px;" colspan="3">{{.Name}}</td>
          <td style="padding: 10px;">{{.Total}}</td>
        </tr>{{end}}
      </tbody>
      <tfoot>
        <tr>
          <td colspan="3" style="padding: 10px; text-align: right; font-weight: bold;">Total</td>
          <td style="padding: 10px; font-weight: bold;">{{.Total}}</td>
        </tr>
      </tfoot>
    </table>
  </div>
</body>
</html>`))
