package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	ttemplate "text/template"

	"github.com/Pasan-pramu/remind/policy"
)

// MailInfo is the data every reminder template renders.
type MailInfo struct {
	UserName            string
	SubscriptionName    string
	RenewalDate         string
	PlanName            string
	Price               string
	PaymentMethod       string
	AccountSettingsLink string
	SupportLink         string
	DaysLeft            int
}

// Email is a rendered reminder.
type Email struct {
	Subject string
	HTML    string
}

// Template renders one reminder label.
type Template struct {
	Label    string
	DaysLeft int
	subject  *ttemplate.Template
	body     *template.Template
}

// Renderer maps reminder labels to templates. A well-formed label with
// no template of its own renders with the default template.
type Renderer struct {
	templates           map[string]*Template
	fallback            *Template
	accountSettingsLink string
	supportLink         string
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithLinks sets the account settings and support links shown in mails.
func WithLinks(accountSettings, support string) RendererOption {
	return func(r *Renderer) {
		r.accountSettingsLink = accountSettings
		r.supportLink = support
	}
}

const (
	defaultSubject = `{{if le .DaysLeft 1}}⚡ Final Reminder: {{.SubscriptionName}} Renews Tomorrow!{{else}}📅 Reminder: Your {{.SubscriptionName}} Subscription Renews in {{.DaysLeft}} Days!{{end}}`

	defaultBody = `<div style="font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 0; background-color: #f4f7fa;">
  <p style="font-size: 17px; margin-bottom: 25px;">Hello <strong style="color: #4a90e2;">{{.UserName}}</strong>,</p>
  <p style="font-size: 16px; margin-bottom: 25px;">Your <strong>{{.SubscriptionName}}</strong> subscription is set to renew on <strong style="color: #4a90e2;">{{.RenewalDate}}</strong> ({{.DaysLeft}} {{if eq .DaysLeft 1}}day{{else}}days{{end}} from today).</p>
  <table style="width: 100%; border-collapse: collapse; margin-bottom: 25px;">
    <tr><td style="padding: 10px;"><strong>Plan:</strong> {{.PlanName}}</td></tr>
    <tr><td style="padding: 10px;"><strong>Price:</strong> {{.Price}}</td></tr>
    <tr><td style="padding: 10px;"><strong>Payment Method:</strong> {{.PaymentMethod}}</td></tr>
  </table>
  <p style="font-size: 16px; margin-bottom: 25px;">If you'd like to make changes or cancel your subscription, please visit your <a href="{{.AccountSettingsLink}}" style="color: #4a90e2; text-decoration: none;">account settings</a> before the renewal date.</p>
  <p style="font-size: 16px; margin-top: 30px;">Need help? <a href="{{.SupportLink}}" style="color: #4a90e2; text-decoration: none;">Contact our support team</a> anytime.</p>
</div>`
)

// NewRenderer returns a Renderer with one template per offset. Offsets
// that are not positive are ignored. Immediate reminders inside the
// window carry labels between offsets; those use the default template.
func NewRenderer(offsets []int, opts ...RendererOption) (*Renderer, error) {
	r := &Renderer{
		templates:           make(map[string]*Template, len(offsets)),
		accountSettingsLink: "https://example.com/settings",
		supportLink:         "https://example.com/support",
	}
	for _, opt := range opts {
		opt(r)
	}
	fallback, err := parseTemplate("default", 0, defaultSubject, defaultBody)
	if err != nil {
		return nil, err
	}
	r.fallback = fallback
	for _, days := range offsets {
		if days <= 0 {
			continue
		}
		if err := r.Register(policy.Label(days), days, defaultSubject, defaultBody); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds or replaces the template for label.
func (r *Renderer) Register(label string, daysLeft int, subject, body string) error {
	tpl, err := parseTemplate(label, daysLeft, subject, body)
	if err != nil {
		return err
	}
	r.templates[label] = tpl
	return nil
}

func parseTemplate(label string, daysLeft int, subject, body string) (*Template, error) {
	st, err := ttemplate.New(label + ":subject").Parse(subject)
	if err != nil {
		return nil, fmt.Errorf("notify: parse subject for %q: %w", label, err)
	}
	bt, err := template.New(label + ":body").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("notify: parse body for %q: %w", label, err)
	}
	return &Template{Label: label, DaysLeft: daysLeft, subject: st, body: bt}, nil
}

// lookup finds the template for label and the day count it renders.
func (r *Renderer) lookup(label string) (*Template, int, bool) {
	if tpl, ok := r.templates[label]; ok {
		return tpl, tpl.DaysLeft, true
	}
	if days, ok := policy.ParseLabel(label); ok && r.fallback != nil {
		return r.fallback, days, true
	}
	return nil, 0, false
}

// Labels returns the registered labels, sorted.
func (r *Renderer) Labels() []string {
	out := make([]string, 0, len(r.templates))
	for l := range r.templates {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Render produces the email for msg.
func (r *Renderer) Render(msg Message) (Email, error) {
	if err := msg.Validate(); err != nil {
		return Email{}, err
	}
	tpl, daysLeft, ok := r.lookup(msg.Label)
	if !ok {
		return Email{}, fmt.Errorf("%w: %q, available: %s", ErrUnknownLabel, msg.Label, strings.Join(r.Labels(), ", "))
	}

	sub := msg.Subscription
	info := MailInfo{
		UserName:            sub.User.Name,
		SubscriptionName:    sub.Name,
		RenewalDate:         sub.RenewalDate.Format("Jan 2, 2006"),
		PlanName:            sub.Name,
		Price:               sub.PriceLabel(),
		PaymentMethod:       sub.PaymentMethod,
		AccountSettingsLink: r.accountSettingsLink,
		SupportLink:         r.supportLink,
		DaysLeft:            daysLeft,
	}

	var subject, body bytes.Buffer
	if err := tpl.subject.Execute(&subject, info); err != nil {
		return Email{}, fmt.Errorf("notify: render subject %q: %w", msg.Label, err)
	}
	if err := tpl.body.Execute(&body, info); err != nil {
		return Email{}, fmt.Errorf("notify: render body %q: %w", msg.Label, err)
	}
	return Email{Subject: subject.String(), HTML: body.String()}, nil
}
