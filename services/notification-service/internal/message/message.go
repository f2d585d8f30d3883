// Package message renders the plain-text emails sent to salon clients.
package message

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/Bobtechma/schonheitslokal2/libs/events"
)

const DefaultLanguage = "de-CH"

type Kind string

const (
	KindConfirmation  Kind = "confirmation"
	KindCancellation  Kind = "cancellation"
	KindReviewRequest Kind = "review"
)

var ErrNoRecipient = errors.New("client has no email address")

type Salon struct {
	Name      string
	Address   string
	Phone     string
	ReviewURL string
}

type Message struct {
	Kind     Kind
	Language string
	To       string
	ToName   string
	Subject  string
	Body     string
}

type Renderer struct {
	salon     Salon
	templates map[string]*template.Template
}

func NewRenderer(salon Salon) (*Renderer, error) {
	r := &Renderer{salon: salon, templates: make(map[string]*template.Template, len(sources))}
	for lang, src := range sources {
		t, err := template.New(lang).Option("missingkey=error").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse %s templates: %w", lang, err)
		}
		r.templates[lang] = t
	}
	return r, nil
}

// Language maps a client's language tag onto one the emails are written in.
func Language(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	switch {
	case strings.HasPrefix(tag, "en"):
		return "en"
	case strings.HasPrefix(tag, "pt"):
		return "pt-BR"
	default:
		return DefaultLanguage
	}
}

type line struct {
	Name  string
	Price string
}

type data struct {
	Salon         Salon
	ClientName    string
	Date          string
	Time          string
	Services      []line
	Total         string
	AppointmentID string
	Reason        string
}

func (r *Renderer) Confirmation(p events.AppointmentBookedPayload) (Message, error) {
	lang := Language(p.Client.Language)
	d := r.base(p.Client, lang, p.Date, p.Start)
	d.AppointmentID = p.AppointmentID
	d.Total = FormatPrice(p.TotalCents)
	for _, s := range p.Services {
		d.Services = append(d.Services, line{Name: s.Name, Price: FormatPrice(s.PriceCents)})
	}
	return r.render(KindConfirmation, lang, p.Client, d)
}

func (r *Renderer) Cancellation(p events.AppointmentCancelledPayload) (Message, error) {
	lang := Language(p.Client.Language)
	d := r.base(p.Client, lang, p.Date, p.Start)
	d.Reason = p.Reason
	return r.render(KindCancellation, lang, p.Client, d)
}

func (r *Renderer) ReviewRequest(p events.ReviewRequestedPayload) (Message, error) {
	lang := Language(p.Client.Language)
	d := r.base(p.Client, lang, p.Date, p.Start)
	return r.render(KindReviewRequest, lang, p.Client, d)
}

func (r *Renderer) base(c events.Client, lang, date, start string) data {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = fallbackName[lang]
	}
	return data{
		Salon:      r.salon,
		ClientName: name,
		Date:       FormatDate(date, lang),
		Time:       start,
	}
}

var fallbackName = map[string]string{
	"de-CH": "Kundin, Kunde",
	"en":    "there",
	"pt-BR": "cliente",
}

func (r *Renderer) render(kind Kind, lang string, c events.Client, d data) (Message, error) {
	to := strings.TrimSpace(c.Email)
	if to == "" {
		return Message{}, ErrNoRecipient
	}
	t, ok := r.templates[lang]
	if !ok {
		return Message{}, fmt.Errorf("no templates for language %q", lang)
	}

	var subject, body strings.Builder
	if err := t.ExecuteTemplate(&subject, string(kind)+".subject", d); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", kind, err)
	}
	if err := t.ExecuteTemplate(&body, string(kind)+".body", d); err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", kind, err)
	}
	return Message{
		Kind:     kind,
		Language: lang,
		To:       to,
		ToName:   strings.TrimSpace(c.Name),
		Subject:  subject.String(),
		Body:     body.String(),
	}, nil
}

// FormatPrice renders cents as Swiss francs, e.g. "CHF 72.00".
func FormatPrice(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("CHF %s%d.%02d", sign, cents/100, cents%100)
}

// FormatDate renders a YYYY-MM-DD date the way the language writes it.
// Unparseable input is returned unchanged.
func FormatDate(date, lang string) string {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	switch lang {
	case "en":
		return d.Format("2 January 2006")
	case "pt-BR":
		return d.Format("02/01/2006")
	default:
		return d.Format("02.01.2006")
	}
}
