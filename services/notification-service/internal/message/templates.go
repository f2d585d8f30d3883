package message

// Each language defines the subject and body of every kind of email.
var sources = map[string]string{
	"de-CH": `
{{define "confirmation.subject"}}Buchungsbestätigung - {{.Salon.Name}}{{end}}
{{define "confirmation.body"}}Hallo {{.ClientName}},

Ihre Terminbuchung wurde erfolgreich bestätigt! Hier sind die Details Ihres Termins:

{{range .Services}}Dienstleistung: {{.Name}} ({{.Price}})
{{end}}Total: {{.Total}}
Datum und Uhrzeit: {{.Date}} {{.Time}}
Buchungscode: {{.AppointmentID}}

Wichtig:
- Kommen Sie 10 Minuten vor Ihrem Termin
- Bei Stornierung oder Umbuchung kontaktieren Sie uns bitte mindestens 24 Stunden im Voraus

Mit freundlichen Grüssen
Das Team von {{.Salon.Name}}
{{template "footer" .}}{{end}}

{{define "cancellation.subject"}}Stornierung bestätigt - {{.Salon.Name}}{{end}}
{{define "cancellation.body"}}Hallo {{.ClientName}},

wir bestätigen die Stornierung Ihres Termins vom {{.Date}} um {{.Time}}.
{{if .Reason}}Grund: {{.Reason}}
{{end}}
Wenn Sie einen neuen Termin möchten, buchen Sie gerne auf unserer Website oder kontaktieren Sie uns.

Mit freundlichen Grüssen
Das Team von {{.Salon.Name}}
{{template "footer" .}}{{end}}

{{define "review.subject"}}Vielen Dank für Ihren Besuch - {{.Salon.Name}}{{end}}
{{define "review.body"}}Hallo {{.ClientName}},

wir hoffen, Sie waren mit Ihrer Behandlung bei uns zufrieden.

Ihre Meinung ist uns sehr wichtig! Wir würden uns freuen, wenn Sie sich einen Moment Zeit nehmen, um uns auf Google zu bewerten:
{{.Salon.ReviewURL}}

Herzliche Grüsse
Ihr {{.Salon.Name}} Team
{{template "footer" .}}{{end}}

{{define "footer"}}
--
{{.Salon.Name}}{{if .Salon.Address}}
{{.Salon.Address}}{{end}}{{if .Salon.Phone}}
Telefon: {{.Salon.Phone}}{{end}}
Dies ist eine automatische E-Mail. Bitte antworten Sie nicht direkt auf diese Nachricht.
{{end}}`,

	"en": `
{{define "confirmation.subject"}}Booking confirmation - {{.Salon.Name}}{{end}}
{{define "confirmation.body"}}Hello {{.ClientName}},

Your appointment has been confirmed. Here are the details:

{{range .Services}}Service: {{.Name}} ({{.Price}})
{{end}}Total: {{.Total}}
Date and time: {{.Date}} {{.Time}}
Booking code: {{.AppointmentID}}

Please note:
- Arrive 10 minutes before your appointment
- To cancel or reschedule, contact us at least 24 hours in advance

Kind regards
The {{.Salon.Name}} team
{{template "footer" .}}{{end}}

{{define "cancellation.subject"}}Cancellation confirmed - {{.Salon.Name}}{{end}}
{{define "cancellation.body"}}Hello {{.ClientName}},

We confirm that your appointment on {{.Date}} at {{.Time}} has been cancelled.
{{if .Reason}}Reason: {{.Reason}}
{{end}}
If you would like to book again, visit our website or get in touch.

Kind regards
The {{.Salon.Name}} team
{{template "footer" .}}{{end}}

{{define "review.subject"}}Thank you for your visit - {{.Salon.Name}}{{end}}
{{define "review.body"}}Hello {{.ClientName}},

We hope you enjoyed your treatment with us.

Your opinion matters to us. We would be delighted if you took a moment to review us on Google:
{{.Salon.ReviewURL}}

Warm regards
The {{.Salon.Name}} team
{{template "footer" .}}{{end}}

{{define "footer"}}
--
{{.Salon.Name}}{{if .Salon.Address}}
{{.Salon.Address}}{{end}}{{if .Salon.Phone}}
Phone: {{.Salon.Phone}}{{end}}
This is an automated email. Please do not reply to it.
{{end}}`,

	"pt-BR": `
{{define "confirmation.subject"}}Confirmação de Agendamento - {{.Salon.Name}}{{end}}
{{define "confirmation.body"}}Olá {{.ClientName}},

Seu agendamento foi confirmado com sucesso! Aqui estão os detalhes:

{{range .Services}}Serviço: {{.Name}} ({{.Price}})
{{end}}Total: {{.Total}}
Data e hora: {{.Date}} {{.Time}}
Código: {{.AppointmentID}}

Importante:
- Chegue 10 minutos antes do seu horário
- Para cancelamentos ou reagendamentos, contate-nos com pelo menos 24 horas de antecedência

Atenciosamente
Equipe {{.Salon.Name}}
{{template "footer" .}}{{end}}

{{define "cancellation.subject"}}Cancelamento Confirmado - {{.Salon.Name}}{{end}}
{{define "cancellation.body"}}Olá {{.ClientName}},

Confirmamos o cancelamento do seu agendamento de {{.Date}} às {{.Time}}.
{{if .Reason}}Motivo: {{.Reason}}
{{end}}
Se desejar reagendar, acesse nosso site ou entre em contato conosco.

Atenciosamente
Equipe {{.Salon.Name}}
{{template "footer" .}}{{end}}

{{define "review.subject"}}Obrigado pela sua visita - {{.Salon.Name}}{{end}}
{{define "review.body"}}Olá {{.ClientName}},

Esperamos que tenha gostado do seu atendimento.

Sua opinião é muito importante para nós! Ficaríamos felizes se você tirasse um momento para nos avaliar no Google:
{{.Salon.ReviewURL}}

Atenciosamente
Equipe {{.Salon.Name}}
{{template "footer" .}}{{end}}

{{define "footer"}}
--
{{.Salon.Name}}{{if .Salon.Address}}
{{.Salon.Address}}{{end}}{{if .Salon.Phone}}
Telefone: {{.Salon.Phone}}{{end}}
Este é um e-mail automático. Por favor, não responda diretamente.
{{end}}`,
}
