// Package notification renders e-mail templates and hands messages to a
// sender: RabbitMQ for the mailer service, or the log in development.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Message is one outbound e-mail. Template and Data travel with the rendered
// text so the mailer can apply its own HTML layout.
type Message struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Body     string            `json:"body"`
	Template string            `json:"template,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

// EmailSender delivers a message or fails.
type EmailSender interface {
	Send(ctx context.Context, msg Message) error
}

const TemplateHistoryDownloadLink = "history-download-link"

// Template defines a reusable notification template.
type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine renders {{key}} placeholders.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.RegisterTemplate(Template{
		ID:      TemplateHistoryDownloadLink,
		Subject: "Descarga de su historia clínica deportiva",
		Body: "Hola {{athlete_name}},\n\n" +
			"Puede descargar su historia clínica en el siguiente enlace:\n{{url}}\n\n" +
			"Para abrirla debe ingresar su número de documento. El enlace vence el {{expires_at}} " +
			"({{expires_in_hours}} horas) y solo permite una descarga.\n",
	})
	return e
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render fills the template. Placeholders without data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// Notifier renders a template and sends it.
type Notifier struct {
	sender    EmailSender
	templates *TemplateEngine
}

func NewNotifier(sender EmailSender, templates *TemplateEngine) *Notifier {
	if templates == nil {
		templates = NewTemplateEngine()
	}
	return &Notifier{sender: sender, templates: templates}
}

var ErrNoRecipient = errors.New("recipient e-mail is required")

// SendTemplate renders templateID with data and sends it to recipient.
func (n *Notifier) SendTemplate(ctx context.Context, templateID, recipient string, data map[string]string) error {
	if strings.TrimSpace(recipient) == "" {
		return ErrNoRecipient
	}
	subject, body, err := n.templates.Render(templateID, data)
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}
	msg := Message{
		To:       recipient,
		Subject:  subject,
		Body:     body,
		Template: templateID,
		Data:     data,
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", templateID, err)
	}
	return nil
}

// MockEmailSender records messages. Exported for tests in other packages.
type MockEmailSender struct {
	mu         sync.Mutex
	messages   []Message
	ShouldFail bool
	FailError  string
}

func (m *MockEmailSender) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Messages returns a copy of recorded messages.
func (m *MockEmailSender) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}
