// Package sender defines the notification Provider contract and the
// Message format every provider sends (spec.md §6 Notifier: "Core never
// formats messages itself" — formatting happens here, downstream of the
// core, not in the orchestrator).
package sender

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Severity orders notification messages so a sender can filter below a
// configured threshold (e.g. only forward Warning and above).
type Severity int

const (
	SeverityVerbose Severity = 0
	SeverityWarning Severity = 10
	SeverityError   Severity = 20
)

// Message is the provider-agnostic notification payload.
type Message struct {
	Subject  string            `json:"subject"`
	Severity Severity          `json:"severity"`
	Body     string            `json:"body,omitempty"`
	Headers  map[string]string `json:"-"`
}

// ToString renders msg in the "Subject: ...\nHeader: value\n\nBody" form
// ParseMessage reads back. Headers are written in sorted key order.
func (m *Message) ToString() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Subject: %s\n", m.Subject)

	keys := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, m.Headers[k])
	}

	b.WriteString("\n")
	b.WriteString(m.Body)

	return b.String()
}

// ParseMessage reverses ToString: a header block (Subject plus
// "Key: Value" lines, any non-conforming line dropped) followed by a
// blank line and the body.
func ParseMessage(_ context.Context, r io.Reader) (*Message, error) {
	scanner := bufio.NewScanner(r)

	msg := &Message{Headers: map[string]string{}}

	var bodyLines []string

	inBody := false

	for scanner.Scan() {
		line := scanner.Text()

		if inBody {
			bodyLines = append(bodyLines, line)
			continue
		}

		if line == "" {
			inBody = true
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if strings.EqualFold(key, "Subject") {
			msg.Subject = value
			continue
		}

		msg.Headers[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading message")
	}

	if len(msg.Headers) == 0 {
		msg.Headers = nil
	}

	if !inBody {
		return nil, errors.New("no body found in message")
	}

	msg.Body = strings.Join(bodyLines, "\n")

	return msg, nil
}

// ValidateMessageFormatAndSetDefault validates format is one of
// "txt"/"html" (empty is allowed and defaults to def).
func ValidateMessageFormatAndSetDefault(format *string, def string) error {
	if *format == "" {
		*format = def
		return nil
	}

	switch *format {
	case "txt", "html":
		return nil
	default:
		return errors.Errorf("invalid format: %s", *format)
	}
}

// Provider sends a Message through a concrete transport (webhook, test
// capture, ...).
type Provider interface {
	Send(ctx context.Context, msg *Message) error
	Summary() string
	Format() string
}

// Factory builds a Provider from options decoded by the caller (the CLI
// or config loader, per spec.md §1 Out of scope: config parsing is an
// external collaborator).
type Factory func(ctx context.Context, options any) (Provider, error)

var (
	registryMu sync.Mutex
	registry   = map[string]Factory{}
)

// Register associates providerType with factory. Provider packages call
// this from an init() func, mirroring the teacher's sender.Register
// pattern.
func Register(providerType string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[providerType] = factory
}

// GetSender builds a Provider of providerType. profileName is carried
// only for error messages/logging; providers are otherwise stateless
// with respect to it.
func GetSender(ctx context.Context, profileName, providerType string, options any) (Provider, error) {
	registryMu.Lock()
	factory, ok := registry[providerType]
	registryMu.Unlock()

	if !ok {
		return nil, errors.Errorf("unknown notification provider type %q (profile %q)", providerType, profileName)
	}

	p, err := factory(ctx, options)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %q sender for profile %q", providerType, profileName)
	}

	return p, nil
}
