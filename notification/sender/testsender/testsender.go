// Package testsender provides a sender.Provider that captures messages
// in-memory instead of delivering them, for use in tests.
package testsender

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/pacepace/robocurse/notification/sender"
)

// ProviderType is this provider's registration key.
const ProviderType = "testsender"

type capturedMessagesKeyType string

const capturedMessagesKey capturedMessagesKeyType = "robocurse-captured-messages"

type captured struct {
	mu       sync.Mutex
	messages []*sender.Message
}

// CaptureMessages returns a context that accumulates every Message sent
// by a testsender Provider created within it. Retrieve them with
// MessagesInContext.
func CaptureMessages(ctx context.Context) context.Context {
	return context.WithValue(ctx, capturedMessagesKey, &captured{})
}

// MessagesInContext returns the messages captured so far in ctx.
func MessagesInContext(ctx context.Context) []*sender.Message {
	c, ok := ctx.Value(capturedMessagesKey).(*captured)
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*sender.Message(nil), c.messages...)
}

// Options configures the test sender.
type Options struct {
	Format string
}

type provider struct {
	format string
}

func (p *provider) Send(ctx context.Context, msg *sender.Message) error {
	c, ok := ctx.Value(capturedMessagesKey).(*captured)
	if !ok {
		return errors.New("test sender not configured: call testsender.CaptureMessages first")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, msg)

	return nil
}

func (p *provider) Summary() string { return "Test sender" }
func (p *provider) Format() string  { return p.format }

func init() {
	sender.Register(ProviderType, func(_ context.Context, options any) (sender.Provider, error) {
		opt, _ := options.(*Options)
		if opt == nil {
			opt = &Options{}
		}

		if err := sender.ValidateMessageFormatAndSetDefault(&opt.Format, "txt"); err != nil {
			return nil, err
		}

		return &provider{format: opt.Format}, nil
	})
}
