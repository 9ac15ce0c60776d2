// Package webhook implements a sender.Provider that posts notification
// messages to an HTTP endpoint.
package webhook

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/pacepace/robocurse/notification/sender"
)

// ProviderType is this provider's registration key.
const ProviderType = "webhook"

// Options configures the webhook sender.
type Options struct {
	Endpoint string
	Method   string
	// Headers is a newline-separated "Key: Value" list applied to every
	// request in addition to whatever the Message itself carries.
	Headers string
	Format  string
}

func (o *Options) applyDefaultsAndValidate() error {
	if o.Method == "" {
		o.Method = http.MethodPost
	}

	if _, err := url.ParseRequestURI(o.Endpoint); err != nil {
		return errors.Wrapf(err, "invalid endpoint %q", o.Endpoint)
	}

	return sender.ValidateMessageFormatAndSetDefault(&o.Format, "txt")
}

type webhookProvider struct {
	opt    Options
	client *http.Client
}

func (p *webhookProvider) Send(ctx context.Context, msg *sender.Message) error {
	req, err := http.NewRequestWithContext(ctx, p.opt.Method, p.opt.Endpoint, strings.NewReader(msg.Body))
	if err != nil {
		return errors.Wrap(err, "building webhook request")
	}

	req.Header.Set("Subject", msg.Subject)

	for k, v := range msg.Headers {
		req.Header.Set(k, v)
	}

	for _, line := range strings.Split(p.opt.Headers, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		req.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "error sending webhook notification")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("webhook returned %d %s", resp.StatusCode, resp.Status)
	}

	return nil
}

func (p *webhookProvider) Summary() string {
	return "Webhook " + p.opt.Method + " " + p.opt.Endpoint
}

func (p *webhookProvider) Format() string { return p.opt.Format }

func init() {
	sender.Register(ProviderType, func(ctx context.Context, options any) (sender.Provider, error) {
		opt, ok := options.(*Options)
		if !ok {
			return nil, errors.Errorf("webhook sender requires *webhook.Options, got %T", options)
		}

		if err := opt.applyDefaultsAndValidate(); err != nil {
			return nil, errors.Wrap(err, "invalid notification configuration")
		}

		return &webhookProvider{opt: *opt, client: http.DefaultClient}, nil
	})
}
