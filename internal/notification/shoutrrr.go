package notification

import (
	"context"
	"io"
	"log"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/agrisense/farm-advisor/internal/errors"
)

// ShoutrrrProvider sends disease warnings to every configured shoutrrr URL
// (Telegram, Slack, ntfy, email and so on) through a single router.
type ShoutrrrProvider struct {
	urls   []string
	sender *router.ServiceRouter
}

// NewShoutrrrProvider validates urls by building the router.
func NewShoutrrrProvider(urls []string, timeout time.Duration) (*ShoutrrrProvider, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one shoutrrr URL is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.New(err).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("provider", "shoutrrr").
			Build()
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &ShoutrrrProvider{urls: slices.Clone(urls), sender: sender}, nil
}

func (s *ShoutrrrProvider) Name() string { return "shoutrrr" }

// Supports accepts only leaf diagnoses that need treatment.
func (s *ShoutrrrProvider) Supports(e *Event) bool {
	return e.Kind == KindLeafDiagnosis && e.Severity == SeverityWarning
}

// Send delivers e to every URL and returns the first failure.
func (s *ShoutrrrProvider) Send(_ context.Context, e *Event) error {
	params := stypes.Params{}
	params.SetTitle(e.Title)

	body := e.Message
	if e.Username != "" {
		body += "\nReported by " + e.Username
	}

	for _, err := range s.sender.Send(body, &params) {
		if err != nil {
			return errors.New(err).
				Component("notification").
				Category(errors.CategoryNotification).
				Context("provider", "shoutrrr").
				Context("url_count", len(s.urls)).
				Build()
		}
	}
	return nil
}

func (s *ShoutrrrProvider) Close() error { return nil }
