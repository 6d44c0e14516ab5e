package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/brixfix/brixfix-go/internal/privacy"
)

// Sender delivers one alert.
type Sender interface {
	Name() string
	Send(ctx context.Context, title, message string) error
}

// ShoutrrrSender sends through every configured shoutrrr URL with a
// single router.
type ShoutrrrSender struct {
	urls   []string
	sender *router.ServiceRouter
}

// NewShoutrrrSender validates urls and builds the router. Errors are
// scrubbed because shoutrrr URLs embed tokens.
func NewShoutrrrSender(urls []string, timeout time.Duration) (*ShoutrrrSender, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, privacy.WrapError(err)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &ShoutrrrSender{urls: slices.Clone(urls), sender: sender}, nil
}

func (s *ShoutrrrSender) Name() string { return "shoutrrr" }

// Send delivers message to all services and returns the first failure.
// The router applies its own timeout.
func (s *ShoutrrrSender) Send(ctx context.Context, title, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}
	for _, e := range s.sender.Send(message, &params) {
		if e != nil {
			return privacy.WrapError(e)
		}
	}
	return nil
}
