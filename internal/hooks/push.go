package hooks

import (
	"fmt"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// PushHook sends detection and night-complete notifications to one or more
// shoutrrr service URLs (ntfy, telegram, discord and so on).
type PushHook struct {
	NoopHook
	sender *router.ServiceRouter
}

// NewPushHook creates a PushHook for the given service URLs.
func NewPushHook(urls ...string) (*PushHook, error) {
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("creating push sender: %w", err)
	}
	return &PushHook{sender: sender}, nil
}

func (p *PushHook) send(title, body string) {
	params := stypes.Params{}
	params.SetTitle(title)
	for _, err := range p.sender.Send(body, &params) {
		if err != nil {
			logger().Warn("Push delivery failed", "error", err)
		}
	}
}

func (p *PushHook) OnDetection(event DetectionEvent) {
	p.send("Meteor candidate",
		fmt.Sprintf("%s %02d:%02d: %d line(s)", event.DateStr, event.Hour, event.Minute, event.LineCount))
}

func (p *PushHook) OnNightComplete(event NightCompleteEvent) {
	p.send("Night complete",
		fmt.Sprintf("%s: %d detection(s)", event.DateStr, event.DetectionCount))
}
