package webhook

import "github.com/humancheck/humancheck/internal/port/notifier"

func init() {
	notifier.Register(channelType, func(settings map[string]string) (notifier.Notifier, error) {
		return NewNotifier(settings["signing_secret"]), nil
	})
}
