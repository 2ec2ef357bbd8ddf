package email

import (
	"strconv"

	"github.com/humancheck/humancheck/internal/port/notifier"
)

func init() {
	notifier.Register(channelType, func(settings map[string]string) (notifier.Notifier, error) {
		port := 587
		if p, err := strconv.Atoi(settings["port"]); err == nil {
			port = p
		}
		return NewNotifier(SMTPConfig{
			Host:     settings["host"],
			Port:     port,
			From:     settings["from"],
			Password: settings["password"],
		}), nil
	})
}
