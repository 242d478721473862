package osenv

import "context"

// DunstNotifier pauses the dunst notification daemon while filtering
type DunstNotifier struct{}

// NewDunstNotifier creates a notifier backed by dunstctl
func NewDunstNotifier() *DunstNotifier {
	return &DunstNotifier{}
}

// EnableFilter holds back notifications until DisableFilter
func (n *DunstNotifier) EnableFilter() error {
	_, err := run(context.Background(), "dunstctl", "set-paused", "true")
	return err
}

// DisableFilter releases held notifications
func (n *DunstNotifier) DisableFilter() error {
	_, err := run(context.Background(), "dunstctl", "set-paused", "false")
	return err
}
