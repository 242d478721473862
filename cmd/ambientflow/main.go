// Command ambientflow watches what you are doing at the desk and adapts the
// room to it: ambient sound, display warmth, notification filtering, breaks
// and reminders.
package main

import "os"

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
