// Cuse is a local interception proxy for the N++ level browser.
//
// It patches the game's client library to talk to a local listener, answers
// level searches from a custom search backend and forwards every other
// request to the real game server.
//
// Usage:
//
//	# Start the proxy, patching the library until Ctrl+C
//	cuse run
//
//	# Start with a custom configuration file
//	cuse run --config /path/to/config.yaml
//
//	# Check or restore the library by hand
//	cuse status
//	cuse unpatch
//
//	# Inspect a captured or saved payload
//	cuse decode res_12.bin --format json
//
//	# List recorded exchanges
//	cuse captures list --route intercept
package main

func main() {
	Execute()
}
