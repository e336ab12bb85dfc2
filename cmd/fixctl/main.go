// fixctl is the admin CLI client for the fixd daemon's JSON HTTP API.
package main

import "github.com/dantte-lp/gofix/cmd/fixctl/commands"

func main() {
	commands.Execute()
}
