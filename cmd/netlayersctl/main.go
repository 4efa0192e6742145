// Command netlayersctl dissects, crafts, reassembles, and serves metrics for
// Ethernet-family packet captures using the netlayers library.
package main

import "github.com/netlayers/netlayers/cmd/netlayersctl/commands"

func main() {
	commands.Execute()
}
