// Package main implements the gpulogs CLI.
// It views live GPU instance logs and runs a local log relay.
package main

import "github.com/turbocompute/gpulogs/cmd/gpulogs/cmd"

func main() {
	cmd.Execute()
}
