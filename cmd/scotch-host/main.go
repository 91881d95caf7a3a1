// Package main provides the scotch-host CLI, a small executable smoke
// test of the public scotch API: loads a compiled guest module and
// confirms it satisfies the host/guest contract, without calling any
// of its exports.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
