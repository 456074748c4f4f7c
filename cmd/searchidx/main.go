// Command searchidx manages and queries a search index from the command line
// and can serve an in-memory emulator of the service.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
