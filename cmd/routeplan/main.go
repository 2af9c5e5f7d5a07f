// Command routeplan plans a single trip from the command line and manages
// the camera snapshot stores the server reads from.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
