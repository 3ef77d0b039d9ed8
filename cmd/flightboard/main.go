// Command flightboard polls the flight pipeline services and shows their
// statistics and sample events on a web page and/or a terminal console.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Stderr.WriteString("flightboard: " + err.Error() + "\n")
		os.Exit(1)
	}
}
