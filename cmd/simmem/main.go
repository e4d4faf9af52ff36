// Command simmem runs the memory timing emulator against random traffic and
// an instantaneous memory, and reports the delays it imposed.
package main

import "github.com/tebeka/atexit"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
