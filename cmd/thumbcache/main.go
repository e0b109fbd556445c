package main

import (
	"os"

	"thumbcache/internal/logging"
)

func main() {
	if err := Execute(); err != nil {
		logging.Error("%v", err)
		os.Exit(1)
	}
}
