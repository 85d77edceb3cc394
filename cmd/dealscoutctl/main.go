// Command dealscoutctl runs the deal sync job and ad-hoc rollup searches.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
