// winnowtool inspects conversation transcripts and replays the context
// reduction pipeline over them offline.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
