// Command adotb is the entry point for the retrieval-augmented chatbot
// backend. It provides a CLI interface (via Cobra) for running the HTTP and
// websocket server and for loading documents into the vector store from the
// terminal.
package main

import (
	"fmt"
	"os"

	"github.com/adotb/adotb-go/cmd/adotb/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
