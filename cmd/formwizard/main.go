// Command formwizard walks the marketplace wizards in the terminal, lints
// wizard template documents and manages the stored API credential.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "formwizard:", err)
		os.Exit(1)
	}
}
