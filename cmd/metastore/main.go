// metastore gRPC server
// Stores entity properties and tags under composite row keys
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	rc := NewRootCommand(os.Stdout, os.Stderr)
	if err := rc.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
