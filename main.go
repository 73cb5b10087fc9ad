// Reachgraph - reachability search over the call and type graph of Go code.
//
// Reachgraph indexes a Go module into a snapshot of classes and methods and
// answers which chains of calls and type usages lead away from, or into, a
// root class or method.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/reachgraph/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
