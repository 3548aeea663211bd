// Command recordbench loads and runs record-store workloads against MongoDB.
package main

import (
	"os"

	"github.com/nimburion/recordbench/pkg/cli"
)

func main() {
	os.Exit(cli.Execute(cli.NewRootCommand(cli.Options{})))
}
