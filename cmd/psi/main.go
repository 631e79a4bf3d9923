// labeled-psi-server is the command line entry point for running and
// exercising a labeled PSI deployment.
package main

import (
	"os"

	psicli "github.com/drand/labeled-psi/cmd/psi-cli"
	"github.com/drand/labeled-psi/log"
)

func main() {
	app := psicli.CLI()
	if err := app.Run(os.Args); err != nil {
		log.DefaultLogger().Fatal("psi", err)
	}
}
