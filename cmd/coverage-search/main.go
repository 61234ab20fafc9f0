package main

import (
	"os"

	"k8s.io/component-base/cli"

	"github.com/mihai-snyk/coverage-search/cmd/coverage-search/app"
)

func main() {
	command := app.NewCommand()
	code := cli.Run(command)
	os.Exit(code)
}
