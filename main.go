// Command a11yscan runs the accessibility scan API, one-off scans and the demo site.
package main

import (
	"os"

	"github.com/raysh454/a11yscan/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
