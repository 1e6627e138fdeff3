// This program estimates the long-run storage footprint of event logs from a
// sample file and can collect a bounded number of samples itself.
package main

import (
	"github.com/cowprotocol/etherum-log-size/app/tooling/logsize/cmd"
)

func main() {
	cmd.Execute()
}
