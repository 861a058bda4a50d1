// Command reminderd runs subscription renewal reminder campaigns.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Command().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
