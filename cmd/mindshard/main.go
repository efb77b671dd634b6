package main

import (
	"fmt"
	"os"

	"github.com/oceanbase/mindshard-go/internal/cli"
	"github.com/oceanbase/mindshard-go/pkg/core"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s: %v\n", core.Kind(err), err)
		os.Exit(1)
	}
}
