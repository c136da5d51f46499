package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gzhole/shellgate/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
