package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dreamo-go/dreamo/cmd"
)

func main() {
	cobra.CheckErr(cmd.NewCLI().ExecuteContext(context.Background()))
}
