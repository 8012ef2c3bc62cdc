package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/MeKo-Tech/pdflabels/cmd/pdflabels/cmd"
	"github.com/MeKo-Tech/pdflabels/internal/version"
	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		os.Exit(1)
	}

	root := cmd.NewRootCommand()
	err := fang.Execute(context.Background(), root,
		fang.WithVersion(version.Version),
		fang.WithCommit(version.GitCommit),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			fang.DefaultErrorHandler(w, styles, err)
			var usageErr *cmd.UsageError
			if errors.As(err, &usageErr) {
				_, _ = fmt.Fprintln(w, root.UsageString())
			}
		}),
	)
	os.Exit(cmd.ExitCode(err))
}
