package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/wasi-runner/errors"
	"github.com/wippyai/wasi-runner/runtime"
)

func inspectCommand() *cobra.Command {
	var interactive, asJSON bool

	command := &cobra.Command{
		Use:   "inspect <module.wasm>",
		Short: "List a module's imports and exports",
		Long: "inspect compiles a module without running it and lists its imports, marked\n" +
			"supported or missing against the wasi_snapshot_preview1 import table, and its exports.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Load("read module "+args[0], err)
			}
			report, err := runtime.Inspect(cmd.Context(), data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case interactive && isTerminal(out):
				return runInteractive(args[0], report)
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			default:
				printReport(out, args[0], report)
				return nil
			}
		},
	}
	command.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse the report in a terminal UI")
	command.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return command
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printReport(w io.Writer, path string, r *runtime.Report) {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Module"))
	b.WriteString(" ")
	b.WriteString(path)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Imports (%d):\n", len(r.Imports))
	for _, imp := range r.Imports {
		b.WriteString("  ")
		b.WriteString(formatImport(imp))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nExports (%d):\n", len(r.Exports))
	for _, exp := range r.Exports {
		b.WriteString("  ")
		b.WriteString(formatExport(exp))
		b.WriteString("\n")
	}

	b.WriteString("\nRunnable: ")
	if r.Runnable() {
		b.WriteString(resultStyle.Render("yes"))
	} else {
		b.WriteString(errorStyle.Render("no"))
	}
	b.WriteString("\n")

	_, _ = io.WriteString(w, b.String())
}

func formatImport(imp runtime.Import) string {
	status := resultStyle.Render("ok")
	if !imp.Supported {
		status = errorStyle.Render("missing")
	}
	line := status + " " + funcStyle.Render(imp.Module+"."+imp.Name) + " " + imp.Kind
	if imp.Signature != "" {
		line += " " + typeStyle.Render(imp.Signature)
	}
	return line
}

func formatExport(exp runtime.Export) string {
	line := funcStyle.Render(exp.Name) + " " + exp.Kind
	if exp.Signature != "" {
		line += " " + typeStyle.Render(exp.Signature)
	}
	return line
}
