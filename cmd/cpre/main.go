// Command cpre is a standalone text preprocessor: macro expansion,
// conditional compilation and file inclusion over plain text input.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"cpre/internal/input"
	"cpre/internal/macro"
	"cpre/internal/preprocessor"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "cpre: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "cpre",
		Usage:     "preprocess text with C-style directives",
		ArgsUsage: "[infile [outfile]]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "D",
				Usage: "define macro `name[=value]` (value defaults to 1)",
			},
			&cli.StringSliceFlag{
				Name:  "U",
				Usage: "undefine `name` and ignore later defines of it",
			},
			&cli.StringSliceFlag{
				Name:  "I",
				Usage: "add `dir` to the include search path",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "process `file` before the main input",
			},
			&cli.BoolFlag{
				Name:  "nostdinc",
				Usage: "do not search directories from $CPATH",
			},
			&cli.BoolFlag{
				Name:  "E",
				Usage: "preprocess only (accepted for cpp compatibility)",
			},
			&cli.BoolFlag{
				Name:  "line",
				Usage: "re-emit #line directives in the output",
			},
		},
		Action: preprocess,
	}
}

func preprocess(c *cli.Context) error {
	if c.NArg() > 2 {
		return fmt.Errorf("at most two arguments expected, got %d", c.NArg())
	}

	tbl := macro.NewTable()
	for _, d := range c.StringSlice("D") {
		if err := tbl.DefineArg(d); err != nil {
			return fmt.Errorf("-D %s: %w", d, err)
		}
	}
	for _, u := range c.StringSlice("U") {
		tbl.Ban(u)
	}

	st := &input.Stack{
		SearchDirs: c.StringSlice("I"),
		UseEnvPath: !c.Bool("nostdinc"),
	}
	defer st.Close()

	infile := c.Args().Get(0)
	if infile == "" || infile == "-" {
		st.OpenReader("<stdin>", os.Stdin)
	} else if err := st.Open(infile, true); err != nil {
		return err
	}

	// pre-include files run before the main input; pushing in reverse
	// keeps the command-line order
	pre := c.StringSlice("include")
	for i := len(pre) - 1; i >= 0; i-- {
		if err := st.Open(pre[i], true); err != nil {
			return fmt.Errorf("-include %s: %w", pre[i], err)
		}
	}

	out, err := openOutput(c.Args().Get(1))
	if err != nil {
		return err
	}

	opts := preprocessor.Options{
		EmitLineDirectives: c.Bool("line"),
		Diag: func(file string, line int, msg string) {
			fmt.Fprintf(os.Stderr, "%s:%d: %s\n", file, line, msg)
		},
	}
	p := preprocessor.New(tbl, st, out, opts)
	if err := p.Run(); err != nil {
		if f, ok := out.(*os.File); ok && f != os.Stdout {
			f.Close()
			os.Remove(f.Name())
		}
		return err
	}
	if f, ok := out.(*os.File); ok && f != os.Stdout {
		return f.Close()
	}
	return nil
}

func openOutput(name string) (io.Writer, error) {
	if name == "" || name == "-" {
		return os.Stdout, nil
	}
	return os.Create(name)
}
