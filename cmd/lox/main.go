package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/op/go-logging"
	"github.com/urfave/cli"

	"github.com/kristofer/loxvm/internal/chunk"
	"github.com/kristofer/loxvm/internal/compiler"
	"github.com/kristofer/loxvm/internal/debug"
	"github.com/kristofer/loxvm/internal/gc"
	"github.com/kristofer/loxvm/internal/loxlog"
	"github.com/kristofer/loxvm/internal/object"
	"github.com/kristofer/loxvm/internal/vm"
)

const version = "0.1.0"

var (
	errColor    = color.New(color.FgRed)
	echoColor   = color.New(color.FgCyan)
	promptColor = color.New(color.FgGreen)
)

func main() {
	app := cli.NewApp()
	app.Name = "lox"
	app.Usage = "a bytecode compiler and virtual machine for Lox"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "trace",
			Usage: "log every executed instruction to stderr",
		},
		cli.BoolFlag{
			Name:  "stress-gc",
			Usage: "run a full collection before every allocation",
		},
	}
	app.Action = func(c *cli.Context) error {
		switch c.NArg() {
		case 0:
			runREPL(c)
		case 1:
			os.Exit(runFile(c, c.Args().Get(0)))
		default:
			fmt.Fprintln(os.Stderr, "usage: lox [path]")
			os.Exit(64)
		}
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:      "run",
			Usage:     "compile and run a .lox source file",
			ArgsUsage: "<file>",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return cli.NewExitError("usage: lox run <file>", 64)
				}
				os.Exit(runFile(c, c.Args().Get(0)))
				return nil
			},
		},
		{
			Name:      "disassemble",
			Usage:     "compile a .lox source file and print its bytecode",
			ArgsUsage: "<file>",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return cli.NewExitError("usage: lox disassemble <file>", 64)
				}
				return disassembleFile(c.Args().Get(0))
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger returns nil (the untyped interface nil, not a nil *logging.Logger
// wrapped in an interface) when tracing is off, so the VM's "log != nil"
// trace check in its dispatch loop behaves correctly.
func newLogger(c *cli.Context) vm.Logger {
	if !c.GlobalBool("trace") && !c.Bool("trace") {
		return nil
	}
	return loxlog.Setup("lox", logging.DEBUG)
}

// runFile runs a .lox source file and returns the process exit code
// (spec.md 7: 0 ok, 65 compile error, 70 runtime error).
func runFile(c *cli.Context, path string) int {
	source, err := os.ReadFile(path)
	if err != nil {
		errColor.Fprintf(os.Stderr, "can't read '%s': %v\n", path, err)
		return 74
	}

	stress := c.GlobalBool("stress-gc") || c.Bool("stress-gc")
	machine := vm.New(stress, newLogger(c))
	switch machine.Interpret(string(source)) {
	case vm.ResultCompileError:
		return 65
	case vm.ResultRuntimeError:
		return 70
	default:
		return 0
	}
}

func disassembleFile(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("can't read '%s': %v", path, err), 74)
	}

	heap := gc.New(false, nil)
	fn, ok := compiler.Compile(heap, string(source))
	if !ok {
		return cli.NewExitError("compile error", 65)
	}
	debug.Disassemble(os.Stdout, fn.Chunk, path)
	disassembleNested(fn.Chunk)
	return nil
}

// disassembleNested walks every Function in the chunk's constant pool
// (whether loaded by OP_CONSTANT or OP_CLOSURE), since Disassemble only
// prints the top-level chunk's own instructions.
func disassembleNested(c *chunk.Chunk) {
	for _, v := range c.Constants {
		if !v.IsObj() {
			continue
		}
		fn, ok := v.AsObj().(*object.Function)
		if !ok {
			continue
		}
		fmt.Println()
		debug.Disassemble(os.Stdout, fn.Chunk, fn.String())
		disassembleNested(fn.Chunk)
	}
}

func runREPL(c *cli.Context) {
	fmt.Printf("lox %s\n", version)
	fmt.Println("Ctrl+D to exit")

	stress := c.GlobalBool("stress-gc") || c.Bool("stress-gc")
	machine := vm.New(stress, newLogger(c))
	reader := bufio.NewScanner(os.Stdin)

	for {
		promptColor.Print("> ")
		if !reader.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}
		if machine.Interpret(line) == vm.ResultOK {
			echoColor.Printf("=> %s\n", machine.LastValue().String())
		}
	}
}
