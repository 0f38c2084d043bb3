package main

import (
	"io"
	"os"

	"github.com/alnah/go-notesite/internal/typst"
)

// closingCompiler is a typst compiler that owns resources.
type closingCompiler interface {
	typst.Compiler
	Close() error
}

// Environment holds injectable dependencies for testability.
type Environment struct {
	Stdout      io.Writer
	Stderr      io.Writer
	NewCompiler func(typst.CompileArgs) (closingCompiler, error)
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		NewCompiler: newCLICompiler,
	}
}

func newCLICompiler(args typst.CompileArgs) (closingCompiler, error) {
	c, err := typst.NewCLICompiler(args)
	if err != nil {
		return nil, err
	}
	return c, nil
}
