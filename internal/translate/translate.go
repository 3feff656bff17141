// Package translate implements the thin orchestrator that discovers VM
// source files, opens the single output sink, and drives the parser and
// code writer over each input file.
package translate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hackstack/vmtranslator/internal/vm"
)

const (
	inputExtension  = ".vm"
	outputExtension = ".asm"
)

// ArgumentError reports an input path that is neither a regular file nor
// a directory, or doesn't exist.
type ArgumentError struct {
	Path string
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: not a valid file or directory: %v", e.Path, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// Run translates the program rooted at path: a single .vm file becomes a
// sibling .asm file; a directory's .vm files become one .asm file named
// after the directory, written inside it. It returns the output file's
// path so callers can, e.g., echo the generated assembly.
func Run(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", &ArgumentError{Path: path, Err: err}
	}

	switch {
	case info.Mode().IsRegular():
		return translateSingleFile(path)
	case info.IsDir():
		return translateDirectory(path)
	default:
		return "", &ArgumentError{Path: path, Err: fmt.Errorf("neither a regular file nor a directory")}
	}
}

func translateSingleFile(path string) (string, error) {
	outputPath := trimExtension(path) + outputExtension
	out, err := createOutputFile(outputPath)
	if err != nil {
		return "", err
	}
	writer := vm.NewCodeWriter(out)
	defer writer.Close()

	if err := translateFile(writer, path); err != nil {
		return "", err
	}
	return outputPath, writer.Close()
}

func translateDirectory(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var sources []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), inputExtension) {
			sources = append(sources, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(sources)

	outputName := filepath.Base(filepath.Clean(dir))
	outputPath := filepath.Join(dir, outputName+outputExtension)
	out, err := createOutputFile(outputPath)
	if err != nil {
		return "", err
	}
	writer := vm.NewCodeWriter(out)
	defer writer.Close()

	for _, src := range sources {
		if err := translateFile(writer, src); err != nil {
			return "", err
		}
	}
	return outputPath, writer.Close()
}

// translateFile drives one source file through a fresh Parser against
// the shared writer. The writer is not reset between files: only the
// unit name changes, so static symbols stay namespaced per file while
// currentFunction and labelCounter carry over across the whole program.
func translateFile(writer *vm.CodeWriter, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fileName := filepath.Base(path)
	writer.SetUnit(trimExtension(fileName))

	parser, err := vm.NewParser(f, fileName)
	if err != nil {
		return err
	}

	for parser.HasMoreCommands() {
		kind, err := parser.CommandType()
		if err != nil {
			return err
		}
		if err := dispatch(writer, parser, kind); err != nil {
			return err
		}
		if err := parser.Advance(); err != nil {
			return err
		}
	}
	return nil
}

// dispatch has one case per command kind, each calling the matching
// CodeWriter operation with the parser's current arguments.
func dispatch(writer *vm.CodeWriter, parser *vm.Parser, kind vm.Kind) error {
	cmd := parser.Command()
	switch kind {
	case vm.Arithmetic:
		return writer.WriteArithmetic(cmd.Op)
	case vm.Push:
		return writer.WritePush(cmd.Segment, cmd.Index)
	case vm.Pop:
		return writer.WritePop(cmd.Segment, cmd.Index)
	case vm.Label:
		return writer.WriteLabel(cmd.Name)
	case vm.Goto:
		return writer.WriteGoto(cmd.Name)
	case vm.IfGoto:
		return writer.WriteIf(cmd.Name)
	case vm.Function:
		return writer.WriteFunction(cmd.Name, cmd.Index)
	case vm.Call:
		return writer.WriteCall(cmd.Name, cmd.Index)
	case vm.Return:
		return writer.WriteReturn()
	default:
		return fmt.Errorf("unreachable: unknown command kind %v", kind)
	}
}

// createOutputFile creates (or truncates) the output assembly file,
// printing an informational notice when it overwrites an existing one.
func createOutputFile(path string) (*os.File, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("The program is overwriting %s\n", filepath.Base(path))
	}
	return os.Create(path)
}

func trimExtension(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext)
}
