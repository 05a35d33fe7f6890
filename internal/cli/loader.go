package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/qsnake/trilinos-sub010/internal/compiler"
	"github.com/qsnake/trilinos-sub010/internal/eval"
	"github.com/qsnake/trilinos-sub010/internal/expr"
)

// LoadMode controls how validation errors are reported during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all validation errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading specs from a directory.
type LoadResult struct {
	Program   *compiler.Program // nil if compilation failed
	FileCount int               // Number of CUE files found
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSpecs loads, compiles and validates the CUE spec package in dir.
// The DAG is wired to the numeric evaluators and logs to logger.
//
// A nil result means the directory could not be loaded at all. Otherwise
// the errors are compile errors (*LoadError) or validation errors
// (compiler.ValidationError); LoadModeFailFast keeps only the first.
func LoadSpecs(dir string, mode LoadMode, logger *slog.Logger) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	value, err := compiler.LoadDir(dir)
	if err != nil {
		return nil, []error{convertCompileError(err, ErrCodeLoadFailed)}
	}

	result := &LoadResult{FileCount: len(cueFiles)}
	prog, err := compiler.Compile(value, eval.NewDAG(expr.WithLogger(logger)))
	if err != nil {
		return result, []error{convertCompileError(err, "")}
	}
	result.Program = prog

	if len(prog.Exprs) == 0 {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: "no expressions found in specs"}}
	}

	var errs []error
	for _, v := range compiler.Validate(prog) {
		errs = append(errs, v)
		if mode == LoadModeFailFast {
			break
		}
	}
	return result, errs
}

// FindCUEFiles returns the .cue files directly inside dir. A spec is a
// single CUE package, so subdirectories are not searched.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// convertCompileError converts a compiler error to a LoadError with
// position info. An empty code maps the error's field.
func convertCompileError(err error, code string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		if code == "" {
			code = MapFieldToErrorCode(compileErr.Field)
		}
		return &LoadError{
			Code:    code,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	if code == "" {
		code = ErrCodeGeneric
	}
	return &LoadError{Code: code, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
// Validation codes (E2xx) are defined by the compiler package.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No CUE files found
	ErrCodeLoadFailed   = "E004" // CUE load or build failed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeBadData      = "E006" // Batch data file unreadable or malformed
	ErrCodeWriteFailed  = "E007" // File or database write error
	ErrCodeHashMismatch = "E008" // Stored run hash does not match its rows

	// Compile errors
	ErrCodeInvalidExpr    = "E101" // Malformed expression node or bad reference
	ErrCodeInvalidDecl    = "E102" // Bad unknown/test declaration
	ErrCodeInvalidContext = "E103" // Malformed context
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	head, _, _ := strings.Cut(field, ".")
	switch head {
	case "cue":
		return ErrCodeLoadFailed
	case "expr":
		return ErrCodeInvalidExpr
	case "unknowns", "tests":
		return ErrCodeInvalidDecl
	case "context":
		return ErrCodeInvalidContext
	default:
		return ErrCodeGeneric
	}
}

// errorCode extracts error code and message from a load error.
func errorCode(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var verr compiler.ValidationError
	if errors.As(err, &verr) {
		return verr.Code, verr.Field + ": " + verr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// loadProgram is LoadSpecs for commands that need a usable program: any
// error is reported through formatter and returned as an ExitError.
func loadProgram(formatter *OutputFormatter, dir string, logger *slog.Logger) (*compiler.Program, error) {
	result, errs := LoadSpecs(dir, LoadModeFailFast, logger)
	if len(errs) > 0 {
		code, message := errorCode(errs[0])
		exit := ExitCommandError
		var verr compiler.ValidationError
		if errors.As(errs[0], &verr) {
			exit = ExitFailure
		}
		return nil, formatter.Fail(exit, code, message, nil)
	}
	formatter.VerboseLog("Loaded %d CUE file(s) from %s", result.FileCount, dir)
	return result.Program, nil
}
