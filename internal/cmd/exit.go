package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"go.uber.org/zap"

	"github.com/pkgmeta/repometa/internal/core/processor"
	apperrors "github.com/pkgmeta/repometa/internal/errors"
	"github.com/pkgmeta/repometa/internal/observability"
	"github.com/pkgmeta/repometa/internal/secret"
)

// exitCodeFor maps a command failure to a semantic exit code so scripts
// can tell a bad purl from a missing repositories file or a slow registry.
func exitCodeFor(err error) foundry.ExitCode {
	var envelope *errors.ErrorEnvelope
	switch {
	case err == nil:
		return foundry.ExitSuccess
	case stderrors.Is(err, processor.ErrMalformedInput):
		return foundry.ExitInvalidArgument
	case stderrors.Is(err, context.DeadlineExceeded):
		return foundry.ExitOperationTimeout
	case stderrors.Is(err, secret.ErrInvalidKey), stderrors.Is(err, secret.ErrInvalidCiphertext):
		return foundry.ExitConfigInvalid
	case stderrors.Is(err, fs.ErrNotExist):
		return foundry.ExitFileNotFound
	case stderrors.As(err, &envelope) && envelope.Code == apperrors.CodeConfigInvalid:
		return foundry.ExitConfigInvalid
	default:
		return foundry.ExitFailure
	}
}

// Exit terminates the process for a failed command, choosing the exit
// code from the error.
func Exit(err error) {
	ExitWithCodeStderr(exitCodeFor(err), "Command failed", err)
}

// ExitWithCode logs msg with the exit code metadata and envelope fields,
// then exits. A nil logger writes to stderr instead.
func ExitWithCode(logger observability.Logger, exitCode foundry.ExitCode, msg string, err error) {
	if logger == nil {
		ExitWithCodeStderr(exitCode, msg, err)
		return
	}
	logger.Error(msg, exitFields(exitCode, err)...)
	os.Exit(exitCode)
}

// ExitWithCodeStderr reports to stderr for failures before a logger exists.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	writeExitReport(os.Stderr, exitCode, msg, err)
	os.Exit(exitCode)
}

func exitFields(exitCode foundry.ExitCode, err error) []zap.Field {
	fields := []zap.Field{zap.Int("exit_code", exitCode)}
	if info, ok := foundry.GetExitCodeInfo(exitCode); ok {
		fields = append(fields,
			zap.String("exit_name", info.Name),
			zap.String("exit_category", info.Category))
	}
	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("correlation_id", envelope.CorrelationID))
		if cause := envelopeCause(envelope); cause != "" {
			fields = append(fields, zap.String("cause", cause))
		}
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	return fields
}

// envelopeCause is the wrapped error text, kept either as Original or in
// the wrapped_error context key.
func envelopeCause(envelope *errors.ErrorEnvelope) string {
	switch original := envelope.Original.(type) {
	case string:
		return original
	case error:
		return original.Error()
	}
	if wrapped, ok := envelope.Context["wrapped_error"].(string); ok {
		return wrapped
	}
	return ""
}

func writeExitReport(w io.Writer, exitCode foundry.ExitCode, msg string, err error) {
	var envelope *errors.ErrorEnvelope
	switch {
	case stderrors.As(err, &envelope):
		_, _ = fmt.Fprintf(w, "FATAL: %s [%s]: %s\n", msg, envelope.Code, envelope.Message)
		if cause := envelopeCause(envelope); cause != "" {
			_, _ = fmt.Fprintf(w, "Cause: %s\n", cause)
		}
	case err != nil:
		_, _ = fmt.Fprintf(w, "FATAL: %s: %v\n", msg, err)
	default:
		_, _ = fmt.Fprintf(w, "FATAL: %s\n", msg)
	}
	if info, ok := foundry.GetExitCodeInfo(exitCode); ok {
		_, _ = fmt.Fprintf(w, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
		return
	}
	_, _ = fmt.Fprintf(w, "Exit Code: %d\n", exitCode)
}
