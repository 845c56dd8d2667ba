package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Supervise runs a child process whose stderr carries JSON log lines. Log
// lines are forwarded to out, a Go panic trace is collected and logged as a
// single fatal record. It returns the child exit code.
func Supervise(out io.Writer, executable string, arg ...string) int {
	supervisorLogger := zerolog.New(out).With().Str("component", "Supervisor").Timestamp().Logger()

	cmd := exec.Command(executable, arg...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		supervisorLogger.Error().Err(err).Msg("Could not create pipe for logs")
		return 1
	}
	if err = cmd.Start(); err != nil {
		supervisorLogger.Error().Err(err).Msg("Could not launch process")
		return 1
	}

	panicLogs := forwardLogs(stderr, out, supervisorLogger)
	exitCode := 0
	if err = cmd.Wait(); err != nil {
		exitCode = 1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}
	if exitCode == 0 {
		supervisorLogger.Info().Msg("Exited with code 0")
		return 0
	}
	supervisorLogger.WithLevel(zerolog.FatalLevel).
		Err(errors.New(panicLogs)).
		Int("exit_code", exitCode).
		Msg("Process failed")
	return exitCode
}

// forwardLogs copies JSON lines to out until r is drained and returns
// everything that followed a "panic" line.
func forwardLogs(r io.Reader, out io.Writer, supervisorLogger zerolog.Logger) string {
	var panicLogs strings.Builder
	inPanic := false
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		switch {
		case len(line) == 0:
		case inPanic || strings.HasPrefix(string(line), "panic"):
			inPanic = true
			panicLogs.Write(line)
			panicLogs.WriteByte('\n')
		case json.Valid(line):
			_, _ = out.Write(line)
			_, _ = out.Write([]byte{'\n'})
		default:
			supervisorLogger.Error().Str("line", string(line)).Msg("Got log line that is not JSON formatted")
		}
	}
	if err := scanner.Err(); err != nil {
		supervisorLogger.Error().Err(err).Msg("Error scanning process stderr")
	}
	return panicLogs.String()
}
