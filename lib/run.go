package lib

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/siderolabs/go-cmd/pkg/cmd"
)

// Runner abstracts external tool invocation so destructive pipelines can be
// exercised in tests without touching real devices.
type Runner interface {
	Run(name string, args ...string) (string, error)
	RunContext(ctx context.Context, name string, args ...string) (string, error)
}

var commandLogWriter io.Writer
var commandLogPath string

// EnableCommandLogging enables tee-style logging for external command outputs.
// All commands run through ExecRunner are recorded in the provided logfile.
func EnableCommandLogging(logPath string) error {
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	commandLogWriter = f
	commandLogPath = logPath
	return nil
}

// CommandLogPath returns the active command log path, empty when logging is off
func CommandLogPath() string {
	return commandLogPath
}

// ExecRunner invokes external tools on the host
type ExecRunner struct{}

func (ExecRunner) Run(name string, args ...string) (string, error) {
	out, err := cmd.Run(name, args...)
	logCommand(name, args, out, err)
	return out, err
}

func (ExecRunner) RunContext(ctx context.Context, name string, args ...string) (string, error) {
	out, err := cmd.RunContext(ctx, name, args...)
	logCommand(name, args, out, err)
	return out, err
}

func logCommand(name string, args []string, out string, err error) {
	if commandLogWriter == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = err.Error()
	}
	fmt.Fprintf(commandLogWriter, "+ %s %s [%s]\n", name, strings.Join(args, " "), status)
	if out != "" {
		fmt.Fprintln(commandLogWriter, out)
	}
}
