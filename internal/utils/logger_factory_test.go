package utils_test

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/repomirror/internal/utils"
)

const (
	testDiagnosticMessageConstant = "mirror reconciliation diagnostic"
	testConsoleMessageConstant    = "mirror reconciliation progress"
)

// captureStandardError swaps os.Stderr for a pipe while build runs and returns what the
// built loggers wrote after emit was called.
func captureStandardError(testInstance *testing.T, build func() (utils.LoggerOutputs, error), emit func(utils.LoggerOutputs)) (string, error) {
	testInstance.Helper()
	pipeReader, pipeWriter, pipeError := os.Pipe()
	require.NoError(testInstance, pipeError)
	defer pipeReader.Close()

	originalStandardError := os.Stderr
	os.Stderr = pipeWriter
	outputs, buildError := build()
	os.Stderr = originalStandardError

	if buildError == nil {
		emit(outputs)
	}
	require.NoError(testInstance, pipeWriter.Close())
	captured, readError := io.ReadAll(pipeReader)
	require.NoError(testInstance, readError)
	return string(bytes.TrimSpace(captured)), buildError
}

func TestLoggerFactoryCreateLoggerOutputs(testInstance *testing.T) {
	testCases := []struct {
		name               string
		level              utils.LogLevel
		format             utils.LogFormat
		expectJSON         bool
		expectConsoleEvent bool
	}{
		{name: "structured_debug", level: utils.LogLevelDebug, format: utils.LogFormatStructured, expectJSON: true},
		{name: "structured_info_mixed_case", level: " INFO ", format: "Structured", expectJSON: true},
		{name: "console_info", level: utils.LogLevelInfo, format: utils.LogFormatConsole, expectConsoleEvent: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			output, buildError := captureStandardError(testInstance,
				func() (utils.LoggerOutputs, error) {
					return utils.NewLoggerFactory().CreateLoggerOutputs(testCase.level, testCase.format)
				},
				func(outputs utils.LoggerOutputs) {
					outputs.DiagnosticLogger.Info(testDiagnosticMessageConstant)
					outputs.ConsoleLogger.Info(testConsoleMessageConstant)
					_ = outputs.DiagnosticLogger.Sync()
					_ = outputs.ConsoleLogger.Sync()
				},
			)
			require.NoError(testInstance, buildError)
			require.Contains(testInstance, output, testDiagnosticMessageConstant)

			firstLine := bytes.Split([]byte(output), []byte("\n"))[0]
			require.Equal(testInstance, testCase.expectJSON, json.Valid(firstLine))
			if testCase.expectConsoleEvent {
				require.Contains(testInstance, output, testConsoleMessageConstant)
			} else {
				require.NotContains(testInstance, output, testConsoleMessageConstant)
			}
		})
	}
}

func TestLoggerFactoryLevelFiltersDiagnostics(testInstance *testing.T) {
	output, buildError := captureStandardError(testInstance,
		func() (utils.LoggerOutputs, error) {
			return utils.NewLoggerFactory().CreateLoggerOutputs(utils.LogLevelError, utils.LogFormatStructured)
		},
		func(outputs utils.LoggerOutputs) {
			outputs.DiagnosticLogger.Info(testDiagnosticMessageConstant)
			_ = outputs.DiagnosticLogger.Sync()
		},
	)
	require.NoError(testInstance, buildError)
	require.Empty(testInstance, output)
}

func TestLoggerFactoryRejectsUnsupportedSettings(testInstance *testing.T) {
	testCases := []struct {
		name          string
		level         utils.LogLevel
		format        utils.LogFormat
		expectedError string
	}{
		{name: "unsupported_level", level: "verbose", format: utils.LogFormatStructured, expectedError: `unsupported log level "verbose"`},
		{name: "unsupported_format", level: utils.LogLevelInfo, format: "xml", expectedError: `unsupported log format "xml"`},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			outputs, creationError := utils.NewLoggerFactory().CreateLoggerOutputs(testCase.level, testCase.format)
			require.EqualError(testInstance, creationError, testCase.expectedError)
			require.Zero(testInstance, outputs)
		})
	}
}
