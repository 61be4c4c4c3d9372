package cli

import "fmt"

const exitCodeErrorTemplateConstant = "command finished with exit code %d"

// ExitCodeError carries a non-zero process exit status out of a cobra command without printing an error.
type ExitCodeError struct {
	Code int
}

// Error implements the error interface.
func (exitCodeError ExitCodeError) Error() string {
	return fmt.Sprintf(exitCodeErrorTemplateConstant, exitCodeError.Code)
}
