// Package prompt asks the operator to confirm destructive commands.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the operator presses Ctrl+C.
var ErrAborted = errors.New("aborted")

// IsAborted reports whether err came from an interrupted prompt.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, promptui.ErrInterrupt)
}

// Runner runs a prompt and returns the typed answer. promptui.Prompt
// satisfies it; tests substitute a canned answer.
type Runner interface {
	Run() (string, error)
}

// NewConfirm builds the default y/N prompt.
var NewConfirm = func(label string) Runner {
	return &promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
}

// Confirm asks a y/N question. A bare Enter or "n" answers no.
func Confirm(label string) (bool, error) {
	answer, err := NewConfirm(label).Run()
	switch {
	case errors.Is(err, promptui.ErrInterrupt):
		return false, ErrAborted
	case errors.Is(err, promptui.ErrAbort):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("prompt failed: %w", err)
	}

	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

// ConfirmWithForce skips the question when force is set.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label)
}
