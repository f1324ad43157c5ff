// Package prompt implements writeback.Prompter with charmbracelet/huh
// terminal forms.
package prompt

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/huh"

	"github.com/minios-linux/i18nlens/i18n"
)

// Huh asks questions with interactive huh forms. Aborting a form (Ctrl+C
// or Esc) counts as declining.
type Huh struct {
	// Accessible switches to plain line-based prompts for screen readers.
	Accessible bool
	// In and Out override the terminal (default: stdin and stdout).
	In  io.Reader
	Out io.Writer
}

// Confirm asks a yes/no question.
func (h *Huh) Confirm(ctx context.Context, title, description string) (bool, error) {
	var ok bool
	field := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative(i18n.T("Yes")).
		Negative(i18n.T("No")).
		Value(&ok)
	if err := h.run(ctx, field); err != nil {
		return false, declined(err)
	}
	return ok, nil
}

// Select asks for one of options. An aborted form returns "".
func (h *Huh) Select(ctx context.Context, title string, options []string) (string, error) {
	var choice string
	field := huh.NewSelect[string]().
		Title(title).
		Options(huh.NewOptions(options...)...).
		Value(&choice)
	if err := h.run(ctx, field); err != nil {
		return "", declined(err)
	}
	return choice, nil
}

// Input asks for free text pre-filled with value. An aborted form returns "".
func (h *Huh) Input(ctx context.Context, title, value string) (string, error) {
	field := huh.NewInput().
		Title(title).
		Value(&value)
	if err := h.run(ctx, field); err != nil {
		return "", declined(err)
	}
	return value, nil
}

func (h *Huh) run(ctx context.Context, field huh.Field) error {
	form := huh.NewForm(huh.NewGroup(field)).
		WithTheme(huh.ThemeCatppuccin()).
		WithAccessible(h.Accessible)
	if h.In != nil {
		form = form.WithInput(h.In)
	}
	if h.Out != nil {
		form = form.WithOutput(h.Out)
	}
	return form.RunWithContext(ctx)
}

// declined maps a user abort to a plain "no" answer.
func declined(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return nil
	}
	return err
}
