// Package terminal presents Default challenges on a text terminal.
//
// The challenge image is written to a temporary PNG file whose path is
// printed, since terminals can't show it inline. Each line the user types is
// submitted as the code, exactly as typed.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/TecharoHQ/captchamodal/lib/challenge"
	"github.com/TecharoHQ/captchamodal/lib/localization"
	"github.com/TecharoHQ/captchamodal/lib/modal"
	"golang.org/x/term"
)

var ErrNotDefault = errors.New("terminal: only Default challenges can be shown on a terminal")

// Controller is the part of modal.Controller the terminal drives.
type Controller interface {
	SetToken(token string) error
	PressEnter() error
	Cancel() error
}

type View struct {
	In        io.Reader
	Out       io.Writer
	Localizer *localization.SimpleLocalizer
	TempDir   string // where challenge images go, os.TempDir() when empty
}

// New returns a view on the process's standard input and error.
func New(localizer *localization.SimpleLocalizer) *View {
	return &View{In: os.Stdin, Out: os.Stderr, Localizer: localizer}
}

// terminalFD returns the descriptor of r when it is a terminal a human is
// typing into.
func terminalFD(r io.Reader) (int, bool) {
	f, ok := r.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	return int(f.Fd()), true
}

func newTerminal(r io.Reader, w io.Writer, prompt string) *term.Terminal {
	return term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{r, w}, prompt)
}

// open picks how lines are read. A terminal is put into raw mode and read
// with line editing; anything else is scanned line by line. Lines come back
// without their terminator and io.EOF ends the input.
func (v *View) open(prompt string) (io.Writer, func() (string, error), func()) {
	if fd, ok := terminalFD(v.In); ok {
		if state, err := term.MakeRaw(fd); err == nil {
			t := newTerminal(v.In, v.Out, prompt)
			return t, t.ReadLine, func() { _ = term.Restore(fd, state) }
		}
	}

	sc := bufio.NewScanner(v.In)
	readLine := func() (string, error) {
		fmt.Fprint(v.Out, prompt)
		if sc.Scan() {
			return sc.Text(), nil
		}
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}

	return v.Out, readLine, func() {}
}

type line struct {
	text string
	err  error
}

// Run shows sess and feeds the user's answers into ctrl until the dialog is
// confirmed or cancelled. An empty line, end of input or ctx being done
// cancels the dialog.
func (v *View) Run(ctx context.Context, ctrl Controller, sess modal.Session) error {
	d, ok := sess.Strategy.(*challenge.Default)
	if !ok {
		return ErrNotDefault
	}

	fname, err := v.writeImage(d)
	if err != nil {
		return err
	}
	defer os.Remove(fname)

	out, readLine, restore := v.open(v.Localizer.T("code_prompt") + ": ")
	defer restore()

	fmt.Fprintf(out, "%s\n%s %s\n", v.Localizer.T("captcha"), v.Localizer.T("image_saved"), fname)

	reqs := make(chan struct{}, 1)
	lines := make(chan line, 1)
	defer close(reqs)

	go func() {
		for range reqs {
			text, err := readLine()
			lines <- line{text: text, err: err}
		}
	}()

	for {
		reqs <- struct{}{}

		var l line
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return v.cancel(ctrl, ctx.Err())
		case l = <-lines:
		}

		switch {
		case l.err != nil && !errors.Is(l.err, io.EOF):
			return v.cancel(ctrl, fmt.Errorf("terminal: can't read code: %w", l.err))
		case l.err != nil, l.text == "":
			fmt.Fprintln(out, v.Localizer.T("cancel"))
			return v.cancel(ctrl, nil)
		}

		if err := ctrl.SetToken(l.text); err != nil {
			return err
		}

		switch err := ctrl.PressEnter(); {
		case errors.Is(err, challenge.ErrConfirmDisabled):
			fmt.Fprintln(out, v.Localizer.T("code_invalid"))
		case err != nil:
			return err
		default:
			return nil
		}
	}
}

func (v *View) cancel(ctrl Controller, cause error) error {
	if err := ctrl.Cancel(); err != nil && !errors.Is(err, modal.ErrNotOpen) {
		return errors.Join(cause, err)
	}
	return cause
}

func (v *View) writeImage(d *challenge.Default) (string, error) {
	fout, err := os.CreateTemp(v.TempDir, "captcha-*.png")
	if err != nil {
		return "", fmt.Errorf("terminal: can't create image file: %w", err)
	}
	defer fout.Close()

	if _, err := fout.Write(d.Image); err != nil {
		os.Remove(fout.Name())
		return "", fmt.Errorf("terminal: can't write image file: %w", err)
	}

	return fout.Name(), nil
}
