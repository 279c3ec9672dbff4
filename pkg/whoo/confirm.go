package whoo

import (
	"fmt"
	"io"
	"strings"
)

// Confirmer asks a yes/no question before destructive operations.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) (bool, error)

func (f ConfirmFunc) Confirm(prompt string) (bool, error) {
	return f(prompt)
}

// PromptConfirmer writes the prompt to Out and reads one line from In.
// Only "y" approves. Nothing past the newline is consumed, so successive
// prompts can share one input stream.
type PromptConfirmer struct {
	In  io.Reader
	Out io.Writer
}

func (p PromptConfirmer) Confirm(prompt string) (bool, error) {
	if _, err := fmt.Fprint(p.Out, prompt); err != nil {
		return false, err
	}
	line, err := readLine(p.In)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(line) == "y", nil
}

// readLine reads up to and excluding the next newline. EOF ends the line.
func readLine(in io.Reader) (string, error) {
	var (
		line strings.Builder
		b    [1]byte
	)
	for {
		n, err := in.Read(b[:])
		if n == 1 {
			if b[0] == '\n' {
				return line.String(), nil
			}
			line.WriteByte(b[0])
		}
		if err == io.EOF {
			return line.String(), nil
		}
		if err != nil {
			return "", err
		}
	}
}
