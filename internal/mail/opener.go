package mail

import (
	"fmt"

	"github.com/skratchdot/open-golang/open"
)

// Opener hands a draft to the desktop for review
type Opener interface {
	Open(path string) error
}

// SystemOpener opens files with the desktop default handler without
// waiting for it to exit
type SystemOpener struct{}

// Open implements Opener
func (SystemOpener) Open(path string) error {
	if err := open.Start(path); err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	return nil
}

// NopOpener leaves drafts where they were written
type NopOpener struct{}

// Open implements Opener
func (NopOpener) Open(string) error { return nil }
