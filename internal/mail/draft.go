package mail

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
)

const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Draft is an unsent message
type Draft struct {
	To          []string
	CC          []string
	Subject     string
	HTML        string
	Attachments []string
	Date        time.Time
}

// Message builds the MIME message marked unsent, so mail clients open it in
// compose mode
func (d Draft) Message() (*gomail.Msg, error) {
	m := gomail.NewMsg()
	m.SetGenHeader(gomail.Header("X-Unsent"), "1")
	if len(d.To) > 0 {
		if err := m.To(d.To...); err != nil {
			return nil, fmt.Errorf("invalid recipient: %w", err)
		}
	}
	if len(d.CC) > 0 {
		if err := m.Cc(d.CC...); err != nil {
			return nil, fmt.Errorf("invalid cc: %w", err)
		}
	}
	m.Subject(d.Subject)
	m.SetDateWithValue(d.Date)
	m.SetBodyString(gomail.TypeTextHTML, d.HTML)

	for _, path := range d.Attachments {
		// AttachFile skips files it cannot stat
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to read attachment: %w", err)
		}
		m.AttachFile(path, gomail.WithFileContentType(gomail.ContentType(contentType(path))))
	}
	return m, nil
}

// WriteTo renders the draft as an RFC 5322 message
func (d Draft) WriteTo(w io.Writer) (int64, error) {
	m, err := d.Message()
	if err != nil {
		return 0, err
	}
	return m.WriteTo(w)
}

func contentType(path string) string {
	ext := filepath.Ext(path)
	if strings.EqualFold(ext, ".xlsx") {
		return xlsxType
	}
	if ctype := mime.TypeByExtension(ext); ctype != "" {
		return ctype
	}
	return "application/octet-stream"
}
