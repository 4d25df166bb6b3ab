package mail

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/billing-master/internal/period"
	"github.com/garyjia/billing-master/internal/storage"
)

// Options configures the composer
type Options struct {
	To           []string
	CC           []string
	DraftsDir    string
	PollAttempts int
	PollInterval time.Duration
	OpenDraft    bool
}

// Composer writes drafts for customers
type Composer struct {
	templates Templates
	opts      Options
	signature SignatureSource
	opener    Opener
	now       func() time.Time
	logger    *zap.Logger
}

// NewComposer creates a composer
func NewComposer(templates Templates, opts Options, signature SignatureSource, opener Opener, logger *zap.Logger) *Composer {
	if opener == nil {
		opener = NopOpener{}
	}
	if signature == nil {
		signature = StaticSignature("")
	}
	return &Composer{
		templates: templates,
		opts:      opts,
		signature: signature,
		opener:    opener,
		now:       time.Now,
		logger:    logger,
	}
}

// Templates returns the composer's templates
func (c *Composer) Templates() Templates {
	return c.templates
}

// SuggestedAttachment returns the report name the customer's mail expects
func (c *Composer) SuggestedAttachment(customer string) (string, error) {
	tpl, err := c.templates.Lookup(customer)
	if err != nil {
		return "", err
	}
	now := c.now()
	return period.Previous(now).Format(tpl.Attachment, now), nil
}

// Build assembles the draft without writing it
func (c *Composer) Build(ctx context.Context, customer string, attachments []string) (Draft, error) {
	tpl, err := c.templates.Lookup(customer)
	if err != nil {
		return Draft{}, err
	}
	if len(attachments) == 0 {
		return Draft{}, ErrNoAttachments
	}
	for _, a := range attachments {
		info, err := os.Stat(a)
		if err != nil {
			return Draft{}, fmt.Errorf("attachment %s: %w", a, err)
		}
		if info.IsDir() {
			return Draft{}, fmt.Errorf("attachment %s is a directory", a)
		}
	}

	sig, found := PollSignature(ctx, c.signature, c.opts.PollAttempts, c.opts.PollInterval)
	if !found {
		c.logger.Warn("Signature not complete, composing without waiting further",
			zap.String("customer", customer),
			zap.Int("length", len(sig)))
	}

	now := c.now()
	return Draft{
		To:          c.opts.To,
		CC:          c.opts.CC,
		Subject:     period.Previous(now).Format(tpl.Subject, now),
		HTML:        tpl.Body + sig,
		Attachments: attachments,
		Date:        now,
	}, nil
}

// Compose writes the customer's draft into the drafts directory and, when
// configured, opens it for review. It returns the draft path. Nothing is
// ever sent.
func (c *Composer) Compose(ctx context.Context, customer string, attachments []string) (string, error) {
	draft, err := c.Build(ctx, customer, attachments)
	if err != nil {
		return "", err
	}

	dir := storage.NewOutputDir(c.opts.DraftsDir, c.logger)
	if err := dir.Ensure(); err != nil {
		return "", err
	}
	path, err := dir.Join(fmt.Sprintf("%s_%s.eml", customer, draft.Date.Format("20060102-150405")))
	if err != nil {
		return "", err
	}

	if err := writeDraft(path, draft); err != nil {
		return "", err
	}
	c.logger.Info("Draft written",
		zap.String("customer", customer),
		zap.String("path", path),
		zap.String("subject", draft.Subject),
		zap.Int("attachments", len(attachments)))

	if c.opts.OpenDraft {
		if err := c.opener.Open(path); err != nil {
			c.logger.Warn("Failed to open draft", zap.String("path", path), zap.Error(err))
			return path, err
		}
	}
	return path, nil
}

func writeDraft(path string, d Draft) error {
	m, err := d.Message()
	if err != nil {
		return err
	}
	if err := m.WriteToFile(path); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to write draft: %w", err)
	}
	return nil
}
