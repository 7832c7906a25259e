package render

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"careerprep/internal/domain"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const mmPerInch = 25.4

// PageSize is a paper size in millimetres.
type PageSize struct {
	WidthMM  float64
	HeightMM float64
}

// A4 is the default paper size.
var A4 = PageSize{WidthMM: 210, HeightMM: 297}

// Options controls PDF output.
type Options struct {
	MarginMM float64
	// FilenameTemplate is a text/template with {{.ID}} available.
	FilenameTemplate string
	PageSize         PageSize
	// Scale is passed to Chrome's print; valid range is 0.1 to 2.
	Scale   float64
	Timeout time.Duration
}

// DefaultOptions matches the on-screen preview: no margin, A4, natural scale.
func DefaultOptions() Options {
	return Options{
		MarginMM:         0,
		FilenameTemplate: "cover-letter.pdf",
		PageSize:         A4,
		Scale:            1,
		Timeout:          30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.FilenameTemplate == "" {
		o.FilenameTemplate = d.FilenameTemplate
	}
	if o.PageSize.WidthMM <= 0 || o.PageSize.HeightMM <= 0 {
		o.PageSize = d.PageSize
	}
	if o.Scale == 0 {
		o.Scale = d.Scale
	}
	if o.Scale < 0.1 {
		o.Scale = 0.1
	}
	if o.Scale > 2 {
		o.Scale = 2
	}
	if o.MarginMM < 0 {
		o.MarginMM = 0
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	return o
}

// Filename expands the filename template for a letter.
func (o Options) Filename(id string) (string, error) {
	tmpl, err := template.New("filename").Option("missingkey=error").Parse(o.withDefaults().FilenameTemplate)
	if err != nil {
		return "", fmt.Errorf("parse filename template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ ID string }{ID: id}); err != nil {
		return "", fmt.Errorf("expand filename template: %w", err)
	}
	return buf.String(), nil
}

// PDFRenderer prints the preview page to PDF with headless Chrome.
// Requires Chrome/Chromium to be installed on the system.
type PDFRenderer struct {
	markdown *Markdown
	opts     Options
	logger   *zap.Logger
}

func NewPDFRenderer(markdown *Markdown, opts Options, logger *zap.Logger) *PDFRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFRenderer{markdown: markdown, opts: opts.withDefaults(), logger: logger}
}

// Export renders markdown for letter id into a PDF document.
func (r *PDFRenderer) Export(ctx context.Context, id, markdown string) (domain.Document, error) {
	filename, err := r.opts.Filename(id)
	if err != nil {
		return domain.Document{}, err
	}
	html, err := r.markdown.Page(markdown, r.opts.PageSize, r.opts.MarginMM)
	if err != nil {
		return domain.Document{}, err
	}

	start := time.Now()
	data, err := r.print(ctx, html)
	if err != nil {
		return domain.Document{}, err
	}
	r.logger.Debug("pdf rendered",
		zap.String("letter", id),
		zap.Int("bytes", len(data)),
		zap.Duration("took", time.Since(start)))

	return domain.Document{
		Filename:    filename,
		ContentType: "application/pdf",
		Data:        data,
	}, nil
}

func (r *PDFRenderer) print(ctx context.Context, html string) ([]byte, error) {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, r.opts.Timeout)
	defer cancel()

	margin := r.opts.MarginMM / mmPerInch
	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(false).
				WithPaperWidth(r.opts.PageSize.WidthMM / mmPerInch).
				WithPaperHeight(r.opts.PageSize.HeightMM / mmPerInch).
				WithMarginTop(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithMarginRight(margin).
				WithScale(r.opts.Scale).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return pdf, nil
}
