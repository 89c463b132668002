package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yieldnest/invest_api/services"
)

// ChromePDFRenderer prints HTML through a headless Chrome started per call.
type ChromePDFRenderer struct {
	Timeout time.Duration
}

var _ services.PDFRenderer = (*ChromePDFRenderer)(nil)

func NewChromePDFRenderer() *ChromePDFRenderer {
	return &ChromePDFRenderer{Timeout: 30 * time.Second}
}

func (r *ChromePDFRenderer) RenderPDF(ctx context.Context, htmlContent string) ([]byte, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if r.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		browserCtx, cancelTimeout = context.WithTimeout(browserCtx, r.Timeout)
		defer cancelTimeout()
	}

	var pdfBuffer []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithLandscape(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp print: %w", err)
	}
	return pdfBuffer, nil
}
