package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod/lib/proto"
)

// pageContextJS probes qualitative page state so screenshot results carry
// context without a second round trip.
const pageContextJS = `() => {
	const heading = document.querySelector('h1, h2, [role="heading"]');
	const dialog = document.querySelector('dialog[open], [role="dialog"], [role="alertdialog"], .modal.show, .modal.open');
	const errors = document.querySelector('[aria-invalid="true"], .error, .alert-danger, [class*="error-message"]');
	return {
		heading: heading ? (heading.innerText || '').trim().slice(0, 120) : '',
		buttonCount: document.querySelectorAll('button, [role="button"], input[type="submit"], input[type="button"]').length,
		inputCount: document.querySelectorAll('input, textarea, select').length,
		linkCount: document.querySelectorAll('a[href]').length,
		hasDialog: !!dialog,
		hasErrors: !!errors
	};
}`

// CaptureScreenshot captures a raster image of the session's page. fullPage
// requests capture beyond the current viewport. Quality applies to jpeg only.
func CaptureScreenshot(ctx context.Context, s *Session, fullPage bool, format string, quality int) ([]byte, string, error) {
	req := proto.PageCaptureScreenshot{
		CaptureBeyondViewport: fullPage,
	}
	switch format {
	case "jpeg", "jpg":
		format = "jpeg"
		req.Format = proto.PageCaptureScreenshotFormatJpeg
		if quality > 0 {
			q := quality
			req.Quality = &q
		}
	default:
		format = "png"
		req.Format = proto.PageCaptureScreenshotFormatPng
	}

	res, err := req.Call(s.Page().Context(ctx))
	if err != nil {
		return nil, "", fmt.Errorf("capture screenshot: %w", err)
	}
	return res.Data, format, nil
}

// ProbePageContext runs the lightweight page probe.
func ProbePageContext(ctx context.Context, s *Session) (PageContext, error) {
	val, err := s.Eval(ctx, pageContextJS)
	if err != nil {
		return PageContext{}, err
	}
	return PageContext{
		Heading:     val.Get("heading").Str(),
		ButtonCount: val.Get("buttonCount").Int(),
		InputCount:  val.Get("inputCount").Int(),
		LinkCount:   val.Get("linkCount").Int(),
		HasDialog:   val.Get("hasDialog").Bool(),
		HasErrors:   val.Get("hasErrors").Bool(),
	}, nil
}
