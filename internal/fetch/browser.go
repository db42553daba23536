package fetch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// session is one isolated browser scoped to a single query fetch.
type session interface {
	navigate(url string, timeout time.Duration) error
	elementText(selector string, timeout time.Duration) (string, error)
	close()
}

type chromeSession struct {
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
}

// newChromeSession launches a fresh headless Chrome. Every query gets its own
// browser so a wedged page cannot leak into the next fetch.
func newChromeSession(parent context.Context, headless bool) (session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("disable-background-networking", true),
	)

	if execPath := os.Getenv("CHROME_PATH"); execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	return &chromeSession{
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		cancel:      cancel,
	}, nil
}

// navigate opens the URL and waits for the DOM only. The listing pages keep
// streaming ad and tracking resources long after the document is usable, so
// waiting for the full load event would burn most of the timeout.
func (s *chromeSession) navigate(url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.browserCtx, timeout)
	defer cancel()

	return chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, _, errorText, err := page.Navigate(url).Do(ctx)
			if err != nil {
				return err
			}
			if errorText != "" {
				return fmt.Errorf("page load error %s", errorText)
			}
			return nil
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// elementText waits for the first match of selector to become visible and
// returns its inner text.
func (s *chromeSession) elementText(selector string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(s.browserCtx, timeout)
	defer cancel()

	var text string
	err := chromedp.Run(ctx,
		chromedp.Text(selector, &text, chromedp.NodeVisible, chromedp.ByQuery),
	)
	return text, err
}

func (s *chromeSession) close() {
	s.cancel()
	s.allocCancel()
}
