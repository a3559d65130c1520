package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// newBrowser starts a Chrome instance and returns a tab context bounded by
// timeout. The returned cancel func shuts the browser down.
func newBrowser(ctx context.Context, visible bool, timeout time.Duration) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !visible),
		chromedp.Flag("no-sandbox", true),            // Required for running as root on Linux
		chromedp.Flag("disable-gpu", true),           // Recommended for headless Linux
		chromedp.Flag("disable-dev-shm-usage", true), // Avoid /dev/shm issues on Linux
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, timeout)

	return browserCtx, func() {
		cancelTimeout()
		cancelBrowser()
		cancelAlloc()
	}
}

// getCookie returns the value of a cookie visible to the current page
func getCookie(ctx context.Context, name string) (string, bool, error) {
	var cookies []*network.Cookie
	if err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	); err != nil {
		return "", false, fmt.Errorf("getting cookies: %w", err)
	}

	for _, c := range cookies {
		if c.Name == name {
			return c.Value, true, nil
		}
	}
	return "", false, nil
}

// setCookie sets a cookie for domain
func setCookie(ctx context.Context, domain, name, value string) error {
	expr := network.SetCookie(name, value).
		WithDomain(domain).
		WithPath("/").
		WithSecure(true)

	if err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return expr.Do(ctx)
		}),
	); err != nil {
		return fmt.Errorf("setting cookie %s: %w", name, err)
	}
	return nil
}

// deleteCookie removes a cookie for domain
func deleteCookie(ctx context.Context, domain, name string) error {
	if err := chromedp.Run(ctx,
		network.DeleteCookies(name).WithDomain(domain),
	); err != nil {
		return fmt.Errorf("deleting cookie %s: %w", name, err)
	}
	return nil
}

// visibleWithin waits up to d for sel to become visible. A timeout is not an
// error; it reports false.
func visibleWithin(ctx context.Context, sel string, d time.Duration) bool {
	waitCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return chromedp.Run(waitCtx, chromedp.WaitVisible(sel, chromedp.ByQuery)) == nil
}
