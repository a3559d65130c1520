package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/jgoulah/punchsync/pkg/models"
)

// DefaultURL is the Acumen portal login page
const DefaultURL = "https://acumen.dcisoftware.com/"

const (
	cultureCookie  = ".AspNetCore.Culture"
	englishCulture = "c=en-US|uic=en-US"

	// Upper bound on "Load more" clicks per scrape
	maxLoadMore = 20
)

var (
	// ErrLoginFailed means the portal never showed the home page after
	// submitting credentials
	ErrLoginFailed = errors.New("acumen login failed")
	// ErrNoTable means the punches table was not found
	ErrNoTable = errors.New("punches table not found")
)

// Session carries per-login state from login to logout. The portal's UI
// culture is switched to English so dates parse; the original value is
// restored on logout.
type Session struct {
	Employee        string
	OriginalCulture string
	HadCulture      bool
}

// Acumen scrapes the punches table from the Acumen portal
type Acumen struct {
	baseURL string
	visible bool
	timeout time.Duration
}

// NewAcumen creates a scraper. An empty baseURL uses DefaultURL.
func NewAcumen(baseURL string, visible bool) *Acumen {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Acumen{baseURL: baseURL, visible: visible, timeout: 3 * time.Minute}
}

// Scrape logs in as creds, reads the punches table and logs out
func (a *Acumen) Scrape(ctx context.Context, creds models.Credentials) (models.Table, error) {
	html, err := a.PunchesHTML(ctx, creds)
	if err != nil {
		return models.Table{}, err
	}
	return ParseTable(html)
}

// PunchesHTML returns the outer HTML of the punches table
func (a *Acumen) PunchesHTML(ctx context.Context, creds models.Credentials) (string, error) {
	logger := zerolog.Ctx(ctx).With().Str("employee", creds.Employee).Logger()

	browserCtx, cancel := newBrowser(ctx, a.visible, a.timeout)
	defer cancel()

	sess, err := a.login(browserCtx, creds)
	if err != nil {
		return "", err
	}
	defer a.logout(browserCtx, logger, sess)

	logger.Debug().Msg("Opening punches page")
	if err := chromedp.Run(browserCtx,
		chromedp.Click(`#leftmenuLinkEmployerPunches`, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("opening punches page: %w", err)
	}

	clicks := 0
	for clicks < maxLoadMore && visibleWithin(browserCtx, `#btnLoadmore`, 2*time.Second) {
		if err := chromedp.Run(browserCtx,
			chromedp.Click(`#btnLoadmore`, chromedp.ByQuery),
			chromedp.Sleep(500*time.Millisecond),
		); err != nil {
			break
		}
		clicks++
	}
	logger.Debug().Int("load_more_clicks", clicks).Msg("Loaded punches")

	var html string
	tableCtx, cancelTable := context.WithTimeout(browserCtx, 10*time.Second)
	defer cancelTable()
	if err := chromedp.Run(tableCtx,
		chromedp.WaitReady(`#tblPunches tbody`, chromedp.ByQuery),
		chromedp.OuterHTML(`#tblPunches`, &html, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoTable, err)
	}

	return html, nil
}

func (a *Acumen) login(ctx context.Context, creds models.Credentials) (Session, error) {
	sess := Session{Employee: creds.Employee}

	if err := chromedp.Run(ctx,
		chromedp.Navigate(a.baseURL),
		chromedp.WaitVisible(`#Email`, chromedp.ByQuery),
	); err != nil {
		return sess, fmt.Errorf("navigating to login page: %w", err)
	}

	culture, ok, err := getCookie(ctx, cultureCookie)
	if err != nil {
		return sess, err
	}
	sess.OriginalCulture, sess.HadCulture = culture, ok

	if culture != englishCulture {
		if err := setCookie(ctx, a.domain(), cultureCookie, englishCulture); err != nil {
			return sess, err
		}
		if err := chromedp.Run(ctx,
			chromedp.Reload(),
			chromedp.WaitVisible(`#Email`, chromedp.ByQuery),
		); err != nil {
			return sess, fmt.Errorf("reloading login page: %w", err)
		}
	}

	if err := chromedp.Run(ctx,
		chromedp.SendKeys(`#Email`, creds.Email, chromedp.ByQuery),
		chromedp.SendKeys(`#Password`, creds.Password, chromedp.ByQuery),
		chromedp.Click(`#btnSubmit`, chromedp.ByQuery),
	); err != nil {
		return sess, fmt.Errorf("submitting credentials: %w", err)
	}

	// Another active session triggers a confirmation popup
	if visibleWithin(ctx, `#confirmContinueLogin`, 2*time.Second) {
		if err := chromedp.Run(ctx, chromedp.Click(`#btnContnueLogin`, chromedp.ByQuery)); err != nil {
			return sess, fmt.Errorf("confirming login: %w", err)
		}
	}

	if !visibleWithin(ctx, `#leftmenuLinkEmployerPunches`, 10*time.Second) {
		return sess, fmt.Errorf("%w for %s", ErrLoginFailed, creds.Employee)
	}
	return sess, nil
}

// logout signs out and restores the portal culture. Failures are logged only.
func (a *Acumen) logout(ctx context.Context, logger zerolog.Logger, sess Session) {
	if visibleWithin(ctx, `#ChangeUsernameId1`, 2*time.Second) {
		err := chromedp.Run(ctx, chromedp.Click(`#ChangeUsernameId1`, chromedp.ByQuery))
		if err == nil && visibleWithin(ctx, `#logoutForm a`, 2*time.Second) {
			err = chromedp.Run(ctx, chromedp.Click(`#logoutForm a`, chromedp.ByQuery))
		}
		if err != nil {
			logger.Warn().Err(err).Msg("Logout failed")
		}
	} else {
		logger.Warn().Msg("Logout menu not found")
	}

	var err error
	if sess.HadCulture {
		if sess.OriginalCulture != englishCulture {
			err = setCookie(ctx, a.domain(), cultureCookie, sess.OriginalCulture)
		}
	} else {
		err = deleteCookie(ctx, a.domain(), cultureCookie)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Restoring portal language failed")
	}
}

func (a *Acumen) domain() string {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
