// Package renderer loads quiz pages in headless Chrome so content
// produced by client-side scripts is visible to the solver.
package renderer

import (
	"context"
	"errors"
	"quiz-solver/internal/domain"
	"quiz-solver/internal/logger"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// atobScript decodes base64 payloads that quiz pages hide inside
// inline scripts. It returns "" (never null) when nothing is found so
// the result always unmarshals into a string.
const atobScript = `(() => {
	const scripts = Array.from(document.querySelectorAll('script'));
	for (const script of scripts) {
		const text = script.textContent || '';
		if (!text.includes('atob')) continue;
		const matches = text.matchAll(/atob\(['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]\)/g);
		for (const match of matches) {
			try { return atob(match[1]); } catch (e) {}
		}
	}
	return '';
})()`

// Renderer implements domain.PageRenderer with chromedp. One browser
// session is acquired per Render call and released on every exit path.
type Renderer struct {
	navTimeout  time.Duration
	settleDelay time.Duration
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithNavTimeout bounds the navigation plus extraction of one page.
func WithNavTimeout(d time.Duration) Option {
	return func(r *Renderer) { r.navTimeout = d }
}

// WithSettleDelay sets the fixed wait after load for late scripts.
func WithSettleDelay(d time.Duration) Option {
	return func(r *Renderer) { r.settleDelay = d }
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		navTimeout:  30 * time.Second,
		settleDelay: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ domain.PageRenderer = (*Renderer)(nil)

// Render navigates to the URL, waits for the page to settle and
// returns the rendered question plus any submit URL found on the page.
func (r *Renderer) Render(ctx context.Context, url string) (*domain.RenderedPage, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	navCtx, cancelNav := context.WithTimeout(browserCtx, r.navTimeout)
	defer cancelNav()

	var html, bodyText, decoded string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.settleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Text("body", &bodyText, chromedp.ByQuery),
		chromedp.Evaluate(atobScript, &decoded),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, domain.NewRenderTimeoutError(url, err)
		}
		if ctx.Err() != nil {
			// The overall request deadline fired; the caller maps this.
			return nil, ctx.Err()
		}
		return nil, domain.NewNavigationError(url, err)
	}

	question := ExtractQuestion(html, bodyText, decoded)
	submitURL := ExtractSubmitURL(question, html, url)

	logger.Get().Debug("Rendered page",
		zap.String("url", url),
		zap.Int("question_len", len(question)),
		zap.String("submit_url", submitURL),
	)

	return &domain.RenderedPage{
		URL:       url,
		HTML:      html,
		Question:  question,
		SubmitURL: submitURL,
	}, nil
}
