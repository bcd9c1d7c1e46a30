package problem

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"litcode/internal/config"
)

// scrapeScript reads the problem from the page DOM. Lines of the Monaco
// editor are joined with newlines.
const scrapeScript = `() => {
	const title = document.querySelector('div[data-cy="question-title"], .text-title-large, .mr-2.text-xl');
	const desc = document.querySelector('div[data-cy="question-content"], .elfjS, div[class*="description"]');
	let code = "";
	document.querySelectorAll('.view-lines div.view-line').forEach((line) => {
		code += line.textContent + "\n";
	});
	return {
		title: title ? title.textContent : "",
		description: desc ? desc.textContent : "",
		code: code,
	};
}`

// PageScraper reads a Snapshot from a problem page open in Chrome.
type PageScraper struct {
	cfg     config.BrowserConfig
	mu      sync.Mutex
	browser *rod.Browser
}

// NewPageScraper creates a scraper. The browser is started or attached
// lazily on the first Snapshot call.
func NewPageScraper(cfg config.BrowserConfig) *PageScraper {
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = 30
	}
	return &PageScraper{cfg: cfg}
}

func (s *PageScraper) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutSecs)*time.Second)
	defer cancel()

	if err := s.ensureBrowser(); err != nil {
		return Snapshot{}, err
	}

	page, err := s.findPage()
	if err != nil {
		return Snapshot{}, err
	}
	page = page.Context(ctx)

	if err := page.WaitLoad(); err != nil {
		return Snapshot{}, fmt.Errorf("page load: %w", err)
	}

	res, err := page.Eval(scrapeScript)
	if err != nil {
		return Snapshot{}, fmt.Errorf("scrape page: %w", err)
	}

	snap := Snapshot{
		Title:       res.Value.Get("title").Str(),
		Description: res.Value.Get("description").Str(),
		Code:        res.Value.Get("code").Str(),
	}
	log.Printf("[scraper] read %q (%d bytes of code)", snap.Title, len(snap.Code))
	return Normalize(snap), nil
}

func (s *PageScraper) ensureBrowser() error {
	if s.browser != nil {
		return nil
	}

	var controlURL string
	var err error
	if s.cfg.ControlURL != "" {
		controlURL, err = launcher.ResolveURL(s.cfg.ControlURL)
		if err != nil {
			return fmt.Errorf("failed to resolve browser at %s: %w", s.cfg.ControlURL, err)
		}
	} else {
		controlURL, err = launcher.New().Headless(s.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("failed to launch browser: %w", err)
		}
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	s.browser = browser
	return nil
}

// findPage picks the first open tab whose URL contains the configured
// problem URL fragment.
func (s *PageScraper) findPage() (*rod.Page, error) {
	pages, err := s.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if matchesProblemURL(info.URL, s.cfg.PageURL) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no open page matching %q", s.cfg.PageURL)
}

func matchesProblemURL(url, fragment string) bool {
	if fragment == "" {
		return strings.HasPrefix(url, "http")
	}
	return strings.Contains(strings.ToLower(url), strings.ToLower(fragment))
}

// Close shuts down the browser connection.
func (s *PageScraper) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		s.browser.Close()
		s.browser = nil
	}
}
