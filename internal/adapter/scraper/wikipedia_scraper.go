package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"wiki-quiz/internal/config"
	"wiki-quiz/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	// MinContentLength is the shortest cleaned article accepted, in characters.
	MinContentLength = 200
	// MinParagraphLength filters captions and boilerplate fragments.
	MinParagraphLength = 50
	// MaxParagraphs bounds model input to the leading part of an article.
	MaxParagraphs = 30

	paragraphSeparator = "\n\n"
	defaultTimeout     = 10 * time.Second
	defaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// WikipediaScraper implements domain.ArticleFetcher for Wikipedia article pages.
// It holds no per-request state and is safe for concurrent use.
type WikipediaScraper struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// NewWikipediaScraper creates a scraper with the configured timeout and User-Agent.
func NewWikipediaScraper(cfg config.FetcherConfig, logger *zap.Logger) *WikipediaScraper {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return NewWikipediaScraperWithClient(&http.Client{Timeout: timeout}, cfg.UserAgent, logger)
}

// NewWikipediaScraperWithClient creates a scraper around an existing HTTP client.
func NewWikipediaScraperWithClient(client *http.Client, userAgent string, logger *zap.Logger) *WikipediaScraper {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WikipediaScraper{
		client:    client,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Fetch downloads pageURL and extracts its title and cleaned body text.
func (s *WikipediaScraper) Fetch(ctx context.Context, pageURL string) (*domain.ScrapedArticle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, domain.NewFetchError(domain.ReasonRequestFailed, "The article URL could not be requested", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, domain.NewFetchError(domain.ReasonTimeout, "Timed out fetching the article", err)
		}
		return nil, domain.NewFetchError(domain.ReasonRequestFailed, "Error fetching the article URL", err)
	}
	defer resp.Body.Close()

	s.logger.Debug("Fetched article page",
		zap.String("url", pageURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.NewFetchError(domain.ReasonBadStatus,
			fmt.Sprintf("The article URL returned status %d", resp.StatusCode), nil).
			WithContext("status", resp.StatusCode)
	}

	article, err := Extract(resp.Body)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Extracted article",
		zap.String("url", pageURL),
		zap.String("title", article.Title),
		zap.Int("content_length", utf8.RuneCountInString(article.Content)),
	)
	return article, nil
}

// Extract parses an article page. It is a pure function of the HTML, so
// identical input always yields an identical article.
func Extract(r io.Reader) (*domain.ScrapedArticle, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, domain.NewFetchError(domain.ReasonRequestFailed, "The article page could not be parsed", err)
	}

	title := extractTitle(doc)

	contentDiv := doc.Find("div#mw-content-text").First()
	if contentDiv.Length() == 0 {
		return nil, domain.NewFetchError(domain.ReasonNoContent, "Could not find main content in the Wikipedia article", nil)
	}

	contentDiv.Find("sup, table, style, script").Remove()

	var paragraphs []string
	contentDiv.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := strings.TrimSpace(p.Text())
		if utf8.RuneCountInString(text) > MinParagraphLength {
			paragraphs = append(paragraphs, text)
		}
		return len(paragraphs) < MaxParagraphs
	})

	content := strings.Join(paragraphs, paragraphSeparator)
	if length := utf8.RuneCountInString(content); length < MinContentLength {
		return nil, domain.NewFetchError(domain.ReasonTooShort,
			"Extracted content is too short. This may not be a valid Wikipedia article.", nil).
			WithContext("content_length", length)
	}

	return &domain.ScrapedArticle{
		Title:   title,
		Content: content,
	}, nil
}

func extractTitle(doc *goquery.Document) string {
	heading := doc.Find("h1.firstHeading").First()
	if heading.Length() == 0 {
		heading = doc.Find("h1").First()
	}
	if title := strings.TrimSpace(heading.Text()); title != "" {
		return title
	}
	return domain.UnknownTitle
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}
