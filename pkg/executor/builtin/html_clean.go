package builtin

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/mbflow/automation-engine/pkg/executor"
)

// HTMLCleanExecutor extracts readable content from HTML, stripping scripts,
// styles and boilerplate chrome down to the main article body. Input that
// isn't HTML passes through unchanged.
type HTMLCleanExecutor struct {
	*executor.BaseExecutor
}

// NewHTMLCleanExecutor creates a new HTML clean executor.
func NewHTMLCleanExecutor() *HTMLCleanExecutor {
	return &HTMLCleanExecutor{
		BaseExecutor: executor.NewBaseExecutor("html_clean"),
	}
}

// buildOutput assembles the map[string]any result shape the node output
// contract expects.
func buildOutput(textContent, htmlContent, title, author, excerpt, siteName string, length, wordCount int, isHTML, passthrough bool) map[string]any {
	return map[string]any{
		"text_content": textContent,
		"html_content": htmlContent,
		"title":        title,
		"author":       author,
		"excerpt":      excerpt,
		"site_name":    siteName,
		"length":       length,
		"word_count":   wordCount,
		"is_html":      isHTML,
		"passthrough":  passthrough,
	}
}

// Execute extracts readable content from HTML input, or passes non-HTML
// input through as-is.
func (e *HTMLCleanExecutor) Execute(_ context.Context, config map[string]any, input any) (any, error) {
	inputKey := e.GetStringDefault(config, "input_key", "")
	outputFormat := e.GetStringDefault(config, "output_format", "both")
	extractMetadata := e.GetBoolDefault(config, "extract_metadata", true)
	preserveLinks := e.GetBoolDefault(config, "preserve_links", false)
	maxLength := e.GetIntDefault(config, "max_length", 0)

	content, err := e.extractContentFromInput(input, inputKey)
	if err != nil {
		return nil, err
	}

	if content == "" {
		return nil, fmt.Errorf("input content is empty")
	}

	if !e.isHTML(content) {
		return buildOutput(content, "", "", "", "", "", len(content), e.countWords(content), false, true), nil
	}

	parsedURL, _ := url.Parse("http://localhost")

	preprocessedHTML, err := e.preprocess(content)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess HTML: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(preprocessedHTML), parsedURL)
	if err != nil {
		return e.fallbackExtraction(preprocessedHTML, outputFormat, extractMetadata, preserveLinks, maxLength)
	}

	cleanedHTML := e.postprocess(article.Content, preserveLinks)

	textContent := article.TextContent
	if preserveLinks {
		textContent = e.convertLinksToMarkdown(article.Content)
	}

	if maxLength > 0 {
		if len(textContent) > maxLength {
			textContent = e.truncateToWordBoundary(textContent, maxLength)
		}
		if len(cleanedHTML) > maxLength {
			cleanedHTML = e.truncateToWordBoundary(cleanedHTML, maxLength)
		}
	}

	var outText, outHTML string
	var title, author, excerpt, siteName string

	switch outputFormat {
	case "text":
		outText = textContent
	case "html":
		outHTML = cleanedHTML
	default:
		outText = textContent
		outHTML = cleanedHTML
	}

	if extractMetadata {
		title = article.Title
		author = article.Byline
		excerpt = article.Excerpt
		siteName = article.SiteName
	}

	return buildOutput(outText, outHTML, title, author, excerpt, siteName, len(outText), e.countWords(outText), true, false), nil
}

// Validate validates the HTML clean executor configuration.
func (e *HTMLCleanExecutor) Validate(config map[string]any) error {
	outputFormat := e.GetStringDefault(config, "output_format", "both")
	validFormats := map[string]bool{
		"text": true,
		"html": true,
		"both": true,
	}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output_format: %s (valid: text, html, both)", outputFormat)
	}

	maxLength := e.GetIntDefault(config, "max_length", 0)
	if maxLength < 0 {
		return fmt.Errorf("max_length must be non-negative")
	}

	return nil
}

// extractContentFromInput extracts the content string from input using the
// specified key, or from common field names when inputKey is empty.
func (e *HTMLCleanExecutor) extractContentFromInput(input any, inputKey string) (string, error) {
	switch v := input.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case map[string]any:
		if inputKey != "" {
			if val, ok := v[inputKey]; ok {
				switch contentVal := val.(type) {
				case string:
					return contentVal, nil
				case []byte:
					return string(contentVal), nil
				}
			}
			return "", fmt.Errorf("key '%s' not found in input or has unsupported type", inputKey)
		}
		for _, field := range []string{"html", "body", "content", "data", "text", "response"} {
			if val, ok := v[field]; ok {
				switch contentVal := val.(type) {
				case string:
					return contentVal, nil
				case []byte:
					return string(contentVal), nil
				}
			}
		}
		return "", fmt.Errorf("no content found in input map (tried: html, body, content, data, text, response). Specify input_key in config")
	default:
		return "", fmt.Errorf("unsupported input type: %T (expected string, []byte, or map)", input)
	}
}

// isHTML reports whether content looks like HTML.
func (e *HTMLCleanExecutor) isHTML(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return false
	}

	htmlPatterns := []string{
		"<!DOCTYPE", "<!doctype",
		"<html", "<HTML",
		"<head", "<HEAD",
		"<body", "<BODY",
		"<div", "<DIV",
		"<p>", "<P>",
		"<span", "<SPAN",
		"<table", "<TABLE",
		"<article", "<section", "<header", "<footer", "<nav", "<main",
	}

	for _, pattern := range htmlPatterns {
		if strings.Contains(trimmed, pattern) {
			return true
		}
	}

	htmlTagRegex := regexp.MustCompile(`<[a-zA-Z][a-zA-Z0-9]*(\s[^>]*)?>`)
	return htmlTagRegex.MatchString(trimmed)
}

// preprocess removes scripts, styles and other dangerous or low-value
// elements from HTML before it reaches the readability pass.
func (e *HTMLCleanExecutor) preprocess(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript, iframe, frame, frameset, object, embed, applet, form").Remove()

	doc.Find("*").Contents().FilterFunction(func(i int, s *goquery.Selection) bool {
		return goquery.NodeName(s) == "#comment"
	}).Remove()

	doc.Find("[hidden], [style*='display:none'], [style*='display: none'], [aria-hidden='true']").Remove()

	adPatterns := []string{
		"[class*='ad-']", "[class*='ads-']", "[class*='advertisement']",
		"[id*='ad-']", "[id*='ads-']", "[id*='advertisement']",
		"[class*='social']", "[class*='share']", "[class*='sharing']",
		"[class*='sidebar']", "[class*='widget']",
		"[class*='cookie']", "[class*='gdpr']", "[class*='consent']",
		"[class*='popup']", "[class*='modal']", "[class*='overlay']",
		"[class*='newsletter']", "[class*='subscribe']",
		"[class*='related']", "[class*='recommendation']",
		"[class*='comment']", "[id*='comment']",
	}
	for _, pattern := range adPatterns {
		doc.Find(pattern).Remove()
	}

	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		for _, attr := range []string{
			"onclick", "onload", "onerror", "onmouseover", "onmouseout",
			"onfocus", "onblur", "onchange", "onsubmit", "onreset",
			"onkeydown", "onkeypress", "onkeyup",
		} {
			s.RemoveAttr(attr)
		}
		s.RemoveAttr("style")
	})

	result, err := doc.Html()
	if err != nil {
		return "", err
	}

	return result, nil
}

// postprocess strips non-essential attributes from the readability output,
// keeping only href on links and src/alt on images.
func (e *HTMLCleanExecutor) postprocess(html string, _ bool) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		tagName := goquery.NodeName(s)

		for _, node := range s.Nodes {
			var attrsToRemove []string
			for _, attr := range node.Attr {
				keep := false
				switch tagName {
				case "a":
					keep = attr.Key == "href"
				case "img":
					keep = attr.Key == "src" || attr.Key == "alt"
				}
				if !keep {
					attrsToRemove = append(attrsToRemove, attr.Key)
				}
			}
			for _, attr := range attrsToRemove {
				s.RemoveAttr(attr)
			}
		}
	})

	result, err := doc.Html()
	if err != nil {
		return html
	}

	return e.cleanWhitespace(result)
}

// fallbackExtraction provides simple main-content extraction for the cases
// where the readability algorithm can't parse the document.
func (e *HTMLCleanExecutor) fallbackExtraction(html string, outputFormat string, extractMetadata bool, _ bool, maxLength int) (map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	mainContent := doc.Find("main, article, .main-content, #content, .content, .post, .entry").First()
	if mainContent.Length() == 0 {
		mainContent = doc.Find("body")
	}

	text := mainContent.Text()
	text = e.cleanWhitespace(text)

	htmlContent, _ := mainContent.Html()
	htmlContent = e.cleanWhitespace(htmlContent)

	if maxLength > 0 {
		if len(text) > maxLength {
			text = e.truncateToWordBoundary(text, maxLength)
		}
		if len(htmlContent) > maxLength {
			htmlContent = e.truncateToWordBoundary(htmlContent, maxLength)
		}
	}

	var outText, outHTML string
	var title, author, excerpt string

	switch outputFormat {
	case "text":
		outText = text
	case "html":
		outHTML = htmlContent
	default:
		outText = text
		outHTML = htmlContent
	}

	if extractMetadata {
		title = doc.Find("title").First().Text()
		author = doc.Find("meta[name='author']").AttrOr("content", "")
		excerpt = doc.Find("meta[name='description']").AttrOr("content", "")
	}

	return buildOutput(outText, outHTML, title, author, excerpt, "", len(outText), e.countWords(outText), true, false), nil
}

// convertLinksToMarkdown rewrites <a href> elements to markdown [text](url)
// links before flattening to plain text.
func (e *HTMLCleanExecutor) convertLinksToMarkdown(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find("a").Each(func(i int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if exists && href != "" {
			text := s.Text()
			if text == "" {
				text = href
			}
			s.ReplaceWithHtml(fmt.Sprintf("[%s](%s)", text, href))
		}
	})

	return doc.Text()
}

// cleanWhitespace collapses runs of spaces and blank lines.
func (e *HTMLCleanExecutor) cleanWhitespace(text string) string {
	spaceRegex := regexp.MustCompile(`[ \t]+`)
	text = spaceRegex.ReplaceAllString(text, " ")

	newlineRegex := regexp.MustCompile(`\n\s*\n+`)
	text = newlineRegex.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	return strings.TrimSpace(text)
}

// truncateToWordBoundary truncates text at the nearest word boundary before
// maxLen and appends an ellipsis.
func (e *HTMLCleanExecutor) truncateToWordBoundary(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}

	truncated := text[:maxLen]
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > maxLen/2 {
		truncated = truncated[:lastSpace]
	}

	return strings.TrimSpace(truncated) + "..."
}

// countWords counts whitespace-delimited words in text.
func (e *HTMLCleanExecutor) countWords(text string) int {
	if text == "" {
		return 0
	}
	words := strings.Fields(text)
	count := 0
	for _, word := range words {
		if utf8.RuneCountInString(word) > 0 {
			count++
		}
	}
	return count
}
