package convert

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"os"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// readTextFile reads a text input, honouring a UTF-8 or UTF-16 byte order mark
func readTextFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if err != nil {
		return "", fmt.Errorf("failed to decode text: %w", err)
	}
	return string(data), nil
}

func markdownFileToHTML(src, dst, title string) error {
	text, err := readTextFile(src)
	if err != nil {
		return err
	}
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(text), &body); err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	return os.WriteFile(dst, []byte(htmlPage(title, body.String())), 0600)
}

func htmlFileToMarkdown(src, dst string) error {
	text, err := readTextFile(src)
	if err != nil {
		return err
	}
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(text)
	if err != nil {
		return fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	return os.WriteFile(dst, []byte(strings.TrimSpace(markdown)+"\n"), 0600)
}

func markdownFileToText(src, dst string) error {
	text, err := readTextFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, []byte(StripMarkdown(text)), 0600)
}

var markdownRules = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`), ""},
	{regexp.MustCompile(`(?m)^\s{0,3}>\s?`), ""},
	{regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`), "$1"},
	{regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`), "$1"},
	{regexp.MustCompile(`\*\*(.+?)\*\*`), "$1"},
	{regexp.MustCompile(`__(.+?)__`), "$1"},
	{regexp.MustCompile(`\*([^*\s][^*]*?)\*`), "$1"},
	{regexp.MustCompile(`\b_([^_]+)_\b`), "$1"},
	{regexp.MustCompile("`([^`]+)`"), "$1"},
	{regexp.MustCompile(`(?m)^\s*(-{3,}|\*{3,})\s*$`), ""},
}

// StripMarkdown removes heading, emphasis and link syntax, keeping link text
func StripMarkdown(text string) string {
	for _, rule := range markdownRules {
		text = rule.pattern.ReplaceAllString(text, rule.replace)
	}
	return strings.TrimSpace(text) + "\n"
}

var headingPattern = regexp.MustCompile(`^\s{0,3}(#{1,6})\s+(.*)$`)

// markdownBlocks detects ATX headings and blank-line separated paragraphs
func markdownBlocks(text string) []block {
	var out []block
	var para []string
	flush := func() {
		if len(para) > 0 {
			out = append(out, block{Text: strings.TrimSpace(StripMarkdown(strings.Join(para, " ")))})
			para = nil
		}
	}

	for line := range strings.SplitSeq(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			flush()
			out = append(out, block{Level: len(m[1]), Text: strings.TrimSpace(StripMarkdown(m[2]))})
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		para = append(para, strings.TrimSpace(line))
	}
	flush()
	return out
}

// readHTMLBlocks keeps headings, paragraphs and list items in document order.
// Blocks nested inside another block are folded into the outer one.
func readHTMLBlocks(path string) ([]block, error) {
	text, err := readTextFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var out []block
	const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, pre, blockquote"
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		// the outermost block already carries nested text
		if s.ParentsFiltered(blockSelector).Length() > 0 {
			return
		}
		content := strings.Join(strings.Fields(s.Text()), " ")
		if content == "" {
			return
		}
		level := 0
		if name := goquery.NodeName(s); len(name) == 2 && name[0] == 'h' {
			level = int(name[1] - '0')
		}
		out = append(out, block{Level: level, Text: content})
	})

	if len(out) == 0 {
		return paragraphs(doc.Text()), nil
	}
	return out, nil
}

func blocksToHTML(blocks []block, title string) string {
	var body strings.Builder
	for _, b := range blocks {
		tag := "p"
		if b.Level > 0 {
			tag = fmt.Sprintf("h%d", b.Level)
		}
		fmt.Fprintf(&body, "<%s>%s</%s>\n", tag, html.EscapeString(b.Text), tag)
	}
	return htmlPage(title, body.String())
}

func htmlPage(title, body string) string {
	return "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>" +
		html.EscapeString(title) + "</title>\n</head>\n<body>\n" + body + "</body>\n</html>\n"
}
