package agent

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/tools"
	"github.com/tmc/langchaingo/llms"
)

// websiteKeywords mark goals whose artifacts are expected to be web pages.
var websiteKeywords = []string{
	"website", "web page", "webpage", "landing page", "html",
	"portfolio", "dashboard", "frontend", "web app",
}

var (
	positionAbsolutePattern = regexp.MustCompile(`(?i)position\s*:\s*absolute`)
	zIndexPattern           = regexp.MustCompile(`(?i)z-index\s*:\s*(\d+)`)
	viewportPattern         = regexp.MustCompile(`(?i)<meta[^>]+viewport`)
	stylingPattern          = regexp.MustCompile(`(?i)(<style|<link[^>]+stylesheet|style\s*=)`)
	modernCSSPattern        = regexp.MustCompile(`(?i)(display\s*:\s*(flex|grid)|grid-template|flex-direction)`)
)

// LayoutVerifier inspects the HTML artifacts a run produced and, when they
// look broken, builds a corrective prompt for one extra dispatch. A vision
// model is optional; the source heuristics stand on their own.
type LayoutVerifier struct {
	WorkDir string
	Browser *tools.BrowserTool
	Vision  llms.Model
}

func NewLayoutVerifier(workDir string, browser *tools.BrowserTool) *LayoutVerifier {
	return &LayoutVerifier{WorkDir: workDir, Browser: browser}
}

// BuildFixPrompt returns an empty string when the goal is not a website
// goal, no HTML was produced, or the artifacts pass every check.
func (v *LayoutVerifier) BuildFixPrompt(ctx context.Context, goal string) string {
	if !isWebsiteGoal(goal) {
		return ""
	}

	pages := v.findHTMLFiles()
	if len(pages) == 0 {
		return ""
	}

	var issues []string
	for _, page := range pages {
		data, err := os.ReadFile(page)
		if err != nil {
			continue
		}
		name := filepath.Base(page)
		for _, issue := range inspectHTML(string(data)) {
			issues = append(issues, fmt.Sprintf("%s: %s", name, issue))
		}
		if visual := v.inspectRendered(ctx, page); visual != "" {
			issues = append(issues, fmt.Sprintf("%s: %s", name, visual))
		}
	}
	if len(issues) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("The generated website has layout problems:\n")
	for _, issue := range issues {
		b.WriteString("- " + issue + "\n")
	}
	b.WriteString("\nRewrite the affected HTML and CSS files completely to fix these problems. ")
	b.WriteString("Use a normal document flow layout (flexbox or grid), include a viewport meta tag, ")
	b.WriteString("and keep the same filenames.")
	return b.String()
}

// inspectHTML applies source-level heuristics that catch the common failure
// modes of generated pages.
func inspectHTML(html string) []string {
	var issues []string
	lower := strings.ToLower(html)

	if !viewportPattern.MatchString(html) {
		issues = append(issues, "missing viewport meta tag, page will not scale on mobile")
	}
	if !stylingPattern.MatchString(html) {
		issues = append(issues, "no styling at all (no style tag, stylesheet link or inline styles)")
	}
	if n := len(positionAbsolutePattern.FindAllString(html, -1)); n > 5 {
		issues = append(issues, fmt.Sprintf("%d absolutely positioned elements, layout is likely overlapping", n))
	}
	for _, m := range zIndexPattern.FindAllStringSubmatch(html, -1) {
		if len(m[1]) > 3 {
			issues = append(issues, "extreme z-index value "+m[1]+", stacking order is suspect")
			break
		}
	}
	if len(html) < 500 {
		issues = append(issues, "page is suspiciously short, likely a stub")
	}
	if strings.Contains(lower, "<html") && !strings.Contains(lower, "</html>") {
		issues = append(issues, "unclosed html tag")
	}
	if strings.Contains(lower, "<body") && !strings.Contains(lower, "</body>") {
		issues = append(issues, "unclosed body tag")
	}
	if stylingPattern.MatchString(html) && !modernCSSPattern.MatchString(html) && len(html) > 2000 {
		issues = append(issues, "no flexbox or grid layout in a non-trivial page")
	}
	return issues
}

// inspectRendered screenshots the page and, when a vision model is wired,
// asks it whether the render looks broken. Best effort: any failure along
// the way just skips the visual check.
func (v *LayoutVerifier) inspectRendered(ctx context.Context, page string) string {
	if v.Browser == nil {
		return ""
	}
	shot, err := v.Browser.ScreenshotURL(ctx, "file://"+page)
	if err != nil {
		log.Printf("Layout verifier: screenshot of %s failed: %v", page, err)
		return ""
	}
	if v.Vision == nil {
		return ""
	}
	img, err := os.ReadFile(shot)
	if err != nil {
		return ""
	}
	resp, err := v.Vision.GenerateContent(ctx, []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart("Does this rendered web page look visually broken " +
					"(overlapping elements, unstyled text, empty page)? " +
					"Answer OK if it looks fine, otherwise describe the main problem in one sentence."),
				llms.BinaryPart("image/png", img),
			},
		},
	})
	if err != nil || len(resp.Choices) == 0 {
		return ""
	}
	verdict := strings.TrimSpace(resp.Choices[0].Content)
	if verdict == "" || strings.EqualFold(verdict, "OK") || strings.HasPrefix(strings.ToUpper(verdict), "OK") {
		return ""
	}
	return "rendered page looks broken: " + verdict
}

func (v *LayoutVerifier) findHTMLFiles() []string {
	var pages []string
	filepath.Walk(v.WorkDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".html") || strings.HasSuffix(path, ".htm") {
			pages = append(pages, path)
		}
		return nil
	})
	return pages
}

func isWebsiteGoal(goal string) bool {
	lower := strings.ToLower(goal)
	for _, kw := range websiteKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
