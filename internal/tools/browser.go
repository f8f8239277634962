package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
)

// BrowserTool drives a headless browser session that stays open between
// calls until 'close'.
type BrowserTool struct {
	ScreenshotDir string

	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

func NewBrowserTool(screenshotDir string) *BrowserTool {
	if screenshotDir == "" {
		screenshotDir = ".screenshots"
	}
	return &BrowserTool{ScreenshotDir: screenshotDir}
}

func (b *BrowserTool) Name() string {
	return "browser"
}

func (b *BrowserTool) Description() string {
	return "Control a headless browser. Actions: 'navigate', 'content', 'click', 'wait', 'screenshot', 'close'. The session persists between calls until 'close'."
}

func (b *BrowserTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"navigate", "content", "click", "wait", "screenshot", "close"},
				"description": "The action to perform.",
			},
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to navigate to (required for 'navigate')",
			},
			"selector": map[string]any{
				"type":        "string",
				"description": "CSS selector for the target element ('click', 'wait')",
			},
			"wait_seconds": map[string]any{
				"type":        "integer",
				"description": "Time to wait in seconds (used with 'wait')",
			},
		},
		"required": []string{"action"},
	}
}

func (b *BrowserTool) initBrowser() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil {
		select {
		case <-b.browserCtx.Done():
			b.cleanup()
		default:
			return nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	b.browserCtx, b.browserCancel = chromedp.NewContext(b.allocCtx)

	return chromedp.Run(b.browserCtx)
}

func (b *BrowserTool) cleanup() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.browserCtx = nil
	b.allocCtx = nil
}

// Close tears down the browser session if one is open.
func (b *BrowserTool) Close() {
	b.mu.Lock()
	b.cleanup()
	b.mu.Unlock()
}

// ScreenshotURL loads a URL and captures a full screenshot, used by the
// post-run layout verifier on file:// previews.
func (b *BrowserTool) ScreenshotURL(ctx context.Context, pageURL string) (string, error) {
	if err := b.initBrowser(); err != nil {
		return "", fmt.Errorf("failed to initialize browser: %v", err)
	}

	actionCtx, cancel := context.WithTimeout(b.browserCtx, 60*time.Second)
	defer cancel()

	var buf []byte
	err := chromedp.Run(actionCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(2*time.Second),
		chromedp.CaptureScreenshot(&buf),
	)
	if err != nil {
		return "", fmt.Errorf("screenshot failed: %v", err)
	}
	return b.saveScreenshot(buf)
}

func (b *BrowserTool) saveScreenshot(buf []byte) (string, error) {
	if err := os.MkdirAll(b.ScreenshotDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(b.ScreenshotDir, fmt.Sprintf("capture_%d.png", time.Now().Unix()))
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return "", err
	}
	abs, _ := filepath.Abs(path)
	return abs, nil
}

func (b *BrowserTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Action      string `json:"action"`
		URL         string `json:"url"`
		Selector    string `json:"selector"`
		WaitSeconds int    `json:"wait_seconds"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}

	if args.Action == "close" {
		b.Close()
		return "Successfully closed the browser.", nil
	}

	if err := b.initBrowser(); err != nil {
		return "", fmt.Errorf("failed to initialize browser: %v", err)
	}

	actionCtx, cancel := context.WithTimeout(b.browserCtx, 60*time.Second)
	defer cancel()

	var result string
	var err error

	switch args.Action {
	case "navigate":
		if args.URL == "" {
			return "Error: url is required for 'navigate'", nil
		}
		err = chromedp.Run(actionCtx, chromedp.Navigate(args.URL))
		result = fmt.Sprintf("Successfully navigated to %s", args.URL)

	case "content":
		var html string
		err = chromedp.Run(actionCtx,
			chromedp.ActionFunc(func(ctx context.Context) error {
				node, err := dom.GetDocument().Do(ctx)
				if err != nil {
					return err
				}
				html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
				return err
			}),
		)
		if len(html) > 50000 {
			html = html[:50000] + "\n... (truncated)"
		}
		result = html

	case "click":
		if args.Selector == "" {
			return "Error: selector required", nil
		}
		err = chromedp.Run(actionCtx, chromedp.Click(args.Selector, chromedp.ByQuery))
		result = fmt.Sprintf("Clicked %s", args.Selector)

	case "wait":
		if args.Selector != "" {
			err = chromedp.Run(actionCtx, chromedp.WaitVisible(args.Selector, chromedp.ByQuery))
			result = fmt.Sprintf("Finished waiting for %s", args.Selector)
		} else if args.WaitSeconds > 0 {
			err = chromedp.Run(actionCtx, chromedp.Sleep(time.Duration(args.WaitSeconds)*time.Second))
			result = fmt.Sprintf("Waited for %d seconds", args.WaitSeconds)
		} else {
			result = "Nothing to wait for"
		}

	case "screenshot":
		var buf []byte
		err = chromedp.Run(actionCtx, chromedp.CaptureScreenshot(&buf))
		if err == nil {
			result, err = b.saveScreenshot(buf)
			if err == nil {
				result = "Screenshot saved to " + result
			}
		}

	default:
		return "Invalid action", nil
	}

	if err != nil {
		return fmt.Sprintf("Browser action failed: %v", err), nil
	}
	return result, nil
}
