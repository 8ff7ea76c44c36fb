package share

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/joelkehle/patrol-report/internal/report"
)

const defaultCSS = `body{font-family:-apple-system,"Segoe UI",Roboto,Arial,sans-serif;color:#1c1917;font-size:13px;line-height:1.5;}
h1{font-size:18px;margin:0 0 0.4rem 0;}
.report-meta{color:#44403c;margin-bottom:0.6rem;}
.report-alert{display:block;background:#fef2f2;color:#991b1b;border:1px solid #fca5a5;border-radius:4px;padding:0.25rem 0.5rem;margin:0.2rem 0;font-weight:600;}
.report-html ul{padding-left:1.2rem;}`

// PDFRenderer prints a generated report to an A4 PDF with headless Chromium.
type PDFRenderer struct {
	webDir     string
	chromePath string
	styleOnce  sync.Once
	styleCSS   string
}

// NewPDFRenderer uses webDir/print.css as the stylesheet when present.
func NewPDFRenderer(webDir string) *PDFRenderer {
	return &PDFRenderer{
		webDir:     webDir,
		chromePath: detectChromePath(),
	}
}

func (r *PDFRenderer) Render(ctx context.Context, data report.Data, g report.Generated) ([]byte, error) {
	htmlDoc, err := r.buildHTML(data, g)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			out, _, err := printOptions(data, g).Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, err
	}
	return pdf, nil
}

// printOptions lays the report out on A4 with the guard and report date in
// the running header and page numbers in the footer.
func printOptions(data report.Data, g report.Generated) *page.PrintToPDFParams {
	const small = `font-size:8px;color:#57534e;width:100%;padding:0 0.45in;`
	header := `<div style="` + small + `display:flex;justify-content:space-between;">` +
		`<span>Safety Status Report</span><span>` + html.EscapeString(headerLine(data, g)) + `</span></div>`
	footer := `<div style="` + small + `text-align:center;">` +
		`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithDisplayHeaderFooter(true).
		WithHeaderTemplate(header).
		WithFooterTemplate(footer).
		WithPaperWidth(8.27).
		WithPaperHeight(11.69).
		WithMarginTop(0.6).
		WithMarginBottom(0.6).
		WithMarginLeft(0.5).
		WithMarginRight(0.5)
}

func headerLine(data report.Data, g report.Generated) string {
	var parts []string
	if name := strings.TrimSpace(data.GuardName); name != "" {
		parts = append(parts, name)
	}
	if !g.GeneratedAt.IsZero() {
		parts = append(parts, g.GeneratedAt.In(time.Local).Format("2 Jan 2006 15:04"))
	}
	return strings.Join(parts, " | ")
}

func (r *PDFRenderer) buildHTML(data report.Data, g report.Generated) (string, error) {
	var content strings.Builder
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
	)
	if err := md.Convert([]byte(whatsAppToMarkdown(g.Text)), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}

	var alerts strings.Builder
	for _, a := range g.Alerts {
		alerts.WriteString("<span class='report-alert'>" + html.EscapeString(a) + "</span>")
	}

	return "<!doctype html><html><head><meta charset='utf-8'><title>Safety Status Report</title>" +
		"<style>" + r.loadStyleCSS() + "\n" +
		"html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;}" +
		"</style></head><body>" +
		"<h1>Safety Status Report</h1>" +
		"<div class='report-meta'>" + buildMetaHTML(data, g) + "</div>" +
		"<div class='report-alerts'>" + alerts.String() + "</div>" +
		"<div class='report-html'>" + content.String() + "</div>" +
		"</body></html>", nil
}

var (
	reBullet = regexp.MustCompile(`(?m)^(\s*)\*\s+`)
	reBold   = regexp.MustCompile(`(^|[\s(])\*([^*\n]+)\*`)
)

// whatsAppToMarkdown rewrites WhatsApp markup ("*   " bullets, *bold*) into
// the markdown goldmark expects.
func whatsAppToMarkdown(text string) string {
	out := reBullet.ReplaceAllString(text, "$1- ")
	return reBold.ReplaceAllString(out, "$1**$2**")
}

func (r *PDFRenderer) loadStyleCSS() string {
	r.styleOnce.Do(func() {
		r.styleCSS = defaultCSS
		if r.webDir == "" {
			return
		}
		b, err := os.ReadFile(filepath.Join(r.webDir, "print.css"))
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Printf("read print.css failed, using default style err=%v", err)
			}
			return
		}
		r.styleCSS = string(b)
	})
	return r.styleCSS
}

func buildMetaHTML(data report.Data, g report.Generated) string {
	var out strings.Builder
	if name := strings.TrimSpace(data.GuardName); name != "" {
		out.WriteString("<div><strong>Guard:</strong> " + html.EscapeString(name) + "</div>")
	}
	if data.PatrolStartTime != "" || data.PatrolEndTime != "" {
		out.WriteString("<div><strong>Patrol:</strong> " + html.EscapeString(data.PatrolStartTime+" - "+data.PatrolEndTime) + "</div>")
	}
	if !g.GeneratedAt.IsZero() {
		out.WriteString("<div><strong>Generated:</strong> " + html.EscapeString(g.GeneratedAt.In(time.Local).Format("Monday, 2 January 2006 at 15:04 MST")) + "</div>")
	}
	if g.ID != "" {
		out.WriteString("<div><strong>Reference:</strong> " + html.EscapeString(g.ID) + "</div>")
	}
	return out.String()
}

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
