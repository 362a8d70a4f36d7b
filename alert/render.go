// Package alert renders analysis reports as markdown email alerts and
// dispatches them over SMTP.
package alert

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ZhuYizhou2333/Market-insight-bot/analyzer"
	"github.com/ZhuYizhou2333/Market-insight-bot/errors"
	"github.com/ZhuYizhou2333/Market-insight-bot/event"
)

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Subject builds the alert subject line.
func Subject(report analyzer.Report) string {
	return fmt.Sprintf("[Market Alert] 市场波动率上升 - %s",
		report.GeneratedAt.Format("2006-01-02 15:04:05"))
}

// statusLine renders one boolean signal with its markdown emphasis.
func statusLine(up bool, upLabel, normalLabel string) string {
	if up {
		return upLabel
	}
	return normalLabel
}

// confidenceBar renders confidence as a ten-segment bar.
func confidenceBar(confidence float64) string {
	filled := int(confidence * 10)
	if filled < 0 {
		filled = 0
	}
	if filled > 10 {
		filled = 10
	}
	return strings.Repeat("🟢", filled) + strings.Repeat("⚪", 10-filled)
}

// RenderMarkdown composes the alert body.
func RenderMarkdown(report analyzer.Report) string {
	a := report.Assessment

	topics := "暂无明显热点"
	if len(a.HotTopics) > 0 {
		lines := make([]string, len(a.HotTopics))
		for i, topic := range a.HotTopics {
			lines[i] = "- " + topic
		}
		topics = strings.Join(lines, "\n")
	}

	summary := a.Summary
	if summary == "" {
		summary = "暂无详细说明"
	}

	channelSummary := report.Summaries[event.CategoryChannel]
	if channelSummary == "" {
		channelSummary = "暂无摘要"
	}
	groupSummary := report.Summaries[event.CategoryGroup]
	if groupSummary == "" {
		groupSummary = "暂无摘要"
	}

	return fmt.Sprintf(`# 🚨 市场波动率警报

**分析时间**: %s
**分析消息数**: %d 条
**累计消息数**: %d 条

---

## 📊 分析结果

### 市场波动率
%s

### 社群活跃度
%s

### 置信度
%s %.1f%%

---

## 🔥 当前热点话题

%s

---

## 📝 市场状况说明

%s

---

## 📰 新闻摘要（频道）

%s

---

## 👥 社群摘要（群组）

%s

---

*本邮件由 Market Insight Bot 自动生成*
`,
		report.GeneratedAt.Format("2006-01-02 15:04:05"),
		report.BufferLen,
		report.TotalEvents,
		statusLine(a.VolatilityIncreased, "📈 **上升**", "📊 正常"),
		statusLine(a.ActivityIncreased, "🔥 **上升**", "💤 正常"),
		confidenceBar(a.Confidence),
		a.Confidence*100,
		topics,
		summary,
		channelSummary,
		groupSummary,
	)
}

// RenderHTML converts the markdown body to HTML for the email's alternative
// part.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(markdown), &buf); err != nil {
		return "", errors.Wrap(err, "alert", "RenderHTML", "convert markdown")
	}
	return buf.String(), nil
}
