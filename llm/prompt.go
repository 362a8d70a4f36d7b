package llm

import (
	"fmt"
	"strings"

	"github.com/ZhuYizhou2333/Market-insight-bot/event"
)

const summarySystemPrompt = `你是加密货币市场事件与价格影响分析助手。仅基于给定的 Telegram 文本，识别正在发生的可验证事件，并用克制的叙事体总结其对价格的影响。

必须遵守：
- 只使用消息中的信息；不得补充常识或外部新闻；不得编造任何数字、来源或引言。
- 涨跌幅/价格/时间窗口如未在文本出现，写"未见明确数值/时间"。
- 原因不确定时写"原因不明/待观察"。如作推测，需明确标注"可能因……（据消息所述/多条提及）"。
- 避免口语化与煽动性词汇，避免表情符号与夸张修辞。

输出方式（叙事体，非结构化）：
- 每个热点用2-3句客观陈述：先概述事件，再给出价格影响（若有），最后说明可能原因与不确定性；必要时穿插一条原文引述。
- 若无明显热点，仅输出：暂无明显热点。`

const assessmentSystemPrompt = `你是一个加密货币市场情绪分析专家。你需要分析 Telegram 消息，判断市场波动率和社群活跃度。

你需要判断：
1. 市场波动率是否上升（基于价格讨论频率、紧急词汇、情绪强度）
2. 社群活跃度是否上升（基于消息频率、讨论热度、互动性）
3. 当前的热点话题

请严格按照以下 JSON 格式返回，不要有其他文字：
{
    "volatility_increased": true/false,
    "activity_increased": true/false,
    "summary": "简短说明原因和市场状况",
    "hot_topics": ["话题1", "话题2", "话题3"],
    "confidence": 0.0-1.0
}`

// formatEvents renders buffered events as "[source - date]: text" blocks.
// Events without text are skipped.
func formatEvents(events []event.StreamEvent) string {
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		if ev.Text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s - %s]: %s",
			ev.Source, ev.Timestamp.Format("2006-01-02T15:04:05Z07:00"), ev.Text))
	}
	return strings.Join(lines, "\n\n")
}

func summaryPrompts(events []event.StreamEvent) (system, user string) {
	user = fmt.Sprintf(`请分析以下 %d 条消息，提炼正在发生的热点事件及其对价格的影响。只依据消息内容作答；无法判断的项请直述（如"未见明确数值""原因不明/待观察"）。输出使用简洁叙事体，不要使用列表或小标题。

%s

请直接给出叙述；无热点则仅输出"暂无明显热点"。`, len(events), formatEvents(events))
	return summarySystemPrompt, user
}

func assessmentPrompts(events []event.StreamEvent) (system, user string) {
	user = fmt.Sprintf(`请分析以下 %d 条加密货币 Telegram 消息，判断市场波动率和社群活跃度是否上升：

%s

请严格按照 JSON 格式返回分析结果。`, len(events), formatEvents(events))
	return assessmentSystemPrompt, user
}
