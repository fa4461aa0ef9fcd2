package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/randalmurphal/duetto/pkg/duetto/delivery"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

var feishuColors = map[delivery.Level]string{
	delivery.LevelInfo:     "blue",
	delivery.LevelSuccess:  "green",
	delivery.LevelWarning:  "orange",
	delivery.LevelError:    "red",
	delivery.LevelCritical: "carmine",
}

var discordColors = map[event.Priority]int{
	event.High:   16711680,
	event.Medium: 15105570,
	event.Low:    3447003,
}

const discordDefaultColor = 10181038

var priorityEmoji = map[event.Priority]string{
	event.High:   "🔴",
	event.Medium: "🟡",
	event.Low:    "🔵",
}

var typeEmoji = map[event.Type]string{
	event.TypeSEC8K:       "📄",
	event.TypeSECS3:       "💰",
	event.TypeSECForm4:    "👤",
	event.TypeFDAApproval: "💊",
	event.TypeFDAPDUFA:    "📅",
	event.TypeFDATrial:    "🔬",
	event.TypePRNews:      "📰",
}

var catalystLabels = map[string]string{
	"merger_acquisition":       "M&A",
	"fda_catalyst":             "FDA",
	"offering_dilution":        "Offering",
	"contract_partnership":     "Partnership",
	"insider_activity":         "Insider",
	"bankruptcy_restructuring": "Bankruptcy",
}

type object = map[string]any

func feishuCard(t delivery.Template) ([]byte, error) {
	color, ok := feishuColors[t.Level]
	if !ok {
		color = "blue"
	}

	elements := []object{
		{"tag": "div", "text": object{"tag": "lark_md", "content": t.Body}},
	}
	if len(t.Fields) > 0 {
		lines := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			lines[i] = fmt.Sprintf("**%s**: %s", f.Key, f.Value)
		}
		elements = append(elements, object{
			"tag":  "div",
			"text": object{"tag": "lark_md", "content": strings.Join(lines, "\n")},
		})
	}
	if t.Link != "" {
		text := t.LinkText
		if text == "" {
			text = "View source"
		}
		elements = append(elements, object{
			"tag": "action",
			"actions": []object{{
				"tag":  "button",
				"text": object{"tag": "plain_text", "content": text},
				"url":  t.Link,
				"type": "primary",
			}},
		})
	}

	return json.Marshal(object{
		"msg_type": "interactive",
		"card": object{
			"header": object{
				"title":    object{"tag": "plain_text", "content": t.Title},
				"template": color,
			},
			"elements": elements,
		},
	})
}

func discordEmbed(evt event.Event) ([]byte, error) {
	color, ok := discordColors[evt.Priority]
	if !ok {
		color = discordDefaultColor
	}

	fields := []object{{"name": "Company", "value": orNA(evt.Company), "inline": true}}
	if evt.Ticker != "" {
		fields = append(fields, object{"name": "Ticker", "value": evt.Ticker, "inline": true})
	}
	fields = append(fields, object{"name": "Source", "value": evt.Source, "inline": true})

	embed := object{
		"title":       evt.Title,
		"description": truncate(evt.Summary, 4000),
		"color":       color,
		"fields":      fields,
		"timestamp":   evt.CreatedAt.Format(time.RFC3339),
	}
	if evt.URL != "" {
		embed["url"] = evt.URL
	}
	if cats := evt.Catalysts(); len(cats) > 0 {
		embed["footer"] = object{"text": strings.Join(cats, " | ")}
	}
	return json.Marshal(object{"embeds": []object{embed}})
}

func slackBlocks(evt event.Event) ([]byte, error) {
	headline := "*" + evt.Title + "*\n" + evt.Company
	if evt.Ticker != "" {
		headline += " | `" + evt.Ticker + "`"
	}

	blocks := []object{
		{"type": "header", "text": object{
			"type": "plain_text",
			"text": fmt.Sprintf("%s %s Priority Alert", emojiFor(evt.Priority), strings.ToUpper(evt.Priority.String())),
		}},
		{"type": "divider"},
		{"type": "section", "text": object{"type": "mrkdwn", "text": headline}},
		{"type": "divider"},
		{"type": "section", "text": object{"type": "mrkdwn", "text": "*Summary:*\n" + truncate(evt.Summary, 1000)}},
	}
	if analysis, ok := evt.Enrichment["ai_summary"]; ok && analysis != nil {
		blocks = append(blocks,
			object{"type": "divider"},
			object{"type": "section", "text": object{"type": "mrkdwn", "text": fmt.Sprintf("🤖 *Analysis:*\n%v", analysis)}},
		)
	}

	footer := evt.Source + " | " + evt.CreatedAt.UTC().Format(timeLayout)
	if evt.URL != "" {
		footer += " | <" + evt.URL + "|View Source>"
	}
	blocks = append(blocks,
		object{"type": "divider"},
		object{"type": "context", "elements": []object{{"type": "mrkdwn", "text": footer}}},
	)
	return json.Marshal(object{"blocks": blocks})
}

func telegramMessage(chatID string, evt event.Event) ([]byte, error) {
	return json.Marshal(object{
		"chat_id":                  chatID,
		"text":                     telegramText(evt),
		"parse_mode":               "Markdown",
		"disable_web_page_preview": false,
	})
}

func telegramText(evt event.Event) string {
	icon, ok := typeEmoji[evt.Type]
	if !ok {
		icon = "📋"
	}

	lines := []string{
		fmt.Sprintf("%s *%s Priority*", emojiFor(evt.Priority), strings.ToUpper(evt.Priority.String())),
		"",
		fmt.Sprintf("%s *%s*", icon, evt.Title),
	}
	if evt.Ticker != "" {
		lines = append(lines, fmt.Sprintf("`%s` | %s", evt.Ticker, evt.Company))
	} else {
		lines = append(lines, evt.Company)
	}
	lines = append(lines, "", "📝 *Summary:*", evt.Summary, "")

	if cats := evt.Catalysts(); len(cats) > 0 {
		tags := make([]string, len(cats))
		for i, c := range cats {
			label, ok := catalystLabels[c]
			if !ok {
				label = c
			}
			tags[i] = "#" + label
		}
		lines = append(lines, "🏷 "+strings.Join(tags, " "), "")
	}
	if analysis, ok := evt.Enrichment["ai_summary"]; ok && analysis != nil {
		lines = append(lines, "🤖 *Analysis:*", fmt.Sprint(analysis), "")
	}

	lines = append(lines, "📅 "+evt.CreatedAt.UTC().Format(timeLayout))
	if evt.URL != "" {
		lines = append(lines, fmt.Sprintf("🔗 [View Source](%s)", evt.URL))
	}
	lines = append(lines, "", fmt.Sprintf("_Source: %s_", evt.Source))
	return strings.Join(lines, "\n")
}

func emojiFor(p event.Priority) string {
	if e, ok := priorityEmoji[p]; ok {
		return e
	}
	return "⚪"
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
