package slack

import (
	"fmt"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

var failureReasonLabel = map[string]string{
	"PROVIDER_ERROR": "Provider call failed",
	"STAGE_TIMEOUT":  "Pipeline stage timed out",
	"STAGE_ERROR":    "Pipeline stage error",
	"NO_RESULTS":     "No results after relax",
	"INTERNAL_ERROR": "Internal error",
}

func requestURL(requestID, dashboardURL string) string {
	return fmt.Sprintf("%s/requests/%s", dashboardURL, requestID)
}

// BuildJobFailedMessage creates Block Kit blocks for a terminal
// DONE_FAILED notification.
func BuildJobFailedMessage(input JobFailedInput, dashboardURL string) []goslack.Block {
	label := failureReasonLabel[input.FailureReason]
	if label == "" {
		label = input.FailureReason
	}

	headerText := fmt.Sprintf(":x: *Search job failed* (request `%s`) — %s", input.RequestID, truncateForSlack(label))
	var blocks []goslack.Block
	blocks = append(blocks, goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, headerText, false, false),
		nil, nil,
	))

	url := requestURL(input.RequestID, dashboardURL)
	btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, "View Request", false, false))
	btn.URL = url
	blocks = append(blocks, goslack.NewActionBlock("", btn))

	return blocks
}

func truncateForSlack(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxBlockTextLength {
		return text
	}
	return string(runes[:maxBlockTextLength]) + "\n\n_... (truncated)_"
}
