package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/tools"
	"github.com/tmc/langchaingo/llms"
)

// defaultMaxCorrections is the self-correction budget per dispatched step.
const defaultMaxCorrections = 3

const browseHelpLimit = 1000

// selfCorrect runs the bounded fix loop: remediate the environment if the
// failure is a missing dependency, then ask the model for a full rewrite and
// re-execute. It returns whether a correction succeeded, the last answer,
// and the last execution transcript. Attempts that produce no code block
// still count against the budget.
func (c *CoderAgent) selfCorrect(ctx context.Context, messages *[]llms.MessageContent, answer, errorFeedback string) (bool, string, string) {
	lastAnswer := answer
	lastFeedback := errorFeedback

	for attempt := 1; attempt <= c.maxCorrections; attempt++ {
		log.Printf("Self-correction attempt %d/%d", attempt, c.maxCorrections)
		c.logger.LogSelfCorrection("", "", attempt, c.maxCorrections, "rewrite", truncateText(lastFeedback, 300))

		browseInfo := ""
		if module, ok := tools.MissingModuleName(lastFeedback); ok {
			if c.installer != nil && c.installer.InstallFromError(ctx, lastFeedback) {
				log.Printf("Installed missing module %q, re-running", module)
			} else if c.browser != nil {
				browseInfo = c.browseForHelp(ctx, module)
			}
		}

		*messages = append(*messages, llms.TextParts(llms.ChatMessageTypeHuman,
			c.correctionPrompt(lastFeedback, browseInfo)))

		fixed, err := c.ask(ctx, messages)
		if err != nil {
			return false, lastAnswer, fmt.Sprintf("Error: %v", err)
		}
		lastAnswer = fixed

		if !tools.HasBlocks(fixed) {
			lastFeedback = "the corrected answer contained no code block"
			continue
		}

		ok, feedback := c.executeBlocks(ctx, fixed)
		lastFeedback = feedback
		if ok && !hasErrorIndicators(feedback) {
			return true, lastAnswer, lastFeedback
		}
	}
	return false, lastAnswer, lastFeedback
}

// browseForHelp asks the browse-capable collaborator how to install a
// package that pip could not resolve directly.
func (c *CoderAgent) browseForHelp(ctx context.Context, module string) string {
	query := fmt.Sprintf("Search for how to install the Python package %q on Linux with pip "+
		"and report the exact install command.", module)
	res, err := c.browser.Process(ctx, query)
	if err != nil || res.Answer == "" {
		return ""
	}
	return truncateText(res.Answer, browseHelpLimit)
}

func (c *CoderAgent) correctionPrompt(feedback, browseInfo string) string {
	var b strings.Builder
	b.WriteString("The previous code failed. Execution output:\n")
	b.WriteString(truncateText(feedback, 1500))
	b.WriteString("\n\nRewrite the ENTIRE corrected code from scratch, not a diff or fragment. ")
	b.WriteString("Keep the same filenames. Fix the root cause of the failure.")
	if browseInfo != "" {
		b.WriteString("\n\nResearch notes that may help:\n")
		b.WriteString(browseInfo)
	}
	return b.String()
}
