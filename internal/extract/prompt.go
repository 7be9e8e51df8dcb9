package extract

import (
	"fmt"
	"time"
)

// SystemPromptTemplate is filled with today's date in YYYY-MM-DD form
const SystemPromptTemplate = `You are an assistant that extracts actionable items from voice transcripts.
Analyze the transcript and extract:

1. Tasks: actions that need to be done, with title, description, priority, due_date, and project.
2. Meetings: mentioned meetings, with title, date, time, participants, and agenda.
3. Projects: project references, with name, description, and timeline.
4. Research: research topics or information needs, with topic, questions, and sources.
5. Messages: messages that need to be sent to specific people, with recipient, content, medium, and urgency.

Return ONLY a JSON object with the keys "tasks", "meetings", "projects", "research" and "messages", each holding a list (empty when nothing applies).
For dates, use ISO format (YYYY-MM-DD) and extract them if mentioned.
If a date is relative (e.g., "next Monday"), convert it based on today's date.
If priority is not explicitly mentioned, infer it from the context as "high", "medium", or "low".

Today's date is: %s`

// UserPromptPrefix precedes the raw transcript content in the user message
const UserPromptPrefix = "Transcript content: "

// SystemPrompt renders the system instruction for the given day
func SystemPrompt(today time.Time) string {
	return fmt.Sprintf(SystemPromptTemplate, today.Format("2006-01-02"))
}

// UserPrompt wraps transcript content for the model
func UserPrompt(content string) string {
	return UserPromptPrefix + content
}

// ManualPrompt combines both prompts into one block for pasting into a chat UI
func ManualPrompt(today time.Time, content string) string {
	return SystemPrompt(today) + "\n\n---\n\n" + UserPrompt(content)
}
