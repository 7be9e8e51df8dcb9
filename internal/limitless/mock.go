package limitless

import (
	"encoding/json"
	"fmt"
	"time"
)

// mockCap bounds the synthetic data set
const mockCap = 10

var mockTopics = []string{
	"project status update",
	"meeting notes",
	"task list",
	"research ideas",
	"personal goals",
	"weekly planning",
}

var mockContents = map[string]string{
	"project status update": "Quick project status update. The client portal redesign is in progress and the login form still needs validation work. " +
		"I need to send the revised timeline to Dana by Friday. This is high priority because the launch depends on it.",
	"meeting notes": "Notes from the product sync. We agreed to schedule a follow-up meeting next Tuesday at 2pm with the design team " +
		"to review the onboarding flow. Sam will prepare the agenda and I should email the participants a reminder.",
	"task list": "Task list for today: finish the quarterly report, call the accountant about the invoice, and review the pull request " +
		"for the billing service. The report is urgent and has to be done by tomorrow.",
	"research ideas": "Research idea worth looking into: compare vector databases for the search feature. Questions are latency at scale " +
		"and pricing. Sources to check are the vendor benchmarks and a couple of engineering blog posts.",
	"personal goals": "Personal goals for the month. I want to run three times a week, read two books, and finally plan the trip to Lisbon. " +
		"Remember to book the flights soon before prices go up.",
	"weekly planning": "Weekly planning session. Main project this week is the data migration, which is underway. TB make sure the backup " +
		"job is verified before Thursday. Also need to message Priya about the on-call schedule.",
}

var mockLocations = []string{"home", "office", "coffee shop"}

// MockTranscripts returns up to n deterministic synthetic transcripts whose
// timestamps are spread over the week before now.
func MockTranscripts(now time.Time, n int) []Transcript {
	if n > mockCap {
		n = mockCap
	}
	if n < 0 {
		n = 0
	}

	out := make([]Transcript, 0, n)
	for i := 0; i < n; i++ {
		topic := mockTopics[i%len(mockTopics)]
		offset := time.Duration(i%7)*24*time.Hour +
			time.Duration((i*3)%24)*time.Hour +
			time.Duration((i*7)%60)*time.Minute

		meta := map[string]json.RawMessage{
			"device_id": mustRaw(fmt.Sprintf("device-%d", i%3)),
			"location":  mustRaw(mockLocations[i%len(mockLocations)]),
			"topic":     mustRaw(topic),
			"mock":      json.RawMessage("true"),
		}

		out = append(out, Transcript{
			ID:           fmt.Sprintf("mock-transcript-%d", i),
			Timestamp:    FlexibleTime{Time: now.Add(-offset).UTC()},
			Content:      mockContents[topic],
			Participants: []string{"me"},
			Metadata:     meta,
		})
	}
	return out
}

func findMock(now time.Time, id string) *Transcript {
	for _, t := range MockTranscripts(now, mockCap) {
		if t.ID == id {
			found := t
			return &found
		}
	}
	return nil
}

func mustRaw(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
