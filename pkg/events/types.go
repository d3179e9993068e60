package events

// Kafka payloads exchanged with the rest of the platform.

type SubmissionJudgedEvent struct {
	SubmissionID    string `json:"submissionId"`
	UserID          string `json:"userId"`
	ProblemID       string `json:"problemId"`
	Verdict         string `json:"verdict"`
	Cancelled       bool   `json:"cancelled"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
	MemoryUsedKb    int64  `json:"memoryUsedKb"`
	TestCasesPassed int    `json:"testCasesPassed"`
	TestCasesTotal  int    `json:"testCasesTotal"`
	Timestamp       string `json:"timestamp"`
}

type LeaderboardUpdatedEvent struct {
	ContestID string          `json:"contestId"`
	Standings []StandingEntry `json:"standings"`
	Timestamp string          `json:"timestamp"`
}

type StandingEntry struct {
	UserID string `json:"userId"`
	Rank   int    `json:"rank"`
	Score  int    `json:"score"`
}

type ContestStartedEvent struct {
	ContestID string `json:"contestId"`
	Title     string `json:"title"`
	StartTime string `json:"startTime"`
	Timestamp string `json:"timestamp"`
}

type ContestEndedEvent struct {
	ContestID string `json:"contestId"`
	Title     string `json:"title"`
	EndTime   string `json:"endTime"`
	Timestamp string `json:"timestamp"`
}
