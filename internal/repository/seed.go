package repository

import "github.com/velric/velric-server/internal/model"

// StaticMissions is the catalog every fresh database starts with.
var StaticMissions = []model.Mission{
	{
		ID:          "1",
		Title:       "Rate-limited URL shortener",
		Description: "Design and implement a URL shortener API with per-client rate limiting. Explain how the limiter behaves across restarts.",
		Field:       "Technical",
		Difficulty:  "Intermediate",
		Skills:      []string{"api design", "caching", "python"},
	},
	{
		ID:          "2",
		Title:       "Log anomaly detector",
		Description: "Given a stream of request logs, flag windows whose error rate deviates from the trailing baseline.",
		Field:       "Technical",
		Difficulty:  "Advanced",
		Skills:      []string{"streaming", "statistics", "python"},
	},
	{
		ID:          "3",
		Title:       "Go-to-market plan for a developer tool",
		Description: "Write a launch plan for a paid CLI tool aimed at platform teams: pricing, channels and the first-quarter metrics you would track.",
		Field:       "Non-technical",
		Difficulty:  "Beginner",
		Skills:      []string{"strategy", "communication"},
	},
}
