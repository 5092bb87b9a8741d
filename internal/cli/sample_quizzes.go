package cli

import (
	"context"
	"log/slog"
	"time"

	"quiz-host-service/internal/domain"
)

// itQuizID is the id of the built-in IT Knowledge Quiz.
const itQuizID = "itquiz123"

type quizSaver interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
}

// seedQuizzes stores the sample quizzes that are not present yet.
func seedQuizzes(ctx context.Context, source quizSaver, quizzes []domain.Quiz) error {
	for _, quiz := range quizzes {
		if _, err := source.LoadQuiz(ctx, quiz.ID); err == nil {
			continue
		}
		if err := source.SaveQuiz(ctx, quiz); err != nil {
			return err
		}
		slog.Info("seeded quiz", "quiz", quiz.ID, "questions", len(quiz.Questions))
	}
	return nil
}

func sampleQuizzes(now time.Time) []domain.Quiz {
	q := func(prompt string, correct int, options ...string) domain.Question {
		return domain.Question{
			Question:           prompt,
			Options:            options,
			CorrectOptionIndex: correct,
			TimeLimit:          domain.DefaultTimeLimit,
			Points:             domain.DefaultPoints,
		}
	}
	itQuestions := []domain.Question{
		q("What does CPU stand for?", 0, "Central Processing Unit", "Computer Personal Unit", "Central Process Utility", "Central Processor Unit"),
		q("Which of these is not a programming language?", 2, "Java", "Python", "HTML", "Ruby"),
		q("What is the main function of an operating system?", 1, "Run applications", "Manage hardware and software resources", "Create documents", "Connect to the internet"),
		q("Which company developed the first smartphone?", 2, "Apple", "Samsung", "IBM", "Nokia"),
		q("What does HTTP stand for?", 0, "HyperText Transfer Protocol", "High Tech Transfer Protocol", "Hyperlink Text Transfer Process", "Home Tool Transfer Protocol"),
		q("What is the function of RAM in a computer?", 2, "Long-term storage", "Processing data", "Temporary memory storage", "Network connectivity"),
		q("Which of these is a cloud storage service?", 1, "Excel", "Dropbox", "Photoshop", "Notepad"),
		q("What is the purpose of a firewall?", 1, "Speed up internet connection", "Filter network traffic for security", "Improve display resolution", "Increase processing power"),
		q("Which of these is an example of a database management system?", 1, "Microsoft Word", "SQL Server", "Windows 10", "Chrome"),
		q("What does VPN stand for?", 0, "Virtual Private Network", "Visual Processing Node", "Virtual Personal Navigator", "Very Powerful Network"),
		q("Which programming language is primarily used for iOS app development?", 1, "Java", "Swift", "C#", "Python"),
		q("What is the function of an IP address?", 1, "Secure websites", "Identify devices on a network", "Store passwords", "Process graphics"),
		q("Which of these is not a web browser?", 3, "Chrome", "Firefox", "Safari", "Oracle"),
		q("What is phishing?", 1, "A computer virus", "An attempt to obtain sensitive information by disguising as a trustworthy entity", "A programming language", "A networking protocol"),
		q("What is the purpose of a DNS server?", 1, "Store websites", "Convert domain names to IP addresses", "Create secure connections", "Process online payments"),
	}
	return []domain.Quiz{
		{
			ID:          itQuizID,
			Title:       "IT Knowledge Quiz",
			Description: "Test your knowledge of information technology concepts and terms",
			Questions:   itQuestions,
			CreatedAt:   now,
		},
	}
}
