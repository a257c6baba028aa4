package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is read once at startup. A .env file is honored when present;
// real environment variables win.
type Config struct {
	Addr           string
	AllowedOrigins []string
	QuestionCount  int
	QuestionSec    int
	AnswerSec      int
}

func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:           getString("HTH_ADDR", ":8080"),
		AllowedOrigins: getList("HTH_ALLOWED_ORIGINS", []string{"*"}),
		QuestionCount:  getInt("HTH_QUESTIONS_PER_GAME", 10),
		QuestionSec:    getInt("HTH_QUESTION_SECONDS", 15),
		AnswerSec:      getInt("HTH_ANSWER_SECONDS", 5),
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
