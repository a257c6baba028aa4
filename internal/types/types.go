package types

import "github.com/mottyeytan/HeadToHead/internal/question"

// Client -> Server intents.
const (
	MsgJoinRoom     = "room:join"
	MsgLeaveRoom    = "room:leave"
	MsgStartGame    = "game:start"
	MsgSubmitAnswer = "game:answer"
	MsgPlayerReady  = "game:player_ready"
	MsgLeaveGame    = "game:leave"
	MsgGetGameState = "game:get_state"
)

// Server -> Client events.
const (
	EvtPlayersUpdated = "room:players"
	EvtRoomError      = "room:error"
	EvtGameStarted    = "game:started"
	EvtNewQuestion    = "game:new_question"
	EvtTimeUpdate     = "game:time"
	EvtAnswerResult   = "game:answer_result"
	EvtPlayerAnswered = "game:player_answered"
	EvtPlayerReady    = "game:player_ready"
	EvtRevealAnswer   = "game:reveal"
	EvtGameOver       = "game:over"
	EvtPlayerLeft     = "game:player_left_game"
	EvtGameState      = "game:state"
	EvtGameError      = "game:error"
)

// ClientMessage is the single inbound frame shape. Which fields matter
// depends on Type; the gateway validates before anything reaches the engine.
type ClientMessage struct {
	Type       string `json:"type"`
	RoomID     string `json:"roomId,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
	Category   string `json:"category,omitempty"`
	Answer     string `json:"answer,omitempty"`
}

// ServerMessage is the outbound frame: an event name plus its tagged
// payload, one payload struct per event.
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// PlayerView is the public slice of a player shown to the whole room.
type PlayerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// QuestionView is what clients see while a question is open. The correct
// answer and explanation stay server-side until the reveal.
type QuestionView struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty,omitempty"`
}

func NewQuestionView(q question.Question) QuestionView {
	return QuestionView{
		ID:         q.ID,
		Text:       q.Text,
		Category:   q.Category,
		Difficulty: q.Difficulty,
	}
}

type PlayersUpdated struct {
	RoomID  string       `json:"roomId"`
	Players []PlayerView `json:"players"`
}

type RoomError struct {
	Message string `json:"message"`
}

type GameError struct {
	Message string `json:"message"`
}

type GameStarted struct {
	RoomID         string       `json:"roomId"`
	TotalQuestions int          `json:"totalQuestions"`
	Players        []PlayerView `json:"players"`
	FirstQuestion  *NewQuestion `json:"firstQuestion,omitempty"`
}

// NewQuestion opens a round. QuestionIndex is 1-based for display.
type NewQuestion struct {
	QuestionIndex  int          `json:"questionIndex"`
	TotalQuestions int          `json:"totalQuestions"`
	Question       QuestionView `json:"question"`
	TimeLimit      int          `json:"timeLimit"`
}

type TimeUpdate struct {
	RemainingTime int `json:"remainingTime"`
}

// AnswerResult goes to the submitter only.
type AnswerResult struct {
	RoomID      string `json:"roomId"`
	PlayerID    string `json:"playerId"`
	IsCorrect   bool   `json:"isCorrect"`
	TimeTakenMs int64  `json:"timeTaken"`
}

// PlayerAnswered tells the room someone answered, without the answer.
type PlayerAnswered struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type PlayerReady struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type PlayerResult struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Answer      string `json:"answer,omitempty"`
	Answered    bool   `json:"answered"`
	IsCorrect   bool   `json:"isCorrect"`
	TimeTakenMs int64  `json:"timeTaken"`
}

type ScoreEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

type RevealAnswer struct {
	CorrectAnswer string         `json:"correctAnswer"`
	Explanation   string         `json:"explanation"`
	Results       []PlayerResult `json:"results"`
	Scores        []ScoreEntry   `json:"scores"`
}

type GameOver struct {
	FinalScores        []ScoreEntry  `json:"finalScores"`
	Winner             string        `json:"winner"`
	Reason             string        `json:"reason,omitempty"`
	LastQuestionAnswer *RevealAnswer `json:"lastQuestionAnswer,omitempty"`
}

type PlayerLeftGame struct {
	PlayerID         string       `json:"playerId"`
	PlayerName       string       `json:"playerName"`
	RemainingPlayers []PlayerView `json:"remainingPlayers"`
}

// GameState answers a game:get_state request for late or re-rendering
// clients.
type GameState struct {
	Exists         bool          `json:"exists"`
	Phase          string        `json:"phase,omitempty"`
	Question       *QuestionView `json:"currentQuestion,omitempty"`
	QuestionIndex  int           `json:"questionIndex,omitempty"`
	TotalQuestions int           `json:"totalQuestions,omitempty"`
	RemainingTime  int           `json:"remainingTime,omitempty"`
	Scores         []ScoreEntry  `json:"scores,omitempty"`
}
