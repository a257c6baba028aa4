package game

import "github.com/mottyeytan/HeadToHead/internal/types"

type msg interface{ isSessionMsg() }

type startMsg struct{}

func (startMsg) isSessionMsg() {}

type submitMsg struct {
	PlayerID string
	Answer   string
}

func (submitMsg) isSessionMsg() {}

type readyMsg struct{ PlayerID string }

func (readyMsg) isSessionMsg() {}

type leaveMsg struct{ PlayerID string }

func (leaveMsg) isSessionMsg() {}

type getStateMsg struct{ Reply chan types.GameState }

func (getStateMsg) isSessionMsg() {}

type shutdownMsg struct{}

func (shutdownMsg) isSessionMsg() {}
