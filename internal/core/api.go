package core

import "time"

// Request types

type CreateSessionRequest struct {
	Engine string `json:"engine" validate:"omitempty,max=64"` // empty selects the default
}

type PositionRequest struct {
	FEN   string   `json:"fen,omitempty" validate:"omitempty,max=120"`
	Moves []string `json:"moves,omitempty" validate:"omitempty,max=512,dive,min=4,max=5"`
}

type SearchRequest struct {
	Position PositionRequest `json:"position"`
	Depth    int             `json:"depth,omitempty" validate:"omitempty,min=1,max=128"`
	MoveTime int             `json:"movetime,omitempty" validate:"omitempty,min=1,max=3600000"` // milliseconds
	Nodes    int64           `json:"nodes,omitempty" validate:"omitempty,min=1"`
	Infinite bool            `json:"infinite,omitempty"`
}

type SetOptionRequest struct {
	Name  string `json:"name" validate:"required,max=64"`
	Value string `json:"value" validate:"max=256"`
}

// Response types

type SessionResponse struct {
	Handle string            `json:"handle"`
	Engine string            `json:"engine"`
	State  string            `json:"state"`
	ID     map[string]string `json:"id,omitempty"`
}

type OptionResponse struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Default string   `json:"default,omitempty"`
	Min     int      `json:"min,omitempty"`
	Max     int      `json:"max,omitempty"`
	Vars    []string `json:"vars,omitempty"`
}

type SearchInfoResponse struct {
	MultiPV int      `json:"multipv"`
	Depth   int      `json:"depth"`
	Score   int      `json:"score"`
	Mate    int      `json:"mate,omitempty"`
	IsMate  bool     `json:"isMate"`
	Nodes   int64    `json:"nodes,omitempty"`
	NPS     int64    `json:"nps,omitempty"`
	TimeMs  int64    `json:"timeMs,omitempty"`
	PV      []string `json:"pv,omitempty"`
}

type BestMoveResponse struct {
	Move   string `json:"move"`
	Ponder string `json:"ponder,omitempty"`
	Draw   bool   `json:"draw,omitempty"`
	Resign bool   `json:"resign,omitempty"`
	None   bool   `json:"none,omitempty"`
}

type SessionStatusResponse struct {
	Handle   string               `json:"handle"`
	Engine   string               `json:"engine"`
	State    string               `json:"state"`
	Latest   []SearchInfoResponse `json:"latest,omitempty"`
	BestMove *BestMoveResponse    `json:"bestMove,omitempty"`
	Options  []OptionResponse     `json:"options,omitempty"`
}

type SearchHistoryEntry struct {
	FEN      string    `json:"fen,omitempty"`
	Moves    string    `json:"moves,omitempty"`
	Params   string    `json:"params,omitempty"`
	BestMove string    `json:"bestMove"`
	Ponder   string    `json:"ponder,omitempty"`
	Score    int       `json:"score"`
	Mate     int       `json:"mate,omitempty"`
	Depth    int       `json:"depth"`
	DoneAt   time.Time `json:"doneAt"`
}

type EngineListResponse struct {
	Default string   `json:"default"`
	Engines []string `json:"engines"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
