package service

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	BroadcastToInspection(inspectionID string, msgType string, payload interface{})
	DisconnectInspection(inspectionID string)
}

// Message types pushed to inspection watchers
const (
	MsgProgressUpdate      = "progress_update"
	MsgQuestionState       = "question_state"
	MsgSubChecklistStarted = "subchecklist_started"
	MsgInspectionCompleted = "inspection_completed"
)

// QuestionStatePayload tells watchers which questions entered or left play
type QuestionStatePayload struct {
	QuestionID           string   `json:"questionId"`
	Activated            []string `json:"activated,omitempty"`
	Deactivated          []string `json:"deactivated,omitempty"`
	SubChecklistUnlocked string   `json:"subChecklistUnlocked,omitempty"`
}
