package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// MessageType identifies the purpose of a message.
type MessageType string

const (
	MsgTaskAssignment    MessageType = "task_assignment"
	MsgTaskCompletion    MessageType = "task_completion"
	MsgTaskFailure       MessageType = "task_failure"
	MsgStatusUpdate      MessageType = "status_update"
	MsgPrediction        MessageType = "prediction"
	MsgValidationResult  MessageType = "validation_result"
	MsgHealingSuggestion MessageType = "healing_suggestion"

	// Requests sent by the orchestrator to the engine workers.
	MsgPredictionRequest MessageType = "prediction_request"
	MsgValidationRequest MessageType = "validation_request"
	MsgHealingRequest    MessageType = "healing_request"
)

// Payload is the tagged union carried by a Message. Each payload type
// belongs to exactly one MessageType.
type Payload interface {
	MessageType() MessageType
}

// TaskAssignment hands a task to an execution worker.
type TaskAssignment struct {
	Task Task `json:"task"`
}

// TaskCompletion reports a successful execution.
type TaskCompletion struct {
	Result TaskResult `json:"result"`
}

// TaskFailure reports a failed execution.
type TaskFailure struct {
	Error   string        `json:"error"`
	Elapsed time.Duration `json:"elapsed"`
	// Content is the artifact content at the time of failure, for healing.
	Content string `json:"content,omitempty"`
	// TimedOut is set when the per-task timeout expired.
	TimedOut bool `json:"timed_out,omitempty"`
}

// StatusUpdate carries a worker's latest self-reported status.
type StatusUpdate struct {
	Status WorkerStatus `json:"status"`
}

// PredictionPayload carries a prediction for the message's task.
type PredictionPayload struct {
	Result PredictionResult `json:"result"`
}

// ValidationPayload carries a validation report for the message's task.
type ValidationPayload struct {
	Report ValidationReport `json:"report"`
}

// HealingPayload carries the healing actions proposed for the message's task.
type HealingPayload struct {
	Actions []HealingAction `json:"actions"`
}

// PredictionRequest asks the prediction worker to analyze a task.
type PredictionRequest struct {
	Task Task `json:"task"`
}

// ValidationRequest asks the validation worker to score produced artifacts.
type ValidationRequest struct {
	Task    Task   `json:"task"`
	Content string `json:"content"`
}

// HealingRequest asks the healing worker for fixes after a failure.
type HealingRequest struct {
	Task    Task   `json:"task"`
	Content string `json:"content"`
	Error   string `json:"error"`
}

func (TaskAssignment) MessageType() MessageType    { return MsgTaskAssignment }
func (TaskCompletion) MessageType() MessageType    { return MsgTaskCompletion }
func (TaskFailure) MessageType() MessageType       { return MsgTaskFailure }
func (StatusUpdate) MessageType() MessageType      { return MsgStatusUpdate }
func (PredictionPayload) MessageType() MessageType { return MsgPrediction }
func (ValidationPayload) MessageType() MessageType { return MsgValidationResult }
func (HealingPayload) MessageType() MessageType    { return MsgHealingSuggestion }
func (PredictionRequest) MessageType() MessageType { return MsgPredictionRequest }
func (ValidationRequest) MessageType() MessageType { return MsgValidationRequest }
func (HealingRequest) MessageType() MessageType    { return MsgHealingRequest }

// Message is the only inter-component communication object.
// It is passed by value and never modified after NewMessage returns it.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Sender    string      `json:"sender"`
	TaskID    string      `json:"task_id,omitempty"`
	Payload   Payload     `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage builds a message whose type is derived from the payload.
func NewMessage(sender, taskID string, payload Payload) Message {
	return Message{
		ID:        ulid.Make().String(),
		Type:      payload.MessageType(),
		Sender:    sender,
		TaskID:    taskID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// MarshalPayload encodes the payload as JSON for persistence.
func (m Message) MarshalPayload() ([]byte, error) {
	if m.Payload == nil {
		return []byte("null"), nil
	}
	return json.Marshal(m.Payload)
}

// DecodePayload decodes a JSON payload for the given message type.
func DecodePayload(t MessageType, data []byte) (Payload, error) {
	var p Payload
	switch t {
	case MsgTaskAssignment:
		p = &TaskAssignment{}
	case MsgTaskCompletion:
		p = &TaskCompletion{}
	case MsgTaskFailure:
		p = &TaskFailure{}
	case MsgStatusUpdate:
		p = &StatusUpdate{}
	case MsgPrediction:
		p = &PredictionPayload{}
	case MsgValidationResult:
		p = &ValidationPayload{}
	case MsgHealingSuggestion:
		p = &HealingPayload{}
	case MsgPredictionRequest:
		p = &PredictionRequest{}
	case MsgValidationRequest:
		p = &ValidationRequest{}
	case MsgHealingRequest:
		p = &HealingRequest{}
	default:
		return nil, fmt.Errorf("unknown message type %q", t)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return deref(p), nil
}

// deref converts the pointer payloads used for decoding back to values.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *TaskAssignment:
		return *v
	case *TaskCompletion:
		return *v
	case *TaskFailure:
		return *v
	case *StatusUpdate:
		return *v
	case *PredictionPayload:
		return *v
	case *ValidationPayload:
		return *v
	case *HealingPayload:
		return *v
	case *PredictionRequest:
		return *v
	case *ValidationRequest:
		return *v
	case *HealingRequest:
		return *v
	}
	return p
}
