package orchestrator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Stage names a point in the batch state machine.
type Stage string

const (
	StagePDFLoaded  Stage = "pdf_loaded"
	StageChunked    Stage = "chunked"
	StageIndexed    Stage = "indexed"
	StageCacheCheck Stage = "cache_check"
	StageCacheHit   Stage = "cache_hit"
	StageCacheMiss  Stage = "cache_miss"
	StageRetrieve   Stage = "retrieve"
	StageCompress   Stage = "compress"
	StageGenerate   Stage = "generate"
	StageCacheWrite Stage = "cache_write"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
	StageNotify     Stage = "notify"
)

// Status is the state of a stage in a progress report.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// SentinelAnswer is recorded for a question whose processing failed.
const SentinelAnswer = "An error occurred while processing this question."

// ErrBatchAborted is matched by every *StageError.
var ErrBatchAborted = errors.New("batch aborted")

// StageError reports a prerequisite stage that produced no usable result.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s at %s: %v", ErrBatchAborted, e.Stage, e.Err)
}

// Unwrap exposes both ErrBatchAborted and the cause to errors.Is.
func (e *StageError) Unwrap() []error {
	return []error{ErrBatchAborted, e.Err}
}

// Progress is delivered to the progress callback on each stage transition.
type Progress struct {
	Stage  Stage  `json:"stage"`
	Status Status `json:"status"`
	// QuestionIndex is -1 for batch-level stages.
	QuestionIndex int    `json:"question_index"`
	Message       string `json:"message,omitempty"`
}

// ProgressCallback receives progress updates during a batch.
type ProgressCallback func(Progress)

// Answer is the result for one question.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// Failed reports whether a is the sentinel failure answer.
func (a Answer) Failed() bool {
	return a.Answer == SentinelAnswer
}

// BatchResult maps questions to answers and keeps first-seen question order.
type BatchResult struct {
	order   []string
	answers map[string]Answer
}

// NewBatchResult returns an empty result.
func NewBatchResult() *BatchResult {
	return &BatchResult{answers: make(map[string]Answer)}
}

// Set records the answer for question. A repeated question keeps its first
// position and takes the new answer.
func (r *BatchResult) Set(question string, a Answer) {
	if a.Sources == nil {
		a.Sources = []string{}
	}
	if _, ok := r.answers[question]; !ok {
		r.order = append(r.order, question)
	}
	r.answers[question] = a
}

// Get returns the answer for question.
func (r *BatchResult) Get(question string) (Answer, bool) {
	a, ok := r.answers[question]
	return a, ok
}

// Questions returns the questions in order.
func (r *BatchResult) Questions() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of distinct questions.
func (r *BatchResult) Len() int { return len(r.order) }

// MarshalJSON renders {"question": {"answer": ..., "sources": [...]}} in
// question order.
func (r *BatchResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, q := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(q)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.answers[q])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores a result, keeping the document's key order.
func (r *BatchResult) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("batch result: expected object")
	}
	*r = *NewBatchResult()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		q, ok := tok.(string)
		if !ok {
			return fmt.Errorf("batch result: expected question key")
		}
		var a Answer
		if err := dec.Decode(&a); err != nil {
			return fmt.Errorf("batch result: %q: %w", q, err)
		}
		r.Set(q, a)
	}
	_, err = dec.Token()
	return err
}

// Indented renders the result as two-space indented JSON.
func (r *BatchResult) Indented() (string, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ErrorDocument is the JSON shape reported for a fatal batch failure.
func ErrorDocument(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}
