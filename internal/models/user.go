package models

import (
	"encoding/json"
	"fmt"
)

// JobCounts are the per-user job counters maintained by the server.
type JobCounts struct {
	Completed  int `json:"completed"`
	Processing int `json:"processing"`
	Queued     int `json:"queued"`

	// InProgress is the id of the job the solver is working on, if any.
	InProgress string `json:"is_processed,omitempty"`
	// NextQueued is the user's first pending job and its place in the queue.
	NextQueued *QueuePosition `json:"next_queue,omitempty"`
}

// QueuePosition is sent by the server as a two-element array: [job id, position].
type QueuePosition struct {
	JobID    string
	Position int
}

func (q QueuePosition) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{q.JobID, q.Position})
}

func (q *QueuePosition) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("queue position: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("queue position: expected [id, position], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &q.JobID); err != nil {
		return fmt.Errorf("queue position id: %w", err)
	}
	if err := json.Unmarshal(pair[1], &q.Position); err != nil {
		return fmt.Errorf("queue position: %w", err)
	}
	return nil
}

// Total returns the number of jobs that are completed, processing or queued.
func (c JobCounts) Total() int {
	return c.Completed + c.Processing + c.Queued
}

// User is the identity returned by /auth/me and embedded in auth responses.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	JobCounts JobCounts `json:"jobCounts"`
}

// AuthResponse is returned by /auth/login and /auth/register.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	User        User   `json:"user"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}
