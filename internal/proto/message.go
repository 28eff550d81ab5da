// Package proto defines the wire schema shared by coordinator and worker:
// the Command and Status JSON payloads carried over the framed session
// transport, and the AttackPlan/RequestSpec data model operators submit.
// Grounded on messages.rs and webserver.rs (bsundsrud/minuteman) and on
// ws/protocol.go's tagged-message style from the teacher repo.
package proto

import (
	"encoding/json"
	"fmt"
)

// HTTPVersion selects the transport used for a single RequestSpec.
type HTTPVersion string

const (
	HTTP11 HTTPVersion = "Http11"
	HTTP2  HTTPVersion = "Http2"
)

// Method is one of the nine standard HTTP verbs.
type Method string

const (
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodConnect Method = "CONNECT"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
	MethodPatch   Method = "PATCH"
)

// Strategy selects how the worker's TaskScheduler picks the next
// RequestSpec to dispatch.
type Strategy string

const (
	StrategyRandom  Strategy = "Random"
	StrategyInOrder Strategy = "InOrder"
)

// RequestSpec describes a single request template in an AttackPlan.
type RequestSpec struct {
	Version           HTTPVersion       `json:"version"`
	Method            Method            `json:"method"`
	URL               string            `json:"url"`
	Body              *string           `json:"body"`
	Headers           map[string]string `json:"headers"`
	RandomQuerystring *string           `json:"random_querystring"`
	RandomHeader      *string           `json:"random_header"`
}

// AttackPlan is the payload of Command::Start.
type AttackPlan struct {
	Requests       []RequestSpec `json:"requests"`
	Strategy       Strategy      `json:"strategy"`
	MaxConcurrency uint32        `json:"max_concurrency"`
}

// Clamped returns the plan's concurrency clamped to at least 1, per
// spec.md §3's invariant.
func (p AttackPlan) Clamped() uint32 {
	if p.MaxConcurrency < 1 {
		return 1
	}
	return p.MaxConcurrency
}

// CommandKind tags the variant carried by a Command.
type CommandKind string

const (
	CommandStart CommandKind = "Start"
	CommandStop  CommandKind = "Stop"
	CommandReset CommandKind = "Reset"
)

// Command is the coordinator → worker tagged-union message. Only Start
// carries a payload; it is serialized as a single-key JSON object whose
// key is the variant tag, e.g. {"Stop":null} or {"Start":{...}}.
type Command struct {
	Kind CommandKind
	Plan AttackPlan // valid only when Kind == CommandStart
}

// StartCommand builds a Command carrying the given plan.
func StartCommand(plan AttackPlan) Command {
	return Command{Kind: CommandStart, Plan: plan}
}

// StopCommand builds a Stop command.
func StopCommand() Command { return Command{Kind: CommandStop} }

// ResetCommand builds a Reset command.
func ResetCommand() Command { return Command{Kind: CommandReset} }

// MarshalJSON implements the tagged-variant wire format:
// {"Start": {requests, strategy, max_concurrency}} / {"Stop": null} / {"Reset": null}.
func (c Command) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CommandStart:
		return json.Marshal(map[string]AttackPlan{"Start": c.Plan})
	case CommandStop:
		return json.Marshal(map[string]any{"Stop": nil})
	case CommandReset:
		return json.Marshal(map[string]any{"Reset": nil})
	default:
		return nil, fmt.Errorf("proto: unknown command kind %q", c.Kind)
	}
}

// UnmarshalJSON decodes a single-key tagged object back into a Command.
func (c *Command) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("proto: command object must have exactly one key, got %d", len(raw))
	}
	for key, val := range raw {
		switch CommandKind(key) {
		case CommandStart:
			var plan AttackPlan
			if err := json.Unmarshal(val, &plan); err != nil {
				return fmt.Errorf("proto: decoding Start payload: %w", err)
			}
			*c = Command{Kind: CommandStart, Plan: plan}
			return nil
		case CommandStop:
			*c = Command{Kind: CommandStop}
			return nil
		case CommandReset:
			*c = Command{Kind: CommandReset}
			return nil
		default:
			return fmt.Errorf("proto: unknown command variant %q", key)
		}
	}
	return fmt.Errorf("proto: unreachable")
}

// WorkerState is the worker's coarse Idle/Busy state, reported in Status
// and mirrored in the coordinator's SessionRecord.
type WorkerState string

const (
	StateIdle WorkerState = "Idle"
	StateBusy WorkerState = "Busy"
)

// Status is the worker → coordinator snapshot payload.
type Status struct {
	Hostname  *string     `json:"hostname"`
	Socket    *string     `json:"socket"`
	State     WorkerState `json:"state"`
	ElapsedMS *int64      `json:"elapsed"`
	Tasks     uint32      `json:"tasks"`
	TaskQueue uint32      `json:"task_queue"`
	TasksMax  uint32      `json:"tasks_max"`
	Min       float64     `json:"min"`
	Max       float64     `json:"max"`
	Mean      float64     `json:"mean"`
	Stdev     float64     `json:"stdev"`
	Median    float64     `json:"median"`
	P90       float64     `json:"p90"`
	Count     uint64      `json:"count"`
	Count1xx  uint64      `json:"count_1xx"`
	Count2xx  uint64      `json:"count_2xx"`
	Count3xx  uint64      `json:"count_3xx"`
	Count4xx  uint64      `json:"count_4xx"`
	Count5xx  uint64      `json:"count_5xx"`
	CountFail uint64      `json:"count_fail"`
}
