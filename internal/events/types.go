package events

import (
	"github.com/okian/leadflow/internal/domain/ingest"
	"github.com/okian/leadflow/internal/domain/model"
)

// Event names.
const (
	NameLeadAdded        = "lead.added"
	NameLeadRemoved      = "lead.removed"
	NameImportStarted    = "import.started"
	NameImportProgressed = "import.progressed"
	NameImportCompleted  = "import.completed"
	NameImportFailed     = "import.failed"
	NameImportCancelled  = "import.cancelled"
)

// LeadAdded is published for every lead entering the repository.
type LeadAdded struct {
	BaseEvent
	Lead model.Lead `json:"lead"`
	// JobID is empty for manual entries.
	JobID string `json:"job_id,omitempty"`
}

func (LeadAdded) EventName() string { return NameLeadAdded }

// LeadRemoved is published when a lead is deleted.
type LeadRemoved struct {
	BaseEvent
	LeadID string `json:"lead_id"`
}

func (LeadRemoved) EventName() string { return NameLeadRemoved }

// ImportStarted is published when a worker picks up an import.
type ImportStarted struct {
	BaseEvent
	JobID  string `json:"job_id"`
	Source string `json:"source"`
	Total  int    `json:"total"`
}

func (ImportStarted) EventName() string { return NameImportStarted }

// ImportProgressed is published after every processed data line.
type ImportProgressed struct {
	BaseEvent
	JobID    string          `json:"job_id"`
	Progress ingest.Progress `json:"progress"`
}

func (ImportProgressed) EventName() string { return NameImportProgressed }

// ImportCompleted is published once the admitted leads are committed.
type ImportCompleted struct {
	BaseEvent
	JobID    string          `json:"job_id"`
	Progress ingest.Progress `json:"progress"`
}

func (ImportCompleted) EventName() string { return NameImportCompleted }

// ImportFailed is published when an import stops on an error.
type ImportFailed struct {
	BaseEvent
	JobID string `json:"job_id"`
	Err   error  `json:"-"`
}

func (ImportFailed) EventName() string { return NameImportFailed }

// ImportCancelled is published when an import is cancelled before completion.
type ImportCancelled struct {
	BaseEvent
	JobID    string          `json:"job_id"`
	Progress ingest.Progress `json:"progress"`
}

func (ImportCancelled) EventName() string { return NameImportCancelled }
