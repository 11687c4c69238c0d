package servicenow

// TaskRef is an assignable open task fetched from the task table.
type TaskRef struct {
	SysID            string `json:"sys_id"`
	Number           string `json:"number"`
	ShortDescription string `json:"short_description"`
	State            string `json:"state"`
}

// Category is an active time-card category choice.
type Category struct {
	SysID    string `json:"sys_id"`
	Value    string `json:"value"`
	Label    string `json:"label"`
	Language string `json:"language"`
	Sequence int    `json:"sequence"`
}

// TimeCode is a user-scoped time-card classification code.
type TimeCode struct {
	SysID       string `json:"sys_id"`
	Code        string `json:"u_time_card_code"`
	Description string `json:"u_description"`
}

// LookupSet is the read-through cache of remote reference data. It is
// replaced wholesale on every fetch, never merged field-by-field.
type LookupSet struct {
	FetchedAtMs int64      `json:"fetchedAtMs"`
	Tasks       []TaskRef  `json:"tasks"`
	Categories  []Category `json:"categories"`
	TimeCodes   []TimeCode `json:"timeCodes"`
}

// SessionUser identifies the authenticated remote user.
type SessionUser struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// TimecardStateSubmitted is the terminal remote-record state that sync must
// never overwrite.
const TimecardStateSubmitted = "Submitted"

// Timecard is one remote weekly time_card record.
type Timecard struct {
	SysID     string  `json:"sys_id"`
	WeekStart string  `json:"week_starts_on"`
	State     string  `json:"state"`
	Task      string  `json:"task"`
	Category  string  `json:"category"`
	TimeCode  string  `json:"u_time_card_code"`
	Timesheet string  `json:"time_sheet"`
	RateType  string  `json:"rate_type"`
	Notes     string  `json:"notes"`
	Monday    float64 `json:"monday"`
	Tuesday   float64 `json:"tuesday"`
	Wednesday float64 `json:"wednesday"`
	Thursday  float64 `json:"thursday"`
	Friday    float64 `json:"friday"`
	Saturday  float64 `json:"saturday"`
	Sunday    float64 `json:"sunday"`
	Total     float64 `json:"total"`
}

// Sync result statuses for a single group.
const (
	SyncOutcomeCreated = "created"
	SyncOutcomeUpdated = "updated"
	SyncOutcomeSkipped = "skipped"
	SyncOutcomeFailed  = "failed"
)

// GroupResult reports the outcome of syncing one weekly aggregate group.
type GroupResult struct {
	GroupKey     string `json:"groupKey"`
	Outcome      string `json:"outcome"`
	RecordSysID  string `json:"recordSysId,omitempty"`
	Code         Code   `json:"code,omitempty"`
	Message      string `json:"message,omitempty"`
	RecoveryHint string `json:"recoveryHint,omitempty"`
}

// SyncReport is the aggregate outcome of one syncTimeCards call.
type SyncReport struct {
	Results []GroupResult `json:"results"`
	Aborted bool          `json:"aborted"`
}
