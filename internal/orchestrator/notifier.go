package orchestrator

// ProgressUpdate summarizes overall run progress for notifier sinks.
type ProgressUpdate struct {
	TotalSteps         int     `json:"total_steps"`
	CompletedSteps     int     `json:"completed_steps"`
	FailedSteps        int     `json:"failed_steps"`
	CurrentStepID      int     `json:"current_step_id"`
	CurrentDescription string  `json:"current_step_description"`
	ElapsedSeconds     float64 `json:"elapsed_time"`
	EstimatedRemaining float64 `json:"estimated_remaining"`
	SuccessRate        float64 `json:"success_rate"`
}

// Notifier receives fire-and-forget run events. Implementations must never
// block the run loop and must swallow their own delivery failures; the
// orchestrator behaves identically whether or not anything is listening.
type Notifier interface {
	Status(agent, status string, progress float64, details string)
	PlanUpdate(steps []StepProgress, currentStep int)
	Progress(update ProgressUpdate)
	Phase(phase string, stepID int, details string)
	ExecutionLog(level, message, agent string)
	Event(kind string, payload map[string]any)
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) Status(string, string, float64, string) {}
func (NopNotifier) PlanUpdate([]StepProgress, int)         {}
func (NopNotifier) Progress(ProgressUpdate)                {}
func (NopNotifier) Phase(string, int, string)              {}
func (NopNotifier) ExecutionLog(string, string, string)    {}
func (NopNotifier) Event(string, map[string]any)           {}

// MultiNotifier fans events out to several sinks.
type MultiNotifier []Notifier

func (m MultiNotifier) Status(agent, status string, progress float64, details string) {
	for _, n := range m {
		n.Status(agent, status, progress, details)
	}
}

func (m MultiNotifier) PlanUpdate(steps []StepProgress, current int) {
	for _, n := range m {
		n.PlanUpdate(steps, current)
	}
}

func (m MultiNotifier) Progress(u ProgressUpdate) {
	for _, n := range m {
		n.Progress(u)
	}
}

func (m MultiNotifier) Phase(phase string, stepID int, details string) {
	for _, n := range m {
		n.Phase(phase, stepID, details)
	}
}

func (m MultiNotifier) ExecutionLog(level, message, agent string) {
	for _, n := range m {
		n.ExecutionLog(level, message, agent)
	}
}

func (m MultiNotifier) Event(kind string, payload map[string]any) {
	for _, n := range m {
		n.Event(kind, payload)
	}
}
