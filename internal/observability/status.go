package observability

import (
	"sync"
	"time"
)

type Role string

const (
	RoleIdle    Role = "IDLE"
	RolePlanner Role = "PLANNER"
	RoleWorker  Role = "WORKER"
)

// SystemStatus is the process-wide run snapshot the live dashboard reads.
// StepsDone/StepsTotal track the active plan; both are zero when idle.
type SystemStatus struct {
	mu            sync.RWMutex
	CurrentRole   Role
	ActiveGoal    string
	StepsDone     int
	StepsTotal    int
	LastHeartbeat time.Time
}

var globalStatus = &SystemStatus{
	CurrentRole:   RoleIdle,
	LastHeartbeat: time.Now(),
}

// SetStatus updates the role and active goal. Going idle clears the step
// counters so a stale plan never lingers on the dashboard.
func SetStatus(role Role, goal string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.CurrentRole = role
	globalStatus.ActiveGoal = goal
	if role == RoleIdle {
		globalStatus.StepsDone = 0
		globalStatus.StepsTotal = 0
	}
}

// SetProgress updates the step counters of the active plan.
func SetProgress(done, total int) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.StepsDone = done
	globalStatus.StepsTotal = total
}

// GetStatus retrieves a copy of the global system status.
func GetStatus() (Role, string, time.Time) {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.CurrentRole, globalStatus.ActiveGoal, globalStatus.LastHeartbeat
}

// Progress retrieves the step counters of the active plan.
func Progress() (done, total int) {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.StepsDone, globalStatus.StepsTotal
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
