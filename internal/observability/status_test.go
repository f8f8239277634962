package observability

import "testing"

func TestStatusProgressLifecycle(t *testing.T) {
	SetStatus(RoleWorker, "build a site")
	SetProgress(2, 5)

	done, total := Progress()
	if done != 2 || total != 5 {
		t.Errorf("expected 2/5, got %d/%d", done, total)
	}

	role, goal, _ := GetStatus()
	if role != RoleWorker || goal != "build a site" {
		t.Errorf("status lost: %s %q", role, goal)
	}

	// Going idle clears the counters.
	SetStatus(RoleIdle, "")
	if done, total = Progress(); done != 0 || total != 0 {
		t.Errorf("counters should reset on idle, got %d/%d", done, total)
	}
}
