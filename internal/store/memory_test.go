package store

import (
	"path/filepath"
	"strings"
	"testing"
)

func testMemory(t *testing.T) *Memory {
	t.Helper()
	m, err := NewMemory(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestFacts_StoreAndRecall(t *testing.T) {
	m := testMemory(t)

	if err := m.StoreFact("execution_success", "Installed the pandas library with pip", "orchestrator"); err != nil {
		t.Fatal(err)
	}
	if err := m.StoreFact("execution_success", "Scraped the docs site", "orchestrator"); err != nil {
		t.Fatal(err)
	}

	digest := m.ContextFor("analyze data with pandas")
	if !strings.HasPrefix(digest, "Relevant long-term memory:") {
		t.Fatalf("digest header missing: %q", digest)
	}
	if !strings.Contains(digest, "pandas") {
		t.Errorf("digest missing matching fact: %q", digest)
	}
	if strings.Contains(digest, "docs site") {
		t.Errorf("digest should not include unrelated facts: %q", digest)
	}
}

func TestContextFor_ShortTopicsYieldNothing(t *testing.T) {
	m := testMemory(t)
	m.StoreFact("k", "word", "s")

	// Every word is under the keyword length floor.
	if got := m.ContextFor("do it now"); got != "" {
		t.Errorf("expected empty digest, got %q", got)
	}
	if got := m.ContextFor("pandas"); got != "" {
		t.Errorf("no stored fact matches, got %q", got)
	}
}

func TestTopicKeywords(t *testing.T) {
	kws := topicKeywords("Build a scraper for the bookstore, then validate it!")
	for _, kw := range kws {
		if len(kw) < 5 {
			t.Errorf("keyword %q under length floor", kw)
		}
	}
	if len(kws) > 5 {
		t.Errorf("keyword cap exceeded: %v", kws)
	}
	for _, kw := range kws {
		if strings.ContainsAny(kw, ".,!") {
			t.Errorf("keyword %q not trimmed", kw)
		}
	}
}

func TestScheduledGoals_Lifecycle(t *testing.T) {
	m := testMemory(t)

	if err := m.AddGoal("chat1", "check the feed", 3600); err != nil {
		t.Fatal(err)
	}

	// A fresh goal is backdated, so it is due immediately.
	due, err := m.DueGoals()
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].Goal != "check the feed" {
		t.Fatalf("expected one due goal, got %v", due)
	}

	if err := m.MarkGoalRun(due[0].ID); err != nil {
		t.Fatal(err)
	}
	due, err = m.DueGoals()
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Errorf("goal with a fresh last_run should not be due, got %v", due)
	}
}

func TestScheduledGoals_OneShotAndDelete(t *testing.T) {
	m := testMemory(t)

	if err := m.AddGoal("chat1", "run once", 0); err != nil {
		t.Fatal(err)
	}
	due, err := m.DueGoals()
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 {
		t.Fatalf("one-shot goal should be due, got %v", due)
	}

	if err := m.DeleteGoal("chat1", due[0].ID); err != nil {
		t.Fatal(err)
	}
	due, _ = m.DueGoals()
	if len(due) != 0 {
		t.Errorf("deleted goal still due: %v", due)
	}
}

func TestExecutionsAndProjects(t *testing.T) {
	m := testMemory(t)

	if err := m.AppendExecution(1, "coder", true, "built the app", false); err != nil {
		t.Fatal(err)
	}
	if err := m.StoreProject("demo", "autonomous", "", "2/2 steps succeeded", "completed"); err != nil {
		t.Fatal(err)
	}

	var n int
	if err := m.DB.QueryRow(`SELECT COUNT(*) FROM executions`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("executions: %d", n)
	}
	if err := m.DB.QueryRow(`SELECT COUNT(*) FROM projects WHERE status = 'completed'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("projects: %d", n)
	}
}
