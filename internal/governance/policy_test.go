package governance

import (
	"context"
	"testing"
)

func TestDefaultPolicyEngine_Evaluate(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	ctx := context.Background()

	// Test Allow (Default)
	req1 := Request{Action: "python", Arguments: "print('hi')"}
	res1, err := engine.Evaluate(ctx, req1)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res1.Effect != EffectAllow {
		t.Errorf("Expected EffectAllow, got %s", res1.Effect)
	}

	// Test Deny by action
	engine.DenyAction("bash")
	req2 := Request{Action: "bash", Arguments: "ls"}
	res2, err := engine.Evaluate(ctx, req2)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res2.Effect != EffectDeny {
		t.Errorf("Expected EffectDeny, got %s", res2.Effect)
	}
}

func TestDefaultPolicyEngine_SafetyDefaults(t *testing.T) {
	engine := NewDefaultPolicyEngine().WithSafetyDefaults()
	ctx := context.Background()

	denied := []string{
		"rm -rf / --no-preserve-root",
		"mkfs.ext4 /dev/sda1",
		"sudo shutdown now",
	}
	for _, cmd := range denied {
		res, err := engine.Evaluate(ctx, Request{Action: "bash", Arguments: cmd})
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if res.Effect != EffectDeny {
			t.Errorf("Expected %q to be denied, got %s", cmd, res.Effect)
		}
	}

	res, err := engine.Evaluate(ctx, Request{Action: "bash", Arguments: "pip3 install flask"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res.Effect != EffectAllow {
		t.Errorf("Expected install command to be allowed, got %s: %s", res.Effect, res.Reason)
	}
}
