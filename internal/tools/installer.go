package tools

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/governance"
)

// packageAliases maps import names to the package that actually provides
// them on PyPI.
var packageAliases = map[string]string{
	"bs4":        "beautifulsoup4",
	"cv2":        "opencv-python",
	"PIL":        "Pillow",
	"sklearn":    "scikit-learn",
	"yaml":       "pyyaml",
	"dotenv":     "python-dotenv",
	"gi":         "PyGObject",
	"lxml":       "lxml",
	"matplotlib": "matplotlib",
	"pandas":     "pandas",
	"scipy":      "scipy",
	"seaborn":    "seaborn",
}

var missingModulePattern = regexp.MustCompile(`No module named ['"]([^'"]+)['"]`)

// Installer performs direct package remediation: when execution feedback
// names a missing module, install it and remember the result so the same
// package is never attempted twice.
type Installer struct {
	Policy  governance.PolicyEngine
	Timeout time.Duration

	mu        sync.Mutex
	installed map[string]bool
}

func NewInstaller(policy governance.PolicyEngine) *Installer {
	return &Installer{
		Policy:    policy,
		Timeout:   180 * time.Second,
		installed: make(map[string]bool),
	}
}

// MissingModuleName extracts the import name from a missing-module error.
func MissingModuleName(errText string) (string, bool) {
	m := missingModulePattern.FindStringSubmatch(errText)
	if m == nil {
		return "", false
	}
	name := m[1]
	if i := strings.Index(name, "."); i > 0 {
		name = name[:i]
	}
	return name, true
}

// InstallFromError attempts direct remediation for a missing-module error.
// Returns true only when a package was freshly and successfully installed.
func (i *Installer) InstallFromError(ctx context.Context, errText string) bool {
	moduleName, ok := MissingModuleName(errText)
	if !ok {
		return false
	}

	i.mu.Lock()
	if i.installed[moduleName] {
		i.mu.Unlock()
		return false
	}
	i.mu.Unlock()

	pkgName := moduleName
	if alias, ok := packageAliases[moduleName]; ok {
		pkgName = alias
	}

	log.Printf("Auto-installing: %s", pkgName)
	if err := i.Install(ctx, pkgName); err != nil {
		log.Printf("Failed to install %s: %v", pkgName, err)
		return false
	}

	i.mu.Lock()
	i.installed[moduleName] = true
	i.mu.Unlock()
	return true
}

// Install runs pip for one package, policy permitting.
func (i *Installer) Install(ctx context.Context, pkg string) error {
	command := fmt.Sprintf("pip3 install %s", pkg)
	if i.Policy != nil {
		verdict, err := i.Policy.Evaluate(ctx, governance.Request{Action: "install", Arguments: command})
		if err == nil && verdict.Effect == governance.EffectDeny {
			return fmt.Errorf("blocked by policy: %s", verdict.Reason)
		}
	}

	runCtx := ctx
	if i.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, i.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "pip3", "install", pkg)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pip install failed: %v\n%s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
