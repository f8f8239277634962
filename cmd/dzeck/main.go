package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/agent"
	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/gateway"
	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/governance"
	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/observability"
	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/orchestrator"
	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/store"
	"github.com/dugongyete-ui/Agent-Dzeck-Ai/internal/tools"
	"github.com/dugongyete-ui/Agent-Dzeck-Ai/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	goal := flag.String("goal", "", "run a single goal and exit")
	taskFile := flag.String("tasks", "", "run a YAML task file and exit")
	flag.Parse()

	oneShot := *goal != "" || *taskFile != ""

	if !oneShot {
		observability.PrintBanner()
		observability.InitializeTerminal()
		// Route all log output through the terminal mutex so it never
		// interrupts the dashboard's cursor save/restore sequence.
		log.SetOutput(observability.NewTermWriter())
	}

	cfg := config.LoadConfig(*configPath)

	workspace := cfg.App.Workspace
	if workspace == "" {
		workspace = "./workspace"
	}
	if err := os.MkdirAll(workspace, 0755); err != nil {
		log.Fatalf("failed to create workspace: %v", err)
	}

	logger := observability.NewLogger()
	gov := governance.NewDefaultPolicyEngine().WithSafetyDefaults()

	memory, err := store.NewMemory(cfg.Memory.Path)
	if err != nil {
		log.Fatal(err)
	}
	defer memory.Close()

	// Initialize LLM (using default enabled provider)
	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		log.Fatal("No enabled provider found in config")
	}

	var llm llms.Model
	switch pName {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	default:
		log.Fatalf("Provider %s not yet implemented in main", pName)
	}
	if err != nil {
		log.Fatal(err)
	}

	prompts := agent.NewPromptManager(cfg.App.Prompts)

	// Research tools for the browse-capable worker.
	webRegistry := tools.NewRegistry()
	if searchTool, err := tools.NewSearchTool(); err != nil {
		log.Printf("Warning: Failed to initialize search tool: %v", err)
	} else {
		webRegistry.Register(searchTool)
	}
	webRegistry.Register(tools.NewScraperTool())
	browserTool := tools.NewBrowserTool("")
	webRegistry.Register(browserTool)
	defer browserTool.Close()

	// Filesystem tools for the file worker.
	fileRegistry := tools.NewRegistry()
	fileRegistry.Register(tools.NewFilesystemTool(workspace))
	fileRegistry.Register(tools.NewShellTool(workspace, gov))

	runner := tools.NewRunner(workspace, gov)
	installer := tools.NewInstaller(gov)

	webWorker := agent.NewToolWorker("web", llm, webRegistry, prompts, logger)
	fileWorker := agent.NewToolWorker("file", llm, fileRegistry, prompts, logger)
	coder := agent.NewCoderAgent(llm, prompts, runner, installer, logger,
		agent.WithBrowseHelper(webWorker),
		agent.WithMaxCorrections(cfg.Orchestrator.SelfCorrectionMax))
	casual := agent.NewCasualWorker(llm, prompts, logger)

	workers := map[string]orchestrator.Worker{
		"coder":  coder,
		"web":    webWorker,
		"file":   fileWorker,
		"casual": casual,
	}

	verifier := agent.NewLayoutVerifier(workspace, browserTool)
	chatNotifier := gateway.NewChatNotifier(nil, "")

	orch := orchestrator.New(workers, logger,
		orchestrator.WithFactStore(memory),
		orchestrator.WithVerifier(verifier),
		orchestrator.WithNotifier(chatNotifier),
		orchestrator.WithLimits(orchestrator.Limits{
			MaxAttempts:       cfg.Orchestrator.MaxAttempts,
			IterationFactor:   cfg.Orchestrator.IterationFactor,
			FailureBreaker:    cfg.Orchestrator.FailureBreaker,
			SelfCorrectionMax: cfg.Orchestrator.SelfCorrectionMax,
		}))

	planner := agent.NewPlanner(llm, prompts, []string{"coder", "web", "file", "casual"})
	brain := agent.NewController(planner, orch, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if oneShot {
		runOnce(ctx, brain, orch, *goal, *taskFile)
		return
	}

	var gateways []gateway.Messenger
	if tgCfg, ok := cfg.GetGateway("telegram"); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, brain, memory, orch)
		if err != nil {
			log.Fatal(err)
		}
		gateways = append(gateways, tg)
		if tgCfg.ChatID != "" {
			chatNotifier.Bind(tg, tgCfg.ChatID)
		}
	}
	if dcCfg, ok := cfg.GetGateway("discord"); ok {
		dc, err := gateway.NewDiscordGateway(dcCfg.Token, brain, memory, orch)
		if err != nil {
			log.Fatal(err)
		}
		gateways = append(gateways, dc)
		if dcCfg.ChatID != "" {
			chatNotifier.Bind(dc, dcCfg.ChatID)
		}
	}
	if len(gateways) == 0 {
		log.Fatal("No enabled gateway found in config; use -goal or -tasks for a one-shot run")
	}

	scheduler := agent.NewScheduler(brain, memory, gateways[0])
	go scheduler.Start(ctx)

	// Live resource dashboard (1-second updates).
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.Heartbeat()
				logger.LogHeartbeat()
			}
		}
	}()

	for _, gw := range gateways {
		go func(gw gateway.Messenger) {
			if err := gw.Start(); err != nil {
				log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
				stop()
			}
		}(gw)
	}

	<-ctx.Done()

	for _, gw := range gateways {
		gw.Stop()
	}
	observability.CleanupTerminal()

	time.Sleep(500 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] CORE DE-INITIALIZED. GOODBYE.\033[0m")
}

// runOnce executes one goal or task file and prints the summary to stdout.
func runOnce(ctx context.Context, brain agent.Brain, orch *orchestrator.Orchestrator, goal, taskFile string) {
	var summary string
	var err error

	if taskFile != "" {
		var tf *orchestrator.TaskFile
		tf, err = orchestrator.LoadTaskFile(taskFile)
		if err != nil {
			log.Fatalf("failed to load task file: %v", err)
		}
		summary = orch.RunLoop(ctx, tf.Goal, tf.Tasks)
	} else {
		summary, err = brain.Think(ctx, "cli", goal)
		if err != nil {
			log.Fatalf("run failed: %v", err)
		}
	}

	fmt.Println(summary)
}
