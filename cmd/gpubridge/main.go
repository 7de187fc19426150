package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"gpubridge/internal/batch"
	"gpubridge/internal/cleanup"
	"gpubridge/internal/config"
	"gpubridge/internal/detect"
	"gpubridge/internal/diag"
	"gpubridge/internal/fsutil"
	"gpubridge/internal/hostgpu"
	"gpubridge/internal/logging"
	"gpubridge/internal/lxcconf"
	"gpubridge/internal/pct"
	"gpubridge/internal/tui"
	"gpubridge/internal/verify"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) <= 1 {
		runTUI()
		return
	}

	command := strings.ToLower(os.Args[1])
	if handler, ok := commandHandlers()[command]; ok {
		handler(os.Args[2:])
		return
	}

	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
	printUsage(nil)
	os.Exit(1)
}

func commandHandlers() map[string]func([]string) {
	return map[string]func([]string){
		"configure": func(args []string) { runBatch(batch.OpConfigure, args) },
		"clean":     func(args []string) { runBatch(batch.OpClean, args) },
		"verify":    func(args []string) { runBatch(batch.OpVerify, args) },
		"remove":    func(args []string) { runBatch(batch.OpRemove, args) },
		"strip":     func(args []string) { runBatch(batch.OpRemove, args) }, // Alias for remove
		"diagnose":  runDiagnose,
		"status":    runStatus,
		"config":    runConfig,
		"version":   runVersion,
		"help":      printUsage,
		"--help":    printUsage,
		"-h":        printUsage,
	}
}

func runVersion([]string) {
	fmt.Printf("gpubridge version %s\n", version)
}

// app bundles the wired pipeline components for one invocation.
type app struct {
	cfg      config.Config
	logger   *logging.Logger
	logClose func() error
	console  *logging.Console
	client   *pct.CLI
	orch     *batch.Orchestrator
	diag     *diag.Collector
}

// Close releases the log file when one was opened.
func (a *app) Close() {
	if a.logClose != nil {
		fsutil.CloseWithError(a.logClose, nil, "log file")
	}
}

// buildLogger honors the configured sink and format. A file sink that
// cannot be opened falls back to stderr rather than aborting.
func buildLogger(cfg config.LoggingConfig) (*logging.Logger, func() error) {
	var logger *logging.Logger
	var logClose func() error
	if cfg.File != "" {
		fileLogger, err := logging.NewFileLogger(logging.Level(cfg.Level), cfg.File)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not open log file %s: %v\n", cfg.File, err)
		} else {
			logger = fileLogger
			logClose = fileLogger.Close
		}
	}
	if logger == nil {
		logger = logging.NewLogger(logging.Level(cfg.Level))
	}
	logger.SetFormat(cfg.Format)
	return logger, logClose
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, logClose := buildLogger(cfg.Logging)
	console := logging.NewConsole()

	client := pct.NewCLI(logger)
	if !client.Available() {
		return nil, fmt.Errorf("pct binary not found; gpubridge must run on the container host")
	}

	scanner := hostgpu.NewScanner(cfg.Host.DeviceDir, logger)
	resolver := hostgpu.NewResolver(cfg.Host.LibraryDir, logger)
	detector := detect.NewDetector(client, logger)
	cleaner := cleanup.NewEngine(client, detector, logger)
	rewriter := lxcconf.NewRewriter(cfg.Containers.ConfDir, cfg.Containers.BackupDir, cfg.Passthrough.BridgeBinary, logger)
	verifier := verify.NewVerifier(client,
		time.Duration(cfg.Verify.ProbeTimeoutSeconds)*time.Second,
		time.Duration(cfg.Verify.DeviceWaitSeconds)*time.Second,
		cfg.Verify.RemediationPackage,
		logger)

	orch := batch.NewOrchestrator(batch.Deps{
		Client:    client,
		Scanner:   scanner,
		Resolver:  resolver,
		Detector:  detector,
		Cleaner:   cleaner,
		Rewriter:  rewriter,
		Verifier:  verifier,
		Libraries: cfg.Passthrough.Libraries,
		Confirm:   &stdinConfirmer{},
		Console:   console,
		Logger:    logger,
	})

	collector := diag.NewCollector(client, scanner, resolver, hostgpu.NewPreflight(logger),
		detector, rewriter, cfg.Passthrough.Libraries, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		logClose: logClose,
		console:  console,
		client:   client,
		orch:     orch,
		diag:     collector,
	}, nil
}

// stdinConfirmer asks the operator a yes/no question on the terminal.
type stdinConfirmer struct{}

func (s *stdinConfirmer) Continue(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// selectRecords maps the command-line container arguments onto live
// records. "all" selects every container.
func selectRecords(client *pct.CLI, args []string) ([]pct.ContainerRecord, error) {
	records, err := client.List()
	if err != nil {
		return nil, err
	}

	if len(args) == 1 && strings.ToLower(args[0]) == "all" {
		return records, nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("no containers given (pass container IDs or 'all')")
	}

	byID := make(map[string]pct.ContainerRecord, len(records))
	for _, record := range records {
		byID[record.ID] = record
	}

	selected := make([]pct.ContainerRecord, 0, len(args))
	for _, id := range args {
		record, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("container %s not found", id)
		}
		selected = append(selected, record)
	}
	return selected, nil
}

func runBatch(op batch.Operation, args []string) {
	os.Exit(batchExit(op, args))
}

func batchExit(op batch.Operation, args []string) int {
	app, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer app.Close()

	records, err := selectRecords(app.client, args)
	if err != nil {
		app.console.Error("%v", err)
		return 1
	}

	outcomes, err := app.orch.Run(op, records)
	if err != nil {
		return 1
	}
	for _, outcome := range outcomes {
		// Containers skipped after a declined continuation prompt do
		// not fail the run on their own.
		if outcome.Err != nil && !outcome.Skipped {
			return 1
		}
	}
	return 0
}

func runDiagnose(args []string) {
	os.Exit(diagnoseExit(args))
}

func diagnoseExit(args []string) int {
	app, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer app.Close()

	records, err := selectRecords(app.client, args)
	if err != nil {
		app.console.Error("%v", err)
		return 1
	}

	if _, err := app.orch.Run(batch.OpDiagnose, records); err != nil {
		return 1
	}

	report := app.diag.Collect(records)
	stateDir := fsutil.GetStateDir(fsutil.DefaultStateDir)
	path, err := app.diag.Save(report, stateDir)
	if err != nil {
		app.console.Warn("Could not save diagnosis report: %v", err)
		return 0
	}
	app.console.Success("Diagnosis report saved to %s", path)
	return 0
}

func runStatus([]string) {
	app, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	records, err := app.client.List()
	if err != nil {
		app.console.Error("Failed to list containers: %v", err)
		os.Exit(1)
	}

	rewriter := lxcconf.NewRewriter(app.cfg.Containers.ConfDir, app.cfg.Containers.BackupDir,
		app.cfg.Passthrough.BridgeBinary, app.logger)

	fmt.Printf("%-8s %-20s %-10s %s\n", "ID", "NAME", "STATUS", "PASSTHROUGH")
	for _, record := range records {
		state := "unmanaged"
		if managed, err := rewriter.IsManaged(record.ID); err == nil && managed {
			state = "managed"
		}
		fmt.Printf("%-8s %-20s %-10s %s\n", record.ID, record.Name, record.Status, state)
	}
}

func runConfig([]string) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load configuration: %v\n", err)
		cfg = config.DefaultConfig()
	}

	fmt.Printf("System config: %s\n\n", config.SystemConfigPath())
	data, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(string(data))
}

func runTUI() {
	app, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	records, err := app.client.List()
	if err != nil {
		app.console.Error("Failed to list containers: %v", err)
		os.Exit(1)
	}

	program := tea.NewProgram(tui.NewModel(records))
	final, err := program.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	model, ok := final.(tui.Model)
	if !ok {
		return
	}
	selection := model.Selection()
	if !selection.Confirmed {
		return
	}

	if selection.Op == batch.OpDiagnose {
		runDiagnose(selection.ContainerIDs)
		return
	}
	runBatch(selection.Op, selection.ContainerIDs)
}

func printUsage([]string) {
	fmt.Println(`gpubridge - GPU passthrough for LXC containers

Usage:
  gpubridge                      Interactive menu
  gpubridge configure <ids|all>  Detect, clean, configure and verify passthrough
  gpubridge clean <ids|all>      Remove conflicting driver components
  gpubridge verify <ids|all>     Restart containers and probe the GPU
  gpubridge diagnose <ids|all>   Report passthrough state, save a JSON report
  gpubridge remove <ids|all>     Strip the managed passthrough block
  gpubridge status               List containers and their passthrough state
  gpubridge config               Show the effective configuration
  gpubridge version              Show version
  gpubridge help                 Show this help`)
}
