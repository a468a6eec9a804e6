package task

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Manager loads and parses scenario definitions.
type Manager struct {
	logger *zap.Logger
}

// Source is a royalty asset minted to its owner before the scenario runs.
type Source struct {
	Name   string
	Owner  string
	Supply string // source units
}

// Scenario is a parsed scenario file.
type Scenario struct {
	Wallets Wallets
	Sources []Source
	Tasks   []*Task
}

// ScenarioConfig represents the structure of a scenario YAML file
type ScenarioConfig struct {
	Wallets []struct {
		Name       string `yaml:"name"`
		PrivateKey string `yaml:"private_key"`
		Native     string `yaml:"native"`
	} `yaml:"wallets"`
	Sources []struct {
		Name   string `yaml:"name"`
		Owner  string `yaml:"owner"`
		Supply string `yaml:"supply"`
	} `yaml:"sources"`
	Tasks []struct {
		TaskName       string `yaml:"task_name"`
		Operation      string `yaml:"operation"`
		Wallet         string `yaml:"wallet"`
		Source         string `yaml:"source"`
		Amount         string `yaml:"amount"`
		Limit          string `yaml:"limit"`
		Deadline       string `yaml:"deadline"`
		Duration       string `yaml:"duration"`
		NativeIn       bool   `yaml:"native_in"`
		Asset          string `yaml:"asset"`
		Destination    string `yaml:"destination"`
		Name           string `yaml:"name"`
		Symbol         string `yaml:"symbol"`
		BasePrice      string `yaml:"base_price"`
		PriceIncrement string `yaml:"price_increment"`
		ExpectError    string `yaml:"expect_error"`
	} `yaml:"tasks"`
}

// NewManager constructs a Manager with the given logger.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger.Named("scenario")}
}

// LoadScenario reads a scenario from a YAML file
func (m *Manager) LoadScenario(path string) (*Scenario, error) {
	if filepath.IsAbs(path) {
		m.logger.Debug("Using absolute path for scenario file", zap.String("path", path))
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return m.ParseScenario(data)
}

// ParseScenario parses scenario YAML. Unlike a lenient task list, any invalid
// step rejects the whole scenario: later steps depend on earlier ones.
func (m *Manager) ParseScenario(data []byte) (*Scenario, error) {
	var config ScenarioConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(config.Tasks) == 0 {
		return nil, fmt.Errorf("no tasks found in scenario")
	}

	scenario := &Scenario{Wallets: make(Wallets)}
	for _, w := range config.Wallets {
		if w.Name == "" {
			return nil, fmt.Errorf("wallet without a name")
		}
		if _, dup := scenario.Wallets[w.Name]; dup {
			return nil, fmt.Errorf("duplicate wallet %q", w.Name)
		}
		wallet, err := NewWallet(w.Name, w.PrivateKey)
		if err != nil {
			return nil, err
		}
		wallet.Native = w.Native
		scenario.Wallets[w.Name] = wallet
	}

	seen := make(map[string]bool)
	for _, s := range config.Sources {
		if s.Name == "" || s.Owner == "" || s.Supply == "" {
			return nil, fmt.Errorf("source needs a name, owner and supply")
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate source %q", s.Name)
		}
		seen[s.Name] = true
		scenario.Sources = append(scenario.Sources, Source{Name: s.Name, Owner: s.Owner, Supply: s.Supply})
	}

	for i, taskData := range config.Tasks {
		op, err := parseOperation(taskData.Operation)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		deadline, err := parseDuration(taskData.Deadline)
		if err != nil {
			return nil, fmt.Errorf("task %d: deadline: %w", i, err)
		}
		duration, err := parseDuration(taskData.Duration)
		if err != nil {
			return nil, fmt.Errorf("task %d: duration: %w", i, err)
		}

		task := &Task{
			ID:             i,
			TaskName:       taskData.TaskName,
			Operation:      op,
			WalletName:     taskData.Wallet,
			Source:         taskData.Source,
			Amount:         taskData.Amount,
			Limit:          taskData.Limit,
			Deadline:       deadline,
			Duration:       duration,
			NativeIn:       taskData.NativeIn,
			Asset:          taskData.Asset,
			Destination:    taskData.Destination,
			Name:           taskData.Name,
			Symbol:         taskData.Symbol,
			BasePrice:      taskData.BasePrice,
			PriceIncrement: taskData.PriceIncrement,
			ExpectError:    taskData.ExpectError,
		}
		if err := task.Validate(); err != nil {
			return nil, fmt.Errorf("task %s: %w", task, err)
		}
		if task.Source != "" && !seen[task.Source] {
			return nil, fmt.Errorf("task %s: unknown source %q", task, task.Source)
		}
		scenario.Tasks = append(scenario.Tasks, task)
	}

	m.logger.Info("Loaded scenario",
		zap.Int("wallets", len(scenario.Wallets)),
		zap.Int("sources", len(scenario.Sources)),
		zap.Int("tasks", len(scenario.Tasks)))
	return scenario, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
