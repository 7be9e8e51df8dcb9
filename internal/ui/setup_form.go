package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mcao2/lifelog-sync/internal/config"
	"github.com/mcao2/lifelog-sync/internal/scheduler"
)

// SetupForm collects the settings needed for a first run using Huh
type SetupForm struct {
	form   *huh.Form
	result *SetupResult
}

// SetupResult contains the entered values
type SetupResult struct {
	LimitlessKey string
	ForceMock    bool
	NotionKey    string
	TasksDB      string
	ProjectsDB   string
	TodoDB       string
	LifelogDB    string
	Provider     string
	LLMKey       string
	Model        string
	Days         string
	Schedule     string
}

// NewSetupForm creates a setup form prefilled from cfg
func NewSetupForm(cfg *config.Config) *SetupForm {
	result := &SetupResult{
		LimitlessKey: cfg.Limitless.APIKey,
		ForceMock:    cfg.Limitless.ForceMock,
		NotionKey:    cfg.Notion.APIKey,
		TasksDB:      cfg.Notion.Databases.Tasks,
		ProjectsDB:   cfg.Notion.Databases.Projects,
		TodoDB:       cfg.Notion.Databases.Todo,
		LifelogDB:    cfg.Notion.Databases.Lifelog,
		Provider:     cfg.LLM.Provider,
		LLMKey:       cfg.LLM.APIKey,
		Model:        cfg.LLM.Model,
		Days:         strconv.Itoa(cfg.Days),
		Schedule:     cfg.Schedule,
	}
	if result.Provider == "" {
		result.Provider = "openai"
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Limitless API key").
				EchoMode(huh.EchoModePassword).
				Value(&result.LimitlessKey),

			huh.NewConfirm().
				Title("Use synthetic transcripts?").
				Description("Skips the Limitless API entirely").
				Value(&result.ForceMock),
		).Title("Transcripts"),

		huh.NewGroup(
			huh.NewInput().
				Title("Notion integration token").
				EchoMode(huh.EchoModePassword).
				Value(&result.NotionKey),
			huh.NewInput().Title("Tasks database id").Value(&result.TasksDB),
			huh.NewInput().Title("Projects database id").Value(&result.ProjectsDB),
			huh.NewInput().Title("To-do database id").Value(&result.TodoDB),
			huh.NewInput().Title("Lifelog database id").Value(&result.LifelogDB),
		).Title("Notion"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("LLM provider").
				Options(
					huh.NewOption("OpenAI", "openai"),
					huh.NewOption("Anthropic", "anthropic"),
					huh.NewOption("Ollama", "ollama"),
				).
				Value(&result.Provider),
			huh.NewInput().
				Title("LLM API key").
				EchoMode(huh.EchoModePassword).
				Value(&result.LLMKey),
			huh.NewInput().
				Title("Model").
				Placeholder("provider default").
				Value(&result.Model),
		).Title("Extraction"),

		huh.NewGroup(
			huh.NewInput().
				Title("Look-back days").
				Validate(validateDays).
				Value(&result.Days),
			huh.NewInput().
				Title("Schedule").
				Placeholder(scheduler.DefaultSchedule).
				Validate(validateSchedule).
				Value(&result.Schedule),
		).Title("Runs"),
	)

	return &SetupForm{form: form, result: result}
}

func validateDays(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fmt.Errorf("enter a whole number of days")
	}
	return nil
}

func validateSchedule(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return scheduler.Validate(strings.TrimSpace(s))
}

// Run executes the form and returns the result
func (sf *SetupForm) Run() (*SetupResult, error) {
	if err := sf.form.Run(); err != nil {
		return nil, err
	}
	return sf.result, nil
}

// GetForm returns the underlying Huh form for Bubble Tea integration
func (sf *SetupForm) GetForm() *huh.Form {
	return sf.form
}

// Apply copies the entered values onto cfg
func (r *SetupResult) Apply(cfg *config.Config) {
	cfg.Limitless.APIKey = strings.TrimSpace(r.LimitlessKey)
	cfg.Limitless.ForceMock = r.ForceMock
	cfg.Notion.APIKey = strings.TrimSpace(r.NotionKey)
	cfg.Notion.Databases = config.NotionDatabases{
		Tasks:    strings.TrimSpace(r.TasksDB),
		Projects: strings.TrimSpace(r.ProjectsDB),
		Todo:     strings.TrimSpace(r.TodoDB),
		Lifelog:  strings.TrimSpace(r.LifelogDB),
	}
	cfg.LLM.Provider = r.Provider
	cfg.LLM.APIKey = strings.TrimSpace(r.LLMKey)
	cfg.LLM.Model = strings.TrimSpace(r.Model)
	if n, err := strconv.Atoi(strings.TrimSpace(r.Days)); err == nil && n > 0 {
		cfg.Days = n
	}
	cfg.Schedule = strings.TrimSpace(r.Schedule)
	if cfg.Schedule == "" {
		cfg.Schedule = scheduler.DefaultSchedule
	}
}
