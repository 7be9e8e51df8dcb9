package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mcao2/lifelog-sync/internal/config"
	"github.com/mcao2/lifelog-sync/internal/extract"
	"github.com/mcao2/lifelog-sync/internal/limitless"
	"github.com/mcao2/lifelog-sync/internal/notion"
	"github.com/mcao2/lifelog-sync/internal/pipeline"
	"github.com/mcao2/lifelog-sync/internal/transcript"
	"github.com/mcao2/lifelog-sync/internal/transform"
)

type buildOptions struct {
	manualExtract bool
	forceArchive  bool
	dryRun        bool
}

// app bundles the pipeline with the stores the commands report on
type app struct {
	pipeline *pipeline.Pipeline
	keywords *config.Keywords
	state    *config.RunState
}

func buildApp(cfg *config.Config, opts buildOptions) (*app, error) {
	kw := config.LoadKeywords(cfg.ResolvedKeywordsPath())
	state := config.LoadRunState(cfg.ResolvedStatePath())

	model, modelName, err := buildModel(cfg, opts.manualExtract)
	if err != nil {
		return nil, err
	}
	budget, err := extract.NewBudget(modelName, cfg.LLM.MaxPromptTokens)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Fetcher:    buildFetcher(cfg),
		Filter:     transcript.NewFilter(kw),
		Archiver:   transcript.NewArchiver(cfg.ArchiveDir, transcript.WithForce(opts.forceArchive)),
		ArchiveDir: cfg.ArchiveDir,
		Extractor:  extract.NewExtractor(model, extract.WithBudget(budget)),
		Transformer: transform.New(kw,
			transform.WithDueInDays(cfg.DueInDays),
			transform.WithDatePrefix(cfg.DatePrefixTitles),
			transform.WithDefaultAssignee(cfg.DefaultAssignee),
		),
		Keywords: kw,
		State:    state,
		Notifier: buildNotifier(cfg),
	}

	switch {
	case opts.dryRun:
	case cfg.Notion.APIKey == "":
		slog.Warn("NOTION_API_KEY not set, records will not be written")
	default:
		deps.Writer = buildWriter(cfg)
	}

	return &app{
		pipeline: pipeline.New(deps),
		keywords: kw,
		state:    state,
	}, nil
}

func buildFetcher(cfg *config.Config) *limitless.Client {
	opts := []limitless.ClientOption{
		limitless.WithAuthMethod(cfg.Limitless.AuthMethod),
		limitless.WithPageSize(cfg.Limitless.PageSize),
		limitless.WithTimeout(time.Duration(cfg.Limitless.TimeoutSeconds) * time.Second),
		limitless.WithForceMock(cfg.Limitless.ForceMock),
	}
	if cfg.Limitless.BaseURL != "" {
		opts = append(opts, limitless.WithBaseURL(cfg.Limitless.BaseURL))
	}
	return limitless.NewClient(cfg.Limitless.APIKey, opts...)
}

// buildModel returns the extraction model and the name used for token
// counting.
func buildModel(cfg *config.Config, manual bool) (extract.Model, string, error) {
	llm := cfg.GetLLMConfig()
	if manual {
		return extract.NewClipboardModel(os.Stdin, os.Stderr), llm.Model, nil
	}

	var opts []extract.LLMOption
	if llm.Model != "" {
		opts = append(opts, extract.WithLLMModel(llm.Model))
	}
	if llm.BaseURL != "" {
		opts = append(opts, extract.WithLLMBaseURL(llm.BaseURL))
	}
	if llm.APIFormat != "" {
		opts = append(opts, extract.WithLLMAPIFormat(llm.APIFormat))
	}
	client, err := extract.NewLLMClient(llm.Provider, llm.APIKey, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to configure LLM (use --manual-extract to extract by hand): %w", err)
	}
	return client, client.ModelName(), nil
}

func buildWriter(cfg *config.Config) *notion.Writer {
	dbs := map[notion.Collection]string{
		notion.CollectionTasks:    cfg.Notion.Databases.Tasks,
		notion.CollectionProjects: cfg.Notion.Databases.Projects,
		notion.CollectionTodo:     cfg.Notion.Databases.Todo,
		notion.CollectionLifelog:  cfg.Notion.Databases.Lifelog,
	}
	var opts []notion.WriterOption
	if cfg.Notion.WriteDelayMS > 0 {
		opts = append(opts, notion.WithWriteDelay(time.Duration(cfg.Notion.WriteDelayMS)*time.Millisecond))
	}
	return notion.NewWriter(notion.NewClient(cfg.Notion.APIKey), dbs, opts...)
}

func buildNotifier(cfg *config.Config) pipeline.Notifier {
	notifiers := pipeline.MultiNotifier{pipeline.LogNotifier{}}
	if cfg.Notify.LogFile != "" {
		notifiers = append(notifiers, pipeline.NewFileNotifier(cfg.Notify.LogFile))
	}
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, pipeline.NewWebhookNotifier(cfg.Notify.WebhookURL, nil))
	}
	return notifiers
}

func runOptions(cfg *config.Config) pipeline.RunOptions {
	return pipeline.RunOptions{
		Days:       cfg.Days,
		MaxResults: cfg.MaxResults,
	}
}
