package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tradux/tradux/internal/auth"
	"github.com/tradux/tradux/internal/cleanup"
	"github.com/tradux/tradux/internal/config"
	"github.com/tradux/tradux/internal/files"
	"github.com/tradux/tradux/internal/language"
	"github.com/tradux/tradux/internal/logger"
	"github.com/tradux/tradux/internal/prompt"
	"github.com/tradux/tradux/internal/reader"
)

var (
	isTerminal   = term.IsTerminal
	getKey       = auth.GetKey
	getEnvKey    = auth.GetEnvKey
	getStatus    = auth.GetStatus
	saveKey      = auth.SaveKey
	deleteKey    = auth.DeleteKey
	promptForKey = auth.PromptForAPIKey
	newReader    = reader.New
	loadConfig   = config.Load
)

var newConfirmer = func(cmd *cobra.Command) prompt.Confirmer {
	c := prompt.DefaultConfirmer()
	c.In = cmd.InOrStdin()
	c.Out = cmd.OutOrStdout()
	return c
}

// globalOptions are the persistent root flags.
type globalOptions struct {
	configPath string
	debug      bool
	logFile    string
	allowEnv   bool
}

// langOptions are the --from/--to flags shared by read and translate.
type langOptions struct {
	source string
	target string
}

// setup loads the config, applies flag overrides and initializes logging.
func (g *globalOptions) setup() (config.Config, error) {
	cfg, err := loadConfig(g.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if g.debug {
		cfg.Debug = true
	}
	if g.logFile != "" {
		cfg.LogFile = g.logFile
	}

	logLevel := logger.LevelInfo
	if cfg.Debug {
		logLevel = logger.LevelDebug
	}
	var logFileW io.Writer
	if cfg.LogFile != "" {
		if err := files.RejectSymlinkPath(cfg.LogFile); err != nil {
			return config.Config{}, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to open log file: %w", err)
		}
		cleanup.Register(f.Close)
		logFileW = f
	}
	logger.Init(logLevel, logFileW)
	return cfg, nil
}

// keyResolver adapts the stubbable auth functions to reader.KeyFunc and logs
// where each key came from.
func keyResolver(service string, allowEnv bool) (string, string) {
	if key, source := getKey(service, false); key != "" {
		logger.Info("Using API Key", "service", service, "source", source)
		return key, source
	}
	if allowEnv {
		if key, ok := getEnvKey(service); ok {
			logger.Info("Using API Key", "service", service, "source", "Environment Variable")
			return key, "Environment Variable"
		}
	}
	return "", ""
}

func (l langOptions) apply(cfg *config.Config) error {
	if l.source != "" {
		code, err := resolveLanguageCode(l.source, true)
		if err != nil {
			return err
		}
		cfg.SourceLang = code
	}
	if l.target != "" {
		code, err := resolveLanguageCode(l.target, false)
		if err != nil {
			return err
		}
		cfg.TargetLang = code
	}
	return nil
}

// resolveLanguageCode accepts a code or an English language name.
func resolveLanguageCode(input string, source bool) (string, error) {
	needle := strings.TrimSpace(input)
	if needle == "" {
		return "", fmt.Errorf("language is empty")
	}
	lookup := language.Target
	if source {
		lookup = language.Source
	}
	if lang, err := lookup(needle); err == nil {
		return lang.Code, nil
	}
	for _, entry := range language.Supported() {
		if strings.EqualFold(entry.Name, needle) {
			return entry.Code, nil
		}
	}
	return "", fmt.Errorf("unsupported language: %s", input)
}

func validService(service string) (string, error) {
	svc := strings.ToLower(strings.TrimSpace(service))
	for _, s := range auth.Services() {
		if s == svc {
			return svc, nil
		}
	}
	return "", fmt.Errorf("invalid service %q. Must be one of: %s", service, strings.Join(auth.Services(), ", "))
}

func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("Cancellation requested")
			cancel()
		case <-ctx.Done():
		}
	}()
	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}
