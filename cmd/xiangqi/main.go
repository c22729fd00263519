// Package main implements the interactive terminal front end for driving
// UCCI engines.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"xiangqi/internal/cli"
	"xiangqi/internal/config"
	"xiangqi/internal/service"
	"xiangqi/internal/storage"
	clitransport "xiangqi/internal/transport/cli"
)

func main() {
	configPath := flag.String("config", "", "path to engines.toml (default: standard locations)")
	dbPath := flag.String("db", "", "SQLite file for analysis history (empty disables persistence)")
	debug := flag.Bool("debug", false, "log protocol traffic")
	flag.Parse()

	logrus.SetOutput(os.Stderr)
	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load engine config: %v\n", err)
		os.Exit(1)
	}

	var store *storage.Store
	if *dbPath != "" {
		store, err = storage.NewStore(*dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open history database: %v\n", err)
			os.Exit(1)
		}
		if err := store.InitDB(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize history database: %v\n", err)
			os.Exit(1)
		}
	}

	svc := service.New(store)
	defer svc.ShutdownAll()

	view := cli.New(os.Stdout)
	if term.IsTerminal(int(os.Stdout.Fd())) {
		_ = view.SetTheme(cli.ThemeWood)
	}

	handler := clitransport.New(svc, cfg, view)
	go handler.ConsumeEvents()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "xiangqi> ",
		HistoryFile:     ".xiangqi_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	view.ShowWelcome()

	for {
		rl.SetPrompt(handler.Prompt())

		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			break
		}
		if err != nil {
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if !handler.ProcessCommand(cli.Parse(line)) {
			break
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.FindAndLoad()
}
