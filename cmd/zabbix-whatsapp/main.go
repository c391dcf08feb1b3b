// Package main is the entry point for the zabbix-whatsapp CLI.
//
// It is meant to be configured as a Zabbix media type script: it sends the
// alert text to a WhatsApp gateway and, given --graph-id, follows up with the
// rendered Zabbix graph as an image.
package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mikhail-angelov/zabbix-whatsapp/internal/archive"
	"github.com/mikhail-angelov/zabbix-whatsapp/internal/config"
	"github.com/mikhail-angelov/zabbix-whatsapp/internal/logger"
	"github.com/mikhail-angelov/zabbix-whatsapp/internal/relay"
)

// Exit codes.
const (
	exitOK          = 0
	exitUsage       = 1
	exitTextFailed  = 2
	exitMediaFailed = 3
)

type options struct {
	configFile string

	subject string
	caption string

	apiBaseURL string
	apiToken   string
	timeout    float64
	insecure   bool

	graphID        string
	zabbixURL      string
	zabbixToken    string
	zabbixUser     string
	zabbixPassword string
	period         int
	width          int
	height         int
	stime          string
	graphFilename  string
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	logf := logger.New(stderr)
	var opts options

	cmd := &cobra.Command{
		Use:           "zabbix-whatsapp <phone> <message>",
		Short:         "Send a Zabbix alert, optionally with its graph, through a WhatsApp gateway",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &opts)
			if err != nil {
				return err
			}

			var archiver relay.Archiver
			if opts.graphID != "" && cfg.Archive.Enabled {
				a, err := archive.NewS3(cmd.Context(), cfg, logf)
				if err != nil {
					logf("Warning: chart archive disabled: %v", err)
				} else {
					archiver = a
				}
			}

			return relay.New(cfg, archiver, logf).Send(cmd.Context(), relay.Alert{
				Phone:   args[0],
				Message: args[1],
				Subject: opts.subject,
				Caption: opts.caption,
				GraphID: opts.graphID,
				STime:   opts.stime,
			})
		},
	}
	cmd.SetArgs(args)
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringVar(&opts.configFile, "config", "", "YAML config file with connection defaults")
	f.StringVar(&opts.subject, "subject", "", "optional subject for the text message")
	f.StringVar(&opts.caption, "caption", "", "optional caption for the graph (defaults to the message)")

	f.StringVar(&opts.apiBaseURL, "api-base-url", config.DefaultAPIBaseURL, "WhatsApp gateway base URL")
	f.StringVar(&opts.apiToken, "api-token", "", "WhatsApp gateway token (X-API-Token header)")
	f.Float64Var(&opts.timeout, "timeout", config.DefaultTimeoutSeconds, "HTTP request timeout in seconds")
	f.BoolVar(&opts.insecure, "insecure", false, "disable TLS certificate verification (not for production)")

	f.StringVar(&opts.graphID, "graph-id", "", "ID of the Zabbix graph to attach")
	f.StringVar(&opts.zabbixURL, "zabbix-url", "", "Zabbix base URL, e.g. https://zabbix.example.com")
	f.StringVar(&opts.zabbixToken, "zabbix-token", "", "Zabbix API token (Bearer)")
	f.StringVar(&opts.zabbixUser, "zabbix-user", "", "Zabbix user for API login")
	f.StringVar(&opts.zabbixPassword, "zabbix-password", "", "Zabbix password for API login")
	f.IntVar(&opts.period, "period", config.DefaultPeriod, "graph period in seconds")
	f.IntVar(&opts.width, "width", config.DefaultWidth, "graph width in pixels")
	f.IntVar(&opts.height, "height", config.DefaultHeight, "graph height in pixels")
	f.StringVar(&opts.stime, "stime", "", "graph start time, YYYYMMDDHHMMSS (overrides the default period start)")
	f.StringVar(&opts.graphFilename, "graph-filename", config.DefaultGraphFilename, "file name of the graph sent to WhatsApp")

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var se *relay.StageError
	if errors.As(err, &se) {
		// Already logged by the relay.
		if se.Stage == relay.StageText {
			return exitTextFailed
		}
		return exitMediaFailed
	}

	logf("Error: %v", err)
	return exitUsage
}

// loadConfig reads the optional config file and applies the flags that were
// set explicitly on top of it.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configFile != "" {
		var err error
		if cfg, err = config.LoadConfig(opts.configFile); err != nil {
			return nil, err
		}
	}

	f := cmd.Flags()
	if f.Changed("api-base-url") {
		cfg.API.BaseURL = opts.apiBaseURL
	}
	if f.Changed("api-token") {
		cfg.API.Token = opts.apiToken
	}
	if f.Changed("timeout") {
		cfg.API.TimeoutSeconds = opts.timeout
	}
	if f.Changed("insecure") {
		cfg.API.Insecure = opts.insecure
	}
	if f.Changed("zabbix-url") {
		cfg.Zabbix.URL = opts.zabbixURL
	}
	if f.Changed("zabbix-token") {
		cfg.Zabbix.Token = opts.zabbixToken
	}
	if f.Changed("zabbix-user") {
		cfg.Zabbix.User = opts.zabbixUser
	}
	if f.Changed("zabbix-password") {
		cfg.Zabbix.Password = opts.zabbixPassword
	}
	if f.Changed("period") {
		cfg.Graph.Period = opts.period
	}
	if f.Changed("width") {
		cfg.Graph.Width = opts.width
	}
	if f.Changed("height") {
		cfg.Graph.Height = opts.height
	}
	if f.Changed("graph-filename") {
		cfg.Graph.Filename = opts.graphFilename
	}

	return cfg, nil
}
