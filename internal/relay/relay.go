// Package relay forwards a Zabbix alert to the messaging gateway: the text
// first, then optionally the rendered graph as a media message.
package relay

import (
	"context"
	"fmt"

	"github.com/mikhail-angelov/zabbix-whatsapp/internal/config"
	"github.com/mikhail-angelov/zabbix-whatsapp/internal/logger"
	"github.com/mikhail-angelov/zabbix-whatsapp/internal/media"
	"github.com/mikhail-angelov/zabbix-whatsapp/internal/messaging"
	"github.com/mikhail-angelov/zabbix-whatsapp/internal/zabbix"
)

// Stage identifies the step of a relay that failed.
type Stage int

const (
	// StageText is the text message send.
	StageText Stage = iota + 1
	// StageMedia covers graph fetch, encoding and media send.
	StageMedia
)

func (s Stage) String() string {
	switch s {
	case StageText:
		return "text"
	case StageMedia:
		return "media"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// StageError wraps the error that aborted a stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Archiver stores a copy of a fetched chart.
type Archiver interface {
	Archive(ctx context.Context, graphID string, data []byte, contentType string) error
}

// Alert is one invocation's message.
type Alert struct {
	Phone   string
	Message string
	Subject string
	// Caption accompanies the graph; the message text is used when empty.
	Caption string
	// GraphID enables the media stage when set.
	GraphID string
	STime   string
}

// Relay sends alerts according to its configuration.
type Relay struct {
	cfg      *config.Config
	archiver Archiver
	logf     logger.Logf
}

// New creates a Relay. archiver may be nil.
func New(cfg *config.Config, archiver Archiver, logf logger.Logf) *Relay {
	return &Relay{cfg: cfg, archiver: archiver, logf: logger.OrDiscard(logf)}
}

// Send validates the configuration, sends the text message and, when the
// alert names a graph, sends the graph. Validation errors are returned before
// any request is made; stage failures come back as *StageError.
func (r *Relay) Send(ctx context.Context, alert Alert) error {
	if err := r.cfg.Validate(alert.GraphID != ""); err != nil {
		return err
	}

	client := messaging.NewClient(messaging.Config{
		BaseURL:  r.cfg.API.BaseURL,
		APIToken: r.cfg.API.Token,
		Timeout:  r.cfg.Timeout(),
		Insecure: r.cfg.API.Insecure,
	}, r.logf)

	r.logf("Sending text message...")
	if _, err := client.SendText(ctx, alert.Phone, alert.Message, alert.Subject); err != nil {
		r.logf("Text message failed: %v", err)
		return &StageError{Stage: StageText, Err: err}
	}

	if alert.GraphID == "" {
		return nil
	}

	if err := r.sendGraph(ctx, client, alert); err != nil {
		r.logf("Media send failed: %v", err)
		return &StageError{Stage: StageMedia, Err: err}
	}
	return nil
}

func (r *Relay) sendGraph(ctx context.Context, client *messaging.Client, alert Alert) error {
	fetcher := zabbix.NewFetcher(zabbix.Config{
		BaseURL:  r.cfg.Zabbix.URL,
		Timeout:  r.cfg.Timeout(),
		Insecure: r.cfg.API.Insecure,
		Token:    r.cfg.Zabbix.Token,
		User:     r.cfg.Zabbix.User,
		Password: r.cfg.Zabbix.Password,
	}, r.logf)

	graph, err := fetcher.FetchGraph(ctx, zabbix.Query{
		GraphID: alert.GraphID,
		Period:  r.cfg.Graph.Period,
		Width:   r.cfg.Graph.Width,
		Height:  r.cfg.Graph.Height,
		STime:   alert.STime,
	})
	if err != nil {
		return err
	}

	if r.archiver != nil {
		r.archive(ctx, alert.GraphID, graph)
	}

	obj := media.Encode(graph.Data, graph.ContentType, r.cfg.Graph.Filename)
	caption := alert.Caption
	if caption == "" {
		caption = alert.Message
	}

	r.logf("Sending chart as media...")
	_, err = client.SendMedia(ctx, alert.Phone, obj, caption)
	return err
}

// archive stores a copy of the chart within one request timeout. Failures are
// only logged.
func (r *Relay) archive(ctx context.Context, graphID string, graph *zabbix.Graph) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout())
	defer cancel()

	if err := r.archiver.Archive(ctx, graphID, graph.Data, graph.ContentType); err != nil {
		r.logf("Warning: chart archive failed: %v", err)
	}
}
