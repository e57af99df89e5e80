// Package cli implements the wavectl commands over a local wave tracker.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/iudanet/tubewave/internal/cli/iocli"
	"github.com/iudanet/tubewave/internal/models"
	"github.com/iudanet/tubewave/internal/wave"
	"github.com/iudanet/tubewave/pkg/api"
)

// ErrUsage is returned for malformed command lines
var ErrUsage = errors.New("invalid usage")

// Tracker is the part of wave.Tracker used by the commands
type Tracker interface {
	LastWave(ctx context.Context, task wave.Task) ([]models.SnapshotEntry, error)
	InitialWave(ctx context.Context, task wave.Task) (*models.SnapshotEntry, error)
	RecordWave(ctx context.Context, task wave.Task, w int64, payloads []map[string]any) (int64, error)
	LastWaves(ctx context.Context, prefix string, sources []string, target string) (map[string]int64, error)
	UpdateSyncWave(ctx context.Context, prefix string, sources []string, target string, w int64) (bool, error)
	Save(ctx context.Context, nice, wait bool) (bool, error)
}

type Cli struct {
	io      iocli.IO
	tracker Tracker
}

func New(stream iocli.IO, tracker Tracker) *Cli {
	return &Cli{io: stream, tracker: tracker}
}

// Run executes the command named by args[0]
func (c *Cli) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", ErrUsage)
	}

	switch args[0] {
	case "last-wave":
		return c.runLastWave(ctx, args[1:])
	case "initial-wave":
		return c.runInitialWave(ctx, args[1:])
	case "last-waves":
		return c.runLastWaves(ctx, args[1:])
	case "update-sync":
		return c.runUpdateSync(ctx, args[1:])
	case "record":
		return c.runRecord(ctx, args[1:])
	case "save":
		return c.runSave(ctx, args[1:])
	}
	return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
}

// last-wave TARGET [key=value ...]
func (c *Cli) runLastWave(ctx context.Context, args []string) error {
	task, err := parseTask(args)
	if err != nil {
		return err
	}

	entries, err := c.tracker.LastWave(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to get last wave: %w", err)
	}
	if len(entries) == 0 {
		c.io.Println("No waves found.")
		return nil
	}
	return c.io.PrintJSON(entries)
}

// initial-wave TARGET [key=value ...]
func (c *Cli) runInitialWave(ctx context.Context, args []string) error {
	task, err := parseTask(args)
	if err != nil {
		return err
	}

	entry, err := c.tracker.InitialWave(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to get initial wave: %w", err)
	}
	if entry == nil {
		c.io.Println("No waves found.")
		return nil
	}
	return c.io.PrintJSON(entry)
}

// last-waves -prefix P -target T SOURCE...
func (c *Cli) runLastWaves(ctx context.Context, args []string) error {
	fs := newFlagSet("last-waves")
	prefix := fs.String("prefix", "", "namespace://database holding the sync table")
	target := fs.String("target", "", "target tube URI")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *prefix == "" || *target == "" || fs.NArg() == 0 {
		return fmt.Errorf("%w: last-waves -prefix P -target T SOURCE...", ErrUsage)
	}

	waves, err := c.tracker.LastWaves(ctx, *prefix, fs.Args(), *target)
	if err != nil {
		return fmt.Errorf("failed to get last waves: %w", err)
	}
	return c.io.PrintJSON(waves)
}

// update-sync -prefix P -target T -wave N SOURCE...
func (c *Cli) runUpdateSync(ctx context.Context, args []string) error {
	fs := newFlagSet("update-sync")
	prefix := fs.String("prefix", "", "namespace://database holding the sync table")
	target := fs.String("target", "", "target tube URI")
	w := fs.Int64("wave", 0, "wave merged into the target")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *prefix == "" || *target == "" || fs.NArg() == 0 {
		return fmt.Errorf("%w: update-sync -prefix P -target T -wave N SOURCE...", ErrUsage)
	}

	ok, err := c.tracker.UpdateSyncWave(ctx, *prefix, fs.Args(), *target, *w)
	if err != nil {
		return fmt.Errorf("sync wave not fully updated: %w", err)
	}
	if !ok {
		return errors.New("sync wave not fully updated")
	}
	c.io.Printf("✓ %d source(s) synced into %s at wave %d\n", fs.NArg(), *target, *w)
	return nil
}

// record [-wave N] TARGET [key=value ...], payloads are JSON objects on stdin
func (c *Cli) runRecord(ctx context.Context, args []string) error {
	fs := newFlagSet("record")
	w := fs.Int64("wave", 0, "wave to write, 0 allocates the next one")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	task, err := parseTask(fs.Args())
	if err != nil {
		return err
	}

	payloads, err := readPayloads(c.io.Input())
	if err != nil {
		return err
	}

	written, err := c.tracker.RecordWave(ctx, task, *w, payloads)
	if err != nil {
		return fmt.Errorf("failed to record wave: %w", err)
	}
	c.io.Printf("✓ wave %d recorded for %s (%d payload(s))\n", written, task.Target(), len(payloads))
	return nil
}

// save [-wait] [-nice]
func (c *Cli) runSave(ctx context.Context, args []string) error {
	fs := newFlagSet("save")
	wait := fs.Bool("wait", false, "block until data is durable")
	nice := fs.Bool("nice", false, "low priority flush")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	ok, err := c.tracker.Save(ctx, *nice, *wait)
	if err != nil {
		return fmt.Errorf("failed to save: %w", err)
	}
	if !ok {
		return errors.New("storage has not been saved")
	}
	c.io.Println("✓ saved")
	return nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseTask разбирает TARGET [key=value ...]; значения, валидные как JSON, декодируются
func parseTask(args []string) (wave.Task, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: missing target tube URI", ErrUsage)
	}

	task := wave.Task{models.FieldTargetURL: args[0]}
	for _, kv := range args[1:] {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: label %q is not key=value", ErrUsage, kv)
		}
		task[key] = api.DecodeLabel(raw)
	}
	return task, nil
}

// readPayloads читает поток JSON значений: объекты или массивы объектов
func readPayloads(r io.Reader) ([]map[string]any, error) {
	dec := json.NewDecoder(r)

	var payloads []map[string]any
	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return payloads, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read payloads: %w", err)
		}

		var batch []map[string]any
		if err := json.Unmarshal(raw, &batch); err == nil {
			payloads = append(payloads, batch...)
			continue
		}
		var single map[string]any
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("payload must be a JSON object or array of objects: %w", err)
		}
		payloads = append(payloads, single)
	}
}

func PrintUsage(out io.Writer) {
	_, _ = fmt.Fprint(out, `wavectl - inspect and update tube waves

Usage:
  wavectl [OPTIONS] COMMAND [ARGS]

Options:
  -driver NAME   storage driver: memory, bolt, sqlite, postgres (default: bolt)
  -db DSN        database file or connection string (default: waves.db)
  -config PATH   read storage settings from a waved config file
  -server URL    talk to a running waved instead of opening a store
  -v             log tracker activity to stderr
  -version       show version information

Commands:
  last-wave TARGET [key=value ...]              snapshot rows of the most recent wave
  initial-wave TARGET [key=value ...]           earliest row of the last wave
  last-waves -prefix P -target T SOURCE...      last synced wave per source
  update-sync -prefix P -target T -wave N SOURCE...
                                                record sources merged into target
  record [-wave N] TARGET [key=value ...]       write a wave, payloads as JSON on stdin
  save [-wait] [-nice]                          flush storage
`)
}
