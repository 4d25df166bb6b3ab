package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/garyjia/billing-master/internal/billing"
	"github.com/garyjia/billing-master/internal/config"
	"github.com/garyjia/billing-master/internal/container"
	"github.com/garyjia/billing-master/pkg/utils"
)

const usage = `usage: billing <command> [flags]

commands:
  run       build a customer's report
  mail      compose a draft mail for a customer
  profiles  list customers and their report names
  history   show recent runs
  serve     start the operator console
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := dispatch(ctx, os.Args[1], os.Args[2:], os.Stdout)
	switch {
	case err == nil, errors.Is(err, pflag.ErrHelp):
	case errors.Is(err, billing.ErrNoInput):
		// nothing selected, nothing to do
	case errors.Is(err, errUsage):
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "billing: %v\n", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("unknown command")

type command func(ctx context.Context, c *container.Container, args []string, out io.Writer) error

func dispatch(ctx context.Context, name string, args []string, out io.Writer) error {
	commands := map[string]func(*pflag.FlagSet) command{
		"run":      runFlags,
		"mail":     mailFlags,
		"profiles": profilesFlags,
		"history":  historyFlags,
		"serve":    serveFlags,
	}
	flags, ok := commands[name]
	if !ok {
		return errUsage
	}

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	configPath := fs.String("config", "configs/config.yaml", "config file")
	cmd := flags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(cfg.Logger.Utils())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("Shutdown incomplete", zap.Error(err))
		}
	}()

	return cmd(ctx, c, fs.Args(), out)
}

func runFlags(fs *pflag.FlagSet) command {
	customer := fs.StringP("customer", "c", "", "customer profile")
	inputs := fs.StringArrayP("input", "i", nil, "input file (repeatable)")
	output := fs.StringP("output", "o", "", "output file")
	outputDir := fs.String("output-dir", "", "output directory (default workspace.output_dir)")
	sheet := fs.String("sheet", "", "worksheet to read from xlsx inputs")

	return func(ctx context.Context, c *container.Container, args []string, out io.Writer) error {
		paths := append(*inputs, args...)
		if *customer == "" || len(paths) == 0 {
			return billing.ErrNoInput
		}
		dir := *outputDir
		if dir == "" {
			dir = c.Config().Workspace.OutputDir
		}

		t := c.Runner().NewTask(billing.Request{
			Customer:  *customer,
			Inputs:    paths,
			Output:    *output,
			OutputDir: dir,
			Sheet:     *sheet,
		})
		if err := c.Manager().Submit(ctx, t); err != nil {
			return err
		}

		go func() {
			select {
			case <-ctx.Done():
				c.Manager().Cancel()
			case <-t.Done():
			}
		}()
		for p := range t.Progress() {
			fmt.Fprintf(os.Stderr, "\r%3d%%", p)
		}
		fmt.Fprintln(os.Stderr)

		res := t.Result()
		for _, o := range res.Outputs {
			fmt.Fprintln(out, o)
		}
		if res.Err != nil {
			return fmt.Errorf("%s: %w", res.Outcome, res.Err)
		}
		return nil
	}
}

func mailFlags(fs *pflag.FlagSet) command {
	customer := fs.StringP("customer", "c", "", "customer")
	attachments := fs.StringArrayP("attach", "a", nil, "attachment (repeatable)")

	return func(ctx context.Context, c *container.Container, args []string, out io.Writer) error {
		if *customer == "" {
			return billing.ErrNoInput
		}
		path, err := c.Mailer().Compose(ctx, *customer, append(*attachments, args...))
		if path != "" {
			fmt.Fprintln(out, path)
		}
		return err
	}
}

func profilesFlags(*pflag.FlagSet) command {
	return func(_ context.Context, c *container.Container, _ []string, out io.Writer) error {
		table := newTable(out, "Customer", "Kind", "Report", "Attachment")

		registry := c.Runner().Profiles()
		for _, name := range registry.Customers() {
			p, err := registry.Lookup(name)
			if err != nil {
				return err
			}
			report, _ := c.Runner().SuggestedName(name)
			if report == "" {
				report = "-"
			}
			attachment, err := c.Mailer().SuggestedAttachment(name)
			if err != nil {
				attachment = "-"
			}
			table.Append([]string{name, p.Kind(), report, attachment})
		}
		table.Render()
		return nil
	}
}

func historyFlags(fs *pflag.FlagSet) command {
	limit := fs.IntP("limit", "n", 20, "number of runs")

	return func(ctx context.Context, c *container.Container, _ []string, out io.Writer) error {
		runs, err := c.Runs().List(ctx, *limit)
		if err != nil {
			return err
		}
		table := newTable(out, "Finished", "Customer", "State", "Outputs", "Reason")
		for _, r := range runs {
			table.Append([]string{
				r.FinishedAt.Local().Format(time.DateTime),
				r.Customer,
				r.State,
				strconv.Itoa(len(r.Outputs)),
				r.Reason,
			})
		}
		table.Render()
		return nil
	}
}

func serveFlags(*pflag.FlagSet) command {
	return func(ctx context.Context, c *container.Container, _ []string, _ io.Writer) error {
		server, err := c.Serve(ctx)
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
		case <-server.Done():
			return fmt.Errorf("console stopped unexpectedly")
		}
		return nil
	}
}

// newTable returns a borderless table for terminal listings
func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	table.SetHeaderLine(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return table
}
