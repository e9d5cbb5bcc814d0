package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/comalice/adlayers"
	"github.com/comalice/adlayers/internal/core"
	"github.com/comalice/adlayers/internal/extensibility"
	"github.com/comalice/adlayers/internal/primitives"
	"github.com/comalice/adlayers/internal/production"
)

// eventBuffer bounds the events held while the demo runs; later ones are
// dropped and counted.
const eventBuffer = 4096

type demoFlags struct {
	metricsFile string
	trace       bool
	events      bool
}

func newDemoCmd(flags *globalFlags) *cobra.Command {
	df := &demoFlags{}
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a nested grad/jvp scenario and report what each level did",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), cmd.OutOrStdout(), flags, df)
		},
	}
	cmd.Flags().StringVar(&df.metricsFile, "metrics-file", "", "write Prometheus text exposition of the dispatch counters to this file")
	cmd.Flags().BoolVar(&df.trace, "trace", false, "print redispatch spans to stdout")
	cmd.Flags().BoolVar(&df.events, "events", false, "print the dispatch events published at every level")
	return cmd
}

func runDemo(ctx context.Context, out io.Writer, flags *globalFlags, df *demoFlags) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := flags.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	tape := extensibility.NewTape()
	engine := []core.Option{
		core.WithMetrics(core.NewMetrics(reg)),
		core.WithTransformLayer(primitives.Grad, tape),
		core.WithTransformLayer(primitives.Jvp, tape),
	}
	if df.trace {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("create exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
		defer func() { err = errors.Join(err, tp.Shutdown(context.Background())) }()
		engine = append(engine, core.WithTracerProvider(tp))
	}
	if df.events {
		events := newEventLog(eventBuffer)
		engine = append(engine, core.WithPublisher(events.pub))
		defer func() {
			for _, e := range events.close() {
				fmt.Fprintln(out, formatEvent(e))
			}
			if n := events.pub.Dropped(); n > 0 {
				fmt.Fprintf(out, "events dropped: %d\n", n)
			}
		}()
	}

	s, err := adlayers.New(
		adlayers.WithConfig(cfg),
		adlayers.WithLogger(logger),
		adlayers.WithKernel(extensibility.NewLoggingKernel(extensibility.ReferenceKernels(), logger)),
		adlayers.WithEngineOptions(engine...),
	)
	if err != nil {
		return err
	}

	x := primitives.MustDense([]int{3}, []float64{1, 2, 3})
	err = s.Grad(ctx, func(ctx context.Context, outer int) error {
		return s.Jvp(ctx, func(ctx context.Context, inner int) error {
			sq, err := s.Call1(ctx, "mul", adlayers.ArrayOf(x), adlayers.ArrayOf(x))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "mul at level %d: %s\n", inner, describe(sq))

			v, err := s.Call1(ctx, "view", adlayers.ArrayOf(x), adlayers.ScalarOf([]int{3, 1}))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "view of a captured input: %s\n", describe(v))

			_, err = s.Call(ctx, "add_", adlayers.ArrayOf(x), adlayers.ArrayOf(x))
			fmt.Fprintf(out, "add_ on a captured input rejected: %t\n", errors.Is(err, adlayers.ErrCapturedMutation))

			if _, err := s.Call(ctx, "resize_", sq, adlayers.ScalarOf([]int{2, 3})); err != nil {
				return err
			}
			fmt.Fprintf(out, "resize_ of a local value: %s\n", describe(sq))
			return nil
		})
	})
	if err != nil {
		return err
	}

	for _, e := range tape.Entries() {
		fmt.Fprintf(out, "tape: level %d %s (%d inputs, %d outputs)\n", e.Level, e.Operator, len(e.Inputs), len(e.Outputs))
	}
	if df.metricsFile != "" {
		if err := prometheus.WriteToTextfile(df.metricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// eventLog drains a ChannelPublisher in the background.
type eventLog struct {
	pub    *production.ChannelPublisher
	done   chan struct{}
	events []primitives.Event
}

func newEventLog(buffer int) *eventLog {
	ch := make(chan primitives.Event, buffer)
	l := &eventLog{pub: production.NewChannelPublisher(ch), done: make(chan struct{})}
	go func() {
		defer close(l.done)
		for e := range ch {
			l.events = append(l.events, e)
		}
	}()
	return l
}

// close stops publishing and returns every event received, in order.
func (l *eventLog) close() []primitives.Event {
	_ = l.pub.Close()
	<-l.done
	return l.events
}

func formatEvent(e primitives.Event) string {
	line := fmt.Sprintf("event: %s %s level %d", e.Type, e.Operator, e.Level)
	if e.Kind != "" {
		line += " " + string(e.Kind)
	}
	return line
}

func describe(v adlayers.Value) string {
	a := v.Array()
	levels := primitives.Levels(a)
	if len(levels) == 0 {
		return fmt.Sprintf("unwrapped %v", a.Shape())
	}
	return fmt.Sprintf("wrapped at levels %v, shape %v", levels, a.Shape())
}

func newDotCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dot",
		Short: "Print a Graphviz view of nested levels and wrapped values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			s, err := adlayers.New(adlayers.WithConfig(cfg), adlayers.WithLogger(logger))
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			x := primitives.MustDense([]int{2}, []float64{1, 2})
			return s.Grad(ctx, func(ctx context.Context, _ int) error {
				y, err := s.Call1(ctx, "clone", adlayers.ArrayOf(x))
				if err != nil {
					return err
				}
				return s.Jvp(ctx, func(ctx context.Context, _ int) error {
					z, err := s.Call1(ctx, "mul", y, adlayers.ArrayOf(x))
					if err != nil {
						return err
					}
					v := &production.DefaultVisualizer{}
					fmt.Fprint(cmd.OutOrStdout(), v.ExportDOT(s.Dispatcher().Interpreters(), map[string]primitives.Array{
						"x": x,
						"y": y.Array(),
						"z": z.Array(),
					}))
					return nil
				})
			})
		},
	}
}
