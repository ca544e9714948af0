package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jingkaihe/skilldesk/pkg/telemetry"
)

var tracer = telemetry.Tracer("skilldesk.cli")

// instrument wraps the RunE of every runnable command below cmd in a
// cli.command span
func instrument(cmd *cobra.Command) {
	for _, child := range cmd.Commands() {
		instrument(child)
	}
	if cmd.RunE == nil {
		return
	}

	run := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "cli.command", trace.WithAttributes(commandAttributes(cmd, args)...))
		defer span.End()
		cmd.SetContext(ctx)

		err := run(cmd, args)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetStatus(codes.Ok, "")
		return nil
	}
}

func commandAttributes(cmd *cobra.Command, args []string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("command.name", cmd.Name()),
		attribute.String("command.path", cmd.CommandPath()),
		attribute.Int("args.count", len(args)),
	}
	// hooks run --input may carry tool input verbatim
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		if flag.Name == "input" || flag.Name == "prompt" {
			return
		}
		attrs = append(attrs, attribute.String("flag."+strings.ReplaceAll(flag.Name, "-", "_"), flag.Value.String()))
	})
	return attrs
}

func init() {
	rootCmd.PersistentFlags().Bool("tracing-enabled", false, "Enable OpenTelemetry tracing")
	rootCmd.PersistentFlags().String("tracing-sampler", "ratio", "Tracing sampler type (always, never, ratio)")
	rootCmd.PersistentFlags().Float64("tracing-ratio", 1, "Sampling ratio when using the ratio sampler")

	_ = v.BindPFlag("tracing.enabled", rootCmd.PersistentFlags().Lookup("tracing-enabled"))
	_ = v.BindPFlag("tracing.sampler", rootCmd.PersistentFlags().Lookup("tracing-sampler"))
	_ = v.BindPFlag("tracing.ratio", rootCmd.PersistentFlags().Lookup("tracing-ratio"))
}
