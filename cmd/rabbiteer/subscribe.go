package main

import (
	"github.com/glimte/rabbiteer/internal/output"
	"github.com/glimte/rabbiteer/internal/rabbitmq"
	"github.com/spf13/cobra"
)

type subscribeOptions struct {
	exchange   string
	routingKey string
	output     string
	info       bool
	single     bool
	queue      string
	declare    bool
	noAck      bool
}

func newSubscribeCommand(root *rootOptions) *cobra.Command {
	var opts subscribeOptions

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Print or save messages routed from an exchange",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root.running = true
			return runSubscribe(cmd, root, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.exchange, "exchange", "e", "", "Exchange to bind to")
	flags.StringVarP(&opts.routingKey, "routing-key", "r", rabbitmq.MatchAll, "Routing key to bind with")
	flags.StringVarP(&opts.output, "output", "o", output.Stdout, `Directory to write messages to, "-" for stdout`)
	flags.BoolVarP(&opts.info, "info", "i", false, "Print delivery metadata and properties with each message")
	flags.BoolVarP(&opts.single, "single", "s", false, "Exit after the first message")
	flags.StringVarP(&opts.queue, "queue", "q", "", "Consume from a named queue instead of an anonymous one")
	flags.BoolVarP(&opts.declare, "declare", "d", false, "Declare the named queue")
	flags.BoolVar(&opts.noAck, "noack", false, "Do not acknowledge messages")
	cmd.MarkFlagRequired("exchange")

	return cmd
}

func runSubscribe(cmd *cobra.Command, root *rootOptions, opts subscribeOptions) error {
	client, logger, err := root.setup(cmd)
	if err != nil {
		return err
	}

	// checked before connecting so a bad target fails fast
	sink, err := output.New(opts.output,
		output.WithStdout(cmd.OutOrStdout()),
		output.WithStderr(cmd.ErrOrStderr()),
		output.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	var routingKey *string
	if cmd.Flags().Changed("routing-key") {
		routingKey = &opts.routingKey
	}

	q := rabbitmq.QueueOptions{Name: opts.queue, ForceDeclare: opts.declare}
	r := rabbitmq.Receiver{
		Exchange:   opts.exchange,
		RoutingKey: routingKey,
		AutoAck:    !opts.noAck,
		Single:     opts.single,
		Handler:    sink.Handler(opts.info),
	}

	return client.Subscribe(cmd.Context(), q, r)
}
