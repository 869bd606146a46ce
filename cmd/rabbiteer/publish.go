package main

import (
	"io"
	"os"
	"time"

	"github.com/glimte/rabbiteer/internal/apperr"
	"github.com/glimte/rabbiteer/internal/output"
	"github.com/glimte/rabbiteer/internal/rabbitmq"
	"github.com/spf13/cobra"
)

type publishOptions struct {
	exchange    string
	routingKey  string
	headers     []string
	file        string
	contentType string
	priority    uint8
	rpc         bool
	rpcTimeout  uint64
}

func newPublishCommand(root *rootOptions) *cobra.Command {
	var opts publishOptions

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a file or stdin to an exchange",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root.running = true
			return runPublish(cmd, root, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.exchange, "exchange", "e", "", "Exchange to publish to")
	flags.StringVarP(&opts.routingKey, "routing-key", "r", "", "Routing key")
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, `Header as "Key: Value", repeatable`)
	flags.StringVarP(&opts.file, "file", "f", rabbitmq.StdinFileName, `File to publish, "-" for stdin`)
	flags.StringVarP(&opts.contentType, "content-type", "c", "", "Content type, guessed from the file name if empty")
	flags.Uint8Var(&opts.priority, "priority", 0, "Message priority")
	flags.BoolVar(&opts.rpc, "rpc", false, "Wait for a reply on an exclusive queue")
	flags.Uint64Var(&opts.rpcTimeout, "rpctimeout", 0, "Milliseconds to wait for the rpc reply, 0 waits forever")
	cmd.MarkFlagRequired("exchange")

	return cmd
}

func runPublish(cmd *cobra.Command, root *rootOptions, opts publishOptions) error {
	client, _, err := root.setup(cmd)
	if err != nil {
		return err
	}

	in, err := openInput(cmd, opts.file)
	if err != nil {
		return err
	}
	defer in.Close()

	contentType := opts.contentType
	if contentType == "" {
		contentType = output.InferContentType(output.SystemTypes(), opts.file)
	}

	s := rabbitmq.Sendable{
		Exchange:    opts.exchange,
		RoutingKey:  opts.routingKey,
		ContentType: contentType,
		Headers:     opts.headers,
		FileName:    opts.file,
		Reader:      in,
		Priority:    opts.priority,
		RPC:         opts.rpc,
		RPCTimeout:  time.Duration(opts.rpcTimeout) * time.Millisecond,
	}

	if opts.rpc {
		sink, err := output.New(output.Stdout, output.WithStdout(cmd.OutOrStdout()))
		if err != nil {
			return err
		}
		s.OnReply = sink.Handler(false)
	}

	return client.Publish(cmd.Context(), s)
}

func openInput(cmd *cobra.Command, file string) (io.ReadCloser, error) {
	if file == rabbitmq.StdinFileName {
		return io.NopCloser(cmd.InOrStdin()), nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, apperr.IOError("open input", err)
	}
	return f, nil
}
