package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"

	"github.com/ringbroker/client/config"
	"github.com/ringbroker/client/internal/app"
	"github.com/ringbroker/client/internal/entity"
	"github.com/ringbroker/client/internal/handler"
)

func main() {
	log.Root().SetHandler(log.LvlFilterHandler(log.LvlInfo, log.StreamHandler(os.Stderr, log.TerminalFormat(true))))

	rootCmd := &cobra.Command{Use: "ringctl", Short: "Drive single requests against a ring-broker cluster"}

	cmdServe := &cobra.Command{
		Use:   "serve",
		Short: "Run the topology-introspection admin API and block",
		RunE:  runServe,
	}
	config.RegisterFlags(cmdServe)

	cmdStatus := &cobra.Command{
		Use:   "status",
		Short: "Refresh topology and print node/partition diagnostics",
		RunE:  runStatus,
	}
	config.RegisterFlags(cmdStatus)

	cmdCommand := &cobra.Command{
		Use:   "command",
		Short: "Send a single command to a partition and print the response",
		RunE:  runCommand,
	}
	config.RegisterFlags(cmdCommand)
	cmdCommand.Flags().String("topic", "", "Partition topic to target")
	cmdCommand.Flags().Uint32("partition", 0, "Partition number within the topic")
	cmdCommand.Flags().Uint16("response.template", 0, "Template ID the broker answers with on success")
	cmdCommand.Flags().String("payload", "-", "JSON payload to send, or - to read from stdin")
	cmdCommand.MarkFlagRequired("topic")
	cmdCommand.MarkFlagRequired("response.template")

	cmdControl := &cobra.Command{
		Use:   "control",
		Short: "Send a single control message and print the response",
		RunE:  runControl,
	}
	config.RegisterFlags(cmdControl)
	cmdControl.Flags().String("name", "", "Name of the control message")
	cmdControl.Flags().String("target", "any", "Target: leader, any, or node:<id>")
	cmdControl.Flags().Uint16("response.template", 0, "Template ID the broker answers with on success")
	cmdControl.Flags().String("payload", "-", "JSON payload to send, or - to read from stdin")
	cmdControl.MarkFlagRequired("name")
	cmdControl.MarkFlagRequired("response.template")

	rootCmd.AddCommand(cmdServe, cmdStatus, cmdCommand, cmdControl)
	if err := rootCmd.Execute(); err != nil {
		log.Error("ringctl failed", "err", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewConfig(cmd)
	if err != nil {
		return err
	}
	return app.Run(cfg)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewConfig(cmd)
	if err != nil {
		return err
	}
	return app.PrintStatus(cfg, os.Stdout)
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewConfig(cmd)
	if err != nil {
		return err
	}

	topic, _ := cmd.Flags().GetString("topic")
	partition, _ := cmd.Flags().GetUint32("partition")
	templateID, _ := cmd.Flags().GetUint16("response.template")
	payload, err := readPayload(cmd)
	if err != nil {
		return err
	}

	result, err := app.SendCommand(cfg, handler.JSONMapper{}, entity.Command{
		Partition:          entity.PartitionKey{Topic: topic, Partition: partition},
		Payload:            payload,
		ResponseTemplateID: templateID,
	})
	if err != nil {
		return err
	}
	return printResult(result)
}

func runControl(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewConfig(cmd)
	if err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("name")
	target, _ := cmd.Flags().GetString("target")
	templateID, _ := cmd.Flags().GetUint16("response.template")
	payload, err := readPayload(cmd)
	if err != nil {
		return err
	}

	req, err := parseTarget(target)
	if err != nil {
		return err
	}

	result, err := app.SendControlMessage(cfg, handler.JSONMapper{}, entity.ControlMessage{
		Target:             req,
		Payload:            payload,
		ResponseTemplateID: templateID,
		Name:               name,
	})
	if err != nil {
		return err
	}
	return printResult(result)
}

func parseTarget(target string) (entity.LogicalRequest, error) {
	switch {
	case target == "leader":
		return entity.LogicalRequest{Kind: entity.TargetLeader}, nil
	case target == "any" || target == "":
		return entity.LogicalRequest{Kind: entity.TargetAny}, nil
	case strings.HasPrefix(target, "node:"):
		return entity.LogicalRequest{Kind: entity.TargetNode, NodeID: strings.TrimPrefix(target, "node:")}, nil
	default:
		return entity.LogicalRequest{}, fmt.Errorf("ringctl: unrecognized target %q, want leader, any, or node:<id>", target)
	}
}

func readPayload(cmd *cobra.Command) (interface{}, error) {
	raw, _ := cmd.Flags().GetString("payload")
	var data []byte
	var err error
	if raw == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data = []byte(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("ringctl: read payload: %w", err)
	}
	if len(data) == 0 {
		return map[string]interface{}{}, nil
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("ringctl: parse payload as json: %w", err)
	}
	return v, nil
}

func printResult(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
