package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/leoftp/leo/internal/config"
	"github.com/leoftp/leo/pkg/client"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "leo-client",
	Short: "LEO secure file transfer client",
}

var putCmd = &cobra.Command{
	Use:   "put <local-path> <remote-path>",
	Short: "Upload a local file to the server",
	Args:  cobra.ExactArgs(2),
	RunE: withSession(func(c *client.Client, args []string) error {
		return c.Put(args[0], args[1])
	}),
}

var getCmd = &cobra.Command{
	Use:   "get <remote-path> <local-path>",
	Short: "Download a remote file",
	Args:  cobra.ExactArgs(2),
	RunE: withSession(func(c *client.Client, args []string) error {
		return c.Get(args[0], args[1])
	}),
}

var listCmd = &cobra.Command{
	Use:   "list <remote-path>",
	Short: "List a remote directory",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(c *client.Client, args []string) error {
		items, err := c.List(args[0])
		if err != nil {
			return err
		}
		for _, item := range items {
			size := "-"
			if item.Size != nil {
				size = fmt.Sprintf("%d", *item.Size)
			}
			fmt.Printf("%-5s %10s  %s\n", item.Type, size, item.Name)
		}
		return nil
	}),
}

var delCmd = &cobra.Command{
	Use:   "del <remote-path>",
	Short: "Delete a remote file",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(c *client.Client, args []string) error {
		return c.Del(args[0])
	}),
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print server capabilities and protocol version",
	Args:  cobra.NoArgs,
	RunE: withSession(func(c *client.Client, args []string) error {
		info, err := c.Info()
		if err != nil {
			return err
		}
		fmt.Printf("version: %s\nprotocolVersion: %d\ncapabilities: %v\n", info.Version, info.ProtocolVersion, info.Capabilities)
		return nil
	}),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML client config file (optional, LEO_* env vars also apply)")
	rootCmd.AddCommand(putCmd, getCmd, listCmd, delCmd, infoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// withSession loads config, connects, authenticates, runs fn, and sends
// BYE once fn succeeds, mirroring the one-command-per-process shape of the
// reference CLI. If authentication or fn fails, the connection is closed
// without sending BYE.
func withSession(fn func(c *client.Client, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadClientConfig(configPath)
		if err != nil {
			return err
		}

		c, err := client.Connect(cfg.Host, cfg.Port, client.Config{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond})
		if err != nil {
			return fmt.Errorf("leo-client: connect: %w", err)
		}
		defer c.Close()

		if err := c.Auth(cfg.Username, cfg.Password); err != nil {
			return fmt.Errorf("leo-client: auth: %w", err)
		}

		if err := fn(c, args); err != nil {
			return err
		}

		return c.Bye()
	}
}
