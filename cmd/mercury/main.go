package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mercury",
		Short: "Poll syndication feeds and fan new entries out to subscribers",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(runCmd())
	root.AddCommand(syncCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(subscribeCmd())
	root.AddCommand(addUserCmd())

	return root
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with sync scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one synchronization pass over all feeds and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync()
		},
	}
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server without the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func subscribeCmd() *cobra.Command {
	var (
		username string
		url      string
	)

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe a user to a feed URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubscribe(username, url)
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "username of the subscriber")
	cmd.Flags().StringVar(&url, "url", "", "feed URL")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("url")
	return cmd
}

func addUserCmd() *cobra.Command {
	var (
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAddUser(username, password)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	return cmd
}
